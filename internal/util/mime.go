package util

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const sniffLen = 512

// DetectContentType detects the MIME type of the given data
func DetectContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return http.DetectContentType(data)
}

// ContentTypeFor picks a MIME type from the file extension and falls back to
// sniffing head when the extension is unknown
func ContentTypeFor(name string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return DetectContentType(head)
}

// ExtensionFor returns the file extension for a given MIME type
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}

	switch mediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heif":
		return ".heif"
	case "image/avif":
		return ".avif"
	case "video/mp4":
		return ".mp4"
	case "application/pdf":
		return ".pdf"
	}

	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
