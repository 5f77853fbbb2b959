package util

import (
	"testing"
)

func TestContentTypeFor(t *testing.T) {
	pngHeader := []byte("\x89PNG\r\n\x1a\n")

	tests := []struct {
		name     string
		head     []byte
		expected string
	}{
		{"photo.jpg", nil, "image/jpeg"},
		{"PHOTO.PNG", nil, "image/png"},
		{"scan.pdf", nil, "application/pdf"},
		{"noext", pngHeader, "image/png"},
		{"weird.zzzunknown", []byte("plain words"), "text/plain; charset=utf-8"},
	}

	for _, test := range tests {
		result := ContentTypeFor(test.name, test.head)
		if result != test.expected {
			t.Errorf("ContentTypeFor(%s) = %s, expected %s", test.name, result, test.expected)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mime     string
		expected string
	}{
		{"image/jpeg", ".jpg"},
		{"image/jpg", ".jpg"},
		{"image/png", ".png"},
		{"image/webp", ".webp"},
		{"image/gif", ".gif"},
		{"image/png; charset=binary", ".png"},
		{"application/pdf", ".pdf"},
		{"unknown/type", ".bin"}, // fallback
	}

	for _, test := range tests {
		result := ExtensionFor(test.mime)
		if result != test.expected {
			t.Errorf("ExtensionFor(%s) = %s, expected %s", test.mime, result, test.expected)
		}
	}
}

func TestDetectContentTypeOnlySniffsHead(t *testing.T) {
	data := make([]byte, 4096)
	copy(data, "GIF89a")

	if got := DetectContentType(data); got != "image/gif" {
		t.Errorf("DetectContentType = %s, expected image/gif", got)
	}
}
