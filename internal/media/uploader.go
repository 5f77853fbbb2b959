// Package media moves local files onto the media host and reports where
// they can be fetched from.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hackclub/mediadrop/internal/config"
	"github.com/hackclub/mediadrop/internal/metrics"
	"github.com/hackclub/mediadrop/internal/storage"
	"github.com/hackclub/mediadrop/internal/util"
	"github.com/rs/zerolog"
)

// UploadRequest names one local file and the group it is stored under.
// An empty Group selects the uploader's default.
type UploadRequest struct {
	SourcePath string
	Group      string
}

type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Group       string `json:"group"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"bytes"`
	ETag        string `json:"etag,omitempty"`
	Checksum    string `json:"checksum"`
}

// Uploader is safe for concurrent use; it keeps no per-call state.
type Uploader struct {
	store         storage.Client
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	defaultGroup  string
	allowInsecure bool
}

type Option func(*Uploader)

func WithDefaultGroup(group string) Option {
	return func(u *Uploader) {
		if g := strings.Trim(strings.TrimSpace(group), "/"); g != "" {
			u.defaultGroup = g
		}
	}
}

// WithInsecureURLs accepts http:// URLs from the host. Local development only.
func WithInsecureURLs() Option {
	return func(u *Uploader) { u.allowInsecure = true }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(u *Uploader) { u.metrics = m }
}

func NewUploader(store storage.Client, logger zerolog.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		store:        store,
		logger:       logger,
		defaultGroup: config.DefaultGroup,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Uploader) DefaultGroup() string {
	return u.defaultGroup
}

// Upload sends req.SourcePath to the media host under <group>/<base name>
// and returns the HTTPS URL the host assigned. It makes exactly one write
// attempt. Failures are logged here once and returned as *TransferError.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	group, err := u.ResolveGroup(req.Group)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := u.transfer(ctx, req.SourcePath, group)
	if err != nil {
		u.metrics.ObserveUpload(group, metrics.ResultFailure, 0, time.Since(start))
		var te *TransferError
		if errors.As(err, &te) {
			u.logger.Error().
				Err(te.Err).
				Str("op", te.Op).
				Str("group", group).
				Str("key", te.Key).
				Str("source", req.SourcePath).
				Msg("media upload failed")
		}
		return nil, err
	}

	u.metrics.ObserveUpload(group, metrics.ResultSuccess, result.Size, time.Since(start))
	u.logger.Info().
		Str("group", result.Group).
		Str("key", result.Key).
		Str("url", result.URL).
		Str("etag", result.ETag).
		Str("content_type", result.ContentType).
		Int64("bytes", result.Size).
		Str("checksum", result.Checksum).
		Dur("duration", time.Since(start)).
		Msg("media uploaded")

	return result, nil
}

// ResolveGroup applies the default and rejects labels that are not a clean
// key prefix. The configured default goes through the same check.
func (u *Uploader) ResolveGroup(group string) (string, error) {
	if strings.TrimSpace(group) == "" {
		group = u.defaultGroup
	}
	g, ok := config.CleanGroup(group)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	return g, nil
}

func (u *Uploader) transfer(ctx context.Context, sourcePath, group string) (*UploadResult, error) {
	fail := func(op, key string, err error) error {
		return &TransferError{Op: op, Group: group, Key: key, Err: err}
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fail("open", "", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fail("open", "", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fail("open", "", fmt.Errorf("%s is not a regular file", sourcePath))
	}

	key := path.Join(group, filepath.Base(sourcePath))

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fail("read", key, err)
	}
	contentType := util.ContentTypeFor(sourcePath, head[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fail("read", key, err)
	}
	checksum, size, err := util.HashReader(f)
	if err != nil {
		return nil, fail("read", key, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fail("read", key, err)
	}

	stored, err := u.store.Upload(ctx, &storage.Object{
		Key:         key,
		Body:        f,
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"group":  group,
			"sha256": checksum,
			"source": "mediadrop",
		},
	})
	if err != nil {
		return nil, fail("upload", key, err)
	}
	if stored == nil || strings.TrimSpace(stored.URL) == "" {
		return nil, fail("upload", key, ErrMissingURL)
	}
	if err := u.checkURL(stored.URL); err != nil {
		return nil, fail("upload", key, err)
	}

	etag := stored.ETag
	if etag == "" {
		etag = checksum
	}

	return &UploadResult{
		URL:         stored.URL,
		Key:         key,
		Group:       group,
		ContentType: contentType,
		Size:        size,
		ETag:        etag,
		Checksum:    "sha256:" + checksum,
	}, nil
}

func (u *Uploader) checkURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInsecureURL, raw)
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if u.allowInsecure {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInsecureURL, raw)
}
