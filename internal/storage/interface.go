package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// Client is implemented by every media host backend.
type Client interface {
	Upload(ctx context.Context, obj *Object) (*UploadResult, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
	// List returns objects stored directly under prefix; keys in deeper
	// "directories" are left out.
	List(ctx context.Context, prefix string, maxKeys int32) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// Object is a single write request. Body is read once.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Key         string
	URL         string
	ETag        string
	Size        int64
	ContentType string
}

type ObjectInfo struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}
