package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hackclub/mediadrop/internal/util"
)

// LocalClient stores objects on the local filesystem. Meant for development,
// where a static file server or the service itself exposes baseDir.
type LocalClient struct {
	baseDir       string
	publicBaseURL string
}

func NewLocalClient(baseDir, publicBaseURL string) (*LocalClient, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalClient{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// ObjectExists checks if a file exists locally
func (c *LocalClient) ObjectExists(ctx context.Context, key string) (bool, error) {
	path, err := c.pathFor(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Upload copies obj.Body into baseDir/key
func (c *LocalClient) Upload(ctx context.Context, obj *Object) (*UploadResult, error) {
	path, err := c.pathFor(obj.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	// hash while writing so the ETag matches what landed on disk
	hashed := util.NewHashingReader(obj.Body)
	n, err := io.Copy(f, hashed)
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &UploadResult{
		Key:         obj.Key,
		URL:         c.GetPublicURL(obj.Key),
		ETag:        hashed.Sum(),
		Size:        n,
		ContentType: obj.ContentType,
	}, nil
}

// List returns at most maxKeys files directly inside baseDir/prefix, ordered by key
func (c *LocalClient) List(ctx context.Context, prefix string, maxKeys int32) ([]ObjectInfo, error) {
	root, err := c.pathFor(prefix)
	if err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		objects = append(objects, ObjectInfo{Key: key, URL: c.GetPublicURL(key), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	if maxKeys > 0 && len(objects) > int(maxKeys) {
		objects = objects[:maxKeys]
	}
	return objects, nil
}

// GetPublicURL returns the public URL for a file
func (c *LocalClient) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/%s", c.publicBaseURL, escapeKey(key))
}

func (c *LocalClient) Delete(ctx context.Context, key string) error {
	path, err := c.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// pathFor maps a key into baseDir and refuses keys that would escape it.
func (c *LocalClient) pathFor(key string) (string, error) {
	path := filepath.Join(c.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(c.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return path, nil
}
