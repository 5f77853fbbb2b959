package media

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/hackclub/mediadrop/internal/storage"
)

// fakeStore records uploads in memory and answers with CDN style URLs.
type fakeStore struct {
	mu       sync.Mutex
	baseURL  string
	objects  map[string][]byte
	meta     map[string]map[string]string
	calls    int
	failWith error
	noURL    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		baseURL: "https://res.example-cdn.com",
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (f *fakeStore) Upload(ctx context.Context, obj *storage.Object) (*storage.UploadResult, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.objects[obj.Key] = data
	f.meta[obj.Key] = obj.Metadata

	result := &storage.UploadResult{
		Key:         obj.Key,
		URL:         f.GetPublicURL(obj.Key),
		Size:        int64(len(data)),
		ContentType: obj.ContentType,
	}
	if f.noURL {
		result.URL = ""
	}
	return result, nil
}

func (f *fakeStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string, maxKeys int32) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, URL: f.GetPublicURL(key), Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) GetPublicURL(key string) string {
	return fmt.Sprintf("%s/%s", f.baseURL, key)
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
