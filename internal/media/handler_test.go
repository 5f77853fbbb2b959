package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hackclub/mediadrop/internal/auth"
	"github.com/hackclub/mediadrop/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, store *fakeStore, maxBytes int64) (http.Handler, string) {
	t.Helper()
	tempDir := t.TempDir()
	h := NewHandler(NewUploader(store, zerolog.Nop()), store, zerolog.Nop(), tempDir, maxBytes)

	r := chi.NewRouter()
	r.Post("/api/media", h.HandleUpload)
	r.Get("/api/media/{group}", h.HandleList)
	r.Delete("/api/media/{group}/{name}", h.HandleDelete)
	return r, tempDir
}

func multipartBody(t *testing.T, filename, content, group string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if group != "" {
		require.NoError(t, mw.WriteField("group", group))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUploadMultipart(t *testing.T) {
	store := newFakeStore()
	router, tempDir := newTestRouter(t, store, 1<<20)

	body, contentType := multipartBody(t, "photo.jpg", "jpeg-bytes", "studentPhotos")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "https://res.example-cdn.com/studentPhotos/photo.jpg", result.URL)
	assert.Equal(t, "jpeg-bytes", string(store.objects["studentPhotos/photo.jpg"]))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory is cleaned up")
}

func TestHandleUploadDefaultGroup(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 1<<20)

	body, contentType := multipartBody(t, "photo.jpg", "jpeg-bytes", "")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://res.example-cdn.com/defaultBucket/photo.jpg")
}

func TestHandleUploadWithoutFile(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 1<<20)

	body, contentType := multipartBody(t, "", "", "studentPhotos")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.callCount())
}

func TestHandleUploadInvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t, newFakeStore(), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/media", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadRejectsPlainHTTPURL(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/media", strings.NewReader(`{"url":"http://example.com/a.jpg"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.callCount())
}

func TestHandleUploadTransferFailure(t *testing.T) {
	store := newFakeStore()
	store.failWith = errors.New("access denied")
	router, _ := newTestRouter(t, store, 1<<20)

	body, contentType := multipartBody(t, "photo.jpg", "jpeg-bytes", "")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "access denied")
	assert.NotContains(t, rec.Body.String(), "https://")
}

func TestHandleUploadInvalidGroup(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 1<<20)

	body, contentType := multipartBody(t, "photo.jpg", "x", "../secrets")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.callCount())
}

func TestHandleUploadTooLarge(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 16)

	body, contentType := multipartBody(t, "big.bin", strings.Repeat("x", 2<<20), "")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, store.callCount())
}

func TestHandleListAndDelete(t *testing.T) {
	store := newFakeStore()
	store.objects["staffPhotos/a.jpg"] = []byte("aa")
	store.objects["studentPhotos/b.jpg"] = []byte("b")
	router, _ := newTestRouter(t, store, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media/staffPhotos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Group   string `json:"group"`
		Count   int    `json:"count"`
		Objects []struct {
			Key string `json:"key"`
			URL string `json:"url"`
		} `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, "staffPhotos", listed.Group)
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "staffPhotos/a.jpg", listed.Objects[0].Key)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/media/staffPhotos/a.jpg", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/media/staffPhotos/a.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStagedName(t *testing.T) {
	assert.Equal(t, "photo.jpg", stagedName("photo.jpg", "image/jpeg"))
	assert.Equal(t, "photo.jpg", stagedName(`C:\Users\me\photo.jpg`, "image/jpeg"))
	assert.Equal(t, "photo.jpg", stagedName("../../photo.jpg", "image/jpeg"))

	generated := stagedName("", "image/png")
	assert.True(t, strings.HasSuffix(generated, ".png"))
	assert.Len(t, generated, 36+len(".png"))
}

func TestHandleUploadJustOverLimit(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 16)

	body, contentType := multipartBody(t, "small.bin", strings.Repeat("x", 17), "")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, store.callCount())
}

func TestHandleUploadRespectsTokenGroups(t *testing.T) {
	store := newFakeStore()
	router, _ := newTestRouter(t, store, 1<<20)

	body, contentType := multipartBody(t, "photo.jpg", "x", "staffPhotos")
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	claims := &auth.Claims{Groups: []string{"studentPhotos"}}
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, store.callCount())
}

func TestHandleListSkipsNestedGroups(t *testing.T) {
	store := newFakeStore()
	store.objects["studentPhotos/a.jpg"] = []byte("a")
	store.objects["studentPhotos/private/secret.jpg"] = []byte("s")
	router, _ := newTestRouter(t, store, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/media/studentPhotos", nil)
	claims := &auth.Claims{Groups: []string{"studentPhotos"}}
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "studentPhotos/a.jpg")
	assert.NotContains(t, rec.Body.String(), "secret.jpg")
	assert.False(t, auth.GroupAllowed(req.Context(), "studentPhotos/private"))
}

func TestHandleDeleteMissingS3Object(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			// real buckets answer 204 even when the key is absent
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(ts.Close)

	store, err := storage.NewS3Client(context.Background(), storage.S3Config{
		Endpoint:        ts.URL,
		Bucket:          "media",
		AccessKeyID:     "x",
		SecretAccessKey: "y",
		PublicBaseURL:   "https://res.example-cdn.com",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	h := NewHandler(NewUploader(store, zerolog.Nop()), store, zerolog.Nop(), t.TempDir(), 1<<20)
	r := chi.NewRouter()
	r.Delete("/api/media/{group}/{name}", h.HandleDelete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/media/staffPhotos/gone.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{http.MethodHead}, methods)
}
