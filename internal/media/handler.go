package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hackclub/mediadrop/internal/auth"
	"github.com/hackclub/mediadrop/internal/storage"
	"github.com/hackclub/mediadrop/internal/util"
	"github.com/rs/zerolog"
)

const maxListKeys = 1000

// Handler exposes the uploader over HTTP.
type Handler struct {
	uploader *Uploader
	store    storage.Client
	fetcher  *util.HTTPFetcher
	logger   zerolog.Logger
	tempDir  string
	maxBytes int64
}

func NewHandler(uploader *Uploader, store storage.Client, logger zerolog.Logger, tempDir string, maxBytes int64) *Handler {
	return &Handler{
		uploader: uploader,
		store:    store,
		fetcher:  util.NewHTTPFetcher(maxBytes),
		logger:   logger,
		tempDir:  tempDir,
		maxBytes: maxBytes,
	}
}

// HandleUpload accepts a multipart file or a JSON {"url","group"} body,
// stages it in a temp file named after the original and uploads it.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// multipart framing needs some headroom over the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	stageDir, err := os.MkdirTemp(h.tempDir, "upload-")
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create staging directory")
		http.Error(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(stageDir)

	var sourcePath, group string
	if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		sourcePath, group, err = h.stageMultipart(r, stageDir)
	} else {
		sourcePath, group, err = h.stageRemote(r, stageDir)
	}
	if err != nil {
		h.writeStageError(w, err)
		return
	}

	resolved, err := h.uploader.ResolveGroup(group)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !auth.GroupAllowed(ctx, resolved) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	result, err := h.uploader.Upload(ctx, UploadRequest{SourcePath: sourcePath, Group: resolved})
	if err != nil {
		// the uploader already logged transfer failures
		writeUploadError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, result)
}

// HandleList lists stored objects in one group
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	group, err := h.uploader.ResolveGroup(chi.URLParam(r, "group"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !auth.GroupAllowed(r.Context(), group) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	listed, err := h.store.List(r.Context(), group+"/", maxListKeys)
	if err != nil {
		h.logger.Error().Err(err).Str("group", group).Msg("failed to list objects")
		http.Error(w, "Failed to list objects", http.StatusBadGateway)
		return
	}

	// nested groups are separate scopes
	objects := make([]storage.ObjectInfo, 0, len(listed))
	for _, obj := range listed {
		if path.Dir(obj.Key) == group {
			objects = append(objects, obj)
		}
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"group":   group,
		"objects": objects,
		"count":   len(objects),
	})
}

// HandleDelete removes one object from a group
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	group, err := h.uploader.ResolveGroup(chi.URLParam(r, "group"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !auth.GroupAllowed(r.Context(), group) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		http.Error(w, "Invalid object name", http.StatusBadRequest)
		return
	}

	key := path.Join(group, name)

	// S3 deletes of missing keys succeed, so look first
	exists, err := h.store.ObjectExists(r.Context(), key)
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("failed to stat object")
		http.Error(w, "Failed to delete object", http.StatusBadGateway)
		return
	}
	if !exists {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("failed to delete object")
		http.Error(w, "Failed to delete object", http.StatusBadGateway)
		return
	}

	h.logger.Info().Str("key", key).Msg("deleted object")
	w.WriteHeader(http.StatusNoContent)
}

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func (h *Handler) stageMultipart(r *http.Request, stageDir string) (string, string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", "", fmt.Errorf("failed to parse multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", badRequestError{"No file provided"}
	}
	defer file.Close()

	sourcePath := filepath.Join(stageDir, stagedName(header.Filename, header.Header.Get("Content-Type")))
	if err := writeFile(sourcePath, file, h.maxBytes); err != nil {
		return "", "", err
	}
	return sourcePath, r.FormValue("group"), nil
}

func (h *Handler) stageRemote(r *http.Request, stageDir string) (string, string, error) {
	var req struct {
		URL   string `json:"url"`
		Group string `json:"group,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", badRequestError{"Invalid JSON"}
	}
	if req.URL == "" {
		return "", "", badRequestError{"Either a multipart 'file' or a JSON 'url' must be provided"}
	}

	tmp, err := os.CreateTemp(stageDir, "fetch-")
	if err != nil {
		return "", "", err
	}
	fetched, err := h.fetcher.Fetch(r.Context(), req.URL, tmp)
	closeErr := tmp.Close()
	if err != nil {
		if errors.Is(err, util.ErrTooLarge) {
			return "", "", err
		}
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("failed to fetch remote file")
		return "", "", badRequestError{fmt.Sprintf("Failed to fetch URL: %v", err)}
	}
	if closeErr != nil {
		return "", "", closeErr
	}

	sourcePath := filepath.Join(stageDir, stagedName(fetched.Filename, fetched.ContentType))
	if err := os.Rename(tmp.Name(), sourcePath); err != nil {
		return "", "", err
	}
	return sourcePath, req.Group, nil
}

// stagedName keeps the caller's base name so the object key reflects it,
// and invents one when there is nothing usable.
func stagedName(original, contentType string) string {
	name := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return uuid.NewString() + util.ExtensionFor(contentType)
	}
	return name
}

func writeFile(dst string, src multipart.File, maxBytes int64) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(src, maxBytes+1))
	if err != nil {
		out.Close()
		return err
	}
	if n > maxBytes {
		out.Close()
		return util.ErrTooLarge
	}
	return out.Close()
}

func (h *Handler) writeStageError(w http.ResponseWriter, err error) {
	var badReq badRequestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &badReq):
		http.Error(w, badReq.msg, http.StatusBadRequest)
	case errors.As(err, &maxErr), errors.Is(err, util.ErrTooLarge):
		http.Error(w, fmt.Sprintf("File too large (max %d bytes)", h.maxBytes), http.StatusRequestEntityTooLarge)
	case errors.Is(err, multipart.ErrMessageTooLarge):
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
	default:
		h.logger.Error().Err(err).Msg("failed to stage upload")
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
	}
}

func writeUploadError(w http.ResponseWriter, err error) {
	var te *TransferError
	switch {
	case errors.Is(err, ErrInvalidGroup):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &te):
		http.Error(w, fmt.Sprintf("Failed to upload: %v", err), http.StatusBadGateway)
	default:
		http.Error(w, "Failed to upload", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}
