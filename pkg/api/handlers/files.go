package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/driftfs/driftfs/pkg/vfs"
)

// FileHandler handles file content operations.
type FileHandler struct {
	provider *vfs.Provider

	// maxUploadBytes caps the size of an uploaded file.
	maxUploadBytes int64
}

// DefaultMaxUploadBytes is the default upload size cap (64 MiB).
const DefaultMaxUploadBytes = 64 << 20

// NewFileHandler creates a new file handler.
func NewFileHandler(provider *vfs.Provider, maxUploadBytes int64) *FileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &FileHandler{
		provider:       provider,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /api/v1/files?path=.
// Accepts multipart form data with a "file" part and stores it at the
// given path. Uploading to an existing file replaces its content.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		BadRequest(w, "Invalid multipart form or file too large")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		BadRequest(w, "Multipart part 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		BadRequest(w, "Failed to read uploaded file")
		return
	}

	node, err := h.provider.WriteFile(r.Context(), userID, path, data)
	if err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteJSONCreated(w, nodeToResponse(node))
}

// Download handles GET /api/v1/files?path=.
// Streams the file content with its stored MIME type and filename.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	node, data, err := h.provider.ReadFile(r.Context(), userID, path)
	if err != nil {
		writeFsError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", node.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, _ = w.Write(data)
}

// Delete handles DELETE /api/v1/files?path=.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	if err := h.provider.DeleteFile(r.Context(), userID, path); err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Move handles POST /api/v1/files/move?path=&destination=.
func (h *FileHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.pairOp(w, r, h.provider.MoveFile)
}

// Copy handles POST /api/v1/files/copy?path=&destination=.
func (h *FileHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.pairOp(w, r, h.provider.CopyFile)
}

// Rename handles POST /api/v1/files/rename?path=&name=.
func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		BadRequest(w, "Query parameter 'name' is required")
		return
	}

	if err := h.provider.RenameFile(r.Context(), userID, path, name); err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteNoContent(w)
}

func (h *FileHandler) pairOp(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, srcPath, dstPath string) error,
) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	destination := r.URL.Query().Get("destination")
	if destination == "" {
		BadRequest(w, "Query parameter 'destination' is required")
		return
	}

	if err := op(r.Context(), userID, path, destination); err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteNoContent(w)
}
