package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/driftfs/driftfs/pkg/api/middleware"
	"github.com/driftfs/driftfs/pkg/vfs"
	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// DirectoryHandler handles directory operations.
type DirectoryHandler struct {
	provider *vfs.Provider
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(provider *vfs.Provider) *DirectoryHandler {
	return &DirectoryHandler{provider: provider}
}

// NodeResponse is the public view of a filesystem node.
type NodeResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	IsDirectory bool      `json:"is_directory"`
	Size        int64     `json:"size"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func nodeToResponse(node *models.Node) NodeResponse {
	return NodeResponse{
		ID:          node.ID,
		Name:        node.Name,
		Path:        node.Path,
		IsDirectory: node.IsDirectory,
		Size:        node.Size,
		MimeType:    node.MimeType,
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
	}
}

// requireUser extracts the authenticated user ID, writing a problem
// response when the request is unauthenticated.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return "", false
	}
	return claims.UserID, true
}

// requirePath extracts the "path" query parameter.
func requirePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := r.URL.Query().Get("path")
	if path == "" {
		BadRequest(w, "Query parameter 'path' is required")
		return "", false
	}
	return path, true
}

// Create handles POST /api/v1/directories?path=.
func (h *DirectoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	node, err := h.provider.CreateDirectory(r.Context(), userID, path)
	if err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteJSONCreated(w, nodeToResponse(node))
}

// Delete handles DELETE /api/v1/directories?path=.
// Removes the directory and everything beneath it.
func (h *DirectoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	if err := h.provider.DeleteDirectory(r.Context(), userID, path); err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// List handles GET /api/v1/directories?path=.
// Returns the direct children of a directory.
func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	nodes, err := h.provider.List(r.Context(), userID, path)
	if err != nil {
		writeFsError(w, r, err)
		return
	}
	entries := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, nodeToResponse(n))
	}
	WriteJSONOK(w, entries)
}

// Move handles POST /api/v1/directories/move?path=&destination=.
func (h *DirectoryHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.subtreeOp(w, r, h.provider.MoveDirectory)
}

// Copy handles POST /api/v1/directories/copy?path=&destination=.
func (h *DirectoryHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.subtreeOp(w, r, h.provider.CopyDirectory)
}

// Rename handles POST /api/v1/directories/rename?path=&name=.
func (h *DirectoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
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

	if err := h.provider.RenameDirectory(r.Context(), userID, path, name); err != nil {
		writeFsError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Info handles GET /api/v1/nodes?path=.
// Returns metadata for any node, file or directory.
func (h *DirectoryHandler) Info(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	path, ok := requirePath(w, r)
	if !ok {
		return
	}

	node, err := h.provider.GetInfo(r.Context(), userID, path)
	if err != nil {
		writeFsError(w, r, err)
		return
	}
	if node == nil {
		NotFound(w, "No node at "+path)
		return
	}
	WriteJSONOK(w, nodeToResponse(node))
}

func (h *DirectoryHandler) subtreeOp(w http.ResponseWriter, r *http.Request,
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
