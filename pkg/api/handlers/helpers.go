package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// writeFsError maps a filesystem provider error to a problem response.
func writeFsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, models.ErrParentNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, models.ErrBlobNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, models.ErrAlreadyExists):
		Conflict(w, err.Error())
	case errors.Is(err, models.ErrNameConflict):
		Conflict(w, err.Error())
	case errors.Is(err, models.ErrInvalidOperation):
		UnprocessableEntity(w, err.Error())
	default:
		logger.ErrorCtx(r.Context(), "filesystem operation failed", "error", err)
		InternalServerError(w, "Filesystem operation failed")
	}
}
