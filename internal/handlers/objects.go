package handlers

import (
	"errors"
	"net/http"

	"screencast/internal/logging"
	"screencast/internal/storage"

	"github.com/gorilla/mux"
)

// ServeObject serves a stored object. Range requests are honoured so the
// player can seek without downloading the whole recording.
func (h *Handlers) ServeObject(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["path"]

	rc, obj, err := h.store.Open(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidPath):
			http.Error(w, "Not found", http.StatusNotFound)
		default:
			logging.Error("Opening object %q: %v", key, err)
			http.Error(w, "Failed to read object", http.StatusInternalServerError)
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, obj.Name, obj.CreatedAt, rc)
}
