package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"screencast/internal/catalog"
	"screencast/internal/logging"

	"github.com/gorilla/mux"
)

// maxCommentBody bounds a comment request.
const maxCommentBody = 64 << 10

// ListVideos returns every recording, newest first.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.catalog.ListVideos(r.Context())
	if err != nil {
		writeCatalogError(w, err, "list videos")
		return
	}
	if videos == nil {
		videos = []catalog.Video{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"videos": videos})
}

// GetVideo returns one recording's metadata without counting a view.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.catalog.GetVideo(r.Context(), mux.Vars(r)["shareId"])
	if err != nil {
		writeCatalogError(w, err, "load video")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, video)
}

// DeleteVideo removes a recording with its thumbnail and comments.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	shareID := mux.Vars(r)["shareId"]
	if err := h.catalog.DeleteVideo(r.Context(), shareID); err != nil {
		writeCatalogError(w, err, "delete video")
		return
	}
	logging.Info("Deleted recording %s", shareID)
	writeJSONStatus(w, "deleted")
}

// ListComments returns a recording's thread.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	shareID := mux.Vars(r)["shareId"]
	if _, err := h.catalog.GetVideo(r.Context(), shareID); err != nil {
		writeCatalogError(w, err, "load video")
		return
	}

	comments, err := h.catalog.ListComments(r.Context(), shareID)
	if err != nil {
		writeCatalogError(w, err, "list comments")
		return
	}
	if comments == nil {
		comments = []catalog.Comment{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"comments": comments})
}

// commentRequest is the body of a new comment. Timestamp is optional.
type commentRequest struct {
	UserName  string              `json:"userName"`
	Content   string              `json:"content"`
	Timestamp *float64            `json:"timestamp"`
	Type      catalog.CommentType `json:"type"`
}

// AddComment appends a comment to a recording's thread.
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	shareID := mux.Vars(r)["shareId"]

	var req commentRequest
	body := http.MaxBytesReader(w, r.Body, maxCommentBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeJSONError(w, "Comment too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			writeJSONError(w, "Request body is required", http.StatusBadRequest)
		default:
			writeJSONError(w, "Invalid JSON", http.StatusBadRequest)
		}
		return
	}

	created, err := h.catalog.AddComment(r.Context(), shareID, catalog.Comment{
		UserName:  req.UserName,
		Content:   req.Content,
		Timestamp: req.Timestamp,
		Type:      req.Type,
	})
	if err != nil {
		writeCatalogError(w, err, "add comment")
		return
	}

	writeJSONCreated(w, created)
}

// DeleteComment removes one comment.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.catalog.DeleteComment(r.Context(), vars["shareId"], vars["commentId"]); err != nil {
		writeCatalogError(w, err, "delete comment")
		return
	}
	writeJSONStatus(w, "deleted")
}
