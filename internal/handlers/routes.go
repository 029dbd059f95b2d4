package handlers

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes mounts every endpoint on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Share page
	r.HandleFunc("/v/{shareId}", h.PlaybackPage).Methods("GET").Name("playback")

	// Stored objects
	r.HandleFunc("/objects/{path:.+}", h.ServeObject).Methods("GET", "HEAD").Name("objects")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/recordings", h.IngestRecording).Methods("POST")
	api.HandleFunc("/videos", h.ListVideos).Methods("GET")
	api.HandleFunc("/videos/{shareId}", h.GetVideo).Methods("GET")
	api.HandleFunc("/videos/{shareId}", h.DeleteVideo).Methods("DELETE")
	api.HandleFunc("/videos/{shareId}/comments", h.ListComments).Methods("GET")
	api.HandleFunc("/videos/{shareId}/comments", h.AddComment).Methods("POST")
	api.HandleFunc("/videos/{shareId}/comments/{commentId}", h.DeleteComment).Methods("DELETE")
}
