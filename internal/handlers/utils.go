package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"screencast/internal/catalog"
	"screencast/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONCreated writes v with a 201 status.
func writeJSONCreated(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// writeCatalogError maps a catalog error onto a status code. Only
// validation messages reach the client; anything else is logged and
// reported generically.
func writeCatalogError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, catalog.ErrInvalidComment):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logging.Error("%s: %v", action, err)
		writeJSONError(w, "Failed to "+action, http.StatusInternalServerError)
	}
}
