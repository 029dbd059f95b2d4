package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"screencast/internal/catalog"
)

func TestWriteCatalogError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"not found", fmt.Errorf("%w: abc", catalog.ErrNotFound), http.StatusNotFound, "Not found"},
		{"validation", fmt.Errorf("%w: name is required", catalog.ErrInvalidComment), http.StatusBadRequest, "invalid comment: name is required"},
		{"internal", errors.New("open /data/recordings/x: permission denied"), http.StatusInternalServerError, "Failed to add comment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeCatalogError(w, tt.err, "add comment")

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", body["error"], tt.wantMsg)
			}
			if strings.Contains(w.Body.String(), "permission denied") {
				t.Error("internal error leaked to the client")
			}
		})
	}
}

func TestWriteJSONCreated(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONCreated(w, map[string]string{"shareId": "abc12345"})
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"shareId":"abc12345"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}
