package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"screencast/internal/logging"
	"screencast/internal/metrics"
	"screencast/internal/upload"
)

// multipartMemory is how much of an ingest form is held in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// IngestRecording accepts a finished recording as multipart form data and
// publishes it. The response carries the share link.
func (h *Handlers) IngestRecording(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.ingestGate != nil && h.ingestGate.IsPaused() {
		metrics.IngestRejected.Inc()
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, "Server is busy, retry later", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeFormError(w, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	rec, err := recordingFromForm(r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	res, err := h.publisher.Publish(r.Context(), rec, func(pct int) {
		logging.Debug("Ingest %q: %d%%", rec.Title, pct)
	})
	if err != nil {
		if errors.Is(err, upload.ErrEmptyArtifact) {
			writeJSONError(w, "Recording is empty", http.StatusBadRequest)
			return
		}
		logging.Error("Publishing recording failed: %v", err)
		writeJSONError(w, "Failed to publish recording", http.StatusInternalServerError)
		return
	}

	logging.Info("Published %s (%d bytes) in %v", res.ShareID, len(rec.Data), time.Since(start))
	writeJSONCreated(w, res)
}

// formError is a client mistake in the ingest form.
type formError struct{ msg string }

func (e *formError) Error() string { return e.msg }

func writeFormError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	var fe *formError
	switch {
	case errors.As(err, &maxErr):
		writeJSONError(w, "Recording too large", http.StatusRequestEntityTooLarge)
	case errors.As(err, &fe):
		writeJSONError(w, fe.msg, http.StatusBadRequest)
	default:
		logging.Debug("Ingest form rejected: %v", err)
		writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
	}
}

func recordingFromForm(r *http.Request) (upload.Recording, error) {
	rec := upload.Recording{
		Title:     strings.TrimSpace(r.FormValue(upload.FieldTitle)),
		Client:    strings.TrimSpace(r.FormValue(upload.FieldClient)),
		MimeType:  r.FormValue(upload.FieldMimeType),
		CreatedAt: time.Now().UTC(),
	}

	if v := r.FormValue(upload.FieldDuration); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			return rec, &formError{msg: "duration must be a non-negative number of seconds"}
		}
		rec.Duration = d
	}

	if v := r.FormValue(upload.FieldCreatedAt); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return rec, &formError{msg: "createdAt must be an RFC 3339 time"}
		}
		rec.CreatedAt = t.UTC()
	}

	file, header, err := r.FormFile(upload.FieldVideo)
	if err != nil {
		return rec, &formError{msg: "video file is required"}
	}
	defer file.Close()

	if rec.MimeType == "" {
		rec.MimeType = header.Header.Get("Content-Type")
	}

	rec.Data, err = io.ReadAll(file)
	if err != nil {
		return rec, err
	}
	return rec, nil
}
