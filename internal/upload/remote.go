package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"screencast/internal/capture"
	"screencast/internal/catalog"
)

// Multipart field names of the ingest endpoint.
const (
	FieldVideo     = "video"
	FieldTitle     = "title"
	FieldClient    = "client"
	FieldDuration  = "duration"
	FieldMimeType  = "mimeType"
	FieldCreatedAt = "createdAt"
)

// Remote talks to a running screencast service.
type Remote struct {
	server string
	client *http.Client
}

// NewRemote returns a client for the service at server. A nil client uses
// one with a generous timeout for large uploads.
func NewRemote(server string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &Remote{server: strings.TrimRight(server, "/"), client: client}
}

// Publish posts rec to /api/recordings.
func (r *Remote) Publish(ctx context.Context, rec Recording, progress func(int)) (*Result, error) {
	if progress == nil {
		progress = func(int) {}
	}
	if len(rec.Data) == 0 {
		return nil, ErrEmptyArtifact
	}
	progress(ProgressStarted)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeRecording(mw, rec))
	}()

	// The transport closes pr when it is done with the body, which also
	// unblocks the writer if the request fails early.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.server+"/api/recordings", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading to %s: %w", r.server, err)
	}
	defer resp.Body.Close()
	progress(ProgressTransferred)

	var res Result
	if err := decode(resp, http.StatusCreated, &res); err != nil {
		return nil, err
	}
	progress(ProgressMetadata)
	progress(ProgressDone)
	return &res, nil
}

func writeRecording(mw *multipart.Writer, rec Recording) error {
	fields := [][2]string{
		{FieldTitle, rec.Title},
		{FieldClient, rec.Client},
		{FieldDuration, strconv.Itoa(rec.Duration)},
		{FieldMimeType, rec.MimeType},
	}
	if !rec.CreatedAt.IsZero() {
		fields = append(fields, [2]string{FieldCreatedAt, rec.CreatedAt.UTC().Format(time.RFC3339Nano)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(FieldVideo, "recording.webm")
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, bytes.NewReader(rec.Data)); err != nil {
		return err
	}
	return mw.Close()
}

// Upload adapts Publish to the capture controller.
func (r *Remote) Upload(ctx context.Context, req capture.UploadRequest, progress func(int)) (*capture.UploadResult, error) {
	res, err := r.Publish(ctx, fromArtifact(req), progress)
	if err != nil {
		return nil, err
	}
	return &capture.UploadResult{ShareID: res.ShareID, ShareURL: res.ShareURL}, nil
}

// ListVideos returns the dashboard listing.
func (r *Remote) ListVideos(ctx context.Context) ([]catalog.Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.server+"/api/videos", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Videos []catalog.Video `json:"videos"`
	}
	if err := decode(resp, http.StatusOK, &body); err != nil {
		return nil, err
	}
	return body.Videos, nil
}

// DeleteVideo removes a recording and everything attached to it.
func (r *Remote) DeleteVideo(ctx context.Context, shareID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.server+"/api/videos/"+url.PathEscape(shareID), nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", shareID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, shareID)
	}
	return decode(resp, http.StatusOK, nil)
}

// decode checks the status and unmarshals the body into v. Error bodies
// carry {"error": "..."}.
func decode(resp *http.Response, want int, v any) error {
	if resp.StatusCode != want {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func fromArtifact(req capture.UploadRequest) Recording {
	rec := Recording{Title: req.Title, Client: req.Client}
	if a := req.Artifact; a != nil {
		rec.Data = a.Data
		rec.MimeType = a.MimeType
		rec.Duration = a.Duration
		rec.CreatedAt = a.CreatedAt
	}
	return rec
}
