package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"screencast/internal/catalog"
	"screencast/internal/logging"
	"screencast/internal/media"
	"screencast/internal/metrics"
	"screencast/internal/storage"
)

// Progress milestones, in percent.
const (
	ProgressStarted     = 10
	ProgressTransferred = 70
	ProgressThumbnail   = 85
	ProgressMetadata    = 90
	ProgressDone        = 100
)

// maxShareIDAttempts bounds retries after a share id collision.
const maxShareIDAttempts = 3

var (
	// ErrEmptyArtifact is returned for a recording with no bytes.
	ErrEmptyArtifact = errors.New("recording is empty")
	// ErrShareIDExhausted is returned when every share id attempt collided.
	ErrShareIDExhausted = errors.New("could not allocate a share id")
)

// NewShareID returns a short random token: the first group of a UUID.
func NewShareID() string {
	id := uuid.NewString()
	return id[:strings.IndexByte(id, '-')]
}

// ShareURL joins the deployment origin and the share id.
func ShareURL(baseURL, shareID string) string {
	return strings.TrimRight(baseURL, "/") + "/v/" + shareID
}

// Recording is one artifact to publish.
type Recording struct {
	Data      []byte
	MimeType  string
	Title     string
	Client    string
	Duration  int
	CreatedAt time.Time
}

// Result identifies a published recording.
type Result struct {
	ShareID  string `json:"shareId"`
	ShareURL string `json:"shareUrl"`
	VideoURL string `json:"videoUrl"`
}

// Publisher stores recordings and records them in the catalog.
type Publisher struct {
	store   storage.Store
	catalog catalog.Catalog
	thumbs  *media.Generator
	baseURL string
	newID   func() string
}

// NewPublisher returns a publisher. thumbs may be nil.
func NewPublisher(store storage.Store, cat catalog.Catalog, thumbs *media.Generator, baseURL string) *Publisher {
	return &Publisher{
		store:   store,
		catalog: cat,
		thumbs:  thumbs,
		baseURL: baseURL,
		newID:   NewShareID,
	}
}

// Publish runs the whole upload. progress may be nil. On error nothing is
// left in the catalog in ready state and partial objects are removed.
func (p *Publisher) Publish(ctx context.Context, rec Recording, progress func(int)) (res *Result, err error) {
	if progress == nil {
		progress = func(int) {}
	}
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.UploadsTotal.WithLabelValues(status).Inc()
		metrics.UploadDuration.Observe(time.Since(start).Seconds())
	}()

	if len(rec.Data) == 0 {
		return nil, ErrEmptyArtifact
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	contentType := "video/webm"
	if base, _, _ := strings.Cut(rec.MimeType, ";"); strings.HasPrefix(base, "video/") {
		contentType = strings.TrimSpace(base)
	}
	progress(ProgressStarted)

	draft, err := p.storeVideo(ctx, rec, contentType)
	if err != nil {
		return nil, err
	}
	metrics.UploadBytes.Add(float64(len(rec.Data)))
	progress(ProgressTransferred)

	if p.thumbs.IsEnabled() {
		draft.Thumbnail = p.storeThumbnail(ctx, draft.ShareID, rec)
	}
	progress(ProgressThumbnail)

	if err := p.catalog.Complete(ctx, draft); err != nil {
		p.abandon(draft)
		return nil, fmt.Errorf("saving metadata: %w", err)
	}
	progress(ProgressMetadata)

	logging.Info("Published recording %s (%d bytes, %ds)", draft.ShareID, draft.Size, draft.Duration)
	progress(ProgressDone)
	return &Result{
		ShareID:  draft.ShareID,
		ShareURL: ShareURL(p.baseURL, draft.ShareID),
		VideoURL: p.store.PublicURL(catalog.VideoPath(draft.ShareID)),
	}, nil
}

// storeVideo claims a share id and transfers the binary, drawing a fresh
// id when either the catalog or the store already has one.
func (p *Publisher) storeVideo(ctx context.Context, rec Recording, contentType string) (*catalog.Draft, error) {
	for attempt := 1; attempt <= maxShareIDAttempts; attempt++ {
		draft := &catalog.Draft{
			ShareID:   p.newID(),
			Title:     rec.Title,
			Client:    rec.Client,
			Duration:  rec.Duration,
			Size:      int64(len(rec.Data)),
			CreatedAt: rec.CreatedAt,
		}

		if err := p.catalog.Reserve(ctx, draft); err != nil {
			if errors.Is(err, catalog.ErrExists) {
				p.collision(draft.ShareID, attempt)
				continue
			}
			return nil, fmt.Errorf("reserving share id: %w", err)
		}

		_, err := p.store.Upload(ctx, catalog.VideoPath(draft.ShareID), bytes.NewReader(rec.Data), storage.UploadOptions{
			ContentType: contentType,
		})
		if err == nil {
			return draft, nil
		}
		p.markFailed(draft.ShareID)
		if errors.Is(err, storage.ErrExists) {
			p.collision(draft.ShareID, attempt)
			continue
		}
		return nil, fmt.Errorf("uploading video: %w", err)
	}
	return nil, ErrShareIDExhausted
}

func (p *Publisher) collision(shareID string, attempt int) {
	metrics.ShareIDCollisions.Inc()
	metrics.UploadsTotal.WithLabelValues("collision").Inc()
	logging.Warn("Share id %s already taken (attempt %d/%d)", shareID, attempt, maxShareIDAttempts)
}

// storeThumbnail returns the thumbnail's key, or "" when it could not be
// made. Failures never fail the upload.
func (p *Publisher) storeThumbnail(ctx context.Context, shareID string, rec Recording) string {
	thumb, err := p.thumbs.Generate(ctx, rec.Data, rec.Duration)
	if err != nil {
		logging.Warn("Thumbnail for %s skipped: %v", shareID, err)
		return ""
	}
	key := catalog.ThumbnailPath(shareID)
	if _, err := p.store.Upload(ctx, key, bytes.NewReader(thumb), storage.UploadOptions{
		ContentType: "image/jpeg",
		Upsert:      true,
	}); err != nil {
		logging.Warn("Thumbnail upload for %s failed: %v", shareID, err)
		return ""
	}
	return key
}

// abandon removes what was stored for a draft that could not be
// completed. It uses a fresh context so cancellation does not leak objects.
func (p *Publisher) abandon(d *catalog.Draft) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	paths := []string{catalog.VideoPath(d.ShareID)}
	if d.Thumbnail != "" {
		paths = append(paths, d.Thumbnail)
	}
	if err := p.store.Remove(ctx, paths...); err != nil {
		logging.Warn("Cleanup of %s failed: %v", d.ShareID, err)
	}
	p.markFailed(d.ShareID)
}

func (p *Publisher) markFailed(shareID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.catalog.Fail(ctx, shareID); err != nil {
		logging.Warn("Marking %s failed: %v", shareID, err)
	}
}
