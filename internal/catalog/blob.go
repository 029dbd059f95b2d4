package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"screencast/internal/logging"
	"screencast/internal/metrics"
	"screencast/internal/storage"
	"screencast/internal/workers"
)

// sidecar is the JSON stored at videos/{shareId}.json.
type sidecar struct {
	Title     string    `json:"title"`
	Client    string    `json:"client"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
	ShareID   string    `json:"shareId"`
	Size      int64     `json:"size,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

// blobComment is one entry of comments/{shareId}.json.
type blobComment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Timestamp *float64  `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlobCatalog stores metadata and comments as JSON objects next to the
// recordings.
type BlobCatalog struct {
	store storage.Store

	// commentsMu serializes read-modify-write of comment files.
	commentsMu sync.Mutex
}

// NewBlobCatalog creates a catalog on store.
func NewBlobCatalog(store storage.Store) *BlobCatalog {
	return &BlobCatalog{store: store}
}

func (b *BlobCatalog) Kind() string       { return KindBlobs }
func (b *BlobCatalog) Features() Features { return Features{} }

// Reserve is a no-op: the non-upsert binary upload claims the share id.
func (b *BlobCatalog) Reserve(_ context.Context, d *Draft) error {
	if !ValidShareID(d.ShareID) {
		return fmt.Errorf("%w: %q", ErrNotFound, d.ShareID)
	}
	return nil
}

// Complete writes the sidecar.
func (b *BlobCatalog) Complete(ctx context.Context, d *Draft) error {
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	data, err := json.Marshal(sidecar{
		Title:     titleOrDefault(d.Title),
		Client:    strings.TrimSpace(d.Client),
		Duration:  d.Duration,
		CreatedAt: created.UTC(),
		ShareID:   d.ShareID,
		Size:      d.Size,
		Thumbnail: d.Thumbnail,
	})
	if err != nil {
		return err
	}
	_, err = b.store.Upload(ctx, MetadataPath(d.ShareID), bytes.NewReader(data), storage.UploadOptions{
		ContentType: "application/json",
	})
	if errors.Is(err, storage.ErrExists) {
		return fmt.Errorf("%w: %s", ErrExists, d.ShareID)
	}
	if err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// Fail has nothing to record; the uploader removes partial objects.
func (b *BlobCatalog) Fail(context.Context, string) error { return nil }

// GetVideo reads the sidecar. A recording whose sidecar is missing or
// unreadable is still playable; it is returned with default metadata.
func (b *BlobCatalog) GetVideo(ctx context.Context, shareID string) (*Video, error) {
	if !ValidShareID(shareID) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, shareID)
	}

	meta, err := b.readSidecar(ctx, shareID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) && !isDecodeError(err) {
		return nil, err
	}

	rc, obj, openErr := b.store.Open(ctx, VideoPath(shareID))
	if errors.Is(openErr, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, shareID)
	}
	if openErr != nil {
		return nil, openErr
	}
	rc.Close()

	if meta == nil {
		meta = &sidecar{ShareID: shareID, CreatedAt: obj.CreatedAt}
	}
	v := b.toVideo(shareID, meta, obj.CreatedAt)
	v.FileSize = obj.Size
	return &v, nil
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return "decoding sidecar: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de decodeError
	return errors.As(err, &de)
}

func (b *BlobCatalog) readSidecar(ctx context.Context, shareID string) (*sidecar, error) {
	data, err := b.store.Download(ctx, MetadataPath(shareID))
	if err != nil {
		return nil, err
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		metrics.SidecarDecodeErrors.Inc()
		logging.Warn("Malformed metadata for %s: %v", shareID, err)
		return nil, decodeError{err}
	}
	return &meta, nil
}

func (b *BlobCatalog) toVideo(shareID string, meta *sidecar, fallback time.Time) Video {
	created := meta.CreatedAt
	if created.IsZero() {
		created = fallback
	}
	v := Video{
		ShareID:   shareID,
		Title:     titleOrDefault(meta.Title),
		Client:    meta.Client,
		Duration:  meta.Duration,
		FileSize:  meta.Size,
		Status:    StatusReady,
		CreatedAt: created,
		VideoURL:  b.store.PublicURL(VideoPath(shareID)),
	}
	if meta.Thumbnail != "" {
		v.ThumbnailURL = b.store.PublicURL(meta.Thumbnail)
	}
	return v
}

// ListVideos lists recordings that have a readable sidecar, newest first.
func (b *BlobCatalog) ListVideos(ctx context.Context) ([]Video, error) {
	objs, err := b.store.List(ctx, "videos")
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}

	var sidecars []storage.Object
	for _, o := range objs {
		if strings.HasSuffix(o.Name, ".json") {
			sidecars = append(sidecars, o)
		}
	}

	results := make([]*Video, len(sidecars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers.ForIO(16))
	for i, o := range sidecars {
		g.Go(func() error {
			shareID := strings.TrimSuffix(o.Name, ".json")
			if !ValidShareID(shareID) {
				return nil
			}
			meta, err := b.readSidecar(gctx, shareID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if !isDecodeError(err) {
					logging.Warn("Skipping %s: %v", shareID, err)
				}
				return nil
			}
			v := b.toVideo(shareID, meta, o.CreatedAt)
			results[i] = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(results))
	for _, v := range results {
		if v != nil {
			videos = append(videos, *v)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

// DeleteVideo removes the binary, thumbnail, sidecar and comments.
func (b *BlobCatalog) DeleteVideo(ctx context.Context, shareID string) error {
	if _, err := b.GetVideo(ctx, shareID); err != nil {
		return err
	}
	b.commentsMu.Lock()
	defer b.commentsMu.Unlock()
	return b.store.Remove(ctx,
		VideoPath(shareID),
		ThumbnailPath(shareID),
		MetadataPath(shareID),
		CommentsPath(shareID),
	)
}

// RecordView is a no-op; blob storage keeps no counters.
func (b *BlobCatalog) RecordView(context.Context, string) error { return nil }

// ListComments returns the comments in timestamp order. A missing or
// malformed comments file reads as no comments.
func (b *BlobCatalog) ListComments(ctx context.Context, shareID string) (comments []Comment, err error) {
	defer func() { recordComment("list", err) }()
	if !ValidShareID(shareID) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, shareID)
	}
	comments, err = b.readComments(ctx, shareID)
	if err != nil {
		return nil, err
	}
	sortComments(comments)
	return comments, nil
}

func (b *BlobCatalog) readComments(ctx context.Context, shareID string) ([]Comment, error) {
	data, err := b.store.Download(ctx, CommentsPath(shareID))
	if errors.Is(err, storage.ErrNotFound) {
		return []Comment{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw []blobComment
	if err := json.Unmarshal(data, &raw); err != nil {
		metrics.SidecarDecodeErrors.Inc()
		logging.Warn("Malformed comments for %s: %v", shareID, err)
		return []Comment{}, nil
	}
	comments := make([]Comment, 0, len(raw))
	for _, r := range raw {
		comments = append(comments, Comment{
			ID:        r.ID,
			UserName:  r.Name,
			Content:   r.Text,
			Timestamp: r.Timestamp,
			CreatedAt: r.CreatedAt,
		})
	}
	return comments, nil
}

func (b *BlobCatalog) writeComments(ctx context.Context, shareID string, comments []Comment) error {
	raw := make([]blobComment, 0, len(comments))
	for _, c := range comments {
		raw = append(raw, blobComment{
			ID:        c.ID,
			Name:      c.UserName,
			Text:      c.Content,
			Timestamp: c.Timestamp,
			CreatedAt: c.CreatedAt,
		})
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	_, err = b.store.Upload(ctx, CommentsPath(shareID), bytes.NewReader(data), storage.UploadOptions{
		ContentType: "application/json",
		Upsert:      true,
	})
	if err != nil {
		return fmt.Errorf("writing comments: %w", err)
	}
	return nil
}

// AddComment appends c and rewrites the whole collection.
func (b *BlobCatalog) AddComment(ctx context.Context, shareID string, c Comment) (_ *Comment, err error) {
	defer func() { recordComment("add", err) }()

	v, err := b.GetVideo(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := normalizeComment(&c, v.Duration, false); err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	b.commentsMu.Lock()
	defer b.commentsMu.Unlock()

	comments, err := b.readComments(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := b.writeComments(ctx, shareID, append(comments, c)); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteComment removes one comment and rewrites the collection.
func (b *BlobCatalog) DeleteComment(ctx context.Context, shareID, commentID string) (err error) {
	defer func() { recordComment("delete", err) }()
	if !ValidShareID(shareID) {
		return fmt.Errorf("%w: %q", ErrNotFound, shareID)
	}

	b.commentsMu.Lock()
	defer b.commentsMu.Unlock()

	comments, err := b.readComments(ctx, shareID)
	if err != nil {
		return err
	}
	kept := comments[:0]
	for _, c := range comments {
		if c.ID != commentID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(comments) {
		return fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
	}
	return b.writeComments(ctx, shareID, kept)
}

// ReplaceComments overwrites the collection with comments.
func (b *BlobCatalog) ReplaceComments(ctx context.Context, shareID string, comments []Comment) (err error) {
	defer func() { recordComment("replace", err) }()
	if !ValidShareID(shareID) {
		return fmt.Errorf("%w: %q", ErrNotFound, shareID)
	}
	b.commentsMu.Lock()
	defer b.commentsMu.Unlock()
	return b.writeComments(ctx, shareID, comments)
}

// GetStats counts sidecars, stored bytes and comments.
func (b *BlobCatalog) GetStats() (metrics.Stats, error) {
	ctx := context.Background()
	var s metrics.Stats

	videos, err := b.store.List(ctx, "videos")
	if err != nil {
		return s, err
	}
	for _, o := range videos {
		switch {
		case strings.HasSuffix(o.Name, ".json"):
			s.TotalVideos++
		case strings.HasSuffix(o.Name, ".webm"):
			s.TotalBytes += o.Size
		}
	}

	files, err := b.store.List(ctx, "comments")
	if err != nil {
		return s, err
	}
	for _, o := range files {
		shareID := strings.TrimSuffix(o.Name, ".json")
		if !ValidShareID(shareID) {
			continue
		}
		comments, err := b.readComments(ctx, shareID)
		if err != nil {
			return s, err
		}
		s.TotalComments += len(comments)
	}
	return s, nil
}

// sortComments orders by anchor, unanchored first, then by creation time.
func sortComments(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		switch {
		case a.Timestamp == nil && b.Timestamp != nil:
			return true
		case a.Timestamp != nil && b.Timestamp == nil:
			return false
		case a.Timestamp != nil && *a.Timestamp != *b.Timestamp:
			return *a.Timestamp < *b.Timestamp
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
