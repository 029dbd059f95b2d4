package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"screencast/internal/database"
	"screencast/internal/logging"
	"screencast/internal/metrics"
	"screencast/internal/storage"
)

// RecordCatalog keeps videos and comments in SQLite. Binaries and
// thumbnails still live in object storage.
type RecordCatalog struct {
	db    *database.Database
	store storage.Store
}

// NewRecordCatalog creates a catalog backed by db.
func NewRecordCatalog(db *database.Database, store storage.Store) *RecordCatalog {
	return &RecordCatalog{db: db, store: store}
}

func (r *RecordCatalog) Kind() string { return KindRecords }

func (r *RecordCatalog) Features() Features {
	return Features{Views: true, CommentTypes: true}
}

// translate maps database errors onto the catalog's.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrExists, err)
	}
	return err
}

// Reserve inserts the row in processing state.
func (r *RecordCatalog) Reserve(ctx context.Context, d *Draft) error {
	if !ValidShareID(d.ShareID) {
		return fmt.Errorf("%w: %q", ErrNotFound, d.ShareID)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	err := r.db.InsertVideo(ctx, &database.Video{
		ID:         uuid.NewString(),
		ShareID:    d.ShareID,
		Title:      titleOrDefault(d.Title),
		FilePath:   VideoPath(d.ShareID),
		Duration:   d.Duration,
		Status:     database.StatusProcessing,
		ClientName: strings.TrimSpace(d.Client),
		CreatedAt:  d.CreatedAt,
	})
	return translate(err)
}

// Complete marks the row ready with its size and thumbnail.
func (r *RecordCatalog) Complete(ctx context.Context, d *Draft) error {
	if d.Thumbnail != "" {
		if err := r.db.SetThumbnailPath(ctx, d.ShareID, d.Thumbnail); err != nil {
			return translate(err)
		}
	}
	return translate(r.db.UpdateVideoStatus(ctx, d.ShareID, database.StatusReady, d.Size))
}

// Fail marks the row failed.
func (r *RecordCatalog) Fail(ctx context.Context, shareID string) error {
	return translate(r.db.UpdateVideoStatus(ctx, shareID, database.StatusFailed, 0))
}

func (r *RecordCatalog) toVideo(v *database.Video) Video {
	out := Video{
		ShareID:     v.ShareID,
		Title:       titleOrDefault(v.Title),
		Client:      v.ClientName,
		Description: v.Description,
		Duration:    v.Duration,
		FileSize:    v.FileSize,
		Views:       v.Views,
		Status:      Status(v.Status),
		CreatedAt:   v.CreatedAt,
		VideoURL:    r.store.PublicURL(v.FilePath),
	}
	if v.ThumbnailPath != "" {
		out.ThumbnailURL = r.store.PublicURL(v.ThumbnailPath)
	}
	return out
}

// ready loads a row that can be played back. Rows still processing or
// failed are not found.
func (r *RecordCatalog) ready(ctx context.Context, shareID string) (*database.Video, error) {
	if !ValidShareID(shareID) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, shareID)
	}
	v, err := r.db.GetVideoByShareID(ctx, shareID)
	if err != nil {
		return nil, translate(err)
	}
	if v.Status != database.StatusReady {
		return nil, fmt.Errorf("%w: video %s is %s", ErrNotFound, shareID, v.Status)
	}
	return v, nil
}

func (r *RecordCatalog) GetVideo(ctx context.Context, shareID string) (*Video, error) {
	v, err := r.ready(ctx, shareID)
	if err != nil {
		return nil, err
	}
	out := r.toVideo(v)
	return &out, nil
}

// ListVideos returns every row, newest first, whatever its status.
func (r *RecordCatalog) ListVideos(ctx context.Context) ([]Video, error) {
	rows, err := r.db.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	videos := make([]Video, 0, len(rows))
	for i := range rows {
		videos = append(videos, r.toVideo(&rows[i]))
	}
	return videos, nil
}

// DeleteVideo removes the row, its comments and its objects. Objects that
// cannot be removed are logged; the recording is already gone.
func (r *RecordCatalog) DeleteVideo(ctx context.Context, shareID string) error {
	if !ValidShareID(shareID) {
		return fmt.Errorf("%w: %q", ErrNotFound, shareID)
	}
	v, err := r.db.DeleteVideoByShareID(ctx, shareID)
	if err != nil {
		return translate(err)
	}
	paths := []string{v.FilePath, MetadataPath(shareID), CommentsPath(shareID)}
	if v.ThumbnailPath != "" {
		paths = append(paths, v.ThumbnailPath)
	} else {
		paths = append(paths, ThumbnailPath(shareID))
	}
	if err := r.store.Remove(ctx, paths...); err != nil {
		logging.Warn("Video %s deleted but objects remain: %v", shareID, err)
	}
	return nil
}

func (r *RecordCatalog) RecordView(ctx context.Context, shareID string) error {
	if err := r.db.IncrementViews(ctx, shareID); err != nil {
		return translate(err)
	}
	metrics.VideoViewsTotal.Inc()
	return nil
}

func fromRow(c database.Comment) Comment {
	return Comment{
		ID:        c.ID,
		UserName:  c.UserName,
		Content:   c.Content,
		Timestamp: c.TimestampSeconds,
		Type:      CommentType(c.Type),
		CreatedAt: c.CreatedAt,
	}
}

func toRow(videoID string, c Comment) database.Comment {
	return database.Comment{
		ID:               c.ID,
		VideoID:          videoID,
		UserName:         c.UserName,
		Content:          c.Content,
		TimestampSeconds: c.Timestamp,
		Type:             database.CommentType(c.Type),
		CreatedAt:        c.CreatedAt,
	}
}

func (r *RecordCatalog) ListComments(ctx context.Context, shareID string) (_ []Comment, err error) {
	defer func() { recordComment("list", err) }()

	v, err := r.ready(ctx, shareID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.ListComments(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	comments := make([]Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, fromRow(row))
	}
	return comments, nil
}

func (r *RecordCatalog) AddComment(ctx context.Context, shareID string, c Comment) (_ *Comment, err error) {
	defer func() { recordComment("add", err) }()

	v, err := r.ready(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := normalizeComment(&c, v.Duration, true); err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	row := toRow(v.ID, c)
	if err := r.db.InsertComment(ctx, &row); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *RecordCatalog) DeleteComment(ctx context.Context, shareID, commentID string) (err error) {
	defer func() { recordComment("delete", err) }()

	v, err := r.ready(ctx, shareID)
	if err != nil {
		return err
	}
	return translate(r.db.DeleteComment(ctx, v.ID, commentID))
}

func (r *RecordCatalog) ReplaceComments(ctx context.Context, shareID string, comments []Comment) (err error) {
	defer func() { recordComment("replace", err) }()

	v, err := r.ready(ctx, shareID)
	if err != nil {
		return err
	}
	rows := make([]database.Comment, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, toRow(v.ID, c))
	}
	return translate(r.db.ReplaceComments(ctx, v.ID, rows))
}

func (r *RecordCatalog) GetStats() (metrics.Stats, error) {
	s, err := r.db.GetStats(context.Background())
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		TotalVideos:   s.Videos,
		TotalComments: s.Comments,
		TotalViews:    s.Views,
		TotalBytes:    s.Bytes,
	}, nil
}
