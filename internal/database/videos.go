package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const videoColumns = `id, share_id, title, description, file_path, thumbnail_path, duration,
	file_size, views, status, client_name, account_type, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var (
		v         Video
		status    string
		tags      string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&v.ID, &v.ShareID, &v.Title, &v.Description, &v.FilePath, &v.ThumbnailPath,
		&v.Duration, &v.FileSize, &v.Views, &status, &v.ClientName, &v.AccountType, &tags,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	v.Status = VideoStatus(status)
	v.CreatedAt = time.UnixMilli(createdAt)
	v.UpdatedAt = time.UnixMilli(updatedAt)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &v.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for %s: %w", v.ShareID, err)
		}
	}
	return &v, nil
}

// InsertVideo adds a video. A taken id or share id fails with ErrDuplicate.
func (d *Database) InsertVideo(ctx context.Context, v *Video) (err error) {
	start := time.Now()
	defer func() { recordQuery("insert_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if v.Status == "" {
		v.Status = StatusProcessing
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	v.UpdatedAt = v.CreatedAt

	tags := []string{}
	if v.Tags != nil {
		tags = v.Tags
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ShareID, v.Title, v.Description, v.FilePath, v.ThumbnailPath, v.Duration,
		v.FileSize, v.Views, string(v.Status), v.ClientName, v.AccountType, string(tagJSON),
		v.CreatedAt.UnixMilli(), v.UpdatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: video %s", ErrDuplicate, v.ShareID)
	}
	return err
}

// GetVideoByShareID returns the video with shareID, or ErrNotFound.
func (d *Database) GetVideoByShareID(ctx context.Context, shareID string) (v *Video, err error) {
	start := time.Now()
	defer func() { recordQuery("get_video", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE share_id = ?`, shareID)
	v, err = scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, shareID)
	}
	return v, err
}

// ListVideos returns every video, newest first.
func (d *Database) ListVideos(ctx context.Context) (videos []Video, err error) {
	start := time.Now()
	defer func() { recordQuery("list_videos", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// DeleteVideoByShareID removes a video and, through the foreign key, its
// comments. It returns the deleted row so callers can remove its objects.
func (d *Database) DeleteVideoByShareID(ctx context.Context, shareID string) (v *Video, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	v, err = scanVideo(tx.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE share_id = ?`, shareID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, shareID)
	}
	if err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, v.ID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// IncrementViews adds one to the view counter.
func (d *Database) IncrementViews(ctx context.Context, shareID string) (err error) {
	start := time.Now()
	defer func() { recordQuery("increment_views", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `UPDATE videos SET views = views + 1 WHERE share_id = ?`, shareID)
	if err != nil {
		return err
	}
	return requireRow(res, "video "+shareID)
}

// UpdateVideoStatus sets the status and, when size > 0, the stored size.
func (d *Database) UpdateVideoStatus(ctx context.Context, shareID string, status VideoStatus, size int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_status", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE videos
		SET status = ?,
			file_size = CASE WHEN ? > 0 THEN ? ELSE file_size END,
			updated_at = ?
		WHERE share_id = ?
	`, string(status), size, size, time.Now().UnixMilli(), shareID)
	if err != nil {
		return err
	}
	return requireRow(res, "video "+shareID)
}

// SetThumbnailPath records the object key of a video's thumbnail.
func (d *Database) SetThumbnailPath(ctx context.Context, shareID, path string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_thumbnail", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `UPDATE videos SET thumbnail_path = ?, updated_at = ? WHERE share_id = ?`,
		path, time.Now().UnixMilli(), shareID)
	if err != nil {
		return err
	}
	return requireRow(res, "video "+shareID)
}

// GetStats returns catalog totals.
func (d *Database) GetStats(ctx context.Context) (s Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM videos),
			(SELECT COUNT(*) FROM comments),
			(SELECT COALESCE(SUM(views), 0) FROM videos),
			(SELECT COALESCE(SUM(file_size), 0) FROM videos)
	`).Scan(&s.Videos, &s.Comments, &s.Views, &s.Bytes)
	return s, err
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}
