package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func scanComment(row rowScanner) (Comment, error) {
	var (
		c         Comment
		ts        sql.NullFloat64
		typ       string
		createdAt int64
	)
	if err := row.Scan(&c.ID, &c.VideoID, &c.UserName, &c.Content, &ts, &typ, &createdAt); err != nil {
		return Comment{}, err
	}
	if ts.Valid {
		c.TimestampSeconds = &ts.Float64
	}
	c.Type = CommentType(typ)
	c.CreatedAt = time.UnixMilli(createdAt)
	return c, nil
}

// ListComments returns a video's comments ordered by timestamp, then by
// creation time. Unanchored comments sort first.
func (d *Database) ListComments(ctx context.Context, videoID string) (comments []Comment, err error) {
	start := time.Now()
	defer func() { recordQuery("list_comments", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, video_id, user_name, content, timestamp_seconds, type, created_at
		FROM comments
		WHERE video_id = ?
		ORDER BY timestamp_seconds ASC, created_at ASC
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// InsertComment adds a comment. The video must exist.
func (d *Database) InsertComment(ctx context.Context, c *Comment) (err error) {
	start := time.Now()
	defer func() { recordQuery("insert_comment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return insertComment(ctx, d.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertComment(ctx context.Context, db execer, c *Comment) error {
	if c.Type == "" {
		c.Type = CommentGeneral
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO comments (id, video_id, user_name, content, timestamp_seconds, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.VideoID, c.UserName, c.Content, nullFloat(c.TimestampSeconds), string(c.Type), c.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: comment %s", ErrDuplicate, c.ID)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: video %s", ErrNotFound, c.VideoID)
	}
	return err
}

// DeleteComment removes one comment of a video.
func (d *Database) DeleteComment(ctx context.Context, videoID, commentID string) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_comment", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ? AND video_id = ?`, commentID, videoID)
	if err != nil {
		return err
	}
	return requireRow(res, "comment "+commentID)
}

// ReplaceComments swaps a video's whole comment set in one transaction.
func (d *Database) ReplaceComments(ctx context.Context, videoID string, comments []Comment) (err error) {
	start := time.Now()
	defer func() { recordQuery("replace_comments", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM comments WHERE video_id = ?`, videoID); err != nil {
		return err
	}
	for i := range comments {
		c := comments[i]
		c.VideoID = videoID
		if err = insertComment(ctx, tx, &c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
