package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t testing.TB) (*Database, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func newVideo(id, shareID string, created time.Time) *Video {
	return &Video{
		ID:            id,
		ShareID:       shareID,
		Title:         "Recording " + shareID,
		FilePath:      "videos/" + shareID + ".webm",
		ThumbnailPath: "thumbnails/" + shareID + ".jpg",
		Duration:      10,
		FileSize:      1024,
		ClientName:    "Acme",
		AccountType:   "enterprise",
		Tags:          []string{"demo"},
		CreatedAt:     created,
	}
}

func TestNewCreatesDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if v, err := db.GetMetadata(context.Background(), "schema_version"); err != nil || v != "1" {
		t.Errorf("schema_version = %q, %v", v, err)
	}
	if _, err := db.GetMetadata(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing metadata err = %v", err)
	}
}

func TestMigrationAddsAccountType(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")

	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = raw.Exec(`CREATE TABLE videos (
		id TEXT PRIMARY KEY,
		share_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'processing',
		client_name TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec(`INSERT INTO videos (id, share_id, title, file_path, created_at, updated_at)
		VALUES ('v1', 'old12345', 'Old', 'videos/old12345.webm', 1, 1)`); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() on old schema: %v", err)
	}
	defer db.Close()

	v, err := db.GetVideoByShareID(context.Background(), "old12345")
	if err != nil {
		t.Fatalf("reading migrated row: %v", err)
	}
	if v.AccountType != "" || v.Title != "Old" {
		t.Errorf("migrated video = %+v", v)
	}
}

func TestVideoLifecycle(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	v := newVideo("id-1", "abc12345", created)
	if err := db.InsertVideo(ctx, v); err != nil {
		t.Fatalf("InsertVideo() = %v", err)
	}

	got, err := db.GetVideoByShareID(ctx, "abc12345")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if !got.CreatedAt.Equal(created) || got.ClientName != "Acme" || len(got.Tags) != 1 {
		t.Errorf("video = %+v", got)
	}

	if err := db.UpdateVideoStatus(ctx, "abc12345", StatusReady, 2048); err != nil {
		t.Fatal(err)
	}
	if err := db.IncrementViews(ctx, "abc12345"); err != nil {
		t.Fatal(err)
	}
	if err := db.IncrementViews(ctx, "abc12345"); err != nil {
		t.Fatal(err)
	}

	got, _ = db.GetVideoByShareID(ctx, "abc12345")
	if got.Status != StatusReady || got.FileSize != 2048 || got.Views != 2 {
		t.Errorf("after updates: status=%s size=%d views=%d", got.Status, got.FileSize, got.Views)
	}

	if err := db.UpdateVideoStatus(ctx, "abc12345", StatusFailed, 0); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetVideoByShareID(ctx, "abc12345")
	if got.FileSize != 2048 {
		t.Errorf("size 0 should keep the stored size, got %d", got.FileSize)
	}
}

func TestInsertVideoDuplicateShareID(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.InsertVideo(ctx, newVideo("id-1", "abc12345", time.Now())); err != nil {
		t.Fatal(err)
	}
	err := db.InsertVideo(ctx, newVideo("id-2", "abc12345", time.Now()))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate share id err = %v, want ErrDuplicate", err)
	}
}

func TestNotFound(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"get", func() error { _, err := db.GetVideoByShareID(ctx, "missing"); return err }},
		{"delete", func() error { _, err := db.DeleteVideoByShareID(ctx, "missing"); return err }},
		{"views", func() error { return db.IncrementViews(ctx, "missing") }},
		{"status", func() error { return db.UpdateVideoStatus(ctx, "missing", StatusReady, 0) }},
		{"delete comment", func() error { return db.DeleteComment(ctx, "v", "c") }},
		{"comment on missing video", func() error {
			return db.InsertComment(ctx, &Comment{ID: "c1", VideoID: "nope", UserName: "A", Content: "x"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListVideosNewestFirst(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, share := range []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"} {
		if err := db.InsertVideo(ctx, newVideo("id-"+share, share, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	videos, err := db.ListVideos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 3 || videos[0].ShareID != "cccccccc" || videos[2].ShareID != "aaaaaaaa" {
		t.Errorf("order = %v", videos)
	}
}

func TestCommentsOrderedAndCascade(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	if err := db.InsertVideo(ctx, newVideo("vid", "abc12345", time.Now())); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []Comment{
		{ID: "c1", UserName: "Ann", Content: "late", TimestampSeconds: at(7)},
		{ID: "c2", UserName: "Bob", Content: "early", TimestampSeconds: at(1.5), Type: CommentIssue},
		{ID: "c3", UserName: "Cy", Content: "same second, later", TimestampSeconds: at(7)},
		{ID: "c4", UserName: "Di", Content: "unanchored"},
	} {
		c.VideoID = "vid"
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.InsertComment(ctx, &c); err != nil {
			t.Fatal(err)
		}
	}

	comments, err := db.ListComments(ctx, "vid")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	if len(ids) != 4 || ids[0] != "c4" || ids[1] != "c2" || ids[2] != "c1" || ids[3] != "c3" {
		t.Errorf("order = %v, want [c4 c2 c1 c3]", ids)
	}
	if comments[0].TimestampSeconds != nil {
		t.Errorf("unanchored comment read back with timestamp %v", *comments[0].TimestampSeconds)
	}
	if comments[1].TimestampSeconds == nil || *comments[1].TimestampSeconds != 1.5 {
		t.Errorf("timestamp = %v, want 1.5", comments[1].TimestampSeconds)
	}
	if comments[2].Type != CommentGeneral {
		t.Errorf("default type = %q", comments[2].Type)
	}

	if err := db.DeleteComment(ctx, "vid", "c1"); err != nil {
		t.Fatal(err)
	}

	deleted, err := db.DeleteVideoByShareID(ctx, "abc12345")
	if err != nil {
		t.Fatal(err)
	}
	if deleted.FilePath != "videos/abc12345.webm" {
		t.Errorf("deleted = %+v", deleted)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Videos != 0 || stats.Comments != 0 {
		t.Errorf("comments not cascaded: %+v", stats)
	}
}

func TestSetThumbnailPath(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	if err := db.InsertVideo(ctx, newVideo("vid", "abc12345", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := db.SetThumbnailPath(ctx, "abc12345", "thumbnails/abc12345.jpg"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetVideoByShareID(ctx, "abc12345")
	if err != nil {
		t.Fatal(err)
	}
	if v.ThumbnailPath != "thumbnails/abc12345.jpg" {
		t.Errorf("ThumbnailPath = %q", v.ThumbnailPath)
	}
	if err := db.SetThumbnailPath(ctx, "missing0", "x.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceComments(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	if err := db.InsertVideo(ctx, newVideo("vid", "abc12345", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertComment(ctx, &Comment{ID: "old", VideoID: "vid", UserName: "A", Content: "x"}); err != nil {
		t.Fatal(err)
	}

	err := db.ReplaceComments(ctx, "vid", []Comment{
		{ID: "n1", UserName: "A", Content: "one", TimestampSeconds: at(3)},
		{ID: "n2", UserName: "B", Content: "two", TimestampSeconds: at(1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	comments, _ := db.ListComments(ctx, "vid")
	if len(comments) != 2 || comments[0].ID != "n2" {
		t.Errorf("comments = %+v", comments)
	}

	// A failing insert rolls back the delete.
	err = db.ReplaceComments(ctx, "vid", []Comment{
		{ID: "dup", UserName: "A", Content: "x"},
		{ID: "dup", UserName: "A", Content: "y"},
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	comments, _ = db.ListComments(ctx, "vid")
	if len(comments) != 2 {
		t.Errorf("rollback failed, comments = %+v", comments)
	}
}

func TestCommentTypeValid(t *testing.T) {
	tests := []struct {
		typ  CommentType
		want bool
	}{
		{CommentGeneral, true},
		{CommentIssue, true},
		{CommentWin, true},
		{CommentActionItem, true},
		{"praise", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.typ.Valid(); got != tt.want {
			t.Errorf("%q.Valid() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestRecordQueryIgnoresNotFound(t *testing.T) {
	// Must not panic for any combination.
	recordQuery("get_video", time.Now(), nil)
	recordQuery("get_video", time.Now(), ErrNotFound)
	recordQuery("get_video", time.Now(), errors.New("boom"))
}

func at(seconds float64) *float64 { return &seconds }
