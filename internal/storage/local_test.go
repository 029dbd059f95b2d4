package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "https://rec.example.com/")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"videos/abc.webm", "videos/abc.webm", false},
		{"videos//abc.json", "videos/abc.json", false},
		{"videos/../thumbnails/x.jpg", "thumbnails/x.jpg", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"videos/../../secret", "", true},
		{`videos\abc`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("cleanKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPath) {
				t.Errorf("error should wrap ErrInvalidPath: %v", err)
			}
			if got != tt.want {
				t.Errorf("cleanKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestUploadDownload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Upload(ctx, "videos/abc.webm", strings.NewReader("webm-bytes"), UploadOptions{ContentType: "video/webm"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if n != 10 {
		t.Errorf("Upload() wrote %d bytes, want 10", n)
	}

	data, err := s.Download(ctx, "videos/abc.webm")
	if err != nil || string(data) != "webm-bytes" {
		t.Errorf("Download() = %q, %v", data, err)
	}

	if _, err := s.Download(ctx, "videos/missing.webm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing download err = %v, want ErrNotFound", err)
	}
}

func TestUploadDoesNotUpsertByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "videos/abc.json", strings.NewReader("v1"), UploadOptions{}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Upload(ctx, "videos/abc.json", strings.NewReader("v2"), UploadOptions{})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second upload err = %v, want ErrExists", err)
	}
	if _, err := s.Upload(ctx, "videos/abc.json", strings.NewReader("v3"), UploadOptions{Upsert: true}); err != nil {
		t.Fatalf("upsert err = %v", err)
	}
	if data, _ := s.Download(ctx, "videos/abc.json"); string(data) != "v3" {
		t.Errorf("content = %q, want v3", data)
	}
}

func TestUploadCancelled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Upload(ctx, "videos/abc.webm", strings.NewReader("x"), UploadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "videos", "abc.webm")); !os.IsNotExist(err) {
		t.Error("cancelled upload left an object behind")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.json", "new.json", "mid.json"} {
		key := "videos/" + name
		if _, err := s.Upload(ctx, key, strings.NewReader("{}"), UploadOptions{}); err != nil {
			t.Fatal(err)
		}
		offset := map[int]time.Duration{0: 0, 1: 2 * time.Hour, 2: time.Hour}[i]
		full := filepath.Join(s.Root(), "videos", name)
		if err := os.Chtimes(full, base.Add(offset), base.Add(offset)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(s.Root(), "videos", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	objs, err := s.List(ctx, "videos")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, o := range objs {
		names = append(names, o.Name)
	}
	if strings.Join(names, ",") != "new.json,mid.json,old.json" {
		t.Errorf("List() order = %v", names)
	}
	if objs[0].Path != "videos/new.json" || objs[0].ContentType != "application/json" {
		t.Errorf("object = %+v", objs[0])
	}

	empty, err := s.List(ctx, "thumbnails")
	if err != nil || len(empty) != 0 {
		t.Errorf("missing prefix: %v, %v", empty, err)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"videos/a.webm", "videos/a.json"} {
		if _, err := s.Upload(ctx, key, strings.NewReader("x"), UploadOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Remove(ctx, "videos/a.webm", "videos/a.json", "thumbnails/a.jpg"); err != nil {
		t.Fatalf("Remove() = %v", err)
	}
	objs, _ := s.List(ctx, "videos")
	if len(objs) != 0 {
		t.Errorf("objects left: %v", objs)
	}

	if err := s.Remove(ctx, "../escape"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("invalid path err = %v", err)
	}
}

func TestOpenSeekable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upload(ctx, "videos/a.webm", strings.NewReader("0123456789"), UploadOptions{}); err != nil {
		t.Fatal(err)
	}

	f, obj, err := s.Open(ctx, "videos/a.webm")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if obj.Size != 10 || obj.ContentType != "video/webm" {
		t.Errorf("object = %+v", obj)
	}
	if _, err := f.Seek(5, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, _ := io.ReadAll(f)
	if string(rest) != "56789" {
		t.Errorf("after seek = %q", rest)
	}

	if _, _, err := s.Open(ctx, "videos"); !errors.Is(err, ErrNotFound) {
		t.Errorf("opening a directory: %v, want ErrNotFound", err)
	}
}

func TestPublicURL(t *testing.T) {
	s := newTestStore(t)
	if got := s.PublicURL("videos/abc.webm"); got != "https://rec.example.com/objects/videos/abc.webm" {
		t.Errorf("PublicURL() = %q", got)
	}
	if got := s.PublicURL("../x"); got != "" {
		t.Errorf("PublicURL(invalid) = %q, want empty", got)
	}
}
