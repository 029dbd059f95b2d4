package upload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"screencast/internal/catalog"
	"screencast/internal/database"
	"screencast/internal/media"
	"screencast/internal/storage"
)

type frameStub struct{ err error }

func (f frameStub) ExtractFrame(context.Context, []byte, time.Duration) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 36)), nil
}

type progressLog struct {
	mu   sync.Mutex
	seen []string
}

func (p *progressLog) report(n int) {
	p.mu.Lock()
	p.seen = append(p.seen, fmt.Sprint(n))
	p.mu.Unlock()
}

func (p *progressLog) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.seen, ",")
}

// ids returns a share id source yielding list in order, then repeating
// the last entry.
func ids(list ...string) func() string {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := list[0]
		if len(list) > 1 {
			list = list[1:]
		}
		return id
	}
}

type env struct {
	store *storage.LocalStore
	cat   catalog.Catalog
	pub   *Publisher
}

func newEnv(t *testing.T, kind string, frames media.FrameExtractor) *env {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "objects"), "http://cast.test")
	if err != nil {
		t.Fatal(err)
	}
	var db *database.Database
	if kind == catalog.KindRecords {
		db, err = database.New(context.Background(), filepath.Join(dir, "screencast.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
	}
	cat, err := catalog.New(kind, store, db)
	if err != nil {
		t.Fatal(err)
	}
	var thumbs *media.Generator
	if frames != nil {
		thumbs = media.NewGenerator(frames, true)
	}
	return &env{store: store, cat: cat, pub: NewPublisher(store, cat, thumbs, "http://cast.test/")}
}

var kinds = []string{catalog.KindRecords, catalog.KindBlobs}

func TestPublish(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			e := newEnv(t, kind, frameStub{})
			e.pub.newID = ids("q1review")
			progress := &progressLog{}

			res, err := e.pub.Publish(context.Background(), Recording{
				Data:     []byte("ten second webm"),
				MimeType: "video/webm;codecs=vp9,opus",
				Title:    "Q1 Review",
				Client:   "Acme",
				Duration: 10,
			}, progress.report)
			if err != nil {
				t.Fatal(err)
			}
			if res.ShareID != "q1review" || res.ShareURL != "http://cast.test/v/q1review" {
				t.Errorf("result = %+v", res)
			}
			if res.VideoURL != "http://cast.test/objects/videos/q1review.webm" {
				t.Errorf("VideoURL = %q", res.VideoURL)
			}
			if got := progress.String(); got != "10,70,85,90,100" {
				t.Errorf("progress = %s", got)
			}

			v, err := e.cat.GetVideo(context.Background(), "q1review")
			if err != nil {
				t.Fatal(err)
			}
			if v.Title != "Q1 Review" || v.Client != "Acme" || v.Duration != 10 || v.FileSize != 15 {
				t.Errorf("video = %+v", v)
			}
			if v.ThumbnailURL != "http://cast.test/objects/thumbnails/q1review.jpg" {
				t.Errorf("ThumbnailURL = %q", v.ThumbnailURL)
			}
			if _, err := e.store.Download(context.Background(), catalog.ThumbnailPath("q1review")); err != nil {
				t.Errorf("thumbnail not stored: %v", err)
			}
		})
	}
}

func TestPublishRetriesShareIDCollisions(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			e := newEnv(t, kind, nil)
			ctx := context.Background()

			e.pub.newID = ids("taken")
			if _, err := e.pub.Publish(ctx, Recording{Data: []byte("first")}, nil); err != nil {
				t.Fatal(err)
			}

			e.pub.newID = ids("taken", "taken", "fresh")
			res, err := e.pub.Publish(ctx, Recording{Data: []byte("second"), Title: "Second"}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if res.ShareID != "fresh" {
				t.Errorf("ShareID = %q, want fresh", res.ShareID)
			}

			// The first recording is untouched.
			data, err := e.store.Download(ctx, catalog.VideoPath("taken"))
			if err != nil || string(data) != "first" {
				t.Errorf("taken = %q, %v", data, err)
			}

			e.pub.newID = ids("taken")
			if _, err := e.pub.Publish(ctx, Recording{Data: []byte("third")}, nil); !errors.Is(err, ErrShareIDExhausted) {
				t.Errorf("err = %v, want ErrShareIDExhausted", err)
			}
		})
	}
}

func TestPublishThumbnailFailureIsNotFatal(t *testing.T) {
	e := newEnv(t, catalog.KindBlobs, frameStub{err: errors.New("no video stream")})
	e.pub.newID = ids("nothumb")
	progress := &progressLog{}

	if _, err := e.pub.Publish(context.Background(), Recording{Data: []byte("x"), Duration: 1}, progress.report); err != nil {
		t.Fatal(err)
	}
	if got := progress.String(); got != "10,70,85,90,100" {
		t.Errorf("progress = %s", got)
	}
	v, err := e.cat.GetVideo(context.Background(), "nothumb")
	if err != nil {
		t.Fatal(err)
	}
	if v.ThumbnailURL != "" {
		t.Errorf("ThumbnailURL = %q, want empty", v.ThumbnailURL)
	}
}

func TestPublishEmpty(t *testing.T) {
	e := newEnv(t, catalog.KindBlobs, nil)
	if _, err := e.pub.Publish(context.Background(), Recording{}, nil); !errors.Is(err, ErrEmptyArtifact) {
		t.Errorf("err = %v, want ErrEmptyArtifact", err)
	}
}

// failingComplete wraps a catalog whose metadata write fails.
type failingComplete struct {
	catalog.Catalog
	failed []string
}

func (f *failingComplete) Complete(context.Context, *catalog.Draft) error {
	return errors.New("disk full")
}

func (f *failingComplete) Fail(ctx context.Context, shareID string) error {
	f.failed = append(f.failed, shareID)
	return f.Catalog.Fail(ctx, shareID)
}

func TestPublishMetadataFailureRemovesObjects(t *testing.T) {
	e := newEnv(t, catalog.KindRecords, frameStub{})
	broken := &failingComplete{Catalog: e.cat}
	pub := NewPublisher(e.store, broken, media.NewGenerator(frameStub{}, true), "http://cast.test")
	pub.newID = ids("doomed")
	progress := &progressLog{}

	_, err := pub.Publish(context.Background(), Recording{Data: []byte("x"), Duration: 3}, progress.report)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v", err)
	}
	if got := progress.String(); got != "10,70,85" {
		t.Errorf("progress = %s", got)
	}
	for _, key := range []string{catalog.VideoPath("doomed"), catalog.ThumbnailPath("doomed")} {
		if _, err := e.store.Download(context.Background(), key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("%s survived: %v", key, err)
		}
	}
	if len(broken.failed) != 1 || broken.failed[0] != "doomed" {
		t.Errorf("failed = %v", broken.failed)
	}
	videos, _ := e.cat.ListVideos(context.Background())
	if len(videos) != 1 || videos[0].Status != catalog.StatusFailed {
		t.Errorf("videos = %+v", videos)
	}
}

func TestNewShareID(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewShareID()
		if !pattern.MatchString(id) || !catalog.ValidShareID(id) {
			t.Fatalf("share id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 49 {
		t.Errorf("only %d distinct ids in 50", len(seen))
	}
}

func TestShareURL(t *testing.T) {
	tests := []struct{ base, want string }{
		{"https://cast.example.com", "https://cast.example.com/v/abc"},
		{"https://cast.example.com/", "https://cast.example.com/v/abc"},
		{"", "/v/abc"},
	}
	for _, tt := range tests {
		if got := ShareURL(tt.base, "abc"); got != tt.want {
			t.Errorf("ShareURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
