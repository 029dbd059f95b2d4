package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"screencast/internal/database"
	"screencast/internal/metrics"
	"screencast/internal/storage"
)

// Persistence strategies accepted by New.
const (
	KindRecords = "records"
	KindBlobs   = "blobs"
)

// DefaultTitle is used for recordings saved without a title.
const DefaultTitle = "Untitled Recording"

var (
	// ErrNotFound is returned for unknown share ids and comment ids.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a share id is already taken.
	ErrExists = errors.New("share id already exists")
	// ErrInvalidComment is returned when a comment fails validation.
	ErrInvalidComment = errors.New("invalid comment")
)

var shareIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ValidShareID reports whether id can name a recording. Anything else is
// treated as not found, which also keeps ids out of path arithmetic.
func ValidShareID(id string) bool {
	return shareIDPattern.MatchString(id)
}

// Object keys for a recording.
func VideoPath(shareID string) string     { return "videos/" + shareID + ".webm" }
func MetadataPath(shareID string) string  { return "videos/" + shareID + ".json" }
func ThumbnailPath(shareID string) string { return "thumbnails/" + shareID + ".jpg" }
func CommentsPath(shareID string) string  { return "comments/" + shareID + ".json" }

// Status tracks a recording through publication.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// CommentType categorizes a comment. Only RecordCatalog stores it.
type CommentType string

const (
	CommentGeneral    CommentType = "comment"
	CommentIssue      CommentType = "issue"
	CommentWin        CommentType = "win"
	CommentActionItem CommentType = "action_item"
)

// CommentTypes lists the categories in display order.
var CommentTypes = []CommentType{CommentGeneral, CommentIssue, CommentWin, CommentActionItem}

// Valid reports whether t is a known category.
func (t CommentType) Valid() bool {
	return database.CommentType(t).Valid()
}

// Video is a published recording.
type Video struct {
	ShareID      string    `json:"shareId"`
	Title        string    `json:"title"`
	Client       string    `json:"client"`
	Description  string    `json:"description,omitempty"`
	Duration     int       `json:"duration"`
	FileSize     int64     `json:"fileSize"`
	Views        int       `json:"views"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

// Comment is a remark on a recording, optionally pinned to a second.
type Comment struct {
	ID        string      `json:"id"`
	UserName  string      `json:"userName"`
	Content   string      `json:"content"`
	Timestamp *float64    `json:"timestamp"`
	Type      CommentType `json:"type,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Anchor returns the whole second the comment is pinned to.
func (c Comment) Anchor() (int, bool) {
	if c.Timestamp == nil || math.IsNaN(*c.Timestamp) {
		return 0, false
	}
	return int(math.Floor(*c.Timestamp)), true
}

// Draft carries a recording's metadata through publication. Reserve sees
// the descriptive fields; Complete also sees Size and Thumbnail.
type Draft struct {
	ShareID   string
	Title     string
	Client    string
	Duration  int
	Size      int64
	Thumbnail string
	CreatedAt time.Time
}

// Features describes what the active strategy supports.
type Features struct {
	Views        bool `json:"views"`
	CommentTypes bool `json:"commentTypes"`
}

// Catalog is the persistence collaborator.
type Catalog interface {
	Kind() string
	Features() Features

	// Reserve claims d.ShareID before the binary is transferred.
	Reserve(ctx context.Context, d *Draft) error
	// Complete persists the metadata once the binary is stored.
	Complete(ctx context.Context, d *Draft) error
	// Fail marks a reserved recording as failed.
	Fail(ctx context.Context, shareID string) error

	GetVideo(ctx context.Context, shareID string) (*Video, error)
	ListVideos(ctx context.Context) ([]Video, error)
	DeleteVideo(ctx context.Context, shareID string) error
	RecordView(ctx context.Context, shareID string) error

	ListComments(ctx context.Context, shareID string) ([]Comment, error)
	AddComment(ctx context.Context, shareID string, c Comment) (*Comment, error)
	DeleteComment(ctx context.Context, shareID, commentID string) error
	// ReplaceComments overwrites the whole collection.
	ReplaceComments(ctx context.Context, shareID string, comments []Comment) error

	GetStats() (metrics.Stats, error)
}

// New builds the catalog for kind. db is only used by KindRecords.
func New(kind string, store storage.Store, db *database.Database) (Catalog, error) {
	switch kind {
	case KindRecords, "":
		if db == nil {
			return nil, errors.New("records persistence needs a database")
		}
		return NewRecordCatalog(db, store), nil
	case KindBlobs:
		return NewBlobCatalog(store), nil
	default:
		return nil, fmt.Errorf("unknown persistence %q (want %q or %q)", kind, KindRecords, KindBlobs)
	}
}

// normalizeComment validates c against a video of the given duration and
// fills in defaults. duration <= 0 means unknown.
func normalizeComment(c *Comment, duration int, typed bool) error {
	c.UserName = strings.TrimSpace(c.UserName)
	c.Content = strings.TrimSpace(c.Content)
	if c.UserName == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidComment)
	}
	if c.Content == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidComment)
	}
	if c.Timestamp != nil {
		ts := *c.Timestamp
		if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
			return fmt.Errorf("%w: timestamp %v", ErrInvalidComment, ts)
		}
		if duration > 0 && ts > float64(duration) {
			return fmt.Errorf("%w: timestamp %v is past the end (%ds)", ErrInvalidComment, ts, duration)
		}
	}
	if !typed {
		c.Type = ""
		return nil
	}
	if c.Type == "" {
		c.Type = CommentGeneral
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidComment, c.Type)
	}
	return nil
}

func recordComment(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CommentOperationsTotal.WithLabelValues(op, status).Inc()
}

func titleOrDefault(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DefaultTitle
}
