package database

import "time"

// VideoStatus tracks a recording through publication.
type VideoStatus string

const (
	StatusProcessing VideoStatus = "processing"
	StatusReady      VideoStatus = "ready"
	StatusFailed     VideoStatus = "failed"
)

// CommentType tags a comment.
type CommentType string

const (
	CommentGeneral    CommentType = "comment"
	CommentIssue      CommentType = "issue"
	CommentWin        CommentType = "win"
	CommentActionItem CommentType = "action_item"
)

// Valid reports whether t is a known comment type.
func (t CommentType) Valid() bool {
	switch t {
	case CommentGeneral, CommentIssue, CommentWin, CommentActionItem:
		return true
	}
	return false
}

type Video struct {
	ID            string      `json:"id"`
	ShareID       string      `json:"shareId"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	FilePath      string      `json:"filePath"`
	ThumbnailPath string      `json:"thumbnailPath,omitempty"`
	Duration      int         `json:"duration"`
	FileSize      int64       `json:"fileSize"`
	Views         int         `json:"views"`
	Status        VideoStatus `json:"status"`
	ClientName    string      `json:"clientName,omitempty"`
	AccountType   string      `json:"accountType,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type Comment struct {
	ID               string      `json:"id"`
	VideoID          string      `json:"videoId"`
	UserName         string      `json:"userName"`
	Content          string      `json:"content"`
	TimestampSeconds *float64    `json:"timestampSeconds"`
	Type             CommentType `json:"type"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Stats are catalog totals for metrics.
type Stats struct {
	Videos   int
	Comments int
	Views    int
	Bytes    int64
}
