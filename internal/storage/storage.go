package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by a non-upsert upload over an existing object.
	ErrExists = errors.New("object already exists")
	// ErrInvalidPath is returned for keys that are empty, absolute or
	// escape the store.
	ErrInvalidPath = errors.New("invalid object path")
)

// Object describes a stored object.
type Object struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadOptions controls Upload.
type UploadOptions struct {
	ContentType string
	// Upsert replaces an existing object instead of failing with ErrExists.
	Upsert bool
}

// Store is the object storage collaborator.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader, opts UploadOptions) (int64, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Open(ctx context.Context, path string) (io.ReadSeekCloser, Object, error)
	// List returns the objects directly under prefix, newest first.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Remove deletes every path. Missing objects are ignored.
	Remove(ctx context.Context, paths ...string) error
	PublicURL(path string) string
}
