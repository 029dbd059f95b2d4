package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"screencast/internal/filesystem"
	"screencast/internal/logging"
	"screencast/internal/metrics"
)

// LocalStore stores objects as files under Root.
type LocalStore struct {
	root    string
	baseURL string
	retry   filesystem.RetryConfig
}

// NewLocalStore creates the root directory if needed. baseURL is the
// public origin; objects are served from {baseURL}/objects/{path}.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", abs, err)
	}
	return &LocalStore{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   filesystem.DefaultRetryConfig(),
	}, nil
}

// Root returns the absolute storage directory.
func (s *LocalStore) Root() string { return s.root }

// cleanKey validates an object key and returns it in canonical form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return cleaned, nil
}

func (s *LocalStore) resolve(key string) (string, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func record(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StorageOperationsTotal.WithLabelValues(op, status).Inc()
}

// Upload writes r to key.
func (s *LocalStore) Upload(ctx context.Context, key string, r io.Reader, opts UploadOptions) (n int64, err error) {
	defer func() { record("upload", err) }()

	_, full, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err = filesystem.WriteFile(full, &ctxReader{ctx: ctx, r: r}, opts.Upsert, s.retry)
	if errors.Is(err, os.ErrExist) {
		return 0, fmt.Errorf("%w: %s", ErrExists, key)
	}
	if err != nil {
		return 0, fmt.Errorf("uploading %s: %w", key, err)
	}
	metrics.StorageBytesWritten.Add(float64(n))
	logging.Debug("Stored %s (%d bytes)", key, n)
	return n, nil
}

// Download reads the whole object.
func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	f, _, err := s.Open(ctx, key)
	if err != nil {
		record("download", err)
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, &ctxReader{ctx: ctx, r: f})
	record("download", err)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Open returns a seekable reader for key along with its description.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadSeekCloser, Object, error) {
	cleaned, full, err := s.resolve(key)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := filesystem.OpenWithRetry(full, s.retry)
	if errors.Is(err, os.ErrNotExist) {
		return nil, Object{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, Object{}, fmt.Errorf("opening %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, Object{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, describe(cleaned, info), nil
}

// List returns the regular files directly under prefix, newest first. A
// missing prefix lists as empty.
func (s *LocalStore) List(ctx context.Context, prefix string) (objs []Object, err error) {
	defer func() { record("list", err) }()

	cleaned, full, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := filesystem.ReadDirWithRetry(full, s.retry)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		objs = append(objs, describe(path.Join(cleaned, e.Name()), info))
	}

	sort.SliceStable(objs, func(i, j int) bool {
		return objs[i].CreatedAt.After(objs[j].CreatedAt)
	})
	return objs, nil
}

// Remove deletes each path, continuing past failures.
func (s *LocalStore) Remove(_ context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		_, full, err := s.resolve(key)
		if err == nil {
			err = filesystem.RemoveWithRetry(full, s.retry)
		}
		record("remove", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// PublicURL returns the URL the object is served at.
func (s *LocalStore) PublicURL(key string) string {
	cleaned, err := cleanKey(key)
	if err != nil {
		return ""
	}
	return s.baseURL + "/objects/" + cleaned
}

func describe(key string, info os.FileInfo) Object {
	return Object{
		Path:        key,
		Name:        path.Base(key),
		Size:        info.Size(),
		ContentType: ContentType(key),
		CreatedAt:   info.ModTime(),
	}
}

// ContentType guesses the MIME type from the key's extension.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".webm":
		return "video/webm"
	case ".json":
		return "application/json"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ctxReader stops a copy when ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
