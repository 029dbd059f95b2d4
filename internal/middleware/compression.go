package middleware

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
)

// Responses shorter than this go out uncompressed.
const minCompressSize = 1024

// The server's only text responses are the share pages and the JSON API.
var compressibleTypes = map[string]bool{
	"text/html":        true,
	"application/json": true,
}

var gzipWriters = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

// skipCompression reports requests whose responses are never compressed:
// stored objects are already-compressed media served with Range support,
// and an ingest answers with a few bytes after a long upload.
func skipCompression(r *http.Request) bool {
	if r.Method == http.MethodHead {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/objects/") || r.URL.Path == "/api/recordings" {
		return true
	}
	return !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// gzipWriter holds back the first minCompressSize bytes to decide whether
// compressing is worth it.
type gzipWriter struct {
	http.ResponseWriter
	status  int
	pending []byte
	decided bool
	gz      *gzip.Writer
}

func (g *gzipWriter) WriteHeader(code int) {
	if !g.decided {
		g.status = code
	}
}

func (g *gzipWriter) Write(p []byte) (int, error) {
	if g.decided {
		if g.gz != nil {
			return g.gz.Write(p)
		}
		return g.ResponseWriter.Write(p)
	}
	g.pending = append(g.pending, p...)
	if len(g.pending) >= minCompressSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// decide sends the header and the held-back bytes, compressed when the
// body is large enough and of a text type.
func (g *gzipWriter) decide() error {
	g.decided = true
	h := g.Header()
	mediaType, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
	if len(g.pending) >= minCompressSize && compressibleTypes[mediaType] && h.Get("Content-Encoding") == "" {
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		g.gz = gzipWriters.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(g.status)

	pending := g.pending
	g.pending = nil
	var err error
	if g.gz != nil {
		_, err = g.gz.Write(pending)
	} else {
		_, err = g.ResponseWriter.Write(pending)
	}
	return err
}

func (g *gzipWriter) close() {
	if !g.decided {
		_ = g.decide()
	}
	if g.gz != nil {
		_ = g.gz.Close()
		gzipWriters.Put(g.gz)
		g.gz = nil
	}
}

func (g *gzipWriter) Flush() {
	if !g.decided {
		_ = g.decide()
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression gzips share pages and API responses for clients that accept
// it.
func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}
		gw := &gzipWriter{ResponseWriter: w, status: http.StatusOK}
		defer gw.close()
		next.ServeHTTP(gw, r)
	})
}
