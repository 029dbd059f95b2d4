package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"screencast/internal/logging"
	"screencast/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newRouter mirrors the server's routes closely enough to exercise Route.
func newRouter(body string) *mux.Router {
	r := mux.NewRouter()
	r.Use(Route)
	ok := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}
	r.HandleFunc("/health", ok)
	r.HandleFunc("/v/{shareId}", ok)
	r.HandleFunc("/objects/{path:.+}", ok)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos/{shareId}/comments", ok)
	api.HandleFunc("/recordings", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, body)
	}).Methods("POST")
	return r
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })
	return &buf
}

func TestLoggerRecordsRoute(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{"share page", "GET", "/v/abc12345", "", "GET /v/abc12345 /v/{shareId} abc12345 200 0 2 "},
		{"subrouter route", "GET", "/api/videos/abc12345/comments", "", "GET /api/videos/abc12345/comments /api/videos/{shareId}/comments abc12345 200 0 2 "},
		{"ingest", "POST", "/api/recordings", "webm-bytes", "POST /api/recordings /api/recordings - 201 10 2 "},
		{"unmatched", "GET", "/nope", "", "GET /nope - - 404 0 19 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			handler := Logger(LogOptions{})(newRouter("ok"))

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log %q does not contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLoggerSkips(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts LogOptions
		want bool
	}{
		{"objects skipped by default", "/objects/videos/abc12345.webm", LogOptions{}, false},
		{"objects on request", "/objects/videos/abc12345.webm", LogOptions{Objects: true}, true},
		{"health checks skipped by default", "/health", LogOptions{}, false},
		{"health checks on request", "/health", LogOptions{HealthChecks: true}, true},
		{"pages always", "/v/abc12345", LogOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			handler := Logger(tt.opts)(newRouter("ok"))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, http.NoBody))

			if logged := strings.Contains(buf.String(), "GET "+tt.path+" "); logged != tt.want {
				t.Errorf("logged = %v, want %v; output %q", logged, tt.want, buf.String())
			}
		})
	}
}

func TestAccessLineSanitizesClientFields(t *testing.T) {
	req := httptest.NewRequest("GET", "/v/abc12345", http.NoBody)
	req.Header.Set("User-Agent", "evil\r\n2026-01-01 00:00:00 forged \x1b[31m\"x\"")
	req.RemoteAddr = "192.0.2.1:1234"
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, bytes: 5}
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	got := accessLine(req, &routeInfo{template: "/v/{shareId}", shareID: "abc12345"}, sw, 12*time.Millisecond, now)

	want := `2026-03-04 05:06:07 192.0.2.1 GET /v/abc12345 /v/{shareId} abc12345 200 0 5 12 - "evil  2026-01-01 00:00:00 forged [31m""x"""`
	if got != want {
		t.Errorf("accessLine() =\n%s\nwant\n%s", got, want)
	}
}

func TestSanitizeLogField(t *testing.T) {
	got := sanitizeLogField("a\nb\r\x1b[31mc\x00d\te\x7f")
	if got != "a b [31mcd\te" {
		t.Errorf("sanitizeLogField() = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.8"}, "10.0.0.2:5000", "203.0.113.8"},
		{"remote v4", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote v6", nil, "[2001:db8::1]:1234", "2001:db8::1"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompression(t *testing.T) {
	large := strings.Repeat("<p>comment thread</p>", 100)

	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		acceptGzip   bool
		wantGzip     bool
		wantStatus   int
		responseBody string
	}{
		{"large page", "GET", "/v/abc12345", "", true, true, 200, large},
		{"small page", "GET", "/v/abc12345", "", true, false, 200, "<p>hi</p>"},
		{"client without gzip", "GET", "/v/abc12345", "", false, false, 200, large},
		{"head request", "HEAD", "/v/abc12345", "", true, false, 200, large},
		{"stored object", "GET", "/objects/videos/abc12345.webm", "", true, false, 200, large},
		{"ingest", "POST", "/api/recordings", "webm", true, false, 201, large},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(newRouter(tt.responseBody))

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip, deflate")
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			gzipped := w.Header().Get("Content-Encoding") == "gzip"
			if gzipped != tt.wantGzip {
				t.Fatalf("gzipped = %v, want %v", gzipped, tt.wantGzip)
			}
			if !gzipped {
				if tt.method != "HEAD" && w.Body.String() != tt.responseBody {
					t.Errorf("body changed: %d bytes", w.Body.Len())
				}
				return
			}
			if w.Header().Get("Vary") != "Accept-Encoding" {
				t.Error("compressed response without Vary")
			}
			gr, err := gzip.NewReader(w.Body)
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(gr)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.responseBody {
				t.Error("decompressed body differs")
			}
		})
	}
}

func TestCompressionSplitWrites(t *testing.T) {
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		for i := 0; i < 100; i++ {
			io.WriteString(w, `{"id":"abc12345"},`)
		}
	}))
	req := httptest.NewRequest("GET", "/api/videos", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(gr)
	if want := strings.Repeat(`{"id":"abc12345"},`, 100); string(got) != want {
		t.Errorf("body = %d bytes, want %d", len(got), len(want))
	}
}

func TestMetricsLabelsByRoute(t *testing.T) {
	handler := Metrics(newRouter("ok"))
	shareRoute := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v/{shareId}", "200")
	unmatched := metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	shares, misses := testutil.ToFloat64(shareRoute), testutil.ToFloat64(unmatched)

	for _, id := range []string{"aaaa1111", "bbbb2222", "cccc3333"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v/"+id, http.NoBody))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/wp-admin/setup.php", http.NoBody))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", http.NoBody))

	if got := testutil.ToFloat64(shareRoute) - shares; got != 3 {
		t.Errorf("share page count = %v, want 3", got)
	}
	if got := testutil.ToFloat64(unmatched) - misses; got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(metrics.HTTPRequestsTotal); n == 0 {
		t.Error("no request series collected")
	}
}

func TestChainSharesRouteInfo(t *testing.T) {
	buf := captureLog(t)
	handler := Compression(Logger(LogOptions{})(Metrics(newRouter("ok"))))
	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/videos/{shareId}/comments", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/videos/abc12345/comments", http.NoBody))

	if testutil.ToFloat64(counter)-before != 1 {
		t.Error("metrics did not see the matched route")
	}
	if !strings.Contains(buf.String(), " /api/videos/{shareId}/comments abc12345 ") {
		t.Errorf("log did not see the matched route: %q", buf.String())
	}
}

func BenchmarkChain(b *testing.B) {
	logging.SetOutput(io.Discard)
	defer logging.SetOutput(os.Stderr)
	handler := Compression(Logger(LogOptions{})(Metrics(newRouter(strings.Repeat("x", 4096)))))
	req := httptest.NewRequest("GET", "/v/abc12345", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
