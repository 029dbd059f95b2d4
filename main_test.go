package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"screencast/internal/catalog"
	"screencast/internal/handlers"
	"screencast/internal/middleware"
	"screencast/internal/playback"
	"screencast/internal/startup"
	"screencast/internal/storage"
	"screencast/internal/upload"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newTestHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "http://cast.test")
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New(catalog.KindBlobs, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	config := &startup.Config{BaseURL: "http://cast.test", MaxUploadSize: 1 << 20, Persistence: catalog.KindBlobs}
	return handlers.New(playback.NewService(cat), upload.NewPublisher(store, cat, nil, config.BaseURL), store, nil, config)
}

func TestSetupRouter(t *testing.T) {
	router := setupRouter(newTestHandlers(t))

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"/v/{shareId}":       false,
		"/api/recordings":    false,
		"/objects/{path:.+}": false,
	}
	for _, r := range routes {
		if _, ok := want[r.Path]; ok {
			want[r.Path] = true
		}
	}
	for path, found := range want {
		if !found {
			t.Errorf("route %s not registered", path)
		}
	}
}

func TestMiddlewareChainRecordsMetrics(t *testing.T) {
	router := setupRouter(newTestHandlers(t))
	handler := middleware.Metrics(router)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/videos", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	mw := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body := mw.Body.String()
	if !strings.Contains(body, `screencast_http_requests_total{method="GET",path="/api/videos",status="200"}`) {
		t.Error("request counter for /api/videos not exported")
	}
	if !strings.Contains(body, "screencast_memory_ingest_paused") {
		t.Error("memory gauge not exported")
	}
}
