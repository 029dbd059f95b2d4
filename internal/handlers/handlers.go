package handlers

import (
	"embed"
	"html/template"
	"sync/atomic"
	"time"

	"screencast/internal/catalog"
	"screencast/internal/media"
	"screencast/internal/memory"
	"screencast/internal/playback"
	"screencast/internal/startup"
	"screencast/internal/storage"
	"screencast/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// pauser reports whether new work should be refused.
type pauser interface {
	IsPaused() bool
}

type Handlers struct {
	playback      *playback.Service
	catalog       catalog.Catalog
	publisher     *upload.Publisher
	store         storage.Store
	thumbGen      *media.Generator
	baseURL       string
	maxUploadSize int64
	persistence   string
	ingestGate    pauser

	startTime time.Time
	ready     atomic.Bool
}

func New(svc *playback.Service, pub *upload.Publisher, store storage.Store, thumbs *media.Generator, config *startup.Config) *Handlers {
	return &Handlers{
		playback:      svc,
		catalog:       svc.Catalog(),
		publisher:     pub,
		store:         store,
		thumbGen:      thumbs,
		baseURL:       config.BaseURL,
		maxUploadSize: config.MaxUploadSize,
		persistence:   config.Persistence,
		startTime:     time.Now(),
	}
}

// SetReady flips the readiness probe.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetMemoryMonitor makes ingest refuse recordings while m reports memory
// pressure.
func (h *Handlers) SetMemoryMonitor(m *memory.Monitor) {
	h.ingestGate = m
}
