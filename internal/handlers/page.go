package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"screencast/internal/catalog"
	"screencast/internal/format"
	"screencast/internal/logging"
	"screencast/internal/playback"
	"screencast/internal/upload"

	"github.com/gorilla/mux"
)

type commentView struct {
	ID       string
	UserName string
	Content  string
	Type     catalog.CommentType
	Anchored bool
	Anchor   int
	Label    string
	Created  string
}

type markerView struct {
	CommentID string
	Anchor    int
	Label     string
	Left      string
	Title     string
}

// playerConfig is handed to the page script as JSON.
type playerConfig struct {
	ShareID       string                `json:"shareId"`
	Duration      int                   `json:"duration"`
	SkipSeconds   int                   `json:"skipSeconds"`
	HideDelayMs   int64                 `json:"hideDelayMs"`
	Rates         []float64             `json:"rates"`
	Shortcuts     map[string]string     `json:"shortcuts"`
	CommentTypes  []catalog.CommentType `json:"commentTypes"`
	CommentsURL   string                `json:"commentsUrl"`
	CommentsTyped bool                  `json:"commentsTyped"`
}

type pageView struct {
	Video        *catalog.Video
	ShareURL     string
	DurationText string
	CreatedText  string
	SizeText     string
	ShowViews    bool
	Comments     []commentView
	Markers      []markerView
	CommentTypes []catalog.CommentType
	Config       playerConfig
}

type notFoundView struct {
	ShareID string
}

func newPageView(page *playback.Page, baseURL string) pageView {
	v := page.Video
	view := pageView{
		Video:        v,
		ShareURL:     upload.ShareURL(baseURL, v.ShareID),
		DurationText: format.Timestamp(float64(v.Duration)),
		CreatedText:  format.Date(v.CreatedAt),
		SizeText:     format.Size(v.FileSize),
		ShowViews:    page.Features.Views,
		Config: playerConfig{
			ShareID:       v.ShareID,
			Duration:      v.Duration,
			SkipSeconds:   playback.SkipSeconds,
			HideDelayMs:   playback.ControlsHideDelay.Milliseconds(),
			Rates:         playback.Rates,
			Shortcuts:     playback.Shortcuts,
			CommentsURL:   "/api/videos/" + v.ShareID + "/comments",
			CommentsTyped: page.Features.CommentTypes,
		},
	}
	if page.Features.CommentTypes {
		view.CommentTypes = catalog.CommentTypes
		view.Config.CommentTypes = catalog.CommentTypes
	}

	byID := make(map[string]catalog.Comment, len(page.Comments))
	for _, c := range page.Comments {
		byID[c.ID] = c
		cv := commentView{
			ID:       c.ID,
			UserName: c.UserName,
			Content:  c.Content,
			Type:     c.Type,
			Created:  c.CreatedAt.UTC().Format("Jan 2, 3:04 PM"),
		}
		if anchor, ok := c.Anchor(); ok {
			cv.Anchored = true
			cv.Anchor = anchor
			cv.Label = format.Timestamp(float64(anchor))
		}
		view.Comments = append(view.Comments, cv)
	}

	for _, m := range page.Markers() {
		view.Markers = append(view.Markers, markerView{
			CommentID: m.CommentID,
			Anchor:    m.Anchor,
			Label:     format.Timestamp(float64(m.Anchor)),
			Left:      fmt.Sprintf("%.3f%%", m.Position*100),
			Title:     byID[m.CommentID].UserName + ": " + byID[m.CommentID].Content,
		})
	}
	return view
}

// PlaybackPage renders the share page for /v/{shareId}. Unknown ids get
// the not-found page with a 404.
func (h *Handlers) PlaybackPage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	shareID := mux.Vars(r)["shareId"]

	page, err := h.playback.Load(r.Context(), shareID)
	if err != nil {
		logging.Error("Loading share page %q: %v", shareID, err)
		http.Error(w, "Failed to load recording", http.StatusInternalServerError)
		return
	}

	if !page.Found {
		renderPage(w, http.StatusNotFound, "notfound.html", notFoundView{ShareID: shareID})
		return
	}

	renderPage(w, http.StatusOK, "player.html", newPageView(page, h.baseURL))
	logging.Debug("Share page %s rendered in %v (%d comments)", shareID, time.Since(start), len(page.Comments))
}

// renderPage executes into a buffer first so a template failure can still
// become a clean 500.
func renderPage(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("Rendering %s: %v", name, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Debug("Writing %s: %v", name, err)
	}
}
