package playback

import (
	"context"
	"errors"

	"screencast/internal/catalog"
	"screencast/internal/logging"
)

// Page is everything the share page shows.
type Page struct {
	ShareID  string
	Found    bool
	Video    *catalog.Video
	Comments []catalog.Comment
	Features catalog.Features
}

// Service loads pages from the active catalog.
type Service struct {
	catalog catalog.Catalog
}

// NewService returns a service over cat.
func NewService(cat catalog.Catalog) *Service {
	return &Service{catalog: cat}
}

// Catalog returns the underlying catalog, which also persists comments.
func (s *Service) Catalog() catalog.Catalog { return s.catalog }

// Load resolves shareID. Unknown ids return a page with Found false. The
// view counter and the comment thread are optional: their failures are
// logged and the page is served without them.
func (s *Service) Load(ctx context.Context, shareID string) (*Page, error) {
	page := &Page{ShareID: shareID, Features: s.catalog.Features(), Comments: []catalog.Comment{}}

	video, err := s.catalog.GetVideo(ctx, shareID)
	if errors.Is(err, catalog.ErrNotFound) {
		return page, nil
	}
	if err != nil {
		return nil, err
	}
	page.Found = true
	page.Video = video

	if page.Features.Views {
		if err := s.catalog.RecordView(ctx, shareID); err != nil {
			logging.Warn("View counter for %s: %v", shareID, err)
		} else {
			video.Views++
		}
	}

	comments, err := s.catalog.ListComments(ctx, shareID)
	if err != nil {
		logging.Warn("Comments for %s unavailable: %v", shareID, err)
	} else {
		page.Comments = comments
	}
	return page, nil
}

// Markers positions the thread on the timeline using the catalog's
// duration, for rendering before the media reports its own.
func (pg *Page) Markers() []Marker {
	if pg.Video == nil {
		return nil
	}
	return markers(pg.Comments, float64(pg.Video.Duration))
}
