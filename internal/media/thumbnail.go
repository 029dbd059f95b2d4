package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"

	"screencast/internal/format"
	"screencast/internal/logging"
	"screencast/internal/metrics"
	"screencast/internal/workers"
)

const (
	ThumbnailWidth  = 320
	ThumbnailHeight = 180
	// FrameOffset is how far into the recording the poster frame is taken.
	FrameOffset = 2 * time.Second

	jpegQuality = 80
)

// ErrDisabled is returned by Generate when thumbnails are turned off.
var ErrDisabled = errors.New("thumbnails disabled")

// Generator renders recording thumbnails.
type Generator struct {
	extractor FrameExtractor
	enabled   bool
	// sem bounds concurrent ffmpeg runs.
	sem chan struct{}
}

// NewGenerator returns a generator. A nil extractor uses ffmpeg.
func NewGenerator(extractor FrameExtractor, enabled bool) *Generator {
	if extractor == nil {
		extractor = NewFFmpegExtractor()
	}
	if enabled {
		logging.Debug("Thumbnail generator: enabled")
	} else {
		logging.Debug("Thumbnail generator: disabled")
	}
	return &Generator{
		extractor: extractor,
		enabled:   enabled,
		sem:       make(chan struct{}, workers.ForCPU(4)),
	}
}

func (g *Generator) IsEnabled() bool {
	return g != nil && g.enabled
}

// Generate returns a JPEG thumbnail for video. duration, in seconds, is
// printed on the badge; 0 leaves the badge off.
func (g *Generator) Generate(ctx context.Context, video []byte, duration int) (thumb []byte, err error) {
	if !g.IsEnabled() {
		return nil, ErrDisabled
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(status).Inc()
		metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	frame, err := g.extractor.ExtractFrame(ctx, video, FrameOffset)
	if err != nil {
		return nil, fmt.Errorf("extracting frame: %w", err)
	}
	if frame == nil {
		return nil, fmt.Errorf("extractor returned no frame")
	}

	return EncodeJPEG(Render(frame, duration), jpegQuality)
}

// Render letterboxes frame onto the fixed thumbnail raster and stamps the
// duration badge.
func Render(frame image.Image, duration int) *image.NRGBA {
	canvas := imaging.New(ThumbnailWidth, ThumbnailHeight, color.Black)
	fitted := imaging.Fit(frame, ThumbnailWidth, ThumbnailHeight, imaging.Lanczos)
	canvas = imaging.PasteCenter(canvas, fitted)
	if duration > 0 {
		drawBadge(canvas, format.Timestamp(float64(duration)))
	}
	return canvas
}
