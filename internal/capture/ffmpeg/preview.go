package ffmpeg

import (
	"context"
	"strconv"
	"sync"

	"screencast/internal/capture"
	"screencast/internal/logging"
)

const (
	previewSize   = 240
	previewMargin = 32
)

// Preview shows the webcam in a borderless ffplay window pinned to a corner
// of the screen, where the screen grab picks it up as the webcam bubble.
type Preview struct {
	backend  *Backend
	binary   string
	position capture.WebcamPosition
	screenW  int
	screenH  int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPreview returns a preview that runs binary (normally ffplay) for webcam
// tracks acquired by b. screenW and screenH place the window.
func (b *Backend) NewPreview(binary string, position capture.WebcamPosition, screenW, screenH int) *Preview {
	return &Preview{
		backend:  b,
		binary:   binary,
		position: position,
		screenW:  screenW,
		screenH:  screenH,
	}
}

// Attach opens a window on the stream's video track, closing any earlier
// one. The window closes when the track is released.
func (p *Preview) Attach(s *capture.Stream) {
	tracks := s.VideoTracks()
	if len(tracks) == 0 {
		return
	}
	src, ok := p.backend.lookup(tracks[0])
	if !ok {
		logging.Warn("Webcam preview: track %s was not acquired by this backend", tracks[0].ID())
		return
	}

	p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := p.backend.command(ctx, p.binary, previewArgs(src, p.position, p.screenW, p.screenH)...)
	if err := cmd.Start(); err != nil {
		cancel()
		logging.Warn("Webcam preview unavailable: %v", err)
		return
	}
	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logging.Debug("Webcam preview exited: %v", err)
		}
		close(done)
	}()

	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	p.backend.onRelease(tracks[0], func() {
		cancel()
		<-done
	})
}

// Running reports whether a preview window is open.
func (p *Preview) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Close closes the preview window and waits for ffplay to exit.
func (p *Preview) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// previewArgs builds the ffplay command line for src with the window in the
// requested corner of a screenW by screenH screen.
func previewArgs(src source, pos capture.WebcamPosition, screenW, screenH int) []string {
	left, top := previewMargin, previewMargin
	if pos == capture.BottomRight || pos == capture.TopRight {
		left = max(screenW-previewSize-previewMargin, 0)
	}
	if pos == capture.BottomRight || pos == capture.BottomLeft {
		top = max(screenH-previewSize-previewMargin, 0)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-an", "-noborder", "-alwaysontop",
		"-window_title", "screencast webcam",
		"-x", strconv.Itoa(previewSize), "-y", strconv.Itoa(previewSize),
		"-left", strconv.Itoa(left), "-top", strconv.Itoa(top),
	}
	return append(args, src.inputArgs()...)
}
