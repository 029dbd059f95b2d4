package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"screencast/internal/capture"
	"screencast/internal/logging"
)

const probeTimeout = 10 * time.Second

// CommandFunc builds the command for one ffmpeg invocation.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Backend acquires devices and creates encoders. One Backend serves both
// roles because encoders need to know which input each track came from.
type Backend struct {
	binary  string
	inputs  Inputs
	command CommandFunc

	mu       sync.Mutex
	sources  map[string]source
	released map[string][]func()

	encodersOnce sync.Once
	encoders     string
	encodersErr  error
}

// Option customizes a Backend.
type Option func(*Backend)

// WithBinary sets the ffmpeg executable.
func WithBinary(path string) Option {
	return func(b *Backend) { b.binary = path }
}

// WithCommand replaces exec.CommandContext.
func WithCommand(fn CommandFunc) Option {
	return func(b *Backend) { b.command = fn }
}

// New returns a backend for inputs.
func New(inputs Inputs, opts ...Option) *Backend {
	b := &Backend{
		binary:   "ffmpeg",
		inputs:   inputs,
		command:  exec.CommandContext,
		sources:  make(map[string]source),
		released: make(map[string][]func()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CheckFFmpeg verifies the ffmpeg binary can be found.
func (b *Backend) CheckFFmpeg() error {
	if _, err := exec.LookPath(b.binary); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): install ffmpeg or set --ffmpeg", b.binary)
	}
	return nil
}

func (b *Backend) register(t *capture.Track, src source) {
	b.mu.Lock()
	b.sources[t.ID()] = src
	b.mu.Unlock()
}

func (b *Backend) forget(id string) {
	b.mu.Lock()
	delete(b.sources, id)
	hooks := b.released[id]
	delete(b.released, id)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// onRelease runs fn once t is stopped or ended, or right away if it already
// has been.
func (b *Backend) onRelease(t *capture.Track, fn func()) {
	b.mu.Lock()
	if _, ok := b.sources[t.ID()]; !ok {
		b.mu.Unlock()
		fn()
		return
	}
	b.released[t.ID()] = append(b.released[t.ID()], fn)
	b.mu.Unlock()
}

func (b *Backend) lookup(t *capture.Track) (source, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, ok := b.sources[t.ID()]
	return src, ok
}

// newTrack creates a track bound to src that unregisters itself on release.
func (b *Backend) newTrack(kind capture.TrackKind, dev capture.DeviceKind, label string, src source, release func()) *capture.Track {
	var t *capture.Track
	t = capture.NewTrack(kind, dev, label, func() {
		b.forget(t.ID())
		if release != nil {
			release()
		}
	})
	b.register(t, src)
	return t
}

// Screen probes the screen grab input and, when requested and configured,
// the system audio loopback.
func (b *Backend) Screen(ctx context.Context, req capture.ScreenRequest) (*capture.Stream, error) {
	if b.inputs.ScreenFormat == "" || b.inputs.ScreenDevice == "" {
		return nil, fmt.Errorf("%w: no screen input configured", capture.ErrDeviceUnavailable)
	}
	video := source{
		format:    b.inputs.ScreenFormat,
		device:    b.inputs.ScreenDevice,
		width:     req.Video.Width,
		height:    req.Video.Height,
		frameRate: req.Video.FrameRate,
	}
	if err := b.probe(ctx, video, true); err != nil {
		return nil, err
	}

	tracks := []*capture.Track{
		b.newTrack(capture.TrackVideo, capture.DeviceScreen, "screen "+video.device, video, nil),
	}

	if req.Audio && b.inputs.SystemAudioDevice != "" {
		audio := source{format: b.inputs.AudioFormat, device: b.inputs.SystemAudioDevice}
		if err := b.probe(ctx, audio, false); err != nil {
			logging.Debug("System audio not available, recording screen without it: %v", err)
		} else {
			tracks = append(tracks, b.newTrack(capture.TrackAudio, capture.DeviceScreen, "system audio", audio, nil))
		}
	}
	return capture.NewStream(tracks...), nil
}

// Webcam opens the webcam. A V4L2 device node is held open for the life of
// the track so another process cannot grab the camera mid-session.
func (b *Backend) Webcam(ctx context.Context, c capture.VideoConstraints) (*capture.Stream, error) {
	if b.inputs.WebcamDevice == "" {
		return nil, fmt.Errorf("%w: no webcam configured", capture.ErrDeviceUnavailable)
	}
	src := source{
		format:    b.inputs.WebcamFormat,
		device:    b.inputs.WebcamDevice,
		width:     c.Width,
		height:    c.Height,
		frameRate: c.FrameRate,
	}

	var release func()
	if src.format == "v4l2" {
		f, err := os.OpenFile(src.device, os.O_RDWR, 0)
		if err != nil {
			return nil, classifyOpen(err)
		}
		release = func() { f.Close() }
	} else if err := b.probe(ctx, src, true); err != nil {
		return nil, err
	}

	t := b.newTrack(capture.TrackVideo, capture.DeviceWebcam, "webcam "+src.device, src, release)
	return capture.NewStream(t), nil
}

// Microphone probes the microphone input. ffmpeg has no echo canceller;
// noise suppression is applied with the afftdn filter at encode time.
func (b *Backend) Microphone(ctx context.Context, req capture.MicrophoneRequest) (*capture.Stream, error) {
	if b.inputs.AudioFormat == "" || b.inputs.MicDevice == "" {
		return nil, fmt.Errorf("%w: no microphone configured", capture.ErrDeviceUnavailable)
	}
	src := source{format: b.inputs.AudioFormat, device: b.inputs.MicDevice, denoise: req.NoiseSuppression}
	if err := b.probe(ctx, src, false); err != nil {
		return nil, err
	}
	t := b.newTrack(capture.TrackAudio, capture.DeviceMicrophone, "microphone "+src.device, src, nil)
	return capture.NewStream(t), nil
}

// probe reads a frame (video) or a tenth of a second (audio) from src.
func (b *Backend) probe(ctx context.Context, src source, video bool) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, src.inputArgs()...)
	if video {
		args = append(args, "-frames:v", "1")
	} else {
		args = append(args, "-t", "0.1")
	}
	args = append(args, "-f", "null", "-")

	cmd := b.command(ctx, b.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: probing %s timed out", capture.ErrDeviceUnavailable, src.device)
	}
	return classifyProbe(stderr.String(), err)
}

var deniedMarkers = []string{
	"permission denied",
	"not authorized",
	"not permitted",
	"access denied",
	"authorization",
}

// classifyProbe maps ffmpeg's diagnostic output to a capture error.
func classifyProbe(stderr string, err error) error {
	msg := lastLine(stderr)
	if msg == "" {
		msg = err.Error()
	}
	lower := strings.ToLower(stderr)
	for _, marker := range deniedMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", capture.ErrPermissionDenied, msg)
		}
	}
	return fmt.Errorf("%w: %s", capture.ErrDeviceUnavailable, msg)
}

func classifyOpen(err error) error {
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
