package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"screencast/internal/capture"
	"screencast/internal/logging"
)

const stopTimeout = 10 * time.Second

// IsTypeSupported reports whether the installed ffmpeg has the encoders a
// WebM MIME type needs.
func (b *Backend) IsTypeSupported(mimeType string) bool {
	b.encodersOnce.Do(func() {
		var out bytes.Buffer
		cmd := b.command(context.Background(), b.binary, "-hide_banner", "-encoders")
		cmd.Stdout = &out
		b.encodersErr = cmd.Run()
		b.encoders = out.String()
	})
	if b.encodersErr != nil {
		logging.Debug("Could not list ffmpeg encoders: %v", b.encodersErr)
		return false
	}

	video, audio, ok := codecsFor(mimeType)
	if !ok {
		return false
	}
	return hasEncoder(b.encoders, video) && hasEncoder(b.encoders, audio)
}

// codecsFor maps a WebM MIME type to ffmpeg encoder names.
func codecsFor(mimeType string) (video, audio string, ok bool) {
	base, params, _ := strings.Cut(mimeType, ";")
	if strings.TrimSpace(base) != "video/webm" {
		return "", "", false
	}
	video, audio = "libvpx", "libopus"
	if params == "" {
		return video, audio, true
	}
	codecs := strings.TrimPrefix(strings.TrimSpace(params), "codecs=")
	for _, c := range strings.Split(strings.Trim(codecs, `"`), ",") {
		switch strings.TrimSpace(c) {
		case "vp9":
			video = "libvpx-vp9"
		case "vp8":
			video = "libvpx"
		case "opus":
			audio = "libopus"
		case "vorbis":
			audio = "libvorbis"
		default:
			return "", "", false
		}
	}
	return video, audio, true
}

// hasEncoder looks for name as the second column of `ffmpeg -encoders`.
func hasEncoder(list, name string) bool {
	sc := bufio.NewScanner(strings.NewReader(list))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// NewEncoder prepares an ffmpeg process for stream. The process is started
// by Start.
func (b *Backend) NewEncoder(stream *capture.Stream, opts capture.EncoderOptions) (capture.Encoder, error) {
	videoTracks := stream.VideoTracks()
	if len(videoTracks) == 0 {
		return nil, errors.New("stream has no video track")
	}
	video, ok := b.lookup(videoTracks[0])
	if !ok {
		return nil, fmt.Errorf("video track %s was not acquired by this backend", videoTracks[0].ID())
	}

	var audio []source
	for _, t := range stream.AudioTracks() {
		src, ok := b.lookup(t)
		if !ok {
			return nil, fmt.Errorf("audio track %s was not acquired by this backend", t.ID())
		}
		audio = append(audio, src)
	}

	args, err := encodeArgs(video, audio, opts)
	if err != nil {
		return nil, err
	}
	timeslice := opts.Timeslice
	if timeslice <= 0 {
		timeslice = time.Second
	}
	return &encoder{
		backend:   b,
		args:      args,
		screen:    videoTracks[0],
		timeslice: timeslice,
	}, nil
}

// encodeArgs builds the ffmpeg command line writing WebM to stdout. Input 0
// is the screen and inputs 1..n the audio sources. Several audio sources are
// mixed into one track.
func encodeArgs(video source, audio []source, opts capture.EncoderOptions) ([]string, error) {
	vcodec, acodec, ok := codecsFor(opts.MimeType)
	if !ok {
		return nil, fmt.Errorf("unsupported mime type %q", opts.MimeType)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostats"}
	args = append(args, video.inputArgs()...)
	for _, a := range audio {
		args = append(args, a.inputArgs()...)
	}

	args = append(args, "-map", "0:v:0")
	switch len(audio) {
	case 0:
	case 1:
		if audio[0].denoise {
			args = append(args, "-filter_complex", "[1:a]afftdn[a]", "-map", "[a]")
		} else {
			args = append(args, "-map", "1:a:0")
		}
	default:
		var graph, labels strings.Builder
		for i, a := range audio {
			in := "[" + strconv.Itoa(i+1) + ":a]"
			if a.denoise {
				label := "[d" + strconv.Itoa(i+1) + "]"
				graph.WriteString(in + "afftdn" + label + ";")
				in = label
			}
			labels.WriteString(in)
		}
		graph.WriteString(labels.String())
		graph.WriteString("amix=inputs=" + strconv.Itoa(len(audio)) + ":duration=longest:dropout_transition=0[a]")
		args = append(args, "-filter_complex", graph.String(), "-map", "[a]")
	}

	args = append(args, "-c:v", vcodec, "-deadline", "realtime", "-cpu-used", "8")
	if opts.VideoBitsPerSecond > 0 {
		args = append(args, "-b:v", strconv.Itoa(opts.VideoBitsPerSecond/1000)+"k")
	}
	if len(audio) > 0 {
		args = append(args, "-c:a", acodec, "-b:a", "128k")
	}
	return append(args, "-f", "webm", "pipe:1"), nil
}

type encoder struct {
	backend   *Backend
	args      []string
	screen    *capture.Track
	timeslice time.Duration

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   bytes.Buffer
	paused   bool
	stopping bool
	exited   chan struct{}
	exitErr  error
}

// Start launches ffmpeg and delivers its output to onData once per
// timeslice.
func (e *encoder) Start(onData func([]byte)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return errors.New("encoder already started")
	}

	cmd := e.backend.command(context.Background(), e.backend.binary, e.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	cmd.Stderr = &lockedWriter{mu: &e.mu, buf: &e.stderr}

	logging.Debug("Starting ffmpeg: %s", strings.Join(e.args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}
	e.cmd = cmd
	e.stdin = stdin
	e.exited = make(chan struct{})

	pumped := make(chan struct{})
	go e.pump(stdout, onData, pumped)
	go e.wait(pumped)
	return nil
}

// pump forwards stdout to onData in timeslice-sized batches and flushes
// whatever is left once the pipe closes.
func (e *encoder) pump(r io.Reader, onData func([]byte), done chan<- struct{}) {
	defer close(done)

	reads := make(chan []byte)
	go func() {
		defer close(reads)
		buf := make([]byte, 64*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				reads <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(e.timeslice)
	defer ticker.Stop()

	var pending []byte
	flush := func() {
		if len(pending) > 0 {
			onData(pending)
			pending = nil
		}
	}
	for {
		select {
		case p, ok := <-reads:
			if !ok {
				flush()
				return
			}
			pending = append(pending, p...)
		case <-ticker.C:
			flush()
		}
	}
}

func (e *encoder) wait(pumped <-chan struct{}) {
	<-pumped
	err := e.cmd.Wait()

	e.mu.Lock()
	e.exitErr = err
	stopping := e.stopping
	stderr := strings.TrimSpace(e.stderr.String())
	e.mu.Unlock()
	close(e.exited)

	if stopping {
		return
	}
	logging.Warn("ffmpeg exited unexpectedly (%v): %s", err, lastLine(stderr))
	// The source is gone; end the screen track so the session stops.
	go e.screen.End()
}

// Pause suspends the ffmpeg process.
func (e *encoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.stopping {
		return errors.New("encoder not running")
	}
	if e.paused {
		return nil
	}
	if err := suspend(e.cmd.Process); err != nil {
		return err
	}
	e.paused = true
	return nil
}

// Resume continues a suspended ffmpeg process.
func (e *encoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.stopping {
		return errors.New("encoder not running")
	}
	if !e.paused {
		return nil
	}
	if err := resume(e.cmd.Process); err != nil {
		return err
	}
	e.paused = false
	return nil
}

// Stop asks ffmpeg to finish the file and waits until every byte has been
// delivered. A process that does not exit in time is killed.
func (e *encoder) Stop() error {
	e.mu.Lock()
	if e.cmd == nil {
		e.mu.Unlock()
		return nil
	}
	if !e.stopping {
		e.stopping = true
		if e.paused {
			if err := resume(e.cmd.Process); err != nil {
				logging.Debug("Resuming ffmpeg before stop: %v", err)
			}
			e.paused = false
		}
		// "q" on stdin is ffmpeg's graceful quit.
		_, _ = io.WriteString(e.stdin, "q")
		_ = e.stdin.Close()
	}
	exited := e.exited
	e.mu.Unlock()

	select {
	case <-exited:
	case <-time.After(stopTimeout):
		logging.Warn("ffmpeg did not exit within %v, killing it", stopTimeout)
		_ = e.cmd.Process.Kill()
		<-exited
		return errors.New("ffmpeg killed after stop timeout")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var exitErr *exec.ExitError
	if e.exitErr != nil && !errors.As(e.exitErr, &exitErr) {
		return e.exitErr
	}
	return nil
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Keep only the tail; ffmpeg can be chatty on long sessions.
	if w.buf.Len() > 64*1024 {
		tail := append([]byte(nil), w.buf.Bytes()[w.buf.Len()-16*1024:]...)
		w.buf.Reset()
		w.buf.Write(tail)
	}
	return w.buf.Write(p)
}
