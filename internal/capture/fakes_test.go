package capture

import (
	"context"
	"errors"
	"sync"
)

// fakeDevices hands out in-memory streams and remembers every one of them
// so tests can check that nothing is left live.
type fakeDevices struct {
	mu sync.Mutex

	screenErr error
	webcamErr error
	micErr    error

	// screenAudioAvailable models a browser that can capture tab audio.
	screenAudioAvailable bool

	screenReqs []ScreenRequest
	micReqs    []MicrophoneRequest
	acquired   []*Stream
	screens    []*Stream
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{screenAudioAvailable: true}
}

func (d *fakeDevices) Screen(_ context.Context, req ScreenRequest) (*Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screenReqs = append(d.screenReqs, req)
	if d.screenErr != nil {
		return nil, d.screenErr
	}
	tracks := []*Track{NewTrack(TrackVideo, DeviceScreen, "screen:0", nil)}
	if req.Audio && d.screenAudioAvailable {
		tracks = append(tracks, NewTrack(TrackAudio, DeviceScreen, "system audio", nil))
	}
	s := NewStream(tracks...)
	d.acquired = append(d.acquired, s)
	d.screens = append(d.screens, s)
	return s, nil
}

func (d *fakeDevices) Webcam(_ context.Context, _ VideoConstraints) (*Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.webcamErr != nil {
		return nil, d.webcamErr
	}
	s := NewStream(NewTrack(TrackVideo, DeviceWebcam, "webcam", nil))
	d.acquired = append(d.acquired, s)
	return s, nil
}

func (d *fakeDevices) Microphone(_ context.Context, req MicrophoneRequest) (*Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.micReqs = append(d.micReqs, req)
	if d.micErr != nil {
		return nil, d.micErr
	}
	s := NewStream(NewTrack(TrackAudio, DeviceMicrophone, "mic", nil))
	d.acquired = append(d.acquired, s)
	return s, nil
}

func (d *fakeDevices) anyLive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.acquired {
		if s.Live() {
			return true
		}
	}
	return false
}

func (d *fakeDevices) lastScreen() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screens[len(d.screens)-1]
}

type fakeEncoderFactory struct {
	supported map[string]bool
	newErr    error
	startErr  error
	// endScreenOnStart makes Start end the screen track, as an ffmpeg
	// process dying right after launch would.
	endScreenOnStart bool
	encoders         []*fakeEncoder
}

func newFakeEncoderFactory(supported ...string) *fakeEncoderFactory {
	f := &fakeEncoderFactory{supported: make(map[string]bool)}
	for _, s := range supported {
		f.supported[s] = true
	}
	return f
}

func (f *fakeEncoderFactory) IsTypeSupported(mimeType string) bool {
	return f.supported[mimeType]
}

func (f *fakeEncoderFactory) NewEncoder(stream *Stream, opts EncoderOptions) (Encoder, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	e := &fakeEncoder{stream: stream, opts: opts, startErr: f.startErr, endScreenOnStart: f.endScreenOnStart}
	f.encoders = append(f.encoders, e)
	return e, nil
}

func (f *fakeEncoderFactory) last() *fakeEncoder {
	return f.encoders[len(f.encoders)-1]
}

type fakeEncoder struct {
	mu       sync.Mutex
	stream   *Stream
	opts     EncoderOptions
	startErr error
	onData   func([]byte)

	endScreenOnStart bool
	state            string
	pending          []byte
	stops            int
}

func (e *fakeEncoder) Start(onData func([]byte)) error {
	if e.startErr != nil {
		return e.startErr
	}
	e.mu.Lock()
	e.onData = onData
	e.state = "recording"
	e.mu.Unlock()
	if e.endScreenOnStart {
		e.stream.VideoTracks()[0].End()
	}
	return nil
}

// write buffers bytes as if the encoder had produced them.
func (e *fakeEncoder) write(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != "recording" {
		return
	}
	e.pending = append(e.pending, p...)
}

// flush emits buffered bytes, as a timeslice boundary would.
func (e *fakeEncoder) flush() {
	e.mu.Lock()
	data := e.pending
	e.pending = nil
	onData := e.onData
	e.mu.Unlock()
	if onData != nil {
		onData(data)
	}
}

func (e *fakeEncoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = "paused"
	return nil
}

func (e *fakeEncoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = "recording"
	return nil
}

func (e *fakeEncoder) Stop() error {
	e.flush()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = "inactive"
	e.stops++
	return nil
}

type memPreviewer struct {
	mu      sync.Mutex
	live    map[string]bool
	next    int
	failErr error
}

func newMemPreviewer() *memPreviewer {
	return &memPreviewer{live: make(map[string]bool)}
}

func (p *memPreviewer) Publish(_ *Artifact) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return "", p.failErr
	}
	p.next++
	ref := "blob:preview-" + string(rune('0'+p.next))
	p.live[ref] = true
	return ref, nil
}

func (p *memPreviewer) Revoke(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, ref)
}

func (p *memPreviewer) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

type fakeUploader struct {
	err        error
	milestones []int
	got        UploadRequest
	gotData    string
	calls      int
}

func (u *fakeUploader) Upload(_ context.Context, req UploadRequest, progress func(int)) (*UploadResult, error) {
	u.calls++
	u.got = req
	u.gotData = string(req.Artifact.Data)
	for _, m := range u.milestones {
		progress(m)
	}
	if u.err != nil {
		return nil, u.err
	}
	return &UploadResult{ShareID: "abc12345", ShareURL: "https://rec.example.com/v/abc12345"}, nil
}

var errBoom = errors.New("boom")
