package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"screencast/internal/clock"
	"screencast/internal/logging"
	"screencast/internal/metrics"
)

// State is the controller's position in the recording lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateUploading State = "uploading"
	// StateShared is the terminal share-ready display after a successful upload.
	StateShared State = "shared"
)

var (
	// ErrInvalidState is returned when an action is not allowed in the
	// current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("capture controller closed")
)

// WebcamPosition is the corner the webcam bubble is shown in.
type WebcamPosition string

const (
	BottomRight WebcamPosition = "bottom-right"
	BottomLeft  WebcamPosition = "bottom-left"
	TopRight    WebcamPosition = "top-right"
	TopLeft     WebcamPosition = "top-left"
)

// Options selects which devices a recording requests. The screen is always
// requested.
type Options struct {
	Webcam         bool           `json:"webcam"`
	Microphone     bool           `json:"microphone"`
	SystemAudio    bool           `json:"systemAudio"`
	WebcamPosition WebcamPosition `json:"webcamPosition"`
}

// DefaultOptions requests every device.
func DefaultOptions() Options {
	return Options{
		Webcam:         true,
		Microphone:     true,
		SystemAudio:    true,
		WebcamPosition: BottomRight,
	}
}

// Config holds the fixed capture parameters.
type Config struct {
	ScreenVideo        VideoConstraints
	WebcamVideo        VideoConstraints
	VideoBitsPerSecond int
	Timeslice          time.Duration
}

// DefaultConfig matches the recorder's production settings.
func DefaultConfig() Config {
	return Config{
		ScreenVideo:        VideoConstraints{Width: 1920, Height: 1080, FrameRate: 30},
		WebcamVideo:        VideoConstraints{Width: 320, Height: 240, FrameRate: 30},
		VideoBitsPerSecond: 2_500_000,
		Timeslice:          time.Second,
	}
}

// UploadRequest is what the controller hands to an Uploader.
type UploadRequest struct {
	Artifact *Artifact
	Title    string
	Client   string
}

// UploadResult identifies the published recording.
type UploadResult struct {
	ShareID  string
	ShareURL string
}

// Uploader publishes a finished artifact, reporting progress in percent.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest, progress func(percent int)) (*UploadResult, error)
}

// Snapshot is a copy of the controller's observable state.
type Snapshot struct {
	State         State
	Options       Options
	Devices       map[DeviceKind]DeviceStatus
	Elapsed       int
	Chunks        int
	BufferedBytes int
	MimeType      string
	Title         string
	Client        string
	Error         string
	Progress      int
	ShareID       string
	ShareURL      string
	ArtifactSize  int64
	PreviewRef    string
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) ControllerOption {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithPreviewer replaces the temp-file previewer.
func WithPreviewer(p Previewer) ControllerOption {
	return func(ctrl *Controller) { ctrl.previewer = p }
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) ControllerOption {
	return func(ctrl *Controller) { ctrl.cfg = cfg }
}

// Controller coordinates one capture session at a time.
type Controller struct {
	devices   Devices
	encoders  EncoderFactory
	clock     clock.Clock
	previewer Previewer
	cfg       Config

	mu       sync.Mutex
	options  Options
	state    State
	starting bool
	closed   bool
	status   map[DeviceKind]DeviceStatus

	screen   *Stream
	webcam   *Stream
	mic      *Stream
	combined *Stream
	encoder  Encoder
	mimeType string
	chunks   chunkBuffer

	elapsed    int
	stopTimer  func()
	timerEpoch int
	session    int

	artifact *Artifact
	title    string
	client   string
	lastErr  string
	progress int
	shareID  string
	shareURL string

	outputs map[DeviceKind][]Output
}

// NewController returns an idle controller.
func NewController(devices Devices, encoders EncoderFactory, opts ...ControllerOption) *Controller {
	c := &Controller{
		devices:   devices,
		encoders:  encoders,
		clock:     clock.Real{},
		previewer: TempFilePreviewer{},
		cfg:       DefaultConfig(),
		options:   DefaultOptions(),
		state:     StateIdle,
		status:    idleStatus(),
		outputs:   make(map[DeviceKind][]Output),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func idleStatus() map[DeviceKind]DeviceStatus {
	return map[DeviceKind]DeviceStatus{
		DeviceScreen:     StatusNotRequested,
		DeviceWebcam:     StatusNotRequested,
		DeviceMicrophone: StatusNotRequested,
	}
}

// SetOptions changes the device selection. Only allowed while idle.
func (c *Controller) SetOptions(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle || c.starting {
		return fmt.Errorf("%w: options can only change while idle (state %s)", ErrInvalidState, c.state)
	}
	if opts.WebcamPosition == "" {
		opts.WebcamPosition = BottomRight
	}
	c.options = opts
	return nil
}

// SetTitle sets the title sent with the upload.
func (c *Controller) SetTitle(title string) {
	c.mu.Lock()
	c.title = title
	c.mu.Unlock()
}

// SetClient sets the client/account name sent with the upload.
func (c *Controller) SetClient(client string) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

// DismissError clears the banner message.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns the recorded seconds so far.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Artifact returns the finished recording, or nil.
func (c *Controller) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	devices := make(map[DeviceKind]DeviceStatus, len(c.status))
	for k, v := range c.status {
		devices[k] = v
	}

	s := Snapshot{
		State:         c.state,
		Options:       c.options,
		Devices:       devices,
		Elapsed:       c.elapsed,
		Chunks:        c.chunks.count(),
		BufferedBytes: c.chunks.bytes(),
		MimeType:      c.mimeType,
		Title:         c.title,
		Client:        c.client,
		Error:         c.lastErr,
		Progress:      c.progress,
		ShareID:       c.shareID,
		ShareURL:      c.shareURL,
	}
	if c.artifact != nil {
		s.ArtifactSize = c.artifact.Size()
		s.PreviewRef = c.artifact.PreviewRef
	}
	return s
}

// BindPreview attaches out to the live stream of device (screen or webcam)
// now if the stream exists, and again whenever a new one is acquired.
func (c *Controller) BindPreview(device DeviceKind, out Output) {
	c.mu.Lock()
	c.outputs[device] = append(c.outputs[device], out)
	stream := c.streamFor(device)
	c.mu.Unlock()

	if stream != nil {
		out.Attach(stream)
	}
}

func (c *Controller) streamFor(device DeviceKind) *Stream {
	switch device {
	case DeviceScreen:
		return c.screen
	case DeviceWebcam:
		return c.webcam
	case DeviceMicrophone:
		return c.mic
	}
	return nil
}

type acquisition struct {
	screen *Stream
	webcam *Stream
	mic    *Stream
	status map[DeviceKind]DeviceStatus
}

func (a *acquisition) release() {
	a.screen.Release()
	a.webcam.Release()
	a.mic.Release()
}

// Start acquires devices and begins recording. A screen failure aborts the
// start and leaves the controller idle with the error surfaced; webcam and
// microphone failures only degrade the recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle || c.starting {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, state)
	}
	c.starting = true
	c.lastErr = ""
	c.status = idleStatus()
	opts := c.options
	cfg := c.cfg
	c.mu.Unlock()

	acq, err := c.acquire(ctx, opts, cfg)

	c.mu.Lock()
	c.starting = false
	c.status = acq.status
	if err == nil && c.closed {
		err = ErrClosed
	}
	if err != nil {
		acq.release()
		c.lastErr = UserMessage(err)
		c.mu.Unlock()
		metrics.CaptureSessionsTotal.WithLabelValues("start_failed").Inc()
		logging.Warn("Recording start failed: %v", err)
		return err
	}

	combined := Compose(acq.screen, acq.mic)
	mimeType := SelectMimeType(c.encoders)
	enc, err := c.encoders.NewEncoder(combined, EncoderOptions{
		MimeType:           mimeType,
		VideoBitsPerSecond: cfg.VideoBitsPerSecond,
		Timeslice:          cfg.Timeslice,
	})
	if err == nil {
		c.chunks.reset()
		err = enc.Start(c.chunks.append)
	}
	if err != nil {
		acq.release()
		err = fmt.Errorf("starting encoder: %w", err)
		c.lastErr = UserMessage(err)
		c.mu.Unlock()
		metrics.CaptureSessionsTotal.WithLabelValues("start_failed").Inc()
		logging.Error("Recording start failed: %v", err)
		return err
	}

	c.screen, c.webcam, c.mic = acq.screen, acq.webcam, acq.mic
	c.combined = combined
	c.encoder = enc
	c.mimeType = mimeType
	c.elapsed = 0
	c.artifact = nil
	c.state = StateRecording
	c.session++
	session := c.session
	c.startTimerLocked()

	screenOutputs := append([]Output(nil), c.outputs[DeviceScreen]...)
	webcamOutputs := append([]Output(nil), c.outputs[DeviceWebcam]...)
	c.mu.Unlock()

	metrics.CaptureSessionsTotal.WithLabelValues("started").Inc()
	logging.Info("Recording started (%s, %d audio track(s))", mimeType, len(combined.AudioTracks()))

	// A revoked screen share stops the session exactly like the stop button.
	// A share that already ended while the encoder started fires at once.
	for _, t := range acq.screen.VideoTracks() {
		t.OnEnded(func() { c.endSession(session) })
	}

	for _, out := range screenOutputs {
		out.Attach(acq.screen)
	}
	if acq.webcam != nil {
		for _, out := range webcamOutputs {
			out.Attach(acq.webcam)
		}
	}
	return nil
}

func (c *Controller) acquire(ctx context.Context, opts Options, cfg Config) (*acquisition, error) {
	acq := &acquisition{status: idleStatus()}

	screen, err := c.devices.Screen(ctx, ScreenRequest{Video: cfg.ScreenVideo, Audio: opts.SystemAudio})
	if err == nil && len(screen.VideoTracks()) == 0 {
		screen.Release()
		screen, err = nil, fmt.Errorf("%w: screen capture returned no video track", ErrDeviceUnavailable)
	}
	acq.status[DeviceScreen] = statusFor(err)
	recordAcquisition(DeviceScreen, acq.status[DeviceScreen])
	if err != nil {
		return acq, &PermissionError{Device: DeviceScreen, Err: err}
	}
	acq.screen = screen

	if opts.Webcam {
		if err := ctx.Err(); err != nil {
			return acq, err
		}
		webcam, err := c.devices.Webcam(ctx, cfg.WebcamVideo)
		acq.status[DeviceWebcam] = statusFor(err)
		recordAcquisition(DeviceWebcam, acq.status[DeviceWebcam])
		if err != nil {
			logging.Warn("Webcam not available: %v", err)
		} else {
			acq.webcam = webcam
		}
	}

	if opts.Microphone {
		if err := ctx.Err(); err != nil {
			return acq, err
		}
		mic, err := c.devices.Microphone(ctx, MicrophoneRequest{EchoCancellation: true, NoiseSuppression: true})
		acq.status[DeviceMicrophone] = statusFor(err)
		recordAcquisition(DeviceMicrophone, acq.status[DeviceMicrophone])
		if err != nil {
			logging.Warn("Microphone not available: %v", err)
		} else {
			acq.mic = mic
		}
	}

	if err := ctx.Err(); err != nil {
		return acq, err
	}
	return acq, nil
}

func recordAcquisition(device DeviceKind, status DeviceStatus) {
	metrics.DeviceAcquisitionsTotal.WithLabelValues(string(device), string(status)).Inc()
}

// Pause suspends recording and freezes the elapsed counter.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, c.state)
	}
	if err := c.encoder.Pause(); err != nil {
		return fmt.Errorf("pausing encoder: %w", err)
	}
	c.stopTimerLocked()
	c.state = StatePaused
	return nil
}

// Resume continues a paused recording from the frozen elapsed value.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, c.state)
	}
	if err := c.encoder.Resume(); err != nil {
		return fmt.Errorf("resuming encoder: %w", err)
	}
	c.state = StateRecording
	c.startTimerLocked()
	return nil
}

// Stop flushes the encoder, assembles the artifact and releases every
// acquired device.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording && c.state != StatePaused {
		return fmt.Errorf("%w: cannot stop while %s", ErrInvalidState, c.state)
	}
	c.stopLocked()
	return nil
}

// endSession handles the screen track ending underneath a session.
func (c *Controller) endSession(session int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session != c.session || (c.state != StateRecording && c.state != StatePaused) {
		return
	}
	logging.Info("Screen sharing ended by the system, stopping recording")
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if err := c.encoder.Stop(); err != nil {
		logging.Warn("Encoder did not stop cleanly: %v", err)
	}
	c.stopTimerLocked()

	artifact := &Artifact{
		Data:      c.chunks.concat(),
		MimeType:  c.mimeType,
		Duration:  c.elapsed,
		Tracks:    describe(c.combined),
		CreatedAt: c.clock.Now(),
	}
	if ref, err := c.previewer.Publish(artifact); err != nil {
		logging.Warn("Preview unavailable: %v", err)
	} else {
		artifact.PreviewRef = ref
	}

	c.artifact = artifact
	c.chunks.reset()
	c.encoder = nil
	c.state = StateStopped
	c.releaseStreamsLocked()

	metrics.CaptureSessionsTotal.WithLabelValues("stopped").Inc()
	logging.Info("Recording stopped: %d seconds, %d bytes", artifact.Duration, artifact.Size())
}

func (c *Controller) releaseStreamsLocked() {
	c.screen.Release()
	c.webcam.Release()
	c.mic.Release()
	c.screen, c.webcam, c.mic, c.combined = nil, nil, nil, nil
}

func (c *Controller) startTimerLocked() {
	c.stopTimerLocked()
	c.timerEpoch++
	epoch := c.timerEpoch
	c.stopTimer = c.clock.Every(time.Second, func() { c.tick(epoch) })
}

func (c *Controller) stopTimerLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.timerEpoch++
}

func (c *Controller) tick(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.timerEpoch || c.state != StateRecording {
		return
	}
	c.elapsed++
}

// Discard drops the finished artifact and returns to idle with the title,
// client and elapsed time reset.
func (c *Controller) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped && c.state != StateShared {
		return fmt.Errorf("%w: cannot discard while %s", ErrInvalidState, c.state)
	}
	c.resetLocked()
	return nil
}

func (c *Controller) resetLocked() {
	if c.artifact != nil {
		c.previewer.Revoke(c.artifact.PreviewRef)
	}
	c.artifact = nil
	c.chunks.reset()
	c.elapsed = 0
	c.title = ""
	c.client = ""
	c.lastErr = ""
	c.progress = 0
	c.shareID = ""
	c.shareURL = ""
	c.mimeType = ""
	c.status = idleStatus()
	c.state = StateIdle
}

// Upload hands the artifact to up. On failure the controller returns to
// stopped with the error surfaced, so the upload can be retried.
func (c *Controller) Upload(ctx context.Context, up Uploader) (*UploadResult, error) {
	c.mu.Lock()
	if c.state != StateStopped || c.artifact == nil {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot upload while %s", ErrInvalidState, state)
	}
	c.state = StateUploading
	c.progress = 0
	c.lastErr = ""
	req := UploadRequest{Artifact: c.artifact, Title: c.title, Client: c.client}
	c.mu.Unlock()

	res, err := up.Upload(ctx, req, c.setProgress)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateStopped
		c.lastErr = uploadMessage(err)
		logging.Error("Upload error: %v", err)
		return nil, err
	}

	c.state = StateShared
	c.progress = 100
	c.shareID = res.ShareID
	c.shareURL = res.ShareURL
	// The collaborator owns the bytes now.
	c.artifact.Data = nil
	return res, nil
}

func uploadMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Upload failed"
}

func (c *Controller) setProgress(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUploading && percent > c.progress {
		c.progress = percent
	}
}

// Close tears the controller down: any running encoder is stopped, the
// timer is cleared and every device is released. Safe to call repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	if c.encoder != nil {
		if err := c.encoder.Stop(); err != nil {
			logging.Debug("Encoder stop during close: %v", err)
		}
		c.encoder = nil
	}
	c.stopTimerLocked()
	c.releaseStreamsLocked()
	if c.artifact != nil {
		c.previewer.Revoke(c.artifact.PreviewRef)
		c.artifact.PreviewRef = ""
	}
	c.chunks.reset()
}
