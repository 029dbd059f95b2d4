package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screencast/internal/capture"
	"screencast/internal/capture/ffmpeg"
	"screencast/internal/catalog"
	"screencast/internal/clock"
)

type fakeDevices struct{}

func (fakeDevices) Screen(context.Context, capture.ScreenRequest) (*capture.Stream, error) {
	return capture.NewStream(capture.NewTrack(capture.TrackVideo, capture.DeviceScreen, "screen", nil)), nil
}

func (fakeDevices) Webcam(context.Context, capture.VideoConstraints) (*capture.Stream, error) {
	return capture.NewStream(capture.NewTrack(capture.TrackVideo, capture.DeviceWebcam, "webcam", nil)), nil
}

func (fakeDevices) Microphone(context.Context, capture.MicrophoneRequest) (*capture.Stream, error) {
	return capture.NewStream(capture.NewTrack(capture.TrackAudio, capture.DeviceMicrophone, "mic", nil)), nil
}

type fakeEncoder struct{ paused bool }

func (e *fakeEncoder) Start(onData func([]byte)) error {
	onData([]byte("webm"))
	return nil
}
func (e *fakeEncoder) Pause() error  { e.paused = true; return nil }
func (e *fakeEncoder) Resume() error { e.paused = false; return nil }
func (e *fakeEncoder) Stop() error   { return nil }

type fakeEncoders struct{}

func (fakeEncoders) IsTypeSupported(string) bool { return true }
func (fakeEncoders) NewEncoder(*capture.Stream, capture.EncoderOptions) (capture.Encoder, error) {
	return &fakeEncoder{}, nil
}

type nopPreviewer struct{}

func (nopPreviewer) Publish(*capture.Artifact) (string, error) { return "", nil }
func (nopPreviewer) Revoke(string)                             {}

type fakeUploader struct {
	err error
	got capture.UploadRequest
}

func (u *fakeUploader) Upload(_ context.Context, req capture.UploadRequest, progress func(int)) (*capture.UploadResult, error) {
	u.got = req
	if u.err != nil {
		return nil, u.err
	}
	progress(100)
	return &capture.UploadResult{ShareID: "abc123", ShareURL: "http://cast.test/v/abc123"}, nil
}

func newTestController(t *testing.T) *capture.Controller {
	t.Helper()
	ctrl := capture.NewController(fakeDevices{}, fakeEncoders{},
		capture.WithClock(clock.NewManual(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))),
		capture.WithPreviewer(nopPreviewer{}))
	t.Cleanup(ctrl.Close)
	return ctrl
}

// stoppedController returns a controller holding a finished recording.
func stoppedController(t *testing.T) *capture.Controller {
	t.Helper()
	ctrl := newTestController(t)
	keys := make(chan byte, 1)
	keys <- 's'
	if err := record(context.Background(), ctrl, keys, nil, nil, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func keysOf(s string) chan byte {
	ch := make(chan byte, len(s))
	for i := 0; i < len(s); i++ {
		ch <- s[i]
	}
	return ch
}

func TestReadSettings(t *testing.T) {
	t.Setenv("SCREENCAST_SERVER", "http://env.test/")
	t.Setenv("SCREENCAST_SCREEN_INPUT", ":1.0")
	t.Setenv("SCREENCAST_MIC_INPUT", "")

	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, s settings)
		wantErr bool
	}{
		{
			name: "environment",
			check: func(t *testing.T, s settings) {
				if s.Server != "http://env.test" {
					t.Errorf("Server = %q", s.Server)
				}
				if s.ScreenInput != ":1.0" {
					t.Errorf("ScreenInput = %q", s.ScreenInput)
				}
				if s.After != afterAsk || !s.Microphone || s.Webcam {
					t.Errorf("defaults = %+v", s)
				}
			},
		},
		{
			name: "flags beat environment",
			args: []string{"--server", "http://flag.test", "--title", "Demo", "--mic=false", "--after", "SAVE"},
			check: func(t *testing.T, s settings) {
				if s.Server != "http://flag.test" || s.Title != "Demo" {
					t.Errorf("settings = %+v", s)
				}
				if s.Microphone || s.After != afterSave {
					t.Errorf("settings = %+v", s)
				}
			},
		},
		{name: "bad after", args: []string{"--after", "later"}, wantErr: true},
		{
			name: "webcam preview placement",
			args: []string{"--webcam", "--position", "top-left", "--screen-size", "2560x1440"},
			check: func(t *testing.T, s settings) {
				if !s.Webcam || s.Position != string(capture.TopLeft) {
					t.Errorf("settings = %+v", s)
				}
				if s.ScreenW != 2560 || s.ScreenH != 1440 {
					t.Errorf("screen = %dx%d", s.ScreenW, s.ScreenH)
				}
				if s.FFplay != "ffplay" {
					t.Errorf("FFplay = %q", s.FFplay)
				}
			},
		},
		{name: "bad position", args: []string{"--position", "middle"}, wantErr: true},
		{name: "bad screen size", args: []string{"--screen-size", "wide"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			v, err := newConfig(cmd.Flags())
			if err != nil {
				t.Fatal(err)
			}
			s, err := readSettings(v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestSettingsInputs(t *testing.T) {
	s := settings{ScreenInput: ":1.0", WebcamDevice: "/dev/video2"}
	in := s.inputs("linux", "")
	if in.ScreenDevice != ":1.0" || in.WebcamDevice != "/dev/video2" {
		t.Errorf("overrides not applied: %+v", in)
	}
	if in.MicDevice != "default" {
		t.Errorf("MicDevice = %q, want platform default", in.MicDevice)
	}
}

func TestWebcamPreview(t *testing.T) {
	b := ffmpeg.New(ffmpeg.DefaultInputs("linux", ""))
	if p := (settings{}).webcamPreview(b); p != nil {
		t.Error("preview created with the webcam off")
	}
	s := settings{Webcam: true, FFplay: "ffplay", Position: string(capture.BottomLeft), ScreenW: 1920, ScreenH: 1080}
	p := s.webcamPreview(b)
	if p == nil {
		t.Fatal("no preview with the webcam on")
	}
	if p.Running() {
		t.Error("preview running before a webcam stream was attached")
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		key  byte
		want keyAction
	}{
		{'p', keyTogglePause},
		{' ', keyTogglePause},
		{'s', keyStop},
		{'Q', keyStop},
		{keyCtrlC, keyStop},
		{'x', keyIgnored},
	}
	for _, tt := range tests {
		if got := actionFor(tt.key); got != tt.want {
			t.Errorf("actionFor(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRecord(t *testing.T) {
	ctrl := newTestController(t)
	var out bytes.Buffer

	if err := record(context.Background(), ctrl, keysOf("pxps"), nil, nil, &out); err != nil {
		t.Fatal(err)
	}
	if ctrl.State() != capture.StateStopped {
		t.Fatalf("state = %s", ctrl.State())
	}
	if got := string(ctrl.Artifact().Data); got != "webm" {
		t.Errorf("artifact = %q", got)
	}
	for _, want := range []string{"PAUSED", "REC", "Recorded 00:00"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRecordStopsOnCancelAndTimer(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ctrl := newTestController(t)
		if err := record(ctx, ctrl, nil, nil, nil, &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		if ctrl.State() != capture.StateStopped {
			t.Errorf("state = %s", ctrl.State())
		}
	})
	t.Run("auto stop", func(t *testing.T) {
		fired := make(chan time.Time, 1)
		fired <- time.Time{}
		ctrl := newTestController(t)
		if err := record(context.Background(), ctrl, nil, nil, fired, &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		if ctrl.State() != capture.StateStopped {
			t.Errorf("state = %s", ctrl.State())
		}
	})
}

func TestAskAction(t *testing.T) {
	closed := make(chan byte)
	close(closed)

	tests := []struct {
		name string
		keys <-chan byte
		want string
	}{
		{"upload", keysOf("u"), afterUpload},
		{"enter uploads", keysOf("\r"), afterUpload},
		{"skips unknown keys", keysOf("xzd"), afterDiscard},
		{"save", keysOf("s"), afterSave},
		{"interrupt saves", keysOf(string(rune(keyCtrlC))), afterSave},
		{"no terminal saves", nil, afterSave},
		{"input ends saves", closed, afterSave},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := askAction(tt.keys, &bytes.Buffer{}); got != tt.want {
				t.Errorf("askAction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFinish(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		ctrl := stoppedController(t)
		ctrl.SetTitle("Demo")
		up := &fakeUploader{}
		var out bytes.Buffer
		if err := finish(context.Background(), ctrl, afterUpload, up, t.TempDir(), "Demo", &out); err != nil {
			t.Fatal(err)
		}
		if up.got.Title != "Demo" || string(up.got.Artifact.Data) != "webm" {
			t.Errorf("upload request = %+v", up.got)
		}
		if !strings.Contains(out.String(), "http://cast.test/v/abc123") {
			t.Errorf("output = %q", out.String())
		}
		if ctrl.State() != capture.StateIdle {
			t.Errorf("state = %s, want idle", ctrl.State())
		}
	})

	t.Run("failed upload saves", func(t *testing.T) {
		ctrl := stoppedController(t)
		dir := t.TempDir()
		uploadErr := errors.New("server down")
		err := finish(context.Background(), ctrl, afterUpload, &fakeUploader{err: uploadErr}, dir, "Demo", &bytes.Buffer{})
		if !errors.Is(err, uploadErr) {
			t.Fatalf("err = %v", err)
		}
		matches, _ := filepath.Glob(filepath.Join(dir, "Demo-*.webm"))
		if len(matches) != 1 {
			t.Fatalf("saved files = %v", matches)
		}
	})

	t.Run("save", func(t *testing.T) {
		ctrl := stoppedController(t)
		dir := t.TempDir()
		if err := finish(context.Background(), ctrl, afterSave, nil, dir, "", &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, "recording-"+"1767607200000"+".webm")
		data, err := os.ReadFile(want)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "webm" {
			t.Errorf("saved %q", data)
		}
	})

	t.Run("discard", func(t *testing.T) {
		ctrl := stoppedController(t)
		dir := t.TempDir()
		if err := finish(context.Background(), ctrl, afterDiscard, nil, dir, "", &bytes.Buffer{}); err != nil {
			t.Fatal(err)
		}
		if ctrl.State() != capture.StateIdle || ctrl.Artifact() != nil {
			t.Errorf("state = %s", ctrl.State())
		}
		if entries, _ := os.ReadDir(dir); len(entries) != 0 {
			t.Errorf("discard wrote %d files", len(entries))
		}
	})
}

type fakeLister struct {
	videos []catalog.Video
	err    error
}

func (f fakeLister) ListVideos(context.Context) ([]catalog.Video, error) {
	return f.videos, f.err
}

func TestListVideos(t *testing.T) {
	var out bytes.Buffer
	if err := listVideos(context.Background(), fakeLister{}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No recordings yet") {
		t.Errorf("empty output = %q", out.String())
	}

	out.Reset()
	videos := []catalog.Video{{
		ShareID:   "abc123",
		Title:     "Demo",
		Duration:  75,
		FileSize:  2 << 20,
		CreatedAt: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}}
	if err := listVideos(context.Background(), fakeLister{videos: videos}, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"SHARE ID", "abc123", "Demo", "1:15", "2.0 MB", "Jan 5, 2026"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	if err := listVideos(context.Background(), fakeLister{err: errors.New("boom")}, &out); err == nil {
		t.Error("expected error")
	}
}
