package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"screencast/internal/capture"
	"screencast/internal/capture/ffmpeg"
	"screencast/internal/logging"
	"screencast/internal/metrics"
	"screencast/internal/startup"
	"screencast/internal/upload"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultServer = "http://localhost:8080"

// What to do with a finished recording.
const (
	afterAsk     = "ask"
	afterUpload  = "upload"
	afterSave    = "save"
	afterDiscard = "discard"
)

// settings is the merged flag and SCREENCAST_* environment configuration.
type settings struct {
	Server       string
	FFmpeg       string
	FFplay       string
	ScreenInput  string
	MicInput     string
	WebcamDevice string

	Title       string
	Client      string
	Webcam      bool
	Microphone  bool
	SystemAudio bool
	Position    string
	ScreenW     int
	ScreenH     int
	After       string
	OutputDir   string
	Duration    time.Duration
	Verbose     bool
}

// newConfig binds flags to viper so that an explicit flag beats
// SCREENCAST_<FLAG>, which beats the flag default.
func newConfig(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SCREENCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	return v, nil
}

func readSettings(v *viper.Viper) (settings, error) {
	s := settings{
		Server:       strings.TrimRight(v.GetString("server"), "/"),
		FFmpeg:       v.GetString("ffmpeg"),
		FFplay:       v.GetString("ffplay"),
		ScreenInput:  v.GetString("screen-input"),
		MicInput:     v.GetString("mic-input"),
		WebcamDevice: v.GetString("webcam-device"),
		Title:        v.GetString("title"),
		Client:       v.GetString("client"),
		Webcam:       v.GetBool("webcam"),
		Microphone:   v.GetBool("mic"),
		SystemAudio:  v.GetBool("system-audio"),
		Position:     v.GetString("position"),
		After:        strings.ToLower(v.GetString("after")),
		OutputDir:    v.GetString("output-dir"),
		Duration:     v.GetDuration("duration"),
		Verbose:      v.GetBool("verbose"),
	}

	switch s.After {
	case afterAsk, afterUpload, afterSave, afterDiscard:
	default:
		return s, fmt.Errorf("unknown --after %q (want ask, upload, save or discard)", s.After)
	}
	switch capture.WebcamPosition(s.Position) {
	case capture.BottomRight, capture.BottomLeft, capture.TopRight, capture.TopLeft:
	default:
		return s, fmt.Errorf("unknown --position %q", s.Position)
	}
	size := v.GetString("screen-size")
	if _, err := fmt.Sscanf(size, "%dx%d", &s.ScreenW, &s.ScreenH); err != nil || s.ScreenW <= 0 || s.ScreenH <= 0 {
		return s, fmt.Errorf("bad --screen-size %q (want WIDTHxHEIGHT)", size)
	}
	return s, nil
}

// inputs starts from the platform defaults and applies the overrides.
func (s settings) inputs(goos, display string) ffmpeg.Inputs {
	in := ffmpeg.DefaultInputs(goos, display)
	if s.ScreenInput != "" {
		in.ScreenDevice = s.ScreenInput
	}
	if s.MicInput != "" {
		in.MicDevice = s.MicInput
	}
	if s.WebcamDevice != "" {
		in.WebcamDevice = s.WebcamDevice
	}
	return in
}

func (s settings) options() capture.Options {
	return capture.Options{
		Webcam:         s.Webcam,
		Microphone:     s.Microphone,
		SystemAudio:    s.SystemAudio,
		WebcamPosition: capture.WebcamPosition(s.Position),
	}
}

// webcamPreview returns the window that shows the webcam bubble, or nil when
// the webcam is off.
func (s settings) webcamPreview(b *ffmpeg.Backend) *ffmpeg.Preview {
	if !s.Webcam {
		return nil
	}
	return b.NewPreview(s.FFplay, capture.WebcamPosition(s.Position), s.ScreenW, s.ScreenH)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the screen and share it",
		Long: "Records the screen with microphone and system audio through ffmpeg.\n" +
			"Press p to pause or resume and s to stop. The finished recording is\n" +
			"uploaded to the screencast server, saved locally, or discarded.",
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newConfig(cmd.Flags())
			if err != nil {
				return err
			}
			s, err := readSettings(v)
			if err != nil {
				return err
			}
			return runRecord(cmd, s)
		},
	}

	f := cmd.PersistentFlags()
	f.String("server", defaultServer, "screencast server URL (SCREENCAST_SERVER)")
	f.Bool("verbose", false, "write logs to stderr")

	f = cmd.Flags()
	f.StringP("title", "t", "", "recording title")
	f.StringP("client", "c", "", "client or account name")
	f.Bool("webcam", false, "show the webcam preview")
	f.Bool("mic", true, "record the microphone")
	f.Bool("system-audio", true, "record system audio")
	f.String("position", string(capture.BottomRight), "webcam preview corner")
	f.String("screen-size", "1920x1080", "screen size used to place the webcam preview")
	f.String("after", afterAsk, "what to do when recording stops: ask, upload, save or discard")
	f.StringP("output-dir", "o", ".", "directory for saved recordings")
	f.Duration("duration", 0, "stop automatically after this long (0 = until s is pressed)")
	f.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	f.String("ffplay", "ffplay", "ffplay binary for the webcam preview")
	f.String("screen-input", "", "ffmpeg screen device (SCREENCAST_SCREEN_INPUT)")
	f.String("mic-input", "", "ffmpeg microphone device (SCREENCAST_MIC_INPUT)")
	f.String("webcam-device", "", "ffmpeg webcam device (SCREENCAST_WEBCAM_DEVICE)")

	cmd.AddCommand(newListCmd(), newDeleteCmd())
	return cmd
}

// remoteFor builds the server client from the persistent flags.
func remoteFor(cmd *cobra.Command) (*upload.Remote, error) {
	v, err := newConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return upload.NewRemote(strings.TrimRight(v.GetString("server"), "/"), nil), nil
}

func runRecord(cmd *cobra.Command, s settings) error {
	if !s.Verbose {
		logging.SetOutput(io.Discard)
	}
	metrics.InitializeCaptureMetrics()

	backend := ffmpeg.New(s.inputs(runtime.GOOS, os.Getenv("DISPLAY")), ffmpeg.WithBinary(s.FFmpeg))
	if err := backend.CheckFFmpeg(); err != nil {
		return err
	}

	ctrl := capture.NewController(backend, backend, capture.WithPreviewer(capture.TempFilePreviewer{}))
	defer ctrl.Close()
	if err := ctrl.SetOptions(s.options()); err != nil {
		return err
	}
	ctrl.SetTitle(s.Title)
	ctrl.SetClient(s.Client)
	if preview := s.webcamPreview(backend); preview != nil {
		ctrl.BindPreview(capture.DeviceWebcam, preview)
		defer preview.Close()
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	keys, restore, err := rawKeys(ctx, os.Stdin)
	if err != nil {
		if s.Duration == 0 {
			return fmt.Errorf("%w; use --duration to record without one", err)
		}
		keys, restore = nil, func() {}
	}
	defer restore()

	var autoStop <-chan time.Time
	if s.Duration > 0 {
		timer := time.NewTimer(s.Duration)
		defer timer.Stop()
		autoStop = timer.C
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	if err := record(ctx, ctrl, keys, ticker.C, autoStop, out); err != nil {
		return err
	}

	action := s.After
	if action == afterAsk {
		action = askAction(keys, out)
	}
	restore()

	dir, err := filepath.Abs(s.OutputDir)
	if err != nil {
		return err
	}
	// Interrupts stop the recording, not the upload that follows it.
	return finish(context.WithoutCancel(ctx), ctrl, action, upload.NewRemote(s.Server, nil), dir, s.Title, out)
}
