package ffmpeg

import (
	"strconv"
)

// Inputs names the ffmpeg input formats and devices used for capture. An
// empty device disables that source.
type Inputs struct {
	ScreenFormat string
	ScreenDevice string

	AudioFormat       string
	MicDevice         string
	SystemAudioDevice string

	WebcamFormat string
	WebcamDevice string
}

// DefaultInputs returns the platform defaults for goos. display is the X11
// display to grab on Linux; ":0.0" when empty.
func DefaultInputs(goos, display string) Inputs {
	switch goos {
	case "darwin":
		// avfoundation has no loopback device; system audio needs a
		// virtual device configured explicitly.
		return Inputs{
			ScreenFormat: "avfoundation",
			ScreenDevice: "Capture screen 0:none",
			AudioFormat:  "avfoundation",
			MicDevice:    "none:default",
			WebcamFormat: "avfoundation",
			WebcamDevice: "default:none",
		}
	case "windows":
		return Inputs{
			ScreenFormat: "gdigrab",
			ScreenDevice: "desktop",
			AudioFormat:  "dshow",
			WebcamFormat: "dshow",
		}
	default:
		if display == "" {
			display = ":0.0"
		}
		return Inputs{
			ScreenFormat:      "x11grab",
			ScreenDevice:      display,
			AudioFormat:       "pulse",
			MicDevice:         "default",
			SystemAudioDevice: "@DEFAULT_MONITOR@",
			WebcamFormat:      "v4l2",
			WebcamDevice:      "/dev/video0",
		}
	}
}

// source is an acquired ffmpeg input.
type source struct {
	format string
	device string

	// video only
	width, height, frameRate int

	// audio only
	denoise bool
}

func (s source) inputArgs() []string {
	var args []string
	args = append(args, "-f", s.format)
	if s.frameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(s.frameRate))
	}
	if s.width > 0 && s.height > 0 && s.format == "x11grab" {
		args = append(args, "-video_size", strconv.Itoa(s.width)+"x"+strconv.Itoa(s.height))
	}
	if s.format == "avfoundation" && s.frameRate > 0 {
		args = append(args, "-capture_cursor", "1")
	}
	return append(args, "-i", s.device)
}
