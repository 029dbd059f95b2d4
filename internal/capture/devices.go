package capture

import (
	"context"
	"errors"
	"fmt"
)

// DeviceKind names a capture source.
type DeviceKind string

const (
	DeviceScreen     DeviceKind = "screen"
	DeviceWebcam     DeviceKind = "webcam"
	DeviceMicrophone DeviceKind = "microphone"
)

// DeviceStatus is the outcome of requesting one device during start-up.
type DeviceStatus string

const (
	StatusNotRequested DeviceStatus = "not-requested"
	StatusGranted      DeviceStatus = "granted"
	StatusDenied       DeviceStatus = "denied"
	StatusUnavailable  DeviceStatus = "unavailable"
)

var (
	// ErrPermissionDenied is returned by a backend when the user or the
	// platform refused access to a device.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDeviceUnavailable is returned when a device does not exist or
	// cannot be opened.
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// VideoConstraints is the requested capture geometry.
type VideoConstraints struct {
	Width     int
	Height    int
	FrameRate int
}

// ScreenRequest asks for the screen's video and, when Audio is set, the
// system or tab audio alongside it.
type ScreenRequest struct {
	Video VideoConstraints
	Audio bool
}

// MicrophoneRequest carries the audio processing flags for the microphone.
type MicrophoneRequest struct {
	EchoCancellation bool
	NoiseSuppression bool
}

// Devices acquires media handles. Each call may block on a permission
// prompt. The returned stream is owned by the caller.
type Devices interface {
	Screen(ctx context.Context, req ScreenRequest) (*Stream, error)
	Webcam(ctx context.Context, req VideoConstraints) (*Stream, error)
	Microphone(ctx context.Context, req MicrophoneRequest) (*Stream, error)
}

// PermissionError reports a failed device acquisition.
type PermissionError struct {
	Device DeviceKind
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s capture: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// statusFor classifies an acquisition error.
func statusFor(err error) DeviceStatus {
	switch {
	case err == nil:
		return StatusGranted
	case errors.Is(err, ErrPermissionDenied):
		return StatusDenied
	default:
		return StatusUnavailable
	}
}

// UserMessage turns a capture or upload error into banner text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var perr *PermissionError
	if errors.As(err, &perr) && perr.Device == DeviceScreen && errors.Is(err, ErrPermissionDenied) {
		return "Screen sharing was denied. Please allow screen sharing to record."
	}
	return fmt.Sprintf("Failed to start recording: %v", err)
}
