// Package ffmpeg implements capture.Devices and capture.EncoderFactory on
// top of the ffmpeg command line tool.
//
// Acquiring a device probes the corresponding ffmpeg input (or, for a V4L2
// webcam, opens the device node and holds it) and returns tracks that
// remember which input they came from. The encoder then starts a single
// ffmpeg process reading every input of the composed stream and writing
// WebM to stdout, which is cut into chunks at the configured timeslice.
//
// When the process exits without being asked to, the screen track is ended
// from the source side so the controller stops the session the same way a
// revoked browser share would.
package ffmpeg
