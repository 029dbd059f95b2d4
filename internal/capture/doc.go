// Package capture implements the recording side of screencast: it acquires
// screen, webcam and microphone handles, composes the screen's video with
// every acquired audio source into one recordable stream, drives the
// idle/recording/paused/stopped/uploading state machine and buffers the
// encoder's output until the recording is stopped.
//
// Devices and encoders are interfaces. The ffmpeg subpackage provides the
// production backend; tests use in-memory fakes.
//
// Every media handle a Controller acquires is released on every exit path:
// stop, discard, start-up failure and Close. Releasing is idempotent.
package capture
