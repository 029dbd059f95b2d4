package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"screencast/internal/capture"
	"screencast/internal/format"

	"golang.org/x/term"
)

// Raw mode delivers these instead of signals.
const (
	keyCtrlC = 3
	keyCtrlD = 4
)

type keyAction int

const (
	keyIgnored keyAction = iota
	keyTogglePause
	keyStop
)

func actionFor(b byte) keyAction {
	switch b {
	case 'p', 'P', ' ':
		return keyTogglePause
	case 's', 'S', 'q', 'Q', keyCtrlC, keyCtrlD:
		return keyStop
	}
	return keyIgnored
}

// rawKeys puts in into raw mode and delivers single key presses. The
// returned restore func is idempotent.
func rawKeys(ctx context.Context, in *os.File) (<-chan byte, func(), error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil, errors.New("stdin is not a terminal")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("entering raw mode: %w", err)
	}

	restored := false
	restore := func() {
		if !restored {
			restored = true
			_ = term.Restore(fd, state)
		}
	}

	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return keys, restore, nil
}

// record starts ctrl and runs until the user stops it, autoStop fires,
// ctx is cancelled, or the screen source goes away. Output uses CRLF since
// the terminal is raw.
func record(ctx context.Context, ctrl *capture.Controller, keys <-chan byte, tick, autoStop <-chan time.Time, out io.Writer) error {
	if err := ctrl.Start(ctx); err != nil {
		return errors.New(capture.UserMessage(err))
	}
	printDevices(out, ctrl.Snapshot())
	printStatus(out, ctrl.Snapshot())

	stop := func() {
		if err := ctrl.Stop(); err != nil && !errors.Is(err, capture.ErrInvalidState) {
			fmt.Fprintf(out, "\r\nstop failed: %v\r\n", err)
		}
	}

	for ctrl.State() != capture.StateStopped {
		select {
		case <-ctx.Done():
			stop()
		case <-autoStop:
			stop()
		case b, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch actionFor(b) {
			case keyTogglePause:
				togglePause(ctrl, out)
			case keyStop:
				stop()
			}
		case <-tick:
		}
		printStatus(out, ctrl.Snapshot())
	}

	snap := ctrl.Snapshot()
	fmt.Fprintf(out, "\r\nRecorded %s (%s)\r\n", format.Clock(snap.Elapsed), format.Size(snap.ArtifactSize))
	if snap.PreviewRef != "" {
		fmt.Fprintf(out, "Preview: %s\r\n", snap.PreviewRef)
	}
	return nil
}

func togglePause(ctrl *capture.Controller, out io.Writer) {
	var err error
	switch ctrl.State() {
	case capture.StateRecording:
		err = ctrl.Pause()
	case capture.StatePaused:
		err = ctrl.Resume()
	}
	if err != nil {
		fmt.Fprintf(out, "\r\n%v\r\n", err)
	}
}

func printDevices(out io.Writer, snap capture.Snapshot) {
	for _, dev := range []capture.DeviceKind{capture.DeviceScreen, capture.DeviceMicrophone, capture.DeviceWebcam} {
		if st := snap.Devices[dev]; st != capture.StatusNotRequested {
			fmt.Fprintf(out, "  %-10s %s\r\n", dev, st)
		}
	}
}

func printStatus(out io.Writer, snap capture.Snapshot) {
	switch snap.State {
	case capture.StateRecording:
		fmt.Fprintf(out, "\r\x1b[K● REC %s  %s  [p] pause  [s] stop", format.Clock(snap.Elapsed), format.Size(int64(snap.BufferedBytes)))
	case capture.StatePaused:
		fmt.Fprintf(out, "\r\x1b[K❚❚ PAUSED %s  [p] resume  [s] stop", format.Clock(snap.Elapsed))
	}
}

// askAction prompts for what to do with the recording. Without a
// terminal, or when input ends, the recording is saved rather than lost.
func askAction(keys <-chan byte, out io.Writer) string {
	if keys == nil {
		return afterSave
	}
	fmt.Fprint(out, "[u] upload  [s] save  [d] discard: ")
	for b := range keys {
		switch b {
		case 'u', 'U', '\r', '\n':
			fmt.Fprint(out, "upload\r\n")
			return afterUpload
		case 's', 'S':
			fmt.Fprint(out, "save\r\n")
			return afterSave
		case 'd', 'D':
			fmt.Fprint(out, "discard\r\n")
			return afterDiscard
		case keyCtrlC, keyCtrlD:
			fmt.Fprint(out, "save\r\n")
			return afterSave
		}
	}
	return afterSave
}

// finish uploads, saves or discards the stopped recording. A failed upload
// falls back to saving so the recording is not lost.
func finish(ctx context.Context, ctrl *capture.Controller, action string, up capture.Uploader, dir, title string, out io.Writer) error {
	switch action {
	case afterDiscard:
		fmt.Fprintln(out, "Recording discarded")
		return ctrl.Discard()

	case afterUpload:
		fmt.Fprintln(out, "Uploading...")
		res, err := ctrl.Upload(ctx, up)
		if err == nil {
			fmt.Fprintf(out, "Share link: %s\n", res.ShareURL)
			return ctrl.Discard()
		}
		fmt.Fprintf(out, "Upload failed: %v\n", err)
		path, saveErr := save(ctrl, dir, title)
		if saveErr != nil {
			return errors.Join(err, saveErr)
		}
		fmt.Fprintf(out, "Saved to %s instead\n", path)
		return err

	default:
		path, err := save(ctrl, dir, title)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved to %s\n", path)
		return ctrl.Discard()
	}
}

func save(ctrl *capture.Controller, dir, title string) (string, error) {
	art := ctrl.Artifact()
	if art == nil || len(art.Data) == 0 {
		return "", errors.New("nothing was recorded")
	}
	path := filepath.Join(dir, art.DownloadName(title))
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return "", fmt.Errorf("saving recording: %w", err)
	}
	return path, nil
}
