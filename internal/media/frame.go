package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"time"

	_ "image/png"

	"screencast/internal/logging"
)

// FrameExtractor decodes one frame of a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, video []byte, offset time.Duration) (image.Image, error)
}

// CommandFunc builds the command for one ffmpeg invocation.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// FFmpegExtractor grabs frames with the ffmpeg binary.
type FFmpegExtractor struct {
	Binary  string
	TempDir string
	Command CommandFunc
}

// NewFFmpegExtractor returns an extractor using ffmpeg from PATH.
func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{Binary: "ffmpeg", Command: exec.CommandContext}
}

// ExtractFrame writes video to a temporary file so ffmpeg can seek, then
// grabs the frame at offset. Recordings shorter than offset fall back to
// the first frame.
func (x *FFmpegExtractor) ExtractFrame(ctx context.Context, video []byte, offset time.Duration) (image.Image, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("empty video")
	}

	f, err := os.CreateTemp(x.TempDir, "screencast-thumb-*.webm")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(video); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	out, err := x.run(ctx, frameArgs(f.Name(), offset))
	if err != nil || len(out) == 0 {
		logging.Debug("Frame at %s failed for %s (%v), retrying first frame", offset, f.Name(), err)
		out, err = x.run(ctx, frameArgs(f.Name(), 0))
		if err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

func frameArgs(path string, offset time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

func (x *FFmpegExtractor) run(ctx context.Context, args []string) ([]byte, error) {
	command := x.Command
	if command == nil {
		command = exec.CommandContext
	}
	binary := x.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	cmd := command(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
