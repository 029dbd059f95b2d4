//go:build !windows

package ffmpeg

import (
	"fmt"
	"os"
	"syscall"
)

func suspend(p *os.Process) error {
	if err := p.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("suspending ffmpeg: %w", err)
	}
	return nil
}

func resume(p *os.Process) error {
	if err := p.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("resuming ffmpeg: %w", err)
	}
	return nil
}
