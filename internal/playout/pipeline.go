/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// stopTimeout is how long a pipeline gets to honour an interrupt before it is killed.
const stopTimeout = 5 * time.Second

// Pipeline supervises one gst-launch process.
type Pipeline struct {
	bin    string
	logger zerolog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{} // closed when the process has exited
}

// NewPipeline constructs a pipeline that runs bin.
func NewPipeline(bin string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{bin: bin, logger: logger}
}

// Start launches the gst pipeline described by launch.
func (p *Pipeline) Start(ctx context.Context, launch string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runningLocked() {
		return fmt.Errorf("pipeline already running")
	}

	// The shell parses the launch description the same way gst-launch's own docs do.
	cmd := exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf("%s -e %s", p.bin, launch))
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	p.cmd = cmd
	p.done = make(chan struct{})

	go func(done chan struct{}, c *exec.Cmd) {
		err := c.Wait()
		close(done)
		if err != nil {
			p.logger.Debug().Err(err).Msg("gstreamer pipeline exited")
		} else {
			p.logger.Info().Msg("gstreamer pipeline stopped")
		}
	}(p.done, cmd)

	return nil
}

// Running reports whether the process is alive.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *Pipeline) runningLocked() bool {
	if p.cmd == nil || p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop interrupts the running process and waits for it, killing it after stopTimeout.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	if cmd == nil || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-time.After(stopTimeout):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	case <-done:
	}
	return nil
}

// shellQuote wraps s in single quotes for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
