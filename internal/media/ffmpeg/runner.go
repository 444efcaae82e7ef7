// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/metrics"
	"github.com/ManuGH/clipforge/internal/procgroup"
)

// stderrRingSize bounds the retained stderr; the tail becomes the error
// text of a failed job.
const stderrRingSize = 256

// Runner executes one toolchain process per call. It is safe for
// concurrent use; each Run owns its own process and ring.
type Runner struct {
	BinPath     string
	KillTimeout time.Duration
}

// NewRunner returns a runner for the given binary path, defaulting to
// "ffmpeg" on PATH.
func NewRunner(binPath string) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Runner{
		BinPath:     binPath,
		KillTimeout: 5 * time.Second,
	}
}

// Run spawns the process and blocks until exit. Progress stamps parsed
// from stderr are divided by totalDuration and reported through
// onProgress as 0..100. Context cancellation tears down the whole
// process group. A non-zero exit returns an error carrying the stderr
// tail.
func (r *Runner) Run(ctx context.Context, args []string, totalDuration float64, onProgress func(percent int)) error {
	logger := log.WithComponent("ffmpeg")
	ring := NewLineRing(stderrRingSize)

	cmd := exec.CommandContext(ctx, r.BinPath, args...) // #nosec G204
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			procgroup.KillGroup(cmd.Process.Pid, r.KillTimeout)
		}
		return nil
	}
	cmd.WaitDelay = r.KillTimeout + time.Second

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("capture stderr: %w", err)
	}

	var ioWg sync.WaitGroup
	ioWg.Add(1)
	go func() {
		defer ioWg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			ring.Append(line)
			if elapsed, ok := ParseProgressLine(line); ok && onProgress != nil {
				onProgress(ProgressToPercent(elapsed, totalDuration))
			}
		}
	}()

	logger.Info().Str("command", cmd.String()).Msg("starting ffmpeg process")
	if err := cmd.Start(); err != nil {
		metrics.FFmpegStartTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("ffmpeg start failed: %w", err)
	}
	metrics.FFmpegStartTotal.WithLabelValues("ok").Inc()

	waitErr := cmd.Wait()
	ioWg.Wait()

	switch {
	case ctx.Err() != nil:
		metrics.FFmpegExitTotal.WithLabelValues("ctx_cancel").Inc()
		return ctx.Err()
	case waitErr != nil:
		metrics.FFmpegExitTotal.WithLabelValues("error").Inc()
		tail := ring.LastN(20)
		logger.Error().
			Strs("stderr", tail).
			Err(waitErr).
			Msg("ffmpeg process failed")
		return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, ring.String())
	default:
		metrics.FFmpegExitTotal.WithLabelValues("clean").Inc()
		return nil
	}
}
