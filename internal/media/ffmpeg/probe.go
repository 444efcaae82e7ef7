// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Prober reads container metadata with ffprobe.
type Prober struct {
	BinPath string
	Timeout time.Duration
}

// NewProber returns a prober for the given binary path, defaulting to
// "ffprobe" on PATH.
func NewProber(binPath string) *Prober {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &Prober{
		BinPath: binPath,
		Timeout: 15 * time.Second,
	}
}

// Duration returns the container duration of the media file in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.BinPath, // #nosec G204
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	raw := strings.TrimSpace(string(out))
	dur, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: unparseable duration %q: %w", path, raw, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("ffprobe %s: non-positive duration %v", path, dur)
	}
	return dur, nil
}
