// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"regexp"
	"strconv"
)

// timeRe matches the progress stamps ffmpeg writes to stderr, e.g.
// "frame= 120 fps=30 ... time=00:01:02.53 bitrate=...".
var timeRe = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2})\.(\d+)`)

// ParseProgressLine extracts the elapsed output seconds from one stderr
// line. The bool reports whether the line carried a time stamp.
func ParseProgressLine(line string) (float64, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	frac, _ := strconv.Atoi(m[4])

	fracSec := float64(frac)
	for i := 0; i < len(m[4]); i++ {
		fracSec /= 10
	}
	return float64(h)*3600 + float64(min)*60 + float64(sec) + fracSec, true
}

// ProgressToPercent converts elapsed seconds against a total duration to
// a clamped 0..100 percentage. Returns 0 when the total is unknown.
func ProgressToPercent(elapsed, total float64) int {
	if total <= 0 {
		return 0
	}
	pct := int(elapsed / total * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
