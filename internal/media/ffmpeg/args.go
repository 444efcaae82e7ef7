// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ffmpeg builds argv lists for the external toolchain, supervises
// the spawned process, and parses its stderr progress stream.
package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/ManuGH/clipforge/internal/filtergraph"
)

// DefaultVideoCodec is used when a job does not pin an encoder.
const DefaultVideoCodec = "libx264"

// BurnSpec describes a single-input subtitle burn.
type BurnSpec struct {
	InputPath    string
	SubtitlePath string
	OutputPath   string
	VideoCodec   string
}

// BurnArgs builds the argv for burning a subtitle file into one video.
func BurnArgs(spec BurnSpec) []string {
	codec := spec.VideoCodec
	if codec == "" {
		codec = DefaultVideoCodec
	}
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", spec.InputPath,
		"-vf", "subtitles=" + escapeFilterPath(spec.SubtitlePath),
		"-c:v", codec,
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		spec.OutputPath,
	}
}

// ExportSpec describes a multi-clip timeline export.
type ExportSpec struct {
	Inputs       []filtergraph.Input
	Graph        filtergraph.Graph
	SubtitlePath string
	OutputPath   string
	VideoCodec   string
}

// ExportArgs builds the argv for a timeline export. Image inputs are fed
// with a loop directive; when a subtitle path is set, a burn stage is
// appended after the concat and its output mapped instead.
func ExportArgs(spec ExportSpec) []string {
	codec := spec.VideoCodec
	if codec == "" {
		codec = DefaultVideoCodec
	}

	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, in := range spec.Inputs {
		if in.Kind == filtergraph.InputImage {
			args = append(args, "-loop", "1")
		}
		args = append(args, "-i", in.Path)
	}

	filter := spec.Graph.Filter
	videoLabel := spec.Graph.VideoLabel
	if spec.SubtitlePath != "" {
		filter = fmt.Sprintf("%s;%ssubtitles=%s[vfinal]",
			filter, spec.Graph.VideoLabel, escapeFilterPath(spec.SubtitlePath))
		videoLabel = "[vfinal]"
	}

	args = append(args,
		"-filter_complex", filter,
		"-map", videoLabel,
		"-map", spec.Graph.AudioLabel,
		"-c:v", codec,
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		spec.OutputPath,
	)
	return args
}

// escapeFilterPath quotes a filesystem path for use inside a filter
// graph. Backslashes, quotes and colons are significant to the filter
// parser and must be escaped within the quoted string.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
	)
	return "'" + r.Replace(path) + "'"
}
