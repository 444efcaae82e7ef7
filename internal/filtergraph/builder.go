// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package filtergraph builds the ffmpeg filter-complex text for multi-clip
// timeline exports. The builder is a pure function of its inputs: every
// timeline maps to exactly one graph, gaps between items are filled with
// black video and silence, and the caller appends the subtitle-burn stage.
package filtergraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuGH/clipforge/internal/log"
)

// InputKind distinguishes the two supported source types.
type InputKind string

const (
	InputVideo InputKind = "video"
	InputImage InputKind = "image"
)

// Input is one `-i` argument; its position in the slice is its ffmpeg
// input index.
type Input struct {
	Kind InputKind `json:"kind"`
	Path string    `json:"path"`
	ID   string    `json:"id"`
}

// ItemKind distinguishes timeline item flavours.
type ItemKind string

const (
	ItemClip  ItemKind = "clip"
	ItemImage ItemKind = "image"
)

// Item is a placed timeline element. Times are seconds. NoAudio marks
// clips whose source carries no audio stream; silence is substituted.
type Item struct {
	ID           string   `json:"id"`
	Kind         ItemKind `json:"kind"`
	SourceID     string   `json:"sourceId"`
	ProjectStart float64  `json:"projectStart"`
	SourceIn     float64  `json:"sourceIn"`
	Duration     float64  `json:"duration"`
	NoAudio      bool     `json:"noAudio,omitempty"`
}

// ScalingMode selects how sources are fitted into the project frame.
type ScalingMode string

const (
	ScaleFit     ScalingMode = "fit"
	ScaleFill    ScalingMode = "fill"
	ScaleStretch ScalingMode = "stretch"
)

// ProjectConfig is the output frame geometry.
type ProjectConfig struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	FPS         int         `json:"fps"`
	ScalingMode ScalingMode `json:"scalingMode"`
}

// Graph is the built filter-complex. VideoLabel and AudioLabel name the
// two concatenated output streams.
type Graph struct {
	Filter        string
	VideoLabel    string
	AudioLabel    string
	Segments      int
	TotalDuration float64
}

// Build assembles the filter graph for the given timeline. Items are
// processed in projectStart order with stable tie-breaks; items whose
// source cannot be located are skipped with a warning.
func Build(inputs []Input, items []Item, cfg ProjectConfig) Graph {
	logger := log.WithComponent("filtergraph")

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProjectStart < sorted[j].ProjectStart
	})

	var (
		chains      []string
		concatPairs []string
		currentTime float64
		segment     int
	)

	for _, item := range sorted {
		if item.ProjectStart > currentTime {
			gap := item.ProjectStart - currentTime
			chains = append(chains,
				fmt.Sprintf("color=s=%dx%d:c=black:d=%s[gapv%d]", cfg.Width, cfg.Height, ffnum(gap), segment),
				fmt.Sprintf("anullsrc=cl=stereo:r=44100:d=%s[gapa%d]", ffnum(gap), segment),
			)
			concatPairs = append(concatPairs, fmt.Sprintf("[gapv%d][gapa%d]", segment, segment))
			segment++
		}

		idx, ok := findInput(inputs, item)
		if !ok {
			logger.Warn().
				Str("item_id", item.ID).
				Str("source_id", item.SourceID).
				Msg("timeline item references unknown source, skipping")
			continue
		}

		switch item.Kind {
		case ItemImage:
			chains = append(chains,
				fmt.Sprintf("[%d:v]%s,fps=%d,trim=duration=%s,setpts=PTS-STARTPTS[v%d]",
					idx, scaleChain(cfg), cfg.FPS, ffnum(item.Duration), segment),
				fmt.Sprintf("anullsrc=cl=stereo:r=44100:d=%s[a%d]", ffnum(item.Duration), segment),
			)
		default: // clip
			chains = append(chains, fmt.Sprintf(
				"[%d:v]trim=start=%s:duration=%s,setpts=PTS-STARTPTS,%s,fps=%d[v%d]",
				idx, ffnum(item.SourceIn), ffnum(item.Duration), scaleChain(cfg), cfg.FPS, segment))
			if item.NoAudio {
				chains = append(chains,
					fmt.Sprintf("anullsrc=cl=stereo:r=44100:d=%s[a%d]", ffnum(item.Duration), segment))
			} else {
				chains = append(chains, fmt.Sprintf(
					"[%d:a]atrim=start=%s:duration=%s,asetpts=PTS-STARTPTS,aresample=44100,aformat=sample_fmts=fltp:channel_layouts=stereo[a%d]",
					idx, ffnum(item.SourceIn), ffnum(item.Duration), segment))
			}
		}

		concatPairs = append(concatPairs, fmt.Sprintf("[v%d][a%d]", segment, segment))
		currentTime = item.ProjectStart + item.Duration
		segment++
	}

	concat := fmt.Sprintf("%sconcat=n=%d:v=1:a=1[vconcat][aconcat]",
		strings.Join(concatPairs, ""), segment)
	chains = append(chains, concat)

	return Graph{
		Filter:        strings.Join(chains, ";"),
		VideoLabel:    "[vconcat]",
		AudioLabel:    "[aconcat]",
		Segments:      segment,
		TotalDuration: currentTime,
	}
}

// findInput locates the ffmpeg input index matching the item's source id
// and expected kind.
func findInput(inputs []Input, item Item) (int, bool) {
	want := InputVideo
	if item.Kind == ItemImage {
		want = InputImage
	}
	for i, in := range inputs {
		if in.ID == item.SourceID && in.Kind == want {
			return i, true
		}
	}
	return 0, false
}

func scaleChain(cfg ProjectConfig) string {
	w, h := cfg.Width, cfg.Height
	switch cfg.ScalingMode {
	case ScaleFill:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
	case ScaleStretch:
		return fmt.Sprintf("scale=%d:%d,setsar=1", w, h)
	default: // fit
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h)
	}
}

// ffnum renders a duration without a trailing fractional zero, matching
// the compact form ffmpeg expects (5, 0.5, 10.25).
func ffnum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
