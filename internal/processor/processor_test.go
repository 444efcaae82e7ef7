// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clipforge/internal/ai"
	"github.com/ManuGH/clipforge/internal/filtergraph"
	"github.com/ManuGH/clipforge/internal/fsutil"
	"github.com/ManuGH/clipforge/internal/media/ffmpeg"
	"github.com/ManuGH/clipforge/internal/pathsafe"
	"github.com/ManuGH/clipforge/internal/queue"
)

// fakeBin writes an executable that prints a progress stamp to stderr
// and exits cleanly, standing in for the real toolchain.
func fakeBin(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakebin")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func testLayout(t *testing.T) (*fsutil.Layout, *pathsafe.Gate) {
	t.Helper()
	l, err := fsutil.InitLayout(filepath.Join(t.TempDir(), "staging"))
	require.NoError(t, err)
	gate, err := pathsafe.NewGate(l.Root)
	require.NoError(t, err)
	return l, gate
}

func TestSingleBurnHappyPath(t *testing.T) {
	l, gate := testLayout(t)

	input := filepath.Join(l.Videos, "in.mp4")
	subs := filepath.Join(l.Videos, "subs.srt")
	output := filepath.Join(l.Exports, "j1", "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(subs, []byte("x"), 0o600))

	runner := ffmpeg.NewRunner(fakeBin(t, `echo 'time=00:00:05.00 bitrate=N/A' >&2`))
	prober := ffmpeg.NewProber(fakeBin(t, `echo 10.000000`))

	p := NewSingleBurn(runner, prober, gate)
	job := &queue.Job{
		ID: "j1",
		Metadata: queue.Metadata{
			Kind: queue.KindSingleBurn,
			SingleBurn: &queue.SingleBurnMeta{
				InputPath:    input,
				SubtitlePath: subs,
				OutputPath:   output,
			},
		},
	}

	var seen []int
	res, err := p.Process(context.Background(), job, func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, output, res.OutputVideoPath)
	assert.Equal(t, subs, res.OutputSubtitlePath)
	assert.Contains(t, seen, 50, "5s of 10s input is 50 percent")

	// Output directory was created for the toolchain.
	info, err := os.Stat(filepath.Dir(output))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSingleBurnRejectsUnsafePaths(t *testing.T) {
	l, gate := testLayout(t)
	p := NewSingleBurn(ffmpeg.NewRunner("false"), ffmpeg.NewProber("false"), gate)

	job := &queue.Job{
		ID: "j1",
		Metadata: queue.Metadata{
			Kind: queue.KindSingleBurn,
			SingleBurn: &queue.SingleBurnMeta{
				InputPath:    filepath.Join(l.Videos, "..", "..", "etc", "passwd"),
				SubtitlePath: filepath.Join(l.Videos, "s.srt"),
				OutputPath:   filepath.Join(l.Exports, "out.mp4"),
			},
		},
	}
	_, err := p.Process(context.Background(), job, func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety gate")
}

func TestSingleBurnMissingMetadata(t *testing.T) {
	_, gate := testLayout(t)
	p := NewSingleBurn(ffmpeg.NewRunner("false"), ffmpeg.NewProber("false"), gate)

	_, err := p.Process(context.Background(), &queue.Job{ID: "j1"}, func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no single-burn metadata")
}

func TestMultiExportHappyPath(t *testing.T) {
	l, gate := testLayout(t)

	clip := filepath.Join(l.Videos, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("x"), 0o600))
	output := filepath.Join(l.Exports, "j2", "out.mp4")

	runner := ffmpeg.NewRunner(fakeBin(t, `echo 'time=00:00:04.00 bitrate=N/A' >&2`))
	p := NewMultiExport(runner, gate)

	job := &queue.Job{
		ID: "j2",
		Metadata: queue.Metadata{
			Kind: queue.KindMultiExport,
			MultiExport: &queue.MultiExportMeta{
				Inputs: []filtergraph.Input{{Kind: filtergraph.InputVideo, ID: "v1", Path: clip}},
				Items: []filtergraph.Item{{
					Kind: filtergraph.ItemClip, SourceID: "v1", ProjectStart: 0, Duration: 8,
				}},
				Project:    filtergraph.ProjectConfig{Width: 1280, Height: 720, FPS: 30, ScalingMode: filtergraph.ScaleFit},
				OutputPath: output,
			},
		},
	}

	var seen []int
	res, err := p.Process(context.Background(), job, func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, output, res.OutputVideoPath)
	assert.Contains(t, seen, 50, "4s of 8s timeline is 50 percent")
}

func TestMultiExportEmptyTimeline(t *testing.T) {
	l, gate := testLayout(t)
	clip := filepath.Join(l.Videos, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("x"), 0o600))

	p := NewMultiExport(ffmpeg.NewRunner("false"), gate)
	job := &queue.Job{
		ID: "j3",
		Metadata: queue.Metadata{
			Kind: queue.KindMultiExport,
			MultiExport: &queue.MultiExportMeta{
				Inputs:     []filtergraph.Input{{Kind: filtergraph.InputVideo, ID: "v1", Path: clip}},
				Project:    filtergraph.ProjectConfig{Width: 1280, Height: 720, FPS: 30, ScalingMode: filtergraph.ScaleFit},
				OutputPath: filepath.Join(l.Exports, "out.mp4"),
			},
		},
	}
	_, err := p.Process(context.Background(), job, func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero segments")
}

// stubAdapter satisfies ai.Adapter for transcription tests.
type stubAdapter struct {
	name string
	res  *ai.Result
	err  error
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Generate(ctx context.Context, mc ai.ModelConfig, p ai.Params) (*ai.Result, error) {
	return a.res, a.err
}

func (a *stubAdapter) Translate(ctx context.Context, mc ai.ModelConfig, p ai.Params) (*ai.Result, error) {
	return a.res, a.err
}

func TestTranscribeGenerateWritesSRT(t *testing.T) {
	l, gate := testLayout(t)

	input := filepath.Join(l.Videos, "talk.mp4")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o600))

	engine := ai.NewEngine(&stubAdapter{name: "gemini", res: &ai.Result{
		DetectedLanguage: "en",
		Subtitles: []ai.Subtitle{
			{Index: 1, StartMs: 0, EndMs: 1500, Text: "Hello"},
			{Index: 2, StartMs: 1500, EndMs: 3000, Text: "World", SecondaryText: "Welt"},
		},
	}})
	chain := []ai.ModelConfig{{Provider: "gemini", ModelName: "gemini-2.0-flash", Enabled: true}}

	p := NewTranscribe(engine, chain, gate, l)
	job := &queue.Job{
		ID: "j4",
		Metadata: queue.Metadata{
			Kind:       queue.KindTranscribe,
			Transcribe: &queue.TranscribeMeta{InputPath: input, Task: "generate"},
		},
	}

	res, err := p.Process(context.Background(), job, func(int) {})
	require.NoError(t, err)
	require.Len(t, res.Subtitles, 2)
	assert.Equal(t, filepath.Join(l.Exports, "j4", "subtitles.srt"), res.OutputSubtitlePath)

	data, err := os.ReadFile(res.OutputSubtitlePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "00:00:00,000 --> 00:00:01,500")
	assert.Contains(t, string(data), "Hello")
	assert.Contains(t, string(data), "Welt")
}

func TestTranscribeTranslateRequiresSubtitles(t *testing.T) {
	l, gate := testLayout(t)
	engine := ai.NewEngine(&stubAdapter{name: "openai", res: &ai.Result{}})

	p := NewTranscribe(engine, []ai.ModelConfig{{Provider: "openai", Enabled: true}}, gate, l)
	job := &queue.Job{
		ID: "j5",
		Metadata: queue.Metadata{
			Kind:       queue.KindTranscribe,
			Transcribe: &queue.TranscribeMeta{Task: "translate", TargetLanguage: "de"},
		},
	}
	_, err := p.Process(context.Background(), job, func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without source subtitles")
}

func TestChainForPinsModelFirst(t *testing.T) {
	p := &Transcribe{Chain: []ai.ModelConfig{
		{Provider: "gemini", ModelName: "gemini-2.0-flash"},
		{Provider: "openai", ModelName: "gpt-4o"},
		{Provider: "deepseek", ModelName: "deepseek-chat"},
	}}

	chain := p.chainFor("gpt-4o")
	require.Len(t, chain, 3)
	assert.Equal(t, "gpt-4o", chain[0].ModelName)

	assert.Equal(t, p.Chain, p.chainFor(""))
}

func TestFormatSRT(t *testing.T) {
	out := FormatSRT([]ai.Subtitle{
		{Index: 7, StartMs: 61250, EndMs: 3_601_000, Text: "line"},
	})
	assert.Equal(t, "1\n00:01:01,250 --> 01:00:01,000\nline\n\n", out)
}
