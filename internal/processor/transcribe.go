// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/clipforge/internal/ai"
	"github.com/ManuGH/clipforge/internal/fsutil"
	"github.com/ManuGH/clipforge/internal/pathsafe"
	"github.com/ManuGH/clipforge/internal/queue"
)

// Transcribe generates or translates subtitles through the AI fallback
// chain and writes the cues as an SRT file next to the job's exports.
type Transcribe struct {
	Engine *ai.Engine
	Chain  []ai.ModelConfig
	Gate   *pathsafe.Gate
	Layout *fsutil.Layout
}

// NewTranscribe wires the transcription processor.
func NewTranscribe(engine *ai.Engine, chain []ai.ModelConfig, gate *pathsafe.Gate, layout *fsutil.Layout) *Transcribe {
	return &Transcribe{Engine: engine, Chain: chain, Gate: gate, Layout: layout}
}

// Kind implements queue.Processor.
func (p *Transcribe) Kind() string { return queue.KindTranscribe }

// Process implements queue.Processor.
func (p *Transcribe) Process(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
	meta := job.Metadata.Transcribe
	if meta == nil {
		return nil, fmt.Errorf("job %s carries no transcribe metadata", job.ID)
	}

	task := ai.Task(meta.Task)
	switch task {
	case ai.TaskGenerate:
		if err := checkInput(p.Gate, meta.InputPath); err != nil {
			return nil, err
		}
	case ai.TaskTranslate:
		if len(meta.Subtitles) == 0 {
			return nil, fmt.Errorf("translate task without source subtitles")
		}
	default:
		return nil, fmt.Errorf("unknown transcribe task %q", meta.Task)
	}

	progress(5)

	params := ai.Params{
		InputPath:      meta.InputPath,
		SourceLanguage: meta.SourceLanguage,
		TargetLanguage: meta.TargetLanguage,
		SampleDuration: time.Duration(meta.SampleDuration) * time.Second,
		Subtitles:      toAISubtitles(meta.Subtitles),
	}
	res, err := p.Engine.Process(ctx, task, params, p.chainFor(meta.Model))
	if err != nil {
		return nil, err
	}
	progress(90)

	outDir := meta.OutputDir
	if outDir == "" {
		outDir = p.Layout.JobExportDir(job.ID)
	}
	outPath := filepath.Join(outDir, "subtitles.srt")
	if err := prepareOutput(p.Gate, outPath); err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(outPath, []byte(FormatSRT(res.Subtitles)), 0o640); err != nil {
		return nil, fmt.Errorf("write subtitle file: %w", err)
	}

	return &queue.Result{
		OutputSubtitlePath: outPath,
		Subtitles:          toQueueSubtitles(res.Subtitles),
	}, nil
}

// chainFor narrows the configured chain to a pinned model when the job
// requests one; the rest of the chain stays as fallback.
func (p *Transcribe) chainFor(model string) []ai.ModelConfig {
	if model == "" {
		return p.Chain
	}
	pinned := make([]ai.ModelConfig, 0, len(p.Chain))
	for _, mc := range p.Chain {
		if mc.ModelName == model {
			pinned = append(pinned, mc)
		}
	}
	for _, mc := range p.Chain {
		if mc.ModelName != model {
			pinned = append(pinned, mc)
		}
	}
	return pinned
}

func toAISubtitles(in []queue.Subtitle) []ai.Subtitle {
	out := make([]ai.Subtitle, len(in))
	for i, s := range in {
		out[i] = ai.Subtitle{
			Index:         s.Index,
			StartMs:       s.StartMs,
			EndMs:         s.EndMs,
			Text:          s.Text,
			SecondaryText: s.SecondaryText,
		}
	}
	return out
}

func toQueueSubtitles(in []ai.Subtitle) []queue.Subtitle {
	out := make([]queue.Subtitle, len(in))
	for i, s := range in {
		out[i] = queue.Subtitle{
			Index:         s.Index,
			StartMs:       s.StartMs,
			EndMs:         s.EndMs,
			Text:          s.Text,
			SecondaryText: s.SecondaryText,
		}
	}
	return out
}

// FormatSRT renders cues in SubRip form. Indexes are renumbered from 1.
func FormatSRT(subs []ai.Subtitle) string {
	var b strings.Builder
	for i, s := range subs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, srtStamp(s.StartMs), srtStamp(s.EndMs), s.Text)
		if s.SecondaryText != "" {
			b.WriteString(s.SecondaryText)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func srtStamp(ms int64) string {
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}
