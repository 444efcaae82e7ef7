// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package processor

import (
	"context"
	"fmt"

	"github.com/ManuGH/clipforge/internal/filtergraph"
	"github.com/ManuGH/clipforge/internal/media/ffmpeg"
	"github.com/ManuGH/clipforge/internal/pathsafe"
	"github.com/ManuGH/clipforge/internal/queue"
)

// MultiExport renders a multi-clip timeline through the filter-graph
// builder. Progress is elapsed output time over the total timeline
// duration.
type MultiExport struct {
	Runner *ffmpeg.Runner
	Gate   *pathsafe.Gate
}

// NewMultiExport wires the export processor.
func NewMultiExport(runner *ffmpeg.Runner, gate *pathsafe.Gate) *MultiExport {
	return &MultiExport{Runner: runner, Gate: gate}
}

// Kind implements queue.Processor.
func (p *MultiExport) Kind() string { return queue.KindMultiExport }

// Process implements queue.Processor.
func (p *MultiExport) Process(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
	meta := job.Metadata.MultiExport
	if meta == nil {
		return nil, fmt.Errorf("job %s carries no multi-export metadata", job.ID)
	}
	if len(meta.Inputs) == 0 {
		return nil, fmt.Errorf("timeline has no inputs")
	}

	for _, in := range meta.Inputs {
		if err := checkInput(p.Gate, in.Path); err != nil {
			return nil, err
		}
	}
	if meta.SubtitlePath != "" {
		if err := checkInput(p.Gate, meta.SubtitlePath); err != nil {
			return nil, err
		}
	}
	if err := prepareOutput(p.Gate, meta.OutputPath); err != nil {
		return nil, err
	}

	graph := filtergraph.Build(meta.Inputs, meta.Items, meta.Project)
	if graph.Segments == 0 {
		return nil, fmt.Errorf("timeline resolves to zero segments")
	}

	args := ffmpeg.ExportArgs(ffmpeg.ExportSpec{
		Inputs:       meta.Inputs,
		Graph:        graph,
		SubtitlePath: meta.SubtitlePath,
		OutputPath:   meta.OutputPath,
		VideoCodec:   meta.VideoCodec,
	})
	if err := p.Runner.Run(ctx, args, graph.TotalDuration, progress); err != nil {
		return nil, err
	}

	return &queue.Result{OutputVideoPath: meta.OutputPath}, nil
}
