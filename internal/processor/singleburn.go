// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package processor

import (
	"context"
	"fmt"

	"github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/media/ffmpeg"
	"github.com/ManuGH/clipforge/internal/pathsafe"
	"github.com/ManuGH/clipforge/internal/queue"
)

// SingleBurn burns a pre-computed subtitle file into one video. Progress
// is the toolchain's elapsed output time over the probed input duration.
type SingleBurn struct {
	Runner *ffmpeg.Runner
	Prober *ffmpeg.Prober
	Gate   *pathsafe.Gate
}

// NewSingleBurn wires the burn processor.
func NewSingleBurn(runner *ffmpeg.Runner, prober *ffmpeg.Prober, gate *pathsafe.Gate) *SingleBurn {
	return &SingleBurn{Runner: runner, Prober: prober, Gate: gate}
}

// Kind implements queue.Processor.
func (p *SingleBurn) Kind() string { return queue.KindSingleBurn }

// Process implements queue.Processor.
func (p *SingleBurn) Process(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
	meta := job.Metadata.SingleBurn
	if meta == nil {
		return nil, fmt.Errorf("job %s carries no single-burn metadata", job.ID)
	}

	if err := checkInput(p.Gate, meta.InputPath); err != nil {
		return nil, err
	}
	if err := checkInput(p.Gate, meta.SubtitlePath); err != nil {
		return nil, err
	}
	if err := prepareOutput(p.Gate, meta.OutputPath); err != nil {
		return nil, err
	}

	duration, err := p.Prober.Duration(ctx, meta.InputPath)
	if err != nil {
		// Without a duration the job still runs; progress just stays
		// at zero until completion.
		lg := log.WithComponent("processor")
		lg.Warn().
			Str(log.FieldJobID, job.ID).
			Str(log.FieldInputPath, meta.InputPath).
			Err(err).
			Msg("probing input duration failed")
		duration = 0
	}

	args := ffmpeg.BurnArgs(ffmpeg.BurnSpec{
		InputPath:    meta.InputPath,
		SubtitlePath: meta.SubtitlePath,
		OutputPath:   meta.OutputPath,
		VideoCodec:   meta.VideoCodec,
	})
	if err := p.Runner.Run(ctx, args, duration, progress); err != nil {
		return nil, err
	}

	return &queue.Result{
		OutputVideoPath:    meta.OutputPath,
		OutputSubtitlePath: meta.SubtitlePath,
	}, nil
}
