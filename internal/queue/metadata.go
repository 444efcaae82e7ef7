// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/clipforge/internal/filtergraph"
)

// Metadata kinds route a job to its processor.
const (
	KindSingleBurn  = "single-burn"
	KindMultiExport = "multi-export"
	KindTranscribe  = "transcribe"
)

// metadataVersion is bumped when a payload shape changes incompatibly.
const metadataVersion = 1

// ErrUnknownMetadataKind is returned when a stored blob names a kind this
// build does not know. The loader surfaces the owning job as failed.
var ErrUnknownMetadataKind = errors.New("unknown metadata kind")

// SingleBurnMeta drives the single-video subtitle burn processor.
type SingleBurnMeta struct {
	InputPath    string `json:"inputPath"`
	SubtitlePath string `json:"subtitlePath"`
	OutputPath   string `json:"outputPath"`
	// VideoCodec is passed through to the encoder untouched; empty
	// selects the default software encoder.
	VideoCodec string `json:"videoCodec,omitempty"`
}

// MultiExportMeta drives the timeline export processor. It carries the
// full timeline state so the job is reproducible after a restart.
type MultiExportMeta struct {
	Inputs       []filtergraph.Input       `json:"inputs"`
	Items        []filtergraph.Item        `json:"items"`
	Project      filtergraph.ProjectConfig `json:"project"`
	SubtitlePath string                    `json:"subtitlePath,omitempty"`
	OutputPath   string                    `json:"outputPath"`
	VideoCodec   string                    `json:"videoCodec,omitempty"`
}

// TranscribeMeta drives the AI subtitle processor. Subtitles carries the
// source cues for the translate task.
type TranscribeMeta struct {
	InputPath      string     `json:"inputPath"`
	Task           string     `json:"task"`
	SourceLanguage string     `json:"sourceLanguage,omitempty"`
	TargetLanguage string     `json:"targetLanguage,omitempty"`
	Model          string     `json:"model,omitempty"`
	SampleDuration int        `json:"sampleDuration,omitempty"`
	Subtitles      []Subtitle `json:"subtitles,omitempty"`
	OutputDir      string     `json:"outputDir,omitempty"`
}

// Metadata is a tagged sum over the known job kinds. Exactly one payload
// pointer is non-nil, matching Kind.
type Metadata struct {
	Kind        string
	SingleBurn  *SingleBurnMeta
	MultiExport *MultiExportMeta
	Transcribe  *TranscribeMeta
}

type metadataEnvelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON writes the versioned envelope form.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var payload any
	switch m.Kind {
	case KindSingleBurn:
		payload = m.SingleBurn
	case KindMultiExport:
		payload = m.MultiExport
	case KindTranscribe:
		payload = m.Transcribe
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetadataKind, m.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metadataEnvelope{Version: metadataVersion, Kind: m.Kind, Payload: raw})
}

// UnmarshalJSON reads the envelope and decodes the payload for the named
// kind. Unknown kinds return ErrUnknownMetadataKind so the caller can mark
// the job failed instead of dropping it.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metadata{}
		return nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode metadata envelope: %w", err)
	}
	out := Metadata{Kind: env.Kind}
	var err error
	switch env.Kind {
	case KindSingleBurn:
		out.SingleBurn = &SingleBurnMeta{}
		err = json.Unmarshal(env.Payload, out.SingleBurn)
	case KindMultiExport:
		out.MultiExport = &MultiExportMeta{}
		err = json.Unmarshal(env.Payload, out.MultiExport)
	case KindTranscribe:
		out.Transcribe = &TranscribeMeta{}
		err = json.Unmarshal(env.Payload, out.Transcribe)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMetadataKind, env.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	*m = out
	return nil
}

// Paths returns every filesystem path the metadata references, used when
// releasing a job's files through the path gate.
func (m Metadata) Paths() []string {
	var out []string
	add := func(ps ...string) {
		for _, p := range ps {
			if p != "" {
				out = append(out, p)
			}
		}
	}
	switch m.Kind {
	case KindSingleBurn:
		if m.SingleBurn != nil {
			add(m.SingleBurn.InputPath, m.SingleBurn.SubtitlePath, m.SingleBurn.OutputPath)
		}
	case KindMultiExport:
		if m.MultiExport != nil {
			for _, in := range m.MultiExport.Inputs {
				add(in.Path)
			}
			add(m.MultiExport.SubtitlePath, m.MultiExport.OutputPath)
		}
	case KindTranscribe:
		if m.Transcribe != nil {
			add(m.Transcribe.InputPath)
		}
	}
	return out
}
