// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ai implements the provider fallback engine. An ordered chain of
// model configurations is tried in sequence; safety refusals and retryable
// transport errors re-route to the next entry, anything else stops the chain.
package ai

import (
	"context"
	"time"
)

// Task selects the provider capability to invoke.
type Task string

const (
	TaskGenerate  Task = "generate"
	TaskTranslate Task = "translate"
)

// Subtitle is a single timed cue.
type Subtitle struct {
	Index         int    `json:"index"`
	StartMs       int64  `json:"startMs"`
	EndMs         int64  `json:"endMs"`
	Text          string `json:"text"`
	SecondaryText string `json:"secondaryText,omitempty"`
}

// ModelConfig is one entry of a fallback chain.
type ModelConfig struct {
	Provider  string `json:"provider" yaml:"provider"`
	ModelName string `json:"modelName" yaml:"model"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey    string `json:"-" yaml:"apiKey,omitempty"`
}

// Params carries the task payload. Generate reads the media file at
// InputPath; translate rewrites the Subtitles slice into TargetLanguage.
type Params struct {
	InputPath      string
	SourceLanguage string
	TargetLanguage string
	Subtitles      []Subtitle
	SampleDuration time.Duration
}

// Result is the successful outcome of a chain traversal.
type Result struct {
	DetectedLanguage string
	Subtitles        []Subtitle
	Provider         string
	ModelName        string
}

// Adapter is the provider-specific capability set. An adapter may return
// ErrTaskUnsupported for a task it does not implement.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, model ModelConfig, params Params) (*Result, error)
	Translate(ctx context.Context, model ModelConfig, params Params) (*Result, error)
}
