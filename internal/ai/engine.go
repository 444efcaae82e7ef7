// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ai

import (
	"context"
	"fmt"

	"golang.org/x/text/language"

	"github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/metrics"
)

// Hard limits for translate payloads. Violations are fatal validation
// failures and never re-route.
const (
	MaxSubtitleEntries = 10_000
	MaxSubtitleChars   = 1_000_000
)

// Engine iterates a fallback chain. It owns no state between calls.
type Engine struct {
	adapters map[string]Adapter
}

// NewEngine returns an engine with the given provider adapters registered.
func NewEngine(adapters ...Adapter) *Engine {
	e := &Engine{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		e.adapters[a.Name()] = a
	}
	return e
}

// Register adds or replaces a provider adapter.
func (e *Engine) Register(a Adapter) {
	e.adapters[a.Name()] = a
}

// Process tries each enabled configuration in order until one succeeds.
// Safety refusals and retryable transport errors re-route to the next
// entry; every other failure propagates immediately.
func (e *Engine) Process(ctx context.Context, task Task, params Params, chain []ModelConfig) (*Result, error) {
	logger := log.WithComponent("ai")

	enabled := make([]ModelConfig, 0, len(chain))
	for _, mc := range chain {
		if mc.Enabled {
			enabled = append(enabled, mc)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoEnabledModels
	}

	if task == TaskTranslate {
		if err := validateTranslatePayload(params.Subtitles); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for _, mc := range enabled {
		adapter, ok := e.adapters[mc.Provider]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, mc.Provider)
		}

		res, err := e.dispatch(ctx, adapter, task, mc, params)
		if err == nil && len(res.Subtitles) == 0 {
			// An empty success is a failure; try the next model.
			metrics.RecordFallback(mc.Provider, "empty_result")
			logger.Warn().
				Str(log.FieldProvider, mc.Provider).
				Str(log.FieldModel, mc.ModelName).
				Msg("provider returned no subtitles, re-routing to next model")
			lastErr = fmt.Errorf("%w (provider %s)", ErrEmptySubtitles, mc.Provider)
			continue
		}
		if err == nil {
			res.Provider = mc.Provider
			res.ModelName = mc.ModelName
			res.DetectedLanguage = normalizeLanguage(res.DetectedLanguage)
			metrics.RecordFallback(mc.Provider, "success")
			return res, nil
		}

		switch {
		case IsSafetyRefusal(err):
			metrics.RecordFallback(mc.Provider, "safety_refusal")
			logger.Warn().
				Str(log.FieldProvider, mc.Provider).
				Str(log.FieldModel, mc.ModelName).
				Err(err).
				Msg("safety refusal, re-routing to next model")
			lastErr = err
		case IsRetryable(err):
			metrics.RecordFallback(mc.Provider, "retryable")
			logger.Warn().
				Str(log.FieldProvider, mc.Provider).
				Str(log.FieldModel, mc.ModelName).
				Err(err).
				Msg("retryable provider error, re-routing to next model")
			lastErr = err
		default:
			metrics.RecordFallback(mc.Provider, "fatal")
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrAllModelsFailed
}

func (e *Engine) dispatch(ctx context.Context, adapter Adapter, task Task, mc ModelConfig, params Params) (*Result, error) {
	switch task {
	case TaskGenerate:
		return adapter.Generate(ctx, mc, params)
	case TaskTranslate:
		return adapter.Translate(ctx, mc, params)
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}

func validateTranslatePayload(subs []Subtitle) error {
	if len(subs) > MaxSubtitleEntries {
		return fmt.Errorf("%w: %d entries (max %d)", ErrPayloadTooLarge, len(subs), MaxSubtitleEntries)
	}
	total := 0
	for _, s := range subs {
		total += len(s.Text) + len(s.SecondaryText)
	}
	if total > MaxSubtitleChars {
		return fmt.Errorf("%w: %d chars (max %d)", ErrPayloadTooLarge, total, MaxSubtitleChars)
	}
	return nil
}

// normalizeLanguage canonicalises a detected language code via BCP 47.
// Unparseable values are passed through untouched.
func normalizeLanguage(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}
