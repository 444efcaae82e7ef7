// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package openaicompat implements the ai.Adapter capability set for any
// provider speaking the OpenAI chat-completions dialect. The openai and
// deepseek providers are thin configurations of this adapter.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ManuGH/clipforge/internal/ai"
)

// Config selects the concrete provider dialect.
type Config struct {
	Provider string
	BaseURL  string
	Path     string
}

// Adapter calls a chat-completions endpoint. Generate (media
// transcription) is not part of this dialect and reports
// ai.ErrTaskUnsupported.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New returns an adapter for the given dialect configuration.
func New(cfg Config) *Adapter {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Path == "" {
		cfg.Path = "/v1/chat/completions"
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: 0}}
}

// NewOpenAI returns the adapter configured for api.openai.com.
func NewOpenAI() *Adapter {
	return New(Config{Provider: "openai", BaseURL: "https://api.openai.com"})
}

// NewDeepSeek returns the adapter configured for api.deepseek.com.
func NewDeepSeek() *Adapter {
	return New(Config{Provider: "deepseek", BaseURL: "https://api.deepseek.com"})
}

func (a *Adapter) Name() string { return a.cfg.Provider }

// Generate is unsupported; chat-completions providers cannot consume raw media.
func (a *Adapter) Generate(ctx context.Context, model ai.ModelConfig, params ai.Params) (*ai.Result, error) {
	return nil, fmt.Errorf("%w: %s/%s", ai.ErrTaskUnsupported, a.cfg.Provider, ai.TaskGenerate)
}

// Translate rewrites the subtitle cues into params.TargetLanguage.
func (a *Adapter) Translate(ctx context.Context, model ai.ModelConfig, params ai.Params) (*ai.Result, error) {
	payload, err := json.Marshal(params.Subtitles)
	if err != nil {
		return nil, fmt.Errorf("%s: encode cues: %w", a.cfg.Provider, err)
	}

	body := map[string]any{
		"model": model.ModelName,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(params)},
			{"role": "user", "content": string(payload)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.2,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	base := a.cfg.BaseURL
	if model.Endpoint != "" {
		base = strings.TrimRight(model.Endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+a.cfg.Path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+model.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", a.cfg.Provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", a.cfg.Provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.errorFromResponse(resp.StatusCode, respBody)
	}
	return a.parseCompletion(respBody)
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type cuePayload struct {
	DetectedLanguage string        `json:"detectedLanguage"`
	Subtitles        []ai.Subtitle `json:"subtitles"`
}

func (a *Adapter) parseCompletion(body []byte) (*ai.Result, error) {
	var cr completionResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedPayload, err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ai.ErrMalformedPayload)
	}
	choice := cr.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, ai.ErrorFromHTTPStatus(a.cfg.Provider, http.StatusBadRequest,
			"completion stopped by content filter", "content_filter")
	}

	var cues cuePayload
	if err := json.Unmarshal([]byte(choice.Message.Content), &cues); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedPayload, err)
	}
	return &ai.Result{
		DetectedLanguage: cues.DetectedLanguage,
		Subtitles:        cues.Subtitles,
	}, nil
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (a *Adapter) errorFromResponse(status int, body []byte) error {
	var ae apiError
	msg := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
		if ae.Error.Code == "content_filter" || ae.Error.Type == "content_filter" {
			code = "content_filter"
		}
	}
	return ai.ErrorFromHTTPStatus(a.cfg.Provider, status, msg, code)
}

func systemPrompt(params ai.Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You translate subtitle cues into %s. ", params.TargetLanguage)
	if params.SourceLanguage != "" {
		fmt.Fprintf(&b, "The source language is %s. ", params.SourceLanguage)
	}
	b.WriteString("Keep index and timing fields untouched; put the translation in text ")
	b.WriteString("and the original line in secondaryText. ")
	b.WriteString(`Respond with JSON: {"detectedLanguage": "<bcp47>", "subtitles": [...]}.`)
	return b.String()
}
