// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gemini implements the ai.Adapter capability set against the
// Google Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/clipforge/internal/ai"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Adapter calls the Gemini generateContent endpoint.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// New returns an adapter. baseURL may be empty for the public endpoint.
func New(baseURL string) *Adapter {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	// Rely on request context deadlines instead of client-level timeouts.
	return &Adapter{baseURL: base, client: &http.Client{Timeout: 0}}
}

func (a *Adapter) Name() string { return "gemini" }

// Generate transcribes the media file at params.InputPath into timed cues.
func (a *Adapter) Generate(ctx context.Context, model ai.ModelConfig, params ai.Params) (*ai.Result, error) {
	data, err := os.ReadFile(params.InputPath) // #nosec G304 -- gated by the caller
	if err != nil {
		return nil, fmt.Errorf("gemini: read input: %w", err)
	}

	parts := []map[string]any{
		{"text": generatePrompt(params)},
		{"inline_data": map[string]any{
			"mime_type": mimeTypeFor(params.InputPath),
			"data":      base64.StdEncoding.EncodeToString(data),
		}},
	}
	return a.call(ctx, model, parts)
}

// Translate rewrites the subtitle cues into params.TargetLanguage.
func (a *Adapter) Translate(ctx context.Context, model ai.ModelConfig, params ai.Params) (*ai.Result, error) {
	payload, err := json.Marshal(params.Subtitles)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode cues: %w", err)
	}
	parts := []map[string]any{
		{"text": translatePrompt(params)},
		{"text": string(payload)},
	}
	return a.call(ctx, model, parts)
}

func (a *Adapter) call(ctx context.Context, model ai.ModelConfig, parts []map[string]any) (*ai.Result, error) {
	body := map[string]any{
		"contents": []map[string]any{{"role": "user", "parts": parts}},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"temperature":      0.2,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	base := a.baseURL
	if model.Endpoint != "" {
		base = strings.TrimRight(model.Endpoint, "/")
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", base, model.ModelName, model.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp.StatusCode, respBody)
	}
	return parseGenerateContent(respBody)
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type cuePayload struct {
	DetectedLanguage string        `json:"detectedLanguage"`
	Subtitles        []ai.Subtitle `json:"subtitles"`
}

func parseGenerateContent(body []byte) (*ai.Result, error) {
	var gc generateContentResponse
	if err := json.Unmarshal(body, &gc); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedPayload, err)
	}
	if gc.PromptFeedback.BlockReason != "" {
		return nil, ai.ErrorFromHTTPStatus("gemini", http.StatusBadRequest,
			fmt.Sprintf("prompt blocked: %s", gc.PromptFeedback.BlockReason), "content_filter")
	}
	if len(gc.Candidates) == 0 {
		return nil, ai.ErrorFromHTTPStatus("gemini", http.StatusBadRequest,
			"no candidate returned", "content_filter")
	}
	cand := gc.Candidates[0]
	if strings.EqualFold(cand.FinishReason, "SAFETY") {
		return nil, ai.ErrorFromHTTPStatus("gemini", http.StatusBadRequest,
			"candidate was blocked due to safety", "content_filter")
	}
	if len(cand.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: candidate without parts", ai.ErrMalformedPayload)
	}

	var cues cuePayload
	if err := json.Unmarshal([]byte(cand.Content.Parts[0].Text), &cues); err != nil {
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
		Status  string `json:"status"`
	} `json:"error"`
}

func errorFromResponse(status int, body []byte) error {
	var ae apiError
	msg := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
	}
	return ai.ErrorFromHTTPStatus("gemini", status, msg, code)
}

func generatePrompt(params ai.Params) string {
	var b strings.Builder
	b.WriteString("Transcribe the attached media into subtitle cues. ")
	if params.SourceLanguage != "" {
		b.WriteString("The spoken language is " + params.SourceLanguage + ". ")
	}
	if params.SampleDuration > 0 {
		fmt.Fprintf(&b, "Only the first %.0f seconds are attached. ", params.SampleDuration.Seconds())
	}
	b.WriteString(`Respond with JSON: {"detectedLanguage": "<bcp47>", "subtitles": ` +
		`[{"index": 1, "startMs": 0, "endMs": 0, "text": ""}]}`)
	return b.String()
}

func translatePrompt(params ai.Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following subtitle cues into %s. ", params.TargetLanguage)
	b.WriteString("Keep index and timing fields untouched; put the translation in text ")
	b.WriteString("and the original line in secondaryText. ")
	b.WriteString(`Respond with JSON: {"detectedLanguage": "<bcp47>", "subtitles": [...]}.`)
	return b.String()
}

func mimeTypeFor(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "video/mp4"
}
