// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clipforge/internal/ai"
)

func writeSampleInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really mp4"), 0o600))
	return path
}

func candidateBody(t *testing.T, payload any) string {
	t.Helper()
	text, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": string(text)}},
			},
			"finishReason": "STOP",
		}},
	})
	require.NoError(t, err)
	return string(body)
}

func TestGenerateParsesCues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "models/gemini-2.0-flash:generateContent")
		assert.Equal(t, "k", r.URL.Query().Get("key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "contents")

		_, _ = w.Write([]byte(candidateBody(t, map[string]any{
			"detectedLanguage": "de",
			"subtitles": []map[string]any{
				{"index": 1, "startMs": 0, "endMs": 900, "text": "Hallo"},
			},
		})))
	}))
	defer srv.Close()

	a := New(srv.URL)
	res, err := a.Generate(context.Background(), ai.ModelConfig{
		ModelName: "gemini-2.0-flash",
		APIKey:    "k",
	}, ai.Params{InputPath: writeSampleInput(t)})
	require.NoError(t, err)
	assert.Equal(t, "de", res.DetectedLanguage)
	require.Len(t, res.Subtitles, 1)
	assert.Equal(t, "Hallo", res.Subtitles[0].Text)
}

func TestSafetyFinishReasonIsContentFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
	}))
	defer srv.Close()

	a := New(srv.URL)
	_, err := a.Translate(context.Background(), ai.ModelConfig{ModelName: "m", APIKey: "k"}, ai.Params{
		TargetLanguage: "en",
		Subtitles:      []ai.Subtitle{{Text: "x"}},
	})
	require.Error(t, err)
	assert.True(t, ai.IsSafetyRefusal(err))
}

func TestBlockedPromptIsContentFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	a := New(srv.URL)
	_, err := a.Translate(context.Background(), ai.ModelConfig{ModelName: "m", APIKey: "k"}, ai.Params{
		Subtitles: []ai.Subtitle{{Text: "x"}},
	})
	require.Error(t, err)
	assert.True(t, ai.IsSafetyRefusal(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limit", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"auth", http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			a := New(srv.URL)
			_, err := a.Translate(context.Background(), ai.ModelConfig{ModelName: "m", APIKey: "k"}, ai.Params{
				Subtitles: []ai.Subtitle{{Text: "x"}},
			})
			require.Error(t, err)
			assert.Equal(t, tc.retryable, ai.IsRetryable(err))
		})
	}
}

func TestGenerateMissingInput(t *testing.T) {
	a := New("http://unused.invalid")
	_, err := a.Generate(context.Background(), ai.ModelConfig{ModelName: "m", APIKey: "k"}, ai.Params{
		InputPath: filepath.Join(t.TempDir(), "missing.mp4"),
	})
	assert.Error(t, err)
}
