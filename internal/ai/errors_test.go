// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFromHTTPStatusTypes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		want   any
	}{
		{"content filter code", 400, "content_filter", &ContentFilterError{}},
		{"unauthorized", 401, "", &AuthenticationError{}},
		{"forbidden", 403, "", &AuthenticationError{}},
		{"rate limited", 429, "", &RateLimitError{}},
		{"server error", 500, "", &ServerError{}},
		{"bad gateway", 502, "", &ServerError{}},
		{"bad request", 400, "", &InvalidRequestError{}},
		{"unprocessable", 422, "", &InvalidRequestError{}},
		{"teapot", 418, "", &UnknownHTTPError{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ErrorFromHTTPStatus("gemini", tc.status, "msg", tc.code)
			assert.IsType(t, tc.want, err)
		})
	}
}

func TestIsSafetyRefusal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"content filter type", ErrorFromHTTPStatus("openai", 400, "stopped", "content_filter"), true},
		{"safety term", errors.New("request blocked due to SAFETY settings"), true},
		{"policy term", errors.New("violates usage Policy"), true},
		{"refused term", errors.New("the model refused to answer"), true},
		{"content filter term", errors.New("hit the content filter"), true},
		{"candidate 400", ErrorFromHTTPStatus("gemini", 400, "no candidate returned", ""), true},
		{"plain 400", ErrorFromHTTPStatus("gemini", 400, "invalid argument", ""), false},
		{"auth", ErrorFromHTTPStatus("openai", 401, "invalid key", ""), false},
		{"generic", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSafetyRefusal(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorFromHTTPStatus("p", 429, "slow down", "")))
	assert.True(t, IsRetryable(ErrorFromHTTPStatus("p", 500, "boom", "")))
	assert.True(t, IsRetryable(ErrorFromHTTPStatus("p", 503, "busy", "")))
	assert.False(t, IsRetryable(ErrorFromHTTPStatus("p", 400, "bad", "")))
	assert.False(t, IsRetryable(ErrorFromHTTPStatus("p", 401, "denied", "")))
	assert.False(t, IsRetryable(errors.New("not an http error")))
	assert.False(t, IsRetryable(nil))
}
