// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the unified error interface returned by provider adapters.
type Error interface {
	error
	Provider() string
	StatusCode() int
}

// Sentinel errors surfaced by the engine itself.
var (
	ErrNoEnabledModels  = errors.New("no enabled models in fallback chain")
	ErrTaskUnsupported  = errors.New("task not supported by provider")
	ErrEmptySubtitles   = errors.New("provider returned no subtitles")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrAllModelsFailed  = errors.New("all models failed")
	ErrPayloadTooLarge  = errors.New("subtitle payload exceeds hard limits")
	ErrMalformedPayload = errors.New("malformed provider response")
)

type httpErrorBase struct {
	provider   string
	statusCode int
	message    string
	code       string // provider-structured error code, e.g. "content_filter"
}

func (e *httpErrorBase) Error() string {
	msg := strings.TrimSpace(e.message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s error (status=%d): %s", e.provider, e.statusCode, msg)
}
func (e *httpErrorBase) Provider() string { return e.provider }
func (e *httpErrorBase) StatusCode() int  { return e.statusCode }

// Typed error hierarchy. Classification decides the fallback policy.
type (
	InvalidRequestError struct{ httpErrorBase }
	AuthenticationError struct{ httpErrorBase }
	ContentFilterError  struct{ httpErrorBase }
	RateLimitError      struct{ httpErrorBase }
	ServerError         struct{ httpErrorBase }
	UnknownHTTPError    struct{ httpErrorBase }
)

// ErrorFromHTTPStatus maps a provider HTTP failure onto the typed hierarchy.
// code is the structured provider error code when one was present.
func ErrorFromHTTPStatus(provider string, statusCode int, message, code string) error {
	base := httpErrorBase{
		provider:   strings.TrimSpace(provider),
		statusCode: statusCode,
		message:    message,
		code:       code,
	}
	switch {
	case code == "content_filter":
		return &ContentFilterError{base}
	case statusCode == 401 || statusCode == 403:
		return &AuthenticationError{base}
	case statusCode == 429:
		return &RateLimitError{base}
	case statusCode >= 500:
		return &ServerError{base}
	case statusCode == 400 || statusCode == 422:
		return &InvalidRequestError{base}
	default:
		return &UnknownHTTPError{base}
	}
}

// safetyTerms flag a content-policy refusal when present in an error
// message, compared case-insensitively.
var safetyTerms = []string{
	"safety",
	"blocked",
	"policy",
	"content filter",
	"refused",
}

// IsSafetyRefusal reports whether err represents a content-policy
// rejection: a structured content_filter code, a matching message term,
// or a 400 mentioning a candidate (the Gemini refusal shape).
func IsSafetyRefusal(err error) bool {
	if err == nil {
		return false
	}
	var cf *ContentFilterError
	if errors.As(err, &cf) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, term := range safetyTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	var inv *InvalidRequestError
	if errors.As(err, &inv) && inv.StatusCode() == 400 && strings.Contains(lower, "candidate") {
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient transport failure:
// HTTP 429 or any 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode() == 429 || e.StatusCode() >= 500
}
