// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithComponent(t *testing.T) {
	l := WithComponent("queue")
	assert.NotNil(t, l)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithJobID(context.Background(), "01JABCDEF")
	ctx = ContextWithRequestID(ctx, "req-42")

	assert.Equal(t, "01JABCDEF", JobIDFromContext(ctx))
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
}

func TestContextMissingValues(t *testing.T) {
	assert.Empty(t, JobIDFromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, JobIDFromContext(nil)) //nolint:staticcheck // nil context tolerated by design
}

func TestWithContextNoFields(t *testing.T) {
	base := Base()
	enriched := WithContext(context.Background(), base)
	assert.Equal(t, base, enriched)
}
