// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package queue

import "context"

// Store is the durable backing for the queue. Implementations must be
// write-ahead journaled: a returned nil error means the row survives a
// crash. The manager writes through the store before announcing any
// mutation to observers.
type Store interface {
	// SaveJob upserts the full row.
	SaveJob(ctx context.Context, job *Job) error

	// LoadAllJobs returns every job ordered by created_at ascending.
	// Jobs whose metadata cannot be decoded are returned as failed with
	// a descriptive error rather than dropped.
	LoadAllJobs(ctx context.Context) ([]*Job, error)

	// DeleteJob removes a row and reports whether it existed.
	DeleteJob(ctx context.Context, id string) (bool, error)

	// UpdateStatus atomically sets status and progress, stamping
	// started_at on entry into processing and completed_at on a
	// terminal transition.
	UpdateStatus(ctx context.Context, id string, status Status, progress int) error

	// SetFlag / GetFlag access the queue_flags key-value table.
	SetFlag(ctx context.Context, key, value string) error
	GetFlag(ctx context.Context, key string) (string, bool, error)

	// MarkInterruptedAsFailed flips every processing row to failed with
	// failure_reason crash and error "interrupted", returning the count.
	MarkInterruptedAsFailed(ctx context.Context) (int, error)

	Close() error
}

// PausedFlag is the queue_flags key holding the persisted paused state.
const PausedFlag = "paused"
