// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package queue

import "context"

// ProgressFunc reports processor progress in percent (0..100). Calls are
// serialized per job; values are clamped and made monotonic by the
// manager.
type ProgressFunc func(percent int)

// Processor executes one job kind. Implementations run outside the
// manager's lock and must honour ctx cancellation by tearing down any
// child process they spawned.
type Processor interface {
	// Kind returns the metadata kind this processor handles.
	Kind() string

	// Process runs the job to completion. The returned Result is
	// captured on the job; a non-nil error fails the job.
	Process(ctx context.Context, job *Job, progress ProgressFunc) (*Result, error)
}
