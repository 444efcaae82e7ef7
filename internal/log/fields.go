// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldJobID     = "job_id"
	FieldRequestID = "request_id"
	FieldProvider  = "provider"
	FieldModel     = "model"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldDuration  = "duration"

	// Queue fields
	FieldStatus    = "status"
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"
	FieldProgress  = "progress"
	FieldKind      = "kind"
	FieldReason    = "reason"

	// Path fields
	FieldPath       = "path"
	FieldInputPath  = "input_path"
	FieldOutputPath = "output_path"
)
