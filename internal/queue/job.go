// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package queue implements the persistent media job queue: the job state
// machine, the scheduling coordinator, crash recovery, and the broadcast
// hub that fans state changes out to observers.
package queue

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureReason classifies why a job failed.
type FailureReason string

const (
	FailureCrash         FailureReason = "crash"
	FailureAPIError      FailureReason = "api_error"
	FailureUserCancelled FailureReason = "user_cancelled"
	FailureUnknown       FailureReason = "unknown"
)

// FileInfo describes the primary input artifact of a job.
type FileInfo struct {
	Name        string `json:"name"`
	SizeBytes   int64  `json:"sizeBytes"`
	StagingPath string `json:"stagingPath,omitempty"`
	MediaType   string `json:"mediaType,omitempty"`
}

// Result holds the output artifacts of a completed job.
type Result struct {
	OutputVideoPath    string     `json:"outputVideoPath,omitempty"`
	OutputSubtitlePath string     `json:"outputSubtitlePath,omitempty"`
	Subtitles          []Subtitle `json:"subtitles,omitempty"`
}

// Subtitle is one cue in a job result. Times are milliseconds.
type Subtitle struct {
	Index         int    `json:"index"`
	StartMs       int64  `json:"startMs"`
	EndMs         int64  `json:"endMs"`
	Text          string `json:"text"`
	SecondaryText string `json:"secondaryText,omitempty"`
}

// Job is the central entity tracked by the queue. Timestamps are Unix
// milliseconds; zero means unset.
type Job struct {
	ID            string        `json:"id"`
	Status        Status        `json:"status"`
	Progress      int           `json:"progress"`
	File          FileInfo      `json:"file"`
	Metadata      Metadata      `json:"metadata"`
	Result        *Result       `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	FailureReason FailureReason `json:"failureReason,omitempty"`
	RetryCount    int           `json:"retryCount"`
	CreatedAt     int64         `json:"createdAt"`
	StartedAt     int64         `json:"startedAt,omitempty"`
	CompletedAt   int64         `json:"completedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to observers.
func (j *Job) Clone() *Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		r.Subtitles = append([]Subtitle(nil), j.Result.Subtitles...)
		c.Result = &r
	}
	return &c
}

// NewJobID returns a new lexicographically sortable job id.
func NewJobID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// nowMillis is swapped out in tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
