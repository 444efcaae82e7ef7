// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for the clipforge queue core.
// No cardinality explosion: job IDs never appear in labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmittedTotal counts accepted job submissions by kind.
	JobsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_jobs_submitted_total",
		Help: "Total number of submitted jobs, by kind.",
	}, []string{"kind"})

	// JobsFinishedTotal counts terminal transitions by outcome.
	JobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_jobs_finished_total",
		Help: "Total number of jobs reaching a terminal state, by outcome.",
	}, []string{"outcome"})

	// JobsRecoveredTotal counts jobs requeued by crash recovery.
	JobsRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipforge_jobs_recovered_total",
		Help: "Total number of interrupted jobs requeued at startup.",
	})

	// QueueDepth tracks the current number of jobs by status.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clipforge_queue_depth",
		Help: "Current number of jobs in the queue, by status.",
	}, []string{"status"})

	// QueuePaused is 1 while the queue is paused.
	QueuePaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipforge_queue_paused",
		Help: "Whether the queue is paused (1) or running (0).",
	})

	// UpdatesDroppedTotal counts observer updates dropped on overflow.
	UpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipforge_updates_dropped_total",
		Help: "Total number of observer updates dropped due to slow subscribers.",
	})

	// FFmpegStartTotal counts toolchain process starts by result.
	FFmpegStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_ffmpeg_start_total",
		Help: "Total number of ffmpeg process starts, by result.",
	}, []string{"result"})

	// FFmpegExitTotal counts toolchain process exits by reason.
	FFmpegExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_ffmpeg_exit_total",
		Help: "Total number of ffmpeg process exits, by reason.",
	}, []string{"reason"})

	// FallbackTotal counts fallback-chain attempts by provider and outcome.
	FallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_ai_fallback_total",
		Help: "Total number of fallback chain attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// SecureEraseTotal counts secure file erasures.
	SecureEraseTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipforge_secure_erase_total",
		Help: "Total number of files removed with multi-pass overwrite.",
	})
)

// RecordSubmit increments the submission counter.
func RecordSubmit(kind string) {
	JobsSubmittedTotal.WithLabelValues(kind).Inc()
}

// RecordFinished increments the terminal-transition counter.
func RecordFinished(outcome string) {
	JobsFinishedTotal.WithLabelValues(outcome).Inc()
}

// RecordFallback increments the fallback attempt counter.
func RecordFallback(provider, outcome string) {
	FallbackTotal.WithLabelValues(provider, outcome).Inc()
}

// SetQueueDepth updates the per-status depth gauge.
func SetQueueDepth(status string, n int) {
	QueueDepth.WithLabelValues(status).Set(float64(n))
}

// SetPaused updates the paused gauge.
func SetPaused(paused bool) {
	if paused {
		QueuePaused.Set(1)
		return
	}
	QueuePaused.Set(0)
}
