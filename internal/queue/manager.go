// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/metrics"
)

// ErrJobProcessing is returned when removing a processing job without
// the force flag.
var ErrJobProcessing = errors.New("job is processing; removal requires force")

// ErrQueueClosed is returned for submissions after shutdown began.
var ErrQueueClosed = errors.New("queue is shut down")

// progressPersistRate bounds how often intermediate progress is written
// through and announced, per job.
const progressPersistRate = rate.Limit(5)

// FileReleaser removes job artifacts from disk. Refused or missing paths
// must not be errors.
type FileReleaser interface {
	RemoveAll(paths []string) error
}

// Config fixes manager behaviour at construction; it is not persisted.
type Config struct {
	// MaxConcurrent is the worker-pool width; minimum 1.
	MaxConcurrent int
	// AutoStart lets newly submitted jobs begin immediately. When
	// false the queue starts paused and waits for an explicit Resume.
	AutoStart bool
}

// Manager owns the in-memory job map, the worker pool, and the
// scheduler. The durable store holds the authoritative copy; every
// mutation is written through before it is announced.
type Manager struct {
	cfg        Config
	store      Store
	releaser   FileReleaser
	hub        *Hub
	processors map[string]Processor

	mu         sync.Mutex
	jobs       map[string]*Job
	seq        map[string]int64
	nextSeq    int64
	processing map[string]context.CancelFunc
	paused     bool
	closed     bool

	wg         sync.WaitGroup
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewManager builds a manager over the given store. Recover must be
// called before the first Submit.
func NewManager(cfg Config, st Store, releaser FileReleaser, processors ...Processor) *Manager {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		store:      st,
		releaser:   releaser,
		hub:        NewHub(),
		processors: make(map[string]Processor, len(processors)),
		jobs:       make(map[string]*Job),
		seq:        make(map[string]int64),
		processing: make(map[string]context.CancelFunc),
		paused:     !cfg.AutoStart,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	for _, p := range processors {
		m.processors[p.Kind()] = p
	}
	return m
}

// RegisterProcessor adds or replaces the processor for a kind.
func (m *Manager) RegisterProcessor(p Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processors[p.Kind()] = p
}

// Subscribe registers an observer on the broadcast hub.
func (m *Manager) Subscribe() (string, <-chan Update) {
	return m.hub.Subscribe()
}

// Unsubscribe removes an observer.
func (m *Manager) Unsubscribe(id string) {
	m.hub.Unsubscribe(id)
}

// Recover loads the durable state and reconciles jobs left mid-flight by
// an abrupt prior exit. Interrupted jobs are marked failed with reason
// crash, then requeued ahead of every other pending job. If any
// outstanding work exists the queue comes up paused and waits for an
// explicit Resume.
func (m *Manager) Recover(ctx context.Context) error {
	logger := log.WithComponent("queue")

	loaded, err := m.store.LoadAllJobs(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range loaded {
		m.jobs[j.ID] = j
		m.seq[j.ID] = m.nextSeq
		m.nextSeq++
	}

	// Requeued jobs are slotted ahead of the oldest pending job, each
	// one unit earlier than the last.
	head := m.minPendingCreatedAtLocked()
	for _, j := range loaded {
		if j.Status != StatusProcessing {
			continue
		}

		j.Status = StatusFailed
		j.FailureReason = FailureCrash
		j.Error = "interrupted by restart"
		j.Progress = 0
		j.CompletedAt = nowMillis()
		if err := m.store.SaveJob(ctx, j); err != nil {
			return fmt.Errorf("persist interrupted job %s: %w", j.ID, err)
		}

		head--
		j.Status = StatusPending
		j.RetryCount++
		j.CreatedAt = head
		j.StartedAt = 0
		j.CompletedAt = 0
		if err := m.store.SaveJob(ctx, j); err != nil {
			return fmt.Errorf("requeue interrupted job %s: %w", j.ID, err)
		}

		metrics.JobsRecoveredTotal.Inc()
		logger.Warn().
			Str(log.FieldJobID, j.ID).
			Int("retry_count", j.RetryCount).
			Msg("interrupted job requeued at queue head")
	}

	outstanding := false
	for _, j := range m.jobs {
		if j.Status == StatusPending {
			outstanding = true
			break
		}
	}

	// Mandatory hold-on-restart: outstanding work keeps the queue
	// paused until the user resumes.
	m.paused = outstanding
	if err := m.store.SetFlag(ctx, PausedFlag, boolFlag(m.paused)); err != nil {
		return fmt.Errorf("persist paused flag: %w", err)
	}
	metrics.SetPaused(m.paused)
	m.updateDepthLocked()

	logger.Info().
		Int("jobs", len(m.jobs)).
		Bool("paused", m.paused).
		Msg("queue recovered")
	return nil
}

// Submit validates and enqueues a new job, returning the stored copy
// with its id assigned.
func (m *Manager) Submit(ctx context.Context, file FileInfo, meta Metadata) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrQueueClosed
	}
	if _, ok := m.processors[meta.Kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetadataKind, meta.Kind)
	}

	job := &Job{
		ID:        NewJobID(),
		Status:    StatusPending,
		File:      file,
		Metadata:  meta,
		CreatedAt: nowMillis(),
	}
	if err := m.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	m.jobs[job.ID] = job
	m.seq[job.ID] = m.nextSeq
	m.nextSeq++

	metrics.RecordSubmit(meta.Kind)
	m.updateDepthLocked()
	m.hub.Publish(Update{Type: UpdateAdd, JobID: job.ID, Job: job.Clone()})
	m.scheduleLocked()
	return job.Clone(), nil
}

// Pause stops new claims; running workers finish their jobs.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = true
	if err := m.store.SetFlag(ctx, PausedFlag, "true"); err != nil {
		return err
	}
	metrics.SetPaused(true)
	m.hub.Publish(Update{Type: UpdatePause})
	return nil
}

// Resume restarts claiming.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	if err := m.store.SetFlag(ctx, PausedFlag, "false"); err != nil {
		return err
	}
	metrics.SetPaused(false)
	m.hub.Publish(Update{Type: UpdateResume})
	m.scheduleLocked()
	return nil
}

// Paused reports the current paused state.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Retry moves a failed job back to pending. It is a no-op returning
// false for any other status.
func (m *Manager) Retry(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status != StatusFailed {
		return false, nil
	}

	j.Status = StatusPending
	j.RetryCount++
	j.Error = ""
	j.FailureReason = ""
	j.Progress = 0
	j.StartedAt = 0
	j.CompletedAt = 0
	if err := m.store.SaveJob(ctx, j); err != nil {
		return false, fmt.Errorf("persist retry: %w", err)
	}

	m.updateDepthLocked()
	m.hub.Publish(Update{Type: UpdateChange, JobID: id, Job: j.Clone()})
	m.scheduleLocked()
	return true, nil
}

// Remove deletes a job and releases its files. Removing a processing job
// requires force; forcing cancels the worker, whose completion attempt
// then finds no row and becomes a no-op.
func (m *Manager) Remove(ctx context.Context, id string, force bool) (bool, error) {
	m.mu.Lock()

	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	if j.Status == StatusProcessing && !force {
		m.mu.Unlock()
		return false, ErrJobProcessing
	}

	if cancel, running := m.processing[id]; running {
		delete(m.processing, id)
		cancel()
	}

	if _, err := m.store.DeleteJob(ctx, id); err != nil {
		m.mu.Unlock()
		return false, fmt.Errorf("delete job: %w", err)
	}
	delete(m.jobs, id)
	delete(m.seq, id)

	paths := jobPaths(j)
	m.updateDepthLocked()
	m.hub.Publish(Update{Type: UpdateRemove, JobID: id})
	m.scheduleLocked()
	m.mu.Unlock()

	return true, m.releaser.RemoveAll(paths)
}

// ClearCompleted removes every completed and failed job, returning the
// count removed.
func (m *Manager) ClearCompleted(ctx context.Context) (int, error) {
	return m.clear(ctx, func(j *Job) bool { return j.Status.Terminal() })
}

// ClearAll removes everything except jobs currently processing.
func (m *Manager) ClearAll(ctx context.Context) (int, error) {
	return m.clear(ctx, func(j *Job) bool { return j.Status != StatusProcessing })
}

func (m *Manager) clear(ctx context.Context, match func(*Job) bool) (int, error) {
	m.mu.Lock()

	var paths []string
	count := 0
	for id, j := range m.jobs {
		if !match(j) {
			continue
		}
		if _, err := m.store.DeleteJob(ctx, id); err != nil {
			m.mu.Unlock()
			return count, fmt.Errorf("delete job %s: %w", id, err)
		}
		delete(m.jobs, id)
		delete(m.seq, id)
		paths = append(paths, jobPaths(j)...)
		count++
	}

	m.updateDepthLocked()
	m.hub.Publish(Update{Type: UpdateClear})
	m.mu.Unlock()

	return count, m.releaser.RemoveAll(paths)
}

// CancelCurrent moves every processing job back to the queue head as
// pending and cancels its worker. The worker's completion attempt sees
// the job is no longer processing and becomes a no-op.
func (m *Manager) CancelCurrent(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	head := m.minPendingCreatedAtLocked()
	for id, cancel := range m.processing {
		j, ok := m.jobs[id]
		if !ok {
			continue
		}

		head--
		j.Status = StatusPending
		j.StartedAt = 0
		j.Progress = 0
		j.CreatedAt = head
		if err := m.store.SaveJob(ctx, j); err != nil {
			return fmt.Errorf("persist cancelled job %s: %w", id, err)
		}

		delete(m.processing, id)
		cancel()
		m.hub.Publish(Update{Type: UpdateChange, JobID: id, Job: j.Clone()})
	}
	m.updateDepthLocked()
	return nil
}

// Get returns a snapshot of one job.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// Jobs returns snapshots of all jobs in FIFO order.
func (m *Manager) Jobs() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt != out[b].CreatedAt {
			return out[a].CreatedAt < out[b].CreatedAt
		}
		return m.seq[out[a].ID] < m.seq[out[b].ID]
	})
	return out
}

// EstimatedTimeRemaining projects queue drain time from the average
// duration of completed jobs. The bool is false when no job has
// completed yet.
func (m *Manager) EstimatedTimeRemaining() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	completed := 0
	pending := 0
	processing := 0
	for _, j := range m.jobs {
		switch j.Status {
		case StatusCompleted:
			if j.StartedAt > 0 && j.CompletedAt > j.StartedAt {
				total += j.CompletedAt - j.StartedAt
				completed++
			}
		case StatusPending:
			pending++
		case StatusProcessing:
			processing++
		}
	}
	if completed == 0 {
		return 0, false
	}

	avg := float64(total) / float64(completed)
	estMs := float64(pending)*avg + float64(processing)*avg*0.5
	return time.Duration(estMs) * time.Millisecond, true
}

// Shutdown stops claiming, waits for running workers until ctx expires,
// then cancels them and closes the hub. The store is closed by the
// caller afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.baseCancel()
		<-done
	}

	m.baseCancel()
	m.hub.Close()
	return nil
}

// scheduleLocked claims pending jobs FIFO while capacity remains.
// Callers hold m.mu.
func (m *Manager) scheduleLocked() {
	for !m.paused && !m.closed && len(m.processing) < m.cfg.MaxConcurrent {
		next := m.oldestPendingLocked()
		if next == nil {
			return
		}
		m.claimLocked(next)
	}
}

func (m *Manager) oldestPendingLocked() *Job {
	var best *Job
	for _, j := range m.jobs {
		if j.Status != StatusPending {
			continue
		}
		if best == nil ||
			j.CreatedAt < best.CreatedAt ||
			(j.CreatedAt == best.CreatedAt && m.seq[j.ID] < m.seq[best.ID]) {
			best = j
		}
	}
	return best
}

func (m *Manager) minPendingCreatedAtLocked() int64 {
	min := int64(0)
	found := false
	for _, j := range m.jobs {
		if j.Status != StatusPending {
			continue
		}
		if !found || j.CreatedAt < min {
			min = j.CreatedAt
			found = true
		}
	}
	if !found {
		return nowMillis()
	}
	return min
}

func (m *Manager) claimLocked(j *Job) {
	j.Status = StatusProcessing
	j.StartedAt = nowMillis()
	j.Progress = 0

	if err := m.store.UpdateStatus(m.baseCtx, j.ID, StatusProcessing, 0); err != nil {
		lg := log.WithComponent("queue")
		lg.Error().
			Str(log.FieldJobID, j.ID).
			Err(err).
			Msg("persisting claim failed, job stays pending")
		j.Status = StatusPending
		j.StartedAt = 0
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.processing[j.ID] = cancel

	m.updateDepthLocked()
	m.hub.Publish(Update{Type: UpdateChange, JobID: j.ID, Job: j.Clone()})

	m.wg.Add(1)
	go m.runJob(ctx, j.ID)
}

func (m *Manager) runJob(ctx context.Context, id string) {
	defer m.wg.Done()

	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		m.releaseWorkerSlot(id)
		return
	}
	snap := j.Clone()
	proc := m.processors[snap.Metadata.Kind]
	m.mu.Unlock()

	if proc == nil {
		m.finishJob(id, nil, fmt.Errorf("no processor registered for kind %q", snap.Metadata.Kind))
		return
	}

	limiter := rate.NewLimiter(progressPersistRate, 1)
	res, err := proc.Process(ctx, snap, func(p int) {
		m.reportProgress(id, p, limiter)
	})
	m.finishJob(id, res, err)
}

// reportProgress writes through a monotonic, rate-limited progress value
// and announces it. 100 is reserved for completion.
func (m *Manager) reportProgress(id string, p int, limiter *rate.Limiter) {
	if p < 0 {
		p = 0
	}
	if p > 99 {
		p = 99
	}
	if !limiter.Allow() && p < 99 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status != StatusProcessing || p <= j.Progress {
		return
	}
	j.Progress = p
	if err := m.store.UpdateStatus(m.baseCtx, id, StatusProcessing, p); err != nil {
		lg := log.WithComponent("queue")
		lg.Warn().
			Str(log.FieldJobID, id).
			Err(err).
			Msg("persisting progress failed")
		return
	}
	m.hub.Publish(Update{Type: UpdateChange, JobID: id, Job: j.Clone()})
}

func (m *Manager) finishJob(id string, res *Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cancel, ok := m.processing[id]; ok {
		delete(m.processing, id)
		defer cancel()
	}

	j, ok := m.jobs[id]
	if !ok {
		// Force-removed while running; the row is gone and the result
		// is discarded.
		m.scheduleLocked()
		return
	}
	if j.Status != StatusProcessing {
		// Cancel-current already moved the job back to pending.
		m.scheduleLocked()
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown raced the worker; recovery reconciles the row
			// at next startup.
			return
		}
		j.Status = StatusFailed
		j.Error = err.Error()
		j.FailureReason = FailureAPIError
		j.CompletedAt = nowMillis()
		if perr := m.store.SaveJob(m.baseCtx, j); perr != nil {
			lg := log.WithComponent("queue")
			lg.Error().
				Str(log.FieldJobID, id).
				Err(perr).
				Msg("persisting failure failed")
		}
		metrics.RecordFinished("failed")
	} else {
		j.Status = StatusCompleted
		j.Progress = 100
		j.CompletedAt = nowMillis()
		j.Result = res
		if perr := m.store.SaveJob(m.baseCtx, j); perr != nil {
			lg := log.WithComponent("queue")
			lg.Error().
				Str(log.FieldJobID, id).
				Err(perr).
				Msg("persisting completion failed")
		}
		metrics.RecordFinished("completed")
	}

	m.updateDepthLocked()
	m.hub.Publish(Update{Type: UpdateChange, JobID: id, Job: j.Clone()})
	m.scheduleLocked()
}

// releaseWorkerSlot drops a stale processing entry for a job that
// vanished before its worker started.
func (m *Manager) releaseWorkerSlot(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.processing[id]; ok {
		delete(m.processing, id)
		cancel()
	}
	m.scheduleLocked()
}

func (m *Manager) updateDepthLocked() {
	counts := map[Status]int{}
	for _, j := range m.jobs {
		counts[j.Status]++
	}
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		metrics.SetQueueDepth(string(s), counts[s])
	}
}

// jobPaths collects every filesystem path a job owns.
func jobPaths(j *Job) []string {
	var out []string
	if j.File.StagingPath != "" {
		out = append(out, j.File.StagingPath)
	}
	if j.Result != nil {
		if j.Result.OutputVideoPath != "" {
			out = append(out, j.Result.OutputVideoPath)
		}
		if j.Result.OutputSubtitlePath != "" {
			out = append(out, j.Result.OutputSubtitlePath)
		}
	}
	return append(out, j.Metadata.Paths()...)
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
