// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/clipforge/internal/queue"
	"github.com/ManuGH/clipforge/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// nopReleaser records released paths without touching the filesystem.
type nopReleaser struct {
	mu    sync.Mutex
	paths []string
}

func (r *nopReleaser) RemoveAll(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
	return nil
}

// stubProcessor runs a caller-provided function for the single-burn kind.
type stubProcessor struct {
	kind string
	fn   func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error)
}

func (p *stubProcessor) Kind() string { return p.kind }

func (p *stubProcessor) Process(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
	return p.fn(ctx, job, progress)
}

func openStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newManager(t *testing.T, st queue.Store, cfg queue.Config, procs ...queue.Processor) *queue.Manager {
	t.Helper()
	m := queue.NewManager(cfg, st, &nopReleaser{}, procs...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func burnMeta() queue.Metadata {
	return queue.Metadata{
		Kind:       queue.KindSingleBurn,
		SingleBurn: &queue.SingleBurnMeta{InputPath: "/in", SubtitlePath: "/s", OutputPath: "/out"},
	}
}

func waitForStatus(t *testing.T, m *queue.Manager, id string, want queue.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		j, ok := m.Get(id)
		return ok && j.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
}

func TestFIFOUnderConcurrencyOne(t *testing.T) {
	st := openStore(t)

	var mu sync.Mutex
	var order []string
	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		progress(50)
		return &queue.Result{OutputVideoPath: "/out"}, nil
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(context.Background()))

	var ids []string
	for i := 0; i < 3; i++ {
		j, err := m.Submit(context.Background(), queue.FileInfo{Name: "f"}, burnMeta())
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}

	for _, id := range ids {
		waitForStatus(t, m, id, queue.StatusCompleted)
	}

	mu.Lock()
	assert.Equal(t, ids, order, "jobs must process in submission order")
	mu.Unlock()

	jobs := m.Jobs()
	require.Len(t, jobs, 3)
	for i, j := range jobs {
		assert.Equal(t, ids[i], j.ID)
		assert.Equal(t, queue.StatusCompleted, j.Status)
		assert.Equal(t, 100, j.Progress)
		assert.NotZero(t, j.StartedAt)
		assert.NotZero(t, j.CompletedAt)
	}
}

func TestProgressIsMonotonicAndCompletionIsHundred(t *testing.T) {
	st := openStore(t)

	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		progress(40)
		progress(20) // regression must be ignored
		progress(99)
		return &queue.Result{}, nil
	}}
	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(context.Background()))

	_, updates := m.Subscribe()

	j, err := m.Submit(context.Background(), queue.FileInfo{Name: "f"}, burnMeta())
	require.NoError(t, err)
	waitForStatus(t, m, j.ID, queue.StatusCompleted)

	last := -1
	for len(updates) > 0 {
		u := <-updates
		if u.Job == nil || u.Job.ID != j.ID {
			continue
		}
		assert.GreaterOrEqual(t, u.Job.Progress, last, "progress went backwards")
		last = u.Job.Progress
	}

	got, _ := m.Get(j.ID)
	assert.Equal(t, 100, got.Progress)
}

func TestMaxConcurrentIsRespected(t *testing.T) {
	st := openStore(t)

	var running, peak atomic.Int32
	release := make(chan struct{})
	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer running.Add(-1)
		select {
		case <-release:
			return &queue.Result{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 2, AutoStart: true}, proc)
	require.NoError(t, m.Recover(context.Background()))

	var ids []string
	for i := 0; i < 5; i++ {
		j, err := m.Submit(context.Background(), queue.FileInfo{Name: "f"}, burnMeta())
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, 5*time.Second, 5*time.Millisecond)
	close(release)

	for _, id := range ids {
		waitForStatus(t, m, id, queue.StatusCompleted)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCrashRecoveryHold(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	// Simulate the state an abrupt exit leaves behind: J1 mid-flight,
	// J2 untouched.
	j1 := &queue.Job{
		ID: "J1", Status: queue.StatusProcessing, Progress: 40,
		File: queue.FileInfo{Name: "one"}, Metadata: burnMeta(),
		CreatedAt: 1000, StartedAt: 1005,
	}
	j2 := &queue.Job{
		ID: "J2", Status: queue.StatusPending,
		File: queue.FileInfo{Name: "two"}, Metadata: burnMeta(),
		CreatedAt: 2000,
	}
	require.NoError(t, st.SaveJob(ctx, j1))
	require.NoError(t, st.SaveJob(ctx, j2))

	var mu sync.Mutex
	var order []string
	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		return &queue.Result{}, nil
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(ctx))

	// Hold-on-restart: outstanding work keeps the queue paused.
	assert.True(t, m.Paused())

	r1, ok := m.Get("J1")
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, r1.Status)
	assert.Equal(t, 1, r1.RetryCount)
	assert.Zero(t, r1.Progress)
	assert.Less(t, r1.CreatedAt, int64(2000), "requeued job must be ahead of J2")

	r2, ok := m.Get("J2")
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, r2.Status)
	assert.Zero(t, r2.RetryCount)

	// Nothing runs until the user resumes.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order)
	mu.Unlock()

	require.NoError(t, m.Resume(ctx))
	waitForStatus(t, m, "J1", queue.StatusCompleted)
	waitForStatus(t, m, "J2", queue.StatusCompleted)

	mu.Lock()
	assert.Equal(t, []string{"J1", "J2"}, order, "interrupted job must run first")
	mu.Unlock()
}

func TestRecoveryWithoutOutstandingWorkStartsUnpaused(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	done := &queue.Job{
		ID: "D1", Status: queue.StatusCompleted, Progress: 100,
		File: queue.FileInfo{Name: "f"}, Metadata: burnMeta(),
		CreatedAt: 1, StartedAt: 2, CompletedAt: 3,
	}
	require.NoError(t, st.SaveJob(ctx, done))

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true})
	require.NoError(t, m.Recover(ctx))
	assert.False(t, m.Paused())
}

func TestForcedRemovalOfProcessingJob(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	entered := make(chan struct{})
	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(ctx))

	j, err := m.Submit(ctx, queue.FileInfo{Name: "f", StagingPath: "/staging/videos/x/in.mp4"}, burnMeta())
	require.NoError(t, err)
	<-entered

	// Without force the removal is rejected.
	_, err = m.Remove(ctx, j.ID, false)
	assert.ErrorIs(t, err, queue.ErrJobProcessing)

	removed, err := m.Remove(ctx, j.ID, true)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok := m.Get(j.ID)
	assert.False(t, ok)

	// The worker's completion attempt is a no-op against the missing
	// row and nothing reappears.
	require.Eventually(t, func() bool {
		n, err := m.ClearAll(ctx)
		return err == nil && n == 0 && len(m.Jobs()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRetryIdempotence(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		return nil, errors.New("encoder exploded")
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: false}, proc)
	require.NoError(t, m.Recover(ctx))

	j, err := m.Submit(ctx, queue.FileInfo{Name: "f"}, burnMeta())
	require.NoError(t, err)

	// Pending job: retry is a no-op.
	ok, err := m.Retry(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Resume(ctx))
	waitForStatus(t, m, j.ID, queue.StatusFailed)

	failed, _ := m.Get(j.ID)
	assert.Equal(t, "encoder exploded", failed.Error)
	assert.Equal(t, queue.FailureAPIError, failed.FailureReason)

	require.NoError(t, m.Pause(ctx))
	ok, err = m.Retry(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	retried, _ := m.Get(j.ID)
	assert.Equal(t, queue.StatusPending, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Empty(t, retried.Error)
	assert.Zero(t, retried.Progress)
	assert.Zero(t, retried.CompletedAt)

	// Unknown id: no-op.
	ok, err = m.Retry(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearCompletedIncludesFailed(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	var n atomic.Int32
	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		if n.Add(1) == 1 {
			return nil, errors.New("boom")
		}
		return &queue.Result{}, nil
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(ctx))

	a, err := m.Submit(ctx, queue.FileInfo{Name: "a"}, burnMeta())
	require.NoError(t, err)
	b, err := m.Submit(ctx, queue.FileInfo{Name: "b"}, burnMeta())
	require.NoError(t, err)

	waitForStatus(t, m, a.ID, queue.StatusFailed)
	waitForStatus(t, m, b.ID, queue.StatusCompleted)

	removed, err := m.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Empty(t, m.Jobs())

	// The store agrees.
	rows, err := st.LoadAllJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCancelCurrentRequeuesAtHead(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	entered := make(chan struct{}, 2)
	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(ctx))

	j, err := m.Submit(ctx, queue.FileInfo{Name: "f"}, burnMeta())
	require.NoError(t, err)
	<-entered

	require.NoError(t, m.Pause(ctx))
	require.NoError(t, m.CancelCurrent(ctx))

	got, ok := m.Get(j.ID)
	require.True(t, ok)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Zero(t, got.StartedAt)
	assert.Zero(t, got.Progress)
}

func TestSubmitUnknownKindIsRejected(t *testing.T) {
	st := openStore(t)
	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true})
	require.NoError(t, m.Recover(context.Background()))

	_, err := m.Submit(context.Background(), queue.FileInfo{Name: "f"}, burnMeta())
	assert.ErrorIs(t, err, queue.ErrUnknownMetadataKind)
}

func TestEstimatedTimeRemaining(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	proc := &stubProcessor{kind: queue.KindSingleBurn, fn: func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (*queue.Result, error) {
		return &queue.Result{}, nil
	}}
	m := newManager(t, st, queue.Config{MaxConcurrent: 1, AutoStart: true}, proc)
	require.NoError(t, m.Recover(ctx))

	// Undefined before any job completed.
	_, ok := m.EstimatedTimeRemaining()
	assert.False(t, ok)

	j, err := m.Submit(ctx, queue.FileInfo{Name: "f"}, burnMeta())
	require.NoError(t, err)
	waitForStatus(t, m, j.ID, queue.StatusCompleted)

	require.NoError(t, m.Pause(ctx))
	_, err = m.Submit(ctx, queue.FileInfo{Name: "g"}, burnMeta())
	require.NoError(t, err)

	eta, ok := m.EstimatedTimeRemaining()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, eta, time.Duration(0))
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	st := openStore(t)
	m := queue.NewManager(queue.Config{MaxConcurrent: 1}, st, &nopReleaser{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	_, err := m.Submit(context.Background(), queue.FileInfo{Name: "f"}, burnMeta())
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}
