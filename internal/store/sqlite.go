// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store provides the SQLite-backed durable store for the job
// queue. Pure Go driver, WAL mode, busy_timeout on every pooled
// connection via DSN pragmas.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/queue"
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns sane pool settings for a single-writer queue.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// SQLite implements queue.Store on a single database file.
type SQLite struct {
	db *sql.DB
}

var _ queue.Store = (*SQLite)(nil)

// Open opens (or creates) the queue database at dbPath and runs the
// schema migration. Pragmas ride the DSN so they apply to every
// connection in the pool.
func Open(dbPath string, cfg Config) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate failed: %w", err)
	}
	return s, nil
}

// Close closes the database connection pool.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL CHECK(status IN ('pending', 'processing', 'completed', 'failed')),
		progress INTEGER NOT NULL DEFAULT 0,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		file_type TEXT,
		file_staging_path TEXT,
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		error TEXT,
		failure_reason TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		result_output_path TEXT,
		result_subtitle_path TEXT,
		result_subtitles_json TEXT,
		metadata_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

	CREATE TABLE IF NOT EXISTS queue_flags (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveJob upserts the full row.
func (s *SQLite) SaveJob(ctx context.Context, job *queue.Job) error {
	metaJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var outputPath, subtitlePath, subtitlesJSON sql.NullString
	if job.Result != nil {
		outputPath = nullString(job.Result.OutputVideoPath)
		subtitlePath = nullString(job.Result.OutputSubtitlePath)
		if len(job.Result.Subtitles) > 0 {
			raw, err := json.Marshal(job.Result.Subtitles)
			if err != nil {
				return fmt.Errorf("encode result subtitles: %w", err)
			}
			subtitlesJSON = sql.NullString{String: string(raw), Valid: true}
		}
	}

	query := `
	INSERT INTO jobs (
		id, status, progress,
		file_name, file_size, file_type, file_staging_path,
		created_at, started_at, completed_at,
		error, failure_reason, retry_count,
		result_output_path, result_subtitle_path, result_subtitles_json,
		metadata_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		progress = excluded.progress,
		file_name = excluded.file_name,
		file_size = excluded.file_size,
		file_type = excluded.file_type,
		file_staging_path = excluded.file_staging_path,
		created_at = excluded.created_at,
		started_at = excluded.started_at,
		completed_at = excluded.completed_at,
		error = excluded.error,
		failure_reason = excluded.failure_reason,
		retry_count = excluded.retry_count,
		result_output_path = excluded.result_output_path,
		result_subtitle_path = excluded.result_subtitle_path,
		result_subtitles_json = excluded.result_subtitles_json,
		metadata_json = excluded.metadata_json
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID, string(job.Status), job.Progress,
		job.File.Name, job.File.SizeBytes, nullString(job.File.MediaType), nullString(job.File.StagingPath),
		job.CreatedAt, nullInt64(job.StartedAt), nullInt64(job.CompletedAt),
		nullString(job.Error), nullString(string(job.FailureReason)), job.RetryCount,
		outputPath, subtitlePath, subtitlesJSON,
		string(metaJSON),
	)
	return err
}

// LoadAllJobs returns every job ordered by created_at ascending. A row
// whose metadata blob names an unknown kind is surfaced as a failed job
// rather than dropped.
func (s *SQLite) LoadAllJobs(ctx context.Context) ([]*queue.Job, error) {
	query := `
	SELECT id, status, progress,
	       file_name, file_size, file_type, file_staging_path,
	       created_at, started_at, completed_at,
	       error, failure_reason, retry_count,
	       result_output_path, result_subtitle_path, result_subtitles_json,
	       metadata_json
	FROM jobs
	ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	logger := log.WithComponent("store")

	var jobs []*queue.Job
	for rows.Next() {
		var (
			j                           queue.Job
			status                      string
			fileType, stagingPath       sql.NullString
			startedAt, completedAt      sql.NullInt64
			errText, failureReason      sql.NullString
			outputPath, subtitlePath    sql.NullString
			subtitlesJSON, metadataJSON sql.NullString
		)
		if err := rows.Scan(
			&j.ID, &status, &j.Progress,
			&j.File.Name, &j.File.SizeBytes, &fileType, &stagingPath,
			&j.CreatedAt, &startedAt, &completedAt,
			&errText, &failureReason, &j.RetryCount,
			&outputPath, &subtitlePath, &subtitlesJSON,
			&metadataJSON,
		); err != nil {
			return nil, err
		}

		j.Status = queue.Status(status)
		j.File.MediaType = fileType.String
		j.File.StagingPath = stagingPath.String
		j.StartedAt = startedAt.Int64
		j.CompletedAt = completedAt.Int64
		j.Error = errText.String
		j.FailureReason = queue.FailureReason(failureReason.String)

		if outputPath.Valid || subtitlePath.Valid || subtitlesJSON.Valid {
			j.Result = &queue.Result{
				OutputVideoPath:    outputPath.String,
				OutputSubtitlePath: subtitlePath.String,
			}
			if subtitlesJSON.Valid {
				if err := json.Unmarshal([]byte(subtitlesJSON.String), &j.Result.Subtitles); err != nil {
					return nil, fmt.Errorf("decode subtitles for job %s: %w", j.ID, err)
				}
			}
		}

		if err := json.Unmarshal([]byte(metadataJSON.String), &j.Metadata); err != nil {
			if errors.Is(err, queue.ErrUnknownMetadataKind) {
				logger.Error().
					Str(log.FieldJobID, j.ID).
					Err(err).
					Msg("job metadata names an unknown kind, marking failed")
				j.Status = queue.StatusFailed
				j.FailureReason = queue.FailureUnknown
				j.Error = err.Error()
				j.Progress = 0
			} else {
				return nil, fmt.Errorf("decode metadata for job %s: %w", j.ID, err)
			}
		}

		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a row; idempotent.
func (s *SQLite) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateStatus sets status and progress, stamping started_at on entry
// into processing and completed_at on a terminal transition.
func (s *SQLite) UpdateStatus(ctx context.Context, id string, status queue.Status, progress int) error {
	now := time.Now().UnixMilli()

	var query string
	switch {
	case status == queue.StatusProcessing:
		query = `UPDATE jobs SET status = ?, progress = ?, started_at = ? WHERE id = ?`
	case status.Terminal():
		query = `UPDATE jobs SET status = ?, progress = ?, completed_at = ? WHERE id = ?`
	default:
		_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, progress = ? WHERE id = ?`,
			string(status), progress, id)
		return err
	}
	_, err := s.db.ExecContext(ctx, query, string(status), progress, now, id)
	return err
}

// SetFlag upserts a queue flag.
func (s *SQLite) SetFlag(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO queue_flags (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// GetFlag reads a queue flag; the bool reports presence.
func (s *SQLite) GetFlag(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM queue_flags WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// MarkInterruptedAsFailed flips every processing row to failed/crash.
func (s *SQLite) MarkInterruptedAsFailed(ctx context.Context) (int, error) {
	query := `
	UPDATE jobs
	SET status = 'failed',
	    failure_reason = 'crash',
	    error = 'interrupted',
	    progress = 0,
	    completed_at = ?
	WHERE status = 'processing'
	`
	res, err := s.db.ExecContext(ctx, query, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
