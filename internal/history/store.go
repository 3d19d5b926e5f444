// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history keeps a SQLite log of conversion jobs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dotandev/fewdat/internal/logger"
	_ "modernc.org/sqlite"
)

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1

	// DefaultTTL is how long job records are kept (90 days)
	DefaultTTL = 90 * 24 * time.Hour

	// DefaultMaxJobs is the maximum number of job records to keep
	DefaultMaxJobs = 5000

	// DefaultListLimit is used by List when no limit is given
	DefaultListLimit = 50
)

// Job statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Job is one conversion of one input file.
type Job struct {
	ID           int64         `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Action       string        `json:"action"` // decode, decrypt, encrypt
	Input        string        `json:"input"`
	Outputs      []string      `json:"outputs"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
	Instructions int           `json:"instructions"`
	Strings      int           `json:"strings"`
}

// Store manages job persistence in SQLite
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.fewdat/history.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".fewdat", "history.db"), nil
}

// NewStore creates or opens the job database at path. An empty path selects
// DefaultPath.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// batch workers record concurrently; one writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		logger.Logger.Warn("Failed to set database permissions", "error", err)
	}

	return store, nil
}

// initSchema creates the jobs table if it doesn't exist
func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		action TEXT NOT NULL,
		input TEXT NOT NULL,
		outputs TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		instructions INTEGER NOT NULL DEFAULT 0,
		strings INTEGER NOT NULL DEFAULT 0,
		schema_version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_input ON jobs(input);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Record appends a job and sets its ID.
func (s *Store) Record(ctx context.Context, job *Job) error {
	if job.Input == "" {
		return fmt.Errorf("job input is required")
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = StatusOK
	}

	outputs, err := json.Marshal(job.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	query := `
	INSERT INTO jobs (
		started_at, duration_ms, action, input, outputs, status, error,
		instructions, strings, schema_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		job.StartedAt.UTC().Format(time.RFC3339Nano), job.Duration.Milliseconds(),
		job.Action, job.Input, string(outputs), job.Status, job.Error,
		job.Instructions, job.Strings, SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}

	if job.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get job id: %w", err)
	}

	logger.Logger.Debug("Job recorded", "id", job.ID, "input", job.Input, "status", job.Status)
	return nil
}

// List returns recent jobs, newest first
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
	SELECT id, started_at, duration_ms, action, input, outputs, status,
	       COALESCE(error, ''), instructions, strings
	FROM jobs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var job Job
		var startedAt, outputs string
		var durationMS int64

		err := rows.Scan(
			&job.ID, &startedAt, &durationMS, &job.Action, &job.Input, &outputs,
			&job.Status, &job.Error, &job.Instructions, &job.Strings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		if job.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		job.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(outputs), &job.Outputs); err != nil {
			return nil, fmt.Errorf("failed to parse outputs: %w", err)
		}

		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// Clear removes every job and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	logger.Logger.Debug("Job history cleared", "count", n)
	return n, nil
}

// Cleanup removes jobs older than ttl and enforces the maxJobs limit
func (s *Store) Cleanup(ctx context.Context, ttl time.Duration, maxJobs int) error {
	cutoff := time.Now().Add(-ttl).UTC().Format(time.RFC3339Nano)

	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE started_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired jobs: %w", err)
	}

	expiredCount, _ := result.RowsAffected()
	if expiredCount > 0 {
		logger.Logger.Debug("Cleaned up expired jobs", "count", expiredCount)
	}

	if maxJobs > 0 {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count jobs: %w", err)
		}

		if count > maxJobs {
			deleteOldest := `
				DELETE FROM jobs
				WHERE id IN (
					SELECT id FROM jobs
					ORDER BY started_at ASC, id ASC
					LIMIT ?
				)
			`
			result, err := s.db.ExecContext(ctx, deleteOldest, count-maxJobs)
			if err != nil {
				return fmt.Errorf("failed to delete oldest jobs: %w", err)
			}

			deletedCount, _ := result.RowsAffected()
			if deletedCount > 0 {
				logger.Logger.Debug("Cleaned up excess jobs", "count", deletedCount)
			}
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
