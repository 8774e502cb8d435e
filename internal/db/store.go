package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("task not found")

// Store owns all task persistence. Every mutating operation goes through
// the single sqlite connection, so concurrent callers serialize here.
type Store struct {
	conn *sql.DB
	log  zerolog.Logger
}

func Open(path string, log zerolog.Logger) (*Store, error) {
	conn, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Store{conn: conn, log: log.With().Str("component", "store").Logger()}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Insert persists a new pending task and returns its id.
func (s *Store) Insert(ctx context.Context, text string, priority int, meta Metadata) (int64, error) {
	var metaJSON interface{}
	if !meta.IsZero() {
		b, err := json.Marshal(meta)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize metadata: %w", err)
		}
		metaJSON = string(b)
	}

	result, err := s.conn.ExecContext(ctx, InsertTask, text, priority, metaJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get task id: %w", err)
	}

	s.log.Debug().Int64("task_id", id).Int("priority", priority).Msg("task inserted")
	return id, nil
}

// FetchRetryable returns tasks eligible for a delivery attempt: failed jobs
// first so stuck retries outrank fresh backlog, then priority, then FIFO.
// Rows at or past maxAttempts are excluded at the SQL level.
//
// The submission path and the retry loop can both see a task as retryable
// in the moment between a failed immediate attempt and its mark. A rare
// duplicate attempt is accepted rather than introducing a claim state.
func (s *Store) FetchRetryable(ctx context.Context, limit, maxAttempts int) ([]Task, error) {
	rows, err := s.conn.QueryContext(ctx, FetchRetryableTasks, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch retryable tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// MarkPrinted is idempotent: a second call on a printed task rewrites the
// same terminal state.
func (s *Store) MarkPrinted(ctx context.Context, id int64) error {
	result, err := s.conn.ExecContext(ctx, MarkTaskPrinted, id)
	if err != nil {
		return fmt.Errorf("failed to mark task printed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed attempt. Printed tasks never regress, so the
// update skips them; a printed id reports success because the terminal
// state already won.
func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	result, err := s.conn.ExecContext(ctx, MarkTaskFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check task: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	row := s.conn.QueryRowContext(ctx, GetTaskByID, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]Task, error) {
	rows, err := s.conn.QueryContext(ctx, ListRecentTasks, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]Task, error) {
	rows, err := s.conn.QueryContext(ctx, ListPendingTasks, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	rows, err := s.conn.QueryContext(ctx, CountTasksByStatus)
	if err != nil {
		return stats, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("failed to scan count: %w", err)
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusPrinted:
			stats.Printed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to read counts: %w", err)
	}

	if err := s.conn.QueryRowContext(ctx, CountTasksToday).Scan(&stats.Today); err != nil {
		return stats, fmt.Errorf("failed to count today's tasks: %w", err)
	}

	return stats, nil
}

// ResetFailed moves every failed task back to pending with a clean slate.
// Printed tasks are untouched.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	result, err := s.conn.ExecContext(ctx, ResetFailedTasks)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed tasks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		s.log.Info().Int64("count", affected).Msg("reset failed tasks to pending")
	}
	return affected, nil
}

// ClearQueue deletes every pending and failed task. Printed history stays.
func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	result, err := s.conn.ExecContext(ctx, ClearQueuedTasks)
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		s.log.Info().Int64("count", affected).Msg("cleared queued tasks")
	}
	return affected, nil
}

// PurgePrinted deletes printed tasks older than the given age.
func (s *Store) PurgePrinted(ctx context.Context, olderThan time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(olderThan.Seconds()))
	result, err := s.conn.ExecContext(ctx, PurgePrintedTasks, modifier)
	if err != nil {
		return 0, fmt.Errorf("failed to purge printed tasks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		s.log.Info().Int64("count", affected).Msg("purged old printed tasks")
	}
	return affected, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var t Task
	var lastError sql.NullString
	var metaJSON sql.NullString
	var printedAt sql.NullTime

	err := row.Scan(&t.ID, &t.Text, &t.Priority, &t.Status, &t.Attempts,
		&lastError, &metaJSON, &t.CreatedAt, &printedAt)
	if err != nil {
		return Task{}, err
	}

	if lastError.Valid {
		t.LastError = lastError.String
	}
	if printedAt.Valid {
		t.PrintedAt = &printedAt.Time
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &t.Metadata); err != nil {
			return Task{}, fmt.Errorf("failed to parse metadata for task %d: %w", t.ID, err)
		}
	}

	return t, nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
