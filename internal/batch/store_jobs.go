package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateJob inserts a new job and one pending item row per reference.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, name, status, config_json, progress_json, created_at, started_at, completed_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			job.Name,
			job.Status,
			string(configJSON),
			string(progressJSON),
			job.CreatedAt.UTC().Format(time.RFC3339Nano),
			nullableTime(job.StartedAt),
			nullableTime(job.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		for i, reference := range job.Items {
			result := ItemResult{Position: i, Reference: reference, Status: ItemPending}
			if i < len(job.Results) {
				result = job.Results[i]
			}
			resultJSON, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("marshal item result: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_items (job_id, position, reference, status, result_json) VALUES (?, ?, ?, ?, ?)`,
				job.ID, i, reference, result.Status, string(resultJSON),
			); err != nil {
				return fmt.Errorf("insert job item %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetJob returns a deep snapshot of one job, or nil when unknown. The job
// row and its items are read inside one transaction so the progress counters
// always agree with the item rows.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var job *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, name, status, config_json, progress_json, created_at, started_at, completed_at
             FROM jobs WHERE id = ?`, id)
		loaded, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if err := loadItems(ctx, tx, loaded); err != nil {
			return err
		}
		job = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns snapshots of all known jobs ordered by creation time. All
// rows are read inside one transaction, so the listing is a consistent
// point-in-time view and stable within one call.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, name, status, config_json, progress_json, created_at, started_at, completed_at
             FROM jobs ORDER BY created_at, id`)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		defer rows.Close()

		jobs = nil
		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return fmt.Errorf("scan job: %w", err)
			}
			jobs = append(jobs, job)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate jobs: %w", err)
		}
		for _, job := range jobs {
			if err := loadItems(ctx, tx, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		configJSON   string
		progressJSON string
		createdAt    string
		startedAt    sql.NullString
		completedAt  sql.NullString
	)
	if err := row.Scan(&job.ID, &job.Name, &job.Status, &configJSON, &progressJSON, &createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(progressJSON), &job.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	job.CreatedAt = created.UTC()
	if job.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, err
	}
	if job.CompletedAt, err = parseTimestamp(completedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func loadItems(ctx context.Context, tx *sql.Tx, job *Job) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT reference, result_json FROM job_items WHERE job_id = ? ORDER BY position`, job.ID)
	if err != nil {
		return fmt.Errorf("query job items: %w", err)
	}
	defer rows.Close()

	job.Items = nil
	job.Results = nil
	for rows.Next() {
		var reference, resultJSON string
		if err := rows.Scan(&reference, &resultJSON); err != nil {
			return fmt.Errorf("scan job item: %w", err)
		}
		var result ItemResult
		if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
			return fmt.Errorf("unmarshal item result: %w", err)
		}
		job.Items = append(job.Items, reference)
		job.Results = append(job.Results, result)
	}
	return rows.Err()
}

// StatusConflictError reports a guarded transition that found the job in an
// unexpected state. The current status is embedded for the caller's error
// mapping.
type StatusConflictError struct {
	JobID   string
	Current Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("job %s is %s", e.JobID, e.Current)
}

// TransitionStatus atomically moves a job from one of the expected statuses to
// the target status, stamping started_at/completed_at as appropriate. It
// returns sql.ErrNoRows for unknown jobs and *StatusConflictError when the job
// is not in an expected state.
func (s *Store) TransitionStatus(ctx context.Context, id string, to Status, from ...Status) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current Status
		if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&current); err != nil {
			return err
		}
		allowed := len(from) == 0
		for _, status := range from {
			if current == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return &StatusConflictError{JobID: id, Current: current}
		}

		query := `UPDATE jobs SET status = ?`
		args := []any{to}
		switch to {
		case StatusRunning:
			if current == StatusPending {
				query += `, started_at = ?`
				args = append(args, now.Format(time.RFC3339Nano))
			}
		case StatusCompleted, StatusFailed, StatusCancelled:
			query += `, completed_at = ?`
			args = append(args, now.Format(time.RFC3339Nano))
		}
		query += ` WHERE id = ?`
		args = append(args, id)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		return nil
	})
}

// SetItemResult writes one item outcome and the matching job progress in a
// single transaction so readers never observe one without the other.
func (s *Store) SetItemResult(ctx context.Context, jobID string, result ItemResult, progress Progress) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal item result: %w", err)
	}
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE job_items SET status = ?, result_json = ? WHERE job_id = ? AND position = ?`,
			result.Status, string(resultJSON), jobID, result.Position,
		)
		if err != nil {
			return fmt.Errorf("update job item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("item rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("job %s has no item at position %d", jobID, result.Position)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET progress_json = ? WHERE id = ?`, string(progressJSON), jobID,
		); err != nil {
			return fmt.Errorf("update job progress: %w", err)
		}
		return nil
	})
}

// Finalize writes the terminal state of a job in one transaction: any
// leftover skipped item results, the final progress, and the terminal status
// with its completion timestamp.
func (s *Store) Finalize(ctx context.Context, jobID string, to Status, progress Progress, skipped []ItemResult) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, result := range skipped {
			resultJSON, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("marshal skipped result: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE job_items SET status = ?, result_json = ? WHERE job_id = ? AND position = ?`,
				result.Status, string(resultJSON), jobID, result.Position,
			); err != nil {
				return fmt.Errorf("mark item skipped: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, progress_json = ?, completed_at = ? WHERE id = ?`,
			to, string(progressJSON), now, jobID,
		); err != nil {
			return fmt.Errorf("finalize job: %w", err)
		}
		return nil
	})
}

// DeleteJob removes a job and its item rows. It reports whether a job was
// deleted.
func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_items WHERE job_id = ?`, id); err != nil {
			return fmt.Errorf("delete job items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("job rows affected: %w", err)
		}
		deleted = affected > 0
		return nil
	})
	return deleted, err
}
