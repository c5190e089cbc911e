package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"stream-snapshot/pkg/models"
)

var db *sql.DB

func InitJobs(database *sql.DB) {
	db = database
}

// CreateJob creates a new job in the database.
func CreateJob(ctx context.Context, jobType string, payload interface{}) (int64, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	res, err := db.ExecContext(ctx, "INSERT INTO jobs (job_type, payload) VALUES (?, ?)", jobType, string(payloadBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetPendingJob retrieves the oldest pending job, or nil when the queue is empty.
func GetPendingJob(ctx context.Context) (*models.Job, error) {
	row := db.QueryRowContext(ctx, "SELECT id, job_type, payload, status, error, created_at, updated_at FROM jobs WHERE status = 'pending' ORDER BY id ASC LIMIT 1")

	var job models.Job
	err := row.Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending job: %w", err)
	}

	return &job, nil
}

// CountPending reports how many jobs are waiting.
func CountPending(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE status = 'pending'").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}

// DeleteJob removes a job from the database.
func DeleteJob(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	return nil
}

// UpdateJobStatus updates the status and error of a job.
func UpdateJobStatus(ctx context.Context, id int64, status string, jobErr error) error {
	var errStr sql.NullString
	if jobErr != nil {
		errStr.String = jobErr.Error()
		errStr.Valid = true
	}
	_, err := db.ExecContext(ctx, "UPDATE jobs SET status = ?, error = ? WHERE id = ?", status, errStr, id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}
