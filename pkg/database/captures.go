package database

import (
	"context"
	"errors"
	"fmt"

	"stream-snapshot/pkg/models"
)

var errNotInitialized = errors.New("database not initialized")

// RecordCapture stores one capture attempt and returns its row id.
func RecordCapture(ctx context.Context, c *models.Capture) (int64, error) {
	if db == nil {
		return 0, errNotInitialized
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO captures (kind, source_url, video_id, still_name, loop_name, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.Kind), c.SourceURL, c.VideoID, c.Still, c.Loop, c.Status, c.Error, c.DurationMs)
	if err != nil {
		return 0, fmt.Errorf("failed to record capture: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// ListCaptures returns the most recent capture attempts, newest first.
func ListCaptures(ctx context.Context, limit int) ([]models.Capture, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, kind, source_url, video_id, still_name, loop_name, status, error, duration_ms, pruned, created_at
		FROM captures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var captures []models.Capture
	for rows.Next() {
		var c models.Capture
		var kind string
		var prunedInt int
		if err := rows.Scan(&c.ID, &kind, &c.SourceURL, &c.VideoID, &c.Still, &c.Loop, &c.Status, &c.Error, &c.DurationMs, &prunedInt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture row: %w", err)
		}
		c.Kind = models.Kind(kind)
		c.Pruned = prunedInt == 1
		captures = append(captures, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during capture rows iteration: %w", err)
	}
	return captures, nil
}

// MarkCapturesPruned flags every capture whose still or loop is among names.
func MarkCapturesPruned(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if db == nil {
		return errNotInitialized
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE captures SET pruned = 1 WHERE still_name = ? OR loop_name = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.Exec(name, name); err != nil {
			return fmt.Errorf("failed to mark %s pruned: %w", name, err)
		}
	}
	return tx.Commit()
}

// CaptureCounts returns the number of recorded captures per status.
func CaptureCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT status, COUNT(*) FROM captures GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count captures: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan capture count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
