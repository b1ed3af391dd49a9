package storage

import (
	"context"
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
)

func (q *queries) InsertWeightLog(ctx context.Context, w *models.WeightLog) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO weight_logs (user_id, weight_kg, logged_at, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, w.UserID, w.WeightKg, w.LoggedAt, w.Note).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("inserting weight log: %w", err)
	}
	return nil
}

// ListWeightLogs returns measurements newest first. limit 0 returns all rows.
func (q *queries) ListWeightLogs(ctx context.Context, userID int64, limit, offset int) ([]models.WeightLog, error) {
	query := `SELECT id, user_id, weight_kg, logged_at, note FROM weight_logs
		WHERE user_id = $1 ORDER BY logged_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := q.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing weight logs: %w", err)
	}
	defer rows.Close()

	var out []models.WeightLog
	for rows.Next() {
		var w models.WeightLog
		if err := rows.Scan(&w.ID, &w.UserID, &w.WeightKg, &w.LoggedAt, &w.Note); err != nil {
			return nil, fmt.Errorf("scanning weight log: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
