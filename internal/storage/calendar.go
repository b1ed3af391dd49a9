package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fittrack/fittrack/internal/models"
)

const eventColumns = `id, user_id, title, description, start_at, end_at, event_type, status, color,
	plan_id, recurrence, parent_id, occurrence_start, created_at, updated_at`

func scanEvent(row rowScanner) (*models.CalendarEvent, error) {
	var (
		e          models.CalendarEvent
		recurrence []byte
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.Start, &e.End, &e.Type,
		&e.Status, &e.Color, &e.PlanID, &recurrence, &e.ParentID, &e.OccurrenceStart,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(recurrence) > 0 {
		var r models.Recurrence
		if err := json.Unmarshal(recurrence, &r); err != nil {
			return nil, fmt.Errorf("decoding recurrence of event %d: %w", e.ID, err)
		}
		e.Recurrence = &r
	}
	return &e, nil
}

func encodeRecurrence(r *models.Recurrence) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (q *queries) InsertEvent(ctx context.Context, e *models.CalendarEvent) error {
	rec, err := encodeRecurrence(e.Recurrence)
	if err != nil {
		return fmt.Errorf("encoding recurrence: %w", err)
	}
	err = q.q.QueryRow(ctx, `
		INSERT INTO calendar_events (user_id, title, description, start_at, end_at, event_type,
			status, color, plan_id, recurrence, parent_id, occurrence_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		e.UserID, e.Title, e.Description, e.Start, e.End, string(e.Type), string(e.Status),
		e.Color, e.PlanID, rec, e.ParentID, e.OccurrenceStart).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting calendar event: %w", err)
	}
	return nil
}

func (q *queries) GetEvent(ctx context.Context, id int64) (*models.CalendarEvent, error) {
	e, err := scanEvent(q.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "calendar event")
	}
	return e, nil
}

func (q *queries) UpdateEvent(ctx context.Context, e *models.CalendarEvent) error {
	rec, err := encodeRecurrence(e.Recurrence)
	if err != nil {
		return fmt.Errorf("encoding recurrence: %w", err)
	}
	err = q.q.QueryRow(ctx, `
		UPDATE calendar_events
		SET title = $2, description = $3, start_at = $4, end_at = $5, event_type = $6,
		    status = $7, color = $8, plan_id = $9, recurrence = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, e.Title, e.Description, e.Start, e.End, string(e.Type), string(e.Status),
		e.Color, e.PlanID, rec).Scan(&e.UpdatedAt)
	if err != nil {
		return notFound(err, "calendar event")
	}
	return nil
}

// DeleteEvent removes an event; materialized occurrences of a series go with it.
func (q *queries) DeleteEvent(ctx context.Context, id int64) error {
	tag, err := q.q.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	return expectOne(tag, err, "calendar event")
}

// ListEvents returns events overlapping [From, To], ordered by start. Events
// without an end are treated as lasting the default duration.
func (q *queries) ListEvents(ctx context.Context, f models.EventFilter) ([]models.CalendarEvent, error) {
	where := []string{"user_id = $1"}
	args := []any{f.UserID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("COALESCE(end_at, start_at + INTERVAL '60 minutes') >= $%d", *f.From)
	}
	if f.To != nil {
		add("start_at <= $%d", *f.To)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.ParentID != nil {
		add("parent_id = $%d", *f.ParentID)
	}
	if f.Recurring {
		where = append(where, "recurrence IS NOT NULL")
	}

	rows, err := q.q.Query(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE `+
		strings.Join(where, " AND ")+` ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing calendar events: %w", err)
	}
	defer rows.Close()

	var out []models.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning calendar event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
