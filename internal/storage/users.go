package storage

import (
	"context"
	"fmt"

	"github.com/fittrack/fittrack/internal/models"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, subject, email, display_name, current_weight_kg, goal_weight_kg,
	weekly_workouts, created_at, last_seen`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Subject, &u.Email, &u.DisplayName, &u.CurrentWeightKg,
		&u.GoalWeightKg, &u.WeeklyWorkouts, &u.CreatedAt, &u.LastSeen)
	return &u, err
}

// GetOrCreateUser finds or creates a user by the identity provider's subject.
// Updates last_seen on each call and fills email/display name when they were empty.
func (q *queries) GetOrCreateUser(ctx context.Context, p models.Principal) (*models.User, error) {
	u, err := scanUser(q.q.QueryRow(ctx, `
		INSERT INTO users (subject, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject) DO UPDATE
			SET last_seen = NOW(),
			    email = COALESCE(NULLIF($2, ''), users.email),
			    display_name = COALESCE(NULLIF(users.display_name, ''), $3)
		RETURNING `+userColumns,
		p.Subject, p.Email, p.DisplayName))
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return u, nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(q.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// UpdateUser writes the profile fields.
func (q *queries) UpdateUser(ctx context.Context, u *models.User) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE users
		SET display_name = $2, current_weight_kg = $3, goal_weight_kg = $4, weekly_workouts = $5
		WHERE id = $1`,
		u.ID, u.DisplayName, u.CurrentWeightKg, u.GoalWeightKg, u.WeeklyWorkouts)
	return expectOne(tag, err, "user")
}

// ListUserIDs returns every user id in ascending order.
func (q *queries) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.q.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return ids, nil
}
