package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cinebot/app/models"
)

// Users persists bot users.
type Users struct {
	db *sqlx.DB
}

// NewUsers creates the users repository.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db}
}

// Upsert inserts the user or refreshes mutable profile fields. A returning
// user is re-activated so broadcasts reach them again.
func (r *Users) Upsert(ctx context.Context, u models.User) error {
	const query = `
		INSERT INTO users (id, first_name, username, birth_year, active, banned, created_at)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, NOW())
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    username   = EXCLUDED.username,
		    active     = TRUE`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.FirstName, u.Username, u.BirthYear); err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// Find returns the user by id.
func (r *Users) Find(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return models.User{}, mapFindErr(err)
	}
	return u, nil
}

// FindByUsername returns the user by their Telegram username, case-insensitively.
func (r *Users) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if err != nil {
		return models.User{}, mapFindErr(err)
	}
	return u, nil
}

// SetBirthYear records the user's confirmed birth year.
func (r *Users) SetBirthYear(ctx context.Context, id int64, year int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET birth_year = $2 WHERE id = $1`, id, year); err != nil {
		return fmt.Errorf("set birth year for %d: %w", id, err)
	}
	return nil
}

// SetActive toggles delivery eligibility for the user.
func (r *Users) SetActive(ctx context.Context, id int64, active bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active); err != nil {
		return fmt.Errorf("set active for %d: %w", id, err)
	}
	return nil
}

// SetBanned toggles the ban flag for the user.
func (r *Users) SetBanned(ctx context.Context, id int64, banned bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET banned = $2 WHERE id = $1`, id, banned); err != nil {
		return fmt.Errorf("set banned for %d: %w", id, err)
	}
	return nil
}

// ActiveIDs returns ids of all users eligible for broadcast delivery.
func (r *Users) ActiveIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM users WHERE active AND NOT banned ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select active users: %w", err)
	}
	return ids, nil
}

// Counts returns the total and currently active user counts.
func (r *Users) Counts(ctx context.Context) (total, active int64, err error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE active AND NOT banned) FROM users`)
	if err := row.Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	return total, active, nil
}
