package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cinebot/app/models"
)

// Settings persists the singleton global policy row.
type Settings struct {
	db *sqlx.DB
}

// NewSettings creates the settings repository.
func NewSettings(db *sqlx.DB) *Settings {
	return &Settings{db: db}
}

// Get returns the settings row, creating the default one on first use.
func (r *Settings) Get(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := r.db.GetContext(ctx, &s, `SELECT * FROM settings WHERE id = 1`)
	if err == nil {
		return s, nil
	}
	if !errors.Is(mapFindErr(err), ErrNotFound) {
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, auto_post, announce_chat_id) VALUES (1, FALSE, 0)
		 ON CONFLICT (id) DO NOTHING`); err != nil {
		return models.Settings{}, fmt.Errorf("init settings: %w", err)
	}
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM settings WHERE id = 1`); err != nil {
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// SetAutoPost toggles automatic announcements of new content.
func (r *Settings) SetAutoPost(ctx context.Context, enabled bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE settings SET auto_post = $1 WHERE id = 1`, enabled); err != nil {
		return fmt.Errorf("set auto_post: %w", err)
	}
	return nil
}

// SetAnnounceChat stores the announcement channel chat id.
func (r *Settings) SetAnnounceChat(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE settings SET announce_chat_id = $1 WHERE id = 1`, chatID); err != nil {
		return fmt.Errorf("set announce chat: %w", err)
	}
	return nil
}
