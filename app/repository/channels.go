package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cinebot/app/models"
)

// Channels persists required-subscription channels.
type Channels struct {
	db *sqlx.DB
}

// NewChannels creates the channels repository.
func NewChannels(db *sqlx.DB) *Channels {
	return &Channels{db: db}
}

// Upsert registers a channel keyed by its chat id. Re-registering the same
// channel updates its metadata instead of duplicating it.
func (r *Channels) Upsert(ctx context.Context, ch models.Channel) error {
	const query = `
		INSERT INTO channels (chat_id, title, url, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET title = EXCLUDED.title, url = EXCLUDED.url`
	if _, err := r.db.ExecContext(ctx, query, ch.ChatID, ch.Title, ch.URL); err != nil {
		return fmt.Errorf("upsert channel %d: %w", ch.ChatID, err)
	}
	return nil
}

// All returns every registered channel.
func (r *Channels) All(ctx context.Context) ([]models.Channel, error) {
	var chs []models.Channel
	if err := r.db.SelectContext(ctx, &chs, `SELECT * FROM channels ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("select channels: %w", err)
	}
	return chs, nil
}

// Delete removes a channel registration.
func (r *Channels) Delete(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete channel %d: %w", chatID, err)
	}
	return nil
}

// Count returns the number of registered channels.
func (r *Channels) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM channels`); err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return n, nil
}
