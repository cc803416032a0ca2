package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cinebot/app/models"
)

// Admins persists per-admin permission records.
type Admins struct {
	db *sqlx.DB
}

// NewAdmins creates the admin rights repository.
func NewAdmins(db *sqlx.DB) *Admins {
	return &Admins{db: db}
}

// Find returns the rights record for the given user id.
func (r *Admins) Find(ctx context.Context, userID int64) (models.AdminRights, error) {
	var rec models.AdminRights
	err := r.db.GetContext(ctx, &rec, `SELECT * FROM admin_rights WHERE user_id = $1`, userID)
	if err != nil {
		return models.AdminRights{}, mapFindErr(err)
	}
	return rec, nil
}

// Ensure returns the rights record for the user, creating a baseline record
// when none exists yet.
func (r *Admins) Ensure(ctx context.Context, userID int64) (models.AdminRights, error) {
	rec, err := r.Find(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.AdminRights{}, err
	}
	base := models.BaselineRights(userID)
	const query = `
		INSERT INTO admin_rights (user_id, can_search, can_content, can_channels, can_broadcast, can_admins, can_stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query,
		base.UserID, base.Search, base.Content, base.Channels, base.Broadcast, base.Admins, base.Stats); err != nil {
		return models.AdminRights{}, fmt.Errorf("ensure admin %d: %w", userID, err)
	}
	return r.Find(ctx, userID)
}

var rightColumns = map[models.Right]string{
	models.RightSearch:    "can_search",
	models.RightContent:   "can_content",
	models.RightChannels:  "can_channels",
	models.RightBroadcast: "can_broadcast",
	models.RightAdmins:    "can_admins",
	models.RightStats:     "can_stats",
}

// SetRight toggles a single capability on the record.
func (r *Admins) SetRight(ctx context.Context, userID int64, right models.Right, enabled bool) error {
	col, ok := rightColumns[right]
	if !ok {
		return fmt.Errorf("unknown right %q", right)
	}
	query := fmt.Sprintf(`UPDATE admin_rights SET %s = $2 WHERE user_id = $1`, col)
	res, err := r.db.ExecContext(ctx, query, userID, enabled)
	if err != nil {
		return fmt.Errorf("set right %s for %d: %w", right, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the admin record entirely.
func (r *Admins) Delete(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM admin_rights WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete admin %d: %w", userID, err)
	}
	return nil
}

// List returns every admin record.
func (r *Admins) List(ctx context.Context) ([]models.AdminRights, error) {
	var recs []models.AdminRights
	if err := r.db.SelectContext(ctx, &recs, `SELECT * FROM admin_rights ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return recs, nil
}
