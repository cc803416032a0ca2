package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cinebot/app/models"
)

// Content persists content records and their episodes.
type Content struct {
	db *sqlx.DB
}

// NewContent creates the content repository.
func NewContent(db *sqlx.DB) *Content {
	return &Content{db: db}
}

// Create inserts a new content record. The unique index on code is the
// final authority on code uniqueness; a violation maps to ErrConflict.
func (r *Content) Create(ctx context.Context, c *models.Content) error {
	const query = `
		INSERT INTO content (code, kind, file_id, poster_id, title, country, language, adult, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		c.Code, c.Kind, c.FileID, c.PosterID, c.Title, c.Country, c.Language, c.Adult,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create content code=%d: %w", c.Code, mapInsertErr(err))
	}
	return nil
}

// FindByCode returns the content record addressed by the numeric code.
func (r *Content) FindByCode(ctx context.Context, code int64) (models.Content, error) {
	var c models.Content
	err := r.db.GetContext(ctx, &c, `SELECT * FROM content WHERE code = $1`, code)
	if err != nil {
		return models.Content{}, mapFindErr(err)
	}
	return c, nil
}

// FindByID returns the content record by primary key.
func (r *Content) FindByID(ctx context.Context, id int64) (models.Content, error) {
	var c models.Content
	err := r.db.GetContext(ctx, &c, `SELECT * FROM content WHERE id = $1`, id)
	if err != nil {
		return models.Content{}, mapFindErr(err)
	}
	return c, nil
}

// Update persists all mutable fields of the record.
func (r *Content) Update(ctx context.Context, c models.Content) error {
	const query = `
		UPDATE content
		SET file_id = $2, poster_id = $3, title = $4, country = $5, language = $6, adult = $7
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.FileID, c.PosterID, c.Title, c.Country, c.Language, c.Adult); err != nil {
		return fmt.Errorf("update content %d: %w", c.ID, err)
	}
	return nil
}

// IncrementViews bumps the delivery counter.
func (r *Content) IncrementViews(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE content SET views = views + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment views for %d: %w", id, err)
	}
	return nil
}

// AddRating records a single star vote.
func (r *Content) AddRating(ctx context.Context, id int64, stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("rating out of range: %d", stars)
	}
	const query = `UPDATE content SET rating_sum = rating_sum + $2, rating_count = rating_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, stars); err != nil {
		return fmt.Errorf("add rating for %d: %w", id, err)
	}
	return nil
}

// Count returns the total number of content records.
func (r *Content) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM content`); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return n, nil
}

// Episodes returns all episodes of a series in sequence order.
func (r *Content) Episodes(ctx context.Context, contentID int64) ([]models.Episode, error) {
	var eps []models.Episode
	err := r.db.SelectContext(ctx, &eps,
		`SELECT * FROM episodes WHERE content_id = $1 ORDER BY seq`, contentID)
	if err != nil {
		return nil, fmt.Errorf("select episodes of %d: %w", contentID, err)
	}
	return eps, nil
}

// Episode returns a single episode by series id and sequence number.
func (r *Content) Episode(ctx context.Context, contentID int64, seq int) (models.Episode, error) {
	var ep models.Episode
	err := r.db.GetContext(ctx, &ep,
		`SELECT * FROM episodes WHERE content_id = $1 AND seq = $2`, contentID, seq)
	if err != nil {
		return models.Episode{}, mapFindErr(err)
	}
	return ep, nil
}

// CountEpisodes returns the number of episodes recorded for a series.
func (r *Content) CountEpisodes(ctx context.Context, contentID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM episodes WHERE content_id = $1`, contentID)
	if err != nil {
		return 0, fmt.Errorf("count episodes of %d: %w", contentID, err)
	}
	return n, nil
}

// AddEpisode appends an episode row.
func (r *Content) AddEpisode(ctx context.Context, ep *models.Episode) error {
	const query = `
		INSERT INTO episodes (content_id, seq, file_id, name)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, ep.ContentID, ep.Seq, ep.FileID, ep.Name).Scan(&ep.ID)
	if err != nil {
		return fmt.Errorf("add episode %d/%d: %w", ep.ContentID, ep.Seq, mapInsertErr(err))
	}
	return nil
}
