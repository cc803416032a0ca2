// Package access answers "is this user an admin" and "may they do X".
// Admin existence is cached briefly to keep the middleware path off the
// database; individual rights are always read fresh.
package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/repository"
	"github.com/m3rciful/cinebot/core/logger"
)

// cacheTTL bounds how stale a cached admin-existence answer may be.
const cacheTTL = 60 * time.Second

// RightsRepo is the slice of the admin repository the service needs.
type RightsRepo interface {
	Find(ctx context.Context, userID int64) (models.AdminRights, error)
}

type cacheEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

// Service resolves admin status and capability checks.
type Service struct {
	repo    RightsRepo
	ownerID int64

	mu    sync.RWMutex
	cache map[int64]cacheEntry

	now func() time.Time
}

// NewService creates the access service. ownerID bypasses every check.
func NewService(repo RightsRepo, ownerID int64) *Service {
	return &Service{
		repo:    repo,
		ownerID: ownerID,
		cache:   make(map[int64]cacheEntry),
		now:     time.Now,
	}
}

// IsAdmin reports whether the user has an admin record. The answer is
// cached; a repository failure is treated as "not admin" and not cached.
func (s *Service) IsAdmin(ctx context.Context, userID int64) bool {
	if userID == s.ownerID {
		return true
	}

	s.mu.RLock()
	entry, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.isAdmin
	}

	_, err := s.repo.Find(ctx, userID)
	isAdmin := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.LogEvent(ctx, logger.SVCAccess, slog.LevelWarn, "admin.lookup_failed",
			slog.Int64("user_id", userID), slog.String("err", err.Error()))
		return false
	}

	s.mu.Lock()
	s.cache[userID] = cacheEntry{isAdmin: isAdmin, expiresAt: s.now().Add(cacheTTL)}
	s.mu.Unlock()
	return isAdmin
}

// HasRight reports whether the user holds the given capability. Rights are
// read from the repository on every call so a revocation takes effect at
// the next operation. The owner holds every right.
func (s *Service) HasRight(ctx context.Context, userID int64, right models.Right) bool {
	if userID == s.ownerID {
		return true
	}
	rec, err := s.repo.Find(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.LogEvent(ctx, logger.SVCAccess, slog.LevelWarn, "rights.lookup_failed",
				slog.Int64("user_id", userID), slog.String("err", err.Error()))
		}
		return false
	}
	return rec.Has(right)
}

// Invalidate drops the cached answer for a user after their admin record
// is created or removed.
func (s *Service) Invalidate(userID int64) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// Sweep drops all expired cache entries and returns how many were removed.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.cache {
		if !s.now().Before(entry.expiresAt) {
			delete(s.cache, id)
			removed++
		}
	}
	return removed
}

// OwnerID exposes the configured owner for handlers that must refuse to
// operate on the owner's record.
func (s *Service) OwnerID() int64 { return s.ownerID }
