package middleware

import (
	"sync"
	"time"

	"github.com/m3rciful/cinebot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Guard enforces a minimum interval between actions from the same actor.
// An action arriving inside the window is rejected without refreshing the
// stored timestamp, so a flooding actor does not push their own window
// forward indefinitely.
type Guard struct {
	mu       sync.Mutex
	window   time.Duration
	lastSeen map[int64]time.Time
	now      func() time.Time
}

// NewGuard creates a guard with the given cooldown window.
func NewGuard(window time.Duration) *Guard {
	return &Guard{
		window:   window,
		lastSeen: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the actor may act now. On success the current time
// is recorded as the actor's last action.
func (g *Guard) Allow(actorID int64) bool {
	if g == nil || g.window <= 0 {
		return true
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastSeen[actorID]; ok && now.Sub(last) < g.window {
		return false
	}
	g.lastSeen[actorID] = now
	return true
}

// Window returns the configured cooldown window.
func (g *Guard) Window() time.Duration { return g.window }

// Sweep evicts entries older than olderThan and returns the eviction count.
func (g *Guard) Sweep(olderThan time.Duration) int {
	if g == nil {
		return 0
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	evicted := 0
	for id, ts := range g.lastSeen {
		if now.Sub(ts) > olderThan {
			delete(g.lastSeen, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked actors.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastSeen)
}

// FloodMiddleware gates every inbound update through the guard. Updates
// arriving inside the window are dropped; onLimited, when set, is invoked
// instead of the downstream handler.
func FloodMiddleware(guard *Guard, onLimited tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || guard == nil {
				return next(c)
			}
			if !guard.Allow(user.ID) {
				logger.TG.Warn("flood limited",
					slog.String("event", "tg.flood"),
					slog.Int64("user_id", user.ID),
				)
				if onLimited != nil {
					return onLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
