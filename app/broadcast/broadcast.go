// Package broadcast delivers one message to every active user, paced to
// stay under the Telegram sending limits. At most one run exists at a time.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/m3rciful/cinebot/core/logger"
)

// ErrActive is returned when a run is requested while another is in flight.
var ErrActive = errors.New("broadcast already running")

// Audience yields the ids eligible for delivery.
type Audience interface {
	ActiveIDs(ctx context.Context) ([]int64, error)
}

// Sender copies the captured message to a user and classifies failures.
// Unreachable must report true for errors that mean the user can never be
// delivered to again (blocked the bot, deactivated account).
type Sender interface {
	CopyTo(ctx context.Context, userID, fromChatID int64, messageID int) error
	Unreachable(err error) bool
}

// Deactivator flags users that turned out to be unreachable.
type Deactivator interface {
	SetActive(ctx context.Context, id int64, active bool) error
}

// Summary is the final accounting of a finished run.
type Summary struct {
	RunID     string
	Total     int
	Delivered int
	Blocked   int
	Stopped   bool
	Took      time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	Active    bool
	RunID     string
	Total     int
	Delivered int
	Blocked   int
}

// Controller owns the single broadcast slot.
type Controller struct {
	audience Audience
	sender   Sender
	users    Deactivator
	limiter  *rate.Limiter

	mu        sync.Mutex
	active    bool
	stop      bool
	runID     string
	total     int
	delivered int
	blocked   int
}

// NewController creates a controller pacing deliveries at perSecond.
func NewController(audience Audience, sender Sender, users Deactivator, perSecond int) *Controller {
	if perSecond <= 0 {
		perSecond = 20
	}
	return &Controller{
		audience: audience,
		sender:   sender,
		users:    users,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Start claims the broadcast slot and launches delivery of the captured
// message in the background. It fails with ErrActive while a run is in
// flight. The returned channel yields the final summary exactly once.
func (c *Controller) Start(ctx context.Context, fromChatID int64, messageID int) (string, <-chan Summary, error) {
	ids, err := c.audience.ActiveIDs(ctx)
	if err != nil {
		return "", nil, err
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return "", nil, ErrActive
	}
	runID := uuid.NewString()
	c.active = true
	c.stop = false
	c.runID = runID
	c.total = len(ids)
	c.delivered = 0
	c.blocked = 0
	c.mu.Unlock()

	logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelInfo, "broadcast.started",
		slog.String("run_id", runID), slog.Int("total", len(ids)))

	done := make(chan Summary, 1)
	go c.run(ctx, runID, ids, fromChatID, messageID, done)
	return runID, done, nil
}

// RequestStop asks the in-flight run to finish after the current send.
// It reports whether a run was actually in flight.
func (c *Controller) RequestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	c.stop = true
	return true
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Active:    c.active,
		RunID:     c.runID,
		Total:     c.total,
		Delivered: c.delivered,
		Blocked:   c.blocked,
	}
}

func (c *Controller) run(ctx context.Context, runID string, ids []int64, fromChatID int64, messageID int, done chan<- Summary) {
	started := time.Now()
	stopped := false

	for _, id := range ids {
		c.mu.Lock()
		if c.stop {
			stopped = true
		}
		c.mu.Unlock()
		if stopped || ctx.Err() != nil {
			stopped = true
			break
		}

		if err := c.limiter.Wait(ctx); err != nil {
			stopped = true
			break
		}

		err := c.sender.CopyTo(ctx, id, fromChatID, messageID)
		switch {
		case err == nil:
			c.mu.Lock()
			c.delivered++
			c.mu.Unlock()
		case c.sender.Unreachable(err):
			c.mu.Lock()
			c.blocked++
			c.mu.Unlock()
			if derr := c.users.SetActive(ctx, id, false); derr != nil {
				logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelWarn, "broadcast.deactivate_failed",
					slog.String("run_id", runID), slog.Int64("user_id", id), slog.String("err", derr.Error()))
			}
		default:
			logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelWarn, "broadcast.send_failed",
				slog.String("run_id", runID), slog.Int64("user_id", id), slog.String("err", err.Error()))
		}
	}

	c.mu.Lock()
	summary := Summary{
		RunID:     runID,
		Total:     c.total,
		Delivered: c.delivered,
		Blocked:   c.blocked,
		Stopped:   stopped,
		Took:      time.Since(started),
	}
	c.active = false
	c.stop = false
	c.mu.Unlock()

	logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelInfo, "broadcast.finished",
		slog.String("run_id", runID),
		slog.Int("delivered", summary.Delivered),
		slog.Int("blocked", summary.Blocked),
		slog.Bool("stopped", summary.Stopped),
		slog.Int64("took_ms", summary.Took.Milliseconds()))

	done <- summary
}
