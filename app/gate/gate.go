// Package gate enforces required-channel subscription before content access.
package gate

import (
	"context"
	"log/slog"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/core/logger"
)

// ChannelSource lists the channels a user must be subscribed to.
type ChannelSource interface {
	All(ctx context.Context) ([]models.Channel, error)
}

// MembershipChecker answers whether a user currently belongs to a chat.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// AdminChecker exempts admins from the gate.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// Gate checks required subscriptions.
type Gate struct {
	channels ChannelSource
	members  MembershipChecker
	admins   AdminChecker
}

// New creates the gate.
func New(channels ChannelSource, members MembershipChecker, admins AdminChecker) *Gate {
	return &Gate{channels: channels, members: members, admins: admins}
}

// Missing returns the channels the user is not subscribed to. Admins pass
// unconditionally. A membership lookup that fails at the transport level is
// logged and counted as subscribed so an API hiccup never locks users out.
func (g *Gate) Missing(ctx context.Context, userID int64) ([]models.Channel, error) {
	if g.admins != nil && g.admins.IsAdmin(ctx, userID) {
		return nil, nil
	}
	channels, err := g.channels.All(ctx)
	if err != nil {
		return nil, err
	}
	var missing []models.Channel
	for _, ch := range channels {
		ok, err := g.members.IsMember(ctx, ch.ChatID, userID)
		if err != nil {
			logger.LogEvent(ctx, logger.SVCGate, slog.LevelWarn, "gate.membership_check_failed",
				slog.Int64("channel_id", ch.ChatID), slog.String("err", err.Error()))
			continue
		}
		if !ok {
			missing = append(missing, ch)
		}
	}
	return missing, nil
}
