// Package transport adapts the Telegram Bot API for the domain services:
// membership checks, channel resolution, and message copying.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/present"
)

// Adapter wraps the bot with the narrow operations services depend on.
type Adapter struct {
	bot *tele.Bot
}

// New creates the adapter.
func New(bot *tele.Bot) *Adapter {
	return &Adapter{bot: bot}
}

// IsMember reports whether the user currently belongs to the chat. A user
// who left or was kicked is not a member; any other role counts.
func (a *Adapter) IsMember(_ context.Context, chatID, userID int64) (bool, error) {
	member, err := a.bot.ChatMemberOf(tele.ChatID(chatID), tele.ChatID(userID))
	if err != nil {
		return false, fmt.Errorf("chat member of %d: %w", chatID, err)
	}
	switch member.Role {
	case tele.Left, tele.Kicked:
		return false, nil
	}
	return true, nil
}

// Resolve turns an operator-supplied reference into a channel record.
// Accepted forms: @username, t.me/username, or a numeric chat id.
func (a *Adapter) Resolve(_ context.Context, ref string) (models.Channel, error) {
	ref = strings.TrimSpace(ref)

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		chat, err := a.bot.ChatByID(id)
		if err != nil {
			return models.Channel{}, fmt.Errorf("chat by id %d: %w", id, err)
		}
		return channelOf(chat), nil
	}

	username := ref
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		username = strings.TrimPrefix(username, prefix)
	}
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	chat, err := a.bot.ChatByUsername(username)
	if err != nil {
		return models.Channel{}, fmt.Errorf("chat by username %s: %w", username, err)
	}
	return channelOf(chat), nil
}

func channelOf(chat *tele.Chat) models.Channel {
	ch := models.Channel{ChatID: chat.ID, Title: chat.Title}
	if chat.Username != "" {
		ch.URL = "https://t.me/" + chat.Username
	}
	return ch
}

// CopyTo re-sends the stored message to the user without a forward header.
func (a *Adapter) CopyTo(_ context.Context, userID, fromChatID int64, messageID int) error {
	stored := tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    fromChatID,
	}
	if _, err := a.bot.Copy(tele.ChatID(userID), stored); err != nil {
		return fmt.Errorf("copy to %d: %w", userID, err)
	}
	return nil
}

// Unreachable reports whether the error means the user can never be
// delivered to again.
func (a *Adapter) Unreachable(err error) bool {
	for _, terminal := range []error{
		tele.ErrBlockedByUser,
		tele.ErrUserIsDeactivated,
		tele.ErrNotStartedByUser,
		tele.ErrChatNotFound,
	} {
		if errors.Is(err, terminal) {
			return true
		}
	}
	return false
}

// Announce posts the new-content card with its poster to the given chat.
func (a *Adapter) Announce(_ context.Context, chatID int64, c models.Content) error {
	photo := &tele.Photo{
		File:    tele.File{FileID: c.PosterID},
		Caption: present.Caption(c),
	}
	if _, err := a.bot.Send(tele.ChatID(chatID), photo); err != nil {
		return fmt.Errorf("announce content %d: %w", c.ID, err)
	}
	return nil
}
