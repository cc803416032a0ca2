package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/present"
	"github.com/m3rciful/cinebot/app/session"
	"github.com/m3rciful/cinebot/core/logger"
	"github.com/m3rciful/cinebot/core/telegram/callbacks"
	"github.com/m3rciful/cinebot/core/telegram/helpers"
)

// requireRight answers the callback with a denial when the capability is
// missing. It reports true when the caller may proceed.
func (h *Handlers) requireRight(ctx context.Context, c tele.Context, right models.Right) bool {
	if h.access.HasRight(ctx, c.Sender().ID, right) {
		return true
	}
	_ = c.Respond(&tele.CallbackResponse{Text: "No permission"})
	return false
}

func (h *Handlers) onAdminMenu(c tele.Context) error {
	ctx := helpers.WithHandler(c, "admin")
	userID := c.Sender().ID
	menu := present.AdminMenu(func(right models.Right) bool {
		return h.access.HasRight(ctx, userID, right)
	})
	return c.Send("Admin panel:", menu)
}

func (h *Handlers) onContentMenu(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_content")
	if !h.requireRight(ctx, c, models.RightContent) {
		return nil
	}
	return c.Send("Content management:", present.ContentMenu())
}

func (h *Handlers) onAddMovie(c tele.Context) error {
	return h.startContentWizard(c, models.KindMovie)
}

func (h *Handlers) onAddSeries(c tele.Context) error {
	return h.startContentWizard(c, models.KindSeries)
}

func (h *Handlers) startContentWizard(c tele.Context, kind models.ContentKind) error {
	ctx := helpers.WithHandler(c, "add_content")
	if !h.requireRight(ctx, c, models.RightContent) {
		return nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionAddContent,
		session.Draft{Kind: string(kind)})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onEditSearch(c tele.Context) error {
	ctx := helpers.WithHandler(c, "edit_search")
	if !h.requireRight(ctx, c, models.RightContent) {
		return nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionEditSearch, session.Draft{})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onEditField(c tele.Context) error {
	ctx := helpers.WithHandler(c, "edit_field")
	if !h.requireRight(ctx, c, models.RightContent) {
		return nil
	}
	parts := strings.SplitN(callbacks.Payload(c), "|", 2)
	if len(parts) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionEditField,
		session.Draft{ContentID: id, Field: parts[1]})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onEditEpisodes(c tele.Context) error {
	ctx := helpers.WithHandler(c, "edit_eps")
	if !h.requireRight(ctx, c, models.RightContent) {
		return nil
	}
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionAddEpisode,
		session.Draft{ContentID: id})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onChannelsMenu(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_channels")
	if !h.requireRight(ctx, c, models.RightChannels) {
		return nil
	}
	channels, err := h.channels.All(ctx)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	text := "Required channels:"
	if len(channels) == 0 {
		text = "No required channels configured."
	}
	return c.Send(text, present.ChannelsMenu(channels))
}

func (h *Handlers) onChannelAdd(c tele.Context) error {
	ctx := helpers.WithHandler(c, "ch_add")
	if !h.requireRight(ctx, c, models.RightChannels) {
		return nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionAddChannel, session.Draft{})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onChannelDelete(c tele.Context) error {
	ctx := helpers.WithHandler(c, "ch_del")
	if !h.requireRight(ctx, c, models.RightChannels) {
		return nil
	}
	chatID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	if err := h.channels.Delete(ctx, chatID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	logger.LogEvent(ctx, logger.SVCGate, slog.LevelInfo, "channel.removed",
		slog.Int64("channel_id", chatID))
	_ = c.Respond(&tele.CallbackResponse{Text: "Removed"})
	return h.onChannelsMenu(c)
}

func (h *Handlers) onManageAdmins(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_admins")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionManageAdmin, session.Draft{})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onRightToggle(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_right")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	parts := strings.SplitN(callbacks.Payload(c), "|", 2)
	if len(parts) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	if userID == h.access.OwnerID() {
		return c.Respond(&tele.CallbackResponse{Text: "The owner's rights are fixed"})
	}
	right := models.Right(parts[1])

	rec, err := h.admins.Find(ctx, userID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Admin record not found"})
	}
	if err := h.admins.SetRight(ctx, userID, right, !rec.Has(right)); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	h.access.Invalidate(userID)

	rec, err = h.admins.Find(ctx, userID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	logger.LogEvent(ctx, logger.SVCAccess, slog.LevelInfo, "admin.right_toggled",
		slog.Int64("target_id", userID), slog.String("right", string(right)))
	_ = c.Respond(&tele.CallbackResponse{})
	return c.Edit(present.RightsKeyboard(rec))
}

func (h *Handlers) onAdminDelete(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_del")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	if userID == h.access.OwnerID() {
		return c.Respond(&tele.CallbackResponse{Text: "The owner cannot be removed"})
	}
	if err := h.admins.Delete(ctx, userID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	h.access.Invalidate(userID)
	logger.LogEvent(ctx, logger.SVCAccess, slog.LevelInfo, "admin.removed",
		slog.Int64("target_id", userID))
	_ = c.Respond(&tele.CallbackResponse{Text: "Removed"})
	return c.Send("Admin removed.")
}

func (h *Handlers) onFindUser(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_users")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionSearchUser, session.Draft{})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onUserBan(c tele.Context) error {
	return h.setUserBan(c, true)
}

func (h *Handlers) onUserUnban(c tele.Context) error {
	return h.setUserBan(c, false)
}

func (h *Handlers) setUserBan(c tele.Context, banned bool) error {
	ctx := helpers.WithHandler(c, "usr_ban")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	if err := h.users.SetBanned(ctx, userID, banned); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "user.ban_changed",
		slog.Int64("target_id", userID), slog.Bool("banned", banned))

	u, err := h.users.Find(ctx, userID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Done"})
	}
	_ = c.Respond(&tele.CallbackResponse{})
	return c.Edit(present.UserCard(u), present.UserKeyboard(u))
}

func (h *Handlers) onStats(c tele.Context) error {
	ctx := helpers.WithHandler(c, "stats")
	if !h.access.HasRight(ctx, c.Sender().ID, models.RightStats) {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: "No permission"})
		}
		return nil
	}
	total, active, err := h.users.Counts(ctx)
	if err != nil {
		return err
	}
	contentCount, err := h.content.Count(ctx)
	if err != nil {
		return err
	}
	channelCount, err := h.channels.Count(ctx)
	if err != nil {
		return err
	}
	return c.Send(present.Stats(total, active, contentCount, channelCount))
}

func (h *Handlers) onSettingsMenu(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_settings")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	s, err := h.settings.Get(ctx)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	return c.Send("Settings:", present.SettingsMenu(s))
}

func (h *Handlers) onAutoPostToggle(c tele.Context) error {
	ctx := helpers.WithHandler(c, "set_autopost")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	s, err := h.settings.Get(ctx)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	if err := h.settings.SetAutoPost(ctx, !s.AutoPost); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	s.AutoPost = !s.AutoPost
	_ = c.Respond(&tele.CallbackResponse{})
	return c.Edit("Settings:", present.SettingsMenu(s))
}

func (h *Handlers) onSetAnnounce(c tele.Context) error {
	ctx := helpers.WithHandler(c, "set_announce")
	if !h.requireRight(ctx, c, models.RightAdmins) {
		return nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionSetAnnounce, session.Draft{})
	return h.sendReply(ctx, c, reply)
}
