// Package handlers binds the Telegram surface to the domain services:
// command dispatch, wizard input routing, and callback handling.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/access"
	"github.com/m3rciful/cinebot/app/broadcast"
	"github.com/m3rciful/cinebot/app/gate"
	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/present"
	"github.com/m3rciful/cinebot/app/repository"
	"github.com/m3rciful/cinebot/app/wizard"
	"github.com/m3rciful/cinebot/core/logger"
	"github.com/m3rciful/cinebot/core/telegram"
	"github.com/m3rciful/cinebot/core/telegram/callbacks"
	"github.com/m3rciful/cinebot/core/telegram/commands"
	"github.com/m3rciful/cinebot/core/telegram/helpers"
	"github.com/m3rciful/cinebot/core/telegram/middleware"
)

// Handlers wires every bot endpoint to the services behind it.
type Handlers struct {
	users    *repository.Users
	content  *repository.Content
	channels *repository.Channels
	admins   *repository.Admins
	settings *repository.Settings

	access      *access.Service
	gate        *gate.Gate
	engine      *wizard.Engine
	broadcaster *broadcast.Controller

	downloads *middleware.Guard
}

// New creates the handler set. The transport-backed services are attached
// later via BindTransport, once the bot is built.
func New(
	users *repository.Users,
	content *repository.Content,
	channels *repository.Channels,
	admins *repository.Admins,
	settings *repository.Settings,
	accessSvc *access.Service,
	downloads *middleware.Guard,
) *Handlers {
	return &Handlers{
		users:     users,
		content:   content,
		channels:  channels,
		admins:    admins,
		settings:  settings,
		access:    accessSvc,
		downloads: downloads,
	}
}

// BindTransport attaches the services that require the live bot. Must be
// called before polling starts.
func (h *Handlers) BindTransport(gateSvc *gate.Gate, engine *wizard.Engine, broadcaster *broadcast.Controller) {
	h.gate = gateSvc
	h.engine = engine
	h.broadcaster = broadcaster
}

// Register fills the registry and returns the routes to bind on the bot.
func (h *Handlers) Register(reg *telegram.Registry) []telegram.Route {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.onStart,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.onCancel,
		Description: "Cancel the current operation",
	})
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{Checker: h.access})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     adminOnly(h.onAdminMenu),
		Description: "Open the admin panel",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     adminOnly(h.onStats),
		Description: "Show bot statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	for key, handler := range map[string]tele.HandlerFunc{
		present.CbGet:      h.onDownload,
		present.CbEpisode:  h.onEpisodeDownload,
		present.CbEpisodes: h.onEpisodesPage,
		present.CbRate:     h.onRate,
		present.CbSubCheck: h.onSubscriptionCheck,

		present.CbWizardCancel: h.onWizardCancel,
		present.CbAdultChoice:  h.onAdultChoice,

		present.CbAdminContent:     h.onContentMenu,
		present.CbAddMovie:         h.onAddMovie,
		present.CbAddSeries:        h.onAddSeries,
		present.CbEditSearch:       h.onEditSearch,
		present.CbEditField:        h.onEditField,
		present.CbEditEps:          h.onEditEpisodes,
		present.CbAdminChannels:    h.onChannelsMenu,
		present.CbChannelAdd:       h.onChannelAdd,
		present.CbChannelDel:       h.onChannelDelete,
		present.CbAdminBroadcast:   h.onBroadcastStart,
		present.CbBroadcastConfirm: h.onBroadcastConfirm,
		present.CbBroadcastCancel:  h.onBroadcastCancel,
		present.CbBroadcastStop:    h.onBroadcastStop,
		present.CbAdminAdmins:      h.onManageAdmins,
		present.CbRightToggle:      h.onRightToggle,
		present.CbAdminDelete:      h.onAdminDelete,
		present.CbAdminUsers:       h.onFindUser,
		present.CbUserBan:          h.onUserBan,
		present.CbUserUnban:        h.onUserUnban,
		present.CbAdminStats:       h.onStats,
		present.CbAdminSettings:    h.onSettingsMenu,
		present.CbAutoPost:         h.onAutoPostToggle,
		present.CbSetAnnounce:      h.onSetAnnounce,
	} {
		if err := reg.RegisterCallback(key, handler); err != nil {
			logger.TG.LogAttrs(context.Background(), slog.LevelError, "register.callback.failed",
				slog.String("payload", key), slog.String("err", err.Error()))
		}
	}

	return []telegram.Route{
		{Endpoint: tele.OnText, Handler: h.onText(reg)},
		{Endpoint: tele.OnVideo, Handler: h.onVideo},
		{Endpoint: tele.OnPhoto, Handler: h.onPhoto},
		{Endpoint: tele.OnCallback, Handler: h.onCallback(reg)},
	}
}

// onText dispatches plain messages: commands first, then the live wizard
// session, then content code lookup.
func (h *Handlers) onText(reg *telegram.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		ctx := helpers.WithHandler(c, "text")
		h.trackUser(ctx, c)

		if strings.HasPrefix(text, "/") {
			name := strings.SplitN(text, " ", 2)[0]
			name = strings.SplitN(name, "@", 2)[0]
			if _, cmd, ok := reg.LookupCommand(name); ok {
				helpers.WithHandler(c, "command"+name)
				return cmd.Handler(c)
			}
			return c.Send("Unknown command. Send a content code to search.")
		}

		if h.engine.Active(c.Chat().ID) {
			reply, err := h.engine.Handle(ctx, wizardInput(c, wizard.KindText))
			if err != nil {
				logger.LogEvent(ctx, logger.TG, slog.LevelError, "wizard.input_failed",
					slog.String("err", err.Error()))
			}
			if reply.Handled {
				return h.sendReply(ctx, c, reply)
			}
		}

		return h.onCodeLookup(ctx, c, text)
	}
}

func (h *Handlers) onVideo(c tele.Context) error {
	ctx := helpers.WithHandler(c, "video")
	h.trackUser(ctx, c)
	if !h.engine.Active(c.Chat().ID) {
		return nil
	}
	in := wizardInput(c, wizard.KindVideo)
	if v := c.Message().Video; v != nil {
		in.FileID = v.FileID
	}
	reply, err := h.engine.Handle(ctx, in)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "wizard.input_failed",
			slog.String("err", err.Error()))
	}
	if reply.Handled {
		return h.sendReply(ctx, c, reply)
	}
	return nil
}

func (h *Handlers) onPhoto(c tele.Context) error {
	ctx := helpers.WithHandler(c, "photo")
	h.trackUser(ctx, c)
	if !h.engine.Active(c.Chat().ID) {
		return nil
	}
	in := wizardInput(c, wizard.KindPhoto)
	if p := c.Message().Photo; p != nil {
		in.FileID = p.FileID
	}
	reply, err := h.engine.Handle(ctx, in)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "wizard.input_failed",
			slog.String("err", err.Error()))
	}
	if reply.Handled {
		return h.sendReply(ctx, c, reply)
	}
	return nil
}

// onCallback routes inline button presses through the registry.
func (h *Handlers) onCallback(reg *telegram.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		key := callbacks.Key(c)
		handler, ok := reg.GetCallback(key)
		if !ok {
			return reg.CallbackNotFound()(c)
		}
		helpers.WithHandler(c, "cb:"+key)
		return handler(c)
	}
}

// trackUser upserts the sender so broadcasts and stats see every user.
func (h *Handlers) trackUser(ctx context.Context, c tele.Context) {
	sender := c.Sender()
	if sender == nil || sender.IsBot {
		return
	}
	u := models.User{
		ID:        sender.ID,
		FirstName: logger.SanitizeLimit(sender.FirstName, 128),
		Username:  sender.Username,
	}
	if err := h.users.Upsert(ctx, u); err != nil {
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelWarn, "user.upsert_failed",
			slog.String("err", err.Error()))
	}
}

func wizardInput(c tele.Context, kind wizard.InputKind) wizard.Input {
	in := wizard.Input{
		Kind:   kind,
		Text:   c.Text(),
		ChatID: c.Chat().ID,
		UserID: c.Sender().ID,
	}
	if msg := c.Message(); msg != nil {
		in.MessageID = msg.ID
	}
	return in
}

// onWizardCancel abandons the live flow from the inline cancel button.
func (h *Handlers) onWizardCancel(c tele.Context) error {
	reply := h.engine.Cancel(c.Chat().ID)
	_ = c.Respond(&tele.CallbackResponse{})
	return c.Send(reply.Text)
}

// onAdultChoice feeds the yes/no button press into the wizard as text.
func (h *Handlers) onAdultChoice(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adult_choice")
	payload := callbacks.Payload(c)
	in := wizardInput(c, wizard.KindText)
	in.Text = payload
	reply, err := h.engine.Handle(ctx, in)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "wizard.input_failed",
			slog.String("err", err.Error()))
	}
	_ = c.Respond(&tele.CallbackResponse{})
	if reply.Handled {
		return h.sendReply(ctx, c, reply)
	}
	return nil
}

// sendReply renders a wizard reply intent into an actual Telegram message.
func (h *Handlers) sendReply(ctx context.Context, c tele.Context, reply wizard.Reply) error {
	switch reply.Markup {
	case wizard.MarkupCancel:
		return c.Send(reply.Text, present.CancelKeyboard())

	case wizard.MarkupAdultChoice:
		return c.Send(reply.Text, present.AdultChoiceKeyboard())

	case wizard.MarkupSubscribe:
		missing, err := h.gate.Missing(ctx, c.Sender().ID)
		if err != nil {
			return c.Send(reply.Text)
		}
		return c.Send(reply.Text, present.SubscribeKeyboard(missing))

	case wizard.MarkupConfirmBroadcast:
		return c.Send(reply.Text, present.BroadcastConfirmKeyboard())

	case wizard.MarkupEditMenu:
		content, err := h.content.FindByID(ctx, reply.ContentID)
		if err != nil {
			return c.Send(reply.Text)
		}
		return c.Send(reply.Text, present.EditMenu(content))

	case wizard.MarkupAdminRights:
		rec, err := h.admins.Find(ctx, reply.UserID)
		if err != nil {
			return c.Send("Admin record not found.")
		}
		text := reply.Text
		if text == "" {
			text = present.UserCard(models.User{ID: rec.UserID})
			if u, uerr := h.users.Find(ctx, rec.UserID); uerr == nil {
				text = present.UserCard(u)
			}
		}
		return c.Send(text, present.RightsKeyboard(rec))
	}

	if reply.UserID != 0 && reply.Text == "" {
		u, err := h.users.Find(ctx, reply.UserID)
		if err != nil {
			return c.Send("User not found.")
		}
		return c.Send(present.UserCard(u), present.UserKeyboard(u))
	}
	return c.Send(reply.Text)
}
