package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/present"
	"github.com/m3rciful/cinebot/app/repository"
	"github.com/m3rciful/cinebot/app/session"
	"github.com/m3rciful/cinebot/core/logger"
	"github.com/m3rciful/cinebot/core/telegram/callbacks"
	"github.com/m3rciful/cinebot/core/telegram/helpers"
)

func (h *Handlers) onStart(c tele.Context) error {
	ctx := helpers.WithHandler(c, "start")
	h.trackUser(ctx, c)

	if blocked, err := h.requireSubscription(ctx, c, session.Draft{}); err != nil || blocked {
		return err
	}

	u, err := h.users.Find(ctx, c.Sender().ID)
	if err == nil && u.BirthYear == 0 {
		reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionAskBirthYear, session.Draft{})
		return c.Send(reply.Text)
	}
	return c.Send("Welcome back! Send a content code to search.")
}

func (h *Handlers) onCancel(c tele.Context) error {
	reply := h.engine.Cancel(c.Chat().ID)
	return c.Send(reply.Text)
}

// requireSubscription starts the waiting flow when channels are missing.
// It reports true when the user was blocked from proceeding. The draft is
// stored with the session so the interrupted action can resume after the
// subscription check passes.
func (h *Handlers) requireSubscription(ctx context.Context, c tele.Context, draft session.Draft) (bool, error) {
	missing, err := h.gate.Missing(ctx, c.Sender().ID)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCGate, slog.LevelError, "gate.check_failed",
			slog.String("err", err.Error()))
		// Fail open: a storage error must not lock everyone out.
		return false, nil
	}
	if len(missing) == 0 {
		return false, nil
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionWaitSubscription, draft)
	return true, c.Send(reply.Text, present.SubscribeKeyboard(missing))
}

func (h *Handlers) onSubscriptionCheck(c tele.Context) error {
	ctx := helpers.WithHandler(c, "sub_check")
	missing, err := h.gate.Missing(ctx, c.Sender().ID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	if len(missing) > 0 {
		return c.Respond(&tele.CallbackResponse{Text: "Not all channels are joined yet"})
	}
	code, hadCode := h.engine.PendingCode(c.Chat().ID)
	h.engine.Clear(c.Chat().ID)
	_ = c.Respond(&tele.CallbackResponse{Text: "Thank you!"})
	if hadCode {
		// Resume the lookup the gate interrupted.
		return h.sendContentCard(ctx, c, code)
	}
	return c.Send("You're all set. Send a content code to search.")
}

// onCodeLookup resolves a typed numeric code into a content card.
func (h *Handlers) onCodeLookup(ctx context.Context, c tele.Context, text string) error {
	code, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || code <= 0 {
		return c.Send("Send a numeric content code to search.")
	}

	if blocked, err := h.requireSubscription(ctx, c, session.Draft{Code: code}); err != nil || blocked {
		return err
	}
	return h.sendContentCard(ctx, c, code)
}

// sendContentCard looks the code up and sends the poster card.
func (h *Handlers) sendContentCard(ctx context.Context, c tele.Context, code int64) error {
	content, err := h.content.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Send("Nothing found under that code.")
		}
		return err
	}

	episodeCount := 0
	if content.Kind == models.KindSeries {
		if n, cerr := h.content.CountEpisodes(ctx, content.ID); cerr == nil {
			episodeCount = n
		}
	}

	logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "content.viewed",
		slog.Int64("content_id", content.ID), slog.Int64("code", content.Code))

	photo := &tele.Photo{
		File:    tele.File{FileID: content.PosterID},
		Caption: present.Caption(content),
	}
	return c.Send(photo, present.ContentKeyboard(content, episodeCount))
}

// onDownload sends the main video behind the per-user download cooldown.
func (h *Handlers) onDownload(c tele.Context) error {
	ctx := helpers.WithHandler(c, "get")
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	return h.deliver(ctx, c, id, 0)
}

// onEpisodeDownload sends a single episode of a series.
func (h *Handlers) onEpisodeDownload(c tele.Context) error {
	ctx := helpers.WithHandler(c, "ep")
	id, seq, err := callbacks.PayloadTwoInt64(c, "|")
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	return h.deliver(ctx, c, id, int(seq))
}

// deliver enforces the cooldown, the gate, and the adult policy, then
// sends the requested file. seq 0 means the main video.
func (h *Handlers) deliver(ctx context.Context, c tele.Context, contentID int64, seq int) error {
	userID := c.Sender().ID

	if h.downloads != nil && !h.downloads.Allow(userID) {
		wait := int(h.downloads.Window() / time.Second)
		return c.Respond(&tele.CallbackResponse{
			Text: "Please wait " + strconv.Itoa(wait) + "s between downloads",
		})
	}

	missing, err := h.gate.Missing(ctx, userID)
	if err == nil && len(missing) > 0 {
		_ = c.Respond(&tele.CallbackResponse{Text: "Subscribe to the channels first"})
		return c.Send("Subscribe to the required channels to download.", present.SubscribeKeyboard(missing))
	}

	content, err := h.content.FindByID(ctx, contentID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Content not found"})
	}

	if content.Adult {
		u, uerr := h.users.Find(ctx, userID)
		if uerr != nil || !u.IsAdult(time.Now()) {
			return c.Respond(&tele.CallbackResponse{Text: "This content is 18+ only"})
		}
	}

	fileID := content.FileID
	caption := content.Title
	if seq > 0 {
		ep, eerr := h.content.Episode(ctx, contentID, seq)
		if eerr != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Episode not found"})
		}
		fileID = ep.FileID
		caption = content.Title + " - Episode " + strconv.Itoa(ep.Seq)
	}

	if err := c.Send(&tele.Video{File: tele.File{FileID: fileID}, Caption: caption}); err != nil {
		return err
	}
	if err := h.content.IncrementViews(ctx, contentID); err != nil {
		logger.LogEvent(ctx, logger.SVCContent, slog.LevelWarn, "views.increment_failed",
			slog.Int64("content_id", contentID), slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "content.delivered",
		slog.Int64("content_id", contentID), slog.Int("seq", seq))
	return c.Respond(&tele.CallbackResponse{})
}

// onEpisodesPage renders one page of the episodes keyboard.
func (h *Handlers) onEpisodesPage(c tele.Context) error {
	ctx := helpers.WithHandler(c, "eps")
	id, page, err := callbacks.PayloadTwoInt64(c, "|")
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	episodes, err := h.content.Episodes(ctx, id)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	if len(episodes) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "No episodes yet"})
	}
	markup := present.EpisodesKeyboard(id, episodes, int(page))
	if err := c.Edit(markup); err != nil {
		// The card is a photo message; fall back to a fresh message.
		return c.Send("Pick an episode:", markup)
	}
	return c.Respond(&tele.CallbackResponse{})
}

// onRate records a star vote.
func (h *Handlers) onRate(c tele.Context) error {
	ctx := helpers.WithHandler(c, "rate")
	id, stars, err := callbacks.PayloadTwoInt64(c, "|")
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Broken button"})
	}
	if err := h.content.AddRating(ctx, id, int(stars)); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Try again later"})
	}
	text := "Thanks for rating!"
	if content, ferr := h.content.FindByID(ctx, id); ferr == nil {
		text = fmt.Sprintf("Thanks! Current rating: %.1f", content.Rating())
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
