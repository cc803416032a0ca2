package handlers

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/broadcast"
	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/present"
	"github.com/m3rciful/cinebot/app/session"
	"github.com/m3rciful/cinebot/core/logger"
	"github.com/m3rciful/cinebot/core/telegram/helpers"
)

func (h *Handlers) onBroadcastStart(c tele.Context) error {
	ctx := helpers.WithHandler(c, "adm_broadcast")
	if !h.requireRight(ctx, c, models.RightBroadcast) {
		return nil
	}
	if h.broadcaster.Status().Active {
		return c.Respond(&tele.CallbackResponse{Text: "A broadcast is already running"})
	}
	reply := h.engine.Start(ctx, c.Chat().ID, c.Sender().ID, session.ActionBroadcast, session.Draft{})
	return h.sendReply(ctx, c, reply)
}

func (h *Handlers) onBroadcastConfirm(c tele.Context) error {
	ctx := helpers.WithHandler(c, "bc_confirm")
	if !h.requireRight(ctx, c, models.RightBroadcast) {
		return nil
	}
	fromChatID, messageID, ok := h.engine.PendingBroadcast(c.Chat().ID)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "Nothing to send, start over"})
	}
	h.engine.Clear(c.Chat().ID)

	// Detach from the update context: the run outlives this callback.
	runCtx := logger.WithRID(context.Background(), logger.RIDFrom(ctx))

	runID, done, err := h.broadcaster.Start(runCtx, fromChatID, messageID)
	if err != nil {
		if errors.Is(err, broadcast.ErrActive) {
			return c.Respond(&tele.CallbackResponse{Text: "A broadcast is already running"})
		}
		return c.Respond(&tele.CallbackResponse{Text: "Could not start, try again"})
	}
	logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelInfo, "broadcast.confirmed",
		slog.String("run_id", runID))

	go func() {
		summary := <-done
		_, serr := c.Bot().Send(c.Chat(), present.BroadcastSummary(summary.Delivered, summary.Blocked, summary.Stopped))
		if serr != nil {
			logger.LogEvent(runCtx, logger.SVCBroadcast, slog.LevelWarn, "broadcast.report_failed",
				slog.String("run_id", runID), slog.String("err", serr.Error()))
		}
	}()

	_ = c.Respond(&tele.CallbackResponse{})
	return c.Send("Broadcast started.", present.BroadcastStopKeyboard())
}

func (h *Handlers) onBroadcastCancel(c tele.Context) error {
	ctx := helpers.WithHandler(c, "bc_cancel")
	if !h.requireRight(ctx, c, models.RightBroadcast) {
		return nil
	}
	h.engine.Clear(c.Chat().ID)
	_ = c.Respond(&tele.CallbackResponse{})
	return c.Send("Broadcast cancelled.")
}

func (h *Handlers) onBroadcastStop(c tele.Context) error {
	ctx := helpers.WithHandler(c, "bc_stop")
	if !h.requireRight(ctx, c, models.RightBroadcast) {
		return nil
	}
	if !h.broadcaster.RequestStop() {
		return c.Respond(&tele.CallbackResponse{Text: "No broadcast is running"})
	}
	logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelInfo, "broadcast.stop_requested")
	return c.Respond(&tele.CallbackResponse{Text: "Stopping after the current send"})
}
