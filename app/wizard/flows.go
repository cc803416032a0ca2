package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/repository"
	"github.com/m3rciful/cinebot/app/session"
	"github.com/m3rciful/cinebot/core/logger"
)

func (e *Engine) handleBirthYear(ctx context.Context, in Input) (Reply, error) {
	year, err := strconv.Atoi(strings.TrimSpace(in.Text))
	current := e.now().Year()
	if err != nil || year < 1900 || year > current {
		return Reply{Handled: true, Text: fmt.Sprintf("Please send a valid birth year between 1900 and %d.", current)}, nil
	}
	if err := e.users.SetBirthYear(ctx, in.UserID, year); err != nil {
		return Reply{}, err
	}
	e.sessions.Delete(in.ChatID)
	return Reply{Handled: true, Text: "Thanks! Send a content code to get started."}, nil
}

func (e *Engine) handleAddContent(ctx context.Context, in Input, sess session.Session) (Reply, error) {
	switch sess.Step {
	case session.StepVideo:
		if in.Kind != KindVideo {
			return Reply{Handled: true, Text: "Send the video file.", Markup: MarkupCancel}, nil
		}
		sess.Draft.FileID = in.FileID
		e.advance(in.ChatID, sess, session.StepPoster)
		return Reply{Handled: true, Text: "Now send the poster photo.", Markup: MarkupCancel}, nil

	case session.StepPoster:
		if in.Kind != KindPhoto {
			return Reply{Handled: true, Text: "Send the poster as a photo.", Markup: MarkupCancel}, nil
		}
		sess.Draft.PosterID = in.FileID
		e.advance(in.ChatID, sess, session.StepTitle)
		return Reply{Handled: true, Text: "Send the title.", Markup: MarkupCancel}, nil

	case session.StepTitle:
		title := strings.TrimSpace(in.Text)
		if in.Kind != KindText || title == "" {
			return Reply{Handled: true, Text: "Send the title as text.", Markup: MarkupCancel}, nil
		}
		sess.Draft.Title = logger.SanitizeLimit(title, 256)
		e.advance(in.ChatID, sess, session.StepCountry)
		return Reply{Handled: true, Text: "Send the country.", Markup: MarkupCancel}, nil

	case session.StepCountry:
		country := strings.TrimSpace(in.Text)
		if in.Kind != KindText || country == "" {
			return Reply{Handled: true, Text: "Send the country as text.", Markup: MarkupCancel}, nil
		}
		sess.Draft.Country = logger.SanitizeLimit(country, 128)
		e.advance(in.ChatID, sess, session.StepLanguage)
		return Reply{Handled: true, Text: "Send the language.", Markup: MarkupCancel}, nil

	case session.StepLanguage:
		lang := strings.TrimSpace(in.Text)
		if in.Kind != KindText || lang == "" {
			return Reply{Handled: true, Text: "Send the language as text.", Markup: MarkupCancel}, nil
		}
		sess.Draft.Language = logger.SanitizeLimit(lang, 128)
		e.advance(in.ChatID, sess, session.StepAdult)
		return Reply{Handled: true, Text: "Is this content 18+? Reply yes or no.", Markup: MarkupAdultChoice}, nil

	case session.StepAdult:
		adult, ok := parseYesNo(in.Text)
		if in.Kind != KindText || !ok {
			return Reply{Handled: true, Text: "Reply yes or no.", Markup: MarkupAdultChoice}, nil
		}
		sess.Draft.Adult = adult
		e.advance(in.ChatID, sess, session.StepCode)
		return Reply{Handled: true, Text: "Send the numeric code users will type to find it.", Markup: MarkupCancel}, nil

	case session.StepCode:
		code, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
		if err != nil || code <= 0 {
			return Reply{Handled: true, Text: "The code must be a positive number.", Markup: MarkupCancel}, nil
		}
		c := models.Content{
			Code:     code,
			Kind:     models.ContentKind(sess.Draft.Kind),
			FileID:   sess.Draft.FileID,
			PosterID: sess.Draft.PosterID,
			Title:    sess.Draft.Title,
			Country:  sess.Draft.Country,
			Language: sess.Draft.Language,
			Adult:    sess.Draft.Adult,
		}
		if err := e.content.Create(ctx, &c); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return Reply{Handled: true, Text: "This code is already taken, choose another one.", Markup: MarkupCancel}, nil
			}
			return Reply{}, err
		}
		e.sessions.Delete(in.ChatID)
		e.autoPost(ctx, c)
		logger.LogEvent(ctx, logger.SVCWizard, slog.LevelInfo, "content.created",
			slog.Int64("content_id", c.ID), slog.Int64("code", c.Code))
		text := fmt.Sprintf("Done! %q is saved under code %d.", c.Title, c.Code)
		if c.Kind == models.KindSeries {
			text += " Use the edit menu to add episodes."
		}
		return Reply{Handled: true, Text: text, ContentID: c.ID}, nil
	}
	return Reply{Handled: true, Text: replyInternalError}, nil
}

// autoPost announces new content when the policy is enabled. Failures are
// logged and never surfaced to the admin who created the record.
func (e *Engine) autoPost(ctx context.Context, c models.Content) {
	if e.announce == nil {
		return
	}
	settings, err := e.settings.Get(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCWizard, slog.LevelWarn, "autopost.settings_failed",
			slog.String("err", err.Error()))
		return
	}
	if !settings.AutoPost || settings.AnnounceChatID == 0 {
		return
	}
	if err := e.announce.Announce(ctx, settings.AnnounceChatID, c); err != nil {
		logger.LogEvent(ctx, logger.SVCWizard, slog.LevelWarn, "autopost.failed",
			slog.Int64("content_id", c.ID), slog.String("err", err.Error()))
	}
}

func (e *Engine) handleAddEpisode(ctx context.Context, in Input, sess session.Session) (Reply, error) {
	switch sess.Step {
	case session.StepVideo:
		if in.Kind != KindVideo {
			return Reply{Handled: true, Text: "Send the episode video.", Markup: MarkupCancel}, nil
		}
		sess.Draft.FileID = in.FileID
		e.advance(in.ChatID, sess, session.StepName)
		return Reply{Handled: true, Text: "Send the episode name, or \"-\" to skip.", Markup: MarkupCancel}, nil

	case session.StepName:
		if in.Kind != KindText {
			return Reply{Handled: true, Text: "Send the episode name as text, or \"-\" to skip.", Markup: MarkupCancel}, nil
		}
		name := strings.TrimSpace(in.Text)
		if name == "-" {
			name = ""
		}
		seq, err := e.appendEpisode(ctx, sess.Draft.ContentID, sess.Draft.FileID, logger.SanitizeLimit(name, 256))
		if err != nil {
			return Reply{}, err
		}
		// Stay in the flow so the admin can keep sending episodes.
		sess.Draft.FileID = ""
		e.advance(in.ChatID, sess, session.StepVideo)
		return Reply{
			Handled:   true,
			Text:      fmt.Sprintf("Episode %d added. Send the next episode, or /cancel to finish.", seq),
			Markup:    MarkupCancel,
			ContentID: sess.Draft.ContentID,
		}, nil
	}
	return Reply{Handled: true, Text: replyInternalError}, nil
}

// appendEpisode assigns the next sequence number and inserts the row.
// Concurrent appends to the same series may race on the number; the unique
// index catches that and we recompute once.
func (e *Engine) appendEpisode(ctx context.Context, contentID int64, fileID, name string) (int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		n, err := e.content.CountEpisodes(ctx, contentID)
		if err != nil {
			return 0, err
		}
		ep := models.Episode{ContentID: contentID, Seq: n + 1, FileID: fileID, Name: name}
		err = e.content.AddEpisode(ctx, &ep)
		if err == nil {
			return ep.Seq, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("append episode to %d: sequence contention", contentID)
}

func (e *Engine) handleAddChannel(ctx context.Context, in Input, sess session.Session) (Reply, error) {
	switch sess.Step {
	case session.StepName:
		name := strings.TrimSpace(in.Text)
		if in.Kind != KindText || name == "" {
			return Reply{Handled: true, Text: "Send the display name as text.", Markup: MarkupCancel}, nil
		}
		sess.Draft.Title = logger.SanitizeLimit(name, 128)
		e.advance(in.ChatID, sess, session.StepURL)
		return Reply{Handled: true, Text: "Now send the channel: @username, t.me link, or chat id.", Markup: MarkupCancel}, nil

	case session.StepURL:
		if in.Kind != KindText || strings.TrimSpace(in.Text) == "" {
			return Reply{Handled: true, Text: "Send the channel as @username, t.me link, or chat id.", Markup: MarkupCancel}, nil
		}
		ch, err := e.resolver.Resolve(ctx, strings.TrimSpace(in.Text))
		if err != nil {
			return Reply{Handled: true, Text: "Could not resolve that channel. Make sure the bot is added to it and try again.", Markup: MarkupCancel}, nil
		}
		if sess.Draft.Title != "" {
			ch.Title = sess.Draft.Title
		}
		if err := e.channels.Upsert(ctx, ch); err != nil {
			return Reply{}, err
		}
		e.sessions.Delete(in.ChatID)
		logger.LogEvent(ctx, logger.SVCWizard, slog.LevelInfo, "channel.registered",
			slog.Int64("channel_id", ch.ChatID))
		return Reply{Handled: true, Text: fmt.Sprintf("Channel %q registered.", ch.Title)}, nil
	}
	return Reply{Handled: true, Text: replyInternalError}, nil
}

func (e *Engine) handleEditSearch(ctx context.Context, in Input) (Reply, error) {
	code, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
	if in.Kind != KindText || err != nil || code <= 0 {
		return Reply{Handled: true, Text: "Send the numeric code of the content to edit.", Markup: MarkupCancel}, nil
	}
	c, err := e.content.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Reply{Handled: true, Text: "Nothing found under that code, try another.", Markup: MarkupCancel}, nil
		}
		return Reply{}, err
	}
	e.sessions.Delete(in.ChatID)
	return Reply{Handled: true, Text: fmt.Sprintf("Editing %q (code %d).", c.Title, c.Code), Markup: MarkupEditMenu, ContentID: c.ID}, nil
}

func (e *Engine) handleEditField(ctx context.Context, in Input, sess session.Session) (Reply, error) {
	c, err := e.content.FindByID(ctx, sess.Draft.ContentID)
	if err != nil {
		return Reply{}, err
	}
	switch sess.Draft.Field {
	case "video":
		if in.Kind != KindVideo {
			return Reply{Handled: true, Text: "Send the new video file.", Markup: MarkupCancel}, nil
		}
		c.FileID = in.FileID
	case "poster":
		if in.Kind != KindPhoto {
			return Reply{Handled: true, Text: "Send the new poster photo.", Markup: MarkupCancel}, nil
		}
		c.PosterID = in.FileID
	case "adult":
		adult, ok := parseYesNo(in.Text)
		if in.Kind != KindText || !ok {
			return Reply{Handled: true, Text: "Reply yes or no.", Markup: MarkupAdultChoice}, nil
		}
		c.Adult = adult
	case "title", "country", "language":
		value := strings.TrimSpace(in.Text)
		if in.Kind != KindText || value == "" {
			return Reply{Handled: true, Text: "Send the new value as text.", Markup: MarkupCancel}, nil
		}
		value = logger.SanitizeLimit(value, 256)
		switch sess.Draft.Field {
		case "title":
			c.Title = value
		case "country":
			c.Country = value
		case "language":
			c.Language = value
		}
	default:
		e.sessions.Delete(in.ChatID)
		return Reply{Handled: true, Text: replyInternalError}, nil
	}
	if err := e.content.Update(ctx, c); err != nil {
		return Reply{}, err
	}
	e.sessions.Delete(in.ChatID)
	logger.LogEvent(ctx, logger.SVCWizard, slog.LevelInfo, "content.updated",
		slog.Int64("content_id", c.ID), slog.String("field", sess.Draft.Field))
	return Reply{Handled: true, Text: "Updated.", Markup: MarkupEditMenu, ContentID: c.ID}, nil
}

func (e *Engine) handleSearchUser(ctx context.Context, in Input) (Reply, error) {
	query := strings.TrimSpace(in.Text)
	if in.Kind != KindText || query == "" {
		return Reply{Handled: true, Text: "Send the user id or @username.", Markup: MarkupCancel}, nil
	}
	var u models.User
	var err error
	if id, perr := strconv.ParseInt(query, 10, 64); perr == nil {
		u, err = e.users.Find(ctx, id)
	} else {
		u, err = e.users.FindByUsername(ctx, strings.TrimPrefix(query, "@"))
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Reply{Handled: true, Text: "No such user, try another id or username.", Markup: MarkupCancel}, nil
		}
		return Reply{}, err
	}
	e.sessions.Delete(in.ChatID)
	return Reply{Handled: true, UserID: u.ID}, nil
}

func (e *Engine) handleManageAdmin(ctx context.Context, in Input) (Reply, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
	if in.Kind != KindText || err != nil || id <= 0 {
		return Reply{Handled: true, Text: "Send a numeric user id.", Markup: MarkupCancel}, nil
	}
	if id == e.access.OwnerID() {
		return Reply{Handled: true, Text: "The owner's rights cannot be changed.", Markup: MarkupCancel}, nil
	}
	if _, err := e.admins.Ensure(ctx, id); err != nil {
		return Reply{}, err
	}
	e.access.Invalidate(id)
	e.sessions.Delete(in.ChatID)
	logger.LogEvent(ctx, logger.SVCWizard, slog.LevelInfo, "admin.ensured", slog.Int64("target_id", id))
	return Reply{Handled: true, Markup: MarkupAdminRights, UserID: id}, nil
}

func (e *Engine) handleSetAnnounce(ctx context.Context, in Input) (Reply, error) {
	if in.Kind != KindText || strings.TrimSpace(in.Text) == "" {
		return Reply{Handled: true, Text: "Send the channel as @username, t.me link, or chat id.", Markup: MarkupCancel}, nil
	}
	ch, err := e.resolver.Resolve(ctx, strings.TrimSpace(in.Text))
	if err != nil {
		return Reply{Handled: true, Text: "Could not resolve that channel. Make sure the bot is added to it and try again.", Markup: MarkupCancel}, nil
	}
	if err := e.settings.SetAnnounceChat(ctx, ch.ChatID); err != nil {
		return Reply{}, err
	}
	e.sessions.Delete(in.ChatID)
	return Reply{Handled: true, Text: fmt.Sprintf("Announcements will be posted to %q.", ch.Title)}, nil
}

func (e *Engine) handleBroadcastCapture(in Input, sess session.Session) Reply {
	if sess.Step == session.StepConfirm {
		return Reply{Handled: true, Text: "Use the buttons to confirm or cancel the broadcast.", Markup: MarkupConfirmBroadcast}
	}
	sess.Draft.FromChatID = in.ChatID
	sess.Draft.MessageID = in.MessageID
	e.advance(in.ChatID, sess, session.StepConfirm)
	return Reply{Handled: true, Text: "Got it. Send this message to every active user?", Markup: MarkupConfirmBroadcast}
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "18+":
		return true, true
	case "no", "n", "all":
		return false, true
	}
	return false, false
}
