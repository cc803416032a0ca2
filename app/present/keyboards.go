package present

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/core/telegram/keyboard"
)

// ContentKeyboard is attached to the content card: download, rating, and
// episode paging for series.
func ContentKeyboard(c models.Content, episodeCount int) *tele.ReplyMarkup {
	var rows [][]keyboard.InlineBtn

	if c.Kind == models.KindSeries && episodeCount > 0 {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   fmt.Sprintf("Episodes (%d)", episodeCount),
			Unique: CbEpisodes,
			Data:   fmt.Sprintf("%d|0", c.ID),
		}})
	} else {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   "Download",
			Unique: CbGet,
			Data:   strconv.FormatInt(c.ID, 10),
		}})
	}

	stars := make([]keyboard.InlineBtn, 0, 5)
	for i := 1; i <= 5; i++ {
		stars = append(stars, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%d⭐", i),
			Unique: CbRate,
			Data:   fmt.Sprintf("%d|%d", c.ID, i),
		})
	}
	rows = append(rows, stars)
	return keyboard.InlineButtonsRows(rows...)
}

// EpisodesKeyboard renders one page of episode buttons with prev/next
// navigation when more pages exist.
func EpisodesKeyboard(contentID int64, episodes []models.Episode, page int) *tele.ReplyMarkup {
	start, end := EpisodePageBounds(len(episodes), page)

	var flat []keyboard.InlineBtn
	for _, ep := range episodes[start:end] {
		label := fmt.Sprintf("Episode %d", ep.Seq)
		if ep.Name != "" {
			label = fmt.Sprintf("%d. %s", ep.Seq, ep.Name)
		}
		flat = append(flat, keyboard.InlineBtn{
			Text:   label,
			Unique: CbEpisode,
			Data:   fmt.Sprintf("%d|%d", contentID, ep.Seq),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(flat, 2)

	pages := EpisodePages(len(episodes))
	if pages > 1 {
		var nav []keyboard.InlineBtn
		if page > 0 {
			nav = append(nav, keyboard.InlineBtn{
				Text: "«", Unique: CbEpisodes, Data: fmt.Sprintf("%d|%d", contentID, page-1),
			})
		}
		if page < pages-1 {
			nav = append(nav, keyboard.InlineBtn{
				Text: "»", Unique: CbEpisodes, Data: fmt.Sprintf("%d|%d", contentID, page+1),
			})
		}
		navMarkup := keyboard.InlineButtonsRows(nav)
		markup.InlineKeyboard = append(markup.InlineKeyboard, navMarkup.InlineKeyboard...)
	}
	return markup
}

// SubscribeKeyboard links the missing channels and offers a re-check.
func SubscribeKeyboard(missing []models.Channel) *tele.ReplyMarkup {
	var rows [][]keyboard.InlineBtn
	for _, ch := range missing {
		if ch.URL == "" {
			continue
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: ch.Title, URL: ch.URL}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "I subscribed ✓", Unique: CbSubCheck}})
	return keyboard.InlineButtonsRows(rows...)
}

// AdminMenu is the top-level admin panel, filtered to the caller's rights.
func AdminMenu(rights func(models.Right) bool) *tele.ReplyMarkup {
	var rows [][]keyboard.InlineBtn
	add := func(right models.Right, text, unique string) {
		if rights(right) {
			rows = append(rows, []keyboard.InlineBtn{{Text: text, Unique: unique}})
		}
	}
	add(models.RightContent, "Content", CbAdminContent)
	add(models.RightChannels, "Channels", CbAdminChannels)
	add(models.RightBroadcast, "Broadcast", CbAdminBroadcast)
	add(models.RightAdmins, "Admins", CbAdminAdmins)
	add(models.RightAdmins, "Find user", CbAdminUsers)
	add(models.RightStats, "Stats", CbAdminStats)
	add(models.RightAdmins, "Settings", CbAdminSettings)
	return keyboard.InlineButtonsRows(rows...)
}

// ContentMenu offers the content-management actions.
func ContentMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Add movie", Unique: CbAddMovie},
			{Text: "Add series", Unique: CbAddSeries},
		},
		[]keyboard.InlineBtn{{Text: "Edit by code", Unique: CbEditSearch}},
	)
}

// EditMenu offers per-field edits of one content record.
func EditMenu(c models.Content) *tele.ReplyMarkup {
	id := strconv.FormatInt(c.ID, 10)
	rows := [][]keyboard.InlineBtn{
		{
			{Text: "Title", Unique: CbEditField, Data: id + "|title"},
			{Text: "Country", Unique: CbEditField, Data: id + "|country"},
			{Text: "Language", Unique: CbEditField, Data: id + "|language"},
		},
		{
			{Text: "Video", Unique: CbEditField, Data: id + "|video"},
			{Text: "Poster", Unique: CbEditField, Data: id + "|poster"},
			{Text: "18+", Unique: CbEditField, Data: id + "|adult"},
		},
	}
	if c.Kind == models.KindSeries {
		rows = append(rows, []keyboard.InlineBtn{{Text: "Add episodes", Unique: CbEditEps, Data: id}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

// ChannelsMenu lists registered channels with delete buttons plus an add action.
func ChannelsMenu(channels []models.Channel) *tele.ReplyMarkup {
	var rows [][]keyboard.InlineBtn
	for _, ch := range channels {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   "Remove " + ch.Title,
			Unique: CbChannelDel,
			Data:   strconv.FormatInt(ch.ChatID, 10),
		}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "Add channel", Unique: CbChannelAdd}})
	return keyboard.InlineButtonsRows(rows...)
}

// RightsKeyboard renders toggle buttons for every grantable capability of
// one admin record, plus removal.
func RightsKeyboard(rec models.AdminRights) *tele.ReplyMarkup {
	id := strconv.FormatInt(rec.UserID, 10)
	var flat []keyboard.InlineBtn
	for _, right := range models.AllRights {
		flat = append(flat, keyboard.InlineBtn{
			Text:   RightLabel(right, rec.Has(right)),
			Unique: CbRightToggle,
			Data:   fmt.Sprintf("%s|%s", id, right),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(flat, 2)
	del := keyboard.InlineButtonsRows([]keyboard.InlineBtn{{
		Text: "Remove admin", Unique: CbAdminDelete, Data: id,
	}})
	markup.InlineKeyboard = append(markup.InlineKeyboard, del.InlineKeyboard...)
	return markup
}

// UserKeyboard offers ban management on a user card.
func UserKeyboard(u models.User) *tele.ReplyMarkup {
	id := strconv.FormatInt(u.ID, 10)
	if u.Banned {
		return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Unban", Unique: CbUserUnban, Data: id}})
	}
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Ban", Unique: CbUserBan, Data: id}})
}

// BroadcastConfirmKeyboard asks for the final go/no-go.
func BroadcastConfirmKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Send", Unique: CbBroadcastConfirm},
		{Text: "Cancel", Unique: CbBroadcastCancel},
	})
}

// BroadcastStopKeyboard is attached to the progress message of a running job.
func BroadcastStopKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Stop", Unique: CbBroadcastStop}})
}

// CancelKeyboard is attached to wizard prompts so the flow can be
// abandoned without typing /cancel.
func CancelKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Cancel", Unique: CbWizardCancel}})
}

// AdultChoiceKeyboard answers the 18+ question with buttons.
func AdultChoiceKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Yes, 18+", Unique: CbAdultChoice, Data: "yes"},
			{Text: "No", Unique: CbAdultChoice, Data: "no"},
		},
		[]keyboard.InlineBtn{{Text: "Cancel", Unique: CbWizardCancel}},
	)
}

// SettingsMenu shows the global policy toggles.
func SettingsMenu(s models.Settings) *tele.ReplyMarkup {
	label := "Auto-post: off"
	if s.AutoPost {
		label = "Auto-post: on"
	}
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: label, Unique: CbAutoPost}},
		[]keyboard.InlineBtn{{Text: "Set announce channel", Unique: CbSetAnnounce}},
	)
}
