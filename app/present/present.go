// Package present renders user-facing text and keyboards. It holds no
// state and performs no I/O, so handlers stay thin and testable.
package present

import (
	"fmt"
	"strings"

	"github.com/m3rciful/cinebot/app/models"
)

// Callback uniques shared between keyboards and the handler registry.
const (
	CbGet      = "get"
	CbRate     = "rate"
	CbEpisodes = "eps"
	CbEpisode  = "ep"

	CbSubCheck = "sub_check"

	CbAdminContent   = "adm_content"
	CbAdminChannels  = "adm_channels"
	CbAdminBroadcast = "adm_broadcast"
	CbAdminAdmins    = "adm_admins"
	CbAdminUsers     = "adm_users"
	CbAdminStats     = "adm_stats"
	CbAdminSettings  = "adm_settings"

	CbAddMovie   = "add_movie"
	CbAddSeries  = "add_series"
	CbEditSearch = "edit_search"
	CbEditField  = "edit_field"
	CbEditEps    = "edit_eps"

	CbChannelAdd = "ch_add"
	CbChannelDel = "ch_del"

	CbRightToggle = "adm_right"
	CbAdminDelete = "adm_del"

	CbUserBan   = "usr_ban"
	CbUserUnban = "usr_unban"

	CbBroadcastConfirm = "bc_confirm"
	CbBroadcastCancel  = "bc_cancel"
	CbBroadcastStop    = "bc_stop"

	CbAutoPost    = "set_autopost"
	CbSetAnnounce = "set_announce"

	CbWizardCancel = "wz_cancel"
	CbAdultChoice  = "wz_adult"
)

// episodesPerPage bounds the paging keyboard size.
const episodesPerPage = 10

// Caption renders the content card shown with the poster.
func Caption(c models.Content) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", c.Title)
	if c.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", c.Country)
	}
	if c.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", c.Language)
	}
	if c.RatingCount > 0 {
		fmt.Fprintf(&b, "Rating: %.1f (%d votes)\n", c.Rating(), c.RatingCount)
	}
	if c.Adult {
		b.WriteString("18+\n")
	}
	fmt.Fprintf(&b, "Code: %d", c.Code)
	return b.String()
}

// UserCard renders the admin-facing profile of a user.
func UserCard(u models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User %d\n", u.ID)
	if u.FirstName != "" {
		fmt.Fprintf(&b, "Name: %s\n", u.FirstName)
	}
	if u.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", u.Username)
	}
	if u.BirthYear > 0 {
		fmt.Fprintf(&b, "Birth year: %d\n", u.BirthYear)
	}
	fmt.Fprintf(&b, "Active: %t\nBanned: %t\nJoined: %s", u.Active, u.Banned, u.CreatedAt.Format("2006-01-02"))
	return b.String()
}

// Stats renders the aggregate counters for /stats.
func Stats(totalUsers, activeUsers, contentCount, channelCount int64) string {
	return fmt.Sprintf(
		"Users: %d (%d active)\nContent: %d\nChannels: %d",
		totalUsers, activeUsers, contentCount, channelCount)
}

// BroadcastSummary renders the final report of a finished run.
func BroadcastSummary(delivered, blocked int, stopped bool) string {
	state := "finished"
	if stopped {
		state = "stopped"
	}
	return fmt.Sprintf("Broadcast %s. Delivered: %d, unreachable: %d.", state, delivered, blocked)
}

// RightLabel renders a capability with its on/off state for toggle buttons.
func RightLabel(right models.Right, enabled bool) string {
	mark := "✗"
	if enabled {
		mark = "✓"
	}
	return fmt.Sprintf("%s %s", mark, right)
}

// EpisodePages returns the number of paging screens for a series.
func EpisodePages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + episodesPerPage - 1) / episodesPerPage
}

// EpisodePageBounds returns the half-open episode range of a page, clamped
// to valid values.
func EpisodePageBounds(total, page int) (start, end int) {
	pages := EpisodePages(total)
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start = page * episodesPerPage
	end = start + episodesPerPage
	if end > total {
		end = total
	}
	return start, end
}
