// Package models defines the persisted entities of the bot.
package models

import "time"

// Right is a named capability an admin record may grant.
type Right string

const (
	// RightSearch is the baseline capability every admin record starts with.
	RightSearch Right = "search"
	// RightContent allows adding and editing content records.
	RightContent Right = "content"
	// RightChannels allows managing required channels.
	RightChannels Right = "channels"
	// RightBroadcast allows relaying messages to the user base.
	RightBroadcast Right = "broadcast"
	// RightAdmins allows managing other admin records.
	RightAdmins Right = "admins"
	// RightStats allows viewing aggregate statistics.
	RightStats Right = "stats"
)

// AllRights lists every grantable capability in display order.
var AllRights = []Right{
	RightSearch,
	RightContent,
	RightChannels,
	RightBroadcast,
	RightAdmins,
	RightStats,
}

// AdminRights is the persisted permission record for a single admin.
type AdminRights struct {
	UserID    int64     `db:"user_id"`
	Search    bool      `db:"can_search"`
	Content   bool      `db:"can_content"`
	Channels  bool      `db:"can_channels"`
	Broadcast bool      `db:"can_broadcast"`
	Admins    bool      `db:"can_admins"`
	Stats     bool      `db:"can_stats"`
	CreatedAt time.Time `db:"created_at"`
}

// Has reports whether the record grants the given capability.
func (r AdminRights) Has(right Right) bool {
	switch right {
	case RightSearch:
		return r.Search
	case RightContent:
		return r.Content
	case RightChannels:
		return r.Channels
	case RightBroadcast:
		return r.Broadcast
	case RightAdmins:
		return r.Admins
	case RightStats:
		return r.Stats
	}
	return false
}

// BaselineRights returns the default record for a freshly added admin:
// everything off except the baseline search capability.
func BaselineRights(userID int64) AdminRights {
	return AdminRights{UserID: userID, Search: true}
}

// User is a bot user identified by their Telegram id.
type User struct {
	ID        int64     `db:"id"`
	FirstName string    `db:"first_name"`
	Username  string    `db:"username"`
	BirthYear int       `db:"birth_year"`
	Active    bool      `db:"active"`
	Banned    bool      `db:"banned"`
	CreatedAt time.Time `db:"created_at"`
}

// IsAdult reports whether the user has confirmed an age of 18 or more.
// Users without a recorded birth year are not considered adult.
func (u User) IsAdult(now time.Time) bool {
	if u.BirthYear <= 0 {
		return false
	}
	return now.Year()-u.BirthYear >= 18
}

// ContentKind distinguishes single-file movies from multi-episode series.
type ContentKind string

const (
	// KindMovie is a single-video content record.
	KindMovie ContentKind = "movie"
	// KindSeries is a multi-episode content record.
	KindSeries ContentKind = "series"
)

// Content is a distributable media record addressed by a numeric code.
type Content struct {
	ID          int64       `db:"id"`
	Code        int64       `db:"code"`
	Kind        ContentKind `db:"kind"`
	FileID      string      `db:"file_id"`
	PosterID    string      `db:"poster_id"`
	Title       string      `db:"title"`
	Country     string      `db:"country"`
	Language    string      `db:"language"`
	Adult       bool        `db:"adult"`
	RatingSum   int64       `db:"rating_sum"`
	RatingCount int64       `db:"rating_count"`
	Views       int64       `db:"views"`
	CreatedAt   time.Time   `db:"created_at"`
}

// Rating returns the average star rating, or 0 when nobody voted yet.
func (c Content) Rating() float64 {
	if c.RatingCount == 0 {
		return 0
	}
	return float64(c.RatingSum) / float64(c.RatingCount)
}

// Episode is a numbered part of a series.
type Episode struct {
	ID        int64  `db:"id"`
	ContentID int64  `db:"content_id"`
	Seq       int    `db:"seq"`
	FileID    string `db:"file_id"`
	Name      string `db:"name"`
}

// Channel is a required-subscription channel registered by an operator.
type Channel struct {
	ChatID    int64     `db:"chat_id"`
	Title     string    `db:"title"`
	URL       string    `db:"url"`
	CreatedAt time.Time `db:"created_at"`
}

// Settings is the singleton global policy row.
type Settings struct {
	ID             int   `db:"id"`
	AutoPost       bool  `db:"auto_post"`
	AnnounceChatID int64 `db:"announce_chat_id"`
}
