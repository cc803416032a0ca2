// Package session keeps per-chat interaction state in process memory.
// Every multi-step flow the bot runs (wizards, confirmations, forced
// onboarding) is represented by exactly one Session per chat.
package session

import (
	"sync"
	"time"
)

// Action names the flow a chat is currently inside.
type Action string

const (
	ActionNone             Action = ""
	ActionAskBirthYear     Action = "ask_birth_year"
	ActionWaitSubscription Action = "wait_subscription"
	ActionAddContent       Action = "add_content"
	ActionAddEpisode       Action = "add_episode"
	ActionAddChannel       Action = "add_channel"
	ActionEditSearch       Action = "edit_search"
	ActionEditField        Action = "edit_field"
	ActionSearchUser       Action = "search_user"
	ActionManageAdmin      Action = "manage_admin"
	ActionBroadcast        Action = "broadcast"
	ActionSetAnnounce      Action = "set_announce"
)

// Step names the position inside a flow.
type Step string

const (
	StepNone     Step = ""
	StepVideo    Step = "video"
	StepPoster   Step = "poster"
	StepTitle    Step = "title"
	StepCountry  Step = "country"
	StepLanguage Step = "language"
	StepAdult    Step = "adult"
	StepCode     Step = "code"
	StepName     Step = "name"
	StepURL      Step = "url"
	StepQuery    Step = "query"
	StepValue    Step = "value"
	StepMessage  Step = "message"
	StepConfirm  Step = "confirm"
)

// Draft accumulates the answers collected so far by a wizard flow.
// Fields are meaningful per flow; unused ones stay zero.
type Draft struct {
	Kind      string
	FileID    string
	PosterID  string
	Title     string
	Country   string
	Language  string
	Adult     bool
	Code      int64
	ContentID int64
	Seq       int
	Field     string

	// broadcast capture
	FromChatID int64
	MessageID  int

	TargetUserID int64
}

// Session is the full interaction state of one chat.
type Session struct {
	Action    Action
	Step      Step
	Draft     Draft
	UpdatedAt time.Time
}

// Store holds sessions keyed by chat id with a sliding expiry.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	ttl      time.Duration

	now func() time.Time
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the live session for the chat. An expired session is removed
// on access and reported as absent.
func (s *Store) Get(chatID int64) (Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[chatID]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if s.expired(sess) {
		s.Delete(chatID)
		return Session{}, false
	}
	return sess, true
}

// Set stores the session for the chat, refreshing its expiry.
func (s *Store) Set(chatID int64, sess Session) {
	sess.UpdatedAt = s.now()
	s.mu.Lock()
	s.sessions[chatID] = sess
	s.mu.Unlock()
}

// Expire removes the chat's session when it has timed out and reports
// whether it did, letting callers tell "expired" apart from "absent".
func (s *Store) Expire(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok || !s.expired(sess) {
		return false
	}
	delete(s.sessions, chatID)
	return true
}

// Delete removes the chat's session if any.
func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
}

// Len reports the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops all expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(sess Session) bool {
	return s.now().Sub(sess.UpdatedAt) > s.ttl
}
