// Package wizard runs the multi-step dialog flows of the bot. The engine is
// transport-free: it consumes normalized inputs and returns reply intents,
// and the Telegram layer decides how to render them.
package wizard

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/session"
	"github.com/m3rciful/cinebot/core/logger"
)

// InputKind classifies the incoming message for step validation.
type InputKind int

const (
	KindText InputKind = iota
	KindVideo
	KindPhoto
	KindOther
)

// Input is a normalized incoming message.
type Input struct {
	Kind      InputKind
	Text      string
	FileID    string
	ChatID    int64
	MessageID int
	UserID    int64
}

// Markup hints which keyboard the transport should attach to a reply.
type Markup int

const (
	MarkupNone Markup = iota
	MarkupCancel
	MarkupAdultChoice
	MarkupConfirmBroadcast
	MarkupSubscribe
	MarkupEditMenu
	MarkupAdminRights
)

// Reply is what the engine wants sent back to the chat.
type Reply struct {
	Handled bool
	Text    string
	Markup  Markup

	// ContentID and UserID carry the subject of menu-opening replies.
	ContentID int64
	UserID    int64
}

// ContentStore is the slice of the content repository the flows need.
type ContentStore interface {
	Create(ctx context.Context, c *models.Content) error
	FindByCode(ctx context.Context, code int64) (models.Content, error)
	FindByID(ctx context.Context, id int64) (models.Content, error)
	Update(ctx context.Context, c models.Content) error
	CountEpisodes(ctx context.Context, contentID int64) (int, error)
	AddEpisode(ctx context.Context, ep *models.Episode) error
}

// ChannelStore registers required-subscription channels.
type ChannelStore interface {
	Upsert(ctx context.Context, ch models.Channel) error
}

// UserStore is the slice of the users repository the flows need.
type UserStore interface {
	Find(ctx context.Context, id int64) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	SetBirthYear(ctx context.Context, id int64, year int) error
}

// AdminStore creates baseline admin records.
type AdminStore interface {
	Ensure(ctx context.Context, userID int64) (models.AdminRights, error)
}

// SettingsStore reads and amends the global policy row.
type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	SetAnnounceChat(ctx context.Context, chatID int64) error
}

// Access answers capability checks and owns the owner id.
type Access interface {
	HasRight(ctx context.Context, userID int64, right models.Right) bool
	Invalidate(userID int64)
	OwnerID() int64
}

// ChannelResolver turns a user-supplied channel reference (@username,
// t.me link, or numeric id) into a concrete channel.
type ChannelResolver interface {
	Resolve(ctx context.Context, ref string) (models.Channel, error)
}

// Announcer posts a new-content card to the announcement channel.
type Announcer interface {
	Announce(ctx context.Context, chatID int64, c models.Content) error
}

// Engine drives every wizard flow over the shared session store.
type Engine struct {
	sessions *session.Store
	content  ContentStore
	channels ChannelStore
	users    UserStore
	admins   AdminStore
	settings SettingsStore
	access   Access
	resolver ChannelResolver
	announce Announcer

	now func() time.Time
}

// New creates the engine. announce may be nil when auto-posting is not wired.
func New(
	sessions *session.Store,
	content ContentStore,
	channels ChannelStore,
	users UserStore,
	admins AdminStore,
	settings SettingsStore,
	access Access,
	resolver ChannelResolver,
	announce Announcer,
) *Engine {
	return &Engine{
		sessions: sessions,
		content:  content,
		channels: channels,
		users:    users,
		admins:   admins,
		settings: settings,
		access:   access,
		resolver: resolver,
		announce: announce,
		now:      time.Now,
	}
}

// requiredRight maps admin flows to the capability they require. Flows
// absent from the map are available to every user.
var requiredRight = map[session.Action]models.Right{
	session.ActionAddContent:  models.RightContent,
	session.ActionAddEpisode:  models.RightContent,
	session.ActionEditSearch:  models.RightContent,
	session.ActionEditField:   models.RightContent,
	session.ActionAddChannel:  models.RightChannels,
	session.ActionBroadcast:   models.RightBroadcast,
	session.ActionSearchUser:  models.RightAdmins,
	session.ActionManageAdmin: models.RightAdmins,
	session.ActionSetAnnounce: models.RightAdmins,
}

const replyInternalError = "Something went wrong. The operation was cancelled, please try again."

// Active reports whether the chat currently has a live session.
func (e *Engine) Active(chatID int64) bool {
	_, ok := e.sessions.Get(chatID)
	return ok
}

// Start opens a flow for the chat, replacing any previous session, and
// returns the first prompt.
func (e *Engine) Start(ctx context.Context, chatID, userID int64, action session.Action, draft session.Draft) Reply {
	if right, ok := requiredRight[action]; ok && !e.access.HasRight(ctx, userID, right) {
		return Reply{Handled: true, Text: "You do not have permission for this action."}
	}
	sess := session.Session{Action: action, Draft: draft}
	var reply Reply
	switch action {
	case session.ActionAskBirthYear:
		reply = Reply{Handled: true, Text: "Welcome! Please send your birth year (for example 1995)."}
	case session.ActionWaitSubscription:
		reply = Reply{Handled: true, Text: "To use the bot, subscribe to the required channels first.", Markup: MarkupSubscribe}
	case session.ActionAddContent:
		sess.Step = session.StepVideo
		reply = Reply{Handled: true, Text: "Send the video file.", Markup: MarkupCancel}
	case session.ActionAddEpisode:
		sess.Step = session.StepVideo
		reply = Reply{Handled: true, Text: "Send the episode video.", Markup: MarkupCancel}
	case session.ActionAddChannel:
		sess.Step = session.StepName
		reply = Reply{Handled: true, Text: "Send the display name for the channel.", Markup: MarkupCancel}
	case session.ActionEditSearch:
		sess.Step = session.StepQuery
		reply = Reply{Handled: true, Text: "Send the numeric code of the content to edit.", Markup: MarkupCancel}
	case session.ActionEditField:
		sess.Step = session.StepValue
		reply = Reply{Handled: true, Text: editFieldPrompt(draft.Field), Markup: MarkupCancel}
	case session.ActionSearchUser:
		sess.Step = session.StepQuery
		reply = Reply{Handled: true, Text: "Send the user id or @username.", Markup: MarkupCancel}
	case session.ActionManageAdmin:
		sess.Step = session.StepQuery
		reply = Reply{Handled: true, Text: "Send the user id of the admin to manage.", Markup: MarkupCancel}
	case session.ActionBroadcast:
		sess.Step = session.StepMessage
		reply = Reply{Handled: true, Text: "Send the message to broadcast. It will be copied to every active user.", Markup: MarkupCancel}
	case session.ActionSetAnnounce:
		sess.Step = session.StepURL
		reply = Reply{Handled: true, Text: "Send the announce channel: @username, t.me link, or chat id.", Markup: MarkupCancel}
	default:
		return Reply{}
	}
	e.sessions.Set(chatID, sess)
	logger.LogEvent(ctx, logger.SVCWizard, slog.LevelInfo, "wizard.started",
		slog.String("action", string(action)))
	return reply
}

// Cancel tears down the chat's session.
func (e *Engine) Cancel(chatID int64) Reply {
	if _, ok := e.sessions.Get(chatID); !ok {
		return Reply{Handled: true, Text: "Nothing to cancel."}
	}
	e.sessions.Delete(chatID)
	return Reply{Handled: true, Text: "Cancelled."}
}

// PendingBroadcast returns the captured broadcast source once the flow
// reached confirmation.
func (e *Engine) PendingBroadcast(chatID int64) (fromChatID int64, messageID int, ok bool) {
	sess, live := e.sessions.Get(chatID)
	if !live || sess.Action != session.ActionBroadcast || sess.Step != session.StepConfirm {
		return 0, 0, false
	}
	return sess.Draft.FromChatID, sess.Draft.MessageID, true
}

// PendingCode returns the content code stashed when the subscription gate
// interrupted a lookup.
func (e *Engine) PendingCode(chatID int64) (int64, bool) {
	sess, live := e.sessions.Get(chatID)
	if !live || sess.Action != session.ActionWaitSubscription || sess.Draft.Code == 0 {
		return 0, false
	}
	return sess.Draft.Code, true
}

// Clear removes the session without a user-visible reply, used after a
// callback finishes a flow.
func (e *Engine) Clear(chatID int64) { e.sessions.Delete(chatID) }

// Handle feeds one incoming message into the chat's flow. Handled is false
// when the chat has no live session.
func (e *Engine) Handle(ctx context.Context, in Input) (Reply, error) {
	if e.sessions.Expire(in.ChatID) {
		return Reply{Handled: true, Text: "Your session expired, please start over."}, nil
	}
	sess, ok := e.sessions.Get(in.ChatID)
	if !ok {
		return Reply{}, nil
	}
	if right, need := requiredRight[sess.Action]; need && !e.access.HasRight(ctx, in.UserID, right) {
		e.sessions.Delete(in.ChatID)
		return Reply{Handled: true, Text: "You no longer have permission for this action."}, nil
	}

	var reply Reply
	var err error
	switch sess.Action {
	case session.ActionAskBirthYear:
		reply, err = e.handleBirthYear(ctx, in)
	case session.ActionWaitSubscription:
		reply = Reply{Handled: true, Text: "Subscribe to the required channels, then tap the check button.", Markup: MarkupSubscribe}
	case session.ActionAddContent:
		reply, err = e.handleAddContent(ctx, in, sess)
	case session.ActionAddEpisode:
		reply, err = e.handleAddEpisode(ctx, in, sess)
	case session.ActionAddChannel:
		reply, err = e.handleAddChannel(ctx, in, sess)
	case session.ActionEditSearch:
		reply, err = e.handleEditSearch(ctx, in)
	case session.ActionEditField:
		reply, err = e.handleEditField(ctx, in, sess)
	case session.ActionSearchUser:
		reply, err = e.handleSearchUser(ctx, in)
	case session.ActionManageAdmin:
		reply, err = e.handleManageAdmin(ctx, in)
	case session.ActionBroadcast:
		reply = e.handleBroadcastCapture(in, sess)
	case session.ActionSetAnnounce:
		reply, err = e.handleSetAnnounce(ctx, in)
	default:
		e.sessions.Delete(in.ChatID)
		return Reply{Handled: true, Text: replyInternalError}, nil
	}

	if err != nil {
		e.sessions.Delete(in.ChatID)
		logger.LogEvent(ctx, logger.SVCWizard, slog.LevelError, "wizard.failed",
			slog.String("action", string(sess.Action)),
			slog.String("step", string(sess.Step)),
			slog.String("err", err.Error()))
		return Reply{Handled: true, Text: replyInternalError}, err
	}
	return reply, nil
}

func (e *Engine) advance(chatID int64, sess session.Session, step session.Step) {
	sess.Step = step
	e.sessions.Set(chatID, sess)
}

func editFieldPrompt(field string) string {
	switch field {
	case "video":
		return "Send the new video file."
	case "poster":
		return "Send the new poster photo."
	case "adult":
		return "Is this content 18+? Reply yes or no."
	case "title":
		return "Send the new title."
	case "country":
		return "Send the new country."
	case "language":
		return "Send the new language."
	default:
		return "Send the new value."
	}
}
