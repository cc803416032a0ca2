package wizard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/repository"
	"github.com/m3rciful/cinebot/app/session"
)

type memContent struct {
	byCode   map[int64]models.Content
	byID     map[int64]models.Content
	episodes map[int64][]models.Episode
	nextID   int64
}

func newMemContent() *memContent {
	return &memContent{
		byCode:   map[int64]models.Content{},
		byID:     map[int64]models.Content{},
		episodes: map[int64][]models.Episode{},
	}
}

func (m *memContent) Create(_ context.Context, c *models.Content) error {
	if _, exists := m.byCode[c.Code]; exists {
		return repository.ErrConflict
	}
	m.nextID++
	c.ID = m.nextID
	m.byCode[c.Code] = *c
	m.byID[c.ID] = *c
	return nil
}

func (m *memContent) FindByCode(_ context.Context, code int64) (models.Content, error) {
	c, ok := m.byCode[code]
	if !ok {
		return models.Content{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memContent) FindByID(_ context.Context, id int64) (models.Content, error) {
	c, ok := m.byID[id]
	if !ok {
		return models.Content{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memContent) Update(_ context.Context, c models.Content) error {
	m.byID[c.ID] = c
	m.byCode[c.Code] = c
	return nil
}

func (m *memContent) CountEpisodes(_ context.Context, contentID int64) (int, error) {
	return len(m.episodes[contentID]), nil
}

func (m *memContent) AddEpisode(_ context.Context, ep *models.Episode) error {
	for _, existing := range m.episodes[ep.ContentID] {
		if existing.Seq == ep.Seq {
			return repository.ErrConflict
		}
	}
	m.episodes[ep.ContentID] = append(m.episodes[ep.ContentID], *ep)
	return nil
}

type memChannels struct{ byChat map[int64]models.Channel }

func (m *memChannels) Upsert(_ context.Context, ch models.Channel) error {
	if m.byChat == nil {
		m.byChat = map[int64]models.Channel{}
	}
	m.byChat[ch.ChatID] = ch
	return nil
}

type memUsers struct {
	users      map[int64]models.User
	birthYears map[int64]int
}

func (m *memUsers) Find(_ context.Context, id int64) (models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) SetBirthYear(_ context.Context, id int64, year int) error {
	if m.birthYears == nil {
		m.birthYears = map[int64]int{}
	}
	m.birthYears[id] = year
	return nil
}

type memAdmins struct{ records map[int64]models.AdminRights }

func (m *memAdmins) Ensure(_ context.Context, userID int64) (models.AdminRights, error) {
	if m.records == nil {
		m.records = map[int64]models.AdminRights{}
	}
	rec, ok := m.records[userID]
	if !ok {
		rec = models.BaselineRights(userID)
		m.records[userID] = rec
	}
	return rec, nil
}

type memSettings struct{ s models.Settings }

func (m memSettings) Get(context.Context) (models.Settings, error) { return m.s, nil }

func (m memSettings) SetAnnounceChat(context.Context, int64) error { return nil }

type allowAll struct{ owner int64 }

func (a allowAll) HasRight(context.Context, int64, models.Right) bool { return true }
func (a allowAll) Invalidate(int64)                                   {}
func (a allowAll) OwnerID() int64                                     { return a.owner }

type denyAll struct{}

func (denyAll) HasRight(context.Context, int64, models.Right) bool { return false }
func (denyAll) Invalidate(int64)                                   {}
func (denyAll) OwnerID() int64                                     { return 1 }

type fixedResolver struct {
	ch  models.Channel
	err error
}

func (f fixedResolver) Resolve(context.Context, string) (models.Channel, error) {
	return f.ch, f.err
}

func newTestEngine(content *memContent, access Access) (*Engine, *session.Store) {
	store := session.NewStore(30 * time.Minute)
	e := New(store, content, &memChannels{}, &memUsers{users: map[int64]models.User{}},
		&memAdmins{}, memSettings{}, access, fixedResolver{}, nil)
	return e, store
}

func text(chatID, userID int64, s string) Input {
	return Input{Kind: KindText, Text: s, ChatID: chatID, UserID: userID}
}

func TestAddContentHappyPath(t *testing.T) {
	content := newMemContent()
	e, _ := newTestEngine(content, allowAll{owner: 1})
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionAddContent, session.Draft{Kind: string(models.KindMovie)})

	steps := []Input{
		{Kind: KindVideo, FileID: "vid-1", ChatID: 10, UserID: 2},
		{Kind: KindPhoto, FileID: "pic-1", ChatID: 10, UserID: 2},
		text(10, 2, "The Matrix"),
		text(10, 2, "USA"),
		text(10, 2, "English"),
		text(10, 2, "no"),
		text(10, 2, "101"),
	}
	var last Reply
	for _, in := range steps {
		var err error
		last, err = e.Handle(ctx, in)
		if err != nil {
			t.Fatalf("handle %+v: %v", in, err)
		}
	}
	if last.ContentID == 0 {
		t.Fatalf("expected created content id, reply: %+v", last)
	}
	c, err := content.FindByCode(ctx, 101)
	if err != nil {
		t.Fatalf("content not stored: %v", err)
	}
	if c.Title != "The Matrix" || c.FileID != "vid-1" || c.PosterID != "pic-1" || c.Adult {
		t.Fatalf("unexpected record: %+v", c)
	}
	if e.Active(10) {
		t.Fatal("session must be torn down after completion")
	}
}

func TestAddContentDuplicateCodeStaysOnStep(t *testing.T) {
	content := newMemContent()
	seed := models.Content{Code: 101, Kind: models.KindMovie}
	if err := content.Create(context.Background(), &seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	e, _ := newTestEngine(content, allowAll{owner: 1})
	ctx := context.Background()
	e.Start(ctx, 10, 2, session.ActionAddContent, session.Draft{Kind: string(models.KindMovie)})

	inputs := []Input{
		{Kind: KindVideo, FileID: "vid-2", ChatID: 10, UserID: 2},
		{Kind: KindPhoto, FileID: "pic-2", ChatID: 10, UserID: 2},
		text(10, 2, "Other"),
		text(10, 2, "UK"),
		text(10, 2, "English"),
		text(10, 2, "no"),
	}
	for _, in := range inputs {
		if _, err := e.Handle(ctx, in); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	reply, err := e.Handle(ctx, text(10, 2, "101"))
	if err != nil {
		t.Fatalf("duplicate code must not fail the flow: %v", err)
	}
	if reply.ContentID != 0 {
		t.Fatal("duplicate code must not create a record")
	}
	if !e.Active(10) {
		t.Fatal("flow must stay open for another code")
	}

	reply, err = e.Handle(ctx, text(10, 2, "102"))
	if err != nil {
		t.Fatalf("retry code: %v", err)
	}
	if reply.ContentID == 0 {
		t.Fatal("expected creation under the new code")
	}
	if len(content.byCode) != 2 {
		t.Fatalf("expected exactly 2 records, got %d", len(content.byCode))
	}
}

func TestAddContentKindMismatchDoesNotAdvance(t *testing.T) {
	e, store := newTestEngine(newMemContent(), allowAll{owner: 1})
	ctx := context.Background()
	e.Start(ctx, 10, 2, session.ActionAddContent, session.Draft{Kind: string(models.KindMovie)})

	if _, err := e.Handle(ctx, text(10, 2, "this is not a video")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	sess, ok := store.Get(10)
	if !ok || sess.Step != session.StepVideo {
		t.Fatalf("expected to remain on the video step, got %+v", sess)
	}
}

func TestAddEpisodeAssignsNextSeq(t *testing.T) {
	content := newMemContent()
	series := models.Content{Code: 7, Kind: models.KindSeries}
	if err := content.Create(context.Background(), &series); err != nil {
		t.Fatalf("seed: %v", err)
	}

	e, _ := newTestEngine(content, allowAll{owner: 1})
	ctx := context.Background()
	e.Start(ctx, 10, 2, session.ActionAddEpisode, session.Draft{ContentID: series.ID})

	for i, name := range []string{"Pilot", "-"} {
		if _, err := e.Handle(ctx, Input{Kind: KindVideo, FileID: "ep", ChatID: 10, UserID: 2}); err != nil {
			t.Fatalf("video %d: %v", i, err)
		}
		if _, err := e.Handle(ctx, text(10, 2, name)); err != nil {
			t.Fatalf("name %d: %v", i, err)
		}
	}

	eps := content.episodes[series.ID]
	if len(eps) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(eps))
	}
	if eps[0].Seq != 1 || eps[1].Seq != 2 {
		t.Fatalf("unexpected sequence numbers: %+v", eps)
	}
	if eps[0].Name != "Pilot" || eps[1].Name != "" {
		t.Fatalf("unexpected names: %+v", eps)
	}
	if !e.Active(10) {
		t.Fatal("episode flow should stay open for more episodes")
	}
}

func TestAddChannelIdempotent(t *testing.T) {
	channels := &memChannels{}
	store := session.NewStore(30 * time.Minute)
	e := New(store, newMemContent(), channels, &memUsers{}, &memAdmins{}, memSettings{},
		allowAll{owner: 1}, fixedResolver{ch: models.Channel{ChatID: -1001, Title: "News"}}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		e.Start(ctx, 10, 2, session.ActionAddChannel, session.Draft{})
		if _, err := e.Handle(ctx, text(10, 2, "Daily News")); err != nil {
			t.Fatalf("name %d: %v", i, err)
		}
		if _, err := e.Handle(ctx, text(10, 2, "@news")); err != nil {
			t.Fatalf("reference %d: %v", i, err)
		}
	}
	if len(channels.byChat) != 1 {
		t.Fatalf("expected a single channel record, got %d", len(channels.byChat))
	}
	if got := channels.byChat[-1001].Title; got != "Daily News" {
		t.Fatalf("admin-supplied name must win, got %q", got)
	}
}

func TestRightsRevokedMidFlow(t *testing.T) {
	e, _ := newTestEngine(newMemContent(), allowAll{owner: 1})
	ctx := context.Background()
	e.Start(ctx, 10, 2, session.ActionAddContent, session.Draft{Kind: string(models.KindMovie)})

	// Swap in a denying checker to simulate revocation between steps.
	e.access = denyAll{}
	reply, err := e.Handle(ctx, Input{Kind: KindVideo, FileID: "vid", ChatID: 10, UserID: 2})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !reply.Handled {
		t.Fatal("expected a denial reply")
	}
	if e.Active(10) {
		t.Fatal("session must be torn down on revocation")
	}
}

func TestBirthYearValidation(t *testing.T) {
	users := &memUsers{users: map[int64]models.User{}}
	store := session.NewStore(30 * time.Minute)
	e := New(store, newMemContent(), &memChannels{}, users, &memAdmins{}, memSettings{},
		allowAll{owner: 1}, fixedResolver{}, nil)
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionAskBirthYear, session.Draft{})

	if _, err := e.Handle(ctx, text(10, 2, "not a year")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !e.Active(10) {
		t.Fatal("invalid year must keep the session")
	}
	if _, err := e.Handle(ctx, text(10, 2, "1995")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if users.birthYears[2] != 1995 {
		t.Fatalf("birth year not recorded: %v", users.birthYears)
	}
	if e.Active(10) {
		t.Fatal("session must close after a valid year")
	}
}

func TestBroadcastCaptureAndConfirmGate(t *testing.T) {
	e, _ := newTestEngine(newMemContent(), allowAll{owner: 1})
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionBroadcast, session.Draft{})
	reply, err := e.Handle(ctx, Input{Kind: KindText, Text: "big announcement", ChatID: 10, MessageID: 42, UserID: 2})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Markup != MarkupConfirmBroadcast {
		t.Fatalf("expected confirm markup, got %v", reply.Markup)
	}
	from, msgID, ok := e.PendingBroadcast(10)
	if !ok || from != 10 || msgID != 42 {
		t.Fatalf("unexpected pending broadcast: %d %d %v", from, msgID, ok)
	}
}

func TestManageAdminRejectsOwner(t *testing.T) {
	admins := &memAdmins{}
	store := session.NewStore(30 * time.Minute)
	e := New(store, newMemContent(), &memChannels{}, &memUsers{}, admins, memSettings{},
		allowAll{owner: 42}, fixedResolver{}, nil)
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionManageAdmin, session.Draft{})
	reply, err := e.Handle(ctx, text(10, 2, "42"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.UserID != 0 {
		t.Fatal("owner must not be manageable")
	}
	if len(admins.records) != 0 {
		t.Fatal("no record must be created for the owner")
	}
}

func TestExpiredSessionNotice(t *testing.T) {
	content := newMemContent()
	store := session.NewStore(time.Millisecond)
	e := New(store, content, &memChannels{}, &memUsers{users: map[int64]models.User{}},
		&memAdmins{}, memSettings{}, allowAll{owner: 1}, fixedResolver{}, nil)
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionAddContent, session.Draft{Kind: string(models.KindMovie)})
	time.Sleep(5 * time.Millisecond)

	reply, err := e.Handle(ctx, Input{Kind: KindVideo, FileID: "vid", ChatID: 10, UserID: 2})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !reply.Handled || !strings.Contains(reply.Text, "expired") {
		t.Fatalf("expected an expiry notice, got %+v", reply)
	}
	if e.Active(10) {
		t.Fatal("expired session must be gone")
	}

	// A second message gets no notice: the session is simply absent.
	reply, err = e.Handle(ctx, text(10, 2, "anything"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Handled {
		t.Fatal("absent session must fall through to normal handling")
	}
}

func TestManageAdminCreatesBaselineRecord(t *testing.T) {
	admins := &memAdmins{}
	store := session.NewStore(30 * time.Minute)
	e := New(store, newMemContent(), &memChannels{}, &memUsers{}, admins, memSettings{},
		allowAll{owner: 1}, fixedResolver{}, nil)
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionManageAdmin, session.Draft{})
	reply, err := e.Handle(ctx, text(10, 2, "555"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.UserID != 555 {
		t.Fatalf("expected the rights card for 555, got %+v", reply)
	}
	rec, ok := admins.records[555]
	if !ok {
		t.Fatal("expected a baseline record")
	}
	if rec.Broadcast || rec.Admins {
		t.Fatalf("baseline must not grant elevated rights: %+v", rec)
	}
}

func TestCancel(t *testing.T) {
	e, _ := newTestEngine(newMemContent(), allowAll{owner: 1})
	ctx := context.Background()

	e.Start(ctx, 10, 2, session.ActionAddContent, session.Draft{})
	e.Cancel(10)
	if e.Active(10) {
		t.Fatal("cancel must tear down the session")
	}
	reply, err := e.Handle(ctx, text(10, 2, "anything"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Handled {
		t.Fatal("input after cancel must fall through to normal handling")
	}
}
