package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/cinebot/app/models"
)

type fakeChannels struct{ chs []models.Channel }

func (f fakeChannels) All(context.Context) ([]models.Channel, error) { return f.chs, nil }

type fakeMembers struct {
	member map[int64]bool
	errFor map[int64]error
}

func (f fakeMembers) IsMember(_ context.Context, chatID, _ int64) (bool, error) {
	if err := f.errFor[chatID]; err != nil {
		return false, err
	}
	return f.member[chatID], nil
}

type fakeAdmins struct{ admins map[int64]bool }

func (f fakeAdmins) IsAdmin(_ context.Context, userID int64) bool { return f.admins[userID] }

func TestMissingReportsUnsubscribed(t *testing.T) {
	g := New(
		fakeChannels{chs: []models.Channel{{ChatID: -1001}, {ChatID: -1002}}},
		fakeMembers{member: map[int64]bool{-1001: true, -1002: false}},
		fakeAdmins{},
	)
	missing, err := g.Missing(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 1 || missing[0].ChatID != -1002 {
		t.Fatalf("expected channel -1002 missing, got %+v", missing)
	}
}

func TestMissingAdminExempt(t *testing.T) {
	g := New(
		fakeChannels{chs: []models.Channel{{ChatID: -1001}}},
		fakeMembers{member: map[int64]bool{}},
		fakeAdmins{admins: map[int64]bool{7: true}},
	)
	missing, err := g.Missing(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("admin must pass the gate, got %+v", missing)
	}
}

func TestMissingSkipsFailedLookups(t *testing.T) {
	g := New(
		fakeChannels{chs: []models.Channel{{ChatID: -1001}, {ChatID: -1002}}},
		fakeMembers{
			member: map[int64]bool{-1002: false},
			errFor: map[int64]error{-1001: errors.New("chat not found")},
		},
		fakeAdmins{},
	)
	missing, err := g.Missing(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 1 || missing[0].ChatID != -1002 {
		t.Fatalf("failed lookup must not count as missing, got %+v", missing)
	}
}
