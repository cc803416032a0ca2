package present

import (
	"strings"
	"testing"

	"github.com/m3rciful/cinebot/app/models"
)

func TestCaption(t *testing.T) {
	c := models.Content{
		Code: 101, Title: "The Matrix", Country: "USA", Language: "English",
		RatingSum: 9, RatingCount: 2, Adult: true,
	}
	got := Caption(c)
	for _, want := range []string{"The Matrix", "USA", "English", "4.5", "18+", "Code: 101"} {
		if !strings.Contains(got, want) {
			t.Errorf("caption missing %q:\n%s", want, got)
		}
	}
}

func TestCaptionOmitsEmptyFields(t *testing.T) {
	got := Caption(models.Content{Code: 7, Title: "Bare"})
	for _, absent := range []string{"Country", "Language", "Rating", "18+"} {
		if strings.Contains(got, absent) {
			t.Errorf("caption must omit %q:\n%s", absent, got)
		}
	}
}

func TestEpisodePageBounds(t *testing.T) {
	tests := []struct {
		total, page        int
		wantStart, wantEnd int
	}{
		{total: 25, page: 0, wantStart: 0, wantEnd: 10},
		{total: 25, page: 2, wantStart: 20, wantEnd: 25},
		{total: 25, page: 99, wantStart: 20, wantEnd: 25},
		{total: 25, page: -1, wantStart: 0, wantEnd: 10},
		{total: 3, page: 0, wantStart: 0, wantEnd: 3},
		{total: 0, page: 0, wantStart: 0, wantEnd: 0},
	}
	for _, tt := range tests {
		start, end := EpisodePageBounds(tt.total, tt.page)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("bounds(%d, %d) = %d..%d, want %d..%d",
				tt.total, tt.page, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestEpisodePages(t *testing.T) {
	if got := EpisodePages(0); got != 1 {
		t.Errorf("pages(0) = %d", got)
	}
	if got := EpisodePages(10); got != 1 {
		t.Errorf("pages(10) = %d", got)
	}
	if got := EpisodePages(11); got != 2 {
		t.Errorf("pages(11) = %d", got)
	}
}

func TestRightsKeyboardCoversAllRights(t *testing.T) {
	rec := models.AdminRights{UserID: 5, Search: true}
	markup := RightsKeyboard(rec)

	buttons := 0
	for _, row := range markup.InlineKeyboard {
		buttons += len(row)
	}
	// Every right plus the removal button.
	if buttons != len(models.AllRights)+1 {
		t.Fatalf("expected %d buttons, got %d", len(models.AllRights)+1, buttons)
	}
}

func TestAdminMenuFiltersByRights(t *testing.T) {
	markup := AdminMenu(func(r models.Right) bool { return r == models.RightContent })
	if len(markup.InlineKeyboard) != 1 {
		t.Fatalf("expected a single menu row, got %d", len(markup.InlineKeyboard))
	}
	if markup.InlineKeyboard[0][0].Text != "Content" {
		t.Fatalf("unexpected button: %+v", markup.InlineKeyboard[0][0])
	}
}

func TestBroadcastSummary(t *testing.T) {
	got := BroadcastSummary(10, 2, true)
	if !strings.Contains(got, "stopped") || !strings.Contains(got, "10") || !strings.Contains(got, "2") {
		t.Errorf("unexpected summary: %s", got)
	}
}
