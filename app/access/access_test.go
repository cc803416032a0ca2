package access

import (
	"context"
	"testing"
	"time"

	"github.com/m3rciful/cinebot/app/models"
	"github.com/m3rciful/cinebot/app/repository"
)

type fakeRepo struct {
	records map[int64]models.AdminRights
	finds   int
}

func (f *fakeRepo) Find(_ context.Context, userID int64) (models.AdminRights, error) {
	f.finds++
	rec, ok := f.records[userID]
	if !ok {
		return models.AdminRights{}, repository.ErrNotFound
	}
	return rec, nil
}

func TestOwnerBypass(t *testing.T) {
	repo := &fakeRepo{records: map[int64]models.AdminRights{}}
	svc := NewService(repo, 42)

	ctx := context.Background()
	if !svc.IsAdmin(ctx, 42) {
		t.Fatal("owner must be admin")
	}
	if !svc.HasRight(ctx, 42, models.RightAdmins) {
		t.Fatal("owner must hold every right")
	}
	if repo.finds != 0 {
		t.Fatalf("owner checks must not hit the repository, got %d finds", repo.finds)
	}
}

func TestIsAdminCached(t *testing.T) {
	repo := &fakeRepo{records: map[int64]models.AdminRights{
		7: {UserID: 7, Search: true},
	}}
	svc := NewService(repo, 1)
	base := time.Now()
	svc.now = func() time.Time { return base }

	ctx := context.Background()
	if !svc.IsAdmin(ctx, 7) {
		t.Fatal("expected admin")
	}
	if !svc.IsAdmin(ctx, 7) {
		t.Fatal("expected admin on second call")
	}
	if repo.finds != 1 {
		t.Fatalf("expected one repo hit inside TTL, got %d", repo.finds)
	}

	svc.now = func() time.Time { return base.Add(61 * time.Second) }
	svc.IsAdmin(ctx, 7)
	if repo.finds != 2 {
		t.Fatalf("expected refresh after TTL, got %d finds", repo.finds)
	}
}

func TestHasRightUnknownUser(t *testing.T) {
	repo := &fakeRepo{records: map[int64]models.AdminRights{}}
	svc := NewService(repo, 1)

	if svc.HasRight(context.Background(), 99, models.RightContent) {
		t.Fatal("unknown user must not hold rights")
	}
	if len(repo.records) != 0 {
		t.Fatal("a rights check must not create a record")
	}
}

func TestHasRightAlwaysFresh(t *testing.T) {
	repo := &fakeRepo{records: map[int64]models.AdminRights{
		7: {UserID: 7, Content: true},
	}}
	svc := NewService(repo, 1)
	ctx := context.Background()

	if !svc.HasRight(ctx, 7, models.RightContent) {
		t.Fatal("expected right granted")
	}
	repo.records[7] = models.AdminRights{UserID: 7}
	if svc.HasRight(ctx, 7, models.RightContent) {
		t.Fatal("revocation must take effect immediately")
	}
}

func TestInvalidate(t *testing.T) {
	repo := &fakeRepo{records: map[int64]models.AdminRights{}}
	svc := NewService(repo, 1)
	ctx := context.Background()

	if svc.IsAdmin(ctx, 5) {
		t.Fatal("expected non-admin")
	}
	repo.records[5] = models.AdminRights{UserID: 5}
	if svc.IsAdmin(ctx, 5) {
		t.Fatal("stale cache should still answer non-admin")
	}
	svc.Invalidate(5)
	if !svc.IsAdmin(ctx, 5) {
		t.Fatal("expected fresh answer after invalidation")
	}
}
