package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeAudience struct{ ids []int64 }

func (f fakeAudience) ActiveIDs(context.Context) ([]int64, error) { return f.ids, nil }

var errBlocked = errors.New("forbidden: bot was blocked by the user")

type fakeSender struct {
	mu      sync.Mutex
	sent    []int64
	failFor map[int64]error
	onSend  func(userID int64)
}

func (f *fakeSender) CopyTo(_ context.Context, userID, _ int64, _ int) error {
	f.mu.Lock()
	f.sent = append(f.sent, userID)
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(userID)
	}
	return f.failFor[userID]
}

func (f *fakeSender) Unreachable(err error) bool { return errors.Is(err, errBlocked) }

type fakeUsers struct {
	mu          sync.Mutex
	deactivated []int64
}

func (f *fakeUsers) SetActive(_ context.Context, id int64, active bool) error {
	if !active {
		f.mu.Lock()
		f.deactivated = append(f.deactivated, id)
		f.mu.Unlock()
	}
	return nil
}

func TestRunCountsDeliveredAndBlocked(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]error{2: errBlocked, 4: errBlocked}}
	users := &fakeUsers{}
	c := NewController(fakeAudience{ids: []int64{1, 2, 3, 4, 5}}, sender, users, 1000)

	_, done, err := c.Start(context.Background(), 100, 555)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	summary := <-done
	if summary.Delivered != 3 || summary.Blocked != 2 {
		t.Fatalf("expected 3 delivered / 2 blocked, got %d/%d", summary.Delivered, summary.Blocked)
	}
	if summary.Stopped {
		t.Fatal("run finished on its own, must not report stopped")
	}
	if len(users.deactivated) != 2 {
		t.Fatalf("expected 2 deactivations, got %v", users.deactivated)
	}
}

func TestStartRejectsSecondRun(t *testing.T) {
	release := make(chan struct{})
	sender := &fakeSender{onSend: func(int64) { <-release }}
	c := NewController(fakeAudience{ids: []int64{1, 2, 3}}, sender, &fakeUsers{}, 1000)

	_, done, err := c.Start(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := c.Start(context.Background(), 100, 2); !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
	close(release)
	<-done

	if _, done2, err := c.Start(context.Background(), 100, 3); err != nil {
		t.Fatalf("slot must reopen after completion: %v", err)
	} else {
		<-done2
	}
}

func TestRequestStopHaltsRun(t *testing.T) {
	var c *Controller
	sender := &fakeSender{}
	sender.onSend = func(userID int64) {
		if userID == 2 {
			c.RequestStop()
		}
	}
	c = NewController(fakeAudience{ids: []int64{1, 2, 3, 4, 5}}, sender, &fakeUsers{}, 1000)

	_, done, err := c.Start(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	summary := <-done
	if !summary.Stopped {
		t.Fatal("expected stopped summary")
	}
	if summary.Delivered != 2 {
		t.Fatalf("expected 2 delivered before stop, got %d", summary.Delivered)
	}
}

func TestRequestStopWithoutRun(t *testing.T) {
	c := NewController(fakeAudience{}, &fakeSender{}, &fakeUsers{}, 1000)
	if c.RequestStop() {
		t.Fatal("stop with no run in flight must report false")
	}
}

func TestStatusDuringRun(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	sender := &fakeSender{onSend: func(int64) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}}
	c := NewController(fakeAudience{ids: []int64{1, 2}}, sender, &fakeUsers{}, 1000)

	_, done, err := c.Start(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("run never started sending")
	}
	st := c.Status()
	if !st.Active || st.Total != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
	close(release)
	<-done
	if c.Status().Active {
		t.Fatal("status must clear after completion")
	}
}
