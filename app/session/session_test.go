package session

import (
	"testing"
	"time"
)

func TestGetExpiredSessionRemoved(t *testing.T) {
	st := NewStore(30 * time.Minute)
	base := time.Now()
	st.now = func() time.Time { return base }

	st.Set(100, Session{Action: ActionAddContent, Step: StepVideo})

	st.now = func() time.Time { return base.Add(31 * time.Minute) }
	if _, ok := st.Get(100); ok {
		t.Fatal("expected expired session to be absent")
	}
	if st.Len() != 0 {
		t.Fatalf("expected expired session to be evicted, have %d", st.Len())
	}
}

func TestGetWithinTTL(t *testing.T) {
	st := NewStore(30 * time.Minute)
	base := time.Now()
	st.now = func() time.Time { return base }

	st.Set(100, Session{Action: ActionBroadcast, Step: StepMessage})

	st.now = func() time.Time { return base.Add(29 * time.Minute) }
	sess, ok := st.Get(100)
	if !ok {
		t.Fatal("expected live session")
	}
	if sess.Action != ActionBroadcast || sess.Step != StepMessage {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestSetOverwrites(t *testing.T) {
	st := NewStore(time.Minute)
	st.Set(7, Session{Action: ActionAddContent, Step: StepVideo})
	st.Set(7, Session{Action: ActionAddChannel, Step: StepURL})

	sess, ok := st.Get(7)
	if !ok {
		t.Fatal("expected session")
	}
	if sess.Action != ActionAddChannel {
		t.Fatalf("expected overwrite, got action %q", sess.Action)
	}
	if st.Len() != 1 {
		t.Fatalf("expected a single session, have %d", st.Len())
	}
}

func TestExpireDistinguishesTimedOutFromAbsent(t *testing.T) {
	st := NewStore(30 * time.Minute)
	base := time.Now()
	st.now = func() time.Time { return base }

	if st.Expire(100) {
		t.Fatal("absent session must not report as expired")
	}

	st.Set(100, Session{Action: ActionAddContent})

	st.now = func() time.Time { return base.Add(29 * time.Minute) }
	if st.Expire(100) {
		t.Fatal("live session must not be expired")
	}

	st.now = func() time.Time { return base.Add(31 * time.Minute) }
	if !st.Expire(100) {
		t.Fatal("timed-out session must report as expired")
	}
	if st.Expire(100) {
		t.Fatal("second call must see the session as absent")
	}
}

func TestSweep(t *testing.T) {
	st := NewStore(10 * time.Minute)
	base := time.Now()
	st.now = func() time.Time { return base }

	st.Set(1, Session{Action: ActionAddContent})
	st.Set(2, Session{Action: ActionEditSearch})

	st.now = func() time.Time { return base.Add(5 * time.Minute) }
	st.Set(3, Session{Action: ActionSearchUser})

	st.now = func() time.Time { return base.Add(12 * time.Minute) }
	if removed := st.Sweep(); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := st.Get(3); !ok {
		t.Fatal("expected fresh session to survive sweep")
	}
}
