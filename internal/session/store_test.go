package session

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStartAndGet(t *testing.T) {
	st := NewStore(time.Minute, zap.NewNop())
	defer st.Close()

	s := st.Start("sess-1")
	if s.ID != "sess-1" {
		t.Errorf("ID = %q", s.ID)
	}

	if got := st.Get("sess-1"); got == nil {
		t.Error("expected session to exist")
	}
	if got := st.Get("missing"); got != nil {
		t.Error("expected nil for unknown session")
	}
}

func TestUpdateSerializedPerSession(t *testing.T) {
	st := NewStore(time.Minute, zap.NewNop())
	defer st.Close()

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			st.Update("sess-1", func(s *Session) {
				s.Remember("file", "notes.txt", st.MaxContext())
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	got := st.Get("sess-1")
	if got.Context["file"] != "notes.txt" {
		t.Errorf("context file = %v", got.Context["file"])
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	st := NewStore(time.Minute, zap.NewNop())
	defer st.Close()

	st.Update("sess-1", func(s *Session) {
		s.Remember("file", "a.txt", st.MaxContext())
	})

	snap := st.Get("sess-1")
	snap.Context["file"] = "tampered"

	if got := st.Get("sess-1"); got.Context["file"] != "a.txt" {
		t.Errorf("store mutated through snapshot: %v", got.Context["file"])
	}
}

func TestContextBounded(t *testing.T) {
	st := NewStore(time.Minute, zap.NewNop())
	defer st.Close()
	st.SetMaxContext(3)

	st.Update("sess-1", func(s *Session) {
		s.Remember("a", 1, 3)
		s.Remember("b", 2, 3)
		s.Remember("c", 3, 3)
		s.Remember("d", 4, 3)
	})

	got := st.Get("sess-1")
	if len(got.Context) != 3 {
		t.Fatalf("context size = %d, want 3", len(got.Context))
	}
	if _, exists := got.Context["a"]; exists {
		t.Error("oldest slot should have been evicted")
	}
	if got.Context["d"] != 4 {
		t.Errorf("newest slot missing: %v", got.Context)
	}
}

func TestEnd(t *testing.T) {
	st := NewStore(time.Minute, zap.NewNop())
	defer st.Close()

	st.Start("sess-1")
	st.End("sess-1")

	if st.Get("sess-1") != nil {
		t.Error("session should be gone after End")
	}
}

func TestExpire(t *testing.T) {
	st := NewStore(10*time.Millisecond, zap.NewNop())
	defer st.Close()

	st.Start("sess-1")
	time.Sleep(25 * time.Millisecond)
	st.Start("sess-2")

	if removed := st.Expire(); removed != 1 {
		t.Errorf("expired %d sessions, want 1", removed)
	}
	if st.Get("sess-1") != nil {
		t.Error("sess-1 should have expired")
	}
	if st.Get("sess-2") == nil {
		t.Error("sess-2 should survive")
	}
}
