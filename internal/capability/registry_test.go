package capability

import (
	"errors"
	"testing"
	"time"
)

func desc(id string, priority int, intents ...string) *Descriptor {
	return &Descriptor{
		AgentID:          id,
		SupportedIntents: intents,
		RequiredSlots:    []string{"text"},
		MaxConcurrency:   1,
		DefaultTimeout:   5 * time.Second,
		Priority:         priority,
	}
}

func TestRegisterDuplicateAgent(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(desc("reminder", 0, "reminder.create")); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := r.Register(desc("reminder", 0, "reminder.create"))
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Errorf("expected ErrDuplicateAgent, got %v", err)
	}
}

func TestRegisterInvalidDescriptor(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&Descriptor{AgentID: "", SupportedIntents: []string{"x"}, MaxConcurrency: 1}); err == nil {
		t.Error("expected error for missing agent_id")
	}
	if err := r.Register(&Descriptor{AgentID: "a", MaxConcurrency: 1}); err == nil {
		t.Error("expected error for empty supported_intents")
	}
	if err := r.Register(&Descriptor{AgentID: "a", SupportedIntents: []string{"x"}, MaxConcurrency: 0}); err == nil {
		t.Error("expected error for zero max_concurrency")
	}
}

func TestFindExactBeatsGlob(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(desc("files", 10, "file.*")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(desc("file-opener", 0, "file.manage")); err != nil {
		t.Fatal(err)
	}

	got := r.Find("file.manage")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	// Exact match ranks above glob regardless of priority.
	if got[0].AgentID != "file-opener" {
		t.Errorf("expected exact match first, got %s", got[0].AgentID)
	}
}

func TestFindPriorityThenAgentID(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(desc("zeta", 5, "web.search")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(desc("alpha", 5, "web.search")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(desc("mid", 9, "web.search")); err != nil {
		t.Fatal(err)
	}

	got := r.Find("web.search")
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if got[0].AgentID != "mid" {
		t.Errorf("expected highest priority first, got %s", got[0].AgentID)
	}
	// Equal priority breaks ties by agent ID for determinism.
	if got[1].AgentID != "alpha" || got[2].AgentID != "zeta" {
		t.Errorf("expected alpha then zeta, got %s then %s", got[1].AgentID, got[2].AgentID)
	}
}

func TestFindNoCapability(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(desc("reminder", 0, "reminder.create")); err != nil {
		t.Fatal(err)
	}

	if got := r.Find("close_app"); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestBindUnknownAgent(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind("ghost", nil); err == nil {
		t.Error("expected error binding unregistered agent")
	}
}

func TestDescriptorMatch(t *testing.T) {
	d := desc("files", 0, "file.manage", "file.*")

	if got := d.Match("file.manage"); got != matchExact {
		t.Errorf("Match(file.manage) = %d, want exact", got)
	}
	if got := d.Match("file.delete"); got != matchGlob {
		t.Errorf("Match(file.delete) = %d, want glob", got)
	}
	if got := d.Match("web.search"); got != matchNone {
		t.Errorf("Match(web.search) = %d, want none", got)
	}
}
