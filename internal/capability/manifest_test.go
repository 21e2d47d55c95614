package capability

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleManifest = `
capabilities:
  - agent_id: reminder
    supported_intents: [reminder.create, reminder.*]
    required_slots: [text, datetime]
    max_concurrency: 2
    default_timeout: 5s
    priority: 10
  - agent_id: web
    supported_intents: [web.search]
    required_slots: [search_query]
    default_timeout: 8s
    best_effort: true
`

func TestParseManifest(t *testing.T) {
	descs, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}

	reminder := descs[0]
	if reminder.AgentID != "reminder" {
		t.Errorf("agent_id = %q", reminder.AgentID)
	}
	if reminder.MaxConcurrency != 2 {
		t.Errorf("max_concurrency = %d, want 2", reminder.MaxConcurrency)
	}
	if reminder.DefaultTimeout != 5*time.Second {
		t.Errorf("default_timeout = %v, want 5s", reminder.DefaultTimeout)
	}

	web := descs[1]
	// Omitted max_concurrency defaults to 1.
	if web.MaxConcurrency != 1 {
		t.Errorf("web max_concurrency = %d, want 1", web.MaxConcurrency)
	}
	if !web.BestEffort {
		t.Error("web should be best_effort")
	}
}

func TestParseManifestBadTimeout(t *testing.T) {
	bad := `
capabilities:
  - agent_id: reminder
    supported_intents: [reminder.create]
    default_timeout: soon
`
	if _, err := ParseManifest([]byte(bad)); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestRegisterManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capabilities.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := RegisterManifest(r, path); err != nil {
		t.Fatalf("register manifest: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("expected 2 registered, got %d", r.Count())
	}
}
