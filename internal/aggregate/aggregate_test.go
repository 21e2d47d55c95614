package aggregate

import (
	"errors"
	"strings"
	"testing"

	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/resolve"
	"github.com/vesper-assistant/vesper/pkg/models"
)

func plan(ids ...string) *models.Plan {
	p := &models.Plan{ID: "plan-1", IntentName: "test.intent"}
	for i, id := range ids {
		p.Tasks = append(p.Tasks, &models.Task{ID: id, AgentID: "agent-" + id, Seq: i})
	}
	return p
}

func result(id string, state models.TaskState) *models.TaskResult {
	return &models.TaskResult{TaskID: id, AgentID: "agent-" + id, State: state}
}

func TestAggregateAllSucceeded(t *testing.T) {
	p := plan("a", "b")
	results := map[string]*models.TaskResult{
		"a": result("a", models.TaskSucceeded),
		"b": result("b", models.TaskSucceeded),
	}

	resp := Aggregate(p, results)
	if resp.OverallStatus != models.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", resp.OverallStatus)
	}
	if len(resp.PerTask) != 2 {
		t.Fatalf("per-task count = %d", len(resp.PerTask))
	}
	if resp.FollowUpPrompt != "" {
		t.Errorf("unexpected follow-up: %q", resp.FollowUpPrompt)
	}
	// Dispatch order is preserved.
	if resp.PerTask[0].TaskID != "a" || resp.PerTask[1].TaskID != "b" {
		t.Errorf("per-task order = %v", resp.PerTask)
	}
}

func TestAggregateAllFailed(t *testing.T) {
	p := plan("a", "b")
	results := map[string]*models.TaskResult{
		"a": result("a", models.TaskFailed),
		"b": result("b", models.TaskCancelled),
	}

	resp := Aggregate(p, results)
	if resp.OverallStatus != models.StatusFailed {
		t.Fatalf("status = %s, want failed", resp.OverallStatus)
	}
}

func TestAggregatePartialSuccess(t *testing.T) {
	p := plan("a", "b")
	results := map[string]*models.TaskResult{
		"a": result("a", models.TaskSucceeded),
		"b": result("b", models.TaskTimedOut),
	}

	resp := Aggregate(p, results)
	if resp.OverallStatus != models.StatusPartialSuccess {
		t.Fatalf("status = %s, want partial_success", resp.OverallStatus)
	}
	if !strings.Contains(resp.FollowUpPrompt, "agent-b") {
		t.Errorf("follow-up should name the failed agent: %q", resp.FollowUpPrompt)
	}
}

func TestAggregateDegradedFollowUp(t *testing.T) {
	// A degraded success only happens when a best-effort upstream failed, so
	// the plan as a whole is a partial success.
	p := plan("a", "b")
	degraded := result("b", models.TaskSucceeded)
	degraded.Degraded = true
	results := map[string]*models.TaskResult{
		"a": result("a", models.TaskFailed),
		"b": degraded,
	}

	resp := Aggregate(p, results)
	if resp.OverallStatus != models.StatusPartialSuccess {
		t.Fatalf("status = %s, want partial_success", resp.OverallStatus)
	}
	if !strings.Contains(resp.FollowUpPrompt, "agent-a") {
		t.Errorf("follow-up should name the failed agent: %q", resp.FollowUpPrompt)
	}
	if !strings.Contains(resp.FollowUpPrompt, "incomplete") {
		t.Errorf("follow-up should note degraded results: %q", resp.FollowUpPrompt)
	}
}

func TestAggregateMissingResult(t *testing.T) {
	p := plan("a")

	resp := Aggregate(p, map[string]*models.TaskResult{})
	if resp.OverallStatus != models.StatusFailed {
		t.Fatalf("status = %s, want failed", resp.OverallStatus)
	}
	if resp.PerTask[0].Err == "" {
		t.Error("missing result should be surfaced in the per-task error")
	}
}

func TestResolutionFailureAmbiguous(t *testing.T) {
	err := &resolve.AmbiguousError{IntentName: "music.play", Candidates: []string{"spotify", "local-player"}}

	resp := ResolutionFailure(err)
	if resp.OverallStatus != models.StatusFailed {
		t.Fatalf("status = %s", resp.OverallStatus)
	}
	if !strings.Contains(resp.FollowUpPrompt, "spotify") {
		t.Errorf("follow-up should list candidates: %q", resp.FollowUpPrompt)
	}
}

func TestResolutionFailureMissingSlots(t *testing.T) {
	err := &resolve.UnresolvedError{
		IntentName:   "reminder.create",
		Reason:       resolve.ReasonMissingSlots,
		MissingSlots: []string{"datetime"},
	}

	resp := ResolutionFailure(err)
	if !strings.Contains(resp.FollowUpPrompt, "datetime") {
		t.Errorf("follow-up should name the missing slot: %q", resp.FollowUpPrompt)
	}
}

func TestResolutionFailureReasons(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"low confidence", &resolve.UnresolvedError{Reason: resolve.ReasonLowConfidence}},
		{"anaphora", &resolve.UnresolvedError{Reason: resolve.ReasonAnaphora}},
		{"no capability", capability.ErrNoCapability},
		{"wrapped no capability", errors.Join(errors.New("resolve"), capability.ErrNoCapability)},
		{"generic", errors.New("boom")},
	}

	for _, tt := range tests {
		resp := ResolutionFailure(tt.err)
		if resp.OverallStatus != models.StatusFailed {
			t.Errorf("%s: status = %s, want failed", tt.name, resp.OverallStatus)
		}
		if resp.FollowUpPrompt == "" {
			t.Errorf("%s: follow-up prompt missing", tt.name)
		}
	}
}
