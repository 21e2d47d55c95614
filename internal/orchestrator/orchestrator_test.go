package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/supervisor"
	"github.com/vesper-assistant/vesper/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAgent struct {
	failFirst int

	mu     sync.Mutex
	calls  int
	params []map[string]any
}

func (f *fakeAgent) Invoke(ctx context.Context, params map[string]any) (*capability.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.params = append(f.params, params)
	f.mu.Unlock()

	if call <= f.failFirst {
		return nil, errors.New("transient failure")
	}
	return &capability.Result{Summary: "done", Data: map[string]any{"ok": true}}, nil
}

func (f *fakeAgent) Cancel() {}

func (f *fakeAgent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	orch     *Orchestrator
	reminder *fakeAgent
	launcher *fakeAgent
	web      *fakeAgent
	files    *fakeAgent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := capability.NewRegistry()
	env := &testEnv{
		reminder: &fakeAgent{},
		launcher: &fakeAgent{},
		web:      &fakeAgent{},
		files:    &fakeAgent{},
	}

	descs := []struct {
		d *capability.Descriptor
		a capability.Agent
	}{
		{&capability.Descriptor{
			AgentID:          "reminder",
			SupportedIntents: []string{"reminder.create"},
			RequiredSlots:    []string{"text", "datetime"},
			MaxConcurrency:   1,
			DefaultTimeout:   time.Second,
		}, env.reminder},
		{&capability.Descriptor{
			AgentID:          "launcher",
			SupportedIntents: []string{"app.open"},
			RequiredSlots:    []string{"application"},
			MaxConcurrency:   1,
			DefaultTimeout:   time.Second,
			Priority:         5,
		}, env.launcher},
		{&capability.Descriptor{
			AgentID:          "web",
			SupportedIntents: []string{"web.search"},
			RequiredSlots:    []string{"search_query"},
			MaxConcurrency:   2,
			DefaultTimeout:   time.Second,
			BestEffort:       true,
		}, env.web},
		{&capability.Descriptor{
			AgentID:          "files",
			SupportedIntents: []string{"file.manage"},
			RequiredSlots:    []string{"file"},
			OptionalSlots:    []string{"directory", "content"},
			MaxConcurrency:   1,
			DefaultTimeout:   time.Second,
			Priority:         8,
		}, env.files},
	}
	for _, e := range descs {
		if err := reg.Register(e.d); err != nil {
			t.Fatal(err)
		}
		if err := reg.Bind(e.d.AgentID, e.a); err != nil {
			t.Fatal(err)
		}
	}

	orch, err := New(RequiredConfig{Registry: reg},
		WithLogger(zap.NewNop()),
		WithSupervisorConfig(supervisor.Config{
			MaxRetries:  2,
			BackoffBase: 5 * time.Millisecond,
			BackoffCap:  20 * time.Millisecond,
			CancelGrace: 50 * time.Millisecond,
			PlanBudget:  2 * time.Second,
			EventBuffer: 256,
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(orch.Close)
	env.orch = orch
	return env
}

func TestSubmitIntentSingleTask(t *testing.T) {
	env := newTestEnv(t)

	resp := env.orch.SubmitIntent(context.Background(), "sess-1", models.Intent{
		Name:       "reminder.create",
		Confidence: 0.92,
		Entities:   map[string]any{"text": "submit the report", "datetime": "3 PM"},
		RawText:    "remind me to submit the report at 3 PM",
	})

	if resp.OverallStatus != models.StatusSucceeded {
		t.Fatalf("status = %s, follow-up = %q", resp.OverallStatus, resp.FollowUpPrompt)
	}
	if len(resp.PerTask) != 1 || resp.PerTask[0].AgentID != "reminder" {
		t.Fatalf("per-task = %+v", resp.PerTask)
	}
	if env.reminder.callCount() != 1 {
		t.Errorf("reminder invoked %d times", env.reminder.callCount())
	}
}

func TestSubmitIntentRetriesTransientFailure(t *testing.T) {
	env := newTestEnv(t)
	env.reminder.failFirst = 2

	resp := env.orch.SubmitIntent(context.Background(), "sess-1", models.Intent{
		Name:       "reminder.create",
		Confidence: 0.9,
		Entities:   map[string]any{"text": "water plants", "datetime": "tomorrow"},
		RawText:    "remind me to water plants tomorrow",
	})

	if resp.OverallStatus != models.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded after retries", resp.OverallStatus)
	}
	if resp.PerTask[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.PerTask[0].Attempts)
	}
}

func TestSubmitIntentCompoundUtterance(t *testing.T) {
	env := newTestEnv(t)

	resp := env.orch.SubmitIntent(context.Background(), "sess-1", models.Intent{
		Name:       "app.open",
		Confidence: 0.88,
		Entities:   map[string]any{"application": "firefox", "search_query": "cheap flights"},
		RawText:    "open firefox and search for cheap flights",
	})

	if resp.OverallStatus != models.StatusSucceeded {
		t.Fatalf("status = %s, follow-up = %q", resp.OverallStatus, resp.FollowUpPrompt)
	}
	if len(resp.PerTask) != 2 {
		t.Fatalf("per-task count = %d, want 2", len(resp.PerTask))
	}
	if env.launcher.callCount() != 1 || env.web.callCount() != 1 {
		t.Errorf("launcher = %d, web = %d, want 1 each",
			env.launcher.callCount(), env.web.callCount())
	}
}

func TestSubmitIntentCompoundPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.web.failFirst = 100 // exhausts retries

	resp := env.orch.SubmitIntent(context.Background(), "sess-1", models.Intent{
		Name:       "app.open",
		Confidence: 0.88,
		Entities:   map[string]any{"application": "firefox", "search_query": "cheap flights"},
		RawText:    "open firefox and search for cheap flights",
	})

	if resp.OverallStatus != models.StatusPartialSuccess {
		t.Fatalf("status = %s, want partial_success", resp.OverallStatus)
	}
	if resp.FollowUpPrompt == "" {
		t.Error("partial success should carry a follow-up prompt")
	}
	var webResult *models.TaskResult
	for i := range resp.PerTask {
		if resp.PerTask[i].AgentID == "web" {
			webResult = &resp.PerTask[i]
		}
	}
	if webResult == nil || webResult.State != models.TaskFailed {
		t.Fatalf("web task = %+v, want failed", webResult)
	}
	if webResult.Attempts != 3 {
		t.Errorf("web attempts = %d, want 3", webResult.Attempts)
	}
}

func TestSubmitIntentAnaphoraAcrossTurns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.orch.SubmitIntent(ctx, "sess-1", models.Intent{
		Name:       "file.manage",
		Confidence: 0.9,
		Entities:   map[string]any{"file": "notes.txt"},
		RawText:    "create notes.txt",
	})
	if first.OverallStatus != models.StatusSucceeded {
		t.Fatalf("first turn status = %s", first.OverallStatus)
	}

	second := env.orch.SubmitIntent(ctx, "sess-1", models.Intent{
		Name:       "file.manage",
		Confidence: 0.9,
		Entities:   map[string]any{"file": "it"},
		RawText:    "delete it",
	})
	if second.OverallStatus != models.StatusSucceeded {
		t.Fatalf("second turn status = %s, follow-up = %q",
			second.OverallStatus, second.FollowUpPrompt)
	}

	env.files.mu.Lock()
	last := env.files.params[len(env.files.params)-1]
	env.files.mu.Unlock()
	if last["file"] != "notes.txt" {
		t.Errorf("anaphora bound to %v, want notes.txt", last["file"])
	}
}

func TestSubmitIntentAnaphoraWithoutContext(t *testing.T) {
	env := newTestEnv(t)

	resp := env.orch.SubmitIntent(context.Background(), "fresh", models.Intent{
		Name:       "file.manage",
		Confidence: 0.9,
		Entities:   map[string]any{"file": "it"},
		RawText:    "delete it",
	})

	if resp.OverallStatus != models.StatusFailed {
		t.Fatalf("status = %s, want failed", resp.OverallStatus)
	}
	if resp.FollowUpPrompt == "" {
		t.Error("expected a clarification prompt")
	}
	if env.files.callCount() != 0 {
		t.Error("no agent should run for an unresolvable reference")
	}
}

func TestSubmitIntentUnknownCapability(t *testing.T) {
	env := newTestEnv(t)

	resp := env.orch.SubmitIntent(context.Background(), "sess-1", models.Intent{
		Name:       "app.close",
		Confidence: 0.99,
		Entities:   map[string]any{"application": "firefox"},
		RawText:    "close firefox",
	})

	if resp.OverallStatus != models.StatusFailed {
		t.Fatalf("status = %s, want failed", resp.OverallStatus)
	}
	if resp.FollowUpPrompt == "" {
		t.Error("expected a follow-up prompt")
	}
}

func TestSubmitIntentLowConfidence(t *testing.T) {
	env := newTestEnv(t)

	resp := env.orch.SubmitIntent(context.Background(), "sess-1", models.Intent{
		Name:       "reminder.create",
		Confidence: 0.2,
		Entities:   map[string]any{"text": "x", "datetime": "y"},
		RawText:    "mumble",
	})

	if resp.OverallStatus != models.StatusFailed {
		t.Fatalf("status = %s, want failed", resp.OverallStatus)
	}
	if env.reminder.callCount() != 0 {
		t.Error("low-confidence intent must not reach an agent")
	}
}

func TestCancelActiveNoPlan(t *testing.T) {
	env := newTestEnv(t)

	if env.orch.CancelActive("nobody") {
		t.Error("CancelActive should report false with no in-flight plan")
	}
}

func TestEndSessionDropsContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.orch.SubmitIntent(ctx, "sess-1", models.Intent{
		Name:       "file.manage",
		Confidence: 0.9,
		Entities:   map[string]any{"file": "notes.txt"},
		RawText:    "create notes.txt",
	})
	env.orch.EndSession("sess-1")

	resp := env.orch.SubmitIntent(ctx, "sess-1", models.Intent{
		Name:       "file.manage",
		Confidence: 0.9,
		Entities:   map[string]any{"file": "it"},
		RawText:    "delete it",
	})
	if resp.OverallStatus != models.StatusFailed {
		t.Errorf("status = %s, want failed after session ended", resp.OverallStatus)
	}
}
