package reminder

import (
	"context"
	"fmt"

	"github.com/vesper-assistant/vesper/internal/capability"
)

// Agent services reminder.create intents against the Store.
type Agent struct {
	store *Store
}

// NewAgent creates the reminder agent.
func NewAgent(store *Store) *Agent {
	return &Agent{store: store}
}

// Invoke creates a reminder from the bound slots.
func (a *Agent) Invoke(ctx context.Context, params map[string]any) (*capability.Result, error) {
	text, ok := stringParam(params, "text")
	if !ok {
		return nil, fmt.Errorf("reminder: missing text param")
	}
	remindAt, ok := stringParam(params, "datetime")
	if !ok {
		return nil, fmt.Errorf("reminder: missing datetime param")
	}

	id, err := a.store.Add(ctx, text, remindAt)
	if err != nil {
		return nil, err
	}
	return &capability.Result{
		Summary: fmt.Sprintf("Reminder set: %q at %s", text, remindAt),
		Data: map[string]any{
			"reminder_id": id,
			"text":        text,
			"remind_at":   remindAt,
		},
	}, nil
}

// Cancel is a no-op: reminder writes are effectively instant.
func (a *Agent) Cancel() {}

// stringParam fetches a non-empty string slot value.
func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s := fmt.Sprint(v)
	if s == "" {
		return "", false
	}
	return s, true
}
