package models

import "time"

// Plan is the DAG of tasks produced for one resolved intent. It owns its
// tasks and exists only for the duration of that intent's execution.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// IntentName is the intent this plan was decomposed from.
	IntentName string `json:"intent_name"`
	// RawText is the utterance the intent was extracted from.
	RawText string `json:"raw_text,omitempty"`
	// Tasks are the plan's tasks in stable dispatch (Seq) order.
	Tasks []*Task `json:"tasks"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
}

// Task returns the task with the given ID, or nil if not present.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Completed reports whether every task has reached a terminal state.
func (p *Plan) Completed() bool {
	for _, t := range p.Tasks {
		if !t.State.Terminal() {
			return false
		}
	}
	return true
}
