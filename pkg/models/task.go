package models

import "time"

// TaskState represents the current state of a task.
type TaskState string

const (
	// TaskPending indicates the task has not started (or is awaiting a retry).
	TaskPending TaskState = "pending"
	// TaskRunning indicates the task's agent invocation is in flight.
	TaskRunning TaskState = "running"
	// TaskSucceeded indicates the task completed successfully.
	TaskSucceeded TaskState = "succeeded"
	// TaskFailed indicates the task failed after retry exhaustion.
	TaskFailed TaskState = "failed"
	// TaskTimedOut indicates the task exceeded its invocation timeout or the plan budget.
	TaskTimedOut TaskState = "timed_out"
	// TaskCancelled indicates the task was cancelled, directly or by cascade.
	TaskCancelled TaskState = "cancelled"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskRunning, TaskSucceeded, TaskFailed, TaskTimedOut, TaskCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is final. A Failed or TimedOut task may
// return to Pending while retry budget remains; once the supervisor records
// the state it is final.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskTimedOut, TaskCancelled:
		return true
	default:
		return false
	}
}

// Dependency is an edge in a plan's task DAG.
type Dependency struct {
	// TaskID is the upstream task that must reach a terminal state first.
	TaskID string `json:"task_id"`
	// BestEffort tolerates upstream failure: the dependent proceeds with a
	// null upstream result instead of being cancelled by cascade.
	BestEffort bool `json:"best_effort,omitempty"`
}

// Task is one atomic unit of work bound to exactly one agent invocation.
// Tasks are created by the decomposer and owned exclusively by the execution
// supervisor for their lifetime.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// AgentID references the capability descriptor bound to this task.
	AgentID string `json:"agent_id"`
	// Params maps resolved slot names to values for the agent invocation.
	Params map[string]any `json:"params,omitempty"`
	// DependsOn lists same-plan dependency edges.
	DependsOn []Dependency `json:"depends_on,omitempty"`
	// State is the current task state. Mutated only by the supervisor.
	State TaskState `json:"state"`
	// Seq is the stable dispatch order, assigned in entity-extraction order
	// at decomposition time.
	Seq int `json:"seq"`
	// Timeout overrides the descriptor's default timeout when non-zero.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Attempts is the number of invocation attempts made so far.
	Attempts int `json:"attempts,omitempty"`
	// Err holds the last error message when the task ended non-success.
	Err string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}

// DependsOnTask reports whether the task has an edge on the given task ID.
func (t *Task) DependsOnTask(id string) bool {
	for _, d := range t.DependsOn {
		if d.TaskID == id {
			return true
		}
	}
	return false
}
