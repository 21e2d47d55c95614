package supervisor

import "time"

// EventType represents the type of supervisor event.
type EventType string

const (
	// EventPlanStarted indicates plan execution has begun.
	EventPlanStarted EventType = "plan_started"
	// EventPlanCompleted indicates every task in the plan reached a
	// terminal state.
	EventPlanCompleted EventType = "plan_completed"
	// EventTaskStarted indicates a task attempt has been dispatched.
	EventTaskStarted EventType = "task_started"
	// EventTaskSucceeded indicates a task completed successfully.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskRetrying indicates a failed attempt will be retried after
	// backoff.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskFailed indicates a task exhausted its retries.
	EventTaskFailed EventType = "task_failed"
	// EventTaskTimedOut indicates a task's attempt deadline elapsed with no
	// retries left.
	EventTaskTimedOut EventType = "task_timed_out"
	// EventTaskCancelled indicates a task was cancelled before completing,
	// either by cascade from a failed upstream or by plan cancellation.
	EventTaskCancelled EventType = "task_cancelled"
)

// Event is emitted by the supervisor as plan execution progresses. The
// presentation layer subscribes to these to narrate what the assistant is
// doing.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// PlanID is the plan being executed.
	PlanID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// AgentID is the agent the task is bound to, if applicable.
	AgentID string
	// Attempt is the attempt number for task events, starting at 1.
	Attempt int
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
