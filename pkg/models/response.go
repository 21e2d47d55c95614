package models

// OverallStatus summarizes a plan's outcome for the presentation layer.
type OverallStatus string

const (
	// StatusSucceeded means every task succeeded.
	StatusSucceeded OverallStatus = "succeeded"
	// StatusPartialSuccess means some tasks succeeded and some did not.
	// Partial success is a normal completion, not a plan-level error.
	StatusPartialSuccess OverallStatus = "partial_success"
	// StatusFailed means no task succeeded, or resolution itself failed.
	StatusFailed OverallStatus = "failed"
)

// TaskResult is the per-task outcome reported in a Response.
type TaskResult struct {
	// TaskID identifies the task.
	TaskID string `json:"task_id"`
	// AgentID is the agent the task was bound to.
	AgentID string `json:"agent_id"`
	// State is the task's terminal state.
	State TaskState `json:"state"`
	// Payload is the agent's structured result on success.
	Payload any `json:"payload,omitempty"`
	// Err is the failure detail when the task did not succeed.
	Err string `json:"error,omitempty"`
	// Attempts is the number of invocation attempts made.
	Attempts int `json:"attempts,omitempty"`
	// Degraded marks a best-effort task that ran with a null upstream result.
	Degraded bool `json:"degraded,omitempty"`
}

// Response is the single structured result returned for one submitted intent.
type Response struct {
	// OverallStatus is the plan-level outcome.
	OverallStatus OverallStatus `json:"overall_status"`
	// PerTask lists each task's terminal outcome in dispatch order.
	PerTask []TaskResult `json:"per_task_results,omitempty"`
	// FollowUpPrompt, when set, is spoken/shown to the user to continue the
	// clarification loop or flag degraded output.
	FollowUpPrompt string `json:"follow_up_prompt,omitempty"`
}
