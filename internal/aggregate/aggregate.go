// Package aggregate folds per-task outcomes into the single structured
// response returned for a submitted intent, and turns resolution failures
// into follow-up prompts for the clarification loop.
package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/resolve"
	"github.com/vesper-assistant/vesper/pkg/models"
)

// Aggregate builds the response for an executed plan. Every task succeeded
// means success; none means failure; anything else is partial success, which
// is a normal completion rather than a plan-level error.
func Aggregate(plan *models.Plan, results map[string]*models.TaskResult) *models.Response {
	perTask := make([]models.TaskResult, 0, len(plan.Tasks))
	succeeded, degraded := 0, 0
	var failedAgents []string

	for _, t := range plan.Tasks {
		res := results[t.ID]
		if res == nil {
			// A task the supervisor never reported is a defect; surface it
			// rather than silently shrinking the response.
			res = &models.TaskResult{
				TaskID:  t.ID,
				AgentID: t.AgentID,
				State:   models.TaskFailed,
				Err:     "no result reported",
			}
		}
		perTask = append(perTask, *res)

		switch {
		case res.State == models.TaskSucceeded:
			succeeded++
			if res.Degraded {
				degraded++
			}
		default:
			failedAgents = append(failedAgents, res.AgentID)
		}
	}

	out := &models.Response{PerTask: perTask}
	switch {
	case len(perTask) == 0:
		out.OverallStatus = models.StatusFailed
	case succeeded == len(perTask):
		out.OverallStatus = models.StatusSucceeded
	case succeeded == 0:
		out.OverallStatus = models.StatusFailed
	default:
		out.OverallStatus = models.StatusPartialSuccess
	}

	// A degraded success means a best-effort upstream in the same plan failed,
	// so degraded results only ever occur alongside partial success. The note
	// rides on the partial-success prompt.
	if out.OverallStatus == models.StatusPartialSuccess {
		out.FollowUpPrompt = fmt.Sprintf(
			"Part of that didn't finish (%s). Want me to try again?",
			strings.Join(dedupe(failedAgents), ", "))
		if degraded > 0 {
			out.FollowUpPrompt += " Some results may be incomplete."
		}
	}
	return out
}

// ResolutionFailure maps a resolution or decomposition error to a failed
// response whose follow-up prompt keeps the conversation going.
func ResolutionFailure(err error) *models.Response {
	out := &models.Response{OverallStatus: models.StatusFailed}

	var ambiguous *resolve.AmbiguousError
	var unresolved *resolve.UnresolvedError
	switch {
	case errors.As(err, &ambiguous):
		out.FollowUpPrompt = fmt.Sprintf(
			"I can do that a few different ways (%s). Which one did you mean?",
			strings.Join(ambiguous.Candidates, ", "))
	case errors.As(err, &unresolved):
		switch unresolved.Reason {
		case resolve.ReasonLowConfidence:
			out.FollowUpPrompt = "I didn't quite catch that. Could you rephrase?"
		case resolve.ReasonMissingSlots:
			out.FollowUpPrompt = fmt.Sprintf(
				"I need a bit more to do that: %s.",
				strings.Join(unresolved.MissingSlots, ", "))
		case resolve.ReasonAnaphora:
			out.FollowUpPrompt = "I'm not sure what you're referring to. Could you name it?"
		default:
			out.FollowUpPrompt = "I couldn't work out what to do with that."
		}
	case errors.Is(err, capability.ErrNoCapability):
		out.FollowUpPrompt = "I don't know how to do that yet."
	default:
		out.FollowUpPrompt = "Something went wrong putting that together. Try again?"
	}
	return out
}

// dedupe returns the unique values in order of first appearance.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
