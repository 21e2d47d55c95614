// Package models defines the shared data model for the orchestration core.
package models

// Intent is the structured representation of a user goal, produced by the
// external speech/NLU pipeline. It is immutable once created: the core only
// reads it and derives Tasks from it.
type Intent struct {
	// Name is the normalized intent label, e.g. "reminder.create".
	Name string `json:"name"`
	// Confidence is the NLU confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Entities maps slot names to extracted values.
	Entities map[string]any `json:"entities,omitempty"`
	// RawText is the original utterance the intent was extracted from.
	RawText string `json:"raw_text,omitempty"`
}
