package capability

import (
	"fmt"
	"strings"
	"time"
)

// Descriptor declares an agent's capability: which intents it services, the
// slots it needs, and its execution limits. Descriptors are registered once
// at startup; the registry is append-only during normal operation.
type Descriptor struct {
	// AgentID uniquely identifies the agent.
	AgentID string `yaml:"agent_id"`
	// SupportedIntents lists exact intent names or glob prefixes ("file.*").
	SupportedIntents []string `yaml:"supported_intents"`
	// RequiredSlots must all be bound before a task may reach Running.
	RequiredSlots []string `yaml:"required_slots"`
	// OptionalSlots are bound when present.
	OptionalSlots []string `yaml:"optional_slots"`
	// MaxConcurrency caps simultaneous invocations across all plans.
	MaxConcurrency int `yaml:"max_concurrency"`
	// DefaultTimeout bounds one invocation unless the task overrides it.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// Priority orders capabilities within the same match specificity and
	// sequences overlapping tasks at decomposition time. Higher wins.
	Priority int `yaml:"priority"`
	// BestEffort marks tasks bound to this capability as tolerating upstream
	// failure: dependency edges into them substitute a null upstream result
	// instead of cascading cancellation.
	BestEffort bool `yaml:"best_effort"`
}

// Match specificity ranks, exact above glob prefix.
const (
	matchNone  = 0
	matchGlob  = 1
	matchExact = 2
)

// Validate checks the descriptor for registration.
func (d *Descriptor) Validate() error {
	if d.AgentID == "" {
		return fmt.Errorf("descriptor missing agent_id")
	}
	if len(d.SupportedIntents) == 0 {
		return fmt.Errorf("descriptor %s declares no supported intents", d.AgentID)
	}
	if d.MaxConcurrency < 1 {
		return fmt.Errorf("descriptor %s: max_concurrency must be >= 1, got %d", d.AgentID, d.MaxConcurrency)
	}
	return nil
}

// Match returns the specificity with which the descriptor services the given
// intent name: exact name match ranks above a glob prefix match ("file.*").
// A zero return means no match.
func (d *Descriptor) Match(intentName string) int {
	best := matchNone
	for _, pat := range d.SupportedIntents {
		switch {
		case pat == intentName:
			return matchExact
		case strings.HasSuffix(pat, ".*"):
			prefix := strings.TrimSuffix(pat, "*")
			if strings.HasPrefix(intentName, prefix) && best < matchGlob {
				best = matchGlob
			}
		case strings.HasSuffix(pat, "*"):
			prefix := strings.TrimSuffix(pat, "*")
			if strings.HasPrefix(intentName, prefix) && best < matchGlob {
				best = matchGlob
			}
		}
	}
	return best
}

// RequiresSlot reports whether the slot is one of the required slots.
func (d *Descriptor) RequiresSlot(slot string) bool {
	for _, s := range d.RequiredSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// DeclaredSlots returns required followed by optional slot names.
func (d *Descriptor) DeclaredSlots() []string {
	out := make([]string, 0, len(d.RequiredSlots)+len(d.OptionalSlots))
	out = append(out, d.RequiredSlots...)
	out = append(out, d.OptionalSlots...)
	return out
}
