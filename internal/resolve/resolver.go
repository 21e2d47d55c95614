// Package resolve maps normalized intents to capability bindings.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/pkg/models"
)

// DefaultMinConfidence is the confidence floor below which an intent is
// treated as unresolved regardless of slot completeness.
const DefaultMinConfidence = 0.55

// Resolution binds an intent to exactly one capability with a normalized
// parameter set.
type Resolution struct {
	// Intent is the intent being resolved. Never mutated.
	Intent models.Intent
	// Descriptor is the selected capability.
	Descriptor *capability.Descriptor
	// Params maps the descriptor's slot names to entity values.
	Params map[string]any
}

// AmbiguousError reports multiple candidates tied at the top rank. The layer
// above is expected to prompt the user; the resolver never guesses.
type AmbiguousError struct {
	IntentName string
	Candidates []string
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("intent %q is ambiguous between %s", e.IntentName, strings.Join(e.Candidates, ", "))
}

// Unresolved reasons.
const (
	ReasonLowConfidence = "low_confidence"
	ReasonMissingSlots  = "missing_slots"
	ReasonAnaphora      = "unresolved_anaphora"
)

// UnresolvedError reports an intent that cannot be bound yet. It names the
// missing slots so an external clarification loop can ask for them.
type UnresolvedError struct {
	IntentName   string
	Reason       string
	MissingSlots []string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	if len(e.MissingSlots) > 0 {
		return fmt.Sprintf("intent %q unresolved (%s): missing %s", e.IntentName, e.Reason, strings.Join(e.MissingSlots, ", "))
	}
	return fmt.Sprintf("intent %q unresolved (%s)", e.IntentName, e.Reason)
}

// Resolver maps a normalized intent plus extracted entities to one candidate
// capability, resolving ambiguity via ranking and slot-name normalization.
type Resolver struct {
	registry      *capability.Registry
	matcher       SlotMatcher
	minConfidence float64
	logger        *zap.Logger
}

// NewResolver creates a Resolver with the default matcher and confidence
// threshold.
func NewResolver(reg *capability.Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry:      reg,
		matcher:       NormalizingMatcher{},
		minConfidence: DefaultMinConfidence,
		logger:        logger,
	}
}

// SetMatcher replaces the slot matcher. Not safe after first use.
func (r *Resolver) SetMatcher(m SlotMatcher) {
	if m != nil {
		r.matcher = m
	}
}

// SetMinConfidence replaces the confidence threshold.
func (r *Resolver) SetMinConfidence(min float64) {
	r.minConfidence = min
}

// Registry exposes the backing registry for collaborators (decomposer).
func (r *Resolver) Registry() *capability.Registry {
	return r.registry
}

// Resolve maps an intent to a single capability binding.
// It returns *AmbiguousError when multiple candidates tie at the top rank,
// *UnresolvedError for low confidence or missing required slots, and
// capability.ErrNoCapability (wrapped) when nothing matches.
func (r *Resolver) Resolve(intent models.Intent) (*Resolution, error) {
	if intent.Confidence < r.minConfidence {
		r.logger.Debug("intent below confidence threshold",
			zap.String("intent", intent.Name),
			zap.Float64("confidence", intent.Confidence),
			zap.Float64("threshold", r.minConfidence))
		return nil, &UnresolvedError{IntentName: intent.Name, Reason: ReasonLowConfidence}
	}

	candidates := r.registry.Find(intent.Name)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("resolve %q: %w", intent.Name, capability.ErrNoCapability)
	}

	top := topRank(intent.Name, candidates)
	if len(top) > 1 {
		ids := make([]string, len(top))
		for i, d := range top {
			ids[i] = d.AgentID
		}
		return nil, &AmbiguousError{IntentName: intent.Name, Candidates: ids}
	}

	desc := top[0]
	params, missing := r.bindParams(intent.Entities, desc)
	if len(missing) > 0 {
		return nil, &UnresolvedError{
			IntentName:   intent.Name,
			Reason:       ReasonMissingSlots,
			MissingSlots: missing,
		}
	}

	r.logger.Debug("intent resolved",
		zap.String("intent", intent.Name),
		zap.String("agent", desc.AgentID))

	return &Resolution{Intent: intent, Descriptor: desc, Params: params}, nil
}

// ResolveSegment binds a conjunction segment of a compound utterance to the
// capability whose required slots are fully covered by the segment's
// entities. Candidates are ranked by required-slot coverage, then priority,
// then agent ID. The primary intent's capability is excluded so compound
// plans bind distinct capabilities.
func (r *Resolver) ResolveSegment(entities map[string]any, excludeAgentID string) (*Resolution, error) {
	type scored struct {
		d      *capability.Descriptor
		params map[string]any
		bound  int
	}
	var viable []scored

	for _, d := range r.registry.All() {
		if d.AgentID == excludeAgentID {
			continue
		}
		params, missing := r.bindParams(entities, d)
		if len(missing) > 0 || len(d.RequiredSlots) == 0 {
			continue
		}
		viable = append(viable, scored{d: d, params: params, bound: len(params)})
	}

	if len(viable) == 0 {
		return nil, fmt.Errorf("resolve segment: %w", capability.ErrNoCapability)
	}

	sort.Slice(viable, func(i, j int) bool {
		if viable[i].bound != viable[j].bound {
			return viable[i].bound > viable[j].bound
		}
		if viable[i].d.Priority != viable[j].d.Priority {
			return viable[i].d.Priority > viable[j].d.Priority
		}
		return viable[i].d.AgentID < viable[j].d.AgentID
	})

	best := viable[0]
	return &Resolution{Descriptor: best.d, Params: best.params}, nil
}

// bindParams maps entity slot names onto the descriptor's declared slots via
// the slot matcher and reports any required slots left unbound.
func (r *Resolver) bindParams(entities map[string]any, desc *capability.Descriptor) (map[string]any, []string) {
	declared := desc.DeclaredSlots()
	params := make(map[string]any, len(entities))

	// Deterministic iteration over the entity map.
	slots := make([]string, 0, len(entities))
	for slot := range entities {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	for _, slot := range slots {
		if target, ok := r.matcher.Match(slot, declared); ok {
			if _, taken := params[target]; !taken {
				params[target] = entities[slot]
			}
		}
	}

	var missing []string
	for _, req := range desc.RequiredSlots {
		if _, ok := params[req]; !ok {
			missing = append(missing, req)
		}
	}
	return params, missing
}

// topRank returns the leading run of candidates sharing the first
// candidate's match specificity and priority. Find already orders
// candidates, so ties are adjacent.
func topRank(intentName string, candidates []*capability.Descriptor) []*capability.Descriptor {
	first := candidates[0]
	firstSpec := first.Match(intentName)
	top := []*capability.Descriptor{first}
	for _, d := range candidates[1:] {
		if d.Match(intentName) != firstSpec || d.Priority != first.Priority {
			break
		}
		top = append(top, d)
	}
	return top
}
