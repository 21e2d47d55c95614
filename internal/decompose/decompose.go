// Package decompose expands a resolved intent into an executable plan of
// atomic tasks, each bound to exactly one capability.
package decompose

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vesper-assistant/vesper/internal/graph"
	"github.com/vesper-assistant/vesper/internal/resolve"
	"github.com/vesper-assistant/vesper/internal/session"
	"github.com/vesper-assistant/vesper/pkg/models"
)

// conjunctionRe splits a compound utterance into subcommand segments, the
// same cues the NLU pipeline uses: "and", "then", and comma.
var conjunctionRe = regexp.MustCompile(`(?i)\s+(?:and|then|,)\s+|\s*,\s+`)

// SplitConjunctions splits an utterance on conjunction markers. Empty
// segments are dropped.
func SplitConjunctions(text string) []string {
	parts := conjunctionRe.Split(strings.TrimSpace(text), -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Decomposer expands resolved intents into plans. It consults the resolver
// to bind extra conjunction segments to their own capabilities.
type Decomposer struct {
	resolver *resolve.Resolver
	logger   *zap.Logger
}

// NewDecomposer creates a Decomposer.
func NewDecomposer(r *resolve.Resolver, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{resolver: r, logger: logger}
}

// Decompose produces a plan for one resolved intent. Single-capability
// intents yield a one-task plan; compound utterances (conjunction markers in
// the raw text) are split into one task per segment, bound via the resolver.
// Anaphoric slot values are substituted from the session context first;
// unresolved anaphora propagates as *resolve.UnresolvedError rather than a
// malformed task. The intent itself is never mutated.
func (d *Decomposer) Decompose(res *resolve.Resolution, sess *session.Session) (*models.Plan, error) {
	entities, err := resolveAnaphora(res.Intent, sess)
	if err != nil {
		return nil, err
	}

	resolutions := d.segmentResolutions(res, entities)

	now := time.Now()
	tasks := make([]*models.Task, len(resolutions))
	for i, sr := range resolutions {
		tasks[i] = &models.Task{
			ID:        uuid.NewString(),
			AgentID:   sr.Descriptor.AgentID,
			Params:    sr.Params,
			State:     models.TaskPending,
			Seq:       i,
			CreatedAt: now,
		}
	}

	d.linkOverlaps(tasks, resolutions)

	plan := &models.Plan{
		ID:         uuid.NewString(),
		IntentName: res.Intent.Name,
		RawText:    res.Intent.RawText,
		Tasks:      tasks,
		CreatedAt:  now,
	}

	// The decomposer must reject cyclic plans rather than submit them.
	if _, err := graph.Build(plan.Tasks); err != nil {
		return nil, fmt.Errorf("decompose %q: %w", res.Intent.Name, err)
	}
	return plan, nil
}

// segmentResolutions binds each conjunction segment to a capability. On any
// segment that cannot bind, decomposition falls back to a single-task plan
// for the primary resolution.
func (d *Decomposer) segmentResolutions(res *resolve.Resolution, entities map[string]any) []*resolve.Resolution {
	segments := SplitConjunctions(res.Intent.RawText)
	if len(segments) <= 1 {
		return []*resolve.Resolution{d.primaryResolution(res, entities, res.Intent.RawText)}
	}

	attributed := attributeEntities(entities, segments)

	// Rebind the primary capability against the first segment's entities so
	// it does not swallow slots that belong to later segments.
	first, err := d.resolver.Resolve(models.Intent{
		Name:       res.Intent.Name,
		Confidence: res.Intent.Confidence,
		Entities:   attributed[0],
		RawText:    segments[0],
	})
	if err != nil {
		d.logger.Debug("compound split abandoned, first segment does not bind alone",
			zap.String("intent", res.Intent.Name),
			zap.Error(err))
		return []*resolve.Resolution{d.primaryResolution(res, entities, res.Intent.RawText)}
	}

	out := []*resolve.Resolution{first}
	for i := 1; i < len(segments); i++ {
		sr, err := d.resolver.ResolveSegment(attributed[i], res.Descriptor.AgentID)
		if err != nil {
			d.logger.Debug("compound split abandoned, segment does not bind",
				zap.String("segment", segments[i]),
				zap.Error(err))
			return []*resolve.Resolution{d.primaryResolution(res, entities, res.Intent.RawText)}
		}
		out = append(out, sr)
	}
	return out
}

// primaryResolution re-binds the primary capability against the
// anaphora-substituted entities, falling back to the original resolution if
// rebinding fails (substitution never removes slots, so it should not).
func (d *Decomposer) primaryResolution(res *resolve.Resolution, entities map[string]any, rawText string) *resolve.Resolution {
	rebound, err := d.resolver.Resolve(models.Intent{
		Name:       res.Intent.Name,
		Confidence: res.Intent.Confidence,
		Entities:   entities,
		RawText:    rawText,
	})
	if err != nil {
		return &resolve.Resolution{Intent: res.Intent, Descriptor: res.Descriptor, Params: res.Params}
	}
	rebound.Intent = res.Intent
	return rebound
}

// linkOverlaps sequences tasks whose parameter sets overlap: the task bound
// to the lower-priority capability depends on the higher-priority one, tied
// by segment order. Disjoint tasks stay independent. The edge is best-effort
// when the downstream capability declares it.
func (d *Decomposer) linkOverlaps(tasks []*models.Task, resolutions []*resolve.Resolution) {
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			if !paramsOverlap(tasks[i].Params, tasks[j].Params) {
				continue
			}
			up, down := i, j
			if resolutions[j].Descriptor.Priority > resolutions[i].Descriptor.Priority {
				up, down = j, i
			}
			tasks[down].DependsOn = append(tasks[down].DependsOn, models.Dependency{
				TaskID:     tasks[up].ID,
				BestEffort: resolutions[down].Descriptor.BestEffort,
			})
		}
	}
}

// paramsOverlap reports whether two parameter sets share a slot name.
func paramsOverlap(a, b map[string]any) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// attributeEntities assigns each entity to the segment containing its value
// text. Entities whose values appear in no segment (typically substituted
// anaphora) are shared with every segment; tasks that both bind such a slot
// end up with overlapping parameter sets and get sequenced by priority.
func attributeEntities(entities map[string]any, segments []string) []map[string]any {
	out := make([]map[string]any, len(segments))
	for i := range out {
		out[i] = make(map[string]any)
	}

	lowered := make([]string, len(segments))
	for i, s := range segments {
		lowered[i] = strings.ToLower(s)
	}

	slots := make([]string, 0, len(entities))
	for slot := range entities {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	for _, slot := range slots {
		value := entities[slot]
		text := strings.ToLower(strings.TrimSpace(fmt.Sprint(value)))
		target := -1
		if text != "" {
			for i, seg := range lowered {
				if strings.Contains(seg, text) {
					target = i
					break
				}
			}
		}
		if target >= 0 {
			out[target][slot] = value
			continue
		}
		for i := range out {
			out[i][slot] = value
		}
	}
	return out
}

// anaphors are slot values that refer back to earlier conversation turns.
var anaphors = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "them": {},
	"that one": {}, "that file": {}, "the same": {},
}

// resolveAnaphora substitutes anaphoric slot values from the session
// context. It returns a fresh entity map; the intent is read-only. Slots are
// walked in sorted order and every unresolvable anaphor is collected, so the
// error names the full set deterministically and one clarification turn can
// address all of them.
func resolveAnaphora(intent models.Intent, sess *session.Session) (map[string]any, error) {
	slots := make([]string, 0, len(intent.Entities))
	for slot := range intent.Entities {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	out := make(map[string]any, len(intent.Entities))
	var unresolved []string
	for _, slot := range slots {
		value := intent.Entities[slot]
		out[slot] = value

		text, ok := value.(string)
		if !ok {
			continue
		}
		if _, isAnaphor := anaphors[strings.ToLower(strings.TrimSpace(text))]; !isAnaphor {
			continue
		}

		if sess != nil && sess.Context != nil {
			if prior, found := sess.Context[slot]; found {
				out[slot] = prior
				continue
			}
		}
		unresolved = append(unresolved, slot)
	}
	if len(unresolved) > 0 {
		return nil, &resolve.UnresolvedError{
			IntentName:   intent.Name,
			Reason:       resolve.ReasonAnaphora,
			MissingSlots: unresolved,
		}
	}
	return out, nil
}
