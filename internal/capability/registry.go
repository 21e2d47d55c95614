package capability

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateAgent indicates a registration conflict on agent_id.
// It is a configuration defect, never retried.
var ErrDuplicateAgent = errors.New("duplicate agent id")

// ErrNoCapability indicates that no registered agent matches an intent.
var ErrNoCapability = errors.New("no capability matches intent")

// Registry holds the set of known agents and the intent patterns each can
// service. It is a pure lookup structure: registration happens at startup
// and the read path is safe for concurrent lookup.
type Registry struct {
	// descriptors maps agent IDs to their capability declarations.
	descriptors map[string]*Descriptor
	// agents maps agent IDs to their runtime implementations.
	agents map[string]Agent
	// mu protects both maps during startup registration.
	mu sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*Descriptor),
		agents:      make(map[string]Agent),
	}
}

// Register adds a capability descriptor. It fails with ErrDuplicateAgent if
// the agent_id is already present.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.AgentID]; exists {
		return fmt.Errorf("register %s: %w", d.AgentID, ErrDuplicateAgent)
	}
	r.descriptors[d.AgentID] = d
	return nil
}

// Bind attaches the runtime agent implementation to a registered descriptor.
func (r *Registry) Bind(agentID string, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[agentID]; !exists {
		return fmt.Errorf("bind %s: no such descriptor", agentID)
	}
	r.agents[agentID] = a
	return nil
}

// Descriptor returns the descriptor for an agent ID.
func (r *Registry) Descriptor(agentID string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[agentID]
	return d, ok
}

// Agent returns the bound implementation for an agent ID, or nil.
func (r *Registry) Agent(agentID string) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// Find returns the descriptors servicing the given intent name, ranked by
// match specificity (exact above glob), then declared priority, then agent ID
// for a deterministic order. An empty result signals NoCapability.
func (r *Registry) Find(intentName string) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type ranked struct {
		d    *Descriptor
		spec int
	}
	var matches []ranked
	for _, d := range r.descriptors {
		if spec := d.Match(intentName); spec > matchNone {
			matches = append(matches, ranked{d: d, spec: spec})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].spec != matches[j].spec {
			return matches[i].spec > matches[j].spec
		}
		if matches[i].d.Priority != matches[j].d.Priority {
			return matches[i].d.Priority > matches[j].d.Priority
		}
		return matches[i].d.AgentID < matches[j].d.AgentID
	})

	out := make([]*Descriptor, len(matches))
	for i, m := range matches {
		out[i] = m.d
	}
	return out
}

// All returns every registered descriptor in agent ID order.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Count returns the number of registered descriptors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
