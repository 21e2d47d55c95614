package capability

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// manifestEntry is the YAML form of a Descriptor. Durations are strings
// ("10s", "2m") so manifests stay readable.
type manifestEntry struct {
	AgentID          string   `yaml:"agent_id"`
	SupportedIntents []string `yaml:"supported_intents"`
	RequiredSlots    []string `yaml:"required_slots"`
	OptionalSlots    []string `yaml:"optional_slots"`
	MaxConcurrency   int      `yaml:"max_concurrency"`
	DefaultTimeout   string   `yaml:"default_timeout"`
	Priority         int      `yaml:"priority"`
	BestEffort       bool     `yaml:"best_effort"`
}

// manifest is the top-level YAML document.
type manifest struct {
	Capabilities []manifestEntry `yaml:"capabilities"`
}

// LoadManifest parses a YAML capabilities file into descriptors.
func LoadManifest(path string) ([]*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses YAML capability declarations.
func ParseManifest(data []byte) ([]*Descriptor, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	out := make([]*Descriptor, 0, len(m.Capabilities))
	for _, e := range m.Capabilities {
		d := &Descriptor{
			AgentID:          e.AgentID,
			SupportedIntents: e.SupportedIntents,
			RequiredSlots:    e.RequiredSlots,
			OptionalSlots:    e.OptionalSlots,
			MaxConcurrency:   e.MaxConcurrency,
			Priority:         e.Priority,
			BestEffort:       e.BestEffort,
		}
		if d.MaxConcurrency == 0 {
			d.MaxConcurrency = 1
		}
		if e.DefaultTimeout != "" {
			timeout, err := time.ParseDuration(e.DefaultTimeout)
			if err != nil {
				return nil, fmt.Errorf("capability %s: bad default_timeout %q: %w", e.AgentID, e.DefaultTimeout, err)
			}
			d.DefaultTimeout = timeout
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RegisterManifest loads a manifest file and registers every descriptor.
func RegisterManifest(r *Registry, path string) error {
	descs, err := LoadManifest(path)
	if err != nil {
		return err
	}
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
