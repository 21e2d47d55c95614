// Package orchestrator wires the intent pipeline together: resolve,
// decompose, execute, aggregate, with per-session conversation state.
package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/decompose"
	"github.com/vesper-assistant/vesper/internal/resolve"
	"github.com/vesper-assistant/vesper/internal/session"
	"github.com/vesper-assistant/vesper/internal/supervisor"
)

// RequiredConfig contains the minimal required configuration for an
// Orchestrator. All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry holds the capability roster the pipeline resolves against.
	Registry *capability.Registry
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	supervisorCfg *supervisor.Config
	minConfidence float64
	sessionTTL    time.Duration
	maxContext    int
	matcher       resolve.SlotMatcher
	logger        *zap.Logger

	// Injectable components, mainly for testing.
	resolver   *resolve.Resolver
	decomposer *decompose.Decomposer
	supervisor *supervisor.Supervisor
	sessions   *session.Store
}

// WithSupervisorConfig sets the execution policy (retries, backoff,
// deadlines).
func WithSupervisorConfig(cfg supervisor.Config) Option {
	return func(o *orchestratorOptions) { o.supervisorCfg = &cfg }
}

// WithMinConfidence sets the confidence threshold below which intents are
// bounced back for clarification.
func WithMinConfidence(c float64) Option {
	return func(o *orchestratorOptions) { o.minConfidence = c }
}

// WithSessionTTL sets the session inactivity timeout.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *orchestratorOptions) { o.sessionTTL = ttl }
}

// WithMaxContext bounds how many slot values a session retains.
func WithMaxContext(n int) Option {
	return func(o *orchestratorOptions) { o.maxContext = n }
}

// WithSlotMatcher sets the entity-to-slot matching strategy.
func WithSlotMatcher(m resolve.SlotMatcher) Option {
	return func(o *orchestratorOptions) { o.matcher = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithResolver sets a custom resolver (mainly for testing).
func WithResolver(r *resolve.Resolver) Option {
	return func(o *orchestratorOptions) { o.resolver = r }
}

// WithDecomposer sets a custom decomposer (mainly for testing).
func WithDecomposer(d *decompose.Decomposer) Option {
	return func(o *orchestratorOptions) { o.decomposer = d }
}

// WithSupervisor sets a custom supervisor (mainly for testing).
func WithSupervisor(s *supervisor.Supervisor) Option {
	return func(o *orchestratorOptions) { o.supervisor = s }
}

// WithSessionStore sets a custom session store (mainly for testing).
func WithSessionStore(s *session.Store) Option {
	return func(o *orchestratorOptions) { o.sessions = s }
}
