package orchestrator

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/vesper-assistant/vesper/internal/aggregate"
	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/decompose"
	"github.com/vesper-assistant/vesper/internal/graph"
	"github.com/vesper-assistant/vesper/internal/resolve"
	"github.com/vesper-assistant/vesper/internal/session"
	"github.com/vesper-assistant/vesper/internal/supervisor"
	"github.com/vesper-assistant/vesper/pkg/models"
)

// Orchestrator is the single entry point for submitted intents. It owns the
// pipeline components and the session store; everything else in the system
// is reached through it.
type Orchestrator struct {
	registry   *capability.Registry
	resolver   *resolve.Resolver
	decomposer *decompose.Decomposer
	supervisor *supervisor.Supervisor
	sessions   *session.Store
	logger     *zap.Logger
}

// New creates an Orchestrator from required config plus options.
func New(req RequiredConfig, options ...Option) (*Orchestrator, error) {
	if req.Registry == nil {
		return nil, errors.New("orchestrator: registry is required")
	}

	opts := &orchestratorOptions{}
	for _, opt := range options {
		opt(opts)
	}

	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver := opts.resolver
	if resolver == nil {
		resolver = resolve.NewResolver(req.Registry, logger)
		if opts.matcher != nil {
			resolver.SetMatcher(opts.matcher)
		}
		if opts.minConfidence > 0 {
			resolver.SetMinConfidence(opts.minConfidence)
		}
	}

	decomposer := opts.decomposer
	if decomposer == nil {
		decomposer = decompose.NewDecomposer(resolver, logger)
	}

	sup := opts.supervisor
	if sup == nil {
		cfg := supervisor.DefaultConfig()
		if opts.supervisorCfg != nil {
			cfg = *opts.supervisorCfg
		}
		sup = supervisor.NewSupervisor(req.Registry, cfg, logger)
	}

	sessions := opts.sessions
	if sessions == nil {
		sessions = session.NewStore(opts.sessionTTL, logger)
		if opts.maxContext > 0 {
			sessions.SetMaxContext(opts.maxContext)
		}
	}

	return &Orchestrator{
		registry:   req.Registry,
		resolver:   resolver,
		decomposer: decomposer,
		supervisor: sup,
		sessions:   sessions,
		logger:     logger,
	}, nil
}

// SubmitIntent runs one intent through the full pipeline and returns the
// structured response. It never returns an error: resolution and execution
// failures become failed responses with a follow-up prompt, keeping the
// conversation alive.
func (o *Orchestrator) SubmitIntent(ctx context.Context, sessionID string, intent models.Intent) *models.Response {
	sess := o.sessions.Start(sessionID)

	res, err := o.resolver.Resolve(intent)
	if err != nil {
		o.logger.Info("intent did not resolve",
			zap.String("session_id", sessionID),
			zap.String("intent", intent.Name),
			zap.Error(err))
		return aggregate.ResolutionFailure(err)
	}

	plan, err := o.decomposer.Decompose(res, sess)
	if err != nil {
		if errors.Is(err, graph.ErrCycleDetected) {
			o.logger.Error("decomposer produced a cyclic plan",
				zap.String("intent", intent.Name),
				zap.Error(err))
		}
		return aggregate.ResolutionFailure(err)
	}

	o.sessions.Update(sessionID, func(s *session.Session) {
		s.LastIntent = intent.Name
		s.ActivePlanID = plan.ID
	})

	o.logger.Info("executing plan",
		zap.String("session_id", sessionID),
		zap.String("plan_id", plan.ID),
		zap.String("intent", intent.Name),
		zap.Int("tasks", len(plan.Tasks)))

	results, err := o.supervisor.Execute(ctx, plan)
	if err != nil {
		o.logger.Error("plan rejected by supervisor",
			zap.String("plan_id", plan.ID),
			zap.Error(err))
		o.sessions.Update(sessionID, func(s *session.Session) { s.ActivePlanID = "" })
		return aggregate.ResolutionFailure(err)
	}

	o.sessions.Update(sessionID, func(s *session.Session) {
		s.ActivePlanID = ""
		rememberSucceeded(s, plan, results, o.sessions.MaxContext())
	})

	return aggregate.Aggregate(plan, results)
}

// rememberSucceeded records the parameters of succeeded tasks in the session
// context so later turns can refer back to them. Slots are recorded in
// sorted order for deterministic eviction.
func rememberSucceeded(s *session.Session, plan *models.Plan, results map[string]*models.TaskResult, max int) {
	for _, t := range plan.Tasks {
		res := results[t.ID]
		if res == nil || res.State != models.TaskSucceeded {
			continue
		}
		slots := make([]string, 0, len(t.Params))
		for slot := range t.Params {
			slots = append(slots, slot)
		}
		sort.Strings(slots)
		for _, slot := range slots {
			s.Remember(slot, t.Params[slot], max)
		}
	}
}

// CancelActive aborts the session's in-flight plan, if any. It reports
// whether a plan was cancelled.
func (o *Orchestrator) CancelActive(sessionID string) bool {
	sess := o.sessions.Get(sessionID)
	if sess == nil || sess.ActivePlanID == "" {
		return false
	}
	return o.supervisor.Cancel(sess.ActivePlanID)
}

// EndSession tears down the session's conversation state.
func (o *Orchestrator) EndSession(sessionID string) {
	o.sessions.End(sessionID)
}

// Events returns the execution progress stream for the presentation layer.
func (o *Orchestrator) Events() <-chan supervisor.Event {
	return o.supervisor.Events()
}

// Registry returns the capability registry, for startup-time binding.
func (o *Orchestrator) Registry() *capability.Registry {
	return o.registry
}

// Close releases the orchestrator's resources. Call only after in-flight
// SubmitIntent calls have returned.
func (o *Orchestrator) Close() {
	o.supervisor.Close()
	o.sessions.Close()
}
