// Package supervisor executes plans: it walks the dependency graph, runs
// ready tasks on their agents under per-agent concurrency limits, retries
// transient failures with exponential backoff, and enforces per-task and
// per-plan deadlines.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/graph"
	"github.com/vesper-assistant/vesper/pkg/models"
)

const defaultTaskTimeout = 5 * time.Second

// Config holds the supervisor's execution policy.
type Config struct {
	// MaxRetries is how many times a failed or timed-out attempt is retried.
	// A task therefore runs at most MaxRetries+1 times.
	MaxRetries int
	// BackoffBase is the delay before the first retry; it doubles per retry.
	BackoffBase time.Duration
	// BackoffCap bounds the retry delay.
	BackoffCap time.Duration
	// CancelGrace is how long a cancelled agent gets to wind down before its
	// result is abandoned.
	CancelGrace time.Duration
	// PlanBudget bounds one plan's total execution time.
	PlanBudget time.Duration
	// EventBuffer is the subscriber channel capacity.
	EventBuffer int
}

// DefaultConfig returns the stock execution policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  2,
		BackoffBase: 200 * time.Millisecond,
		BackoffCap:  2 * time.Second,
		CancelGrace: 2 * time.Second,
		PlanBudget:  8 * time.Second,
		EventBuffer: 64,
	}
}

// withDefaults fills zero fields from DefaultConfig. MaxRetries is kept as
// given so zero means "no retries".
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = def.BackoffCap
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = def.CancelGrace
	}
	if c.PlanBudget <= 0 {
		c.PlanBudget = def.PlanBudget
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}

// planRun tracks one in-flight plan so it can be cancelled externally.
type planRun struct {
	cancelled atomic.Bool
	cancel    context.CancelFunc
}

// Supervisor owns all task state transitions. A single scheduling loop per
// plan mutates task states; workers only report back over a channel, so no
// state is ever written from two goroutines.
type Supervisor struct {
	registry *capability.Registry
	cfg      Config
	emitter  *EventEmitter
	logger   *zap.Logger

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
	runs map[string]*planRun
}

// NewSupervisor creates a Supervisor over the given registry.
func NewSupervisor(reg *capability.Registry, cfg Config, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Supervisor{
		registry: reg,
		cfg:      cfg,
		emitter:  NewEventEmitter(cfg.EventBuffer, logger),
		logger:   logger,
		sems:     make(map[string]*semaphore.Weighted),
		runs:     make(map[string]*planRun),
	}
}

// Events returns the subscriber channel for execution progress.
func (s *Supervisor) Events() <-chan Event {
	return s.emitter.Events()
}

// Cancel aborts an in-flight plan. Tasks not yet terminal end Cancelled. It
// reports whether the plan was found running.
func (s *Supervisor) Cancel(planID string) bool {
	s.mu.Lock()
	run := s.runs[planID]
	s.mu.Unlock()
	if run == nil {
		return false
	}
	run.cancelled.Store(true)
	run.cancel()
	return true
}

// Close closes the event channel. Call only after all Execute calls have
// returned.
func (s *Supervisor) Close() {
	s.emitter.Close()
}

// message is a worker or timer report back to the scheduling loop.
type message struct {
	kind     msgKind
	taskID   string
	result   *capability.Result
	err      error
	timedOut bool
	fatal    bool
}

type msgKind int

const (
	msgAttemptDone msgKind = iota
	msgRetryDue
)

// Execute runs the plan to completion and returns every task's terminal
// outcome keyed by task ID. Task failures are reported in the results, not
// as an error; the error return covers only structurally invalid plans.
func (s *Supervisor) Execute(ctx context.Context, plan *models.Plan) (map[string]*models.TaskResult, error) {
	g, err := graph.Build(plan.Tasks)
	if err != nil {
		return nil, fmt.Errorf("execute plan %s: %w", plan.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PlanBudget)
	defer cancel()

	run := &planRun{cancel: cancel}
	s.mu.Lock()
	s.runs[plan.ID] = run
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.runs, plan.ID)
		s.mu.Unlock()
	}()

	s.emitter.Emit(Event{
		Type:      EventPlanStarted,
		PlanID:    plan.ID,
		Message:   plan.IntentName,
		Timestamp: time.Now(),
	})

	results := make(map[string]*models.TaskResult, len(plan.Tasks))
	// Sized so workers and retry timers never block, even after the loop has
	// wound the plan down.
	msgs := make(chan message, len(plan.Tasks)*(2*s.cfg.MaxRetries+2))
	dispatched := make(map[string]bool, len(plan.Tasks))
	remaining := len(plan.Tasks)
	inFlight := 0
	awaitingRetry := 0

	finalize := func(t *models.Task, state models.TaskState, payload any, errText string) {
		t.State = state
		t.Err = errText
		res := &models.TaskResult{
			TaskID:   t.ID,
			AgentID:  t.AgentID,
			State:    state,
			Payload:  payload,
			Err:      errText,
			Attempts: t.Attempts,
		}
		if state == models.TaskSucceeded {
			res.Degraded = g.DegradedUpstream(t.ID)
		}
		results[t.ID] = res
		remaining--

		evt := EventTaskSucceeded
		switch state {
		case models.TaskFailed:
			evt = EventTaskFailed
		case models.TaskTimedOut:
			evt = EventTaskTimedOut
		case models.TaskCancelled:
			evt = EventTaskCancelled
		}
		s.emitter.Emit(Event{
			Type:      evt,
			PlanID:    plan.ID,
			TaskID:    t.ID,
			AgentID:   t.AgentID,
			Attempt:   t.Attempts,
			Message:   errText,
			Timestamp: time.Now(),
		})
	}

	// cascade cancels pending dependents reachable over hard edges from a
	// task that did not succeed. Best-effort dependents keep running.
	var cascade func(id string)
	cascade = func(id string) {
		for _, dep := range g.Dependents(id) {
			if dep.BestEffort {
				continue
			}
			dt := g.Task(dep.TaskID)
			if dt == nil || dt.State != models.TaskPending || dispatched[dt.ID] {
				continue
			}
			dispatched[dt.ID] = true
			finalize(dt, models.TaskCancelled, nil, "upstream task did not succeed")
			cascade(dt.ID)
		}
	}

	// teardownState maps a dead plan context to the terminal state its
	// unfinished tasks should take.
	teardownState := func() (models.TaskState, string) {
		if run.cancelled.Load() || errors.Is(ctx.Err(), context.Canceled) {
			return models.TaskCancelled, "plan cancelled"
		}
		return models.TaskTimedOut, "plan budget exhausted"
	}

	dispatch := func(t *models.Task) {
		dispatched[t.ID] = true
		t.State = models.TaskRunning
		t.Attempts++
		inFlight++
		s.emitter.Emit(Event{
			Type:      EventTaskStarted,
			PlanID:    plan.ID,
			TaskID:    t.ID,
			AgentID:   t.AgentID,
			Attempt:   t.Attempts,
			Timestamp: time.Now(),
		})
		go s.runTask(ctx, t, s.taskTimeout(t), msgs)
	}

	for remaining > 0 {
		for _, t := range g.Ready() {
			if !dispatched[t.ID] {
				dispatch(t)
			}
		}
		if remaining == 0 {
			break
		}
		if inFlight == 0 && awaitingRetry == 0 {
			// Nothing runs and nothing can become ready: the rest of the
			// plan is unreachable behind a failed dependency.
			for _, t := range plan.Tasks {
				if !t.State.Terminal() {
					finalize(t, models.TaskCancelled, nil, "blocked by failed dependency")
				}
			}
			break
		}

		select {
		case m := <-msgs:
			t := g.Task(m.taskID)
			switch m.kind {
			case msgRetryDue:
				awaitingRetry--
				if t == nil || t.State != models.TaskPending {
					break
				}
				if ctx.Err() != nil {
					state, errText := teardownState()
					finalize(t, state, nil, errText)
					break
				}
				dispatch(t)

			case msgAttemptDone:
				inFlight--
				if t == nil || t.State.Terminal() {
					break
				}
				if m.err == nil {
					finalize(t, models.TaskSucceeded, taskPayload(m.result), "")
					break
				}
				if ctx.Err() != nil {
					// The plan died under this attempt; report the teardown
					// outcome, not an agent failure.
					state, errText := teardownState()
					finalize(t, state, nil, errText)
					break
				}

				retryable := !m.fatal && t.Attempts <= s.cfg.MaxRetries
				if retryable {
					t.State = models.TaskPending
					delay := s.backoff(t.Attempts)
					s.logger.Debug("task attempt failed, retrying",
						zap.String("task_id", t.ID),
						zap.String("agent_id", t.AgentID),
						zap.Int("attempt", t.Attempts),
						zap.Duration("backoff", delay),
						zap.Error(m.err))
					s.emitter.Emit(Event{
						Type:      EventTaskRetrying,
						PlanID:    plan.ID,
						TaskID:    t.ID,
						AgentID:   t.AgentID,
						Attempt:   t.Attempts,
						Err:       m.err,
						Timestamp: time.Now(),
					})
					awaitingRetry++
					go retryAfter(ctx, delay, t.ID, msgs)
					break
				}

				state := models.TaskFailed
				if m.timedOut {
					state = models.TaskTimedOut
				}
				finalize(t, state, nil, m.err.Error())
				cascade(t.ID)
			}

		case <-ctx.Done():
			state, errText := teardownState()
			for _, t := range plan.Tasks {
				if !t.State.Terminal() {
					finalize(t, state, nil, errText)
				}
			}
		}
	}

	s.emitter.Emit(Event{
		Type:      EventPlanCompleted,
		PlanID:    plan.ID,
		Timestamp: time.Now(),
	})
	return results, nil
}

// runTask executes one attempt of a task under its agent's concurrency
// limit. It never touches task state; it only reports the outcome.
func (s *Supervisor) runTask(ctx context.Context, t *models.Task, timeout time.Duration, msgs chan<- message) {
	sem := s.semaphoreFor(t.AgentID)
	if err := sem.Acquire(ctx, 1); err != nil {
		msgs <- message{kind: msgAttemptDone, taskID: t.ID, err: err}
		return
	}
	defer sem.Release(1)

	agent := s.registry.Agent(t.AgentID)
	if agent == nil {
		msgs <- message{
			kind:   msgAttemptDone,
			taskID: t.ID,
			err:    fmt.Errorf("agent %s is not bound", t.AgentID),
			fatal:  true,
		}
		return
	}

	res, timedOut, err := s.invoke(ctx, agent, t.Params, timeout)
	if err != nil {
		err = &capability.AgentError{AgentID: t.AgentID, Err: err}
	}
	msgs <- message{kind: msgAttemptDone, taskID: t.ID, result: res, err: err, timedOut: timedOut}
}

// invoke runs one agent invocation under the attempt deadline. On deadline
// the agent is told to cancel and given a grace period; a result arriving
// after that is dropped.
func (s *Supervisor) invoke(ctx context.Context, agent capability.Agent, params map[string]any, timeout time.Duration) (*capability.Result, bool, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *capability.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := agent.Invoke(actx, params)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		return o.res, false, o.err
	case <-actx.Done():
	}

	agent.Cancel()
	select {
	case <-ch:
	case <-time.After(s.cfg.CancelGrace):
	}

	// Parent still live means the attempt deadline fired, not the plan's.
	timedOut := ctx.Err() == nil
	return nil, timedOut, actx.Err()
}

// retryAfter reports the task as due for redispatch once the backoff has
// elapsed. Plan teardown releases it early.
func retryAfter(ctx context.Context, delay time.Duration, taskID string, msgs chan<- message) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	msgs <- message{kind: msgRetryDue, taskID: taskID}
}

// semaphoreFor returns the agent's shared concurrency limiter, creating it
// on first use from the descriptor's max_concurrency. The limiter is global
// across plans.
func (s *Supervisor) semaphoreFor(agentID string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sem, ok := s.sems[agentID]; ok {
		return sem
	}
	n := int64(1)
	if d, ok := s.registry.Descriptor(agentID); ok && d.MaxConcurrency > 0 {
		n = int64(d.MaxConcurrency)
	}
	sem := semaphore.NewWeighted(n)
	s.sems[agentID] = sem
	return sem
}

// taskTimeout resolves the attempt deadline: task override, then the
// descriptor default, then the package default.
func (s *Supervisor) taskTimeout(t *models.Task) time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	if d, ok := s.registry.Descriptor(t.AgentID); ok && d.DefaultTimeout > 0 {
		return d.DefaultTimeout
	}
	return defaultTaskTimeout
}

// backoff returns the delay before retrying after the given attempt count.
func (s *Supervisor) backoff(attempt int) time.Duration {
	d := s.cfg.BackoffBase << uint(attempt-1)
	if d <= 0 || d > s.cfg.BackoffCap {
		d = s.cfg.BackoffCap
	}
	return d
}

// taskPayload extracts the reportable payload from an agent result.
func taskPayload(res *capability.Result) any {
	if res == nil {
		return nil
	}
	return res
}
