// Package agents provides the built-in agent implementations bound to the
// capability roster at startup. Most desktop capabilities (launching apps,
// web search, file operations) are thin wrappers around platform calls; the
// ScriptedAgent stands in for them with configurable behavior so plans are
// fully executable everywhere.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vesper-assistant/vesper/internal/capability"
)

// ScriptedAgent is a configurable capability implementation. It can delay,
// fail its first N invocations, and honors Cancel mid-delay.
type ScriptedAgent struct {
	// Name labels the agent in result summaries.
	Name string
	// Delay simulates work before answering.
	Delay time.Duration
	// FailFirst makes the first N invocations fail with a transient error.
	FailFirst int
	// Summarize renders the result summary from the invocation params. When
	// nil a generic summary is used.
	Summarize func(params map[string]any) string

	mu     sync.Mutex
	calls  int
	cancel chan struct{}
}

// NewScriptedAgent creates a ScriptedAgent with the given name.
func NewScriptedAgent(name string) *ScriptedAgent {
	return &ScriptedAgent{Name: name, cancel: make(chan struct{}, 1)}
}

// Invoke performs the scripted work.
func (a *ScriptedAgent) Invoke(ctx context.Context, params map[string]any) (*capability.Result, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	if a.cancel == nil {
		a.cancel = make(chan struct{}, 1)
	}
	cancel := a.cancel
	a.mu.Unlock()

	// A Cancel with nothing in flight parks a token in the channel; drop it
	// so it cannot abort this invocation.
	select {
	case <-cancel:
	default:
	}

	if a.Delay > 0 {
		timer := time.NewTimer(a.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-cancel:
			return nil, errors.New("cancelled")
		}
	}

	if call <= a.FailFirst {
		return nil, fmt.Errorf("%s: transient failure on attempt %d", a.Name, call)
	}

	summary := fmt.Sprintf("%s handled %s", a.Name, renderParams(params))
	if a.Summarize != nil {
		summary = a.Summarize(params)
	}
	return &capability.Result{Summary: summary, Data: params}, nil
}

// Cancel aborts an in-flight delay. It never blocks.
func (a *ScriptedAgent) Cancel() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	select {
	case cancel <- struct{}{}:
	default:
	}
}

// Calls returns the number of invocations so far.
func (a *ScriptedAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// renderParams formats params deterministically for summaries.
func renderParams(params map[string]any) string {
	if len(params) == 0 {
		return "(no params)"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}
