// Package graph provides the dependency DAG over a plan's tasks.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vesper-assistant/vesper/pkg/models"
)

// ErrCycleDetected indicates a circular dependency in a plan. Decomposition
// must reject cyclic plans rather than submit them.
var ErrCycleDetected = errors.New("circular dependency detected")

// TaskGraph is a directed acyclic graph of task dependencies within one plan.
// Edges represent "blocked by" relationships. Readiness derives from task
// states, which the supervisor owns.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to the dependency edges it is blocked by.
	edges map[string][]models.Dependency
}

// Build constructs the graph from a plan's tasks. It returns an error if an
// edge references an unknown task or a cycle is detected.
func Build(tasks []*models.Task) (*TaskGraph, error) {
	g := &TaskGraph{
		nodes: make(map[string]*models.Task, len(tasks)),
		edges: make(map[string][]models.Dependency, len(tasks)),
	}

	for _, t := range tasks {
		if _, dup := g.nodes[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %s", t.ID)
		}
		g.nodes[t.ID] = t
		g.edges[t.ID] = nil
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, exists := g.nodes[dep.TaskID]; !exists {
				return nil, fmt.Errorf("task %s depends on unknown task %s", t.ID, dep.TaskID)
			}
			g.edges[t.ID] = append(g.edges[t.ID], dep)
		}
	}

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}
	return g, nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *TaskGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked detects back edges with DFS coloring. Caller holds the lock
// (or the graph is still private to its builder).
func (g *TaskGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep.TaskID] {
			case 1:
				return true
			case 0:
				if visit(dep.TaskID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Ready returns pending tasks whose dependencies are satisfied, in stable
// Seq order. A normal edge is satisfied only by a Succeeded upstream; a
// best-effort edge is satisfied by any terminal upstream state.
func (g *TaskGraph) Ready() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.Task
	for id, t := range g.nodes {
		if t.State != models.TaskPending {
			continue
		}
		if g.depsSatisfiedLocked(id) {
			ready = append(ready, t)
		}
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i].Seq < ready[j].Seq })
	return ready
}

// depsSatisfiedLocked reports whether every edge into the task is satisfied.
func (g *TaskGraph) depsSatisfiedLocked(id string) bool {
	for _, dep := range g.edges[id] {
		up, exists := g.nodes[dep.TaskID]
		if !exists {
			return false
		}
		if dep.BestEffort {
			if !up.State.Terminal() {
				return false
			}
			continue
		}
		if up.State != models.TaskSucceeded {
			return false
		}
	}
	return true
}

// DegradedUpstream reports whether the task has a best-effort edge whose
// upstream terminated without success, meaning the task will run with a null
// upstream result.
func (g *TaskGraph) DegradedUpstream(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, dep := range g.edges[id] {
		up, exists := g.nodes[dep.TaskID]
		if !exists || !dep.BestEffort {
			continue
		}
		if up.State.Terminal() && up.State != models.TaskSucceeded {
			return true
		}
	}
	return false
}

// Dependents returns the IDs of tasks with an edge on the given task,
// annotated with the edge's best-effort flag.
func (g *TaskGraph) Dependents(id string) []models.Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []models.Dependency
	for nodeID, deps := range g.edges {
		for _, dep := range deps {
			if dep.TaskID == id {
				out = append(out, models.Dependency{TaskID: nodeID, BestEffort: dep.BestEffort})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Task returns the task for the given ID, or nil.
func (g *TaskGraph) Task(id string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
