package pipeline

import (
	"fmt"
	"sort"
)

// Graph is an ordered collection of tasks. It is created once by the
// compiler, mutated exclusively by the scheduler, and discarded when the
// pipeline completes, is cancelled, or is superseded by a new compile.
type Graph struct {
	tasks map[string]*Task
	order []string
}

// NewGraph returns an empty task graph.
func NewGraph() *Graph {
	return &Graph{tasks: make(map[string]*Task)}
}

// Add inserts a task. Task ids must be unique within the graph.
func (g *Graph) Add(t *Task) error {
	if _, exists := g.tasks[t.ID]; exists {
		return fmt.Errorf("duplicate task id %q", t.ID)
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	g.tasks[t.ID] = t
	g.order = append(g.order, t.ID)
	return nil
}

// Task looks up a task by id.
func (g *Graph) Task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Tasks returns all tasks in insertion order.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}
	return out
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Dependents returns the ids of tasks that directly depend on the given id,
// sorted for deterministic iteration.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, tid := range g.order {
		for _, dep := range g.tasks[tid].Dependencies {
			if dep == id {
				out = append(out, tid)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks the graph invariants: every dependency id exists in the
// same graph and the dependency relation is acyclic.
func (g *Graph) Validate() error {
	for _, t := range g.tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return fmt.Errorf("task %q depends on itself", t.ID)
			}
			if _, ok := g.tasks[dep]; !ok {
				return fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	// Depth-first search with permanent/temporary marks, same scheme as any
	// topological cycle check.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("cycle detected involving task %q", id)
		}
		temporary[id] = true
		for _, dep := range g.tasks[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// StatusSnapshot returns an immutable view of every task's status, keyed by
// task id. External observers read snapshots; only the scheduler mutates the
// graph itself.
func (g *Graph) StatusSnapshot() map[string]Status {
	snap := make(map[string]Status, len(g.tasks))
	for id, t := range g.tasks {
		snap[id] = t.Status
	}
	return snap
}
