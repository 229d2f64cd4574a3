// Package plan turns a validated graph into an execution plan: the
// strong-reachability set, pruned weak edges, retainer-gated soft targets,
// and a deterministic dispatch order.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/mudyla/internal/graph"
)

// Plan is the executable view of a graph.
type Plan struct {
	Graph *graph.Graph

	// Reachable is R: every node strong-reachable from a goal, plus the
	// retainers those nodes' soft edges require. These always execute.
	Reachable map[string]struct{}

	// Gated holds soft targets (and their closures) that execute only
	// when a retainer promotes them.
	Gated map[string]struct{}

	// Order is the topological dispatch order over Reachable and Gated
	// nodes; position breaks ready-queue ties.
	Order []string

	pos map[string]int
}

// Compute derives the plan. The graph must already be validated; a strong
// cycle here is an internal error.
func Compute(g *graph.Graph) (*Plan, error) {
	p := &Plan{
		Graph:     g,
		Reachable: make(map[string]struct{}),
		Gated:     make(map[string]struct{}),
		pos:       make(map[string]int),
	}

	// Strong closure from the goals. Soft edges pull their retainer into
	// the same set (the retainer must run to decide the gate), and their
	// target into the gated set.
	var reach func(key string)
	var gate func(key string)

	reach = func(key string) {
		if _, ok := p.Reachable[key]; ok {
			return
		}
		node := g.Node(key)
		if node == nil {
			return
		}
		delete(p.Gated, key)
		p.Reachable[key] = struct{}{}
		for dep := range node.Strong {
			reach(dep)
		}
		for _, soft := range node.SoftEdges() {
			reach(soft.Retainer)
			gate(soft.Target)
		}
	}

	gate = func(key string) {
		if _, ok := p.Reachable[key]; ok {
			return
		}
		if _, ok := p.Gated[key]; ok {
			return
		}
		node := g.Node(key)
		if node == nil {
			return
		}
		p.Gated[key] = struct{}{}
		for dep := range node.Strong {
			gate(dep)
		}
		for _, soft := range node.SoftEdges() {
			gate(soft.Retainer)
			gate(soft.Target)
		}
	}

	for _, goal := range g.Goals {
		reach(goal)
	}

	if err := p.computeOrder(); err != nil {
		return nil, err
	}
	return p, nil
}

// Planned reports whether a node appears in the plan at all.
func (p *Plan) Planned(key string) bool {
	_, r := p.Reachable[key]
	_, s := p.Gated[key]
	return r || s
}

// InReachable reports membership in R.
func (p *Plan) InReachable(key string) bool {
	_, ok := p.Reachable[key]
	return ok
}

// IsGated reports whether a node needs retainer promotion to run.
func (p *Plan) IsGated(key string) bool {
	_, ok := p.Gated[key]
	return ok
}

// Position returns the node's plan position for tie-breaking.
func (p *Plan) Position(key string) int {
	return p.pos[key]
}

// OrderingDeps lists the edges the scheduler must wait on before
// dispatching key: strong edges, retainers of soft edges, kept weak edges
// (target in R), and soft targets (waited on only while promoted; the
// scheduler resolves gating dynamically).
func (p *Plan) OrderingDeps(key string) []string {
	node := p.Graph.Node(key)
	deps := make(map[string]struct{})

	for dep := range node.Strong {
		if p.Planned(dep) {
			deps[dep] = struct{}{}
		}
	}
	for dep := range node.Weak {
		// Weak retention rule: the edge survives only when the target is
		// independently reachable.
		if p.InReachable(dep) {
			deps[dep] = struct{}{}
		}
	}
	for _, soft := range node.SoftEdges() {
		if p.Planned(soft.Retainer) {
			deps[soft.Retainer] = struct{}{}
		}
		if p.Planned(soft.Target) {
			deps[soft.Target] = struct{}{}
		}
	}

	out := make([]string, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// computeOrder runs Kahn's algorithm over the ordering edges, breaking
// ties lexicographically by node id so runs are reproducible.
func (p *Plan) computeOrder() error {
	planned := make([]string, 0, len(p.Reachable)+len(p.Gated))
	for key := range p.Reachable {
		planned = append(planned, key)
	}
	for key := range p.Gated {
		planned = append(planned, key)
	}
	sort.Strings(planned)

	inDegree := make(map[string]int, len(planned))
	dependents := make(map[string][]string, len(planned))
	for _, key := range planned {
		deps := p.OrderingDeps(key)
		inDegree[key] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []string
	for _, key := range planned {
		if inDegree[key] == 0 {
			ready = append(ready, key)
		}
	}
	sort.Strings(ready)

	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		p.pos[key] = len(p.Order)
		p.Order = append(p.Order, key)

		next := dependents[key]
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
	}

	if len(p.Order) != len(planned) {
		var stuck []string
		for _, key := range planned {
			if inDegree[key] > 0 {
				stuck = append(stuck, key)
			}
		}
		return fmt.Errorf("internal error: execution order is cyclic through %s", strings.Join(stuck, ", "))
	}
	return nil
}

// Render formats the plan for --dry-run. Nodes consumed by more than one
// dependent are annotated as shared.
func (p *Plan) Render() string {
	consumers := make(map[string]int)
	for _, key := range p.Order {
		for _, dep := range p.OrderingDeps(key) {
			consumers[dep]++
		}
	}

	var b strings.Builder
	b.WriteString("Execution plan:\n")
	for i, key := range p.Order {
		node := p.Graph.Node(key)
		fmt.Fprintf(&b, "  %d. %s", i+1, node.Label())
		if p.IsGated(key) {
			b.WriteString(" [gated]")
		}
		if n := consumers[key]; n > 1 {
			fmt.Fprintf(&b, " (⏬%d ctx)", n)
		}
		if deps := p.OrderingDeps(key); len(deps) > 0 {
			labels := make([]string, len(deps))
			for j, dep := range deps {
				labels[j] = p.Graph.Node(dep).Label()
			}
			fmt.Fprintf(&b, "  <- %s", strings.Join(labels, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
