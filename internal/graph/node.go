package graph

import (
	"sort"

	"github.com/specialistvlad/mudyla/internal/model"
)

// SoftEdge gates a dependency on a retainer's decision.
type SoftEdge struct {
	// Target is the node key of the soft dependency.
	Target string
	// Retainer is the node key of the action deciding retention.
	Retainer string
}

// Node is the unit of scheduling: one action in one reduced context.
type Node struct {
	// Key is the directory-safe node id: the action name, suffixed with
	// the context hash when the reduced context is not empty.
	Key string
	// Action and Version identify the work; Version is nil when selection
	// failed (the validator reports that if the node is needed).
	Action  *model.ActionDefinition
	Version *model.ActionVersion
	// VersionErr records why selection failed.
	VersionErr error
	// Context is the reduced context (only axes in the node's footprint).
	Context model.Context
	// Args and Flags are the bindings of the invocation that first created
	// the node.
	Args  map[string]string
	Flags map[string]bool

	// Strong, Weak, and Soft hold incoming dependency edges by target key.
	Strong map[string]struct{}
	Weak   map[string]struct{}
	Soft   map[string]SoftEdge

	// Dependents are the reverse strong edges, filled in a final pass.
	Dependents map[string]struct{}
}

// NodeKey derives the arena key for an action in a reduced context.
func NodeKey(action string, reduced model.Context) string {
	if len(reduced) == 0 {
		return action
	}
	return action + "-" + reduced.Hash()
}

// Label is the human-readable form: name (ctx-label).
func (n *Node) Label() string {
	if len(n.Context) == 0 {
		return n.Action.Name
	}
	return n.Action.Name + " (" + n.Context.Label() + ")"
}

// StrongDeps returns the strong dependency keys in sorted order.
func (n *Node) StrongDeps() []string {
	return sortedKeys(n.Strong)
}

// WeakDeps returns the weak dependency keys in sorted order.
func (n *Node) WeakDeps() []string {
	return sortedKeys(n.Weak)
}

// SoftEdges returns the soft edges ordered by target key.
func (n *Node) SoftEdges() []SoftEdge {
	targets := make([]string, 0, len(n.Soft))
	for t := range n.Soft {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	edges := make([]SoftEdge, len(targets))
	for i, t := range targets {
		edges[i] = n.Soft[t]
	}
	return edges
}

// Graph is the node arena plus the goal set.
type Graph struct {
	Nodes map[string]*Node
	// Goals are goal node keys in invocation order, without duplicates.
	Goals []string
}

// Node returns a node by key.
func (g *Graph) Node(key string) *Node {
	return g.Nodes[key]
}

// SortedKeys returns every node key in lexicographic order.
func (g *Graph) SortedKeys() []string {
	keys := make([]string, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// linkDependents fills the reverse strong edges.
func (g *Graph) linkDependents() {
	for _, n := range g.Nodes {
		n.Dependents = make(map[string]struct{})
	}
	for key, n := range g.Nodes {
		for dep := range n.Strong {
			if target, ok := g.Nodes[dep]; ok {
				target.Dependents[key] = struct{}{}
			}
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
