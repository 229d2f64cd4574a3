package graph

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mudyla/internal/ctxlog"
	"github.com/specialistvlad/mudyla/internal/model"
)

// Builder materializes graph nodes for a set of resolved invocations.
type Builder struct {
	doc      *model.Document
	platform string

	footprints map[string]map[string]struct{}
}

// NewBuilder returns a builder for the given document and host platform.
func NewBuilder(doc *model.Document, platform string) *Builder {
	return &Builder{
		doc:        doc,
		platform:   platform,
		footprints: make(map[string]map[string]struct{}),
	}
}

// Build emits one graph for all invocations, unifying nodes that share an
// (action, reduced context) key and unioning their edges.
func (b *Builder) Build(ctx context.Context, invocations []Invocation) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := &Graph{Nodes: make(map[string]*Node)}

	for _, inv := range invocations {
		goalKey, err := b.emit(g, inv.Action, inv)
		if err != nil {
			return nil, err
		}
		if !contains(g.Goals, goalKey) {
			g.Goals = append(g.Goals, goalKey)
		}
	}

	g.linkDependents()
	logger.Debug("Graph built.", "nodes", len(g.Nodes), "goals", len(g.Goals))
	return g, nil
}

// emit creates (or revisits) the node for action under the invocation's
// full context, then recurses into its dependencies. Unified nodes are not
// re-expanded: equal reduced contexts imply identical dependency edges,
// because every dependency's footprint is a subset of the node's own.
func (b *Builder) emit(g *Graph, action string, inv Invocation) (string, error) {
	def, err := b.doc.Action(action)
	if err != nil {
		return "", err
	}

	reduced := inv.Full.Reduce(b.footprint(action))
	key := NodeKey(action, reduced)
	if _, ok := g.Nodes[key]; ok {
		return key, nil
	}

	node := &Node{
		Key:     key,
		Action:  def,
		Context: reduced,
		Args:    inv.Args,
		Flags:   inv.Flags,
		Strong:  make(map[string]struct{}),
		Weak:    make(map[string]struct{}),
		Soft:    make(map[string]SoftEdge),
	}
	node.Version, node.VersionErr = def.SelectVersion(inv.Full, b.platform)
	g.Nodes[key] = node

	if node.Version == nil {
		// Without a version there are no edges to follow; the validator
		// decides whether that is fatal.
		return key, nil
	}

	for _, dep := range b.dependenciesOf(node.Version) {
		targetKey, err := b.emit(g, dep.ActionName, inv)
		if err != nil {
			return "", fmt.Errorf("resolving dependency of action %q: %w", action, err)
		}
		switch {
		case dep.Soft:
			retainerKey, err := b.emit(g, dep.Retainer, inv)
			if err != nil {
				return "", fmt.Errorf("resolving retainer of action %q: %w", action, err)
			}
			node.Soft[targetKey] = SoftEdge{Target: targetKey, Retainer: retainerKey}
		case dep.Weak:
			node.Weak[targetKey] = struct{}{}
		default:
			node.Strong[targetKey] = struct{}{}
		}
	}

	// A reference that is both strong and weak in the same version
	// collapses to strong.
	for dep := range node.Strong {
		delete(node.Weak, dep)
		delete(node.Soft, dep)
	}
	return key, nil
}

// dependenciesOf merges implicit dependencies (action expansions) with the
// explicit dep/weak/soft declarations of a version.
func (b *Builder) dependenciesOf(v *model.ActionVersion) []model.DependencyDeclaration {
	byName := make(map[string]model.DependencyDeclaration)
	order := []string{}

	add := func(d model.DependencyDeclaration) {
		existing, ok := byName[d.ActionName]
		if !ok {
			byName[d.ActionName] = d
			order = append(order, d.ActionName)
			return
		}
		// Strong beats weak beats soft when the same action is referenced
		// several ways.
		if rank(d) < rank(existing) {
			byName[d.ActionName] = d
		}
	}

	for _, e := range v.Expansions {
		switch e.Kind {
		case model.ExpandActionStrong:
			add(model.DependencyDeclaration{ActionName: e.Target})
		case model.ExpandActionWeak:
			add(model.DependencyDeclaration{ActionName: e.Target, Weak: true})
		}
	}
	for _, d := range v.Dependencies {
		add(d)
	}

	out := make([]model.DependencyDeclaration, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func rank(d model.DependencyDeclaration) int {
	switch {
	case d.Soft:
		return 2
	case d.Weak:
		return 1
	default:
		return 0
	}
}

// footprint computes the axis names an action's context may depend on: the
// condition axes of any of its versions plus, transitively, those of every
// action it could depend on through any version.
func (b *Builder) footprint(action string) map[string]struct{} {
	if fp, ok := b.footprints[action]; ok {
		return fp
	}

	// Reserve the entry first so dependency cycles terminate; the final
	// set is filled below.
	fp := make(map[string]struct{})
	b.footprints[action] = fp

	def, err := b.doc.Action(action)
	if err != nil {
		return fp
	}
	for name := range def.ConditionAxes() {
		fp[name] = struct{}{}
	}
	for dep := range def.PotentialDependencyNames() {
		if dep == action {
			continue
		}
		for name := range b.footprint(dep) {
			fp[name] = struct{}{}
		}
	}
	return fp
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
