package graph

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/specialistvlad/mudyla/internal/model"
)

// ValidationError aggregates every problem found in one pass so users fix
// them together.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed:\n- %s", strings.Join(e.Problems, "\n- "))
}

// Validate checks the graph against the document: strong-edge cycles,
// unresolved arguments/flags/env vars, missing outputs, failed version
// selection, and malformed retainers. Only nodes that may execute are
// checked; weak references are allowed to dangle.
func Validate(doc *model.Document, g *Graph) error {
	v := &validator{doc: doc, graph: g}
	v.run()
	if len(v.problems) == 0 {
		return nil
	}
	sort.Strings(v.problems)
	return &ValidationError{Problems: v.problems}
}

type validator struct {
	doc      *model.Document
	graph    *Graph
	problems []string
}

func (v *validator) failf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) run() {
	needed := v.mayExecuteSet()

	if cycle := v.findStrongCycle(needed); cycle != nil {
		v.failf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	keys := make([]string, 0, len(needed))
	for k := range needed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v.checkNode(v.graph.Nodes[key])
	}
}

// mayExecuteSet is the closure of the goals over strong edges, retainers,
// and soft targets (which may be promoted). Weak targets join only when
// independently reachable.
func (v *validator) mayExecuteSet() map[string]struct{} {
	set := make(map[string]struct{})
	var visit func(key string)
	visit = func(key string) {
		if _, done := set[key]; done {
			return
		}
		node, ok := v.graph.Nodes[key]
		if !ok {
			return
		}
		set[key] = struct{}{}
		for dep := range node.Strong {
			visit(dep)
		}
		for _, soft := range node.Soft {
			visit(soft.Retainer)
			visit(soft.Target)
		}
	}
	for _, goal := range v.graph.Goals {
		visit(goal)
	}
	return set
}

func (v *validator) checkNode(n *Node) {
	if n.Version == nil {
		v.reportSelectionFailure(n)
		return
	}

	for _, ver := range n.Action.Versions {
		for name := range ver.ConditionAxes() {
			if _, ok := v.doc.Axes[name]; !ok {
				v.failf("action %q references unknown axis %q in a condition", n.Action.Name, name)
			}
		}
	}

	for _, e := range n.Version.Expansions {
		v.checkExpansion(n, e)
	}
	for _, name := range n.Version.EnvDependencies {
		v.checkEnvAvailable(n, name)
	}
	for _, soft := range n.SoftEdges() {
		v.checkRetainer(n, soft)
	}
}

func (v *validator) reportSelectionFailure(n *Node) {
	// Distinguish an unbound required axis from genuinely unmatched
	// conditions: the former has a friendlier fix.
	missing := make(map[string]struct{})
	for _, ver := range n.Action.Versions {
		for name := range ver.ConditionAxes() {
			if _, bound := n.Context[name]; !bound {
				missing[name] = struct{}{}
			}
		}
	}
	if len(missing) > 0 {
		for _, name := range sortedKeys(missing) {
			v.failf("action %q requires axis %q, which has no binding and no default", n.Action.Name, name)
		}
		return
	}
	v.failf("%s", n.VersionErr)
}

func (v *validator) checkExpansion(n *Node, e model.Expansion) {
	switch e.Kind {
	case model.ExpandArgs:
		def, ok := v.doc.Arguments[e.Target]
		if !ok {
			v.failf("action %q references undefined argument %q", n.Action.Name, e.Target)
			return
		}
		if _, bound := n.Args[e.Target]; !bound && def.Mandatory() {
			v.failf("missing argument %q required by action %q (no default, no CLI binding)", e.Target, n.Action.Name)
		}
	case model.ExpandFlags:
		if _, ok := v.doc.Flags[e.Target]; !ok {
			v.failf("action %q references undefined flag %q", n.Action.Name, e.Target)
		}
	case model.ExpandEnv:
		v.checkEnvAvailable(n, e.Target)
	case model.ExpandActionStrong:
		target, ok := v.graph.Nodes[v.dependencyKeyFor(n, e.Target)]
		if !ok || target.Version == nil {
			// Selection failures on the target are reported on the target
			// itself.
			return
		}
		if _, ok := target.Version.Return(e.Output); !ok {
			v.failf("action %q references output %q of %q, which is not among its declared returns", n.Action.Name, e.Output, e.Target)
		}
	case model.ExpandRetainedWeak, model.ExpandRetainedSoft:
		if _, ok := v.doc.Actions[e.Target]; !ok {
			v.failf("action %q checks retention of unknown action %q", n.Action.Name, e.Target)
		}
	}
}

func (v *validator) checkEnvAvailable(n *Node, name string) {
	if _, ok := os.LookupEnv(name); ok {
		return
	}
	if _, ok := v.doc.Environment[name]; ok {
		return
	}
	v.failf("missing environment variable %q required by action %q", name, n.Action.Name)
}

// checkRetainer rejects retainers that themselves carry weak or soft
// dependencies; that nesting is undefined and refused up front.
func (v *validator) checkRetainer(n *Node, soft SoftEdge) {
	retainer, ok := v.graph.Nodes[soft.Retainer]
	if !ok || retainer.Version == nil {
		return
	}
	if len(retainer.Weak) > 0 || len(retainer.Soft) > 0 {
		v.failf("retainer %q (for soft dependency of %q) must not declare weak or soft dependencies", retainer.Action.Name, n.Action.Name)
	}
}

// findStrongCycle runs a DFS over strong edges and returns the first cycle
// path found, or nil.
func (v *validator) findStrongCycle(needed map[string]struct{}) []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string

	var visit func(key string) []string
	visit = func(key string) []string {
		color[key] = grey
		path = append(path, key)

		node := v.graph.Nodes[key]
		for _, dep := range node.StrongDeps() {
			if _, ok := needed[dep]; !ok {
				continue
			}
			switch color[dep] {
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			case grey:
				for i, k := range path {
					if k == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
			}
		}

		path = path[:len(path)-1]
		color[key] = black
		return nil
	}

	keys := make([]string, 0, len(needed))
	for k := range needed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if color[key] == white {
			if cycle := visit(key); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// dependencyKeyFor resolves the node key a dependency reference of n points
// at, by matching n's strong/weak edge sets against the target action name.
func (v *validator) dependencyKeyFor(n *Node, action string) string {
	for dep := range n.Strong {
		if target, ok := v.graph.Nodes[dep]; ok && target.Action.Name == action {
			return dep
		}
	}
	for dep := range n.Weak {
		if target, ok := v.graph.Nodes[dep]; ok && target.Action.Name == action {
			return dep
		}
	}
	for _, soft := range n.Soft {
		if target, ok := v.graph.Nodes[soft.Target]; ok && target.Action.Name == action {
			return soft.Target
		}
	}
	return ""
}
