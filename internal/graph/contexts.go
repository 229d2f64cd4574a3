package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/mudyla/internal/model"
)

// GoalSpec is a goal invocation as tokenized by the CLI: axis values may
// still be wildcard patterns.
type GoalSpec struct {
	Action string
	Axes   map[string]string
	Args   map[string]string
	Flags  map[string]bool
}

// Invocation is a fully resolved goal invocation: concrete axis bindings
// layered over defaults, argument defaults applied, all declared flags
// present.
type Invocation struct {
	Action string
	// Full is the complete axis context the invocation runs under; node
	// contexts are reductions of it.
	Full  model.Context
	Args  map[string]string
	Flags map[string]bool
}

// ResolveInvocations layers global and per-goal bindings, validates them
// against the document, and expands axis wildcards into the Cartesian
// product of their matches.
func ResolveInvocations(
	doc *model.Document,
	globalAxes, globalArgs map[string]string,
	globalFlags map[string]bool,
	goals []GoalSpec,
) ([]Invocation, error) {
	var out []Invocation

	for _, goal := range goals {
		if _, err := doc.Action(goal.Action); err != nil {
			return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(actionNames(doc), ", "))
		}

		patterns := mergeStrings(globalAxes, goal.Axes)
		for name := range patterns {
			if _, ok := doc.Axes[name]; !ok {
				return nil, fmt.Errorf("unknown axis %q (declared: %s)", name, strings.Join(axisNames(doc), ", "))
			}
		}

		contexts, err := expandWildcards(doc, patterns)
		if err != nil {
			return nil, err
		}

		args := mergeStrings(globalArgs, goal.Args)
		for name, def := range doc.Arguments {
			if _, bound := args[name]; !bound && def.Default != nil {
				args[name] = *def.Default
			}
		}

		flags := make(map[string]bool, len(doc.Flags))
		for name := range doc.Flags {
			flags[name] = false
		}
		for name, v := range globalFlags {
			flags[name] = v
		}
		for name, v := range goal.Flags {
			flags[name] = v
		}

		for _, bindings := range contexts {
			out = append(out, Invocation{
				Action: goal.Action,
				Full:   doc.DefaultContext().Merge(bindings),
				Args:   args,
				Flags:  flags,
			})
		}
	}
	return out, nil
}

// expandWildcards turns a pattern binding set into every concrete
// combination. `*` matches every allowed value, `prefix*` the values
// starting with prefix; zero matches fail.
func expandWildcards(doc *model.Document, patterns map[string]string) ([]model.Context, error) {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []model.Context{{}}
	for _, name := range names {
		pattern := patterns[name]
		axis := doc.Axes[name]

		var values []string
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			for _, v := range axis.ValueNames() {
				if strings.HasPrefix(v, prefix) {
					values = append(values, v)
				}
			}
			if len(values) == 0 {
				return nil, fmt.Errorf("no matches for %s:%s", name, pattern)
			}
		} else {
			if err := axis.ValidateValue(pattern); err != nil {
				return nil, err
			}
			values = []string{pattern}
		}

		next := make([]model.Context, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				child := combo.Clone()
				child[name] = v
				next = append(next, child)
			}
		}
		combos = next
	}
	return combos, nil
}

func mergeStrings(global, local map[string]string) map[string]string {
	out := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

func actionNames(doc *model.Document) []string {
	names := make([]string, 0, len(doc.Actions))
	for name := range doc.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func axisNames(doc *model.Document) []string {
	names := make([]string, 0, len(doc.Axes))
	for name := range doc.Axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
