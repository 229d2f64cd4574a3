package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/mudyla/internal/cli"
	"github.com/specialistvlad/mudyla/internal/model"
)

// listActions prints every action with its description, dependencies, and
// declared returns.
func (a *App) listActions(doc *model.Document) {
	names := make([]string, 0, len(doc.Actions))
	for name := range doc.Actions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		action := doc.Actions[name]
		fmt.Fprintf(a.outW, "%s\n", name)
		if action.Description != "" {
			fmt.Fprintf(a.outW, "    %s\n", action.Description)
		}
		if action.MultiVersion() {
			fmt.Fprintf(a.outW, "    versions: %d\n", len(action.Versions))
			for _, v := range action.Versions {
				if len(v.Conditions) == 0 {
					continue
				}
				conds := make([]string, len(v.Conditions))
				for i, c := range v.Conditions {
					conds[i] = c.String()
				}
				fmt.Fprintf(a.outW, "      when %s\n", strings.Join(conds, ", "))
			}
		}
		if deps := sortedSet(action.PotentialDependencyNames()); len(deps) > 0 {
			fmt.Fprintf(a.outW, "    depends on: %s\n", strings.Join(deps, ", "))
		}
		if returns := returnSummaries(action); len(returns) > 0 {
			fmt.Fprintf(a.outW, "    returns: %s\n", strings.Join(returns, ", "))
		}
	}
}

// autocomplete prints completion data, one value per line, with no other
// output.
func (a *App) autocomplete(doc *model.Document) error {
	var values []string
	switch a.opts.Autocomplete {
	case "actions":
		for name := range doc.Actions {
			values = append(values, name)
		}
	case "flags":
		for name := range doc.Flags {
			values = append(values, "--"+name)
		}
	case "axis-names":
		for name := range doc.Axes {
			values = append(values, name)
		}
	case "axis-values":
		axis, ok := doc.Axes[a.opts.AutocompleteAxis]
		if !ok {
			return cli.UserError("unknown axis %q", a.opts.AutocompleteAxis)
		}
		values = axis.ValueNames()
	}

	sort.Strings(values)
	for _, v := range values {
		fmt.Fprintln(a.outW, v)
	}
	return nil
}

func returnSummaries(action *model.ActionDefinition) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range action.Versions {
		for _, r := range v.Returns {
			summary := r.Name + ":" + string(r.Type)
			if _, ok := seen[summary]; !ok {
				seen[summary] = struct{}{}
				out = append(out, summary)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
