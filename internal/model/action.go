package model

import "fmt"

// Language tags the interpreter of an action version.
type Language string

const (
	LangBash   Language = "bash"
	LangPython Language = "python"
)

// ScriptExtension returns the file extension used for rendered scripts.
func (l Language) ScriptExtension() string {
	if l == LangPython {
		return ".py"
	}
	return ".sh"
}

// ActionVersion is a single script bound by zero or more conditions.
type ActionVersion struct {
	Script       string
	Language     Language
	Conditions   []Condition
	Expansions   []Expansion
	Returns      []ReturnDeclaration
	Dependencies []DependencyDeclaration
	// EnvDependencies are variables declared with `dep env.NAME`.
	EnvDependencies []string
	Location        SourceLocation
}

// MatchesContext reports whether every condition holds.
func (v *ActionVersion) MatchesContext(axes Context, platform string) bool {
	for _, cond := range v.Conditions {
		if !cond.Matches(axes, platform) {
			return false
		}
	}
	return true
}

// Return looks up a declared return by name.
func (v *ActionVersion) Return(name string) (ReturnDeclaration, bool) {
	for _, r := range v.Returns {
		if r.Name == name {
			return r, true
		}
	}
	return ReturnDeclaration{}, false
}

// ConditionAxes returns the axis names referenced by this version's
// conditions.
func (v *ActionVersion) ConditionAxes() map[string]struct{} {
	axes := make(map[string]struct{})
	for _, cond := range v.Conditions {
		if name := cond.AxisName(); name != "" {
			axes[name] = struct{}{}
		}
	}
	return axes
}

// ActionDefinition is a named unit of work with one or more versions.
type ActionDefinition struct {
	Name        string
	Description string
	Versions    []*ActionVersion
	// RequiredEnvVars maps declared environment variable names to their
	// descriptions; the hermetic wrapper keeps these in the child
	// environment.
	RequiredEnvVars map[string]string
	Location        SourceLocation
}

// MultiVersion reports whether this action has conditional versions.
func (a *ActionDefinition) MultiVersion() bool {
	return len(a.Versions) > 1
}

// SelectVersion picks the version whose conditions are all satisfied and
// whose condition count is maximal. Ties between distinct versions at the
// maximal count are errors, as is having no satisfied version.
func (a *ActionDefinition) SelectVersion(axes Context, platform string) (*ActionVersion, error) {
	var best *ActionVersion
	bestCount := -1
	tie := false

	for _, v := range a.Versions {
		if !v.MatchesContext(axes, platform) {
			continue
		}
		switch n := len(v.Conditions); {
		case n > bestCount:
			best, bestCount, tie = v, n, false
		case n == bestCount:
			tie = true
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no version of action %q matches context %s", a.Name, axes.Label())
	}
	if tie {
		return nil, fmt.Errorf("ambiguous version selection for action %q in context %s: multiple versions satisfy %d condition(s)", a.Name, axes.Label(), bestCount)
	}
	return best, nil
}

// PotentialDependencyNames returns the union over all versions of the
// action names referenced by expansions and declarations, including weak
// and soft targets and retainers. This is the edge set the axis footprint
// is computed over.
func (a *ActionDefinition) PotentialDependencyNames() map[string]struct{} {
	deps := make(map[string]struct{})
	for _, v := range a.Versions {
		for _, e := range v.Expansions {
			if e.DependsOnAction() {
				deps[e.Target] = struct{}{}
			}
		}
		for _, d := range v.Dependencies {
			deps[d.ActionName] = struct{}{}
			if d.Retainer != "" {
				deps[d.Retainer] = struct{}{}
			}
		}
	}
	return deps
}

// ConditionAxes returns the axis names referenced by any version's
// conditions.
func (a *ActionDefinition) ConditionAxes() map[string]struct{} {
	axes := make(map[string]struct{})
	for _, v := range a.Versions {
		for name := range v.ConditionAxes() {
			axes[name] = struct{}{}
		}
	}
	return axes
}
