package model

// ExpansionKind tags what a ${...} reference inside a script points at.
type ExpansionKind int

const (
	// ExpandSystem is ${sys.name}: engine-provided variables such as
	// project-root, run-dir, action-dir and axis.<name>.
	ExpandSystem ExpansionKind = iota
	// ExpandEnv is ${env.NAME}.
	ExpandEnv
	// ExpandArgs is ${args.name}.
	ExpandArgs
	// ExpandFlags is ${flags.name}; renders 1 or 0.
	ExpandFlags
	// ExpandActionStrong is ${action.name.output}: a strong dependency on
	// another action's output.
	ExpandActionStrong
	// ExpandActionWeak is ${action.weak.name.output}: resolves to the
	// output when the target is retained, to the empty string otherwise.
	ExpandActionWeak
	// ExpandRetainedWeak is ${retained.weak.name}: 1 when the weak target
	// is part of the executable plan, else 0.
	ExpandRetainedWeak
	// ExpandRetainedSoft is ${retained.soft.name}: 1 when the soft target
	// was promoted, else 0.
	ExpandRetainedSoft
)

func (k ExpansionKind) String() string {
	switch k {
	case ExpandSystem:
		return "sys"
	case ExpandEnv:
		return "env"
	case ExpandArgs:
		return "args"
	case ExpandFlags:
		return "flags"
	case ExpandActionStrong:
		return "action"
	case ExpandActionWeak:
		return "action.weak"
	case ExpandRetainedWeak:
		return "retained.weak"
	case ExpandRetainedSoft:
		return "retained.soft"
	}
	return "unknown"
}

// Expansion is one ${...} reference extracted from a script.
type Expansion struct {
	Kind ExpansionKind
	// Target is the identifier the reference points at: variable name for
	// sys/env/args/flags, action name for the action and retained kinds.
	Target string
	// Output is the output name for action references, empty otherwise.
	Output string
	// Raw is the original text including the ${} delimiters, used for
	// substitution.
	Raw string
}

// DependsOnAction reports whether this expansion implies a dependency edge.
func (e Expansion) DependsOnAction() bool {
	return e.Kind == ExpandActionStrong || e.Kind == ExpandActionWeak
}
