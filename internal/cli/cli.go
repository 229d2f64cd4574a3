package cli

import (
	"fmt"
	"strings"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitUserError     = 1
	ExitActionFailure = 2
	ExitCancelled     = 130
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// UserError wraps a message into an ExitError with the user-error code.
func UserError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitUserError, Message: fmt.Sprintf(format, args...)}
}

// Options carries the recognized global options of one mdl run.
type Options struct {
	Defs          string
	ListActions   bool
	DryRun        bool
	Continue      bool
	KeepRunDir    bool
	WithoutNix    bool
	Verbose       bool
	GithubActions bool
	SimpleLog     bool
	NoColor       bool
	Seq           bool
	Out           string

	// Autocomplete selects the completion data source: actions, flags,
	// axis-names, or axis-values (with AutocompleteAxis naming the axis).
	Autocomplete     string
	AutocompleteAxis string

	// Global bindings, layered under per-invocation ones. Axis values may
	// be wildcard patterns.
	GlobalAxes  map[string]string
	GlobalArgs  map[string]string
	GlobalFlags map[string]bool
}

// Invocation is one `:goal` with its local bindings, wildcards not yet
// expanded.
type Invocation struct {
	Goal  string
	Axes  map[string]string
	Args  map[string]string
	Flags map[string]bool
}

// axisAliases are the tokens that introduce an axis binding.
var axisAliases = map[string]struct{}{
	"--axis": {},
	"--use":  {},
	"-a":     {},
	"-u":     {},
}

var autocompleteModes = map[string]struct{}{
	"actions": {}, "flags": {}, "axis-names": {}, "axis-values": {},
}

// Parse tokenizes the full argument list into global options and goal
// invocations.
func Parse(args []string) (*Options, []Invocation, error) {
	opts := &Options{
		GlobalAxes:  make(map[string]string),
		GlobalArgs:  make(map[string]string),
		GlobalFlags: make(map[string]bool),
	}
	var invocations []Invocation
	var current *Invocation

	setAxis := func(name, value string) {
		if current != nil {
			current.Axes[name] = value
		} else {
			opts.GlobalAxes[name] = value
		}
	}
	setArg := func(name, value string) {
		if current != nil {
			current.Args[name] = value
		} else {
			opts.GlobalArgs[name] = value
		}
	}
	setFlag := func(name string) {
		if current != nil {
			current.Flags[name] = true
		} else {
			opts.GlobalFlags[name] = true
		}
	}

	for i := 0; i < len(args); i++ {
		token := args[i]

		if goal, ok := strings.CutPrefix(token, ":"); ok {
			if goal == "" {
				return nil, nil, UserError("goal name cannot be empty")
			}
			if current != nil {
				invocations = append(invocations, *current)
			}
			current = &Invocation{
				Goal:  goal,
				Axes:  make(map[string]string),
				Args:  make(map[string]string),
				Flags: make(map[string]bool),
			}
			continue
		}

		name, attached, hasValue := strings.Cut(token, "=")

		if _, ok := axisAliases[name]; ok {
			spec := attached
			if !hasValue {
				if i+1 >= len(args) {
					return nil, nil, UserError("expected <name>:<value> after %s", name)
				}
				i++
				spec = args[i]
			}
			axisName, axisValue, err := splitAxisBinding(spec)
			if err != nil {
				return nil, nil, err
			}
			setAxis(axisName, axisValue)
			continue
		}

		// Recognized options are global no matter where they appear;
		// goal-scoped tokens are only axis/arg/flag bindings.
		consumed, err := parseGlobalOption(opts, name, attached, hasValue, args, &i)
		if err != nil {
			return nil, nil, err
		}
		if consumed {
			continue
		}

		stripped, ok := strings.CutPrefix(name, "--")
		if !ok || stripped == "" {
			return nil, nil, UserError("unexpected token %q (goals start with ':', options with '--')", token)
		}
		if hasValue {
			setArg(stripped, attached)
		} else {
			setFlag(stripped)
		}
	}

	if current != nil {
		invocations = append(invocations, *current)
	}

	if opts.Autocomplete == "" && opts.AutocompleteAxis != "" {
		opts.Autocomplete = "axis-values"
	}
	return opts, invocations, nil
}

// parseGlobalOption consumes a recognized global option; returns false when
// the token is a user argument or flag instead.
func parseGlobalOption(opts *Options, name, attached string, hasValue bool, args []string, i *int) (bool, error) {
	switch name {
	case "--defs":
		if !hasValue {
			return false, UserError("--defs requires a value: --defs=<glob>")
		}
		opts.Defs = attached
	case "--list-actions":
		opts.ListActions = true
	case "--dry-run":
		opts.DryRun = true
	case "--continue":
		opts.Continue = true
	case "--keep-run-dir":
		opts.KeepRunDir = true
	case "--without-nix":
		opts.WithoutNix = true
	case "--verbose":
		opts.Verbose = true
	case "--github-actions":
		opts.GithubActions = true
	case "--simple-log":
		opts.SimpleLog = true
	case "--no-color":
		opts.NoColor = true
	case "--seq":
		opts.Seq = true
	case "--out":
		if !hasValue {
			return false, UserError("--out requires a value: --out=<path>")
		}
		opts.Out = attached
	case "--autocomplete":
		opts.Autocomplete = "actions"
		if hasValue {
			opts.Autocomplete = attached
		} else if *i+1 < len(args) {
			if _, ok := autocompleteModes[args[*i+1]]; ok {
				*i++
				opts.Autocomplete = args[*i]
			}
		}
		if _, ok := autocompleteModes[opts.Autocomplete]; !ok {
			return false, UserError("invalid autocomplete mode %q (valid: actions, flags, axis-names, axis-values)", opts.Autocomplete)
		}
	case "--autocomplete-axis":
		if !hasValue {
			return false, UserError("--autocomplete-axis requires a value")
		}
		opts.AutocompleteAxis = attached
	default:
		return false, nil
	}
	return true, nil
}

func splitAxisBinding(spec string) (string, string, error) {
	name, value, ok := strings.Cut(spec, ":")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if !ok || name == "" || value == "" {
		return "", "", UserError("axis binding %q is invalid, expected <name>:<value>", spec)
	}
	return name, value, nil
}
