// Package expand scans scripts for ${...} references and substitutes them
// from a resolved binding environment. Only references rooted at the known
// prefixes (sys, env, args, flags, action, retained) are touched; bash's
// own ${VAR} parameter expansions pass through untouched.
package expand

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specialistvlad/mudyla/internal/model"
	"github.com/zclconf/go-cty/cty"
)

var refPattern = regexp.MustCompile(`\$\{(sys|env|args|flags|action|retained)\.([a-zA-Z0-9_.-]+)\}`)

// Scan extracts every recognized expansion from a script. Malformed
// references under a recognized root are errors; anything else is left for
// the shell.
func Scan(script string) ([]model.Expansion, error) {
	var out []model.Expansion
	seen := make(map[string]struct{})

	for _, m := range refPattern.FindAllStringSubmatch(script, -1) {
		raw, root, rest := m[0], m[1], m[2]
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}

		exp, err := parseRef(raw, root, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, nil
}

func parseRef(raw, root, rest string) (model.Expansion, error) {
	switch root {
	case "sys":
		return model.Expansion{Kind: model.ExpandSystem, Target: rest, Raw: raw}, nil
	case "env":
		return model.Expansion{Kind: model.ExpandEnv, Target: rest, Raw: raw}, nil
	case "args":
		return model.Expansion{Kind: model.ExpandArgs, Target: rest, Raw: raw}, nil
	case "flags":
		return model.Expansion{Kind: model.ExpandFlags, Target: rest, Raw: raw}, nil
	case "action":
		if weak, ok := strings.CutPrefix(rest, "weak."); ok {
			name, output, err := splitActionRef(raw, weak)
			if err != nil {
				return model.Expansion{}, err
			}
			return model.Expansion{Kind: model.ExpandActionWeak, Target: name, Output: output, Raw: raw}, nil
		}
		name, output, err := splitActionRef(raw, rest)
		if err != nil {
			return model.Expansion{}, err
		}
		return model.Expansion{Kind: model.ExpandActionStrong, Target: name, Output: output, Raw: raw}, nil
	case "retained":
		if name, ok := strings.CutPrefix(rest, "weak."); ok {
			return model.Expansion{Kind: model.ExpandRetainedWeak, Target: name, Raw: raw}, nil
		}
		if name, ok := strings.CutPrefix(rest, "soft."); ok {
			return model.Expansion{Kind: model.ExpandRetainedSoft, Target: name, Raw: raw}, nil
		}
		return model.Expansion{}, fmt.Errorf("invalid retained reference %q: expected retained.weak.<action> or retained.soft.<action>", raw)
	}
	return model.Expansion{}, fmt.Errorf("unrecognized expansion %q", raw)
}

func splitActionRef(raw, rest string) (name, output string, err error) {
	name, output, ok := strings.Cut(rest, ".")
	if !ok || name == "" || output == "" {
		return "", "", fmt.Errorf("invalid action reference %q: expected ${action.<name>.<output>}", raw)
	}
	return name, output, nil
}

// Bindings is the resolved environment a node's expansions substitute from.
type Bindings struct {
	Sys   map[string]string
	Env   map[string]string
	Args  map[string]string
	Flags map[string]bool
	// Actions maps dependency action names to their published outputs.
	// Weak targets that were pruned are simply absent.
	Actions map[string]map[string]cty.Value
	// Retained reports, per referenced weak/soft target, whether the
	// target is part of the executable plan at dispatch time.
	Retained map[string]bool
}

// Resolve produces the substitution text for a single expansion.
func (b Bindings) Resolve(e model.Expansion) (string, error) {
	switch e.Kind {
	case model.ExpandSystem:
		v, ok := b.Sys[e.Target]
		if !ok {
			return "", fmt.Errorf("system variable %q not available", e.Target)
		}
		return v, nil
	case model.ExpandEnv:
		v, ok := b.Env[e.Target]
		if !ok {
			return "", fmt.Errorf("environment variable %q not available", e.Target)
		}
		return v, nil
	case model.ExpandArgs:
		v, ok := b.Args[e.Target]
		if !ok {
			return "", fmt.Errorf("argument %q not bound", e.Target)
		}
		return v, nil
	case model.ExpandFlags:
		if b.Flags[e.Target] {
			return "1", nil
		}
		return "0", nil
	case model.ExpandActionStrong:
		outputs, ok := b.Actions[e.Target]
		if !ok {
			return "", fmt.Errorf("outputs of action %q not available", e.Target)
		}
		v, ok := outputs[e.Output]
		if !ok {
			return "", fmt.Errorf("action %q has no output %q", e.Target, e.Output)
		}
		return model.ValueToString(v), nil
	case model.ExpandActionWeak:
		outputs, ok := b.Actions[e.Target]
		if !ok {
			return "", nil
		}
		v, ok := outputs[e.Output]
		if !ok {
			return "", nil
		}
		return model.ValueToString(v), nil
	case model.ExpandRetainedWeak, model.ExpandRetainedSoft:
		if b.Retained[e.Target] {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("unknown expansion kind %v", e.Kind)
}

// Render substitutes every expansion into the script.
func Render(script string, expansions []model.Expansion, b Bindings) (string, error) {
	rendered := script
	for _, e := range expansions {
		value, err := b.Resolve(e)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", e.Raw, err)
		}
		rendered = strings.ReplaceAll(rendered, e.Raw, value)
	}
	return rendered, nil
}
