// Package script renders action versions into runnable files: expansion
// substitution, the bash runtime header, the generated python preamble,
// and the hermetic execution command.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/mudyla/internal/expand"
	"github.com/specialistvlad/mudyla/internal/model"
)

// RuntimeFileName is the bash runtime written once per run directory.
const RuntimeFileName = "runtime.sh"

// WriteRuntime materializes runtime.sh in the run directory; creation is
// idempotent.
func WriteRuntime(runDir string) (string, error) {
	path := filepath.Join(runDir, RuntimeFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(runtimeSh), 0o644); err != nil {
		return "", fmt.Errorf("writing bash runtime: %w", err)
	}
	return path, nil
}

// Node bundles what rendering needs to know about one scheduled action.
type Node struct {
	Version *model.ActionVersion
	// Bindings is the fully resolved expansion environment.
	Bindings expand.Bindings
	// Environment is the document-declared variable set; bash scripts
	// export it after sourcing the runtime, python scripts do not use it.
	Environment map[string]string
	// NodeDir is the node's run directory; OutputJSON and RetainFlag live
	// inside it.
	NodeDir    string
	RuntimeSh  string
	OutputJSON string
	RetainFlag string
}

// Render produces the full script text for a node, runtime included.
func Render(n Node) (string, error) {
	body, err := expand.Render(n.Version.Script, n.Version.Expansions, n.Bindings)
	if err != nil {
		return "", err
	}
	if n.Version.Language == model.LangPython {
		return renderPython(n, body)
	}
	return renderBash(n, body), nil
}

func renderBash(n Node, body string) string {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	fmt.Fprintf(&b, "export MDL_OUTPUT_JSON=%s\n", shellQuote(n.OutputJSON))
	fmt.Fprintf(&b, "export MDL_RETAIN_FLAG=%s\n", shellQuote(n.RetainFlag))
	fmt.Fprintf(&b, "source %s\n\n", shellQuote(n.RuntimeSh))

	if len(n.Environment) > 0 {
		b.WriteString("# Declared environment\n")
		for _, name := range sortedNames(n.Environment) {
			fmt.Fprintf(&b, "export %s=%s\n", name, shellQuote(n.Environment[name]))
		}
		b.WriteString("\n")
	}

	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

func renderPython(n Node, body string) (string, error) {
	contextPath, err := writeContextJSON(n)
	if err != nil {
		return "", err
	}

	preamble := pythonPreamble
	preamble = strings.ReplaceAll(preamble, "__MDL_CONTEXT_JSON__", pyQuote(contextPath))
	preamble = strings.ReplaceAll(preamble, "__MDL_OUTPUT_JSON__", pyQuote(n.OutputJSON))
	preamble = strings.ReplaceAll(preamble, "__MDL_RETAIN_FLAG__", pyQuote(n.RetainFlag))

	return preamble + body + "\n", nil
}

// writeContextJSON persists the value surface the python runtime exposes.
func writeContextJSON(n Node) (string, error) {
	actions := make(map[string]map[string]any, len(n.Bindings.Actions))
	for name, outputs := range n.Bindings.Actions {
		converted := make(map[string]any, len(outputs))
		for ret, v := range outputs {
			converted[ret] = model.ValueToJSON(v)
		}
		actions[name] = converted
	}

	data := map[string]any{
		"sys":      n.Bindings.Sys,
		"env":      n.Bindings.Env,
		"args":     n.Bindings.Args,
		"flags":    n.Bindings.Flags,
		"actions":  actions,
		"retained": n.Bindings.Retained,
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(n.NodeDir, "context.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing context.json: %w", err)
	}
	return path, nil
}

// Command describes how the wrapper invokes a rendered script.
type Command struct {
	// WithoutNix skips the hermetic wrapper and runs the interpreter
	// directly, inheriting the parent environment.
	WithoutNix bool
	// KeepVars names the variables the hermetic wrapper keeps; the engine
	// passes passthrough variables, the action's declared required
	// variables, and the document-declared variables.
	KeepVars []string
}

// Build constructs the child argv for a script.
func (c Command) Build(lang model.Language, scriptPath string) []string {
	base := []string{"bash", scriptPath}
	if lang == model.LangPython {
		base = []string{"python3", scriptPath}
	}
	if c.WithoutNix {
		return base
	}

	keep := append([]string{}, c.KeepVars...)
	sort.Strings(keep)

	argv := []string{"nix", "develop", "--ignore-environment"}
	for _, v := range keep {
		argv = append(argv, "--keep", v)
	}
	argv = append(argv, "--command")
	return append(argv, base...)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func pyQuote(s string) string {
	return strconv.Quote(s)
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
