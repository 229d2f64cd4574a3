// Package mdparse turns markdown definition files into the normalized
// document the planner-executor core consumes.
//
// The grammar is line and section oriented: top-level `#` headings open a
// construct (action, arguments, flags, axis, environment), list items carry
// declarations, and fenced bash/python code blocks carry action versions.
package mdparse

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/specialistvlad/mudyla/internal/ctxlog"
	"github.com/specialistvlad/mudyla/internal/expand"
	"github.com/specialistvlad/mudyla/internal/model"
)

var (
	actionHeaderPattern = regexp.MustCompile(`^action:\s*([a-z][a-z0-9-]*)$`)
	conditionPattern    = regexp.MustCompile("^definition\\s+when\\s+`([^`]+)`$")
	argPattern          = regexp.MustCompile("^\\s*-\\s*`args\\.([a-zA-Z][a-zA-Z0-9_-]*)`:\\s*([a-zA-Z]+)(=\"[^\"]*\")?\\s*;\\s*(.*)$")
	flagPattern         = regexp.MustCompile("^\\s*-\\s*`flags\\.([a-zA-Z][a-zA-Z0-9_-]*)`:\\s*(.*)$")
	axisPattern         = regexp.MustCompile("^\\s*-\\s*`([a-zA-Z][a-zA-Z0-9_-]*)`\\s*=\\s*`\\{([^}]+)\\}`\\s*$")
	envValuePattern     = regexp.MustCompile("^\\s*-\\s*`([A-Z_][A-Z0-9_]*)`:\\s*(.*)$")
	envNamePattern      = regexp.MustCompile("^\\s*-\\s*`([A-Z_][A-Z0-9_]*)`\\s*$")
	varsPattern         = regexp.MustCompile("^\\s*-\\s*`([A-Z_][A-Z0-9_]*)`:\\s*(.*)$")
)

// section is one top-level `#` heading with its body lines.
type section struct {
	title     string
	startLine int
	lines     []string
}

// ParseFiles parses every file into one document. Duplicate action names
// across files fail; for arguments, flags, and axes the last definition
// wins.
func ParseFiles(ctx context.Context, paths []string) (*model.Document, error) {
	logger := ctxlog.FromContext(ctx)
	doc := model.NewDocument()
	passthrough := make(map[string]struct{})

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading definitions file: %w", err)
		}
		if err := parseFile(doc, passthrough, path, string(raw)); err != nil {
			return nil, err
		}
	}

	for name := range passthrough {
		doc.Passthrough = append(doc.Passthrough, name)
	}
	logger.Debug("Definitions parsed.",
		"files", len(paths),
		"actions", len(doc.Actions),
		"axes", len(doc.Axes),
	)
	return doc, nil
}

func parseFile(doc *model.Document, passthrough map[string]struct{}, path, content string) error {
	for _, sec := range splitSections(content) {
		title := strings.TrimSpace(sec.title)
		switch strings.ToLower(title) {
		case "arguments":
			if err := parseArguments(doc, path, sec); err != nil {
				return err
			}
		case "flags":
			parseFlags(doc, path, sec)
		case "axis":
			if err := parseAxes(doc, path, sec); err != nil {
				return err
			}
		case "environment":
			parseEnvironment(doc, passthrough, sec)
		default:
			m := actionHeaderPattern.FindStringSubmatch(title)
			if m == nil {
				continue
			}
			action, err := parseAction(path, m[1], sec)
			if err != nil {
				return err
			}
			if err := doc.AddAction(action); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitSections(content string) []section {
	var sections []section
	var current *section
	inFence := false

	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &section{title: strings.TrimPrefix(line, "# "), startLine: i + 1}
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

func sectionLocation(path string, sec section) model.SourceLocation {
	return model.SourceLocation{FilePath: path, LineNumber: sec.startLine, SectionName: sec.title}
}

func parseArguments(doc *model.Document, path string, sec section) error {
	for _, line := range sec.lines {
		m := argPattern.FindStringSubmatch(normalizeItem(line))
		if m == nil {
			continue
		}
		argType, err := model.ParseReturnType(m[2])
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, sec.startLine, err)
		}
		var def *string
		if m[3] != "" {
			v := strings.TrimSuffix(strings.TrimPrefix(m[3], "=\""), "\"")
			def = &v
		}
		doc.Arguments[m[1]] = &model.ArgumentDefinition{
			Name:        m[1],
			Type:        argType,
			Default:     def,
			Description: strings.TrimSpace(m[4]),
			Location:    sectionLocation(path, sec),
		}
	}
	return nil
}

func parseFlags(doc *model.Document, path string, sec section) {
	for _, line := range sec.lines {
		m := flagPattern.FindStringSubmatch(normalizeItem(line))
		if m == nil {
			continue
		}
		doc.Flags[m[1]] = &model.FlagDefinition{
			Name:        m[1],
			Description: strings.TrimSpace(m[2]),
			Location:    sectionLocation(path, sec),
		}
	}
}

func parseAxes(doc *model.Document, path string, sec section) error {
	for _, line := range sec.lines {
		m := axisPattern.FindStringSubmatch(normalizeItem(line))
		if m == nil {
			continue
		}
		name := m[1]
		var values []model.AxisValue
		defaults := 0
		for _, part := range strings.Split(m[2], "|") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			isDefault := strings.HasSuffix(part, "*")
			if isDefault {
				part = strings.TrimSuffix(part, "*")
				defaults++
			}
			values = append(values, model.AxisValue{Value: part, IsDefault: isDefault})
		}
		if defaults > 1 {
			return fmt.Errorf("%s:%d: axis %q has %d default values, at most one is allowed", path, sec.startLine, name, defaults)
		}
		doc.Axes[name] = &model.AxisDefinition{
			Name:     name,
			Values:   values,
			Location: sectionLocation(path, sec),
		}
	}
	return nil
}

func parseEnvironment(doc *model.Document, passthrough map[string]struct{}, sec section) {
	inPassthrough := false
	for _, line := range sec.lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") {
			inPassthrough = strings.EqualFold(strings.TrimSpace(strings.TrimLeft(trimmed, "#")), "passthrough")
			continue
		}
		item := normalizeItem(line)
		if inPassthrough {
			if m := envNamePattern.FindStringSubmatch(item); m != nil {
				passthrough[m[1]] = struct{}{}
			}
			continue
		}
		if m := envValuePattern.FindStringSubmatch(item); m != nil {
			doc.Environment[m[1]] = strings.TrimSpace(m[2])
		}
	}
}

func parseAction(path, name string, sec section) (*model.ActionDefinition, error) {
	action := &model.ActionDefinition{
		Name:            name,
		RequiredEnvVars: make(map[string]string),
		Location:        sectionLocation(path, sec),
	}

	var conditions []model.Condition
	var fenceLang model.Language
	var fenceLines []string
	var fenceStart int
	inFence := false
	inVars := false

	flushVersion := func() error {
		if fenceLines == nil {
			return nil
		}
		version, err := buildVersion(path, name, fenceLang, strings.Join(fenceLines, "\n"), conditions, sec.startLine+fenceStart)
		if err != nil {
			return err
		}
		action.Versions = append(action.Versions, version)
		fenceLines = nil
		return nil
	}

	for i, line := range sec.lines {
		trimmed := strings.TrimSpace(line)

		if inFence {
			if trimmed == "```" {
				inFence = false
				if err := flushVersion(); err != nil {
					return nil, err
				}
				continue
			}
			fenceLines = append(fenceLines, line)
			continue
		}

		switch {
		case trimmed == "```bash" || trimmed == "```sh":
			inFence, fenceLang, fenceStart = true, model.LangBash, i+1
			fenceLines = []string{}
		case trimmed == "```python" || trimmed == "```py":
			inFence, fenceLang, fenceStart = true, model.LangPython, i+1
			fenceLines = []string{}
		case strings.HasPrefix(trimmed, "##"):
			header := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			inVars = strings.EqualFold(header, "vars")
			if m := conditionPattern.FindStringSubmatch(header); m != nil {
				parsed, err := parseConditions(path, sec.startLine+i, m[1])
				if err != nil {
					return nil, err
				}
				conditions = parsed
			} else {
				conditions = nil
			}
		case inVars:
			if m := varsPattern.FindStringSubmatch(normalizeItem(line)); m != nil {
				action.RequiredEnvVars[m[1]] = strings.TrimSpace(m[2])
			}
		case action.Description == "" && trimmed != "" && !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "#"):
			action.Description = trimmed
		}
	}

	if inFence {
		return nil, fmt.Errorf("%s:%d: unterminated code block in action %q", path, sec.startLine, name)
	}
	if len(action.Versions) == 0 {
		return nil, fmt.Errorf("%s: action %q has no bash or python code block", action.Location, name)
	}
	return action, nil
}

func buildVersion(path, actionName string, lang model.Language, script string, conditions []model.Condition, line int) (*model.ActionVersion, error) {
	loc := model.SourceLocation{FilePath: path, LineNumber: line, SectionName: "action: " + actionName}

	expansions, err := expand.Scan(script)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	returns, err := scanReturns(script, lang, loc)
	if err != nil {
		return nil, err
	}
	deps, envDeps := scanDependencies(script, lang, loc)

	return &model.ActionVersion{
		Script:          script,
		Language:        lang,
		Conditions:      conditions,
		Expansions:      expansions,
		Returns:         returns,
		Dependencies:    deps,
		EnvDependencies: envDeps,
		Location:        loc,
	}, nil
}

var validPlatforms = map[string]struct{}{"linux": {}, "macos": {}, "windows": {}}

func parseConditions(path string, line int, spec string) ([]model.Condition, error) {
	var out []model.Condition
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%s:%d: invalid condition %q, expected 'name: value'", path, line, part)
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name == "sys.platform" {
			if _, ok := validPlatforms[value]; !ok {
				return nil, fmt.Errorf("%s:%d: invalid platform %q (valid: linux, macos, windows)", path, line, value)
			}
			out = append(out, model.PlatformCondition{Platform: value})
			continue
		}
		out = append(out, model.AxisCondition{Name: name, Value: value})
	}
	return out, nil
}

// normalizeItem makes bare lines look like list items so the item patterns
// match both `- x` and plain `x` bodies.
func normalizeItem(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "-") {
		return line
	}
	return "- " + trimmed
}
