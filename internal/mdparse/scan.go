package mdparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specialistvlad/mudyla/internal/model"
)

// Script text is scanned line by line for the dep/weak/soft pseudo-commands
// and ret declarations of both languages. Comment lines are skipped.
var (
	bashDepPattern  = regexp.MustCompile(`^\s*dep\s+action\.([a-zA-Z][a-zA-Z0-9_-]*)\s*$`)
	bashWeakPattern = regexp.MustCompile(`^\s*weak\s+action\.([a-zA-Z][a-zA-Z0-9_-]*)\s*$`)
	bashSoftPattern = regexp.MustCompile(`^\s*soft\s+action\.([a-zA-Z][a-zA-Z0-9_-]*)\s+retain\.action\.([a-zA-Z][a-zA-Z0-9_-]*)\s*$`)
	bashEnvPattern  = regexp.MustCompile(`^\s*dep\s+env\.([A-Z_][A-Z0-9_]*)\s*$`)
	bashRetPattern  = regexp.MustCompile(`^\s*ret\s+([a-zA-Z][a-zA-Z0-9_-]*):([a-z]+)=(.*)$`)

	pyDepPattern  = regexp.MustCompile(`^\s*mdl\.dep\s*\(\s*["']action\.([a-zA-Z][a-zA-Z0-9_-]*)["']`)
	pyWeakPattern = regexp.MustCompile(`^\s*mdl\.weak\s*\(\s*["']action\.([a-zA-Z][a-zA-Z0-9_-]*)["']`)
	pySoftPattern = regexp.MustCompile(`^\s*mdl\.soft\s*\(\s*["']action\.([a-zA-Z][a-zA-Z0-9_-]*)["']\s*,\s*["']action\.([a-zA-Z][a-zA-Z0-9_-]*)["']`)
	pyEnvPattern  = regexp.MustCompile(`^\s*mdl\.dep\s*\(\s*["']env\.([A-Z_][A-Z0-9_]*)["']`)
	pyRetPattern  = regexp.MustCompile(`^\s*mdl\.ret\s*\(\s*["']([a-zA-Z][a-zA-Z0-9_-]*)["']\s*,\s*(.+)\s*,\s*["']([a-z]+)["']\s*\)`)
)

// isComment reports a comment line; both languages use #.
func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// scanDependencies extracts dependency declarations and env dependencies
// from a script.
func scanDependencies(script string, lang model.Language, base model.SourceLocation) ([]model.DependencyDeclaration, []string) {
	var deps []model.DependencyDeclaration
	var envs []string

	depPat, weakPat, softPat, envPat := bashDepPattern, bashWeakPattern, bashSoftPattern, bashEnvPattern
	if lang == model.LangPython {
		depPat, weakPat, softPat, envPat = pyDepPattern, pyWeakPattern, pySoftPattern, pyEnvPattern
	}

	for i, line := range strings.Split(script, "\n") {
		if isComment(line) {
			continue
		}
		loc := model.SourceLocation{
			FilePath:    base.FilePath,
			LineNumber:  base.LineNumber + i,
			SectionName: base.SectionName,
		}
		switch {
		case softPat.MatchString(line):
			m := softPat.FindStringSubmatch(line)
			deps = append(deps, model.DependencyDeclaration{ActionName: m[1], Soft: true, Retainer: m[2], Location: loc})
		case weakPat.MatchString(line):
			m := weakPat.FindStringSubmatch(line)
			deps = append(deps, model.DependencyDeclaration{ActionName: m[1], Weak: true, Location: loc})
		case depPat.MatchString(line):
			m := depPat.FindStringSubmatch(line)
			deps = append(deps, model.DependencyDeclaration{ActionName: m[1], Location: loc})
		case envPat.MatchString(line):
			m := envPat.FindStringSubmatch(line)
			envs = append(envs, m[1])
		}
	}
	return deps, envs
}

// scanReturns extracts return declarations from a script.
func scanReturns(script string, lang model.Language, base model.SourceLocation) ([]model.ReturnDeclaration, error) {
	var out []model.ReturnDeclaration
	seen := make(map[string]struct{})

	for i, line := range strings.Split(script, "\n") {
		if isComment(line) {
			continue
		}

		var name, typeStr, value string
		if lang == model.LangPython {
			m := pyRetPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name, value, typeStr = m[1], strings.TrimSpace(m[2]), m[3]
		} else {
			m := bashRetPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name, typeStr, value = m[1], m[2], strings.TrimSpace(m[3])
		}

		loc := model.SourceLocation{
			FilePath:    base.FilePath,
			LineNumber:  base.LineNumber + i,
			SectionName: base.SectionName,
		}
		retType, err := model.ParseReturnType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, model.ReturnDeclaration{Name: name, Type: retType, ValueExpression: value, Location: loc})
	}
	return out, nil
}
