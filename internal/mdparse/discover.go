package mdparse

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultDefsPattern is where definition files are looked up when the CLI
// does not override it.
const DefaultDefsPattern = ".mdl/defs/**/*.md"

// Discover resolves the definitions glob relative to the project root and
// returns the matching files in a stable order.
func Discover(projectRoot, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultDefsPattern
	}

	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(projectRoot, pattern)
	}

	matches, err := doublestar.FilepathGlob(full, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid definitions pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no definition files match %q", pattern)
	}

	sort.Strings(matches)
	return matches, nil
}
