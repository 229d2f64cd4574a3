// Package config loads the optional per-project configuration file
// `.mdl/config.yaml`. CLI options always win; the file only supplies
// defaults for options the user did not pass.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/mudyla/internal/cli"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration path relative to the project root.
const FileName = ".mdl/config.yaml"

// Settings mirrors the YAML schema. Pointer fields distinguish "unset"
// from an explicit false.
type Settings struct {
	Defs       string `yaml:"defs"`
	WithoutNix *bool  `yaml:"without_nix"`
	KeepRunDir *bool  `yaml:"keep_run_dir"`
	SimpleLog  *bool  `yaml:"simple_log"`
	NoColor    *bool  `yaml:"no_color"`
	Seq        *bool  `yaml:"seq"`
	// Timeout is the global wall-clock budget for a run, as a Go duration
	// string. Zero means no timeout.
	Timeout string `yaml:"timeout"`
}

// Load reads the project config file. A missing file yields empty settings.
func Load(projectRoot string) (*Settings, error) {
	raw, err := os.ReadFile(filepath.Join(projectRoot, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if _, err := s.GlobalTimeout(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Apply fills options the CLI left at their zero value.
func (s *Settings) Apply(opts *cli.Options) {
	if opts.Defs == "" && s.Defs != "" {
		opts.Defs = s.Defs
	}
	applyBool(&opts.WithoutNix, s.WithoutNix)
	applyBool(&opts.KeepRunDir, s.KeepRunDir)
	applyBool(&opts.SimpleLog, s.SimpleLog)
	applyBool(&opts.NoColor, s.NoColor)
	applyBool(&opts.Seq, s.Seq)
}

// GlobalTimeout parses the configured timeout; zero when unset.
func (s *Settings) GlobalTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %w", s.Timeout, FileName, err)
	}
	return d, nil
}

func applyBool(dst *bool, src *bool) {
	if src != nil && !*dst {
		*dst = *src
	}
}
