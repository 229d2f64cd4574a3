// Package runstore owns the on-disk layout of runs:
//
//	.mdl/runs/<YYYYMMDD-HHMMSS>-<nanotail>/
//	    <node-id>/{script.sh|script.py, stdout.log, stderr.log,
//	               output.json, meta.json, retain.flag?}
//
// Run ids sort lexicographically by creation time, so the latest run for
// resumption is simply the greatest directory name.
package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/specialistvlad/mudyla/internal/model"
	"github.com/zclconf/go-cty/cty"
)

// RunsDir is where runs live, relative to the project root.
const RunsDir = ".mdl/runs"

// RetainFlagFile is the sentinel a retainer touches to promote its target.
const RetainFlagFile = "retain.flag"

// Meta is the per-node execution record.
type Meta struct {
	ActionName      string  `json:"action_name"`
	Success         bool    `json:"success"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	ExitCode        int     `json:"exit_code"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	StdoutSize      int64   `json:"stdout_size"`
	StderrSize      int64   `json:"stderr_size"`
	Restored        bool    `json:"restored,omitempty"`
}

// Store locates runs under one project root.
type Store struct {
	ProjectRoot string
}

// Run is one run directory.
type Run struct {
	ID  string
	Dir string
}

// NewRun creates a fresh run directory named by the wall clock with a
// nanosecond tail for uniqueness within a second.
func (s *Store) NewRun(now time.Time) (*Run, error) {
	id := fmt.Sprintf("%s-%09d", now.Format("20060102-150405"), now.Nanosecond())
	dir := filepath.Join(s.ProjectRoot, RunsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &Run{ID: id, Dir: dir}, nil
}

// LatestRun returns the most recent prior run, if any.
func (s *Store) LatestRun() (*Run, bool) {
	entries, err := os.ReadDir(filepath.Join(s.ProjectRoot, RunsDir))
	if err != nil {
		return nil, false
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	if len(ids) == 0 {
		return nil, false
	}
	sort.Strings(ids)
	id := ids[len(ids)-1]
	return &Run{ID: id, Dir: filepath.Join(s.ProjectRoot, RunsDir, id)}, true
}

// NodeDir ensures and returns the directory of one node within the run.
func (r *Run) NodeDir(nodeID string) (string, error) {
	dir := filepath.Join(r.Dir, nodeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating node directory: %w", err)
	}
	return dir, nil
}

// Remove deletes the whole run directory.
func (r *Run) Remove() error {
	return os.RemoveAll(r.Dir)
}

// WriteMeta persists meta.json for a node.
func WriteMeta(nodeDir string, meta Meta) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(nodeDir, "meta.json"), raw, 0o644)
}

// ReadMeta loads meta.json from a node directory.
func ReadMeta(nodeDir string) (Meta, error) {
	raw, err := os.ReadFile(filepath.Join(nodeDir, "meta.json"))
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, fmt.Errorf("parsing meta.json: %w", err)
	}
	return meta, nil
}

// HasRetainFlag reports whether the retain sentinel exists in a node dir.
func HasRetainFlag(nodeDir string) bool {
	_, err := os.Stat(filepath.Join(nodeDir, RetainFlagFile))
	return err == nil
}

// outputRecord is the wire form of one typed return in output.json.
type outputRecord struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// ParseOutputs reads output.json and coerces every declared return to its
// type. file and directory returns must point at existing paths (relative
// paths resolve against the project root).
func ParseOutputs(nodeDir, projectRoot string, decls []model.ReturnDeclaration) (map[string]cty.Value, error) {
	path := filepath.Join(nodeDir, "output.json")
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New("no output.json generated")
	}
	if err != nil {
		return nil, err
	}

	var records map[string]outputRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parsing output.json: %w", err)
	}

	outputs := make(map[string]cty.Value, len(records))
	for _, decl := range decls {
		record, ok := records[decl.Name]
		if !ok {
			// A ret on an untaken branch leaves its declaration without a
			// value; consumers referencing it fail at resolution instead.
			continue
		}
		value, err := model.CoerceValue(decl.Type, record.Value)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", decl.Name, err)
		}
		if decl.Type.IsPath() {
			if err := checkPath(decl, value, projectRoot); err != nil {
				return nil, err
			}
		}
		outputs[decl.Name] = value
	}

	// Undeclared extras ride along untyped as strings so diagnostics can
	// read them, but declared returns are authoritative.
	for name, record := range records {
		if _, ok := outputs[name]; ok {
			continue
		}
		if s, ok := record.Value.(string); ok {
			outputs[name] = cty.StringVal(s)
		}
	}
	return outputs, nil
}

func checkPath(decl model.ReturnDeclaration, value cty.Value, projectRoot string) error {
	p := value.AsString()
	if !filepath.IsAbs(p) {
		p = filepath.Join(projectRoot, p)
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("%s output %q does not exist: %s", decl.Type, decl.Name, value.AsString())
	}
	if decl.Type == model.TypeFile && info.IsDir() {
		return fmt.Errorf("file output %q is a directory: %s", decl.Name, value.AsString())
	}
	if decl.Type == model.TypeDirectory && !info.IsDir() {
		return fmt.Errorf("directory output %q is not a directory: %s", decl.Name, value.AsString())
	}
	return nil
}

// RestoreNode copies a node directory from a previous run into the current
// one, returning the restored meta.
func RestoreNode(prev *Run, current *Run, nodeID string) (Meta, error) {
	srcDir := filepath.Join(prev.Dir, nodeID)
	meta, err := ReadMeta(srcDir)
	if err != nil {
		return Meta{}, err
	}
	if !meta.Success {
		return Meta{}, fmt.Errorf("node %q did not succeed in run %s", nodeID, prev.ID)
	}
	dstDir := filepath.Join(current.Dir, nodeID)
	if err := copyTree(srcDir, dstDir); err != nil {
		return Meta{}, fmt.Errorf("restoring node %q: %w", nodeID, err)
	}
	meta.Restored = true
	if err := WriteMeta(dstDir, meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Restorable reports whether a node finished successfully in the previous
// run.
func Restorable(prev *Run, nodeID string) bool {
	if prev == nil {
		return false
	}
	meta, err := ReadMeta(filepath.Join(prev.Dir, nodeID))
	return err == nil && meta.Success
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
