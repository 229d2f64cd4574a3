package engine_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/mudyla/internal/cli"
	"github.com/specialistvlad/mudyla/internal/engine"
	"github.com/specialistvlad/mudyla/internal/graph"
	"github.com/specialistvlad/mudyla/internal/logger"
	"github.com/specialistvlad/mudyla/internal/mdparse"
	"github.com/specialistvlad/mudyla/internal/plan"
	"github.com/stretchr/testify/require"
)

// project is a throwaway workspace with definition files on disk.
type project struct {
	t    *testing.T
	root string
}

func newProject(t *testing.T, defs string) *project {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, ".mdl", "defs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.md"), []byte(defs), 0o644))
	return &project{t: t, root: root}
}

func (p *project) rewrite(defs string) {
	p.t.Helper()
	path := filepath.Join(p.root, ".mdl", "defs", "main.md")
	require.NoError(p.t, os.WriteFile(path, []byte(defs), 0o644))
}

// run drives the real pipeline: parse, resolve, build, validate, plan,
// execute with bash children (hermetic wrapper disabled).
func (p *project) run(args ...string) (*engine.Result, *engine.Engine, error) {
	p.t.Helper()

	opts, rawInvs, err := cli.Parse(args)
	require.NoError(p.t, err)

	paths, err := mdparse.Discover(p.root, opts.Defs)
	require.NoError(p.t, err)
	doc, err := mdparse.ParseFiles(context.Background(), paths)
	require.NoError(p.t, err)

	specs := make([]graph.GoalSpec, len(rawInvs))
	for i, inv := range rawInvs {
		specs[i] = graph.GoalSpec{Action: inv.Goal, Axes: inv.Axes, Args: inv.Args, Flags: inv.Flags}
	}
	invs, err := graph.ResolveInvocations(doc, opts.GlobalAxes, opts.GlobalArgs, opts.GlobalFlags, specs)
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.NewBuilder(doc, "linux").Build(context.Background(), invs)
	if err != nil {
		return nil, nil, err
	}
	if err := graph.Validate(doc, g); err != nil {
		return nil, nil, err
	}
	pl, err := plan.Compute(g)
	require.NoError(p.t, err)

	eng := engine.New(engine.Config{
		ProjectRoot: p.root,
		Platform:    "linux",
		WithoutNix:  true,
		KeepRunDir:  opts.KeepRunDir,
		Seq:         opts.Seq,
		Continue:    opts.Continue,
	}, doc, g, pl, logger.New(io.Discard, logger.Options{Simple: true}))

	result, err := eng.Run(context.Background())
	return result, eng, err
}

// mustSucceed runs and asserts overall success, returning goal outputs.
func (p *project) mustSucceed(args ...string) map[string]map[string]any {
	p.t.Helper()
	result, eng, err := p.run(args...)
	require.NoError(p.t, err)
	for key, node := range result.Nodes {
		if node.Err != nil {
			p.t.Logf("node %s: %v", key, node.Err)
		}
	}
	require.True(p.t, result.Success, "run should succeed")
	return eng.GoalOutputs(result)
}
