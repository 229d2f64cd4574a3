// Package app wires the pipeline together for one CLI invocation:
// discover and parse definitions, resolve invocations, build and validate
// the graph, plan, execute, and present outputs.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/specialistvlad/mudyla/internal/cli"
	"github.com/specialistvlad/mudyla/internal/config"
	"github.com/specialistvlad/mudyla/internal/ctxlog"
	"github.com/specialistvlad/mudyla/internal/engine"
	"github.com/specialistvlad/mudyla/internal/graph"
	"github.com/specialistvlad/mudyla/internal/logger"
	"github.com/specialistvlad/mudyla/internal/mdparse"
	"github.com/specialistvlad/mudyla/internal/model"
	"github.com/specialistvlad/mudyla/internal/plan"
)

// App is one configured run of mdl.
type App struct {
	outW        io.Writer
	opts        *cli.Options
	invocations []cli.Invocation
	projectRoot string
}

// New constructs the app for a parsed command line, rooted at the current
// working directory.
func New(outW io.Writer, opts *cli.Options, invocations []cli.Invocation) (*App, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining project root: %w", err)
	}
	return &App{outW: outW, opts: opts, invocations: invocations, projectRoot: root}, nil
}

// Platform normalizes runtime.GOOS to the condition vocabulary.
func Platform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// Run executes the invocation and returns nil, or an error that main maps
// to an exit code.
func (a *App) Run(ctx context.Context) error {
	log := newLogger(a.opts.Verbose)
	ctx = ctxlog.WithLogger(ctx, log)

	settings, err := config.Load(a.projectRoot)
	if err != nil {
		return cli.UserError("%v", err)
	}
	settings.Apply(a.opts)
	timeout, err := settings.GlobalTimeout()
	if err != nil {
		return cli.UserError("%v", err)
	}

	paths, err := mdparse.Discover(a.projectRoot, a.opts.Defs)
	if err != nil {
		return cli.UserError("%v", err)
	}
	doc, err := mdparse.ParseFiles(ctx, paths)
	if err != nil {
		return cli.UserError("%v", err)
	}

	if a.opts.Autocomplete != "" {
		return a.autocomplete(doc)
	}
	if a.opts.ListActions {
		a.listActions(doc)
		return nil
	}
	if len(a.invocations) == 0 {
		return cli.UserError("no goals specified; invoke as: mdl [options] :goal [goal options]")
	}

	goals := make([]graph.GoalSpec, len(a.invocations))
	for i, inv := range a.invocations {
		goals[i] = graph.GoalSpec{Action: inv.Goal, Axes: inv.Axes, Args: inv.Args, Flags: inv.Flags}
	}
	resolved, err := graph.ResolveInvocations(doc, a.opts.GlobalAxes, a.opts.GlobalArgs, a.opts.GlobalFlags, goals)
	if err != nil {
		return cli.UserError("%v", err)
	}

	g, err := graph.NewBuilder(doc, Platform()).Build(ctx, resolved)
	if err != nil {
		return cli.UserError("%v", err)
	}
	if err := graph.Validate(doc, g); err != nil {
		return cli.UserError("%v", err)
	}
	p, err := plan.Compute(g)
	if err != nil {
		return err
	}

	if a.opts.DryRun {
		fmt.Fprint(a.outW, p.Render())
		return nil
	}

	return a.execute(ctx, doc, g, p, timeout)
}

func (a *App) execute(ctx context.Context, doc *model.Document, g *graph.Graph, p *plan.Plan, timeout time.Duration) error {
	progress := logger.New(a.outW, logger.Options{
		Simple:        a.opts.SimpleLog,
		GithubActions: a.opts.GithubActions,
		Verbose:       a.opts.Verbose,
		NoColor:       a.opts.NoColor,
	})

	eng := engine.New(engine.Config{
		ProjectRoot:   a.projectRoot,
		Platform:      Platform(),
		WithoutNix:    a.opts.WithoutNix,
		Verbose:       a.opts.Verbose,
		GithubActions: a.opts.GithubActions,
		KeepRunDir:    a.opts.KeepRunDir,
		Seq:           a.opts.Seq,
		Continue:      a.opts.Continue,
		Timeout:       timeout,
	}, doc, g, p, progress)

	result, err := eng.Run(ctx)
	progress.Close()
	if err != nil {
		return err
	}

	if result.Cancelled {
		return &cli.ExitError{Code: cli.ExitCancelled, Message: "cancelled"}
	}
	if !result.Success {
		if result.RunDirKept {
			fmt.Fprintf(a.outW, "run directory retained: %s\n", result.RunDir)
		}
		return &cli.ExitError{Code: cli.ExitActionFailure, Message: a.failureSummary(result)}
	}

	raw, err := eng.RenderGoalOutputs(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "%s\n", raw)

	if a.opts.Out != "" {
		if err := os.WriteFile(a.opts.Out, append(raw, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing outputs to %s: %w", a.opts.Out, err)
		}
	}
	return nil
}

func (a *App) failureSummary(result *engine.Result) string {
	for key, res := range result.Nodes {
		if res.Err != nil {
			return fmt.Sprintf("action %s failed: %v (run directory: %s)", key, res.Err, result.RunDir)
		}
	}
	return "execution failed"
}
