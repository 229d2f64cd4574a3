package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/specialistvlad/mudyla/internal/ctxlog"
	"github.com/specialistvlad/mudyla/internal/graph"
	"github.com/specialistvlad/mudyla/internal/logger"
	"github.com/specialistvlad/mudyla/internal/model"
	"github.com/specialistvlad/mudyla/internal/plan"
	"github.com/specialistvlad/mudyla/internal/runstore"
	"github.com/specialistvlad/mudyla/internal/script"
	"github.com/zclconf/go-cty/cty"
)

// maxWorkers bounds the pool regardless of core count.
const maxWorkers = 32

// Config carries the run-scoped settings of one engine instance.
type Config struct {
	ProjectRoot   string
	Platform      string
	WithoutNix    bool
	Verbose       bool
	GithubActions bool
	KeepRunDir    bool
	Seq           bool
	Continue      bool
	// Timeout is the global wall-clock budget; zero disables it.
	Timeout time.Duration
}

// NodeResult is the outcome of one node.
type NodeResult struct {
	Key      string
	Status   logger.Status
	Meta     runstore.Meta
	Outputs  map[string]cty.Value
	Err      error
	NodeDir  string
	Promoted bool
}

// Result is the outcome of a whole run.
type Result struct {
	Success   bool
	Cancelled bool
	Nodes     map[string]*NodeResult
	RunID     string
	RunDir    string
	// RunDirKept reports whether the run directory still exists.
	RunDirKept bool
}

// Engine executes one planned run.
type Engine struct {
	cfg   Config
	doc   *model.Document
	graph *graph.Graph
	plan  *plan.Plan
	store *runstore.Store
	log   logger.Logger
}

// New assembles an engine; the logger is owned by the caller but driven by
// the engine for node transitions.
func New(cfg Config, doc *model.Document, g *graph.Graph, p *plan.Plan, log logger.Logger) *Engine {
	return &Engine{
		cfg:   cfg,
		doc:   doc,
		graph: g,
		plan:  p,
		store: &runstore.Store{ProjectRoot: cfg.ProjectRoot},
		log:   log,
	}
}

// Run executes the plan to completion, cancellation, or first failure.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	log := ctxlog.FromContext(ctx)

	var prev *runstore.Run
	if e.cfg.Continue {
		if p, ok := e.store.LatestRun(); ok {
			prev = p
			log.Debug("Continuing from previous run.", "run", p.ID)
		} else {
			log.Warn("No previous run found, starting fresh.")
		}
	}

	run, err := e.store.NewRun(time.Now())
	if err != nil {
		return nil, err
	}
	runtimePath, err := script.WriteRuntime(run.Dir)
	if err != nil {
		return nil, err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	infos := make([]logger.NodeInfo, 0, len(e.plan.Order))
	for _, key := range e.plan.Order {
		infos = append(infos, logger.NodeInfo{Key: key, Label: e.graph.Node(key).Label()})
	}
	e.log.RunStarted(run.ID, infos)

	sched := newScheduler(e, run, prev, runtimePath, e.workerCount())
	result := sched.runLoop(ctx)
	result.RunID = run.ID
	result.RunDir = run.Dir
	result.RunDirKept = true

	if result.Success && !e.cfg.KeepRunDir {
		if err := run.Remove(); err != nil {
			log.Warn("Failed to clean up run directory.", "error", err)
		} else {
			result.RunDirKept = false
		}
	}
	return result, nil
}

func (e *Engine) workerCount() int {
	if e.cfg.Seq {
		return 1
	}
	n := runtime.NumCPU()
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// childEnvironment builds the process environment of a child: the parent
// environment plus the document-declared variables.
func (e *Engine) childEnvironment() []string {
	env := os.Environ()
	for name, value := range e.doc.Environment {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}
	return env
}

// keepVars is the hermetic wrapper's keep list for an action: globally
// passed-through variables, the action's declared required variables, and
// the document-declared variables set by childEnvironment.
func (e *Engine) keepVars(action *model.ActionDefinition) []string {
	seen := make(map[string]struct{})
	var keep []string
	for _, name := range e.doc.Passthrough {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			keep = append(keep, name)
		}
	}
	for name := range action.RequiredEnvVars {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			keep = append(keep, name)
		}
	}
	for name := range e.doc.Environment {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			keep = append(keep, name)
		}
	}
	return keep
}
