package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/mudyla/internal/ctxlog"
	"github.com/specialistvlad/mudyla/internal/expand"
	"github.com/specialistvlad/mudyla/internal/logger"
	"github.com/specialistvlad/mudyla/internal/runstore"
	"github.com/specialistvlad/mudyla/internal/script"
)

// executeNode runs one node through the full protocol: restoration,
// rendering, spawn, capture, output validation, and meta persistence.
func (e *Engine) executeNode(
	ctx context.Context,
	key string,
	run, prev *runstore.Run,
	runtimePath string,
	bindings expand.Bindings,
	procs *processTable,
) *NodeResult {
	log := ctxlog.FromContext(ctx)
	node := e.graph.Node(key)

	nodeDir, err := run.NodeDir(key)
	if err != nil {
		return failResult(key, "", err)
	}

	// A successful node from the previous run is copied over verbatim and
	// its outputs republished without spawning anything.
	if e.cfg.Continue && runstore.Restorable(prev, key) {
		meta, err := runstore.RestoreNode(prev, run, key)
		if err != nil {
			return failResult(key, nodeDir, err)
		}
		outputs, err := runstore.ParseOutputs(nodeDir, e.cfg.ProjectRoot, node.Version.Returns)
		if err != nil {
			return failResult(key, nodeDir, fmt.Errorf("restored outputs: %w", err))
		}
		log.Debug("Node restored from previous run.", "node", key, "run", prev.ID)
		return &NodeResult{Key: key, Status: logger.StatusRestored, Meta: meta, Outputs: outputs, NodeDir: nodeDir}
	}

	if ctx.Err() != nil {
		return &NodeResult{Key: key, Status: logger.StatusCancelled, NodeDir: nodeDir}
	}

	outputJSON := filepath.Join(nodeDir, "output.json")
	retainFlag := filepath.Join(nodeDir, runstore.RetainFlagFile)

	bindings.Sys = e.systemVars(node.Context, run.Dir, nodeDir)
	bindings.Env = e.resolvedEnv()

	rendered, err := script.Render(script.Node{
		Version:     node.Version,
		Bindings:    bindings,
		Environment: e.doc.Environment,
		NodeDir:     nodeDir,
		RuntimeSh:   runtimePath,
		OutputJSON:  outputJSON,
		RetainFlag:  retainFlag,
	})
	if err != nil {
		return failResult(key, nodeDir, err)
	}

	scriptPath := filepath.Join(nodeDir, "script"+node.Version.Language.ScriptExtension())
	if err := os.WriteFile(scriptPath, []byte(rendered), 0o755); err != nil {
		return failResult(key, nodeDir, fmt.Errorf("writing script: %w", err))
	}

	argv := script.Command{
		WithoutNix: e.cfg.WithoutNix,
		KeepVars:   e.keepVars(node.Action),
	}.Build(node.Version.Language, scriptPath)

	tee := e.cfg.Verbose || e.cfg.GithubActions
	if e.cfg.GithubActions {
		fmt.Fprintf(os.Stdout, "::group::%s\n", key)
	}
	if tee {
		log.Info("Spawning child.", "node", key, "command", strings.Join(argv, " "))
	}

	start := time.Now()
	outcome, runErr := runProcess(
		argv,
		e.cfg.ProjectRoot,
		e.childEnvironment(),
		filepath.Join(nodeDir, "stdout.log"),
		filepath.Join(nodeDir, "stderr.log"),
		tee,
		procs,
	)
	end := time.Now()

	if e.cfg.GithubActions {
		fmt.Fprintln(os.Stdout, "::endgroup::")
	}

	meta := runstore.Meta{
		ActionName:      node.Action.Name,
		StartTime:       start.Format(time.RFC3339Nano),
		EndTime:         end.Format(time.RFC3339Nano),
		DurationSeconds: end.Sub(start).Seconds(),
		ExitCode:        outcome.ExitCode,
		StdoutSize:      outcome.StdoutSize,
		StderrSize:      outcome.StderrSize,
	}

	fail := func(msg string) *NodeResult {
		meta.Success = false
		meta.ErrorMessage = msg
		_ = runstore.WriteMeta(nodeDir, meta)
		return &NodeResult{
			Key:     key,
			Status:  logger.StatusFailed,
			Meta:    meta,
			Err:     fmt.Errorf("%s", msg),
			NodeDir: nodeDir,
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			meta.Success = false
			meta.ErrorMessage = "cancelled"
			_ = runstore.WriteMeta(nodeDir, meta)
			return &NodeResult{Key: key, Status: logger.StatusCancelled, Meta: meta, NodeDir: nodeDir}
		}
		return fail(fmt.Sprintf("execution error: %v", runErr))
	}
	if outcome.ExitCode != 0 {
		if ctx.Err() != nil {
			meta.Success = false
			meta.ErrorMessage = "cancelled"
			_ = runstore.WriteMeta(nodeDir, meta)
			return &NodeResult{Key: key, Status: logger.StatusCancelled, Meta: meta, NodeDir: nodeDir}
		}
		return fail(fmt.Sprintf("script exited with code %d", outcome.ExitCode))
	}

	outputs, err := runstore.ParseOutputs(nodeDir, e.cfg.ProjectRoot, node.Version.Returns)
	if err != nil {
		return fail(err.Error())
	}

	meta.Success = true
	if err := runstore.WriteMeta(nodeDir, meta); err != nil {
		return fail(fmt.Sprintf("writing meta.json: %v", err))
	}
	return &NodeResult{Key: key, Status: logger.StatusDone, Meta: meta, Outputs: outputs, NodeDir: nodeDir}
}

// systemVars builds the ${sys.*} namespace of a node.
func (e *Engine) systemVars(nodeCtx map[string]string, runDir, nodeDir string) map[string]string {
	vars := map[string]string{
		"project-root": e.cfg.ProjectRoot,
		"run-dir":      runDir,
		"action-dir":   nodeDir,
		"nix":          "1",
	}
	if e.cfg.WithoutNix {
		vars["nix"] = "0"
	}
	for name, value := range nodeCtx {
		vars["axis."+name] = value
	}
	return vars
}

// resolvedEnv is the value set ${env.*} expansions resolve from: the
// parent process environment overlaid with document-declared variables.
func (e *Engine) resolvedEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			env[name] = value
		}
	}
	for name, value := range e.doc.Environment {
		env[name] = value
	}
	return env
}

func failResult(key, nodeDir string, err error) *NodeResult {
	return &NodeResult{
		Key:     key,
		Status:  logger.StatusFailed,
		Meta:    runstore.Meta{ErrorMessage: err.Error()},
		Err:     err,
		NodeDir: nodeDir,
	}
}
