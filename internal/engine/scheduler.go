package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/specialistvlad/mudyla/internal/ctxlog"
	"github.com/specialistvlad/mudyla/internal/expand"
	"github.com/specialistvlad/mudyla/internal/logger"
	"github.com/specialistvlad/mudyla/internal/runstore"
	"github.com/zclconf/go-cty/cty"
)

// softConsumer records one soft edge from the retainer's point of view.
type softConsumer struct {
	consumer string
	target   string
}

// scheduler drives the worker pool. Dispatch decisions and completions are
// serialized: workers only execute and report back on the completion
// channel, every state mutation happens under one mutex in the scheduler
// loop.
type scheduler struct {
	e           *Engine
	run         *runstore.Run
	prev        *runstore.Run
	runtimePath string
	workers     int

	mu         sync.Mutex
	active     map[string]struct{}
	pending    map[string]map[string]struct{}
	dispatched map[string]struct{}
	finished   map[string]*NodeResult
	promoted   map[string]struct{}
	outputs    map[string]map[string]cty.Value
	ready      []string

	// retainers maps a retainer node key to the soft edges it decides.
	retainers map[string][]softConsumer

	stopDispatch bool
	cancelled    bool
	inFlight     int

	completions chan *NodeResult
}

func newScheduler(e *Engine, run, prev *runstore.Run, runtimePath string, workers int) *scheduler {
	s := &scheduler{
		e:           e,
		run:         run,
		prev:        prev,
		runtimePath: runtimePath,
		workers:     workers,
		active:      make(map[string]struct{}),
		pending:     make(map[string]map[string]struct{}),
		dispatched:  make(map[string]struct{}),
		finished:    make(map[string]*NodeResult),
		promoted:    make(map[string]struct{}),
		outputs:     make(map[string]map[string]cty.Value),
		retainers:   make(map[string][]softConsumer),
		completions: make(chan *NodeResult),
	}

	for key, node := range e.graph.Nodes {
		if !e.plan.Planned(key) {
			continue
		}
		for _, soft := range node.SoftEdges() {
			s.retainers[soft.Retainer] = append(s.retainers[soft.Retainer], softConsumer{consumer: key, target: soft.Target})
		}
	}
	return s
}

// runLoop executes until every active node finished, the context is cancelled,
// or a failure drained the in-flight work.
func (s *scheduler) runLoop(ctx context.Context) *Result {
	log := ctxlog.FromContext(ctx)

	s.mu.Lock()
	for key := range s.e.plan.Reachable {
		s.activate(key)
	}
	s.mu.Unlock()

	killer := newProcessTable()

	for {
		s.mu.Lock()
		for !s.stopDispatch && s.inFlight < s.workers && len(s.ready) > 0 {
			key := s.ready[0]
			s.ready = s.ready[1:]
			s.dispatch(ctx, key, killer)
		}
		idle := s.inFlight == 0
		s.mu.Unlock()

		if idle {
			break
		}

		select {
		case <-ctx.Done():
			s.mu.Lock()
			if !s.cancelled {
				s.cancelled = true
				s.stopDispatch = true
				log.Warn("Run cancelled, killing child processes.")
				killer.killAll()
			}
			s.mu.Unlock()
			// Wait for the killed children to report back.
			res := <-s.completions
			s.handleCompletion(ctx, res)
		case res := <-s.completions:
			s.handleCompletion(ctx, res)
		}
	}

	return s.collect()
}

// activate moves a node into the executable set and seeds its pending
// dependency count. Gated dependencies pull in their strong closure and
// retainers, never their still-gated soft targets.
func (s *scheduler) activate(key string) {
	if _, ok := s.active[key]; ok {
		return
	}
	node := s.e.graph.Node(key)
	if node == nil {
		return
	}
	s.active[key] = struct{}{}

	deps := make(map[string]struct{})
	add := func(dep string) {
		if _, done := s.finished[dep]; !done {
			deps[dep] = struct{}{}
		}
	}

	for dep := range node.Strong {
		if s.e.plan.Planned(dep) {
			s.activate(dep)
			add(dep)
		}
	}
	for dep := range node.Weak {
		if s.e.plan.InReachable(dep) {
			add(dep)
		}
	}
	for _, soft := range node.SoftEdges() {
		s.activate(soft.Retainer)
		add(soft.Retainer)
		if _, ok := s.promoted[soft.Target]; ok {
			add(soft.Target)
		}
	}

	s.pending[key] = deps
	if len(deps) == 0 {
		s.pushReady(key)
	}
}

// promote marks a soft target as retained and activates its closure.
// Consumers that still wait for their retainer gain a wait on the target;
// a consumer already dispatched would be a broken ordering guarantee.
func (s *scheduler) promote(ctx context.Context, target string) {
	log := ctxlog.FromContext(ctx)
	if _, ok := s.promoted[target]; ok {
		return
	}
	s.promoted[target] = struct{}{}
	log.Debug("Soft target promoted.", "node", target)

	s.activate(target)

	for key, node := range s.e.graph.Nodes {
		if !s.e.plan.Planned(key) {
			continue
		}
		for _, soft := range node.SoftEdges() {
			if soft.Target != target {
				continue
			}
			if _, done := s.finished[target]; done {
				continue
			}
			if _, started := s.dispatched[key]; started {
				log.Error("Internal error: soft target promoted after its consumer was dispatched.", "consumer", key, "target", target)
				continue
			}
			if _, active := s.active[key]; active {
				s.pending[key][target] = struct{}{}
			}
		}
	}
}

func (s *scheduler) pushReady(key string) {
	if _, ok := s.dispatched[key]; ok {
		return
	}
	s.ready = append(s.ready, key)
	sort.Slice(s.ready, func(i, j int) bool {
		pi, pj := s.e.plan.Position(s.ready[i]), s.e.plan.Position(s.ready[j])
		if pi != pj {
			return pi < pj
		}
		return s.ready[i] < s.ready[j]
	})
}

// dispatch hands a node to a worker goroutine. Bindings snapshot the
// published outputs and the retention state at this moment.
func (s *scheduler) dispatch(ctx context.Context, key string, procs *processTable) {
	s.dispatched[key] = struct{}{}
	s.inFlight++
	s.e.log.NodeStarted(key)

	bindings := s.bindingsFor(key)
	go func() {
		res := s.e.executeNode(ctx, key, s.run, s.prev, s.runtimePath, bindings, procs)
		s.completions <- res
	}()
}

// bindingsFor assembles the expansion environment of a node; call with the
// mutex held.
func (s *scheduler) bindingsFor(key string) expand.Bindings {
	node := s.e.graph.Node(key)

	actions := make(map[string]map[string]cty.Value)
	collect := func(dep string) {
		if outs, ok := s.outputs[dep]; ok {
			if target := s.e.graph.Node(dep); target != nil {
				actions[target.Action.Name] = outs
			}
		}
	}
	for dep := range node.Strong {
		collect(dep)
	}
	for dep := range node.Weak {
		collect(dep)
	}
	for _, soft := range node.SoftEdges() {
		collect(soft.Target)
	}

	retained := make(map[string]bool)
	for dep := range node.Weak {
		if target := s.e.graph.Node(dep); target != nil {
			retained[target.Action.Name] = s.e.plan.InReachable(dep)
		}
	}
	for _, soft := range node.SoftEdges() {
		if target := s.e.graph.Node(soft.Target); target != nil {
			_, ok := s.promoted[soft.Target]
			retained[target.Action.Name] = ok || s.e.plan.InReachable(soft.Target)
		}
	}

	return expand.Bindings{
		Args:     node.Args,
		Flags:    node.Flags,
		Actions:  actions,
		Retained: retained,
	}
}

func (s *scheduler) handleCompletion(ctx context.Context, res *NodeResult) {
	log := ctxlog.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	s.finished[res.Key] = res
	s.e.log.NodeFinished(res.Key, res.Status, res.Meta.DurationSeconds)

	if res.Status == logger.StatusFailed {
		log.Error("Node failed.", "node", res.Key, "error", res.Err)
		s.stopDispatch = true
		return
	}
	if res.Status == logger.StatusCancelled {
		return
	}

	s.outputs[res.Key] = res.Outputs

	// Retainer decisions promote soft targets before any consumer can
	// become ready: every consumer still waits on this retainer.
	if consumers, ok := s.retainers[res.Key]; ok {
		nodeDir, err := s.run.NodeDir(res.Key)
		if err == nil && runstore.HasRetainFlag(nodeDir) {
			for _, sc := range consumers {
				s.promote(ctx, sc.target)
			}
		}
	}

	for key := range s.active {
		deps, ok := s.pending[key]
		if !ok {
			continue
		}
		if _, waiting := deps[res.Key]; waiting {
			delete(deps, res.Key)
			if len(deps) == 0 {
				if _, done := s.finished[key]; !done {
					s.pushReady(key)
				}
			}
		}
	}
}

// collect builds the final result, marking nodes that never ran.
func (s *scheduler) collect() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &Result{
		Success:   true,
		Cancelled: s.cancelled,
		Nodes:     make(map[string]*NodeResult, len(s.finished)),
	}

	for key, res := range s.finished {
		result.Nodes[key] = res
		if res.Status == logger.StatusFailed {
			result.Success = false
		}
	}
	if s.cancelled {
		result.Success = false
	}

	// Everything else either never got promoted or was left behind by a
	// failure or cancellation.
	for _, key := range s.e.plan.Order {
		if _, done := s.finished[key]; done {
			continue
		}
		status := logger.StatusSkipped
		if s.cancelled {
			status = logger.StatusCancelled
		}
		result.Nodes[key] = &NodeResult{Key: key, Status: status}
		s.e.log.NodeFinished(key, status, 0)
	}
	return result
}
