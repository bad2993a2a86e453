package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// End is the terminal route. A node that connects or branches to End
// finishes the run.
const End = "__end__"

// NodeFunc executes one workflow stage against a read-only snapshot of the
// state and returns the changes it wants applied.
type NodeFunc func(ctx context.Context, s State) (Patch, error)

// BranchFunc picks the next node from the merged state.
type BranchFunc func(s State) string

// TraceSink persists the per-node execution trace of a run.
type TraceSink interface {
	SaveAgentLogs(ctx context.Context, logs []models.AgentLog) error
}

// Engine runs a compiled node graph. Nodes execute strictly one at a time,
// so a run over identical inputs replays the same node sequence and ends in
// the same state.
type Engine struct {
	nodes    map[string]NodeFunc
	edges    map[string]string
	branches map[string]BranchFunc
	start    string
	maxLoops int
	sink     TraceSink
	log      *zap.Logger
	compiled bool
}

func NewEngine(sink TraceSink, maxLoops int) *Engine {
	return &Engine{
		nodes:    make(map[string]NodeFunc),
		edges:    make(map[string]string),
		branches: make(map[string]BranchFunc),
		maxLoops: maxLoops,
		sink:     sink,
		log:      logger.Named("workflow"),
	}
}

// Add registers a node under a unique name.
func (e *Engine) Add(name string, fn NodeFunc) {
	e.nodes[name] = fn
}

// StartAt sets the entry node.
func (e *Engine) StartAt(name string) {
	e.start = name
}

// Connect wires an unconditional edge from one node to another, or to End.
func (e *Engine) Connect(from, to string) {
	e.edges[from] = to
}

// Branch wires a conditional route chosen at runtime from the merged state.
func (e *Engine) Branch(from string, fn BranchFunc) {
	e.branches[from] = fn
}

// Compile validates the graph: a known start node, every node routed
// somewhere, and every static edge pointing at a registered node. Run
// refuses uncompiled engines.
func (e *Engine) Compile() error {
	if e.start == "" {
		return errors.New("workflow start node not set")
	}
	if _, ok := e.nodes[e.start]; !ok {
		return fmt.Errorf("unknown start node %q", e.start)
	}
	for name := range e.nodes {
		_, hasEdge := e.edges[name]
		_, hasBranch := e.branches[name]
		if hasEdge && hasBranch {
			return fmt.Errorf("node %q has both an edge and a branch", name)
		}
		if !hasEdge && !hasBranch {
			return fmt.Errorf("node %q has no outgoing route", name)
		}
	}
	for from, to := range e.edges {
		if _, ok := e.nodes[from]; !ok {
			return fmt.Errorf("edge from unknown node %q", from)
		}
		if to == End {
			continue
		}
		if _, ok := e.nodes[to]; !ok {
			return fmt.Errorf("edge from %q to unknown node %q", from, to)
		}
	}
	for from := range e.branches {
		if _, ok := e.nodes[from]; !ok {
			return fmt.Errorf("branch from unknown node %q", from)
		}
	}
	e.compiled = true
	return nil
}

// Run executes the graph from the start node until a route reaches End.
// The step ceiling caps total node executions so a routing bug cannot spin
// forever: the graph is a line plus one bounded back edge, so a legitimate
// run never comes close. A node error aborts the run; recoverable problems
// belong in State.Errors, not in the error return. The execution trace is
// persisted in both outcomes.
func (e *Engine) Run(ctx context.Context, initial State) (State, error) {
	if !e.compiled {
		return initial, errors.New("workflow engine not compiled")
	}

	state := initial
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now().UTC()
	}

	e.log.Info("🚀 Workflow run started",
		zap.String("run_id", state.RunID),
		zap.Strings("portfolio", state.Portfolio),
	)

	maxSteps := len(e.nodes) * (e.maxLoops + 2)
	var trace []models.AgentLog
	var runErr error

	current := e.start
	for step := 0; current != End; step++ {
		if step >= maxSteps {
			runErr = fmt.Errorf("workflow exceeded %d steps at node %q", maxSteps, current)
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		started := time.Now()
		patch, err := e.nodes[current](ctx, state)
		entry := models.AgentLog{
			RunID:      state.RunID,
			Node:       current,
			Status:     "ok",
			Detail:     patch.Detail,
			DurationMS: time.Since(started).Milliseconds(),
		}
		if err != nil {
			entry.Status = "error"
			entry.Detail = err.Error()
			trace = append(trace, entry)
			runErr = fmt.Errorf("node %q failed: %w", current, err)
			break
		}
		state = state.Apply(patch)
		trace = append(trace, entry)

		e.log.Debug("node complete",
			zap.String("run_id", state.RunID),
			zap.String("node", current),
			zap.String("detail", entry.Detail),
			zap.Int64("took_ms", entry.DurationMS),
		)

		next, err := e.route(current, state)
		if err != nil {
			runErr = err
			break
		}
		current = next
	}

	if err := e.sink.SaveAgentLogs(ctx, trace); err != nil {
		e.log.Warn("failed to persist workflow trace",
			zap.String("run_id", state.RunID),
			zap.Error(err),
		)
	}

	if runErr != nil {
		e.log.Error("🛑 Workflow run failed",
			zap.String("run_id", state.RunID),
			zap.Error(runErr),
		)
		return state, runErr
	}

	e.log.Info("✅ Workflow run complete",
		zap.String("run_id", state.RunID),
		zap.Float64("confidence", state.ConfidenceScore),
		zap.Int("loops", state.LoopCount),
		zap.String("alert_id", state.AlertID),
		zap.Duration("took", time.Since(state.StartedAt)),
	)
	return state, nil
}

func (e *Engine) route(current string, s State) (string, error) {
	if to, ok := e.edges[current]; ok {
		return to, nil
	}
	next := e.branches[current](s)
	if next == End {
		return End, nil
	}
	if _, ok := e.nodes[next]; !ok {
		return "", fmt.Errorf("branch at %q routed to unknown node %q", current, next)
	}
	return next, nil
}
