// Package engine walks a workflow graph level by level, dispatching each
// level's tasks concurrently to remote agents and funneling their outcomes
// through a single coordinator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/akalogirou/weft/internal/catalog"
	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/events"
	"github.com/akalogirou/weft/internal/pool"
	"github.com/akalogirou/weft/internal/quality"
	"github.com/akalogirou/weft/internal/retry"
	"github.com/akalogirou/weft/internal/rpc"
	"github.com/akalogirou/weft/internal/workflow"
)

// Request is one workflow submission.
type Request struct {
	ID    string              `json:"id" yaml:"id"`
	Name  string              `json:"name,omitempty" yaml:"name,omitempty"`
	Tasks []workflow.TaskSpec `json:"tasks" yaml:"tasks"`
}

// Engine executes workflow runs. One Engine serves many concurrent runs;
// per-run state lives entirely in the Run value owned by Execute.
type Engine struct {
	resolver catalog.Resolver
	pool     *pool.Pool
	client   *rpc.Client
	emitter  *events.Emitter

	cfg    config.EngineConfig
	policy retry.Policy

	qmu     sync.RWMutex
	quality config.QualityConfig

	inflight chan struct{} // global cap across all runs
}

func New(resolver catalog.Resolver, p *pool.Pool, client *rpc.Client, emitter *events.Emitter,
	cfg config.EngineConfig, qcfg config.QualityConfig, policy retry.Policy) *Engine {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 16
	}
	return &Engine{
		resolver: resolver,
		pool:     p,
		client:   client,
		emitter:  emitter,
		cfg:      cfg,
		quality:  qcfg,
		policy:   policy,
		inflight: make(chan struct{}, cfg.MaxInFlight),
	}
}

// UpdateQuality swaps the quality settings. Tasks settled after the call use
// the new thresholds; in-flight evaluations finish with whichever snapshot
// they took.
func (e *Engine) UpdateQuality(qcfg config.QualityConfig) {
	e.qmu.Lock()
	e.quality = qcfg
	e.qmu.Unlock()
}

func (e *Engine) qualityConfig() config.QualityConfig {
	e.qmu.RLock()
	defer e.qmu.RUnlock()
	return e.quality
}

// outcome is one task's terminal result, delivered to the coordinator.
type outcome struct {
	taskID   string
	resp     *rpc.Response
	attempts int
	err      error
}

// Execute runs the request to completion. Graph construction errors are
// returned directly; task-level failures never are — they surface in the
// returned Run's per-task statuses.
func (e *Engine) Execute(ctx context.Context, req Request) (*workflow.Run, error) {
	if len(req.Tasks) == 0 {
		return nil, fmt.Errorf("request has no tasks")
	}
	seen := make(map[string]bool, len(req.Tasks))
	for _, t := range req.Tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("task with empty id")
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
	}

	graph, err := workflow.BuildGraph(req.Tasks)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	run := workflow.NewRun(req.ID, req.Name, graph, req.Tasks)

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	slog.Info("run started", "run", run.ID, "tasks", len(req.Tasks), "levels", len(graph.Levels))
	e.emit(events.Event{Type: events.RunStarted, RunID: run.ID, Payload: map[string]any{
		"tasks":  len(req.Tasks),
		"levels": len(graph.Levels),
	}})

	// A run cut short by its deadline finalizes under the same rule as any
	// other: the skipped and failed tasks decide the status, so a run with
	// no completed task ends Failed rather than PartiallyFailed.
	for levelIdx, level := range graph.Levels {
		if ctx.Err() != nil {
			e.skipRemaining(run, levelIdx, "run deadline exceeded")
			break
		}
		e.runLevel(ctx, run, levelIdx, level)
	}

	run.Finalize()
	slog.Info("run finished", "run", run.ID, "status", run.Status, "artifacts", len(run.Artifacts))
	e.emit(events.Event{Type: events.RunFinished, RunID: run.ID, Payload: map[string]any{
		"status":    string(run.Status),
		"artifacts": len(run.Artifacts),
	}})

	return run, nil
}

// runLevel dispatches every runnable task in the level and blocks until all
// of them settle. Only this coordinator mutates the run.
func (e *Engine) runLevel(ctx context.Context, run *workflow.Run, levelIdx int, level workflow.Level) {
	e.emit(events.Event{Type: events.LevelStarted, RunID: run.ID, Level: levelIdx, Payload: map[string]any{
		"tasks": len(level.Tasks),
	}})

	results := make(chan outcome, len(level.Tasks))
	dispatched := 0

	for _, id := range level.Tasks {
		task := run.Tasks[id]

		if depID, depStatus, ok := failedAncestor(run, task); ok {
			task.Status = workflow.TaskSkipped
			task.Error = fmt.Sprintf("dependency %s %s", depID, depStatus)
			e.emit(events.Event{Type: events.TaskSkipped, RunID: run.ID, TaskID: id, Level: levelIdx, Payload: map[string]any{
				"reason": task.Error,
			}})
			continue
		}

		agent, score, err := e.resolver.Resolve(task.Description)
		if err != nil {
			task.Status = workflow.TaskFailed
			task.Error = err.Error()
			e.emit(events.Event{Type: events.TaskFailed, RunID: run.ID, TaskID: id, Level: levelIdx, Payload: map[string]any{
				"error": task.Error,
			}})
			continue
		}

		task.AssignedAgent = agent.Name
		task.Status = workflow.TaskDispatched
		e.emit(events.Event{Type: events.TaskStarted, RunID: run.ID, TaskID: id, Level: levelIdx, Payload: map[string]any{
			"agent": agent.Name,
			"score": score,
		}})

		creq := rpc.Request{
			TaskID:      id,
			Description: task.Description,
			Inputs:      e.upstreamArtifacts(run, task),
		}

		dispatched++
		if len(level.Tasks) == 1 {
			// Single-task level: no goroutine, no scheduling overhead.
			results <- e.dispatch(ctx, run.ID, levelIdx, agent, creq)
		} else {
			go func() {
				results <- e.dispatch(ctx, run.ID, levelIdx, agent, creq)
			}()
		}
	}

	for i := 0; i < dispatched; i++ {
		e.settle(run, levelIdx, <-results)
	}

	e.emit(events.Event{Type: events.LevelCompleted, RunID: run.ID, Level: levelIdx, Payload: map[string]any{
		"total": len(run.Graph.Levels),
	}})
}

// dispatch performs one task's full RPC lifecycle: global admission, a
// lease per attempt, and bounded retries on transport failures only.
func (e *Engine) dispatch(ctx context.Context, runID string, levelIdx int, agent catalog.Descriptor, req rpc.Request) outcome {
	select {
	case e.inflight <- struct{}{}:
	case <-ctx.Done():
		return outcome{taskID: req.TaskID, err: fmt.Errorf("run cancelled: %w", ctx.Err())}
	}
	defer func() { <-e.inflight }()

	out := outcome{taskID: req.TaskID}
	err := e.policy.Do(ctx, func(attempt int) (bool, error) {
		out.attempts = attempt
		e.emit(events.Event{Type: events.TaskAttempt, RunID: runID, TaskID: req.TaskID, Level: levelIdx, Payload: map[string]any{
			"attempt": attempt,
			"agent":   agent.Name,
		}})

		lease, err := e.pool.Acquire(ctx, agent.Address)
		if err != nil {
			// The pool already retried dialing; treat exhaustion as final.
			return false, err
		}

		resp, err := e.client.Call(ctx, lease.Conn(), req)
		if err != nil {
			var transportErr *rpc.TransportError
			if errors.As(err, &transportErr) {
				lease.Discard()
				return true, err
			}
			lease.Release()
			return false, err
		}

		lease.Release()
		out.resp = resp
		return false, nil
	})
	out.err = err
	return out
}

// settle folds one outcome into the run, applying the quality gate to
// successful responses.
func (e *Engine) settle(run *workflow.Run, levelIdx int, out outcome) {
	task := run.Tasks[out.taskID]
	task.Attempts = out.attempts

	if out.err != nil {
		task.Status = workflow.TaskFailed
		task.Error = out.err.Error()
		e.emit(events.Event{Type: events.TaskFailed, RunID: run.ID, TaskID: task.ID, Level: levelIdx, Payload: map[string]any{
			"error":    task.Error,
			"attempts": out.attempts,
		}})
		return
	}

	qcfg := e.qualityConfig()
	report := quality.Evaluate(out.resp.Metrics, thresholdsFor(qcfg, task.Description), qcfg.GlobalMin)
	if !report.Passed {
		e.emit(events.Event{Type: events.QualityFailed, RunID: run.ID, TaskID: task.ID, Level: levelIdx, Payload: map[string]any{
			"score":      report.OverallScore,
			"violations": report.Violations,
		}})

		if qcfg.Mode == "fail" {
			task.Status = workflow.TaskFailed
			task.Error = fmt.Sprintf("quality below threshold: %v", report.Violations)
			e.emit(events.Event{Type: events.TaskFailed, RunID: run.ID, TaskID: task.ID, Level: levelIdx, Payload: map[string]any{
				"error": task.Error,
			}})
			return
		}
		task.Degraded = true
	}

	task.Status = workflow.TaskCompleted
	task.Result = out.resp.Result
	run.Artifacts = append(run.Artifacts, workflow.Artifact{
		TaskID:  task.ID,
		Payload: out.resp.Result,
		Metrics: out.resp.Metrics,
	})
	e.emit(events.Event{Type: events.TaskCompleted, RunID: run.ID, TaskID: task.ID, Level: levelIdx, Payload: map[string]any{
		"attempts": out.attempts,
		"degraded": task.Degraded,
		"score":    report.OverallScore,
	}})
}

// skipRemaining marks every not-yet-terminal task from startLevel on as
// skipped. Used when the run deadline fires between levels.
func (e *Engine) skipRemaining(run *workflow.Run, startLevel int, reason string) {
	for levelIdx := startLevel; levelIdx < len(run.Graph.Levels); levelIdx++ {
		for _, id := range run.Graph.Levels[levelIdx].Tasks {
			task := run.Tasks[id]
			if task.Status.Terminal() {
				continue
			}
			task.Status = workflow.TaskSkipped
			task.Error = reason
			e.emit(events.Event{Type: events.TaskSkipped, RunID: run.ID, TaskID: id, Level: levelIdx, Payload: map[string]any{
				"reason": reason,
			}})
		}
	}
}

// upstreamArtifacts collects the results of every dependency. All of them
// completed in earlier levels or the task would have been skipped.
func (e *Engine) upstreamArtifacts(run *workflow.Run, task *workflow.Task) []rpc.ArtifactRef {
	if len(task.DependsOn) == 0 {
		return nil
	}
	refs := make([]rpc.ArtifactRef, 0, len(task.DependsOn))
	for _, dep := range task.DependsOn {
		refs = append(refs, rpc.ArtifactRef{TaskID: dep, Payload: run.Tasks[dep].Result})
	}
	return refs
}

func thresholdsFor(qcfg config.QualityConfig, description string) []quality.Threshold {
	if len(qcfg.Thresholds) == 0 {
		return nil
	}
	if ths, ok := qcfg.Thresholds[workflow.InferCategory(description)]; ok {
		return ths
	}
	return qcfg.Thresholds["default"]
}

func failedAncestor(run *workflow.Run, task *workflow.Task) (string, workflow.TaskStatus, bool) {
	for _, dep := range task.DependsOn {
		if status := run.Tasks[dep].Status; status != workflow.TaskCompleted {
			return dep, status, true
		}
	}
	return "", "", false
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}
