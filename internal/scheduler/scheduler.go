// Package scheduler submits stored workflows to the engine when their
// schedules come due.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/engine"
	"github.com/akalogirou/weft/internal/schedule"
	"github.com/akalogirou/weft/internal/store"
	"github.com/akalogirou/weft/internal/workflow"
	"github.com/google/uuid"
)

// Runner executes a workflow request. Satisfied by *engine.Engine.
type Runner interface {
	Execute(ctx context.Context, req engine.Request) (*workflow.Run, error)
}

type Scheduler struct {
	store        *store.Store
	runner       Runner
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func New(s *store.Store, runner Runner, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:        s,
		runner:       runner,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdateConfig changes the poll interval and signals the run loop to reset
// its ticker.
func (s *Scheduler) UpdateConfig(pollInterval time.Duration) {
	s.pollInterval = pollInterval
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			slog.Info("scheduler config reloaded", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll runs every due workflow once. Exported so tests and the CLI can
// trigger a sweep without the ticker.
func (s *Scheduler) Poll(ctx context.Context) {
	due, err := s.store.GetDueWorkflows(time.Now())
	if err != nil {
		slog.Error("failed to get due workflows", "error", err)
		return
	}

	for _, wf := range due {
		s.execute(ctx, wf)
	}
}

func (s *Scheduler) execute(ctx context.Context, wf store.ScheduledWorkflow) {
	slog.Info("executing scheduled workflow", "id", wf.ID, "name", wf.Name)

	run, err := s.submit(ctx, wf)

	var lastStatus, lastError string
	switch {
	case err != nil:
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("scheduled workflow failed", "id", wf.ID, "error", err)
	default:
		lastStatus = string(run.Status)
	}

	nextRun := schedule.NextFromJSON(wf.Schedule, time.Now())

	if err := s.store.UpdateWorkflowRun(wf.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("failed to update workflow run", "id", wf.ID, "error", err)
	}

	// One-off workflows with nothing left to fire are retired.
	if nextRun == nil {
		slog.Info("no next run, marking workflow completed", "id", wf.ID, "name", wf.Name)
		if err := s.store.UpdateWorkflowStatus(wf.ID, "completed"); err != nil {
			slog.Error("failed to complete workflow", "id", wf.ID, "error", err)
		}
	}
}

func (s *Scheduler) submit(ctx context.Context, wf store.ScheduledWorkflow) (*workflow.Run, error) {
	var req engine.Request
	if err := json.Unmarshal(wf.Request, &req); err != nil {
		return nil, fmt.Errorf("decode stored request: %w", err)
	}
	// Every firing is a fresh run.
	req.ID = uuid.New().String()
	if req.Name == "" {
		req.Name = wf.Name
	}

	run, err := s.runner.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveRun(store.NewRunRecord(run, wf.Request)); err != nil {
		slog.Error("failed to persist scheduled run", "run", run.ID, "error", err)
	}
	return run, nil
}
