package workflow

import (
	"encoding/json"
	"time"
)

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskDispatched TaskStatus = "dispatched"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
)

// Terminal reports whether the status is one a task never leaves.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// RunStatus is the aggregate outcome of a workflow run.
type RunStatus string

const (
	RunRunning         RunStatus = "running"
	RunCompleted       RunStatus = "completed"
	RunPartiallyFailed RunStatus = "partially_failed"
	RunFailed          RunStatus = "failed"
)

// TaskSpec is a unit of work as submitted by a caller.
type TaskSpec struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Task is a TaskSpec plus the mutable execution state owned by the engine.
type Task struct {
	TaskSpec
	AssignedAgent string          `json:"assigned_agent,omitempty"`
	Status        TaskStatus      `json:"status"`
	Attempts      int             `json:"attempts,omitempty"`
	Degraded      bool            `json:"degraded,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Level is a set of task ids with no dependency among them, all eligible
// to run concurrently once every prior level has settled.
type Level struct {
	Tasks []string `json:"tasks"`
}

// Graph is an ordered list of execution levels. Every dependency of a task
// in level N lives in levels 0..N-1.
type Graph struct {
	Levels []Level `json:"levels"`
}

// TaskCount returns the total number of tasks across all levels.
func (g *Graph) TaskCount() int {
	n := 0
	for _, l := range g.Levels {
		n += len(l.Tasks)
	}
	return n
}

// Artifact is a successful task's result payload, retained for final
// response assembly. Artifacts are ordered by completion, not dispatch.
type Artifact struct {
	TaskID  string             `json:"task_id"`
	Payload json.RawMessage    `json:"payload"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Run is the top-level aggregate for one workflow request. It is mutated
// only by the engine coordinator and becomes immutable once Status reaches
// a terminal value.
type Run struct {
	ID         string           `json:"id"`
	Name       string           `json:"name,omitempty"`
	Graph      *Graph           `json:"graph"`
	Tasks      map[string]*Task `json:"tasks"`
	Status     RunStatus        `json:"status"`
	Artifacts  []Artifact       `json:"artifacts"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
}

// NewRun builds a Run in the Running state from a validated graph.
func NewRun(id, name string, graph *Graph, specs []TaskSpec) *Run {
	tasks := make(map[string]*Task, len(specs))
	for _, spec := range specs {
		tasks[spec.ID] = &Task{TaskSpec: spec, Status: TaskPending}
	}
	return &Run{
		ID:        id,
		Name:      name,
		Graph:     graph,
		Tasks:     tasks,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finalize computes the terminal run status from the per-task outcomes and
// stamps the finish time. Completed when every task succeeded, Failed when
// none did, PartiallyFailed otherwise.
func (r *Run) Finalize() {
	succeeded, failed := 0, 0
	for _, t := range r.Tasks {
		switch t.Status {
		case TaskCompleted:
			succeeded++
		default:
			failed++
		}
	}

	switch {
	case failed == 0:
		r.Status = RunCompleted
	case succeeded == 0:
		r.Status = RunFailed
	default:
		r.Status = RunPartiallyFailed
	}
	r.FinishedAt = time.Now().UTC()
}
