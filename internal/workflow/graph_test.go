package workflow

import (
	"errors"
	"testing"
)

func specs(ids ...string) []TaskSpec {
	out := make([]TaskSpec, len(ids))
	for i, id := range ids {
		out[i] = TaskSpec{ID: id, Description: id}
	}
	return out
}

func levelIndex(t *testing.T, g *Graph, id string) int {
	t.Helper()
	for i, level := range g.Levels {
		for _, task := range level.Tasks {
			if task == id {
				return i
			}
		}
	}
	t.Fatalf("task %s not placed in any level", id)
	return -1
}

func TestBuildGraph_Independent(t *testing.T) {
	g, err := BuildGraph(specs("a", "b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(g.Levels))
	}
	if len(g.Levels[0].Tasks) != 3 {
		t.Fatalf("expected 3 tasks in level 0, got %d", len(g.Levels[0].Tasks))
	}
}

func TestBuildGraph_SingleTask(t *testing.T) {
	g, err := BuildGraph(specs("only"))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Levels) != 1 || len(g.Levels[0].Tasks) != 1 {
		t.Fatalf("expected one one-task level, got %+v", g.Levels)
	}
}

func TestBuildGraph_LinearPipeline(t *testing.T) {
	in := []TaskSpec{
		{ID: "t1", Description: "fetch data"},
		{ID: "t2", Description: "analyze", DependsOn: []string{"t1"}},
	}
	g, err := BuildGraph(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(g.Levels))
	}
	if g.Levels[0].Tasks[0] != "t1" {
		t.Fatal("expected t1 in level 0")
	}
	if g.Levels[1].Tasks[0] != "t2" {
		t.Fatal("expected t2 in level 1")
	}
}

func TestBuildGraph_Diamond(t *testing.T) {
	in := []TaskSpec{
		{ID: "top"},
		{ID: "left", DependsOn: []string{"top"}},
		{ID: "right", DependsOn: []string{"top"}},
		{ID: "bottom", DependsOn: []string{"left", "right"}},
	}
	g, err := BuildGraph(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(g.Levels))
	}
	if g.TaskCount() != 4 {
		t.Fatalf("expected 4 tasks placed, got %d", g.TaskCount())
	}
}

// Every task appears in exactly one level, strictly after all of its
// dependencies.
func TestBuildGraph_LevelingInvariant(t *testing.T) {
	in := []TaskSpec{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a"}},
		{ID: "d", DependsOn: []string{"b", "a"}},
		{ID: "e"},
		{ID: "f", DependsOn: []string{"d", "c", "e"}},
	}
	g, err := BuildGraph(in)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]int)
	for _, level := range g.Levels {
		for _, id := range level.Tasks {
			seen[id]++
		}
	}
	for _, s := range in {
		if seen[s.ID] != 1 {
			t.Fatalf("task %s placed %d times", s.ID, seen[s.ID])
		}
	}

	for _, s := range in {
		for _, dep := range s.DependsOn {
			if levelIndex(t, g, s.ID) <= levelIndex(t, g, dep) {
				t.Errorf("task %s not placed after dependency %s", s.ID, dep)
			}
		}
	}
}

func TestBuildGraph_Cycle(t *testing.T) {
	in := []TaskSpec{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}
	g, err := BuildGraph(in)
	if g != nil {
		t.Fatal("expected no partial graph on cycle")
	}
	var cycErr *CyclicDependencyError
	if !errors.As(err, &cycErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if len(cycErr.Tasks) != 3 {
		t.Fatalf("expected all 3 tasks reported, got %v", cycErr.Tasks)
	}
}

func TestBuildGraph_SelfCycle(t *testing.T) {
	_, err := BuildGraph([]TaskSpec{{ID: "a", DependsOn: []string{"a"}}})
	var cycErr *CyclicDependencyError
	if !errors.As(err, &cycErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
}

func TestBuildGraph_UnknownDependency(t *testing.T) {
	in := []TaskSpec{
		{ID: "a", DependsOn: []string{"ghost"}},
	}
	_, err := BuildGraph(in)
	var unkErr *UnknownDependencyError
	if !errors.As(err, &unkErr) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unkErr.TaskID != "a" || unkErr.DependsOn != "ghost" {
		t.Fatalf("unexpected error detail: %+v", unkErr)
	}
}

func TestInferCategory(t *testing.T) {
	cases := []struct {
		desc string
		want string
	}{
		{"fetch flight prices", "retrieval"},
		{"analyze sentiment of reviews", "analysis"},
		{"summarize the findings", "synthesis"},
		{"convert currencies", "transform"},
		{"book a hotel room", "planning"},
		{"do the thing", "general"},
	}
	for _, c := range cases {
		if got := InferCategory(c.desc); got != c.want {
			t.Errorf("InferCategory(%q) = %s, want %s", c.desc, got, c.want)
		}
	}
}

func TestRunFinalize(t *testing.T) {
	mk := func(statuses ...TaskStatus) *Run {
		r := NewRun("r1", "", &Graph{}, nil)
		r.Tasks = make(map[string]*Task)
		for i, s := range statuses {
			id := string(rune('a' + i))
			r.Tasks[id] = &Task{TaskSpec: TaskSpec{ID: id}, Status: s}
		}
		return r
	}

	r := mk(TaskCompleted, TaskCompleted)
	r.Finalize()
	if r.Status != RunCompleted {
		t.Errorf("all-success run: expected completed, got %s", r.Status)
	}

	r = mk(TaskCompleted, TaskFailed, TaskSkipped)
	r.Finalize()
	if r.Status != RunPartiallyFailed {
		t.Errorf("mixed run: expected partially_failed, got %s", r.Status)
	}

	r = mk(TaskFailed, TaskSkipped)
	r.Finalize()
	if r.Status != RunFailed {
		t.Errorf("no-success run: expected failed, got %s", r.Status)
	}
	if r.FinishedAt.IsZero() {
		t.Error("expected finish time to be stamped")
	}
}
