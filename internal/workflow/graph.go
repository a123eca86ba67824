package workflow

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// CyclicDependencyError reports tasks that can never be placed because they
// participate in (or depend on) a dependency cycle.
type CyclicDependencyError struct {
	Tasks []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency among tasks: %s", strings.Join(e.Tasks, ", "))
}

// UnknownDependencyError reports a depends_on id that is not part of the
// submitted task list.
type UnknownDependencyError struct {
	TaskID    string
	DependsOn string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependsOn)
}

// BuildGraph turns a flat task list into ordered execution levels.
//
// Each pass collects the not-yet-placed tasks whose dependencies are all
// already placed; that subset becomes the next level. A pass that places
// nothing while tasks remain signals a cycle. Errors are fatal for the run;
// no partial graph is ever returned.
func BuildGraph(specs []TaskSpec) (*Graph, error) {
	known := make(map[string]bool, len(specs))
	for _, s := range specs {
		known[s.ID] = true
	}

	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if !known[dep] {
				return nil, &UnknownDependencyError{TaskID: s.ID, DependsOn: dep}
			}
		}
	}

	placed := make(map[string]bool, len(specs))
	var levels []Level

	for len(placed) < len(specs) {
		var current []string
		for _, s := range specs {
			if placed[s.ID] {
				continue
			}
			ready := true
			for _, dep := range s.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				current = append(current, s.ID)
			}
		}

		if len(current) == 0 {
			var stuck []string
			for _, s := range specs {
				if !placed[s.ID] {
					stuck = append(stuck, s.ID)
				}
			}
			sort.Strings(stuck)
			return nil, &CyclicDependencyError{Tasks: stuck}
		}

		for _, id := range current {
			placed[id] = true
		}
		levels = append(levels, Level{Tasks: current})
	}

	g := &Graph{Levels: levels}
	logPlan(g, specs)
	return g, nil
}

// logPlan emits a human-readable execution plan, grouping each level's
// tasks by inferred service category. Reporting only; the grouping has no
// effect on execution order.
func logPlan(g *Graph, specs []TaskSpec) {
	byID := make(map[string]TaskSpec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}

	for i, level := range g.Levels {
		groups := make(map[string][]string)
		for _, id := range level.Tasks {
			cat := InferCategory(byID[id].Description)
			groups[cat] = append(groups[cat], id)
		}
		for cat, ids := range groups {
			slog.Debug("execution plan", "level", i, "category", cat, "tasks", ids)
		}
	}
}
