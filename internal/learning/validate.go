package learning

import (
	"fmt"
	"strings"
)

// ValidateSteps checks that steps form a well-formed DAG: unique ids, prerequisites that
// exist in the same list, no self references, no cycles, and at least one root.
// All problems are reported in one error wrapping ErrInvalidInput.
func ValidateSteps(steps []LearningStep) error {
	var errs []string

	if len(steps) == 0 {
		return invalid("path has no steps")
	}

	idSet := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("step %q has empty id", s.Title))
			continue
		}
		if idSet[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate step id: %q", s.ID))
		}
		idSet[s.ID] = true
	}

	for _, s := range steps {
		if !s.Type.Valid() {
			errs = append(errs, fmt.Sprintf("step %q has unknown type %q", s.ID, s.Type))
		}
		if s.Difficulty < minDifficulty || s.Difficulty > maxDifficulty {
			errs = append(errs, fmt.Sprintf("step %q difficulty must be in [1, 5], got %d", s.ID, s.Difficulty))
		}
		if s.EstimatedTime < 0 {
			errs = append(errs, fmt.Sprintf("step %q estimated time must be >= 0, got %d", s.ID, s.EstimatedTime))
		}
		for _, prereqID := range s.Prerequisites {
			switch {
			case prereqID == s.ID:
				errs = append(errs, fmt.Sprintf("step %q lists itself as a prerequisite", s.ID))
			case !idSet[prereqID]:
				errs = append(errs, fmt.Sprintf("step %q references nonexistent prerequisite %q", s.ID, prereqID))
			}
		}
	}

	if _, cyclic := topoOrder(steps); len(cyclic) > 0 {
		errs = append(errs, fmt.Sprintf("cycle detected involving steps: %s", strings.Join(cyclic, ", ")))
	}

	hasRoot := false
	for _, s := range steps {
		if len(s.Prerequisites) == 0 {
			hasRoot = true
			break
		}
	}
	if !hasRoot {
		errs = append(errs, "no root steps found (at least one step must have no prerequisites)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: path validation failed:\n  %s", ErrInvalidInput, strings.Join(errs, "\n  "))
	}
	return nil
}

// topoOrder runs Kahn's algorithm over steps. Ties keep catalog order.
// It returns the ordered ids and, if the graph is cyclic, the ids left with
// unresolved prerequisites. Prerequisites that do not name a step are ignored.
func topoOrder(steps []LearningStep) (order []string, cyclic []string) {
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	inDegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string)
	for _, s := range steps {
		for _, prereqID := range s.Prerequisites {
			if !known[prereqID] || prereqID == s.ID {
				continue
			}
			inDegree[s.ID]++
			dependents[prereqID] = append(dependents[prereqID], s.ID)
		}
	}

	var queue []string
	for _, s := range steps {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, depID := range dependents[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if len(order) < len(steps) {
		for _, s := range steps {
			if inDegree[s.ID] > 0 {
				cyclic = append(cyclic, s.ID)
			}
		}
	}
	return order, cyclic
}
