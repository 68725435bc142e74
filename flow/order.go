package flow

import (
	"sort"

	"github.com/timoa/github-actions-gui/workflow"
)

// Order returns job ids in dependency order using Kahn's algorithm. Jobs at
// the same level are sorted alphabetically for deterministic output. Jobs
// caught in a cycle cannot be ordered and are appended alphabetically.
func Order(w workflow.Workflow) []string {
	if len(w.Jobs) == 0 {
		return nil
	}

	inDegree := make(map[string]int, len(w.Jobs))
	for _, job := range w.Jobs {
		inDegree[job.ID] = 0
	}

	// dependents[a] contains all jobs that depend on a
	dependents := make(map[string][]string)
	for _, job := range w.Jobs {
		for _, dep := range job.Needs {
			// Only count dependencies that exist in the workflow
			if _, exists := inDegree[dep]; exists {
				inDegree[job.ID]++
				dependents[dep] = append(dependents[dep], job.ID)
			}
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(w.Jobs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var nextLevel []string
		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				nextLevel = append(nextLevel, dependent)
			}
		}
		sort.Strings(nextLevel)
		queue = append(queue, nextLevel...)
	}

	if len(result) < len(w.Jobs) {
		added := make(map[string]bool, len(result))
		for _, id := range result {
			added[id] = true
		}
		var remaining []string
		for _, job := range w.Jobs {
			if !added[job.ID] {
				remaining = append(remaining, job.ID)
			}
		}
		sort.Strings(remaining)
		result = append(result, remaining...)
	}

	return result
}

// Levels groups jobs by dependency depth: level 0 holds jobs without known
// dependencies, level n jobs whose deepest dependency sits at level n-1.
// Jobs on a cycle are left out.
func Levels(w workflow.Workflow) [][]string {
	depth := make(map[string]int, len(w.Jobs))
	needs := make(map[string][]string, len(w.Jobs))
	for _, job := range w.Jobs {
		needs[job.ID] = job.Needs
	}

	var levels [][]string
	for _, id := range Order(w) {
		d, ok := 0, true
		for _, dep := range needs[id] {
			if _, known := needs[dep]; !known {
				continue
			}
			dd, placed := depth[dep]
			if !placed {
				ok = false
				break
			}
			if dd+1 > d {
				d = dd + 1
			}
		}
		if !ok {
			continue
		}
		depth[id] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	return levels
}
