// Package flow projects a workflow into the node/edge graph drawn by an
// editor. The projection is recomputed from scratch on every change.
package flow

import (
	"github.com/timoa/github-actions-gui/workflow"
)

const (
	// TriggerNodeID is the id of the single node aggregating all triggers.
	TriggerNodeID = "__trigger__"
	// AddJobNodeID is the id of the add-job affordance.
	AddJobNodeID = "__add_job__"

	// DefaultRunner is shown for jobs that do not set runs-on.
	DefaultRunner = "ubuntu-latest"
)

// NodeKind tells the renderer which component draws a node.
type NodeKind string

const (
	NodeTrigger NodeKind = "trigger"
	NodeJob     NodeKind = "job"
	NodeAddJob  NodeKind = "add-job"
)

// EdgeKind distinguishes dependency edges from synthetic ones.
type EdgeKind string

const (
	// EdgeNeeds connects a dependency to the job that needs it.
	EdgeNeeds EdgeKind = "needs"
	// EdgeTrigger connects the trigger node to a job with no dependencies.
	EdgeTrigger EdgeKind = "trigger"
	// EdgeAffordance connects a frontier job to the add-job node.
	EdgeAffordance EdgeKind = "affordance"
)

// Graph is the projection of one workflow snapshot.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one vertex. Exactly one of Trigger, Job and AddJob is set,
// matching Kind.
type Node struct {
	ID      string       `json:"id"`
	Kind    NodeKind     `json:"type"`
	Trigger *TriggerNode `json:"trigger,omitempty"`
	Job     *JobNode     `json:"job,omitempty"`
	AddJob  *AddJobNode  `json:"addJob,omitempty"`
}

// TriggerNode carries the normalized triggers of the workflow.
type TriggerNode struct {
	Triggers []workflow.ParsedTrigger `json:"triggers"`
	Labels   []string                 `json:"labels"`
}

// JobNode carries the display fields of one job.
type JobNode struct {
	JobID     string   `json:"jobId"`
	Label     string   `json:"label"`
	Runner    string   `json:"runner"`
	StepCount int      `json:"stepCount"`
	Needs     []string `json:"needs,omitempty"`

	// MatrixCombinations is nil when the job has no matrix axes.
	MatrixCombinations *int `json:"matrixCombinations,omitempty"`
}

// AddJobNode records the dependencies a job created from this affordance
// should get.
type AddJobNode struct {
	Needs []string `json:"needs"`
}

// Edge is a directed connection from Source to Target.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

func edge(source, target string, kind EdgeKind) Edge {
	return Edge{ID: source + "->" + target, Source: source, Target: target, Kind: kind}
}

// Project builds the graph for w. Node ids are the job ids plus the two
// fixed sentinels, so they stay stable across recomputations.
func Project(w workflow.Workflow) Graph {
	triggers := workflow.ParseTriggers(w.On)
	labels := make([]string, len(triggers))
	for i, t := range triggers {
		labels[i] = workflow.TriggerLabel(t)
	}

	g := Graph{
		Nodes: []Node{{
			ID:      TriggerNodeID,
			Kind:    NodeTrigger,
			Trigger: &TriggerNode{Triggers: triggers, Labels: labels},
		}},
		Edges: []Edge{},
	}

	for _, job := range w.Jobs {
		g.Nodes = append(g.Nodes, Node{ID: job.ID, Kind: NodeJob, Job: jobNode(job)})

		incoming := 0
		for _, dep := range job.Needs {
			if !w.HasJob(dep) {
				continue
			}
			g.Edges = append(g.Edges, edge(dep, job.ID, EdgeNeeds))
			incoming++
		}
		if incoming == 0 {
			g.Edges = append(g.Edges, edge(TriggerNodeID, job.ID, EdgeTrigger))
		}
	}

	frontier := Frontier(w)
	g.Nodes = append(g.Nodes, Node{
		ID:     AddJobNodeID,
		Kind:   NodeAddJob,
		AddJob: &AddJobNode{Needs: frontier},
	})
	for _, id := range frontier {
		g.Edges = append(g.Edges, edge(id, AddJobNodeID, EdgeAffordance))
	}

	return g
}

// Frontier returns the jobs no other job depends on, in document order.
// A job appended after them would naturally need them.
func Frontier(w workflow.Workflow) []string {
	dependedOn := make(map[string]bool, len(w.Jobs))
	for _, job := range w.Jobs {
		for _, dep := range job.Needs {
			if dep != job.ID {
				dependedOn[dep] = true
			}
		}
	}
	out := []string{}
	for _, job := range w.Jobs {
		if !dependedOn[job.ID] {
			out = append(out, job.ID)
		}
	}
	return out
}

func jobNode(job workflow.Job) *JobNode {
	n := &JobNode{
		JobID:     job.ID,
		Label:     job.DisplayName(),
		Runner:    RunnerLabel(job.RunsOn),
		StepCount: len(job.Steps),
		Needs:     job.Needs,
	}
	if job.Strategy != nil {
		n.MatrixCombinations = MatrixCombinations(job.Strategy.Matrix)
	}
	return n
}

// MatrixCombinations multiplies the lengths of the list-valued axes of a
// matrix. include and exclude are adjustments, not axes, and are skipped.
// It returns nil when the matrix has no list axis.
func MatrixCombinations(matrix workflow.Value) *int {
	if matrix.Kind != workflow.KindMap {
		return nil
	}
	total, axes := 1, 0
	for _, e := range matrix.Map {
		if e.Key == "include" || e.Key == "exclude" || e.Value.Kind != workflow.KindList {
			continue
		}
		total *= len(e.Value.List)
		axes++
	}
	if axes == 0 {
		return nil
	}
	return &total
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// EdgesTo returns the edges ending at id.
func (g Graph) EdgesTo(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}
