package output

import (
	"fmt"
	"strings"

	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/workflow"
)

// Graph draws the job graph of w level by level: every job appears after
// all the jobs it needs.
func (p *Printer) Graph(w workflow.Workflow) {
	g := flow.Project(w)

	name := w.Name
	if name == "" {
		name = "(unnamed workflow)"
	}
	p.printf("%s\n", p.style(tui.BoldPrimaryStyle, name))

	if trig, ok := g.Node(flow.TriggerNodeID); ok {
		labels := trig.Trigger.Labels
		if len(labels) == 0 {
			labels = []string{p.style(tui.WarningStyle, "no triggers")}
		}
		p.printf("%s %s\n", p.style(tui.MutedStyle, "on"), strings.Join(labels, " • "))
	}

	for i, level := range flow.Levels(w) {
		p.printf("%s\n", p.style(tui.MutedStyle, fmt.Sprintf("── stage %d", i+1)))
		for _, id := range level {
			node, ok := g.Node(id)
			if !ok {
				continue
			}
			p.job(node.Job)
		}
	}

	if add, ok := g.Node(flow.AddJobNodeID); ok && len(add.AddJob.Needs) > 0 {
		p.printf("%s\n", p.style(tui.HintStyle, "+ next job would need "+strings.Join(add.AddJob.Needs, ", ")))
	}
}

func (p *Printer) job(j *flow.JobNode) {
	parts := []string{
		p.style(tui.BoldStyle, j.JobID),
	}
	if j.Label != j.JobID {
		parts = append(parts, p.style(tui.SecondaryStyle, "\""+j.Label+"\""))
	}
	parts = append(parts, p.style(tui.AccentStyle, flow.RunnerBadge(j.Runner).String()))
	parts = append(parts, fmt.Sprintf("%d step%s", j.StepCount, plural(j.StepCount)))
	if j.MatrixCombinations != nil {
		parts = append(parts, fmt.Sprintf("matrix ×%d", *j.MatrixCombinations))
	}
	p.printf("  %s\n", strings.Join(parts, "  "))
	if len(j.Needs) > 0 {
		p.printf("    %s\n", p.style(tui.MutedStyle, "needs "+strings.Join(j.Needs, ", ")))
	}
}
