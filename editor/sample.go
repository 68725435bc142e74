package editor

import (
	"github.com/timoa/github-actions-gui/workflow"
)

// Empty returns a blank document: no name, no triggers, no jobs.
func Empty() workflow.Workflow {
	return workflow.Workflow{On: workflow.Null(), Jobs: []workflow.Job{}}
}

// Sample returns the starter workflow offered for a new document: a push
// trigger on main, a build job and a test job that needs it.
func Sample() workflow.Workflow {
	return workflow.Workflow{
		Name: "Sample",
		On: workflow.MapValue(workflow.Map{{
			Key: "push",
			Value: workflow.MapValue(workflow.Map{
				{Key: "branches", Value: workflow.Strings(DefaultBranch)},
			}),
		}}),
		Jobs: []workflow.Job{
			{
				ID:     "build",
				RunsOn: workflow.String(DefaultRunner),
				Steps:  []workflow.Step{{Run: "echo build"}},
			},
			{
				ID:     "test",
				RunsOn: workflow.String(DefaultRunner),
				Needs:  []string{"build"},
				Steps:  []workflow.Step{{Run: "echo test"}},
			},
		},
	}
}
