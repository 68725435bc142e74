package flow

import (
	"strings"

	"github.com/timoa/github-actions-gui/workflow"
)

// RunnerLabel renders runs-on for display. Lists are joined with ", " and
// an absent runner shows as DefaultRunner.
func RunnerLabel(runsOn workflow.Value) string {
	switch runsOn.Kind {
	case workflow.KindNull:
		return DefaultRunner
	case workflow.KindList:
		if len(runsOn.List) == 0 {
			return DefaultRunner
		}
		return strings.Join(runsOn.StringList(), ", ")
	case workflow.KindMap:
		// runs-on: {group: ..., labels: ...}
		if g, ok := runsOn.Map.Get("group"); ok {
			if s, ok := g.AsString(); ok && s != "" {
				return s
			}
		}
		if l, ok := runsOn.Map.Get("labels"); ok {
			return strings.Join(l.StringList(), ", ")
		}
		return DefaultRunner
	default:
		s, _ := runsOn.AsString()
		if strings.TrimSpace(s) == "" {
			return DefaultRunner
		}
		return s
	}
}

// RunnerFamily is the operating system a runner label points at.
type RunnerFamily string

const (
	FamilyUbuntu     RunnerFamily = "ubuntu"
	FamilyMacOS      RunnerFamily = "macos"
	FamilyWindows    RunnerFamily = "windows"
	FamilySelfHosted RunnerFamily = "self-hosted"
	FamilyOther      RunnerFamily = "other"
)

// Badge is the short form of a runner label shown on a job node.
type Badge struct {
	Family  RunnerFamily `json:"family"`
	Version string       `json:"version"`
}

func (b Badge) String() string {
	if b.Family == FamilySelfHosted || b.Family == FamilyOther {
		return b.Version
	}
	return string(b.Family) + " " + b.Version
}

// RunnerBadge classifies the first label of a runner string such as
// "ubuntu-22.04" or "self-hosted, linux".
func RunnerBadge(runner string) Badge {
	if runner == "" {
		runner = DefaultRunner
	}
	first := strings.ToLower(strings.TrimSpace(strings.Split(runner, ",")[0]))

	for _, family := range []RunnerFamily{FamilyUbuntu, FamilyMacOS, FamilyWindows} {
		if strings.HasPrefix(first, string(family)) {
			version := strings.TrimPrefix(strings.TrimPrefix(first, string(family)), "-")
			if version == "" {
				version = "latest"
			}
			return Badge{Family: family, Version: version}
		}
	}
	if strings.HasPrefix(first, "self-hosted") {
		return Badge{Family: FamilySelfHosted, Version: "self-hosted"}
	}

	version := first
	if i := strings.Index(first, "-"); i >= 0 {
		version = first[i+1:]
	}
	if version == "" {
		version = "latest"
	}
	return Badge{Family: FamilyOther, Version: version}
}
