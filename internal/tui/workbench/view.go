package workbench

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/timoa/github-actions-gui/flow"
	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/workflow"
)

var (
	idStyle       = tui.SecondaryStyle
	selectedStyle = tui.BrandStyle.Bold(true)
	hintStyle     = tui.HintStyle
)

const (
	// maxProblems bounds the lint list under the job list.
	maxProblems  = 5
	untitledName = "(unnamed workflow)"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTriggers())
	b.WriteString("\n\n")

	if len(m.view.Workflow.Jobs) == 0 {
		b.WriteString(tui.MutedStyle.Render("  no jobs yet, press [a] to add one"))
		b.WriteString("\n")
	}
	for i := range m.view.Workflow.Jobs {
		b.WriteString(m.renderJob(i))
		b.WriteString("\n")
	}

	if problems := m.renderProblems(); problems != "" {
		b.WriteString("\n")
		b.WriteString(problems)
	}

	b.WriteString("\n")
	if line := m.renderStatus(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderHeader() string {
	name := m.view.Workflow.Name
	if name == "" {
		name = untitledName
	}
	if m.mode == ModeRenameWorkflow {
		name = m.textInput.View()
	} else {
		name = tui.BoldPrimaryStyle.Render(name)
	}

	location := m.view.Locator
	if location == "" {
		location = "unsaved"
	}
	marker := ""
	if m.view.Dirty {
		marker = tui.WarningStyle.Render(" ●")
	}
	return tui.Header(m.version, "edit") + "\n" + name + "  " + tui.MutedStyle.Render(location) + marker
}

func (m *Model) renderTriggers() string {
	trig, ok := m.view.Graph.Node(flow.TriggerNodeID)
	if !ok || len(trig.Trigger.Labels) == 0 {
		return tui.MutedStyle.Render("on ") + tui.WarningStyle.Render("no triggers")
	}
	return tui.MutedStyle.Render("on ") + strings.Join(trig.Trigger.Labels, " • ")
}

func (m *Model) renderJob(i int) string {
	job := m.view.Workflow.Jobs[i]
	isSelected := i == m.cursor

	cursor := "  "
	if isSelected {
		cursor = tui.BrandStyle.Render("> ")
	}

	var id string
	switch {
	case isSelected && m.mode == ModeRenameJob:
		id = m.textInput.View()
	case isSelected:
		id = selectedStyle.Render(job.ID)
	default:
		id = idStyle.Render(job.ID)
	}

	parts := []string{padRight(id, 18)}
	if node, ok := m.view.Graph.Node(job.ID); ok && node.Job != nil {
		j := node.Job
		parts = append(parts, tui.AccentStyle.Render(padRight(flow.RunnerBadge(j.Runner).String(), 14)))
		parts = append(parts, fmt.Sprintf("%d step%s", j.StepCount, plural(j.StepCount)))
		if j.MatrixCombinations != nil {
			parts = append(parts, fmt.Sprintf("matrix ×%d", *j.MatrixCombinations))
		}
	}
	if len(job.Needs) > 0 {
		parts = append(parts, tui.MutedStyle.Render("needs "+strings.Join(job.Needs, ", ")))
	}

	line := cursor + strings.Join(parts, "  ")
	if isSelected && m.mode == ModeAddStep {
		line += "\n    " + tui.MutedStyle.Render("run: ") + m.textInput.View()
	}
	return line
}

func (m *Model) renderProblems() string {
	problems := m.view.Lint
	if len(problems) == 0 && len(m.view.ParseErrors) == 0 {
		return tui.SuccessStyle.Render("✓") + " " + tui.MutedStyle.Render("no problems")
	}

	var lines []string
	for _, e := range m.view.ParseErrors {
		lines = append(lines, tui.ErrorStyle.Render("✖")+" "+e)
	}
	for _, p := range problems {
		icon := tui.WarningStyle.Render("⚠")
		if p.Severity == workflow.SeverityError {
			icon = tui.ErrorStyle.Render("✖")
		}
		lines = append(lines, icon+" "+tui.MutedStyle.Render(p.Path+":")+" "+p.Message)
	}
	if extra := len(lines) - maxProblems; extra > 0 {
		lines = append(lines[:maxProblems], tui.MutedStyle.Render(fmt.Sprintf("… %d more", extra)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *Model) renderStatus() string {
	switch {
	case m.mode == ModeConfirmQuit:
		return tui.WarningStyle.Render("unsaved changes, quit anyway? [y/n]")
	case m.status == "":
		return ""
	case m.statusErr:
		return tui.ExitError(m.status)
	default:
		return tui.MutedStyle.Render(m.status)
	}
}

func (m *Model) renderHelp() string {
	switch m.mode {
	case ModeConfirmQuit:
		return ""
	case ModeRenameJob, ModeRenameWorkflow, ModeAddStep:
		return hintStyle.Render("[enter] apply  [esc] cancel")
	}
	hints := []string{
		"[j/k] navigate", "[a] add job", "[d] delete", "[r] rename", "[s] add step",
		"[n] name", "[t] trigger", "[u] undo", "[w] save", "[q] quit",
	}
	return hintStyle.Render(strings.Join(hints, "  "))
}

func padRight(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
