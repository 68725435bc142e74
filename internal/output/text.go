// Package output renders command results as styled text or JSON.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/timoa/github-actions-gui/internal/tui"
	"github.com/timoa/github-actions-gui/workflow"
)

// dividerWidth is the standard width for section dividers
const dividerWidth = 60

// FileReport is the lint result for one file. Err is set when the file
// could not be read or is not YAML; Problems and ParseErrors are empty then.
type FileReport struct {
	Path        string              `json:"path"`
	Problems    workflow.LintErrors `json:"problems"`
	ParseErrors []string            `json:"parseErrors,omitempty"`
	Err         string              `json:"error,omitempty"`
}

// Failed reports whether the file should fail a lint run.
func (r FileReport) Failed() bool {
	return r.Err != "" || len(r.ParseErrors) > 0 || r.Problems.HasErrors()
}

// Printer renders styled text. With Color off every style is dropped, for
// pipes and files.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// Lint writes reports grouped by file followed by a summary line.
func (p *Printer) Lint(reports []FileReport) {
	errorCount, warningCount, failedFiles := 0, 0, 0
	for _, r := range reports {
		if r.Err != "" {
			errorCount++
		}
		errorCount += len(r.ParseErrors) + len(r.Problems.Errors())
		warningCount += len(r.Problems.Warnings())
		if r.Failed() || len(r.Problems) > 0 {
			failedFiles++
		}
	}

	for _, r := range reports {
		if r.Err == "" && len(r.ParseErrors) == 0 && len(r.Problems) == 0 {
			continue
		}
		fileErrors := len(r.ParseErrors) + len(r.Problems.Errors())
		if r.Err != "" {
			fileErrors++
		}
		fileWarnings := len(r.Problems.Warnings())
		p.printf("%s %s\n",
			p.style(tui.AccentStyle.Bold(true), r.Path),
			p.style(tui.MutedStyle, fmt.Sprintf("(%d error%s, %d warning%s)",
				fileErrors, plural(fileErrors), fileWarnings, plural(fileWarnings))))

		if r.Err != "" {
			p.printf("  %s %s\n", p.style(tui.ErrorStyle, "✖"), r.Err)
		}
		for _, msg := range r.ParseErrors {
			p.printf("  %s %s\n", p.style(tui.ErrorStyle, "✖"), msg)
		}
		for _, e := range r.Problems {
			p.problem(e)
		}
		p.printf("\n")
	}

	if errorCount == 0 && warningCount == 0 {
		p.printf("%s No problems found in %d file%s\n",
			p.style(tui.SuccessStyle, "✓"), len(reports), plural(len(reports)))
		return
	}
	total := errorCount + warningCount
	p.printf("%s\n", p.style(tui.MutedStyle, divider(dividerWidth)))
	p.printf("%s Found %d problem%s %s across %d file%s\n",
		p.style(tui.ErrorStyle, "✖"), total, plural(total),
		p.style(tui.ErrorStyle, fmt.Sprintf("(%d error%s, %d warning%s)",
			errorCount, plural(errorCount), warningCount, plural(warningCount))),
		failedFiles, plural(failedFiles))
}

func (p *Printer) problem(e *workflow.LintError) {
	symbol := p.style(tui.ErrorStyle, "✖")
	if e.Severity == workflow.SeverityWarning {
		symbol = p.style(tui.WarningStyle, "⚠")
	}
	p.printf("  %s %s %s\n", p.style(tui.MutedStyle, e.Path+":"), symbol, e.Message)
	if e.Suggestion != "" {
		p.printf("    %s\n", p.style(tui.HintStyle, e.Suggestion))
	}
}

func divider(width int) string {
	return strings.Repeat("─", width)
}

// plural returns "s" if count != 1
func plural(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
