package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by the text output and the editor.
const (
	ColorBrand     = "42"  // green
	ColorPrimary   = "255" // white
	ColorSecondary = "245" // light gray
	ColorMuted     = "240" // dark gray
	ColorError     = "203" // red
	ColorWarning   = "214" // orange
	ColorAccent    = "45"  // cyan
)

var (
	BrandStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBrand))
	PrimaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimary))
	SecondaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondary))
	MutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
	HintStyle      = MutedStyle.Italic(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBrand))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning))
	AccentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	BoldStyle        = lipgloss.NewStyle().Bold(true)
	BoldPrimaryStyle = PrimaryStyle.Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorPrimary)).
			Background(lipgloss.Color("236")).
			Bold(true)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorMuted)).
			Padding(0, 1)
)

// Header renders "wfedit v1.2.3 command".
func Header(version, command string) string {
	return BrandStyle.Render("wfedit") + " " + BrandStyle.Render("v"+version) + " " + PrimaryStyle.Render(command)
}

// ExitSuccess prefixes message with a green check.
func ExitSuccess(message string) string {
	return SuccessStyle.Render("✓") + " " + message
}

// ExitError prefixes message with a red cross.
func ExitError(message string) string {
	return ErrorStyle.Render("✗") + " " + message
}

// SourceBadge marks config values that did not come from the defaults.
func SourceBadge(source string) string {
	if source == "" || source == "default" {
		return ""
	}
	return MutedStyle.Render("[" + source + "]")
}
