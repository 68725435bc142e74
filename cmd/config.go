package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/timoa/github-actions-gui/config"
	"github.com/timoa/github-actions-gui/internal/output"
	"github.com/timoa/github-actions-gui/internal/tui"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Prints every setting with its value and where the value came from:
the config file ($WFEDIT_HOME/config.json), a WFEDIT_* environment variable
or a command-line flag. Settings without a badge use the default.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Write a setting to the config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
	ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	configCmd.Flags().StringVarP(&configOutput, "output", "o", "text", "output format: text, json")
}

type configEntry struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	entries := loader.Entries()

	if configOutput == "json" {
		out := make([]configEntry, len(entries))
		for i, e := range entries {
			out[i] = configEntry{Key: e.Key, Value: e.Value, Source: e.Source.String()}
		}
		return output.FormatJSON(os.Stdout, out)
	}

	fmt.Println(tui.Header(Version, "config"))
	fmt.Println()
	for _, e := range entries {
		value := fmt.Sprint(e.Value)
		styled := tui.PrimaryStyle.Render(value)
		if value == "" {
			styled = tui.MutedStyle.Render("not set")
		}
		fmt.Printf("  %-15s %s %s\n", e.Key, padVisible(styled, 28), tui.SourceBadge(e.Source.String()))
	}
	path, err := config.Path()
	if err == nil {
		fmt.Printf("\n%s\n", tui.HintStyle.Render(path))
	}
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	if err := config.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Println(tui.ExitSuccess(fmt.Sprintf("Set %s = %s", args[0], args[1])))
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// padVisible pads s to width ignoring ANSI escapes.
func padVisible(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
