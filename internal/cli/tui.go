package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mathrag/internal/app"
	"mathrag/internal/knowledge"
	"mathrag/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse retrieval results interactively",
	Long: `Opens a console where questions are answered with the retrieved passages,
one source at a time with the best matching sentence highlighted.

Keys: Enter searches, Up/Down move between sources, Tab switches knowledge
base, Ctrl+C quits.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a := app.Open(cmd.Context(), appConfig, &appLogger)
	defer a.Close()

	summary := a.Report.Summary
	if !a.Ready {
		summary = "Discrete math knowledge base unavailable; answers fall back to general knowledge."
	} else if summary == "" {
		summary = a.Report.String()
	}
	m := tui.New(a.Registry, []string{knowledge.DiscreteMath, knowledge.Calculus}, appConfig.Retrieval.TopK, summary)
	_, err := tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
	return err
}
