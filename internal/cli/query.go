package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mathrag/internal/app"
	"mathrag/internal/knowledge"
	"mathrag/internal/service"
	"mathrag/internal/tooltext"
)

var (
	queryKB   string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Retrieve context for a question",
	Long: `Retrieves the passages most relevant to the question and prints them in
the tool text format agents receive. If the knowledge base is unavailable the
output is the fallback notice and the command still succeeds.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var toolCmd = &cobra.Command{
	Use:   "tool [tool-name] [question]",
	Short: "Invoke a knowledge base tool by its agent-facing name",
	Long: `Runs a tool exactly as an agent would, for example:

  mathrag tool query_discrete_math_rag "What is a bijection?"
  mathrag tool query_calculus_rag "What is a derivative?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTool,
}

func init() {
	queryCmd.Flags().StringVar(&queryKB, "kb", knowledge.DiscreteMath, "knowledge base (discrete_math, calculus)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of passages (0 = config retrieval.top_k)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the structured result as JSON")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(toolCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a := app.Open(cmd.Context(), appConfig, &appLogger)
	defer a.Close()

	k := queryTopK
	if k <= 0 {
		k = appConfig.Retrieval.TopK
	}
	res, err := a.Registry.Retrieve(cmd.Context(), queryKB, strings.Join(args, " "), k)
	if err != nil {
		return err
	}
	if queryJSON {
		return outputResultJSON(cmd, res)
	}
	fmt.Fprint(cmd.OutOrStdout(), tooltext.Render(res))
	return nil
}

func runTool(cmd *cobra.Command, args []string) error {
	a := app.Open(cmd.Context(), appConfig, &appLogger)
	defer a.Close()

	base, err := a.Registry.ByTool(args[0])
	if err != nil {
		return err
	}
	text, err := a.Registry.Query(cmd.Context(), base.Name, strings.Join(args[1:], " "), appConfig.Retrieval.TopK)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

func outputResultJSON(cmd *cobra.Command, res service.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
