package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"rag-chatbot-go/internal/app"
	"rag-chatbot-go/internal/service"
)

// NewSearchCmd 创建 search 命令。
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a retrieval query",
		Long: `Run a query through vector search with keyword fallback and print
the per-document results.

Examples:
  ragctl search "how many injuries"
  ragctl search --org 2 "كم عدد الإصابات"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org := organizationFlag(cmd)
			return withApp(cmd.Context(), func(a *app.App) error {
				results := a.Retrieval.Retrieve(cmd.Context(), args[0], org)
				if len(results) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No documents found for query: %s\n", args[0])
					return nil
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"results":    results,
					"confidence": service.Confidence(results),
				})
			})
		},
	}
	cmd.Flags().Uint("org", 0, "Restrict results to an organization")
	return cmd
}
