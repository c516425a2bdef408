package commands

import (
	"github.com/spf13/cobra"

	"rag-chatbot-go/internal/app"
)

// NewReindexCmd 创建 reindex 命令。
func NewReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from the document registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			org := organizationFlag(cmd)
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Documents.Reindex(cmd.Context(), org)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().Uint("org", 0, "Only reindex one organization")
	return cmd
}
