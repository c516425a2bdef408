package commands

import (
	"github.com/spf13/cobra"

	"rag-chatbot-go/internal/app"
)

// NewCleanupCmd 创建 cleanup 命令。
func NewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove index chunks and raw files of documents missing from the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Documents.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}
