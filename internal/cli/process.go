package cli

import (
	"github.com/spf13/cobra"

	"github.com/you-humble/mediafanout/internal/app"
)

func newProcessCmd() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run the configured transforms on a local file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Process(cmd.Context(), cfgPath, args[0], field, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&field, "field", "file", "Form field name reported for the file")

	return cmd
}
