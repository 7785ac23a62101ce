package cli

import (
	"github.com/spf13/cobra"

	"github.com/you-humble/mediafanout/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server and the admin gRPC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return app.New(ctx, cfgPath).Run(ctx)
		},
	}
}
