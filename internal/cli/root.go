package cli

import (
	"context"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./configs/local.yaml"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "mediafanout",
	Short:         "Upload service that stores every configured rendition of each file",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath,
		"Path to the YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProcessCmd())
}
