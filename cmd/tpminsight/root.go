package main

import (
	"fmt"

	"github.com/HerbHall/tpminsight/internal/version"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Each call returns a fresh tree so tests
// can execute commands in isolation.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tpminsight",
		Short: "Trade promotion insights and alerting engine",
		Long: `tpminsight analyzes tenant sales, inventory and promotion metrics,
produces ranked insights with recommendations, and raises alerts when
business thresholds are crossed.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("%s\n", version.Info()))

	root.AddCommand(
		newServeCmd(&configPath),
		newGenerateCmd(&configPath),
		newCheckCmd(&configPath),
		newIngestCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
