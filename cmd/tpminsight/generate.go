package main

import (
	"encoding/json"
	"fmt"

	"github.com/HerbHall/tpminsight/internal/insight"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/spf13/cobra"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		tenantID string
		opts     insight.Options
		priority string
		cadence  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate insights for one tenant and print the report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Priority = analytics.Priority(priority)
			opts.Cadence = analytics.Cadence(cadence)
			if opts.Priority != "" && !opts.Priority.Valid() {
				return fmt.Errorf("invalid --priority %q", priority)
			}
			if opts.Cadence != "" && !opts.Cadence.Valid() {
				return fmt.Errorf("invalid --cadence %q", cadence)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.pipeline.GenerateInsights(ctx, tenantID, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	f := cmd.Flags()
	f.StringVar(&tenantID, "tenant", "", "tenant to analyze (required)")
	f.StringSliceVar(&opts.Types, "types", nil, "insight types to run (default: all)")
	f.IntVar(&opts.TimeRangeDays, "range-days", 0, "history window in days (default from config)")
	f.BoolVar(&opts.IncludeRecommendations, "recommendations", true, "attach recommendations to insights")
	f.StringVar(&priority, "priority", "", "only run templates of this priority (low, medium, high)")
	f.StringVar(&cadence, "cadence", "", "only run templates of this cadence (daily, weekly)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
