package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newCheckCmd(configPath *string) *cobra.Command {
	var (
		tenantID string
		urgent   bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate alert rules against a tenant's latest metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.sources.Snapshot(ctx, tenantID)
			if err != nil {
				return err
			}
			alerts := a.evaluator.CheckAlerts(ctx, tenantID, snap)
			if urgent {
				if err := a.urgent.NotifyUrgent(ctx, tenantID, alerts); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"count": len(alerts), "alerts": nonNil(alerts)})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to check (required)")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "send an urgent digest for the alerts raised")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
