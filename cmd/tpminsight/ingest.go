package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/HerbHall/tpminsight/internal/source"
	"github.com/spf13/cobra"
)

func newIngestCmd(configPath *string) *cobra.Command {
	var tenantID, file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: `Load metric points for a tenant from a JSON file ({"points": [...]})`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var body struct {
				Points []source.MetricPoint `json:"points"`
			}
			if err := json.NewDecoder(r).Decode(&body); err != nil {
				return fmt.Errorf("decode points: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sources.InsertPoints(ctx, tenantID, body.Points); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d points for %s\n", len(body.Points), tenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the points belong to (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "points file, - for stdin")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
