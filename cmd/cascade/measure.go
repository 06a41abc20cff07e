package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/measures"
)

func newMeasureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Compute per-project structural and simulation-derived measures",
	}
	cmd.AddCommand(newMeasureComputeCmd())
	return cmd
}

func newMeasureComputeCmd() *cobra.Command {
	var (
		snap  snapshotFlags
		name  string
		nb    int
		p     float64
		alpha float64
		impl  string
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute (or reuse a stored) named measure over a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			measureName := measures.Name(name)
			switch measureName {
			case measures.InDegree, measures.OutDegree, measures.MeanCascadeLength:
			default:
				return fmt.Errorf("unknown measure %q", name)
			}

			snapshotID, err := snap.resolve(cmd.Context())
			if err != nil {
				return err
			}

			var g *graph.Graph
			if measureName != measures.MeanCascadeLength {
				g, err = loadGraph(cmd.Context(), snapshotID)
				if err != nil {
					return err
				}
			}

			cfg := measures.Config{
				SimCfg: resolveSimCfg(p, alpha, impl),
				NB:     resolveNB(nb),
			}
			values, err := measures.Compute(cmd.Context(), st, mgr, g, snapshotID, measureName, cfg)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(values)
		},
	}
	snap.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "in_degree, out_degree, or mean_cascade_length")
	cmd.Flags().IntVar(&nb, "nb", 0, "simulations per source, mean_cascade_length only (default from cascade.toml)")
	cmd.Flags().Float64Var(&p, "propagation-probability", 0.9, "base propagation probability")
	cmd.Flags().Float64Var(&alpha, "normalization-exponent", 0, "out-degree normalization exponent (default 0)")
	simImplFlag(cmd, &impl)
	cmd.MarkFlagRequired("name") //nolint:errcheck
	return cmd
}
