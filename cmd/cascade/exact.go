package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/simulate"
	"github.com/cascadegraph/cascade/internal/types"
)

func newExactCmd() *cobra.Command {
	var (
		snap   snapshotFlags
		source int64
		p      float64
		alpha  float64
		impl   string
	)
	cmd := &cobra.Command{
		Use:   "exact",
		Short: "Compute exact cascade-failure probabilities",
	}
	compute := &cobra.Command{
		Use:   "compute",
		Short: "Compute (or reuse a stored) pi[v] = P[v fails | source fails] for every node",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotID, err := snap.resolve(cmd.Context())
			if err != nil {
				return err
			}
			g, err := loadGraph(cmd.Context(), snapshotID)
			if err != nil {
				return err
			}
			solver, err := simulate.NewExactSolver(g, types.ExactConfig{
				Implementation: types.ExactImplementation(impl),
				Sim:            resolveSimCfg(p, alpha, ""),
			})
			if err != nil {
				return err
			}
			values, err := solver.ComputeAndStore(cmd.Context(), st, snapshotID, source)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(values)
		},
	}
	snap.register(compute)
	compute.Flags().Int64Var(&source, "source", 0, "source project id")
	compute.Flags().Float64Var(&p, "propagation-probability", 0.9, "base propagation probability")
	compute.Flags().Float64Var(&alpha, "normalization-exponent", 0, "out-degree normalization exponent (default 0)")
	compute.Flags().StringVar(&impl, "implementation", "", "NETWORK or MATRIX (default NETWORK)")
	compute.MarkFlagRequired("source") //nolint:errcheck
	cmd.AddCommand(compute)
	return cmd
}
