package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/experiment"
	"github.com/cascadegraph/cascade/internal/types"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run and inspect cascade simulations",
	}
	cmd.AddCommand(newSimulateRunCmd(), newSimulateResultsCmd())
	return cmd
}

func newSimulateRunCmd() *cobra.Command {
	var (
		snap     snapshotFlags
		source   int64
		allSrc   bool
		nb       int
		p        float64
		alpha    float64
		impl     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute (or top up) a batch of cascade simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotID, err := snap.resolve(cmd.Context())
			if err != nil {
				return err
			}
			req := experiment.RunSimulationsRequest{
				SnapshotID: snapshotID,
				NB:         resolveNB(nb),
				Cfg:        resolveSimCfg(p, alpha, impl),
			}
			if !allSrc {
				req.Source = &source
			}
			return mgr.RunSimulations(cmd.Context(), req)
		},
	}
	snap.register(cmd)
	cmd.Flags().Int64Var(&source, "source", 0, "source project id to fail initially")
	cmd.Flags().BoolVar(&allSrc, "all-sources", false, "run every node as a source")
	cmd.Flags().IntVar(&nb, "nb", 0, "number of simulations per source (default from cascade.toml)")
	cmd.Flags().Float64Var(&p, "propagation-probability", 0.9, "base propagation probability")
	cmd.Flags().Float64Var(&alpha, "normalization-exponent", 0, "out-degree normalization exponent (default 0)")
	simImplFlag(cmd, &impl)
	return cmd
}

func newSimulateResultsCmd() *cobra.Command {
	var (
		snap       snapshotFlags
		source     int64
		allSrc     bool
		nb         int
		p          float64
		alpha      float64
		impl       string
		resultType string
		aggregated bool
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Fetch results for a completed batch of simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotID, err := snap.resolve(cmd.Context())
			if err != nil {
				return err
			}
			req := experiment.GetResultsRequest{
				SnapshotID: snapshotID,
				NB:         resolveNB(nb),
				Cfg:        resolveSimCfg(p, alpha, impl),
				ResultType: types.ResultType(resultType),
				Aggregated: aggregated,
			}
			if !allSrc {
				req.Source = &source
			}
			res, err := mgr.GetResults(cmd.Context(), req)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}
	snap.register(cmd)
	cmd.Flags().Int64Var(&source, "source", 0, "source project id")
	cmd.Flags().BoolVar(&allSrc, "all-sources", false, "fetch results across every source")
	cmd.Flags().IntVar(&nb, "nb", 0, "number of simulations required per source (default from cascade.toml)")
	cmd.Flags().Float64Var(&p, "propagation-probability", 0.9, "base propagation probability")
	cmd.Flags().Float64Var(&alpha, "normalization-exponent", 0, "out-degree normalization exponent (default 0)")
	simImplFlag(cmd, &impl)
	cmd.Flags().StringVar(&resultType, "result-type", string(types.ResultCounts), "RAW, COUNTS, or NB_FAILING")
	cmd.Flags().BoolVar(&aggregated, "aggregated", false, "aggregate across sources (requires --all-sources)")
	return cmd
}
