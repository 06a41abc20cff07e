package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/graph"
	"github.com/cascadegraph/cascade/internal/types"
)

// snapshotFlags are the two ways every subcommand below "snapshot build"
// identifies which snapshot to operate on.
type snapshotFlags struct {
	id   int64
	name string
}

func (f *snapshotFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.id, "snapshot-id", 0, "snapshot id")
	cmd.Flags().StringVar(&f.name, "snapshot-name", "", "snapshot name (alternative to --snapshot-id)")
}

func (f *snapshotFlags) resolve(ctx context.Context) (int64, error) {
	if f.id != 0 {
		return f.id, nil
	}
	if f.name == "" {
		return 0, fmt.Errorf("one of --snapshot-id or --snapshot-name is required")
	}
	snap, err := st.GetSnapshotByName(ctx, f.name)
	if err != nil {
		return 0, err
	}
	return snap.ID, nil
}

func loadGraph(ctx context.Context, snapshotID int64) (*graph.Graph, error) {
	return builder.Load(ctx, snapshotID)
}

func simImplFlag(cmd *cobra.Command, val *string) {
	cmd.Flags().StringVar(val, "implementation", "", "FRONTIER or MATRIX (default MATRIX)")
}

// resolveNB applies cfg.DefaultNB when a command's --nb flag was left at
// its zero value. The flag's own default can't reference cfg.DefaultNB
// directly: subcommands are constructed before wire() populates cfg from
// cascade.toml/env.
func resolveNB(nb int) int {
	if nb > 0 {
		return nb
	}
	return cfg.DefaultNB
}

func resolveSimCfg(p, alpha float64, impl string) types.SimConfig {
	return types.SimConfig{
		PropagationProbability: p,
		NormalizationExponent:  alpha,
		Implementation:         types.SimImplementation(impl),
	}.WithDefaults()
}
