package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/snapshot"
	"github.com/cascadegraph/cascade/internal/types"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Materialize dependency-graph snapshots from the event log",
	}
	cmd.AddCommand(newSnapshotBuildCmd())
	return cmd
}

func newSnapshotBuildCmd() *cobra.Command {
	var (
		at   string
		sem  string
		name string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build (or reuse) the snapshot for a given instant and semantics",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := snapshot.ParseTime(at)
			if err != nil {
				return err
			}
			id, err := builder.Build(cmd.Context(), t, types.Semantics(sem), name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `snapshot instant ("2006-01-02" or "2006-01-02 15:04:05")`)
	cmd.Flags().StringVar(&sem, "semantics", string(types.Full), "FULL or LATEST")
	cmd.Flags().StringVar(&name, "name", "", "optional snapshot name")
	cmd.MarkFlagRequired("at") //nolint:errcheck
	return cmd
}
