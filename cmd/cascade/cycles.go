package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/cycles"
)

func newCyclesCmd() *cobra.Command {
	var (
		snap   snapshotFlags
		length int
	)
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Detect dependency cycles within a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotID, err := snap.resolve(cmd.Context())
			if err != nil {
				return err
			}
			g, err := loadGraph(cmd.Context(), snapshotID)
			if err != nil {
				return err
			}
			found, err := cycles.Detect(g, length)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(found)
		},
	}
	snap.register(cmd)
	cmd.Flags().IntVar(&length, "length", 0, "exact cycle length 1-4, or 0 for any length")
	return cmd
}
