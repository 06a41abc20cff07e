package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/eventlog/csv"
)

// newIngestCmd loads a flat CSV corpus into an in-process event log and
// reports the row counts loaded, so callers can sanity-check a file
// before pointing a populated store's loader at it. Loading a corpus
// into the SQL-backed event log is a separate migration step; this
// subcommand only validates the two CSV shapes csv.LoadSingleFile and
// csv.LoadThreeStream accept.
func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Validate a flat CSV event-log corpus",
	}
	cmd.AddCommand(newIngestCSVCmd())
	return cmd
}

func newIngestCSVCmd() *cobra.Command {
	var (
		single      string
		projects    string
		releases    string
		deps        string
		header      bool
		delimiter   string
	)
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Load and validate a CSV event-log corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(delimiter) != 1 {
				return fmt.Errorf("--delimiter must be exactly one character")
			}
			d := rune(delimiter[0])

			if single != "" {
				mem, err := csv.LoadSingleFile(single, header, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "projects=%d releases=%d dependencies=%d\n",
					len(mem.Projects), len(mem.Releases), len(mem.Dependencies))
				return nil
			}
			if projects == "" || releases == "" || deps == "" {
				return fmt.Errorf("either --single or all of --projects/--releases/--dependencies is required")
			}
			mem, err := csv.LoadThreeStream(projects, releases, deps, header, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "projects=%d releases=%d dependencies=%d\n",
				len(mem.Projects), len(mem.Releases), len(mem.Dependencies))
			return nil
		},
	}
	cmd.Flags().StringVar(&single, "single", "", "single-file format path (name,version,date,deps_csv,raw_deps)")
	cmd.Flags().StringVar(&projects, "projects", "", "projects stream path (id,name,created_at)")
	cmd.Flags().StringVar(&releases, "releases", "", "releases stream path (id,name,project_id,created_at)")
	cmd.Flags().StringVar(&deps, "dependencies", "", "dependencies stream path (release_id,project_id)")
	cmd.Flags().BoolVar(&header, "header", true, "input files include a header row")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "field delimiter")
	return cmd
}
