// Command cascade is the cascade engine's CLI: a single binary with one
// root command carrying shared persistence/config flags, and one file
// per noun (snapshot, cycles, simulate, measure, exact, ingest)
// registering its subcommands on it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cascadegraph/cascade/internal/config"
	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/eventlog/sqlstore"
	"github.com/cascadegraph/cascade/internal/experiment"
	"github.com/cascadegraph/cascade/internal/logging"
	"github.com/cascadegraph/cascade/internal/snapshot"
	"github.com/cascadegraph/cascade/internal/store"
	"github.com/cascadegraph/cascade/internal/store/netstore"
	"github.com/cascadegraph/cascade/internal/store/sqlite"
	"github.com/cascadegraph/cascade/internal/telemetry"
)

var (
	configPath string
	verbose    bool

	cfg     config.Config
	st      store.Store
	evlog   eventlog.EventLog
	builder *snapshot.Builder
	mgr     *experiment.Manager
	metrics *telemetry.Providers
)

func main() {
	root := &cobra.Command{
		Use:   "cascade",
		Short: "Dependency-cascade simulation engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to cascade.toml")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return wire(cmd.Context())
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return teardown(cmd.Context())
	}

	root.AddCommand(newSnapshotCmd(), newCyclesCmd(), newSimulateCmd(), newMeasureCmd(), newExactCmd(), newIngestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cascade:", err)
		os.Exit(1)
	}
}

// wire resolves configuration and opens the backend store, event log, and
// experiment manager shared across subcommands: the store, snapshot
// builder, and experiment manager are constructed once per process and
// reused across every operation a subcommand runs.
func wire(ctx context.Context) error {
	logging.SetVerbose(verbose)

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	metrics, err = telemetry.Init("cascade")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	switch cfg.Backend {
	case config.BackendSQLite:
		sq, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		st = sq
		evlog = sqlstore.New(sq.Core.DB, sqlstore.DialectSQLite)
	case config.BackendServer:
		ns, err := netstore.Open(ctx, cfg.ServerDSN)
		if err != nil {
			return fmt.Errorf("open server store: %w", err)
		}
		st = ns
		evlog = sqlstore.New(ns.Core.DB, sqlstore.DialectServer)
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	builder = snapshot.New(evlog, st)
	mgr = experiment.New(st, builder)
	mgr.Metrics = telemetry.NewMetrics(metrics.Registry)
	return nil
}

func teardown(ctx context.Context) error {
	if st != nil {
		if err := st.Close(); err != nil {
			return err
		}
	}
	if metrics != nil {
		return metrics.Shutdown(ctx)
	}
	return nil
}
