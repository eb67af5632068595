package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hivenet",
		Short:         "Hive storage network simulation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newInspectCmd(), newEventsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one world and serve control, observer and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.Addr, "addr", ":8080", "http listen address")
	f.StringVar(&o.WorldID, "world", "world_1", "world id")
	f.StringVar(&o.ConfigDir, "configs", "./configs", "config directory")
	f.StringVar(&o.DataDir, "data", "./data", "runtime data directory")
	f.StringVar(&o.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	f.BoolVar(&o.DisableDB, "disable_db", false, "disable the sqlite index (events, catalogs, snapshot metadata)")
	f.Float64Var(&o.CommandsPerSecond, "cmd_rate", 50, "control commands per second per connection (0 = unlimited)")
	f.IntVar(&o.CommandBurst, "cmd_burst", 100, "control command burst per connection")
	f.StringVar(&o.SnapshotPath, "snapshot", "", "path to snapshot to load (optional)")
	f.BoolVar(&o.LoadLatest, "load_latest_snapshot", true, "load latest snapshot from data dir if present (when --snapshot is empty)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <snapshot.snap.zst>",
		Short: "Print a snapshot summary as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectSnapshot(cmd.OutOrStdout(), args[0])
		},
	}
}

func newEventsCmd() *cobra.Command {
	var (
		dbPath   string
		kind     string
		fromTick uint64
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query indexed network events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return queryEvents(cmd.Context(), cmd.OutOrStdout(), dbPath, kind, fromTick, limit)
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "./data/worlds/world_1/index/world.sqlite", "sqlite index path")
	f.StringVar(&kind, "kind", "", "only events of this kind")
	f.Uint64Var(&fromTick, "from", 0, "first tick")
	f.IntVar(&limit, "limit", 100, "max rows")
	return cmd
}
