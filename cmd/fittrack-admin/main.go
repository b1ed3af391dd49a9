package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var CLI struct {
	Version    kong.VersionFlag
	Config     string `help:"Config file path." type:"path" default:"config.yaml"`
	Migrations string `help:"SQL migrations directory." type:"path" default:"migrations"`

	Migrate   MigrateCmd   `cmd:"" help:"Apply pending database migrations."`
	SyncStats SyncStatsCmd `cmd:"" name:"sync-stats" help:"Backfill sessions for completed calendar workouts."`
	Export    ExportCmd    `cmd:"" help:"Write one user's training data to a SQLite file."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("fittrack-admin"),
		kong.Description("FitTrack operator tasks"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log, closer := logging.New(cfg.Log)
	defer closer.Close()

	err = ctx.Run(&Context{Config: cfg, Migrations: CLI.Migrations, Log: log})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}
