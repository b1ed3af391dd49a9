package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fittrack/fittrack/internal/calendar"
	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/export"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Context is handed to every command's Run method.
type Context struct {
	Config     *config.Config
	Migrations string
	Log        *slog.Logger
}

func (c *Context) open(ctx context.Context) (*storage.DB, error) {
	if c.Config.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("admin commands need the %q driver, config has %q", config.DriverPostgres, c.Config.Database.Driver)
	}
	return storage.New(ctx, c.Config.Database)
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(c *Context) error {
	if c.Config.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations only apply to the %q driver", config.DriverPostgres)
	}
	if err := storage.RunMigrations(c.Config.Database.DSN(), c.Migrations); err != nil {
		return err
	}
	c.Log.Info("migrations applied", "path", c.Migrations)
	return nil
}

type SyncStatsCmd struct {
	UserID int64 `name:"user-id" help:"Repair a single user." xor:"target" required:""`
	All    bool  `help:"Repair every user." xor:"target" required:""`
}

func (cmd *SyncStatsCmd) Run(c *Context) error {
	ctx := context.Background()
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.NewManager("fittrack", "admin", prometheus.NewRegistry())
	svc := calendar.NewService(db, m, c.Log, c.Config.Server.Location())

	ids := []int64{cmd.UserID}
	if cmd.All {
		if ids, err = db.ListUserIDs(ctx); err != nil {
			return err
		}
	}

	total := 0
	var errs error
	failed := 0
	for _, id := range ids {
		n, err := svc.SyncWorkoutStats(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %d: %w", id, err))
			failed++
			continue
		}
		total += n
	}
	fmt.Printf("synced %d session(s) across %d user(s)\n", total, len(ids)-failed)
	return errs
}

type ExportCmd struct {
	UserID int64  `name:"user-id" help:"User to export." required:""`
	Out    string `help:"Destination SQLite file. Must not exist." type:"path" required:""`
}

func (cmd *ExportCmd) Run(c *Context) error {
	ctx := context.Background()
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sum, err := export.New(db, c.Log).Export(ctx, cmd.UserID, cmd.Out)
	if err != nil {
		return err
	}
	fmt.Printf("exported user %d to %s: %d plans, %d sessions, %d sets, %d weight logs, %d events\n",
		cmd.UserID, cmd.Out, sum.Plans, sum.Sessions, sum.SetLogs, sum.WeightLogs, sum.Events)
	return nil
}
