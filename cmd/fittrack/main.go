package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fittrack/fittrack/internal/activesession"
	"github.com/fittrack/fittrack/internal/calendar"
	"github.com/fittrack/fittrack/internal/catalog"
	"github.com/fittrack/fittrack/internal/config"
	"github.com/fittrack/fittrack/internal/logging"
	"github.com/fittrack/fittrack/internal/mcp"
	"github.com/fittrack/fittrack/internal/media"
	"github.com/fittrack/fittrack/internal/metrics"
	"github.com/fittrack/fittrack/internal/plans"
	"github.com/fittrack/fittrack/internal/server"
	"github.com/fittrack/fittrack/internal/stats"
	"github.com/fittrack/fittrack/internal/storage"
	"github.com/fittrack/fittrack/internal/storage/memstore"
	"github.com/fittrack/fittrack/internal/users"
	"github.com/fittrack/fittrack/internal/weight"
	"github.com/fittrack/fittrack/internal/workout"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to the SQL migrations directory")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	log.Info("FitTrack starting", "version", Version, "db_driver", cfg.Database.Driver, "auth_mode", cfg.Auth.Mode)

	ctx := context.Background()

	// Storage
	var (
		store      storage.Store
		collectors []prometheus.Collector
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		if *migrateOnly {
			log.Info("migrate-only: nothing to migrate for the memory driver")
			return
		}
		mem := memstore.New()
		if err := mem.SeedCatalog(ctx); err != nil {
			log.Error("seeding catalog failed", "error", err)
			os.Exit(1)
		}
		store = mem
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, *migrationsPath); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err := storage.New(ctx, cfg.Database)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db
		collectors = append(collectors, db.Collector(cfg.Database.Name))
		log.Info("database connected")
	}

	reg := metrics.NewRegistry(collectors...)
	m := metrics.NewManager("fittrack", "server", reg)

	// Active-session pointers and rate limiting
	var (
		pointers activesession.Store
		limiter  server.RequestRateLimiter
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis ping failed", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		pointers = activesession.NewRedisStore(rdb, cfg.Redis.ActiveSessionTTL)
		limiter = redis_rate.NewLimiter(rdb)
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	} else {
		pointers = activesession.NewMemoryStore(cfg.Redis.ActiveSessionTTL)
		log.Info("redis disabled: active sessions kept in memory, rate limiting off")
	}

	// Services
	loc := cfg.Server.Location()
	mediaStore := media.NewStore(cfg.Media.Dir, cfg.Media.MaxUploadBytes())
	svc := server.Services{
		Users:    users.NewService(store, log),
		Catalog:  catalog.NewService(store, mediaStore, log),
		Plans:    plans.NewService(store, log),
		Workouts: workout.NewService(store, pointers, m, log),
		Calendar: calendar.NewService(store, m, log, loc),
		Stats:    stats.NewService(store, loc),
		Weight:   weight.NewService(store, log),
	}

	srv := server.New(svc, server.Options{
		Auth:            cfg.Auth,
		Limiter:         limiter,
		WritesPerMinute: cfg.RateLimit.WritesPerMinute,
		MaxUploadBytes:  cfg.Media.MaxUploadBytes(),
		MediaRoot:       mediaStore.Root(),
		Location:        loc,
		Metrics:         m,
		Gatherer:        reg,
	}, log)

	mcpServer := mcp.New(mcp.Services{
		Workouts: svc.Workouts,
		Stats:    svc.Stats,
		Weight:   svc.Weight,
		Calendar: svc.Calendar,
		Location: loc,
	}, Version, log)
	srv.MountMCP(mcp.Handler(mcpServer, func(r *http.Request) (int64, bool) {
		return server.UserIDFromContext(r.Context())
	}))

	// Listener: tsnet or plain TCP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf: func(format string, args ...any) {
				log.Debug(fmt.Sprintf(format, args...), "component", "tsnet")
			},
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
