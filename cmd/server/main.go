/*
main.go - Application entry point

PURPOSE:
  The permiplan binary. Serves the HTTP API and offers a few offline
  commands that work directly against the same SQLite database.

COMMANDS:
  serve              HTTP API with graceful shutdown
  plan               Print a profile's annotated timeline
  export <file>      Write a backup document ("-" for stdout)
  import <file>      Restore a backup or merge a profile fragment
  waves <ref-year>   Print the wave schedule of a season

CONFIGURATION (lowest to highest precedence):
  1. Built-in defaults
  2. YAML file given by --config
  3. PERMIPLAN_* environment variables
  4. Command-line flags

STARTUP SEQUENCE (serve):
  1. Load configuration and set up zerolog
  2. Open the SQLite store
  3. Load the profile collection (migrating legacy data if needed)
  4. Configure the HTTP router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

EXAMPLES:
  permiplan serve --db ./data/permiplan.db
  permiplan serve --db ":memory:" --env production --log-level warn
  permiplan plan --today 2026-03-01
  permiplan export backup.json

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and defaults
  - planner/service.go: The profile collection
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/permiplan/api"
	"github.com/warp/permiplan/config"
	"github.com/warp/permiplan/logging"
	"github.com/warp/permiplan/planner"
	"github.com/warp/permiplan/store/sqlite"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the flags shared by every command and the resolved settings.
type app struct {
	configPath string
	dbPath     string
	listen     string
	env        string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "permiplan",
		Short:         "Rotation planner for shift workers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path (\":memory:\" for in-memory)")
	flags.StringVar(&a.listen, "listen", "", "HTTP listen address")
	flags.StringVar(&a.env, "env", "", "environment (development, production)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(a))
	root.AddCommand(planCmd(a))
	root.AddCommand(exportCmd(a))
	root.AddCommand(importCmd(a))
	root.AddCommand(wavesCmd(a))
	return root
}

// configure loads the config file and environment, then applies the flags
// the user set explicitly.
func (a *app) configure(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("listen") {
		cfg.Listen = a.listen
	}
	if flags.Changed("env") {
		cfg.Environment = a.env
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	if cmd.Name() == "serve" {
		a.logger = logging.Setup(cfg.Environment, cfg.LogLevel)
	} else {
		// Offline commands print their results on stdout.
		a.logger = logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, os.Stderr)
	}
	return nil
}

// open opens the database and loads the planner on top of it. The caller
// closes the store.
func (a *app) open(ctx context.Context) (*sqlite.Store, *planner.Service, error) {
	store, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	svc, err := planner.New(ctx, store,
		planner.WithAuditLog(store),
		planner.WithLogger(a.logger),
	)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load profiles: %w", err)
	}
	return store, svc, nil
}

// =============================================================================
// SERVE
// =============================================================================

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, svc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(svc, a.logger)
	router := api.NewRouter(handler, api.Options{
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.logger,
	})

	server := &http.Server{
		Addr:         a.cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("listen", a.cfg.Listen).
			Str("db", a.cfg.DBPath).
			Str("environment", a.cfg.Environment).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}
