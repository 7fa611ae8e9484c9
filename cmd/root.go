package main

import (
	"context"
	"fmt"
	"time"

	"airq-service/internal/analytics"
	"airq-service/internal/cache"
	"airq-service/internal/catalog"
	"airq-service/internal/config"
	"airq-service/internal/logging"
	"airq-service/internal/server"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

// newRootCmd builds the airq command tree. Running it without a subcommand
// starts the HTTP service.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "airq",
		Short:        "Indoor air quality scoring service",
		Long:         "Scores indoor air quality from room sensor readings and simulates the effect of corrective changes.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(opts),
		newAnalyzeCmd(opts),
		newSimulateCmd(opts),
		newReferenceCmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	log := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	reg, err := catalog.NewRegistry(cfg.Locale.Default)
	if err != nil {
		return err
	}

	var store server.Store
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisClient(ctx, cache.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			TTL:       cfg.Redis.TTL,
			MaxRecent: cfg.Redis.MaxRecent,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rc.Close()
		store = rc
		log.Info("recent analyses feed enabled", "redis", cfg.Redis.Addr)
	} else {
		log.Info("redis address not set, recent analyses feed disabled")
	}

	srv, err := server.NewServer(server.Options{
		Catalogs:    reg,
		Store:       store,
		Tracker:     analytics.NewTracker(cfg.Tracker.WindowSize, cfg.Tracker.ZScoreThreshold),
		QueueSize:   cfg.Ingest.QueueSize,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	return srv.Run(cfg.Server)
}

// engineFor loads the configured default locale and resolves lang against
// the available catalogs.
func engineFor(opts *rootOptions, lang string) (*analytics.Engine, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	reg, err := catalog.NewRegistry(cfg.Locale.Default)
	if err != nil {
		return nil, err
	}
	return analytics.New(analytics.DefaultTables(), reg.Match(lang))
}
