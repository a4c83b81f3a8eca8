// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/absmach/fluxdrain/client/amqp091"
	"github.com/absmach/fluxdrain/config"
	"github.com/absmach/fluxdrain/migrate"
	pkgtls "github.com/absmach/fluxdrain/pkg/tls"
	"github.com/absmach/fluxdrain/ratelimit"
	"github.com/absmach/fluxdrain/store"
	"github.com/absmach/fluxdrain/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move every queued message to the remote broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := setupLogger(cmd, cfg)
			if err != nil {
				return err
			}

			report, err := runMigration(cmd.Context(), cfg, logger)
			logReport(logger, report)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.brokerURL, "broker-url", "", "Remote broker URL, e.g. amqp://host:5672/ (required)")
	f.StringVar(&opts.username, "username", "", "Remote username; empty connects anonymously")
	f.StringVar(&opts.password, "password", "", "Remote password")
	f.StringVar(&opts.vhost, "vhost", "/", "Remote virtual host when not part of the URL")
	f.BoolVar(&opts.declareQueues, "declare-queues", true, "Declare missing remote queues as durable")
	f.DurationVar(&opts.receiveTimeout, "receive-timeout", migrate.DefaultReceiveTimeout, "Wait for each receive from the source")
	f.IntVar(&opts.workers, "workers", 1, "Destinations drained concurrently")
	f.Float64Var(&opts.rate, "rate", 0, "Maximum messages per second (0 = unlimited)")
	f.StringSliceVar(&opts.include, "include", nil, "Only migrate destinations matching these patterns")
	f.StringSliceVar(&opts.exclude, "exclude", nil, "Skip destinations matching these patterns")
	f.BoolVar(&opts.dryRun, "dry-run", false, "List what would be migrated without moving anything")
	return cmd
}

// runMigration performs one complete run. Configuration problems are reported
// before the store is opened or the remote is dialled; the store and the
// connection are closed on every exit path.
func runMigration(ctx context.Context, cfg *config.Config, logger *slog.Logger) (migrate.Report, error) {
	if err := cfg.Validate(); err != nil {
		return migrate.Report{}, migrate.ConfigurationError("config", err)
	}
	if cfg.Remote.PasswordIgnored() {
		logger.Warn("Password given without username, connecting anonymously")
	}

	compression, err := store.ParseCompression(cfg.Source.Compression)
	if err != nil {
		return migrate.Report{}, migrate.ConfigurationError("config", err)
	}
	tlsConfig, err := pkgtls.LoadClientConfig(cfg.Remote.TLS)
	if err != nil {
		return migrate.Report{}, migrate.ConfigurationError("remote tls", err)
	}

	runID := uuid.NewString()
	shutdown, err := telemetry.InitProvider(ctx, cfg.Telemetry, version, runID)
	if err != nil {
		return migrate.Report{}, migrate.ConfigurationError("telemetry", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("Failed to flush telemetry", "error", err)
		}
	}()

	src, err := store.Open(store.Config{
		Dir:         cfg.Source.Dir,
		Compression: compression,
		SyncWrites:  cfg.Source.SyncWrites,
		GCInterval:  cfg.Source.GCInterval,
		Logger:      logger,
	})
	if err != nil {
		return migrate.Report{}, migrate.ConnectivityError("open store", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close source store", "error", err)
		}
	}()
	logger.Info("Source store opened", "dir", src.Dir(), "run_id", runID)

	migOpts := migrate.Options{
		ReceiveTimeout: cfg.Migration.ReceiveTimeout,
		Workers:        cfg.Migration.Workers,
		Filter:         migrate.Filter{Include: cfg.Migration.Include, Exclude: cfg.Migration.Exclude},
		DryRun:         cfg.Migration.DryRun,
		Logger:         logger,
	}

	if limiter := ratelimit.NewManager(cfg.Migration.RateLimit); limiter != nil {
		migOpts.Limiter = limiter
		logger.Info("Rate limiting enabled",
			slog.Float64("rate", cfg.Migration.RateLimit.Rate),
			slog.Float64("destination_rate", cfg.Migration.RateLimit.DestinationRate))
	}

	if cfg.Telemetry.MetricsEnabled {
		metrics, err := telemetry.NewMetrics(nil)
		if err != nil {
			return migrate.Report{}, migrate.ConfigurationError("metrics", err)
		}
		migOpts.Observer = metrics
	}

	// A dry run never touches the remote.
	var remote migrate.Remote
	if !cfg.Migration.DryRun {
		client, err := connectRemote(cfg.Remote, tlsConfig)
		if err != nil {
			return migrate.Report{}, err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close remote connection", "error", err)
			}
		}()
		migOpts.RemoteName = client.Address()
		remote = migrate.NewAMQPRemote(client)
		logger.Info("Connected to remote broker", "remote", client.Address(), "tls", pkgtls.SecurityStatus(tlsConfig))
	}

	return migrate.New(migrate.NewStoreSource(src), remote, migOpts).Run(ctx)
}

func connectRemote(cfg config.RemoteConfig, tlsConfig *tls.Config) (*amqp091.Client, error) {
	opts := amqp091.NewOptions().
		SetURL(cfg.URL).
		SetCredentials(cfg.Username, cfg.Password).
		SetVhost(cfg.Vhost).
		SetTLSConfig(tlsConfig).
		SetDialTimeout(cfg.DialTimeout).
		SetHeartbeat(cfg.Heartbeat).
		SetConfirmTimeout(cfg.ConfirmTimeout).
		SetDeclareQueues(cfg.DeclareQueues)
	if cfg.ConnectionName != "" {
		opts.ConnectionName = cfg.ConnectionName
	}

	client, err := amqp091.New(opts)
	if err != nil {
		return nil, migrate.ConfigurationError("remote options", err)
	}
	if err := client.Connect(); err != nil {
		return nil, migrate.ConnectivityError("connect "+client.Address(), err)
	}
	return client, nil
}

func logReport(logger *slog.Logger, report migrate.Report) {
	if report.Started.IsZero() {
		return
	}
	for _, res := range report.Results {
		if report.DryRun {
			continue
		}
		status := "drained"
		if res.Err != nil {
			status = "aborted"
		}
		logger.Info("Destination summary",
			"destination", res.Destination,
			"depth", res.Depth,
			"migrated", res.Migrated,
			"duration", res.Duration,
			"status", status)
	}
	logger.Info("Migration finished",
		"destinations", len(report.Results),
		"migrated", report.Migrated(),
		"dry_run", report.DryRun,
		"duration", report.Finished.Sub(report.Started))
}
