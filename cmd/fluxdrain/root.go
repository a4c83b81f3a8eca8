// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fluxdrain/config"
	"github.com/absmach/fluxdrain/internal/logging"
	"github.com/absmach/fluxdrain/migrate"
	"github.com/spf13/cobra"
)

// options holds the command-line overrides shared by all commands.
type options struct {
	configFile     string
	storeDir       string
	brokerURL      string
	username       string
	password       string
	vhost          string
	declareQueues  bool
	receiveTimeout time.Duration
	workers        int
	rate           float64
	include        []string
	exclude        []string
	dryRun         bool
	logLevel       string
	logFormat      string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fluxdrain",
		Short:         "Drain a local queue store into an AMQP broker",
		Long:          "fluxdrain moves every queued message out of a local store into a remote AMQP 0.9.1 broker, queue by queue, then exits.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file")
	pf.StringVar(&opts.storeDir, "store", "", "Source store directory (required)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text|json")

	root.AddCommand(
		newMigrateCommand(opts),
		newInspectCommand(opts),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads the configuration file and applies the flags that were
// explicitly set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, migrate.ConfigurationError("load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Source.Dir = opts.storeDir
	}
	if flags.Changed("broker-url") {
		cfg.Remote.URL = opts.brokerURL
	}
	if flags.Changed("username") {
		cfg.Remote.Username = opts.username
	}
	if flags.Changed("password") {
		cfg.Remote.Password = opts.password
	}
	if flags.Changed("vhost") {
		cfg.Remote.Vhost = opts.vhost
	}
	if flags.Changed("declare-queues") {
		cfg.Remote.DeclareQueues = opts.declareQueues
	}
	if flags.Changed("receive-timeout") {
		cfg.Migration.ReceiveTimeout = opts.receiveTimeout
	}
	if flags.Changed("workers") {
		cfg.Migration.Workers = opts.workers
	}
	if flags.Changed("rate") {
		cfg.Migration.RateLimit.Rate = opts.rate
	}
	if flags.Changed("include") {
		cfg.Migration.Include = opts.include
	}
	if flags.Changed("exclude") {
		cfg.Migration.Exclude = opts.exclude
	}
	if flags.Changed("dry-run") {
		cfg.Migration.DryRun = opts.dryRun
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}

	return cfg, nil
}

// setupLogger installs the configured logger as the process default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, migrate.ConfigurationError("log", err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fluxdrain version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fluxdrain", version)
		},
	}
}
