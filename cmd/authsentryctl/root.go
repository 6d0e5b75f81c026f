// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/authsentry/internal/app"
	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	dbPath     string
	verbose    bool
}

// openAppFunc builds the component graph for one command invocation.
type openAppFunc func(cfg *config.Config) (*app.App, error)

func defaultOpenApp(cfg *config.Config) (*app.App, error) {
	return app.New(cfg, app.WithoutEventBus())
}

func newRootCmd(open openAppFunc) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "authsentryctl",
		Short:         "Operate an AuthSentry database",
		Long:          "Ingest authentication events, run detection, triage alerts and manage the IP reputation cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if flags.verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
		},
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file path (default: $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "DuckDB file, overrides database.path")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	run := func(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
		return withApp(flags, open, fn)
	}

	root.AddCommand(
		newIngestCmd(run),
		newRunCmd(run),
		newAlertsCmd(run),
		newLookupCmd(run),
		newEvictCmd(run),
		newStatsCmd(run),
	)
	return root
}

// withApp loads configuration, opens the app for the duration of fn and
// reports fn's error on stderr.
func withApp(flags *globalFlags, open openAppFunc, fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if flags.configFile != "" {
			if err := os.Setenv(config.ConfigPathEnvVar, flags.configFile); err != nil {
				return fmt.Errorf("failed to set config path: %w", err)
			}
		}
		cfg, err := config.Load()
		if err != nil {
			return report(cmd, fmt.Errorf("failed to load configuration: %w", err))
		}
		if flags.dbPath != "" {
			cfg.Database.Path = flags.dbPath
		}

		a, err := open(cfg)
		if err != nil {
			return report(cmd, err)
		}
		defer func() {
			if err := a.Close(); err != nil {
				logging.Error().Err(err).Msg("Failed to close AuthSentry")
			}
		}()

		return report(cmd, fn(cmd, args, a))
	}
}

func report(cmd *cobra.Command, err error) error {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
	}
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
