// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - account registration and session service",
		Long: `accountd registers user accounts, authenticates them with signed
session tokens, and serves account lookups over an HTTP/JSON API.`,
		SilenceUsage: true,
	}

	def := config.Default()
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/accountd/accountd.yaml)")
	flags.String("database-url", "", "PostgreSQL connection URL (DATABASE_URL)")
	flags.String("log-format", def.LogFormat, "log format (json or text)")
	flags.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}

// loadConfig resolves the configuration for cmd from the config file, the
// environment and any flags the user set. Without --config the XDG default
// file is used when present.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file := configFile
	if file == "" {
		path, ok, err := xdg.FindConfigFile()
		if err != nil {
			return config.Config{}, err
		}
		if ok {
			file = path
		}
	}
	return config.LoadUnvalidated(config.LoadOptions{File: file, Flags: cmd.Flags()})
}

// loadDatabaseConfig loads configuration for commands that only talk to
// the database, so a missing JWT secret does not block them.
func loadDatabaseConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return config.Config{}, oops.Code("CONFIG_INVALID").
			With("key", "database_url").
			Errorf("database_url (DATABASE_URL) is required")
	}
	return cfg, nil
}

// setupLogging installs the process logger described by cfg.
func setupLogging(cfg config.Config, cmd *cobra.Command) (*slog.Logger, error) {
	logger, err := logging.SetDefault(logging.Options{
		Service: "accountd",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, oops.With("operation", "set up logging").Wrap(err)
	}
	return logger, nil
}
