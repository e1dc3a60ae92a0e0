// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	authpg "github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/store"
)

// SessionPurger removes expired session cache rows.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// openPurger is replaced in tests. The returned func releases the pool.
var openPurger = func(ctx context.Context, databaseURL string, attempts uint64) (SessionPurger, func(), error) {
	pool, err := store.Open(ctx, databaseURL, store.ConnectOptions{Attempts: attempts})
	if err != nil {
		return nil, nil, err
	}
	return authpg.NewSessionCache(pool), pool.Close, nil
}

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain the session cache",
	}
	cmd.AddCommand(newSessionsPurgeCmd())
	return cmd
}

func newSessionsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired sessions from the postgres session cache",
		Long: `Delete expired rows from the session_cache table. Only the postgres
cache backend keeps expired entries; redis expires keys itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadDatabaseConfig(cmd)
			if err != nil {
				return err
			}

			purger, release, err := openPurger(cmd.Context(), cfg.DatabaseURL, cfg.ConnectAttempts)
			if err != nil {
				return oops.With("operation", "connect to database").Wrap(err)
			}
			defer release()

			removed, err := purger.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d expired session(s)\n", removed)
			return nil
		},
	}
}
