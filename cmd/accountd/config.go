// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration accountd would run with, after applying the
config file, environment and flags. Secrets and URL passwords are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out, err := cfg.Redacted().YAML()
			if err != nil {
				return err
			}
			cmd.Print(string(out))

			if check {
				if err := cfg.Validate(); err != nil {
					return oops.With("operation", "validate configuration").Wrap(err)
				}
				cmd.PrintErrln("configuration is valid")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "also validate the configuration")
	return cmd
}
