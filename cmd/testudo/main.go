// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for Testudo using the Cobra
// library. It defines the root command, the operation subcommands, flags,
// and the main entry point for execution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toeirei/testudo/internal/config"
	"github.com/toeirei/testudo/internal/custody"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/logging"
	"github.com/toeirei/testudo/internal/model"
)

var version = "dev" // this will be set by the linker
var cfgFile string

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command. It is used to
// create the main application command as well as fresh instances for
// isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testudo",
		Short: "Testudo is a hierarchical asset custody ledger.",
		Long: `Testudo keeps custodied funds behind layered authorization.
A single admin registry defines the asset whitelist, fee rate, and
capacity limits; each owner gets one vault guarded by an owner key and
a separate unlock key, with per-asset sub-vaults hanging off it. Every
operation is signed, fee-accounted, and audit-logged.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.SetDebug(cfg.Debug)
			if err := db.InitDB(cfg.DBType, cfg.DBDSN); err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newRegistryCmd())
	cmd.AddCommand(newVaultCmd())
	cmd.AddCommand(newSubVaultCmd())
	cmd.AddCommand(newDepositCmd())
	cmd.AddCommand(newWithdrawCmd())
	cmd.AddCommand(newRecoverCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newKeygenCmd())

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is testudo.yaml in the user config dir, /etc/testudo, or .)")
	cmd.PersistentFlags().String("db-type", "sqlite", "database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("db-dsn", "./testudo.db", "database connection string (DSN)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	return cmd
}

// engine returns a custody engine over the global store. The database is
// initialized by PersistentPreRunE before any subcommand runs.
func engine() *custody.Engine {
	return custody.New(db.Get(), nil)
}

// parseAddr decodes a 64-character hex address argument.
func parseAddr(s string) (model.Address, error) {
	addr, err := model.ParseAddress(s)
	if err != nil {
		return model.Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

// parseAssetRef maps the literal "native" to the native currency and
// anything else to a typed asset identity.
func parseAssetRef(s string) (model.AssetRef, error) {
	if s == "" || s == "native" {
		return model.Native(), nil
	}
	addr, err := parseAddr(s)
	if err != nil {
		return model.AssetRef{}, err
	}
	return model.Typed(addr), nil
}
