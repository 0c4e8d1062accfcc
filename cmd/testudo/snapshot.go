// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/export"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the full custody state to a snapshot file",
		Long: `Writes the registry, vaults, sub-vaults, ledger accounts, and audit
log to a zstd-compressed YAML snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create snapshot file: %w", err)
			}
			defer f.Close()
			if err := export.Export(db.Get(), f); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("exported to %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore custody state from a snapshot file",
		Long: `Restores a snapshot into the database in one transaction. The
registry is replaced; vaults, sub-vaults, and accounts are upserted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open snapshot file: %w", err)
			}
			defer f.Close()
			if err := export.Import(db.Get(), f); err != nil {
				return err
			}
			fmt.Printf("imported %s\n", args[0])
			return nil
		},
	}
}
