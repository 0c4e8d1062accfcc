// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/toeirei/testudo/internal/custody"
	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/model"
)

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage a custody vault",
	}
	cmd.AddCommand(newVaultCreateCmd())
	cmd.AddCommand(newVaultShowCmd())
	cmd.AddCommand(newVaultCloseCmd())
	cmd.AddCommand(newVaultSetBackupCmd())
	return cmd
}

func newVaultCreateCmd() *cobra.Command {
	var ownerKey, unlockAddr, backupAddr string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vault for the signing owner",
		Long: `Creates the owner's vault at its derived address and funds the
rent reserve from the owner's native balance. The unlock key address
is registered as the second authorization factor; an optional backup
address enables fee-free recovery later.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, priv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			unlock, err := parseAddr(unlockAddr)
			if err != nil {
				return err
			}
			var backup *model.Address
			if backupAddr != "" {
				b, err := parseAddr(backupAddr)
				if err != nil {
					return err
				}
				backup = &b
			}
			if err := engine().CreateVault(custody.SignCreateVault(priv, unlock, backup), unlock, backup); err != nil {
				return err
			}
			fmt.Println("vault created")
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	cmd.Flags().StringVar(&unlockAddr, "unlock", "", "unlock key address")
	cmd.Flags().StringVar(&backupAddr, "backup", "", "backup address (optional)")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("unlock")
	return cmd
}

func newVaultShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner-address>",
		Short: "Show a vault and its sub-vaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			v, err := db.Get().GetVaultByOwner(owner)
			if err != nil {
				if err == db.ErrNotFound {
					fmt.Println("no vault for this owner")
					return nil
				}
				return err
			}
			fmt.Printf("address:        %s\n", v.Address)
			fmt.Printf("owner:          %s\n", v.Owner)
			fmt.Printf("unlock key:     %s\n", v.UnlockKey)
			if v.HasBackup() {
				fmt.Printf("backup:         %s\n", v.Backup)
			} else {
				fmt.Println("backup:         none")
			}
			fmt.Printf("native balance: %d\n", v.NativeBalance)
			fmt.Printf("sub-vaults:     %d\n", len(v.SubVaults))
			for _, ref := range v.SubVaults {
				fmt.Printf("  %s  balance=%d  (%s)\n", ref.Asset.Short(), ref.TokenCount, ref.SubVault.Short())
			}
			return nil
		},
	}
}

func newVaultCloseCmd() *cobra.Command {
	var ownerKey, unlockKey string
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close an empty vault and refund its balance",
		Long: `Closes the vault. All sub-vaults must be closed first. The tracked
balance is fee-assessed, the remainder and the rent reserve return to
the owner, and the vault record is deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ownerPriv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			_, unlockPriv, err := readKeyFile(unlockKey)
			if err != nil {
				return err
			}
			if err := engine().CloseVault(custody.SignCloseVault(ownerPriv), custody.SignCloseVault(unlockPriv)); err != nil {
				return err
			}
			fmt.Println("vault closed")
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	cmd.Flags().StringVar(&unlockKey, "unlock-key", "", "unlock key file")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("unlock-key")
	return cmd
}

func newVaultSetBackupCmd() *cobra.Command {
	var ownerKey, unlockKey string
	cmd := &cobra.Command{
		Use:   "set-backup <address>",
		Short: "Set or replace the vault's backup address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, ownerPriv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			_, unlockPriv, err := readKeyFile(unlockKey)
			if err != nil {
				return err
			}
			if err := engine().UpdateBackup(
				custody.SignUpdateBackup(ownerPriv, backup),
				custody.SignUpdateBackup(unlockPriv, backup),
				backup,
			); err != nil {
				return err
			}
			fmt.Println("backup updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	cmd.Flags().StringVar(&unlockKey, "unlock-key", "", "unlock key file")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("unlock-key")
	return cmd
}

func newDepositCmd() *cobra.Command {
	var ownerKey, asset string
	cmd := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit funds into the signing owner's vault",
		Long: `Deposits the given amount. The protocol fee is split off to the
treasury and the net lands in the vault (native) or the asset's
sub-vault (typed). Typed deposits require an existing sub-vault.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			ref, err := parseAssetRef(asset)
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			if err := engine().Deposit(custody.SignDeposit(priv, ref, amount), ref, amount); err != nil {
				return err
			}
			fmt.Printf("deposited %d (%s)\n", amount, ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	cmd.Flags().StringVar(&asset, "asset", "native", `asset address or "native"`)
	_ = cmd.MarkFlagRequired("owner-key")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	var ownerKey, unlockKey, asset string
	var all bool
	cmd := &cobra.Command{
		Use:   "withdraw [amount]",
		Short: "Withdraw funds from the signing owner's vault",
		Long: `Withdraws the given amount, or everything withdrawable with --all.
Native withdrawals never touch the rent reserve. Both the owner key
and the unlock key must sign.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount uint64
			if len(args) == 1 {
				var err error
				amount, err = strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", args[0], err)
				}
			} else if !all {
				return fmt.Errorf("an amount or --all is required")
			}
			ref, err := parseAssetRef(asset)
			if err != nil {
				return err
			}
			_, ownerPriv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			_, unlockPriv, err := readKeyFile(unlockKey)
			if err != nil {
				return err
			}
			if err := engine().Withdraw(
				custody.SignWithdraw(ownerPriv, ref, amount, all),
				custody.SignWithdraw(unlockPriv, ref, amount, all),
				ref, amount, all,
			); err != nil {
				return err
			}
			fmt.Printf("withdrew %s\n", ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	cmd.Flags().StringVar(&unlockKey, "unlock-key", "", "unlock key file")
	cmd.Flags().StringVar(&asset, "asset", "native", `asset address or "native"`)
	cmd.Flags().BoolVar(&all, "all", false, "withdraw the full withdrawable balance")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("unlock-key")
	return cmd
}

func newRecoverCmd() *cobra.Command {
	var backupKey, ownerAddr, asset string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Drain a vault balance to its backup address",
		Long: `Recovery path for a lost unlock key. The configured backup identity
signs alone; the full balance of the named asset moves to the backup
address with no fee.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseAddr(ownerAddr)
			if err != nil {
				return err
			}
			ref, err := parseAssetRef(asset)
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(backupKey)
			if err != nil {
				return err
			}
			if err := engine().WithdrawToBackup(owner, custody.SignWithdrawToBackup(priv, owner, ref), ref); err != nil {
				return err
			}
			fmt.Printf("recovered %s to backup\n", ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupKey, "backup-key", "", "backup key file")
	cmd.Flags().StringVar(&ownerAddr, "owner", "", "vault owner address")
	cmd.Flags().StringVar(&asset, "asset", "native", `asset address or "native"`)
	_ = cmd.MarkFlagRequired("backup-key")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newSubVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subvault",
		Short: "Manage per-asset sub-vaults",
	}
	cmd.AddCommand(newSubVaultCreateCmd())
	cmd.AddCommand(newSubVaultCloseCmd())
	cmd.AddCommand(newSubVaultDeleteCmd())
	return cmd
}

func newSubVaultCreateCmd() *cobra.Command {
	var ownerKey string
	cmd := &cobra.Command{
		Use:   "create <asset-address>",
		Short: "Create a sub-vault for a whitelisted asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			if err := engine().CreateSubVault(custody.SignCreateSubVault(priv, asset), asset); err != nil {
				return err
			}
			fmt.Println("sub-vault created")
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	_ = cmd.MarkFlagRequired("owner-key")
	return cmd
}

func newSubVaultCloseCmd() *cobra.Command {
	var ownerKey string
	cmd := &cobra.Command{
		Use:   "close <asset-address>",
		Short: "Close a sub-vault, draining its balance with the fee applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			if err := engine().CloseSubVault(custody.SignCloseSubVault(priv, asset), asset); err != nil {
				return err
			}
			fmt.Println("sub-vault closed")
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	_ = cmd.MarkFlagRequired("owner-key")
	return cmd
}

func newSubVaultDeleteCmd() *cobra.Command {
	var ownerKey, unlockKey string
	cmd := &cobra.Command{
		Use:   "delete <asset-address>",
		Short: "Delete a sub-vault, draining its balance fee-free",
		Long: `Deletes a sub-vault. Unlike close, the residual balance returns to
the owner without a fee, which is why the unlock key must co-sign.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, ownerPriv, err := readKeyFile(ownerKey)
			if err != nil {
				return err
			}
			_, unlockPriv, err := readKeyFile(unlockKey)
			if err != nil {
				return err
			}
			if err := engine().DeleteSubVault(
				custody.SignDeleteSubVault(ownerPriv, asset),
				custody.SignDeleteSubVault(unlockPriv, asset),
				asset,
			); err != nil {
				return err
			}
			fmt.Println("sub-vault deleted")
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerKey, "owner-key", "", "owner key file")
	cmd.Flags().StringVar(&unlockKey, "unlock-key", "", "unlock key file")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("unlock-key")
	return cmd
}
