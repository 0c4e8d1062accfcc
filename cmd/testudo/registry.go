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

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Administer the custody registry",
	}
	cmd.AddCommand(newRegistryInitCmd())
	cmd.AddCommand(newRegistryShowCmd())
	cmd.AddCommand(newRegistrySetFeeCmd())
	cmd.AddCommand(newRegistrySetTreasuryCmd())
	cmd.AddCommand(newRegistrySetLimitCmd())
	cmd.AddCommand(newRegistrySetAuthorityCmd())
	cmd.AddCommand(newRegistryWhitelistAddCmd())
	cmd.AddCommand(newRegistryCloseCmd())
	return cmd
}

func newRegistryInitCmd() *cobra.Command {
	var keyFile, treasuryAddr string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the registry",
		Long: `Initializes the singleton registry. The signing key becomes the
registry authority; fees accrue to the given treasury address. The
default whitelist and limits are seeded on creation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			treasury, err := parseAddr(treasuryAddr)
			if err != nil {
				return err
			}
			if err := engine().InitRegistry(custody.SignInitRegistry(priv, treasury), treasury); err != nil {
				return err
			}
			fmt.Println("registry initialized")
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "authority key file")
	cmd.Flags().StringVar(&treasuryAddr, "treasury", "", "treasury address")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("treasury")
	return cmd
}

func newRegistryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show registry state and whitelist",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := db.Get().GetRegistry()
			if err != nil {
				if err == db.ErrNotFound {
					fmt.Println("registry not initialized")
					return nil
				}
				return err
			}
			fmt.Printf("address:    %s\n", reg.Address)
			fmt.Printf("authority:  %s\n", reg.Authority)
			fmt.Printf("treasury:   %s\n", reg.Treasury)
			fmt.Printf("fee:        %d bps\n", reg.FeeBps)
			fmt.Printf("limits:     vaults/owner=%d subvaults/vault=%d whitelist=%d\n",
				reg.MaxVaultsPerOwner, reg.MaxSubVaultsPerVault, reg.MaxWhitelistedAssets)
			fmt.Printf("whitelist:  %d assets\n", len(reg.Whitelist))
			for _, w := range reg.Whitelist {
				fmt.Printf("  %-8s %-24s %d decimals  %s\n", w.Symbol, w.Name, w.Decimals, w.Asset)
			}
			return nil
		},
	}
}

func newRegistrySetFeeCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "set-fee <bps>",
		Short: "Update the fee rate in basis points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bps, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid fee rate %q: %w", args[0], err)
			}
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			if err := engine().UpdateFeeRate(custody.SignUpdateFeeRate(priv, uint16(bps)), uint16(bps)); err != nil {
				return err
			}
			fmt.Printf("fee rate set to %d bps\n", bps)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "authority key file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newRegistrySetTreasuryCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "set-treasury <address>",
		Short: "Update the treasury address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			treasury, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			if err := engine().UpdateTreasury(custody.SignUpdateTreasury(priv, treasury), treasury); err != nil {
				return err
			}
			fmt.Println("treasury updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "authority key file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func limitKindFromString(s string) (model.LimitKind, error) {
	switch s {
	case string(model.LimitVaultsPerOwner):
		return model.LimitVaultsPerOwner, nil
	case string(model.LimitSubVaultsPerVault):
		return model.LimitSubVaultsPerVault, nil
	case string(model.LimitWhitelistedAssets):
		return model.LimitWhitelistedAssets, nil
	}
	return "", fmt.Errorf("unknown limit %q (want %s, %s, or %s)",
		s, model.LimitVaultsPerOwner, model.LimitSubVaultsPerVault, model.LimitWhitelistedAssets)
}

func newRegistrySetLimitCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "set-limit <kind> <value>",
		Short: "Raise one of the capacity limits",
		Long: `Raises a capacity limit. Limits only move up; an equal or lower
value is rejected so already-granted capacity never shrinks.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := limitKindFromString(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseUint(args[1], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid limit value %q: %w", args[1], err)
			}
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			if err := engine().UpdateLimit(custody.SignUpdateLimit(priv, kind, uint16(value)), kind, uint16(value)); err != nil {
				return err
			}
			fmt.Printf("limit %s set to %d\n", kind, value)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "authority key file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newRegistrySetAuthorityCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "set-authority <address>",
		Short: "Hand the registry over to a new authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newAuthority, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			if err := engine().UpdateAuthority(custody.SignUpdateAuthority(priv, newAuthority), newAuthority); err != nil {
				return err
			}
			fmt.Println("authority updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "current authority key file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newRegistryWhitelistAddCmd() *cobra.Command {
	var keyFile, name, symbol string
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "whitelist-add <asset-address>",
		Short: "Add an asset to the whitelist",
		Long: `Adds an asset to the registry whitelist. The authority pays the
per-entry storage reserve from its native balance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			entry := model.WhitelistEntry{Asset: asset, Name: name, Symbol: symbol, Decimals: decimals}
			if err := engine().AddWhitelist(custody.SignAddWhitelist(priv, asset), entry); err != nil {
				return err
			}
			fmt.Printf("whitelisted %s (%s)\n", symbol, asset.Short())
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "authority key file")
	cmd.Flags().StringVar(&name, "name", "", "asset display name")
	cmd.Flags().StringVar(&symbol, "symbol", "", "asset ticker symbol")
	cmd.Flags().Uint8Var(&decimals, "decimals", 6, "asset decimal places")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func newRegistryCloseCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close the registry and clear the whitelist",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, priv, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			if err := engine().CloseRegistry(custody.SignCloseRegistry(priv)); err != nil {
				return err
			}
			fmt.Println("registry closed")
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "authority key file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
