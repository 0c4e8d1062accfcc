// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/toeirei/testudo/internal/authz"
	"github.com/toeirei/testudo/internal/model"
)

// Key files hold the hex-encoded 32-byte ed25519 seed, nothing else. The
// address is recomputed from the seed on load, so a file can never claim an
// identity it cannot sign for.

func writeKeyFile(path string, priv ed25519.PrivateKey) error {
	seed := hex.EncodeToString(priv.Seed())
	return os.WriteFile(path, []byte(seed+"\n"), 0600)
}

func readKeyFile(path string) (model.Address, ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Address{}, nil, fmt.Errorf("read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return model.Address{}, nil, fmt.Errorf("invalid key file %s: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return model.Address{}, nil, fmt.Errorf("invalid key file %s: got %d seed bytes, want %d", path, len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return authz.AddressOf(priv.Public().(ed25519.PublicKey)), priv, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if !confirm {
		return string(first), nil
	}
	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

func newKeygenCmd() *cobra.Command {
	var fromPassphrase bool
	var saltAddr string

	cmd := &cobra.Command{
		Use:   "keygen <key-file>",
		Short: "Generate a signing identity",
		Long: `Generates an ed25519 identity and writes its seed to the given file.
With --passphrase the key is derived deterministically from a passphrase
and a salt address (conventionally the vault owner), which is the usual
way to produce an unlock key that never needs to be stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite existing key file %s", path)
			}

			var addr model.Address
			var priv ed25519.PrivateKey
			if fromPassphrase {
				if saltAddr == "" {
					return fmt.Errorf("--passphrase requires --salt (the owner address)")
				}
				salt, err := parseAddr(saltAddr)
				if err != nil {
					return err
				}
				pass, err := promptPassphrase(true)
				if err != nil {
					return err
				}
				addr, priv, err = authz.UnlockKeyFromPassphrase(pass, salt.Bytes())
				if err != nil {
					return err
				}
			} else {
				var err error
				addr, priv, err = authz.GenerateIdentity()
				if err != nil {
					return err
				}
			}

			if err := writeKeyFile(path, priv); err != nil {
				return err
			}
			fmt.Printf("wrote %s\naddress: %s\n", path, addr)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromPassphrase, "passphrase", false, "derive the key from a passphrase prompt")
	cmd.Flags().StringVar(&saltAddr, "salt", "", "salt address for passphrase derivation")
	// keygen needs no database.
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
	return cmd
}
