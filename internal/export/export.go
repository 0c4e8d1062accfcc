// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

// Package export serializes the full custody state to a zstd-compressed YAML
// snapshot and restores it. Snapshots carry every table: the registry and
// whitelist, vaults with their sub-vault index, sub-vault records, both
// ledger account kinds, and the audit log.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/zstd"

	"github.com/toeirei/testudo/internal/db"
	"github.com/toeirei/testudo/internal/model"
)

// FormatVersion identifies the snapshot layout. Bump on breaking changes.
const FormatVersion = 1

// Snapshot is the serialized custody state. Addresses are lowercase hex.
type Snapshot struct {
	Version       int                 `yaml:"version"`
	Registry      *RegistrySnapshot   `yaml:"registry,omitempty"`
	Vaults        []VaultSnapshot     `yaml:"vaults,omitempty"`
	SubVaults     []SubVaultSnapshot  `yaml:"subvaults,omitempty"`
	Accounts      []AccountSnapshot   `yaml:"accounts,omitempty"`
	TokenAccounts []TokenSnapshot     `yaml:"token_accounts,omitempty"`
	AuditLog      []AuditSnapshot     `yaml:"audit_log,omitempty"`
}

type RegistrySnapshot struct {
	Address              string              `yaml:"address"`
	Authority            string              `yaml:"authority"`
	Treasury             string              `yaml:"treasury"`
	FeeBps               uint16              `yaml:"fee_bps"`
	MaxVaultsPerOwner    uint16              `yaml:"max_vaults_per_owner"`
	MaxSubVaultsPerVault uint16              `yaml:"max_subvaults_per_vault"`
	MaxWhitelistedAssets uint16              `yaml:"max_whitelisted_assets"`
	Initialized          bool                `yaml:"initialized"`
	LastUpdated          int64               `yaml:"last_updated"`
	Whitelist            []WhitelistSnapshot `yaml:"whitelist,omitempty"`
}

type WhitelistSnapshot struct {
	Asset    string `yaml:"asset"`
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type VaultSnapshot struct {
	Address       string             `yaml:"address"`
	Owner         string             `yaml:"owner"`
	UnlockKey     string             `yaml:"unlock_key"`
	Backup        string             `yaml:"backup,omitempty"`
	NativeBalance uint64             `yaml:"native_balance"`
	CreatedAt     int64              `yaml:"created_at"`
	LastAccessed  int64              `yaml:"last_accessed"`
	SubVaults     []SubVaultRefEntry `yaml:"subvault_index,omitempty"`
}

type SubVaultRefEntry struct {
	Asset      string `yaml:"asset"`
	SubVault   string `yaml:"subvault"`
	TokenCount uint64 `yaml:"token_count"`
}

type SubVaultSnapshot struct {
	Address        string `yaml:"address"`
	Vault          string `yaml:"vault"`
	Owner          string `yaml:"owner"`
	Asset          string `yaml:"asset"`
	CreatedAt      int64  `yaml:"created_at"`
	LastAccessed   int64  `yaml:"last_accessed"`
	LastDeposit    int64  `yaml:"last_deposit,omitempty"`
	LastWithdrawal int64  `yaml:"last_withdrawal,omitempty"`
	DepositTVL     uint64 `yaml:"deposit_tvl,omitempty"`
}

type AccountSnapshot struct {
	Address string `yaml:"address"`
	Balance uint64 `yaml:"balance"`
}

type TokenSnapshot struct {
	Holder  string `yaml:"holder"`
	Asset   string `yaml:"asset"`
	Balance uint64 `yaml:"balance"`
}

type AuditSnapshot struct {
	ID        string `yaml:"id"`
	Timestamp string `yaml:"timestamp"`
	Actor     string `yaml:"actor"`
	Action    string `yaml:"action"`
	Details   string `yaml:"details"`
}

// Collect reads the full custody state from the store into a Snapshot.
func Collect(s db.Store) (*Snapshot, error) {
	snap := &Snapshot{Version: FormatVersion}

	reg, err := s.GetRegistry()
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if reg != nil {
		rs := &RegistrySnapshot{
			Address:              reg.Address.String(),
			Authority:            reg.Authority.String(),
			Treasury:             reg.Treasury.String(),
			FeeBps:               reg.FeeBps,
			MaxVaultsPerOwner:    reg.MaxVaultsPerOwner,
			MaxSubVaultsPerVault: reg.MaxSubVaultsPerVault,
			MaxWhitelistedAssets: reg.MaxWhitelistedAssets,
			Initialized:          reg.Initialized,
			LastUpdated:          reg.LastUpdated,
		}
		for _, w := range reg.Whitelist {
			rs.Whitelist = append(rs.Whitelist, WhitelistSnapshot{
				Asset:    w.Asset.String(),
				Name:     w.Name,
				Symbol:   w.Symbol,
				Decimals: w.Decimals,
			})
		}
		snap.Registry = rs
	}

	vaults, err := s.ListVaults()
	if err != nil {
		return nil, err
	}
	for _, v := range vaults {
		vs := VaultSnapshot{
			Address:       v.Address.String(),
			Owner:         v.Owner.String(),
			UnlockKey:     v.UnlockKey.String(),
			NativeBalance: v.NativeBalance,
			CreatedAt:     v.CreatedAt,
			LastAccessed:  v.LastAccessed,
		}
		if v.HasBackup() {
			vs.Backup = v.Backup.String()
		}
		for _, ref := range v.SubVaults {
			vs.SubVaults = append(vs.SubVaults, SubVaultRefEntry{
				Asset:      ref.Asset.String(),
				SubVault:   ref.SubVault.String(),
				TokenCount: ref.TokenCount,
			})
		}
		snap.Vaults = append(snap.Vaults, vs)
	}

	subVaults, err := s.ListSubVaults()
	if err != nil {
		return nil, err
	}
	for _, sv := range subVaults {
		snap.SubVaults = append(snap.SubVaults, SubVaultSnapshot{
			Address:        sv.Address.String(),
			Vault:          sv.Vault.String(),
			Owner:          sv.Owner.String(),
			Asset:          sv.Asset.String(),
			CreatedAt:      sv.CreatedAt,
			LastAccessed:   sv.LastAccessed,
			LastDeposit:    sv.LastDeposit,
			LastWithdrawal: sv.LastWithdrawal,
			DepositTVL:     sv.DepositTVL,
		})
	}

	accounts, err := s.ListAccounts()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		snap.Accounts = append(snap.Accounts, AccountSnapshot{Address: a.Address.String(), Balance: a.Balance})
	}

	tokens, err := s.ListTokenAccounts()
	if err != nil {
		return nil, err
	}
	for _, ta := range tokens {
		snap.TokenAccounts = append(snap.TokenAccounts, TokenSnapshot{Holder: ta.Holder.String(), Asset: ta.Asset.String(), Balance: ta.Balance})
	}

	audit, err := s.GetAllAuditLogEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range audit {
		snap.AuditLog = append(snap.AuditLog, AuditSnapshot{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Action:    e.Action,
			Details:   e.Details,
		})
	}

	return snap, nil
}

// Write serializes a snapshot as zstd-compressed YAML to w.
func Write(snap *Snapshot, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer func() { _ = zw.Close() }()

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return zw.Close()
}

// Export writes the store's full state to w.
func Export(s db.Store, w io.Writer) error {
	snap, err := Collect(s)
	if err != nil {
		return err
	}
	return Write(snap, w)
}

// Read parses a zstd-compressed YAML snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// Import restores a snapshot into the store inside one transaction,
// replacing the registry and upserting everything else. Audit log entries
// are carried in snapshots for inspection but not written back; the audit
// log is append-only and records only actions taken against this store.
func Import(s db.Store, r io.Reader) error {
	snap, err := Read(r)
	if err != nil {
		return err
	}
	return s.RunInTx(func(tx db.Store) error {
		return restore(tx, snap)
	})
}

func restore(tx db.Store, snap *Snapshot) error {
	if snap.Registry != nil {
		if err := tx.DeleteRegistry(); err != nil {
			return err
		}
		reg, err := registryFromSnapshot(snap.Registry)
		if err != nil {
			return err
		}
		if err := tx.SaveRegistry(reg); err != nil {
			return err
		}
		for _, w := range snap.Registry.Whitelist {
			asset, err := model.ParseAddress(w.Asset)
			if err != nil {
				return err
			}
			entry := model.WhitelistEntry{Asset: asset, Name: w.Name, Symbol: w.Symbol, Decimals: w.Decimals}
			if err := tx.AddWhitelistEntry(entry); err != nil {
				return err
			}
		}
	}

	for _, vs := range snap.Vaults {
		v, err := vaultFromSnapshot(vs)
		if err != nil {
			return err
		}
		if err := tx.SaveVault(v); err != nil {
			return err
		}
	}
	for _, svs := range snap.SubVaults {
		sv, err := subVaultFromSnapshot(svs)
		if err != nil {
			return err
		}
		if err := tx.SaveSubVault(sv); err != nil {
			return err
		}
	}
	for _, as := range snap.Accounts {
		addr, err := model.ParseAddress(as.Address)
		if err != nil {
			return err
		}
		if err := tx.SaveAccount(&model.Account{Address: addr, Balance: as.Balance}); err != nil {
			return err
		}
	}
	for _, ts := range snap.TokenAccounts {
		holder, err := model.ParseAddress(ts.Holder)
		if err != nil {
			return err
		}
		asset, err := model.ParseAddress(ts.Asset)
		if err != nil {
			return err
		}
		if err := tx.SaveTokenAccount(&model.TokenAccount{Holder: holder, Asset: asset, Balance: ts.Balance}); err != nil {
			return err
		}
	}
	return nil
}

func registryFromSnapshot(rs *RegistrySnapshot) (*model.Registry, error) {
	addr, err := model.ParseAddress(rs.Address)
	if err != nil {
		return nil, err
	}
	authority, err := model.ParseAddress(rs.Authority)
	if err != nil {
		return nil, err
	}
	treasury, err := model.ParseAddress(rs.Treasury)
	if err != nil {
		return nil, err
	}
	return &model.Registry{
		Address:              addr,
		Authority:            authority,
		Treasury:             treasury,
		FeeBps:               rs.FeeBps,
		MaxVaultsPerOwner:    rs.MaxVaultsPerOwner,
		MaxSubVaultsPerVault: rs.MaxSubVaultsPerVault,
		MaxWhitelistedAssets: rs.MaxWhitelistedAssets,
		Initialized:          rs.Initialized,
		LastUpdated:          rs.LastUpdated,
	}, nil
}

func vaultFromSnapshot(vs VaultSnapshot) (*model.Vault, error) {
	addr, err := model.ParseAddress(vs.Address)
	if err != nil {
		return nil, err
	}
	owner, err := model.ParseAddress(vs.Owner)
	if err != nil {
		return nil, err
	}
	unlock, err := model.ParseAddress(vs.UnlockKey)
	if err != nil {
		return nil, err
	}
	v := &model.Vault{
		Address:       addr,
		Owner:         owner,
		UnlockKey:     unlock,
		NativeBalance: vs.NativeBalance,
		CreatedAt:     vs.CreatedAt,
		LastAccessed:  vs.LastAccessed,
	}
	if vs.Backup != "" {
		b, err := model.ParseAddress(vs.Backup)
		if err != nil {
			return nil, err
		}
		v.Backup = &b
	}
	for _, ref := range vs.SubVaults {
		asset, err := model.ParseAddress(ref.Asset)
		if err != nil {
			return nil, err
		}
		sub, err := model.ParseAddress(ref.SubVault)
		if err != nil {
			return nil, err
		}
		v.SubVaults = append(v.SubVaults, model.SubVaultRef{Asset: asset, SubVault: sub, TokenCount: ref.TokenCount})
	}
	return v, nil
}

func subVaultFromSnapshot(svs SubVaultSnapshot) (*model.SubVault, error) {
	addr, err := model.ParseAddress(svs.Address)
	if err != nil {
		return nil, err
	}
	vault, err := model.ParseAddress(svs.Vault)
	if err != nil {
		return nil, err
	}
	owner, err := model.ParseAddress(svs.Owner)
	if err != nil {
		return nil, err
	}
	asset, err := model.ParseAddress(svs.Asset)
	if err != nil {
		return nil, err
	}
	return &model.SubVault{
		Address:        addr,
		Vault:          vault,
		Owner:          owner,
		Asset:          asset,
		CreatedAt:      svs.CreatedAt,
		LastAccessed:   svs.LastAccessed,
		LastDeposit:    svs.LastDeposit,
		LastWithdrawal: svs.LastWithdrawal,
		DepositTVL:     svs.DepositTVL,
	}, nil
}
