// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/toeirei/testudo/internal/model"
)

// RegistryModel maps the singleton `registry` table for Bun queries.
type RegistryModel struct {
	bun.BaseModel        `bun:"table:registry"`
	ID                   int    `bun:"id,pk"`
	Address              string `bun:"address"`
	Authority            string `bun:"authority"`
	Treasury             string `bun:"treasury"`
	FeeBps               uint16 `bun:"fee_bps"`
	MaxVaultsPerOwner    uint16 `bun:"max_vaults_per_owner"`
	MaxSubVaultsPerVault uint16 `bun:"max_subvaults_per_vault"`
	MaxWhitelistedAssets uint16 `bun:"max_whitelisted_assets"`
	Initialized          bool   `bun:"initialized"`
	LastUpdated          int64  `bun:"last_updated"`
}

// WhitelistModel maps the `whitelist` table.
type WhitelistModel struct {
	bun.BaseModel `bun:"table:whitelist"`
	Asset         string `bun:"asset,pk"`
	Name          string `bun:"name"`
	Symbol        string `bun:"symbol"`
	Decimals      uint8  `bun:"decimals"`
	Position      int    `bun:"position"`
}

// VaultModel maps the `vaults` table.
type VaultModel struct {
	bun.BaseModel `bun:"table:vaults"`
	Address       string         `bun:"address,pk"`
	Owner         string         `bun:"owner"`
	UnlockKey     string         `bun:"unlock_key"`
	Backup        sql.NullString `bun:"backup"`
	NativeBalance uint64         `bun:"native_balance"`
	CreatedAt     int64          `bun:"created_at"`
	LastAccessed  int64          `bun:"last_accessed"`
}

// VaultIndexModel maps the `vault_index` table (one row per attached sub-vault).
type VaultIndexModel struct {
	bun.BaseModel `bun:"table:vault_index"`
	VaultAddress  string `bun:"vault_address,pk"`
	Asset         string `bun:"asset,pk"`
	SubVault      string `bun:"subvault_address"`
	TokenCount    uint64 `bun:"token_count"`
	Position      int    `bun:"position"`
}

// SubVaultModel maps the `subvaults` table.
type SubVaultModel struct {
	bun.BaseModel  `bun:"table:subvaults"`
	Address        string `bun:"address,pk"`
	VaultAddress   string `bun:"vault_address"`
	Owner          string `bun:"owner"`
	Asset          string `bun:"asset"`
	CreatedAt      int64  `bun:"created_at"`
	LastAccessed   int64  `bun:"last_accessed"`
	LastDeposit    int64  `bun:"last_deposit"`
	LastWithdrawal int64  `bun:"last_withdrawal"`
	DepositTVL     uint64 `bun:"deposit_tvl"`
}

// AccountModel maps the native-currency `accounts` table.
type AccountModel struct {
	bun.BaseModel `bun:"table:accounts"`
	Address       string `bun:"address,pk"`
	Balance       uint64 `bun:"balance"`
}

// TokenAccountModel maps the `token_accounts` table.
type TokenAccountModel struct {
	bun.BaseModel `bun:"table:token_accounts"`
	Holder        string `bun:"holder,pk"`
	Asset         string `bun:"asset,pk"`
	Balance       uint64 `bun:"balance"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            string `bun:"id,pk"`
	Timestamp     string `bun:"timestamp"`
	Actor         string `bun:"actor"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// bunStore implements Store on top of a bun.IDB, which is either the
// long-lived *bun.DB or a bun.Tx created by RunInTx.
type bunStore struct {
	db   bun.IDB
	inTx bool
}

func newBunStore(bdb *bun.DB) *bunStore {
	return &bunStore{db: bdb}
}

func (s *bunStore) RunInTx(fn func(tx Store) error) error {
	if s.inTx {
		// Already transactional; nested operations share the enclosing tx.
		return fn(s)
	}
	bdb, ok := s.db.(*bun.DB)
	if !ok {
		return fmt.Errorf("store is not backed by a bun.DB")
	}
	ctx := context.Background()
	return bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&bunStore{db: tx, inTx: true})
	})
}

// --- Registry ---

func (s *bunStore) GetRegistry() (*model.Registry, error) {
	ctx := context.Background()

	var rm RegistryModel
	err := s.db.NewSelect().Model(&rm).Where("id = ?", 1).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var wl []WhitelistModel
	if err := s.db.NewSelect().Model(&wl).Order("position ASC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	reg, err := registryModelToModel(rm, wl)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *bunStore) SaveRegistry(r *model.Registry) error {
	ctx := context.Background()
	rm := RegistryModel{
		ID:                   1,
		Address:              r.Address.String(),
		Authority:            r.Authority.String(),
		Treasury:             r.Treasury.String(),
		FeeBps:               r.FeeBps,
		MaxVaultsPerOwner:    r.MaxVaultsPerOwner,
		MaxSubVaultsPerVault: r.MaxSubVaultsPerVault,
		MaxWhitelistedAssets: r.MaxWhitelistedAssets,
		Initialized:          r.Initialized,
		LastUpdated:          r.LastUpdated,
	}
	// Portable upsert: MySQL has no ON CONFLICT clause, so check-then-write.
	// Callers always run this inside an operation transaction.
	exists, err := s.db.NewSelect().Model((*RegistryModel)(nil)).Where("id = ?", 1).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.db.NewUpdate().Model(&rm).WherePK().Exec(ctx)
	} else {
		_, err = s.db.NewInsert().Model(&rm).Exec(ctx)
	}
	return MapDBError(err)
}

func (s *bunStore) DeleteRegistry() error {
	ctx := context.Background()
	if _, err := s.db.NewDelete().Model((*WhitelistModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewDelete().Model((*RegistryModel)(nil)).Where("id = ?", 1).Exec(ctx)
	return err
}

func (s *bunStore) AddWhitelistEntry(e model.WhitelistEntry) error {
	ctx := context.Background()

	count, err := s.db.NewSelect().Model((*WhitelistModel)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	wm := WhitelistModel{
		Asset:    e.Asset.String(),
		Name:     e.Name,
		Symbol:   e.Symbol,
		Decimals: e.Decimals,
		Position: count,
	}
	_, err = s.db.NewInsert().Model(&wm).Exec(ctx)
	return MapDBError(err)
}

// --- Vaults ---

func (s *bunStore) GetVault(addr model.Address) (*model.Vault, error) {
	return s.getVaultWhere("address = ?", addr.String())
}

func (s *bunStore) GetVaultByOwner(owner model.Address) (*model.Vault, error) {
	return s.getVaultWhere("owner = ?", owner.String())
}

func (s *bunStore) getVaultWhere(cond string, arg string) (*model.Vault, error) {
	ctx := context.Background()

	var vm VaultModel
	err := s.db.NewSelect().Model(&vm).Where(cond, arg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var idx []VaultIndexModel
	err = s.db.NewSelect().Model(&idx).Where("vault_address = ?", vm.Address).Order("position ASC").Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return vaultModelToModel(vm, idx)
}

func (s *bunStore) SaveVault(v *model.Vault) error {
	ctx := context.Background()

	var backup sql.NullString
	if v.HasBackup() {
		backup = sql.NullString{String: v.Backup.String(), Valid: true}
	}
	vm := VaultModel{
		Address:       v.Address.String(),
		Owner:         v.Owner.String(),
		UnlockKey:     v.UnlockKey.String(),
		Backup:        backup,
		NativeBalance: v.NativeBalance,
		CreatedAt:     v.CreatedAt,
		LastAccessed:  v.LastAccessed,
	}
	exists, err := s.db.NewSelect().Model((*VaultModel)(nil)).Where("address = ?", vm.Address).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.db.NewUpdate().Model(&vm).WherePK().Exec(ctx)
	} else {
		_, err = s.db.NewInsert().Model(&vm).Exec(ctx)
	}
	if err != nil {
		return MapDBError(err)
	}

	// Rewrite the sub-vault index rows; within the operation's transaction
	// the delete+insert pair is atomic.
	if _, err := s.db.NewDelete().Model((*VaultIndexModel)(nil)).Where("vault_address = ?", vm.Address).Exec(ctx); err != nil {
		return err
	}
	for i, ref := range v.SubVaults {
		im := VaultIndexModel{
			VaultAddress: vm.Address,
			Asset:        ref.Asset.String(),
			SubVault:     ref.SubVault.String(),
			TokenCount:   ref.TokenCount,
			Position:     i,
		}
		if _, err := s.db.NewInsert().Model(&im).Exec(ctx); err != nil {
			return MapDBError(err)
		}
	}
	return nil
}

func (s *bunStore) DeleteVault(addr model.Address) error {
	ctx := context.Background()
	if _, err := s.db.NewDelete().Model((*VaultIndexModel)(nil)).Where("vault_address = ?", addr.String()).Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewDelete().Model((*VaultModel)(nil)).Where("address = ?", addr.String()).Exec(ctx)
	return err
}

func (s *bunStore) ListVaults() ([]model.Vault, error) {
	ctx := context.Background()
	var vms []VaultModel
	if err := s.db.NewSelect().Model(&vms).Order("created_at ASC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]model.Vault, 0, len(vms))
	for _, vm := range vms {
		var idx []VaultIndexModel
		err := s.db.NewSelect().Model(&idx).Where("vault_address = ?", vm.Address).Order("position ASC").Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		v, err := vaultModelToModel(vm, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// --- Sub-vaults ---

func (s *bunStore) GetSubVault(addr model.Address) (*model.SubVault, error) {
	ctx := context.Background()
	var sm SubVaultModel
	err := s.db.NewSelect().Model(&sm).Where("address = ?", addr.String()).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return subVaultModelToModel(sm)
}

func (s *bunStore) SaveSubVault(sv *model.SubVault) error {
	ctx := context.Background()
	sm := SubVaultModel{
		Address:        sv.Address.String(),
		VaultAddress:   sv.Vault.String(),
		Owner:          sv.Owner.String(),
		Asset:          sv.Asset.String(),
		CreatedAt:      sv.CreatedAt,
		LastAccessed:   sv.LastAccessed,
		LastDeposit:    sv.LastDeposit,
		LastWithdrawal: sv.LastWithdrawal,
		DepositTVL:     sv.DepositTVL,
	}
	exists, err := s.db.NewSelect().Model((*SubVaultModel)(nil)).Where("address = ?", sm.Address).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.db.NewUpdate().Model(&sm).WherePK().Exec(ctx)
	} else {
		_, err = s.db.NewInsert().Model(&sm).Exec(ctx)
	}
	return MapDBError(err)
}

func (s *bunStore) DeleteSubVault(addr model.Address) error {
	ctx := context.Background()
	_, err := s.db.NewDelete().Model((*SubVaultModel)(nil)).Where("address = ?", addr.String()).Exec(ctx)
	return err
}

func (s *bunStore) ListSubVaults() ([]model.SubVault, error) {
	ctx := context.Background()
	var sms []SubVaultModel
	if err := s.db.NewSelect().Model(&sms).Order("created_at ASC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]model.SubVault, 0, len(sms))
	for _, sm := range sms {
		sv, err := subVaultModelToModel(sm)
		if err != nil {
			return nil, err
		}
		out = append(out, *sv)
	}
	return out, nil
}

// --- Ledger accounts ---

func (s *bunStore) GetAccount(addr model.Address) (*model.Account, error) {
	ctx := context.Background()
	var am AccountModel
	err := s.db.NewSelect().Model(&am).Where("address = ?", addr.String()).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a, err := model.ParseAddress(am.Address)
	if err != nil {
		return nil, err
	}
	return &model.Account{Address: a, Balance: am.Balance}, nil
}

func (s *bunStore) SaveAccount(acc *model.Account) error {
	ctx := context.Background()
	am := AccountModel{Address: acc.Address.String(), Balance: acc.Balance}
	exists, err := s.db.NewSelect().Model((*AccountModel)(nil)).Where("address = ?", am.Address).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.db.NewUpdate().Model(&am).WherePK().Exec(ctx)
	} else {
		_, err = s.db.NewInsert().Model(&am).Exec(ctx)
	}
	return MapDBError(err)
}

func (s *bunStore) ListAccounts() ([]model.Account, error) {
	ctx := context.Background()
	var ams []AccountModel
	if err := s.db.NewSelect().Model(&ams).Order("address ASC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]model.Account, 0, len(ams))
	for _, am := range ams {
		a, err := model.ParseAddress(am.Address)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Account{Address: a, Balance: am.Balance})
	}
	return out, nil
}

func (s *bunStore) GetTokenAccount(holder, asset model.Address) (*model.TokenAccount, error) {
	ctx := context.Background()
	var tm TokenAccountModel
	err := s.db.NewSelect().Model(&tm).
		Where("holder = ?", holder.String()).
		Where("asset = ?", asset.String()).
		Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model.TokenAccount{Holder: holder, Asset: asset, Balance: tm.Balance}, nil
}

func (s *bunStore) SaveTokenAccount(acc *model.TokenAccount) error {
	ctx := context.Background()
	tm := TokenAccountModel{Holder: acc.Holder.String(), Asset: acc.Asset.String(), Balance: acc.Balance}
	exists, err := s.db.NewSelect().Model((*TokenAccountModel)(nil)).
		Where("holder = ?", tm.Holder).
		Where("asset = ?", tm.Asset).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.db.NewUpdate().Model(&tm).WherePK().Exec(ctx)
	} else {
		_, err = s.db.NewInsert().Model(&tm).Exec(ctx)
	}
	return MapDBError(err)
}

func (s *bunStore) DeleteTokenAccount(holder, asset model.Address) error {
	ctx := context.Background()
	_, err := s.db.NewDelete().Model((*TokenAccountModel)(nil)).
		Where("holder = ?", holder.String()).
		Where("asset = ?", asset.String()).
		Exec(ctx)
	return err
}

func (s *bunStore) ListTokenAccounts() ([]model.TokenAccount, error) {
	ctx := context.Background()
	var tms []TokenAccountModel
	if err := s.db.NewSelect().Model(&tms).Order("holder ASC").Order("asset ASC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]model.TokenAccount, 0, len(tms))
	for _, tm := range tms {
		h, err := model.ParseAddress(tm.Holder)
		if err != nil {
			return nil, err
		}
		a, err := model.ParseAddress(tm.Asset)
		if err != nil {
			return nil, err
		}
		out = append(out, model.TokenAccount{Holder: h, Asset: a, Balance: tm.Balance})
	}
	return out, nil
}

// --- Audit log ---

func (s *bunStore) LogAction(actor, action, details string) error {
	ctx := context.Background()
	am := AuditLogModel{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     actor,
		Action:    action,
		Details:   details,
	}
	_, err := s.db.NewInsert().Model(&am).Exec(ctx)
	return err
}

func (s *bunStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var ams []AuditLogModel
	if err := s.db.NewSelect().Model(&ams).Order("timestamp DESC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(ams))
	for _, am := range ams {
		out = append(out, model.AuditLogEntry{
			ID:        am.ID,
			Timestamp: am.Timestamp,
			Actor:     am.Actor,
			Action:    am.Action,
			Details:   am.Details,
		})
	}
	return out, nil
}

// --- conversions ---

func registryModelToModel(rm RegistryModel, wl []WhitelistModel) (*model.Registry, error) {
	addr, err := model.ParseAddress(rm.Address)
	if err != nil {
		return nil, err
	}
	authority, err := model.ParseAddress(rm.Authority)
	if err != nil {
		return nil, err
	}
	treasury, err := model.ParseAddress(rm.Treasury)
	if err != nil {
		return nil, err
	}
	reg := &model.Registry{
		Address:              addr,
		Authority:            authority,
		Treasury:             treasury,
		FeeBps:               rm.FeeBps,
		MaxVaultsPerOwner:    rm.MaxVaultsPerOwner,
		MaxSubVaultsPerVault: rm.MaxSubVaultsPerVault,
		MaxWhitelistedAssets: rm.MaxWhitelistedAssets,
		Initialized:          rm.Initialized,
		LastUpdated:          rm.LastUpdated,
	}
	for _, w := range wl {
		asset, err := model.ParseAddress(w.Asset)
		if err != nil {
			return nil, err
		}
		reg.Whitelist = append(reg.Whitelist, model.WhitelistEntry{
			Asset:    asset,
			Name:     w.Name,
			Symbol:   w.Symbol,
			Decimals: w.Decimals,
		})
	}
	return reg, nil
}

func vaultModelToModel(vm VaultModel, idx []VaultIndexModel) (*model.Vault, error) {
	addr, err := model.ParseAddress(vm.Address)
	if err != nil {
		return nil, err
	}
	owner, err := model.ParseAddress(vm.Owner)
	if err != nil {
		return nil, err
	}
	unlock, err := model.ParseAddress(vm.UnlockKey)
	if err != nil {
		return nil, err
	}
	v := &model.Vault{
		Address:       addr,
		Owner:         owner,
		UnlockKey:     unlock,
		NativeBalance: vm.NativeBalance,
		CreatedAt:     vm.CreatedAt,
		LastAccessed:  vm.LastAccessed,
	}
	if vm.Backup.Valid {
		b, err := model.ParseAddress(vm.Backup.String)
		if err != nil {
			return nil, err
		}
		v.Backup = &b
	}
	for _, im := range idx {
		asset, err := model.ParseAddress(im.Asset)
		if err != nil {
			return nil, err
		}
		sub, err := model.ParseAddress(im.SubVault)
		if err != nil {
			return nil, err
		}
		v.SubVaults = append(v.SubVaults, model.SubVaultRef{
			Asset:      asset,
			SubVault:   sub,
			TokenCount: im.TokenCount,
		})
	}
	return v, nil
}

func subVaultModelToModel(sm SubVaultModel) (*model.SubVault, error) {
	addr, err := model.ParseAddress(sm.Address)
	if err != nil {
		return nil, err
	}
	vault, err := model.ParseAddress(sm.VaultAddress)
	if err != nil {
		return nil, err
	}
	owner, err := model.ParseAddress(sm.Owner)
	if err != nil {
		return nil, err
	}
	asset, err := model.ParseAddress(sm.Asset)
	if err != nil {
		return nil, err
	}
	return &model.SubVault{
		Address:        addr,
		Vault:          vault,
		Owner:          owner,
		Asset:          asset,
		CreatedAt:      sm.CreatedAt,
		LastAccessed:   sm.LastAccessed,
		LastDeposit:    sm.LastDeposit,
		LastWithdrawal: sm.LastWithdrawal,
		DepositTVL:     sm.DepositTVL,
	}, nil
}
