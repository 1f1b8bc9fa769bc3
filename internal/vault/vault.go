/*

This file implements the share-based yield vault accounting core. One vault
instance manages exactly one underlying asset: deposits mint shares at the
current price-per-share, yield accrues lazily from a basis-point APY, and
withdrawals burn shares net of the withdrawal fee.

All state-mutating operations serialize on a single mutex, so no partial
application of an operation is ever observable. There is no background
accrual job: pending yield is a pure function of (principal, rate history,
elapsed time) evaluated on demand.

*/

package vault

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/logger"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/utils"
)

// accountState tracks one depositor's shares and accrual checkpoint.
// bankedYield holds yield that was already earned but not yet claimed or
// compounded when the account's principal changed, so share-balance changes
// never retroactively alter earned yield.
type accountState struct {
	shares      sdkmath.Int
	bankedYield sdkmath.Int
	lastAccrual time.Time
}

// rateSegment is one entry of the APY history. A config update appends a new
// segment instead of rewriting the rate, so pending yield is integrated
// piecewise at the rate(s) actually in effect during the elapsed interval.
type rateSegment struct {
	since   time.Time
	rateBps int64
}

// Vault is the single-writer accounting ledger for one underlying asset.
type Vault struct {
	mu sync.Mutex

	cfg         types.VaultConfig
	accounts    map[string]*accountState
	totalShares sdkmath.Int
	totalAssets sdkmath.Int

	// totalDeposited is the cumulative sum of all deposits ever made,
	// reported in stats; it is never reduced by withdrawals.
	totalDeposited sdkmath.Int

	rateHistory []rateSegment

	assets AssetLedger
	gate   AuthorizationGate
	sink   EventSink
	clock  clockwork.Clock
	logger zerolog.Logger
}

// Config holds the dependencies for creating a new Vault instance.
type Config struct {
	VaultConfig types.VaultConfig
	AssetLedger AssetLedger
	Gate        AuthorizationGate
	Sink        EventSink // optional; nil disables event recording
	Clock       clockwork.Clock
}

// New creates a vault with dependency injection and validates the configuration.
func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	v := &Vault{
		cfg:            cfg.VaultConfig,
		accounts:       make(map[string]*accountState),
		totalShares:    sdkmath.ZeroInt(),
		totalAssets:    sdkmath.ZeroInt(),
		totalDeposited: sdkmath.ZeroInt(),
		assets:         cfg.AssetLedger,
		gate:           cfg.Gate,
		sink:           cfg.Sink,
		clock:          cfg.Clock,
		logger:         logger.GetForComponent("vault_core"),
	}

	v.rateHistory = []rateSegment{{since: v.clock.Now(), rateBps: v.cfg.BaseAPYBps}}

	v.logger.Info().
		Str("asset", v.cfg.AssetDenom).
		Str("owner", v.cfg.Owner).
		Int64("baseApyBps", v.cfg.BaseAPYBps).
		Msg("Vault initialized")

	return v, nil
}

// validateConfig validates the vault construction dependencies.
func validateConfig(cfg Config) error {
	if cfg.AssetLedger == nil {
		return fmt.Errorf("%w: asset ledger cannot be nil", ErrInvalidConfig)
	}
	if cfg.Gate == nil {
		return fmt.Errorf("%w: authorization gate cannot be nil", ErrInvalidConfig)
	}
	if cfg.VaultConfig.AssetDenom == "" {
		return fmt.Errorf("%w: asset denom cannot be empty", ErrInvalidConfig)
	}
	if cfg.VaultConfig.Owner == "" {
		return fmt.Errorf("%w: owner cannot be empty", ErrInvalidConfig)
	}
	if err := validateRates(cfg.VaultConfig.BaseAPYBps, cfg.VaultConfig.PerformanceFeeBps,
		cfg.VaultConfig.ManagementFeeBps, cfg.VaultConfig.WithdrawalFeeBps); err != nil {
		return err
	}
	if cfg.VaultConfig.MinimumDeposit.IsNil() || !cfg.VaultConfig.MinimumDeposit.IsPositive() {
		return fmt.Errorf("%w: minimum deposit must be positive", ErrInvalidConfig)
	}
	return nil
}

func validateRates(apyBps, performanceBps, managementBps, withdrawalBps int64) error {
	if apyBps < 0 {
		return fmt.Errorf("%w: base APY cannot be negative", ErrInvalidConfig)
	}
	for _, fee := range []int64{performanceBps, managementBps, withdrawalBps} {
		if fee < 0 || fee > types.BpsDenominator {
			return fmt.Errorf("%w: fee rate %d bps out of range [0, %d]", ErrInvalidConfig, fee, types.BpsDenominator)
		}
	}
	return nil
}

// Deposit pulls amount of the underlying asset from caller and mints
// proportional shares. The first deposit into an empty vault mints 1:1.
func (v *Vault) Deposit(caller string, amount sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cfg.EmergencyShutdown {
		return sdkmath.ZeroInt(), ErrVaultShutdown
	}
	if v.cfg.Paused {
		return sdkmath.ZeroInt(), ErrVaultPaused
	}
	if amount.IsNil() || amount.LT(v.cfg.MinimumDeposit) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: got %s, minimum %s",
			ErrBelowMinimumDeposit, amount, v.cfg.MinimumDeposit)
	}

	if err := v.assets.TransferIn(v.cfg.AssetDenom, caller, amount); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrAssetLedger, err)
	}

	// Proportional to the current price-per-share so existing holders are
	// not diluted; bootstrap case mints 1:1.
	var sharesToMint sdkmath.Int
	if v.totalShares.IsZero() {
		sharesToMint = amount
	} else {
		sharesToMint = amount.Mul(v.totalShares).Quo(v.totalAssets)
	}

	now := v.clock.Now()
	acct := v.checkpointLocked(caller, now)
	acct.shares = acct.shares.Add(sharesToMint)
	v.totalShares = v.totalShares.Add(sharesToMint)
	v.totalAssets = v.totalAssets.Add(amount)
	v.totalDeposited = v.totalDeposited.Add(amount)

	v.logger.Info().
		Str("account", caller).
		Str("amount", amount.String()).
		Str("sharesMinted", sharesToMint.String()).
		Msg("Deposit accepted")

	v.emitLocked(types.VaultEvent{
		Type:       types.EventDeposit,
		Account:    caller,
		AssetDenom: v.cfg.AssetDenom,
		Amount:     amount,
		Shares:     sharesToMint,
		Timestamp:  now,
	})

	return sharesToMint, nil
}

// Withdraw burns sharesToRedeem from caller and pays out the converted asset
// value minus the withdrawal fee. The fee stays in the vault and accrues to
// the remaining shareholders. Withdrawals are permitted while paused so
// users can always exit; only insufficient shares block them.
func (v *Vault) Withdraw(caller string, sharesToRedeem sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	acct := v.accounts[caller]
	if sharesToRedeem.IsNil() || !sharesToRedeem.IsPositive() ||
		acct == nil || acct.shares.LT(sharesToRedeem) {
		return sdkmath.ZeroInt(), ErrInsufficientShares
	}

	grossAssets := v.convertToAssetsLocked(sharesToRedeem)
	fee, err := utils.ApplyBps(grossAssets, v.cfg.WithdrawalFeeBps)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: withdrawal fee: %w", ErrInvalidConfig, err)
	}
	netAssets := grossAssets.Sub(fee)

	if err := v.assets.TransferOut(v.cfg.AssetDenom, caller, netAssets); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrAssetLedger, err)
	}

	now := v.clock.Now()
	v.checkpointLocked(caller, now)
	acct.shares = acct.shares.Sub(sharesToRedeem)
	v.totalShares = v.totalShares.Sub(sharesToRedeem)
	// Only the net payout leaves the vault: the fee portion keeps backing
	// the remaining shares, raising their price-per-share.
	v.totalAssets = v.totalAssets.Sub(netAssets)

	if acct.shares.IsZero() && acct.bankedYield.IsZero() {
		delete(v.accounts, caller)
	}

	v.logger.Info().
		Str("account", caller).
		Str("sharesBurned", sharesToRedeem.String()).
		Str("netAssets", netAssets.String()).
		Str("fee", fee.String()).
		Msg("Withdrawal executed")

	v.emitLocked(types.VaultEvent{
		Type:       types.EventWithdraw,
		Account:    caller,
		AssetDenom: v.cfg.AssetDenom,
		Amount:     netAssets,
		Shares:     sharesToRedeem,
		Note:       "fee:" + fee.String(),
		Timestamp:  now,
	})

	return netAssets, nil
}

// ClaimYield pays out the caller's pending yield from the vault reserve and
// resets the accrual checkpoint. Fails when nothing has accrued.
func (v *Vault) ClaimYield(caller string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	acct := v.accounts[caller]
	pending := v.pendingYieldLocked(acct)
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), ErrNoYieldToClaim
	}

	// The payout comes from the vault's reserve on the asset ledger, which
	// an external strategy replenishes; claimed yield is not drawn from
	// other depositors' principal, so totalAssets is untouched.
	if err := v.assets.TransferOut(v.cfg.AssetDenom, caller, pending); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrAssetLedger, err)
	}

	now := v.clock.Now()
	acct.bankedYield = sdkmath.ZeroInt()
	acct.lastAccrual = now

	v.logger.Info().
		Str("account", caller).
		Str("amountClaimed", pending.String()).
		Msg("Yield claimed")

	v.emitLocked(types.VaultEvent{
		Type:       types.EventYieldClaimed,
		Account:    caller,
		AssetDenom: v.cfg.AssetDenom,
		Amount:     pending,
		Shares:     sdkmath.ZeroInt(),
		Timestamp:  now,
	})

	return pending, nil
}

// CompoundYield converts the caller's pending yield into additional shares
// instead of paying it out. The yield value is recognized into totalAssets
// and shares are minted at the pre-recognition price-per-share, so the
// vault's external asset balance is unchanged by the call.
func (v *Vault) CompoundYield(caller string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	acct := v.accounts[caller]
	pending := v.pendingYieldLocked(acct)
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), ErrNoYieldToClaim
	}

	sharesToMint := v.convertToSharesLocked(pending)

	now := v.clock.Now()
	acct.shares = acct.shares.Add(sharesToMint)
	acct.bankedYield = sdkmath.ZeroInt()
	acct.lastAccrual = now
	v.totalShares = v.totalShares.Add(sharesToMint)
	v.totalAssets = v.totalAssets.Add(pending)

	v.logger.Info().
		Str("account", caller).
		Str("yieldCompounded", pending.String()).
		Str("sharesMinted", sharesToMint.String()).
		Msg("Yield compounded")

	v.emitLocked(types.VaultEvent{
		Type:       types.EventYieldCompounded,
		Account:    caller,
		AssetDenom: v.cfg.AssetDenom,
		Amount:     pending,
		Shares:     sharesToMint,
		Timestamp:  now,
	})

	return sharesToMint, nil
}

// GetPendingYield returns the yield claimable by account right now.
// Returns zero for unknown accounts and immediately after a claim.
func (v *Vault) GetPendingYield(account string) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pendingYieldLocked(v.accounts[account])
}

// ConvertToShares converts an asset amount to shares at the current price-per-share.
func (v *Vault) ConvertToShares(assets sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToSharesLocked(assets)
}

// ConvertToAssets converts a share amount to assets at the current price-per-share.
func (v *Vault) ConvertToAssets(shares sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToAssetsLocked(shares)
}

// PricePerShare returns totalAssets / totalShares, defined as 1.0 at genesis.
func (v *Vault) PricePerShare() sdkmath.LegacyDec {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pricePerShareLocked()
}

// GetUserAssets returns the asset value of an account's shares at the current price.
func (v *Vault) GetUserAssets(account string) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	acct := v.accounts[account]
	if acct == nil {
		return sdkmath.ZeroInt()
	}
	return v.convertToAssetsLocked(acct.shares)
}

// GetAccountPosition returns the full externally visible state of one account.
func (v *Vault) GetAccountPosition(account string) types.AccountPosition {
	v.mu.Lock()
	defer v.mu.Unlock()

	position := types.AccountPosition{
		Account:      account,
		Shares:       sdkmath.ZeroInt(),
		AssetValue:   sdkmath.ZeroInt(),
		PendingYield: sdkmath.ZeroInt(),
	}
	acct := v.accounts[account]
	if acct == nil {
		return position
	}
	position.Shares = acct.shares
	position.AssetValue = v.convertToAssetsLocked(acct.shares)
	position.PendingYield = v.pendingYieldLocked(acct)
	position.LastAccrual = acct.lastAccrual
	return position
}

// GetVaultStats returns a consistent snapshot of the aggregate vault state.
func (v *Vault) GetVaultStats() types.VaultStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	return types.VaultStats{
		TotalDeposits: v.totalDeposited,
		TotalAssets:   v.totalAssets,
		TotalShares:   v.totalShares,
		SharePrice:    v.pricePerShareLocked(),
		CurrentAPYBps: v.cfg.BaseAPYBps,
		AccountCount:  len(v.accounts),
		Paused:        v.cfg.Paused,
		Shutdown:      v.cfg.EmergencyShutdown,
	}
}

// GetConfig returns a copy of the current vault configuration.
func (v *Vault) GetConfig() types.VaultConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg
}

// --- Admin operations ---

// UpdateVaultConfig atomically replaces the four rate parameters. An APY
// change appends a new rate segment effective from now: yield already
// accrued at the previous rate is never recomputed.
func (v *Vault) UpdateVaultConfig(caller string, apyBps, performanceBps, managementBps, withdrawalBps int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.gate.IsOwner(caller) {
		return ErrUnauthorized
	}
	if err := validateRates(apyBps, performanceBps, managementBps, withdrawalBps); err != nil {
		return err
	}

	now := v.clock.Now()
	if apyBps != v.cfg.BaseAPYBps {
		v.rateHistory = append(v.rateHistory, rateSegment{since: now, rateBps: apyBps})
	}
	v.cfg.BaseAPYBps = apyBps
	v.cfg.PerformanceFeeBps = performanceBps
	v.cfg.ManagementFeeBps = managementBps
	v.cfg.WithdrawalFeeBps = withdrawalBps

	v.logger.Info().
		Int64("baseApyBps", apyBps).
		Int64("withdrawalFeeBps", withdrawalBps).
		Msg("Vault configuration updated")

	v.emitLocked(types.VaultEvent{
		Type:      types.EventConfigUpdated,
		Account:   caller,
		Amount:    sdkmath.ZeroInt(),
		Shares:    sdkmath.ZeroInt(),
		Note:      fmt.Sprintf("apy:%d perf:%d mgmt:%d wd:%d", apyBps, performanceBps, managementBps, withdrawalBps),
		Timestamp: now,
	})

	return nil
}

// SetTreasury replaces the fee-recipient reference.
func (v *Vault) SetTreasury(caller, treasury string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.gate.IsOwner(caller) {
		return ErrUnauthorized
	}
	if treasury == "" {
		return fmt.Errorf("%w: treasury cannot be empty", ErrInvalidConfig)
	}

	v.cfg.Treasury = treasury
	v.logger.Info().Str("treasury", treasury).Msg("Treasury updated")

	v.emitLocked(types.VaultEvent{
		Type:      types.EventTreasuryUpdated,
		Account:   caller,
		Amount:    sdkmath.ZeroInt(),
		Shares:    sdkmath.ZeroInt(),
		Note:      treasury,
		Timestamp: v.clock.Now(),
	})

	return nil
}

// Pause blocks deposits until Unpause. Withdrawals and claims stay available.
func (v *Vault) Pause(caller string) error {
	return v.setPaused(caller, true)
}

// Unpause re-enables deposits.
func (v *Vault) Unpause(caller string) error {
	return v.setPaused(caller, false)
}

func (v *Vault) setPaused(caller string, paused bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.gate.IsOwner(caller) {
		return ErrUnauthorized
	}

	v.cfg.Paused = paused
	eventType := types.EventPaused
	if !paused {
		eventType = types.EventUnpaused
	}
	v.logger.Warn().Bool("paused", paused).Msg("Vault pause state changed")

	v.emitLocked(types.VaultEvent{
		Type:      eventType,
		Account:   caller,
		Amount:    sdkmath.ZeroInt(),
		Shares:    sdkmath.ZeroInt(),
		Timestamp: v.clock.Now(),
	})

	return nil
}

// EmergencyShutdown sets the terminal one-way flag. Deposits are permanently
// blocked afterwards; there is no reverse operation.
func (v *Vault) EmergencyShutdown(caller string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.gate.IsOwner(caller) {
		return ErrUnauthorized
	}

	v.cfg.EmergencyShutdown = true
	v.logger.Warn().Msg("Vault emergency shutdown activated")

	v.emitLocked(types.VaultEvent{
		Type:      types.EventShutdown,
		Account:   caller,
		Amount:    sdkmath.ZeroInt(),
		Shares:    sdkmath.ZeroInt(),
		Timestamp: v.clock.Now(),
	})

	return nil
}

// EmergencyWithdraw sweeps an arbitrary asset balance held by the vault to
// the owner, independent of user share accounting. Escape hatch for stuck
// or mistakenly sent tokens.
func (v *Vault) EmergencyWithdraw(caller, denom string, amount sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.gate.IsOwner(caller) {
		return ErrUnauthorized
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: sweep amount must be positive", ErrInvalidAmount)
	}

	if err := v.assets.TransferOut(denom, v.cfg.Owner, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrAssetLedger, err)
	}

	v.logger.Warn().
		Str("denom", denom).
		Str("amount", amount.String()).
		Msg("Emergency withdrawal executed")

	v.emitLocked(types.VaultEvent{
		Type:       types.EventEmergencyWithdraw,
		Account:    caller,
		AssetDenom: denom,
		Amount:     amount,
		Shares:     sdkmath.ZeroInt(),
		Timestamp:  v.clock.Now(),
	})

	return nil
}

// --- Internal accounting (callers must hold v.mu) ---

func (v *Vault) pricePerShareLocked() sdkmath.LegacyDec {
	if v.totalShares.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	return sdkmath.LegacyNewDecFromInt(v.totalAssets).QuoInt(v.totalShares)
}

func (v *Vault) convertToSharesLocked(assets sdkmath.Int) sdkmath.Int {
	if assets.IsNil() || assets.IsNegative() {
		return sdkmath.ZeroInt()
	}
	if v.totalShares.IsZero() {
		return assets
	}
	return assets.Mul(v.totalShares).Quo(v.totalAssets)
}

func (v *Vault) convertToAssetsLocked(shares sdkmath.Int) sdkmath.Int {
	if shares.IsNil() || shares.IsNegative() {
		return sdkmath.ZeroInt()
	}
	if v.totalShares.IsZero() {
		return shares
	}
	return shares.Mul(v.totalAssets).Quo(v.totalShares)
}

// pendingYieldLocked returns banked yield plus the yield accrued on the
// account's current principal since its last checkpoint.
func (v *Vault) pendingYieldLocked(acct *accountState) sdkmath.Int {
	if acct == nil {
		return sdkmath.ZeroInt()
	}
	pending := acct.bankedYield
	if acct.shares.IsPositive() {
		principalAssets := sdkmath.LegacyNewDecFromInt(v.convertToAssetsLocked(acct.shares))
		pending = pending.Add(v.accruedYieldLocked(principalAssets, acct.lastAccrual, v.clock.Now()))
	}
	return pending
}

// accruedYieldLocked integrates principal * rate over [from, to) across the
// APY history. O(number of rate changes), which only admin updates grow.
func (v *Vault) accruedYieldLocked(principalAssets sdkmath.LegacyDec, from, to time.Time) sdkmath.Int {
	if !to.After(from) || !principalAssets.IsPositive() {
		return sdkmath.ZeroInt()
	}

	total := sdkmath.LegacyZeroDec()
	for i, seg := range v.rateHistory {
		start := seg.since
		if start.Before(from) {
			start = from
		}
		end := to
		if i+1 < len(v.rateHistory) && v.rateHistory[i+1].since.Before(end) {
			end = v.rateHistory[i+1].since
		}
		if !end.After(start) || seg.rateBps == 0 {
			continue
		}
		seconds := int64(end.Sub(start) / time.Second)
		if seconds <= 0 {
			continue
		}
		total = total.Add(principalAssets.
			MulInt64(seg.rateBps).
			MulInt64(seconds).
			QuoInt64(types.BpsDenominator).
			QuoInt64(types.SecondsPerYear))
	}
	return total.TruncateInt()
}

// checkpointLocked banks the account's accrued yield and resets its accrual
// baseline, creating the account entry on first use. Called before any
// change to the account's principal so already-earned yield is preserved.
func (v *Vault) checkpointLocked(account string, now time.Time) *accountState {
	acct := v.accounts[account]
	if acct == nil {
		acct = &accountState{
			shares:      sdkmath.ZeroInt(),
			bankedYield: sdkmath.ZeroInt(),
			lastAccrual: now,
		}
		v.accounts[account] = acct
		return acct
	}
	acct.bankedYield = v.pendingYieldLocked(acct)
	acct.lastAccrual = now
	return acct
}

// emitLocked sends an event to the sink, if configured. Sink failures are
// logged and swallowed: audit persistence must never fail accounting.
func (v *Vault) emitLocked(event types.VaultEvent) {
	if v.sink == nil {
		return
	}
	event.EventUUID = uuid.NewString()
	if err := v.sink.Record(event); err != nil {
		v.logger.Error().Err(err).
			Str("eventType", string(event.Type)).
			Msg("Failed to record vault event")
	}
}
