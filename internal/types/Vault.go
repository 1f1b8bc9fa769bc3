/*

This file contains the core domain types for the yield vault: the vault
configuration, per-account position views, aggregate statistics, and the
event records persisted for every state-mutating operation.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// BpsDenominator converts basis points to a fraction (100 bps = 1%).
const BpsDenominator = 10_000

// SecondsPerYear is the accrual year used for APY math (365 days).
const SecondsPerYear = 365 * 24 * 60 * 60

// VaultConfig holds the admin-controlled configuration of a vault instance.
// AssetDenom and Owner are immutable after construction; the rate and fee
// parameters are replaced atomically by UpdateVaultConfig.
type VaultConfig struct {
	AssetDenom        string      `json:"asset_denom"`         // denom of the single underlying asset
	Owner             string      `json:"owner"`               // account allowed to perform admin operations
	Treasury          string      `json:"treasury"`            // fee recipient reference
	BaseAPYBps        int64       `json:"base_apy_bps"` // e.g. 500 = 5.00% annual yield
	PerformanceFeeBps int64       `json:"performance_fee_bps"`
	ManagementFeeBps  int64       `json:"management_fee_bps"`
	WithdrawalFeeBps  int64       `json:"withdrawal_fee_bps"` // subtracted from withdrawal payouts
	MinimumDeposit    sdkmath.Int `json:"minimum_deposit"`     // floor for a single deposit, in base units
	Paused            bool        `json:"paused"`              // blocks deposits while true, reversible
	EmergencyShutdown bool        `json:"emergency_shutdown"`  // one-way, permanently blocks deposits
}

// AccountPosition is the externally visible view of one depositor's state.
type AccountPosition struct {
	Account      string      `json:"account"`
	Shares       sdkmath.Int `json:"shares"`
	AssetValue   sdkmath.Int `json:"asset_value"`   // shares converted at the current share price
	PendingYield sdkmath.Int `json:"pending_yield"` // claimable yield at the time of the query
	LastAccrual  time.Time   `json:"last_accrual"`
}

// VaultStats is the aggregate view returned by GetVaultStats.
type VaultStats struct {
	TotalDeposits sdkmath.Int       `json:"total_deposits"` // cumulative assets ever deposited
	TotalAssets   sdkmath.Int       `json:"total_assets"`   // assets currently backing outstanding shares
	TotalShares   sdkmath.Int       `json:"total_shares"`
	SharePrice    sdkmath.LegacyDec `json:"share_price"` // total_assets / total_shares, 1.0 at genesis
	CurrentAPYBps int64             `json:"current_apy_bps"`
	AccountCount  int               `json:"account_count"`
	Paused        bool              `json:"paused"`
	Shutdown      bool              `json:"shutdown"`
}

// EventType identifies the kind of a vault event record.
type EventType string

const (
	EventDeposit           EventType = "DEPOSIT"
	EventWithdraw          EventType = "WITHDRAW"
	EventYieldClaimed      EventType = "YIELD_CLAIMED"
	EventYieldCompounded   EventType = "YIELD_COMPOUNDED"
	EventConfigUpdated     EventType = "CONFIG_UPDATED"
	EventTreasuryUpdated   EventType = "TREASURY_UPDATED"
	EventPaused            EventType = "PAUSED"
	EventUnpaused          EventType = "UNPAUSED"
	EventShutdown          EventType = "EMERGENCY_SHUTDOWN"
	EventEmergencyWithdraw EventType = "EMERGENCY_WITHDRAW"
)

// VaultEvent is the audit record emitted by every state-mutating vault
// operation. Amount and Shares are zero for lifecycle events that move
// neither assets nor shares (pause, shutdown, config updates).
type VaultEvent struct {
	EventID    int64       `json:"event_id,omitempty"` // Auto-incremented by DB
	EventUUID  string      `json:"event_uuid"`
	Type       EventType   `json:"type"`
	Account    string      `json:"account,omitempty"`
	AssetDenom string      `json:"asset_denom,omitempty"`
	Amount     sdkmath.Int `json:"amount"`
	Shares     sdkmath.Int `json:"shares"`
	Note       string      `json:"note,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// VaultSnapshot is a periodic persisted capture of the vault's aggregate
// state, written by the monitor loop for dashboards and offline analysis.
type VaultSnapshot struct {
	SnapshotID     int64             `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	SnapshotNumber int               `json:"snapshot_number"`
	Timestamp      time.Time         `json:"timestamp"`
	TotalDeposits  sdkmath.Int       `json:"total_deposits"`
	TotalAssets    sdkmath.Int       `json:"total_assets"`
	TotalShares    sdkmath.Int       `json:"total_shares"`
	SharePrice     sdkmath.LegacyDec `json:"share_price"`
	BaseAPYBps     int64             `json:"base_apy_bps"`
	AccountCount   int               `json:"account_count"`
	Paused         bool              `json:"paused"`
	Shutdown       bool              `json:"shutdown"`
}
