package vault

import "errors"

// Error definitions for zero-tolerance error handling. All of these are
// deterministic precondition failures, so callers should correct their
// inputs rather than retry.
var (
	ErrBelowMinimumDeposit = errors.New("deposit amount is below the minimum")
	ErrVaultPaused         = errors.New("vault is paused")
	ErrVaultShutdown       = errors.New("vault is shut down")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrNoYieldToClaim      = errors.New("no yield to claim")
	ErrUnauthorized        = errors.New("caller is not the vault owner")
	ErrAssetLedger         = errors.New("asset ledger operation failed")
	ErrInvalidAmount       = errors.New("amount is invalid")
	ErrInvalidConfig       = errors.New("vault configuration is invalid")
)
