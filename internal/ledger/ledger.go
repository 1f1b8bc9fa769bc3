/*

This file implements an in-memory asset ledger: the balance-holding store the
vault pulls deposits from and pays withdrawals and yield out of. Balances are
keyed by (denom, holder) and guarded by a single mutex so transfers are
atomic. The vault's own holdings live under a reserve account like any other
holder.

*/

package ledger

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount       = errors.New("transfer amount is invalid")
	ErrInvalidAccount      = errors.New("account is invalid")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Ledger is an in-memory multi-denom balance store.
type Ledger struct {
	mu sync.Mutex

	// reserveAccount is the holder name for the vault's own funds.
	reserveAccount string
	balances       map[string]map[string]sdkmath.Int // denom -> holder -> balance
	logger         zerolog.Logger
}

// New creates an empty ledger whose vault reserve lives under reserveAccount.
func New(reserveAccount string) (*Ledger, error) {
	if reserveAccount == "" {
		return nil, fmt.Errorf("%w: reserve account cannot be empty", ErrInvalidAccount)
	}
	return &Ledger{
		reserveAccount: reserveAccount,
		balances:       make(map[string]map[string]sdkmath.Int),
		logger:         logger.GetForComponent("asset_ledger"),
	}, nil
}

// Mint credits amount of denom to an account out of thin air. Used to fund
// depositors and the vault's yield reserve; a live deployment would replace
// this with bridge or custodian inflows.
func (l *Ledger) Mint(denom, to string, amount sdkmath.Int) error {
	if err := validateTransfer(denom, to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(denom, to, amount)
	l.logger.Debug().
		Str("denom", denom).
		Str("to", to).
		Str("amount", amount.String()).
		Msg("Minted balance")
	return nil
}

// TransferIn moves amount of denom from an external account into the vault reserve.
func (l *Ledger) TransferIn(denom, from string, amount sdkmath.Int) error {
	return l.transfer(denom, from, l.reserveAccount, amount)
}

// TransferOut pays amount of denom from the vault reserve to an external account.
func (l *Ledger) TransferOut(denom, to string, amount sdkmath.Int) error {
	return l.transfer(denom, l.reserveAccount, to, amount)
}

// BalanceOf returns the denom balance held by an account. Unknown accounts
// hold zero.
func (l *Ledger) BalanceOf(denom, holder string) (sdkmath.Int, error) {
	if denom == "" || holder == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: denom and holder are required", ErrInvalidAccount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	holders, ok := l.balances[denom]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	balance, ok := holders[holder]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	return balance, nil
}

// ReserveBalance returns the vault reserve's balance for a denom.
func (l *Ledger) ReserveBalance(denom string) (sdkmath.Int, error) {
	return l.BalanceOf(denom, l.reserveAccount)
}

func (l *Ledger) transfer(denom, from, to string, amount sdkmath.Int) error {
	if err := validateTransfer(denom, from, amount); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("%w: recipient cannot be empty", ErrInvalidAccount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	available := sdkmath.ZeroInt()
	if holders, ok := l.balances[denom]; ok {
		if balance, ok := holders[from]; ok {
			available = balance
		}
	}
	if available.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, available, denom, amount)
	}

	l.balances[denom][from] = available.Sub(amount)
	l.credit(denom, to, amount)

	l.logger.Debug().
		Str("denom", denom).
		Str("from", from).
		Str("to", to).
		Str("amount", amount.String()).
		Msg("Transfer executed")
	return nil
}

func (l *Ledger) credit(denom, to string, amount sdkmath.Int) {
	holders, ok := l.balances[denom]
	if !ok {
		holders = make(map[string]sdkmath.Int)
		l.balances[denom] = holders
	}
	balance, ok := holders[to]
	if !ok {
		balance = sdkmath.ZeroInt()
	}
	holders[to] = balance.Add(amount)
}

func validateTransfer(denom, account string, amount sdkmath.Int) error {
	if denom == "" {
		return fmt.Errorf("%w: denom cannot be empty", ErrInvalidAccount)
	}
	if account == "" {
		return fmt.Errorf("%w: account cannot be empty", ErrInvalidAccount)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return nil
}
