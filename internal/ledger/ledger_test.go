package ledger

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	reserve = "vault_reserve"
	denom   = "rwausd"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(reserve)
	require.NoError(t, err)
	return l
}

func TestNewRequiresReserveAccount(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestMintAndBalanceOf(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Mint(denom, "alice", sdkmath.NewInt(500)))
	require.NoError(t, l.Mint(denom, "alice", sdkmath.NewInt(250)))

	balance, err := l.BalanceOf(denom, "alice")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(750), balance)

	// Unknown accounts and denoms hold zero.
	balance, err = l.BalanceOf(denom, "bob")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	balance, err = l.BalanceOf("other", "alice")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestTransferInMovesFundsToReserve(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(denom, "alice", sdkmath.NewInt(1000)))

	require.NoError(t, l.TransferIn(denom, "alice", sdkmath.NewInt(400)))

	aliceBalance, err := l.BalanceOf(denom, "alice")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(600), aliceBalance)

	reserveBalance, err := l.ReserveBalance(denom)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(400), reserveBalance)
}

func TestTransferOutPaysFromReserve(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(denom, reserve, sdkmath.NewInt(1000)))

	require.NoError(t, l.TransferOut(denom, "bob", sdkmath.NewInt(300)))

	bobBalance, err := l.BalanceOf(denom, "bob")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(300), bobBalance)

	reserveBalance, err := l.ReserveBalance(denom)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(700), reserveBalance)
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(denom, "alice", sdkmath.NewInt(10)))

	err := l.TransferIn(denom, "alice", sdkmath.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Failed transfers leave both sides untouched.
	aliceBalance, err := l.BalanceOf(denom, "alice")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(10), aliceBalance)
	reserveBalance, err := l.ReserveBalance(denom)
	require.NoError(t, err)
	assert.True(t, reserveBalance.IsZero())
}

func TestTransferValidation(t *testing.T) {
	l := newTestLedger(t)

	require.ErrorIs(t, l.TransferIn("", "alice", sdkmath.NewInt(1)), ErrInvalidAccount)
	require.ErrorIs(t, l.TransferIn(denom, "", sdkmath.NewInt(1)), ErrInvalidAccount)
	require.ErrorIs(t, l.TransferIn(denom, "alice", sdkmath.ZeroInt()), ErrInvalidAmount)
	require.ErrorIs(t, l.TransferIn(denom, "alice", sdkmath.NewInt(-5)), ErrInvalidAmount)
	require.ErrorIs(t, l.Mint(denom, "alice", sdkmath.ZeroInt()), ErrInvalidAmount)
}
