package vault

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/ledger"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
)

const (
	testDenom   = "rwausd"
	testOwner   = "owner"
	testReserve = "vault_reserve"
)

// memorySink collects emitted events for assertions.
type memorySink struct {
	events []types.VaultEvent
}

func (s *memorySink) Record(event types.VaultEvent) error {
	s.events = append(s.events, event)
	return nil
}

// staticGate mirrors the auth package's owner check without importing it.
type staticGate struct {
	owner string
}

func (g staticGate) IsOwner(caller string) bool { return caller == g.owner }

type testEnv struct {
	vault  *Vault
	ledger *ledger.Ledger
	clock  *clockwork.FakeClock
	sink   *memorySink
}

func defaultTestConfig() types.VaultConfig {
	return types.VaultConfig{
		AssetDenom:       testDenom,
		Owner:            testOwner,
		Treasury:         testOwner,
		BaseAPYBps:       500, // 5.00%
		WithdrawalFeeBps: 0,
		MinimumDeposit:   sdkmath.NewInt(1),
	}
}

func newTestEnv(t *testing.T, cfg types.VaultConfig) *testEnv {
	t.Helper()

	assetLedger, err := ledger.New(testReserve)
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	sink := &memorySink{}

	v, err := New(Config{
		VaultConfig: cfg,
		AssetLedger: assetLedger,
		Gate:        staticGate{owner: testOwner},
		Sink:        sink,
		Clock:       clock,
	})
	require.NoError(t, err)

	return &testEnv{vault: v, ledger: assetLedger, clock: clock, sink: sink}
}

// fund credits a depositor with spendable balance.
func (env *testEnv) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	require.NoError(t, env.ledger.Mint(testDenom, account, sdkmath.NewInt(amount)))
}

// fundReserve credits the vault's yield reserve, standing in for the
// external strategy that replenishes it in a live deployment.
func (env *testEnv) fundReserve(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, env.ledger.Mint(testDenom, testReserve, sdkmath.NewInt(amount)))
}

func TestDepositBootstrapMintsOneToOne(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	shares, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1000), shares)
	assert.Equal(t, sdkmath.LegacyOneDec(), env.vault.PricePerShare())

	reserve, err := env.ledger.ReserveBalance(testDenom)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1000), reserve)
}

func TestProportionalMintingWithoutYield(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)
	env.fund(t, "bob", 2000)

	aliceShares, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	bobShares, err := env.vault.Deposit("bob", sdkmath.NewInt(2000))
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(1000), aliceShares)
	assert.Equal(t, sdkmath.NewInt(2000), bobShares)

	stats := env.vault.GetVaultStats()
	assert.Equal(t, sdkmath.NewInt(3000), stats.TotalDeposits)
	assert.Equal(t, sdkmath.NewInt(3000), stats.TotalShares)
	assert.Equal(t, sdkmath.NewInt(3000), stats.TotalAssets)
	assert.Equal(t, sdkmath.LegacyOneDec(), stats.SharePrice)
	assert.Equal(t, 2, stats.AccountCount)
}

func TestDepositBelowMinimumRejected(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MinimumDeposit = sdkmath.NewInt(100)
	env := newTestEnv(t, cfg)
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(99))
	require.ErrorIs(t, err, ErrBelowMinimumDeposit)

	// Nothing moved.
	balance, err := env.ledger.BalanceOf(testDenom, "alice")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1000), balance)
}

func TestDepositFailsWithoutUpstreamBalance(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 10)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.ErrorIs(t, err, ErrAssetLedger)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	stats := env.vault.GetVaultStats()
	assert.True(t, stats.TotalShares.IsZero())
}

func TestPendingYieldAccruesOverTime(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	assert.True(t, env.vault.GetPendingYield("alice").IsZero())

	// 1000 units at 500 bps over a full year is 50 units.
	env.clock.Advance(365 * 24 * time.Hour)
	pending := env.vault.GetPendingYield("alice")
	assert.InDelta(t, 50, pending.Int64(), 1)

	// Non-decreasing in elapsed time.
	env.clock.Advance(30 * 24 * time.Hour)
	assert.True(t, env.vault.GetPendingYield("alice").GTE(pending))
}

func TestPendingYieldZeroForUnknownAccount(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	assert.True(t, env.vault.GetPendingYield("nobody").IsZero())
}

func TestClaimYieldResetsAccrual(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)
	env.fundReserve(t, 100)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	env.clock.Advance(365 * 24 * time.Hour)

	claimed, err := env.vault.ClaimYield("alice")
	require.NoError(t, err)
	assert.InDelta(t, 50, claimed.Int64(), 1)

	balance, err := env.ledger.BalanceOf(testDenom, "alice")
	require.NoError(t, err)
	assert.Equal(t, claimed, balance)

	// Accrual checkpoint reset: nothing to claim immediately afterwards.
	assert.True(t, env.vault.GetPendingYield("alice").IsZero())
	_, err = env.vault.ClaimYield("alice")
	require.ErrorIs(t, err, ErrNoYieldToClaim)
}

func TestClaimYieldWithNoDepositFails(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	_, err := env.vault.ClaimYield("alice")
	require.ErrorIs(t, err, ErrNoYieldToClaim)
}

func TestCompoundIncreasesPositionWithoutExternalTransfer(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	env.clock.Advance(365 * 24 * time.Hour)

	assetsBefore := env.vault.GetUserAssets("alice")
	reserveBefore, err := env.ledger.ReserveBalance(testDenom)
	require.NoError(t, err)

	sharesAdded, err := env.vault.CompoundYield("alice")
	require.NoError(t, err)
	assert.True(t, sharesAdded.IsPositive())

	// Redeemable value strictly increases, external balance does not move.
	assert.True(t, env.vault.GetUserAssets("alice").GT(assetsBefore))
	reserveAfter, err := env.ledger.ReserveBalance(testDenom)
	require.NoError(t, err)
	assert.Equal(t, reserveBefore, reserveAfter)

	// Compounded yield resets the accrual checkpoint too.
	assert.True(t, env.vault.GetPendingYield("alice").IsZero())
}

func TestWithdrawalFeeArithmetic(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.WithdrawalFeeBps = 100 // 1%
	env := newTestEnv(t, cfg)
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	// Gross 1000, fee 10, net 990.
	net, err := env.vault.Withdraw("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(990), net)

	balance, err := env.ledger.BalanceOf(testDenom, "alice")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(990), balance)
}

func TestWithdrawalFeeAccruesToRemainingShareholders(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.WithdrawalFeeBps = 100 // 1%
	env := newTestEnv(t, cfg)
	env.fund(t, "alice", 1000)
	env.fund(t, "bob", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	_, err = env.vault.Deposit("bob", sdkmath.NewInt(1000))
	require.NoError(t, err)

	statsBefore := env.vault.GetVaultStats()
	aliceAssetsBefore := env.vault.GetUserAssets("alice")

	net, err := env.vault.Withdraw("bob", sdkmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(990), net)

	// Only the net payout left the vault; the retained fee backs the
	// remaining shares, so Alice's position value and the share price rise.
	statsAfter := env.vault.GetVaultStats()
	assert.Equal(t, statsBefore.TotalAssets.Sub(net), statsAfter.TotalAssets)
	assert.True(t, env.vault.GetUserAssets("alice").GT(aliceAssetsBefore))
	assert.True(t, statsAfter.SharePrice.GT(statsBefore.SharePrice))
}

func TestWithdrawInsufficientShares(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	statsBefore := env.vault.GetVaultStats()

	_, err = env.vault.Withdraw("alice", sdkmath.NewInt(1001))
	require.ErrorIs(t, err, ErrInsufficientShares)
	_, err = env.vault.Withdraw("bob", sdkmath.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientShares)
	_, err = env.vault.Withdraw("alice", sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrInsufficientShares)

	// Balances untouched by the failed attempts.
	statsAfter := env.vault.GetVaultStats()
	assert.Equal(t, statsBefore.TotalShares, statsAfter.TotalShares)
	assert.Equal(t, statsBefore.TotalAssets, statsAfter.TotalAssets)
}

func TestPauseBlocksDepositsOnly(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 2000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	require.NoError(t, env.vault.Pause(testOwner))

	_, err = env.vault.Deposit("alice", sdkmath.NewInt(500))
	require.ErrorIs(t, err, ErrVaultPaused)

	// Users must always be able to exit.
	net, err := env.vault.Withdraw("alice", sdkmath.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(500), net)

	require.NoError(t, env.vault.Unpause(testOwner))
	_, err = env.vault.Deposit("alice", sdkmath.NewInt(500))
	require.NoError(t, err)
}

func TestShutdownIsTerminal(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	require.NoError(t, env.vault.EmergencyShutdown(testOwner))

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.ErrorIs(t, err, ErrVaultShutdown)

	// Unpausing does not lift the shutdown.
	require.NoError(t, env.vault.Unpause(testOwner))
	_, err = env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.ErrorIs(t, err, ErrVaultShutdown)
}

func TestAPYChangeAppliesProspectively(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	// 73 days (0.2y) at 500 bps: 1000 * 0.05 * 0.2 = 10.
	env.clock.Advance(73 * 24 * time.Hour)
	require.NoError(t, env.vault.UpdateVaultConfig(testOwner, 1000, 0, 0, 0))

	// 73 more days at 1000 bps: 1000 * 0.10 * 0.2 = 20. The first interval
	// stays priced at the old rate.
	env.clock.Advance(73 * 24 * time.Hour)
	pending := env.vault.GetPendingYield("alice")
	assert.InDelta(t, 30, pending.Int64(), 1)
}

func TestUpdateConfigValidatesRates(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	require.ErrorIs(t, env.vault.UpdateVaultConfig(testOwner, -1, 0, 0, 0), ErrInvalidConfig)
	require.ErrorIs(t, env.vault.UpdateVaultConfig(testOwner, 500, 0, 0, 10001), ErrInvalidConfig)

	require.NoError(t, env.vault.UpdateVaultConfig(testOwner, 500, 1000, 200, 50))
	cfg := env.vault.GetConfig()
	assert.EqualValues(t, 1000, cfg.PerformanceFeeBps)
	assert.EqualValues(t, 200, cfg.ManagementFeeBps)
	assert.EqualValues(t, 50, cfg.WithdrawalFeeBps)
}

func TestAdminOperationsRequireOwner(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	require.ErrorIs(t, env.vault.Pause("mallory"), ErrUnauthorized)
	require.ErrorIs(t, env.vault.Unpause("mallory"), ErrUnauthorized)
	require.ErrorIs(t, env.vault.EmergencyShutdown("mallory"), ErrUnauthorized)
	require.ErrorIs(t, env.vault.SetTreasury("mallory", "treasury"), ErrUnauthorized)
	require.ErrorIs(t, env.vault.UpdateVaultConfig("mallory", 100, 0, 0, 0), ErrUnauthorized)
	require.ErrorIs(t, env.vault.EmergencyWithdraw("mallory", testDenom, sdkmath.NewInt(1)), ErrUnauthorized)
}

func TestSetTreasury(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	require.NoError(t, env.vault.SetTreasury(testOwner, "fee_sink"))
	assert.Equal(t, "fee_sink", env.vault.GetConfig().Treasury)

	require.ErrorIs(t, env.vault.SetTreasury(testOwner, ""), ErrInvalidConfig)
}

func TestEmergencyWithdrawSweepsToOwner(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())

	// Mistakenly sent tokens of a different denom sit in the reserve.
	require.NoError(t, env.ledger.Mint("stray", testReserve, sdkmath.NewInt(777)))

	require.NoError(t, env.vault.EmergencyWithdraw(testOwner, "stray", sdkmath.NewInt(777)))

	balance, err := env.ledger.BalanceOf("stray", testOwner)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(777), balance)
}

func TestConvertRoundTrip(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 3000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(3000))
	require.NoError(t, err)

	for _, amount := range []int64{1, 7, 100, 2999} {
		assets := sdkmath.NewInt(amount)
		roundTrip := env.vault.ConvertToAssets(env.vault.ConvertToShares(assets))
		diff := assets.Sub(roundTrip).Abs()
		assert.True(t, diff.LTE(sdkmath.OneInt()), "round trip of %d off by %s", amount, diff)
	}
}

func TestDepositPreservesAlreadyEarnedYield(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 2000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)

	env.clock.Advance(365 * 24 * time.Hour)
	earned := env.vault.GetPendingYield("alice")
	assert.InDelta(t, 50, earned.Int64(), 1)

	// A second deposit must not erase yield earned on the first one.
	_, err = env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, earned, env.vault.GetPendingYield("alice"))

	// And the larger principal accrues from here on.
	env.clock.Advance(365 * 24 * time.Hour)
	pending := env.vault.GetPendingYield("alice")
	assert.InDelta(t, 150, pending.Int64(), 2)
}

func TestScenarioTwoDepositors(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "user1", 1000)
	env.fund(t, "user2", 2000)

	_, err := env.vault.Deposit("user1", sdkmath.NewInt(1000))
	require.NoError(t, err)
	_, err = env.vault.Deposit("user2", sdkmath.NewInt(2000))
	require.NoError(t, err)

	stats := env.vault.GetVaultStats()
	assert.Equal(t, sdkmath.NewInt(3000), stats.TotalDeposits)
	assert.Equal(t, sdkmath.NewInt(3000), stats.TotalShares)
	assert.Equal(t, sdkmath.LegacyOneDec(), stats.SharePrice)
}

func TestEventsEmittedForOperations(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)
	env.fundReserve(t, 100)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	env.clock.Advance(365 * 24 * time.Hour)
	_, err = env.vault.ClaimYield("alice")
	require.NoError(t, err)
	_, err = env.vault.Withdraw("alice", sdkmath.NewInt(400))
	require.NoError(t, err)
	require.NoError(t, env.vault.Pause(testOwner))

	require.Len(t, env.sink.events, 4)
	assert.Equal(t, types.EventDeposit, env.sink.events[0].Type)
	assert.Equal(t, types.EventYieldClaimed, env.sink.events[1].Type)
	assert.Equal(t, types.EventWithdraw, env.sink.events[2].Type)
	assert.Equal(t, types.EventPaused, env.sink.events[3].Type)
	for _, event := range env.sink.events {
		assert.NotEmpty(t, event.EventUUID)
	}
}

func TestAccountPositionView(t *testing.T) {
	env := newTestEnv(t, defaultTestConfig())
	env.fund(t, "alice", 1000)

	_, err := env.vault.Deposit("alice", sdkmath.NewInt(1000))
	require.NoError(t, err)
	env.clock.Advance(365 * 24 * time.Hour)

	position := env.vault.GetAccountPosition("alice")
	assert.Equal(t, sdkmath.NewInt(1000), position.Shares)
	assert.Equal(t, sdkmath.NewInt(1000), position.AssetValue)
	assert.InDelta(t, 50, position.PendingYield.Int64(), 1)

	empty := env.vault.GetAccountPosition("nobody")
	assert.True(t, empty.Shares.IsZero())
	assert.True(t, empty.PendingYield.IsZero())
}

func TestNewValidatesConfig(t *testing.T) {
	assetLedger, err := ledger.New(testReserve)
	require.NoError(t, err)

	base := Config{
		VaultConfig: defaultTestConfig(),
		AssetLedger: assetLedger,
		Gate:        staticGate{owner: testOwner},
	}

	missingLedger := base
	missingLedger.AssetLedger = nil
	_, err = New(missingLedger)
	require.ErrorIs(t, err, ErrInvalidConfig)

	missingGate := base
	missingGate.Gate = nil
	_, err = New(missingGate)
	require.ErrorIs(t, err, ErrInvalidConfig)

	badDenom := base
	badDenom.VaultConfig.AssetDenom = ""
	_, err = New(badDenom)
	require.ErrorIs(t, err, ErrInvalidConfig)

	badMinimum := base
	badMinimum.VaultConfig.MinimumDeposit = sdkmath.ZeroInt()
	_, err = New(badMinimum)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
