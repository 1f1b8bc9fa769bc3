package vault

import (
	sdkmath "cosmossdk.io/math"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
)

// AssetLedger defines the collaborator that actually holds and moves the
// underlying asset. The vault never touches balances directly; every deposit
// pull, withdrawal payout and yield payment goes through this interface, and
// failures here propagate as vault-operation failures.
type AssetLedger interface {
	// TransferIn pulls amount of denom from the given account into the vault's reserve.
	TransferIn(denom string, from string, amount sdkmath.Int) error

	// TransferOut pays amount of denom from the vault's reserve to the given account.
	TransferOut(denom string, to string, amount sdkmath.Int) error
}

// AuthorizationGate is consulted before any admin operation.
type AuthorizationGate interface {
	IsOwner(caller string) bool
}

// EventSink receives the audit record emitted by every state-mutating vault
// operation. Sink failures are logged by the vault but never fail accounting.
type EventSink interface {
	Record(event types.VaultEvent) error
}
