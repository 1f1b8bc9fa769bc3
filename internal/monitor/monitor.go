package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/config"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/logger"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/state"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/utils"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/vault"
)

// Monitor periodically captures the vault's aggregate stats and persists
// them as snapshot rows for dashboards and offline analysis.
type Monitor struct {
	logger zerolog.Logger
	vault  *vault.Vault
}

// New creates a monitor for the given vault instance.
func New(v *vault.Vault) (*Monitor, error) {
	if v == nil {
		return nil, fmt.Errorf("vault cannot be nil")
	}
	return &Monitor{
		logger: logger.GetForComponent("vault_monitor"),
		vault:  v,
	}, nil
}

// RunLoop starts the snapshot loop with the specified interval. The first
// snapshot is taken immediately; the loop stops on context cancellation.
func (m *Monitor) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().
		Dur("interval", interval).
		Msg("Starting vault snapshot loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := m.CaptureSnapshot(); err != nil {
		m.logger.Error().Err(err).Msg("Initial snapshot failed")
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Snapshot loop stopped due to context cancellation")
			return
		case <-ticker.C:
			if err := m.CaptureSnapshot(); err != nil {
				m.logger.Error().Err(err).Msg("Snapshot failed")
			}
		}
	}
}

// CaptureSnapshot persists one stats snapshot with the next global number.
func (m *Monitor) CaptureSnapshot() error {
	stats := m.vault.GetVaultStats()

	number, err := state.IncrementSnapshotNumber()
	if err != nil {
		return fmt.Errorf("failed to allocate snapshot number: %w", err)
	}

	snapshot := types.VaultSnapshot{
		SnapshotNumber: number,
		Timestamp:      time.Now().UTC(),
		TotalDeposits:  stats.TotalDeposits,
		TotalAssets:    stats.TotalAssets,
		TotalShares:    stats.TotalShares,
		SharePrice:     stats.SharePrice,
		BaseAPYBps:     stats.CurrentAPYBps,
		AccountCount:   stats.AccountCount,
		Paused:         stats.Paused,
		Shutdown:       stats.Shutdown,
	}

	snapshotID, err := state.SaveVaultSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	totalAssetsDisplay, err := utils.SDKIntToFloat64(stats.TotalAssets, int(config.AssetDecimals))
	if err != nil {
		totalAssetsDisplay = 0
	}

	m.logger.Info().
		Int64("snapshotId", snapshotID).
		Int("snapshotNumber", number).
		Str("totalAssets", stats.TotalAssets.String()).
		Float64("totalAssetsDisplay", totalAssetsDisplay).
		Str("sharePrice", stats.SharePrice.String()).
		Msg("Vault snapshot captured")
	return nil
}
