// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
)

// SaveVaultSnapshot saves a periodic vault stats snapshot to the database.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO vault_snapshots (
			snapshot_number, snapshot_timestamp,
			total_deposits, total_assets, total_shares, share_price,
			base_apy_bps, account_count, paused, shutdown
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.SnapshotNumber, snapshot.Timestamp,
		intOrZero(snapshot.TotalDeposits), intOrZero(snapshot.TotalAssets), intOrZero(snapshot.TotalShares),
		snapshot.SharePrice.String(),
		snapshot.BaseAPYBps, snapshot.AccountCount, snapshot.Paused, snapshot.Shutdown,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("snapshot_number", snapshot.SnapshotNumber).
		Str("total_assets", intOrZero(snapshot.TotalAssets)).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots retrieves recent vault snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT
			snapshot_id, snapshot_number, snapshot_timestamp,
			total_deposits, total_assets, total_shares, share_price,
			base_apy_bps, account_count, paused, shutdown
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent snapshots")
		return nil, fmt.Errorf("failed to query recent snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.VaultSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan snapshot row")
			continue // Skip this row and continue with others
		}
		snapshots = append(snapshots, *snapshot)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during snapshot row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return snapshots, nil
}

func scanSnapshot(rows *sql.Rows) (*types.VaultSnapshot, error) {
	var snapshot types.VaultSnapshot
	var totalDeposits, totalAssets, totalShares, sharePrice string

	err := rows.Scan(
		&snapshot.SnapshotID, &snapshot.SnapshotNumber, &snapshot.Timestamp,
		&totalDeposits, &totalAssets, &totalShares, &sharePrice,
		&snapshot.BaseAPYBps, &snapshot.AccountCount, &snapshot.Paused, &snapshot.Shutdown,
	)
	if err != nil {
		return nil, err
	}

	if snapshot.TotalDeposits, err = parseNumeric(totalDeposits); err != nil {
		return nil, err
	}
	if snapshot.TotalAssets, err = parseNumeric(totalAssets); err != nil {
		return nil, err
	}
	if snapshot.TotalShares, err = parseNumeric(totalShares); err != nil {
		return nil, err
	}
	if snapshot.SharePrice, err = parseDecimal(sharePrice); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// IncrementSnapshotNumber increments the snapshot counter and returns the new value.
func IncrementSnapshotNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	updateQuery := `
		UPDATE snapshot_counter
		SET current_snapshot = current_snapshot + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_snapshot;`

	var newSnapshot int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newSnapshot)

	if err != nil {
		return 0, fmt.Errorf("failed to increment snapshot number: %w", err)
	}

	log.Debug().Int("newSnapshot", newSnapshot).Msg("Incremented snapshot counter")
	return newSnapshot, nil
}
