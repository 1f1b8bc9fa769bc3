package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
)

// SaveVaultConfigVersion saves a new version of the vault configuration.
func SaveVaultConfigVersion(cfg types.VaultConfig, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE vault_config_versions SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active config for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO vault_config_versions (
            version, config_name, is_active, activated_at, created_at,
            asset_denom, owner_account, treasury_account,
            base_apy_bps, performance_fee_bps, management_fee_bps, withdrawal_fee_bps,
            minimum_deposit
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11, $12,
            $13
        ) RETURNING config_id;`

	var configID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		cfg.AssetDenom, cfg.Owner, cfg.Treasury,
		cfg.BaseAPYBps, cfg.PerformanceFeeBps, cfg.ManagementFeeBps, cfg.WithdrawalFeeBps,
		intOrZero(cfg.MinimumDeposit),
	).Scan(&configID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert vault config version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("config_id", configID).
		Bool("active", makeActive).
		Msg("Saved vault config version")
	return configID, nil
}

// LoadActiveVaultConfig loads the currently active vault configuration.
func LoadActiveVaultConfig(configName string) (*types.VaultConfig, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            asset_denom, owner_account, treasury_account,
            base_apy_bps, performance_fee_bps, management_fee_bps, withdrawal_fee_bps,
            minimum_deposit
        FROM vault_config_versions
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	cfg := &types.VaultConfig{}
	var minimumDeposit string
	row := DB.QueryRow(query, configName)
	err := row.Scan(
		&cfg.AssetDenom, &cfg.Owner, &cfg.Treasury,
		&cfg.BaseAPYBps, &cfg.PerformanceFeeBps, &cfg.ManagementFeeBps, &cfg.WithdrawalFeeBps,
		&minimumDeposit,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active vault config found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active vault config for config '%s': %w", configName, err)
	}

	cfg.MinimumDeposit, err = parseNumeric(minimumDeposit)
	if err != nil {
		return nil, fmt.Errorf("failed to parse minimum deposit for config '%s': %w", configName, err)
	}

	log.Info().Str("config", configName).Msg("Loaded active vault config")
	return cfg, nil
}

// GetActiveVaultConfigVersion returns the version of the currently active
// config row, or 0 when none exists.
func GetActiveVaultConfigVersion(configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT version
        FROM vault_config_versions
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var version int
	row := DB.QueryRow(query, configName)
	err := row.Scan(&version)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug().Str("config", configName).Msg("No active vault config found")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get active vault config version for config '%s': %w", configName, err)
	}

	return version, nil
}
