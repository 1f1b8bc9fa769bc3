package config

import (
	"errors"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AssetDenom is the denom of the single underlying asset the vault accepts.
	AssetDenom string
	// Owner is the account allowed to perform admin operations.
	Owner string
	// Treasury is the fee recipient reference. Defaults to Owner when unset.
	Treasury string

	// BaseAPYBps is the annual yield in basis points (500 = 5.00%).
	BaseAPYBps int64
	// PerformanceFeeBps is the performance fee rate in basis points.
	PerformanceFeeBps int64
	// ManagementFeeBps is the management fee rate in basis points.
	ManagementFeeBps int64
	// WithdrawalFeeBps is the fee subtracted from withdrawal payouts, in basis points.
	WithdrawalFeeBps int64
	// MinimumDeposit is the floor for a single deposit, in base units of the asset.
	MinimumDeposit sdkmath.Int
	// AssetDecimals is the display precision of the underlying asset, used when
	// rendering base-unit amounts as human-readable values.
	AssetDecimals int64

	// SnapshotIntervalMinutes is how often the monitor persists a stats snapshot.
	SnapshotIntervalMinutes int64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// The asset denom, owner and base APY are required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AssetDenom, err = getEnv("VAULT_ASSET_DENOM")
	if err != nil {
		return err
	}

	Owner, err = getEnv("VAULT_OWNER")
	if err != nil {
		return err
	}

	BaseAPYBps, err = getEnvAsInt64("VAULT_BASE_APY_BPS")
	if err != nil {
		return err
	}

	Treasury = getEnvWithDefault("VAULT_TREASURY", Owner)

	PerformanceFeeBps, err = getEnvAsInt64WithDefault("VAULT_PERFORMANCE_FEE_BPS", 0)
	if err != nil {
		return err
	}

	ManagementFeeBps, err = getEnvAsInt64WithDefault("VAULT_MANAGEMENT_FEE_BPS", 0)
	if err != nil {
		return err
	}

	WithdrawalFeeBps, err = getEnvAsInt64WithDefault("VAULT_WITHDRAWAL_FEE_BPS", 0)
	if err != nil {
		return err
	}

	minDeposit := getEnvWithDefault("VAULT_MINIMUM_DEPOSIT", "1")
	parsed, ok := sdkmath.NewIntFromString(minDeposit)
	if !ok || !parsed.IsPositive() {
		return errors.New("environment variable VAULT_MINIMUM_DEPOSIT must be a positive integer, got: " + minDeposit)
	}
	MinimumDeposit = parsed

	AssetDecimals, err = getEnvAsInt64WithDefault("VAULT_ASSET_DECIMALS", 6)
	if err != nil {
		return err
	}

	SnapshotIntervalMinutes, err = getEnvAsInt64WithDefault("SNAPSHOT_INTERVAL_MINUTES", 10)
	if err != nil {
		return err
	}

	log.Debug().
		Str("AssetDenom", AssetDenom).
		Str("Owner", Owner).
		Int64("BaseAPYBps", BaseAPYBps).
		Int64("WithdrawalFeeBps", WithdrawalFeeBps).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvWithDefault retrieves a string environment variable, falling back to a default.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt64WithDefault retrieves an environment variable as an int64,
// falling back to a default when unset. Returns error only when set but invalid.
func getEnvAsInt64WithDefault(key string, defaultValue int64) (int64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
