// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS vault_events (
			event_id SERIAL PRIMARY KEY,
			event_uuid VARCHAR(64) NOT NULL UNIQUE,
			event_type VARCHAR(32) NOT NULL,
			account VARCHAR(128),
			asset_denom VARCHAR(64),
			amount NUMERIC(40, 0) NOT NULL DEFAULT 0,
			shares NUMERIC(40, 0) NOT NULL DEFAULT 0,
			note TEXT,
			event_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_events_account ON vault_events(account);
		CREATE INDEX IF NOT EXISTS idx_vault_events_type ON vault_events(event_type);

		CREATE TABLE IF NOT EXISTS vault_config_versions (
			config_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			asset_denom VARCHAR(64) NOT NULL,
			owner_account VARCHAR(128) NOT NULL,
			treasury_account VARCHAR(128) NOT NULL,
			base_apy_bps BIGINT NOT NULL,
			performance_fee_bps BIGINT NOT NULL,
			management_fee_bps BIGINT NOT NULL,
			withdrawal_fee_bps BIGINT NOT NULL,
			minimum_deposit NUMERIC(40, 0) NOT NULL,
			CONSTRAINT uq_vault_config_versions_name_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_vault_config_versions_active ON vault_config_versions(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS vault_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_deposits NUMERIC(40, 0) NOT NULL,
			total_assets NUMERIC(40, 0) NOT NULL,
			total_shares NUMERIC(40, 0) NOT NULL,
			share_price DECIMAL(40, 18) NOT NULL,
			base_apy_bps BIGINT NOT NULL,
			account_count INTEGER NOT NULL,
			paused BOOLEAN NOT NULL,
			shutdown BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_number ON vault_snapshots(snapshot_number DESC);

		-- Snapshot counter table for persistent global snapshot numbering
		CREATE TABLE IF NOT EXISTS snapshot_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_snapshot INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO snapshot_counter (id, current_snapshot)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
