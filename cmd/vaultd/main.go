package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/auth"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/config"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/ledger"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/logger"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/monitor"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/state"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/vault"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_CONFIG_NAME = "default_vault"

	// VaultReserveAccount is the ledger holder name for the vault's own funds.
	VaultReserveAccount = "vault_reserve"
)

// main is the entry point for the yield vault service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Yield vault service starting...")

	// Initialize Database Connection (events, config versions, snapshots)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load the active vault configuration, falling back to the env-derived
	// defaults (and persisting them) on first boot.
	vaultCfg, err := state.LoadActiveVaultConfig(DEFAULT_CONFIG_NAME)
	if err != nil {
		log.Warn().Err(err).Msg("No active vault config found, using env defaults and saving.")
		defaults := types.VaultConfig{
			AssetDenom:        config.AssetDenom,
			Owner:             config.Owner,
			Treasury:          config.Treasury,
			BaseAPYBps:        config.BaseAPYBps,
			PerformanceFeeBps: config.PerformanceFeeBps,
			ManagementFeeBps:  config.ManagementFeeBps,
			WithdrawalFeeBps:  config.WithdrawalFeeBps,
			MinimumDeposit:    config.MinimumDeposit,
		}
		activeVersion, verr := state.GetActiveVaultConfigVersion(DEFAULT_CONFIG_NAME)
		if verr != nil {
			log.Fatal().Err(verr).Msg("Failed to determine active vault config version.")
		}
		if _, err := state.SaveVaultConfigVersion(defaults, DEFAULT_CONFIG_NAME, activeVersion+1, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default vault config.")
		}
		vaultCfg = &defaults
	}
	log.Info().Msg("Vault configuration loaded successfully.")

	// --- 2. Vault Core Initialization ---
	assetLedger, err := ledger.New(VaultReserveAccount)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create asset ledger")
	}

	gate, err := auth.NewStaticGate(vaultCfg.Owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create authorization gate")
	}

	vaultCore, err := vault.New(vault.Config{
		VaultConfig: *vaultCfg,
		AssetLedger: assetLedger,
		Gate:        gate,
		Sink:        state.EventRecorder{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault core")
	}
	log.Info().Msg("Vault core created successfully")

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, vaultCore, web.DBEventStore{})
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting vault API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Snapshot Loop ---
	vaultMonitor, err := monitor.New(vaultCore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault monitor")
	}

	snapshotInterval := time.Duration(config.SnapshotIntervalMinutes) * time.Minute
	log.Info().Str("interval", snapshotInterval.String()).Msg("Starting snapshot loop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go vaultMonitor.RunLoop(ctx, snapshotInterval)

	// Block until interrupted so deferred cleanup runs.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down vault service")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
