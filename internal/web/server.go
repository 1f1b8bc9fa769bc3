package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/logger"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/state"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/utils"
	"github.com/LSUDOKO/OmniFlow-sub004/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// EventStore abstracts the persisted event log consumed by the events
// endpoint, so the server can run without a database in tests.
type EventStore interface {
	GetRecentEvents(limit int) ([]types.VaultEvent, error)
	GetEventsByAccount(account string, limit int) ([]types.VaultEvent, error)
}

// DBEventStore serves events from the state package's Postgres store.
type DBEventStore struct{}

func (DBEventStore) GetRecentEvents(limit int) ([]types.VaultEvent, error) {
	return state.GetRecentEvents(limit)
}

func (DBEventStore) GetEventsByAccount(account string, limit int) ([]types.VaultEvent, error) {
	return state.GetEventsByAccount(account, limit)
}

// WebServer handles HTTP requests for vault operations and data
type WebServer struct {
	router *mux.Router
	port   string
	vault  *vault.Vault
	events EventStore // optional; nil disables the events endpoint
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, v *vault.Vault, events EventStore) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		vault:  v,
		events: events,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api.HandleFunc("/vault/stats", ws.handleGetStats).Methods("GET")
	api.HandleFunc("/vault/price", ws.handleGetPrice).Methods("GET")
	api.HandleFunc("/vault/accounts/{account}", ws.handleGetAccount).Methods("GET")
	api.HandleFunc("/vault/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/vault/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/vault/claim", ws.handleClaimYield).Methods("POST")
	api.HandleFunc("/vault/compound", ws.handleCompoundYield).Methods("POST")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")

	api.HandleFunc("/admin/config", ws.handleUpdateConfig).Methods("POST")
	api.HandleFunc("/admin/pause", ws.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", ws.handleUnpause).Methods("POST")
	api.HandleFunc("/admin/shutdown", ws.handleShutdown).Methods("POST")
	api.HandleFunc("/admin/treasury", ws.handleSetTreasury).Methods("POST")
	api.HandleFunc("/admin/emergency-withdraw", ws.handleEmergencyWithdraw).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Router exposes the configured router, mainly for tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status including vault state
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	stats := ws.vault.GetVaultStats()

	response := map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "rwa-yield-vault",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"paused":           stats.Paused,
			"shutdown":         stats.Shutdown,
			"total_shares":     stats.TotalShares.String(),
			"account_count":    stats.AccountCount,
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStats returns the aggregate vault statistics
func (ws *WebServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.vault.GetVaultStats())
}

// handleGetPrice returns the current price-per-share and fee terms
func (ws *WebServer) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	cfg := ws.vault.GetConfig()
	withdrawalFee, err := utils.BpsToDec(cfg.WithdrawalFeeBps)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Invalid fee configuration")
		return
	}

	response := map[string]interface{}{
		"share_price":    ws.vault.PricePerShare(),
		"withdrawal_fee": withdrawalFee,
		"timestamp":      time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAccount returns one depositor's position including pending yield
func (ws *WebServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account := vars["account"]
	if account == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Account is required")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.vault.GetAccountPosition(account))
}

type depositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// handleDeposit pulls assets from the account and mints shares
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	shares, err := ws.vault.Deposit(req.Account, amount)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"account":       req.Account,
		"amount":        amount,
		"shares_minted": shares,
		"share_price":   ws.vault.PricePerShare(),
		"timestamp":     time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

type withdrawRequest struct {
	Account string `json:"account"`
	Shares  string `json:"shares"`
}

// handleWithdraw burns shares and pays out assets net of the withdrawal fee
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shares, ok := parseAmount(req.Shares)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid shares")
		return
	}

	assets, err := ws.vault.Withdraw(req.Account, shares)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"account":       req.Account,
		"shares_burned": shares,
		"assets_paid":   assets,
		"timestamp":     time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

type accountRequest struct {
	Account string `json:"account"`
}

// handleClaimYield pays out the account's pending yield
func (ws *WebServer) handleClaimYield(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := ws.vault.ClaimYield(req.Account)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"account":        req.Account,
		"amount_claimed": amount,
		"timestamp":      time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleCompoundYield converts pending yield into additional shares
func (ws *WebServer) handleCompoundYield(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shares, err := ws.vault.CompoundYield(req.Account)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"account":      req.Account,
		"shares_added": shares,
		"timestamp":    time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEvents returns recent persisted vault events
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if ws.events == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Event store not available")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var events []types.VaultEvent
	var err error
	if account := r.URL.Query().Get("account"); account != "" {
		events, err = ws.events.GetEventsByAccount(account, limit)
	} else {
		events, err = ws.events.GetRecentEvents(limit)
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get vault events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshots returns recent persisted vault snapshots
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get vault snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

type configRequest struct {
	Caller            string `json:"caller"`
	BaseAPYBps        int64  `json:"base_apy_bps"`
	PerformanceFeeBps int64  `json:"performance_fee_bps"`
	ManagementFeeBps  int64  `json:"management_fee_bps"`
	WithdrawalFeeBps  int64  `json:"withdrawal_fee_bps"`
}

// handleUpdateConfig atomically replaces the vault's rate parameters
func (ws *WebServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := ws.vault.UpdateVaultConfig(req.Caller, req.BaseAPYBps, req.PerformanceFeeBps, req.ManagementFeeBps, req.WithdrawalFeeBps)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.vault.GetConfig())
}

type adminRequest struct {
	Caller string `json:"caller"`
}

func (ws *WebServer) handlePause(w http.ResponseWriter, r *http.Request) {
	ws.handleAdminToggle(w, r, ws.vault.Pause)
}

func (ws *WebServer) handleUnpause(w http.ResponseWriter, r *http.Request) {
	ws.handleAdminToggle(w, r, ws.vault.Unpause)
}

func (ws *WebServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	ws.handleAdminToggle(w, r, ws.vault.EmergencyShutdown)
}

func (ws *WebServer) handleAdminToggle(w http.ResponseWriter, r *http.Request, op func(string) error) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := op(req.Caller); err != nil {
		ws.writeVaultError(w, err)
		return
	}

	stats := ws.vault.GetVaultStats()
	response := map[string]interface{}{
		"paused":    stats.Paused,
		"shutdown":  stats.Shutdown,
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

type treasuryRequest struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

// handleSetTreasury replaces the fee-recipient reference
func (ws *WebServer) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	var req treasuryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.vault.SetTreasury(req.Caller, req.Treasury); err != nil {
		ws.writeVaultError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.vault.GetConfig())
}

type emergencyWithdrawRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// handleEmergencyWithdraw sweeps a vault-held balance to the owner
func (ws *WebServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req emergencyWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := ws.vault.EmergencyWithdraw(req.Caller, req.Asset, amount); err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"asset":     req.Asset,
		"amount":    amount,
		"timestamp": time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// parseAmount parses a decimal string into a non-nil sdkmath.Int.
func parseAmount(value string) (sdkmath.Int, bool) {
	if value == "" {
		return sdkmath.ZeroInt(), false
	}
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), false
	}
	return parsed, true
}

// writeVaultError maps the vault error taxonomy onto HTTP status codes so
// callers can distinguish user-correctable, state-dependent and permission
// failures.
func (ws *WebServer) writeVaultError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrVaultPaused), errors.Is(err, vault.ErrVaultShutdown):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrBelowMinimumDeposit),
		errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrNoYieldToClaim),
		errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrInvalidConfig),
		errors.Is(err, vault.ErrAssetLedger):
		status = http.StatusBadRequest
	}
	ws.writeErrorResponse(w, status, err.Error())
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
