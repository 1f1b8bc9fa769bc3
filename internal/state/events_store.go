package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/LSUDOKO/OmniFlow-sub004/internal/types"
)

// EventRecorder adapts the package-level event store to the vault's
// EventSink interface.
type EventRecorder struct{}

// Record persists a vault event.
func (EventRecorder) Record(event types.VaultEvent) error {
	_, err := SaveVaultEvent(event)
	return err
}

// SaveVaultEvent saves a vault event and returns its database ID.
func SaveVaultEvent(event types.VaultEvent) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO vault_events (
            event_uuid, event_type, account, asset_denom, amount, shares, note, event_timestamp
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING event_id;`

	var eventID int64
	err := DB.QueryRow(
		stmt,
		event.EventUUID, string(event.Type), event.Account, event.AssetDenom,
		intOrZero(event.Amount), intOrZero(event.Shares), event.Note, event.Timestamp,
	).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault event: %w", err)
	}

	log.Debug().
		Int64("event_id", eventID).
		Str("type", string(event.Type)).
		Str("account", event.Account).
		Msg("Saved vault event")
	return eventID, nil
}

// GetRecentEvents retrieves the most recent vault events.
func GetRecentEvents(limit int) ([]types.VaultEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT event_id, event_uuid, event_type, account, asset_denom, amount, shares, note, event_timestamp
		FROM vault_events
		ORDER BY event_timestamp DESC, event_id DESC
		LIMIT $1;`

	return scanEvents(query, limit)
}

// GetEventsByAccount retrieves the most recent vault events for one account.
func GetEventsByAccount(account string, limit int) ([]types.VaultEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT event_id, event_uuid, event_type, account, asset_denom, amount, shares, note, event_timestamp
		FROM vault_events
		WHERE account = $1
		ORDER BY event_timestamp DESC, event_id DESC
		LIMIT $2;`

	return scanEvents(query, account, limit)
}

func scanEvents(query string, args ...interface{}) ([]types.VaultEvent, error) {
	rows, err := DB.Query(query, args...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query vault events")
		return nil, fmt.Errorf("failed to query vault events: %w", err)
	}
	defer rows.Close()

	var events []types.VaultEvent
	for rows.Next() {
		var event types.VaultEvent
		var eventType, amountStr, sharesStr string

		err := rows.Scan(
			&event.EventID, &event.EventUUID, &eventType, &event.Account, &event.AssetDenom,
			&amountStr, &sharesStr, &event.Note, &event.Timestamp,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan vault event row")
			continue // Skip this row and continue with others
		}

		event.Type = types.EventType(eventType)
		event.Amount, err = parseNumeric(amountStr)
		if err != nil {
			log.Error().Err(err).Int64("event_id", event.EventID).Msg("Failed to parse event amount")
			continue
		}
		event.Shares, err = parseNumeric(sharesStr)
		if err != nil {
			log.Error().Err(err).Int64("event_id", event.EventID).Msg("Failed to parse event shares")
			continue
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during event row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return events, nil
}

// intOrZero guards against nil sdkmath.Int values reaching the driver.
func intOrZero(value sdkmath.Int) string {
	if value.IsNil() {
		return "0"
	}
	return value.String()
}

// parseNumeric converts a NUMERIC column value back into an sdkmath.Int.
func parseNumeric(value string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("invalid numeric value: %q", value)
	}
	return parsed, nil
}

// parseDecimal converts a DECIMAL column value back into an sdkmath.LegacyDec.
func parseDecimal(value string) (sdkmath.LegacyDec, error) {
	parsed, err := sdkmath.LegacyNewDecFromStr(value)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("invalid decimal value %q: %w", value, err)
	}
	return parsed, nil
}
