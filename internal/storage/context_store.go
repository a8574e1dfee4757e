package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// ContextStore is the durable, entity-scoped store of cached facts,
// historical signals, and recent outputs.
type ContextStore struct {
	db *sql.DB
}

// NewContextStore opens (creating if needed) the context database.
func NewContextStore(path string) (*ContextStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	cs := &ContextStore{db: db}
	if err := cs.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return cs, nil
}

// Close releases the underlying database handle.
func (cs *ContextStore) Close() error { return cs.db.Close() }

func (cs *ContextStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cached_facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity TEXT NOT NULL,
			fact_type TEXT NOT NULL,
			fact_data TEXT NOT NULL,
			confidence_score REAL DEFAULT 0.0,
			source TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP,
			UNIQUE(entity, fact_type)
		)`,
		`CREATE TABLE IF NOT EXISTS historical_signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			signal_value REAL,
			signal_data TEXT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS recent_outputs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT,
			entity TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			output_data TEXT NOT NULL,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ttl_seconds INTEGER DEFAULT 3600
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_fact ON cached_facts(entity, fact_type)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_signal ON historical_signals(entity, signal_type, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_output ON recent_outputs(entity, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_request_output ON recent_outputs(request_id)`,
	}
	for _, stmt := range stmts {
		if _, err := cs.db.Exec(stmt); err != nil {
			return fmt.Errorf("init context schema: %w", err)
		}
	}
	return nil
}

// StoreFact upserts a fact keyed by (entity, factType). A non-positive
// expiresInHours stores the fact without expiry.
func (cs *ContextStore) StoreFact(ctx context.Context, entity, factType string, data map[string]interface{}, confidence float64, source string, expiresInHours int) error {
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var expiresAt interface{}
	if expiresInHours > 0 {
		expiresAt = now.Add(time.Duration(expiresInHours) * time.Hour).Format(time.RFC3339Nano)
	}

	_, err = cs.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cached_facts
		(entity, fact_type, fact_data, confidence_score, source, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entity, factType, dataJSON, confidence, source, now.Format(time.RFC3339Nano), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store fact %s/%s: %w", entity, factType, err)
	}
	return nil
}

// GetFact returns the fact for (entity, factType), or nil if absent or expired.
func (cs *ContextStore) GetFact(ctx context.Context, entity, factType string) (*types.Fact, error) {
	row := cs.db.QueryRowContext(ctx, `
		SELECT fact_type, fact_data, confidence_score, source, created_at, updated_at, expires_at
		FROM cached_facts
		WHERE entity = ? AND fact_type = ?
		AND (expires_at IS NULL OR expires_at > ?)`,
		entity, factType, time.Now().UTC().Format(time.RFC3339Nano),
	)
	fact, err := scanFact(row, entity)
	if err != nil || fact == nil {
		return fact, err
	}
	return fact, nil
}

// GetAllFacts returns all non-expired facts for an entity, most recently
// updated first.
func (cs *ContextStore) GetAllFacts(ctx context.Context, entity string) ([]types.Fact, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT fact_type, fact_data, confidence_score, source, created_at, updated_at, expires_at
		FROM cached_facts
		WHERE entity = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY updated_at DESC`,
		entity, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query facts for %s: %w", entity, err)
	}
	defer rows.Close()

	facts := []types.Fact{}
	for rows.Next() {
		fact, err := scanFact(rows, entity)
		if err != nil {
			return nil, err
		}
		facts = append(facts, *fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// StoreSignal appends a time-series observation. Signals are never updated.
func (cs *ContextStore) StoreSignal(ctx context.Context, entity, signalType string, value *float64, data, metadata map[string]interface{}) error {
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return err
	}
	metaJSON, err := marshalJSON(metadata)
	if err != nil {
		return err
	}

	var valueArg interface{}
	if value != nil {
		valueArg = *value
	}
	var dataArg, metaArg interface{}
	if dataJSON != "" {
		dataArg = dataJSON
	}
	if metaJSON != "" {
		metaArg = metaJSON
	}

	_, err = cs.db.ExecContext(ctx, `
		INSERT INTO historical_signals (entity, signal_type, signal_value, signal_data, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entity, signalType, valueArg, dataArg, time.Now().UTC().Format(time.RFC3339Nano), metaArg,
	)
	if err != nil {
		return fmt.Errorf("store signal %s/%s: %w", entity, signalType, err)
	}
	return nil
}

// GetSignals returns signals within the lookback window, newest first.
// An empty signalType matches all types.
func (cs *ContextStore) GetSignals(ctx context.Context, entity, signalType string, hoursBack int) ([]types.Signal, error) {
	if hoursBack <= 0 {
		hoursBack = 168
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour).Format(time.RFC3339Nano)

	query := `
		SELECT signal_type, signal_value, signal_data, timestamp, metadata
		FROM historical_signals
		WHERE entity = ? AND timestamp > ?`
	args := []interface{}{entity, cutoff}
	if signalType != "" {
		query += ` AND signal_type = ?`
		args = append(args, signalType)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := cs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals for %s: %w", entity, err)
	}
	defer rows.Close()

	signals := []types.Signal{}
	for rows.Next() {
		var (
			sig       types.Signal
			value     sql.NullFloat64
			dataRaw   sql.NullString
			metaRaw   sql.NullString
			tsValue   interface{}
			signalTyp string
		)
		if err := rows.Scan(&signalTyp, &value, &dataRaw, &tsValue, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Entity = entity
		sig.SignalType = signalTyp
		if value.Valid {
			v := value.Float64
			sig.Value = &v
		}
		if sig.Data, err = unmarshalMap(dataRaw); err != nil {
			return nil, err
		}
		if sig.Metadata, err = unmarshalMap(metaRaw); err != nil {
			return nil, err
		}
		if sig.Timestamp, err = parseDBTime(tsValue); err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

// StoreOutput appends a recent output with its own TTL.
func (cs *ContextStore) StoreOutput(ctx context.Context, requestID, entity, agentName string, data map[string]interface{}, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return err
	}
	_, err = cs.db.ExecContext(ctx, `
		INSERT INTO recent_outputs (request_id, entity, agent_name, output_data, timestamp, ttl_seconds)
		VALUES (?, ?, ?, ?, ?, ?)`,
		requestID, entity, agentName, dataJSON, time.Now().UTC().Format(time.RFC3339Nano), ttlSeconds,
	)
	if err != nil {
		return fmt.Errorf("store output %s/%s: %w", entity, agentName, err)
	}
	return nil
}

// GetRecentOutputs returns recent outputs for an entity, newest first.
// Rows whose elapsed time exceeds their own TTL are purged first; the purge
// is global across entities and runs on every read.
func (cs *ContextStore) GetRecentOutputs(ctx context.Context, entity, agentName string, limit int) ([]types.RecentOutput, error) {
	if limit <= 0 {
		limit = 10
	}
	if err := cs.purgeExpiredOutputs(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT request_id, agent_name, output_data, timestamp, ttl_seconds
		FROM recent_outputs
		WHERE entity = ?`
	args := []interface{}{entity}
	if agentName != "" {
		query += ` AND agent_name = ?`
		args = append(args, agentName)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := cs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outputs for %s: %w", entity, err)
	}
	defer rows.Close()

	outputs := []types.RecentOutput{}
	for rows.Next() {
		var (
			out       types.RecentOutput
			requestID sql.NullString
			dataRaw   sql.NullString
			tsValue   interface{}
		)
		if err := rows.Scan(&requestID, &out.AgentName, &dataRaw, &tsValue, &out.TTLSeconds); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out.Entity = entity
		if requestID.Valid {
			out.RequestID = requestID.String
		}
		if out.Data, err = unmarshalMap(dataRaw); err != nil {
			return nil, err
		}
		if out.Timestamp, err = parseDBTime(tsValue); err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return outputs, nil
}

func (cs *ContextStore) purgeExpiredOutputs(ctx context.Context) error {
	_, err := cs.db.ExecContext(ctx, `
		DELETE FROM recent_outputs
		WHERE (julianday('now') - julianday(timestamp)) * 86400 > ttl_seconds`)
	if err != nil {
		return fmt.Errorf("purge expired outputs: %w", err)
	}
	return nil
}

// CleanupExpired batch-deletes expired facts and TTL-elapsed outputs.
// Idempotent and safe to call repeatedly.
func (cs *ContextStore) CleanupExpired(ctx context.Context) error {
	if _, err := cs.db.ExecContext(ctx, `
		DELETE FROM cached_facts
		WHERE expires_at IS NOT NULL AND expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("cleanup expired facts: %w", err)
	}
	return cs.purgeExpiredOutputs(ctx)
}

func scanFact(scanner interface{ Scan(dest ...interface{}) error }, entity string) (*types.Fact, error) {
	var (
		fact       types.Fact
		dataRaw    sql.NullString
		source     sql.NullString
		createdRaw interface{}
		updatedRaw interface{}
		expiresRaw sql.NullString
	)
	err := scanner.Scan(&fact.FactType, &dataRaw, &fact.ConfidenceScore, &source, &createdRaw, &updatedRaw, &expiresRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan fact: %w", err)
	}
	fact.Entity = entity
	if source.Valid {
		fact.Source = source.String
	}
	if fact.Data, err = unmarshalMap(dataRaw); err != nil {
		return nil, err
	}
	if fact.CreatedAt, err = parseDBTime(createdRaw); err != nil {
		return nil, err
	}
	if fact.UpdatedAt, err = parseDBTime(updatedRaw); err != nil {
		return nil, err
	}
	if expiresRaw.Valid && expiresRaw.String != "" {
		t, err := parseTimeString(expiresRaw.String)
		if err != nil {
			return nil, err
		}
		fact.ExpiresAt = &t
	}
	return &fact, nil
}
