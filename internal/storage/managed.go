package storage

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// ManagedStore is the content-addressed store for validated agent payloads,
// registered schemas, and the analysis job ledger.
type ManagedStore struct {
	db *sql.DB
}

// NewManagedStore opens (creating if needed) the managed storage database.
func NewManagedStore(path string) (*ManagedStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	ms := &ManagedStore{db: db}
	if err := ms.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return ms, nil
}

// Close releases the underlying database handle.
func (ms *ManagedStore) Close() error { return ms.db.Close() }

func (ms *ManagedStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS managed_storage (
			storage_key TEXT PRIMARY KEY,
			entity TEXT NOT NULL,
			agent_type TEXT NOT NULL,
			storage_type TEXT NOT NULL,
			data TEXT NOT NULL,
			schema_version TEXT DEFAULT '1.0',
			confidence_score REAL DEFAULT 0.0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP,
			tags TEXT,
			source TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS storage_index (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			storage_key TEXT NOT NULL,
			field_name TEXT NOT NULL,
			field_value TEXT NOT NULL,
			FOREIGN KEY (storage_key) REFERENCES managed_storage(storage_key)
		)`,
		`CREATE TABLE IF NOT EXISTS schema_registry (
			schema_name TEXT PRIMARY KEY,
			schema_version TEXT NOT NULL,
			schema_body TEXT NOT NULL,
			registered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			job_id TEXT PRIMARY KEY,
			entity TEXT NOT NULL,
			status TEXT NOT NULL,
			result TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_managed_entity ON managed_storage(entity, agent_type, storage_type)`,
		`CREATE INDEX IF NOT EXISTS idx_managed_created ON managed_storage(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_storage_index_field ON storage_index(field_name, field_value)`,
		`CREATE INDEX IF NOT EXISTS idx_storage_index_key ON storage_index(storage_key)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_entity ON analysis_jobs(entity)`,
	}
	for _, stmt := range stmts {
		if _, err := ms.db.Exec(stmt); err != nil {
			return fmt.Errorf("init managed schema: %w", err)
		}
	}
	return nil
}

// StorageKey derives the deterministic content address for one payload.
// Identical (entity, agentType, data) triples always map to the same key,
// so re-storing identical content replaces rather than duplicates.
func StorageKey(entity, agentType string, data map[string]interface{}) (string, error) {
	canonical, err := marshalJSON(data)
	if err != nil {
		return "", err
	}
	contentHash := md5.Sum([]byte(canonical))
	seed := fmt.Sprintf("%s:%s:%s", entity, agentType, hex.EncodeToString(contentHash[:]))
	full := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(full[:])[:16], nil
}

// Store persists one managed item and rewrites its inverted index rows.
// Returns the content-derived storage key.
func (ms *ManagedStore) Store(ctx context.Context, req types.StoreRequest) (string, error) {
	key, err := StorageKey(req.Entity, req.AgentType, req.Data)
	if err != nil {
		return "", err
	}
	dataJSON, err := marshalJSON(req.Data)
	if err != nil {
		return "", err
	}
	tagsJSON, err := marshalJSON(req.Tags)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	var expiresAt interface{}
	if req.ExpiresInHours > 0 {
		expiresAt = now.Add(time.Duration(req.ExpiresInHours) * time.Hour).Format(time.RFC3339Nano)
	}
	schemaVersion := req.SchemaVersion
	if schemaVersion == "" {
		schemaVersion = "1.0"
	}
	storageType := req.StorageType
	if storageType == "" {
		storageType = types.StorageTypeFact
	}

	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin store tx: %w", err)
	}
	defer rollbackTx(tx, "store managed item")

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO managed_storage
		(storage_key, entity, agent_type, storage_type, data, schema_version,
		 confidence_score, updated_at, expires_at, tags, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, req.Entity, req.AgentType, string(storageType), dataJSON, schemaVersion,
		req.ConfidenceScore, now.Format(time.RFC3339Nano), expiresAt, tagsJSON, req.Source,
	)
	if err != nil {
		return "", fmt.Errorf("store managed item %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM storage_index WHERE storage_key = ?`, key); err != nil {
		return "", fmt.Errorf("reset index for %s: %w", key, err)
	}
	for _, field := range req.IndexFields {
		value, ok := req.Data[field]
		if !ok || value == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO storage_index (storage_key, field_name, field_value)
			VALUES (?, ?, ?)`,
			key, field, fmt.Sprintf("%v", value),
		); err != nil {
			return "", fmt.Errorf("index field %s for %s: %w", field, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit store tx: %w", err)
	}
	return key, nil
}

// defaultRetrieveLimit caps reads when the caller does not ask for a limit.
const defaultRetrieveLimit = 10

// Retrieve returns managed items matching all supplied filter criteria,
// newest first. Expired items are excluded unless IncludeExpired is set.
// A zero or negative Limit falls back to defaultRetrieveLimit.
func (ms *ManagedStore) Retrieve(ctx context.Context, filter types.RetrieveFilter) ([]types.ManagedItem, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultRetrieveLimit
	}
	query := `
		SELECT storage_key, entity, agent_type, storage_type, data, schema_version,
		       confidence_score, created_at, updated_at, expires_at, tags, source
		FROM managed_storage WHERE 1=1`
	args := []interface{}{}
	if filter.Entity != "" {
		query += ` AND entity = ?`
		args = append(args, filter.Entity)
	}
	if filter.AgentType != "" {
		query += ` AND agent_type = ?`
		args = append(args, filter.AgentType)
	}
	if filter.StorageType != "" {
		query += ` AND storage_type = ?`
		args = append(args, string(filter.StorageType))
	}
	if filter.MinConfidence > 0 {
		query += ` AND confidence_score >= ?`
		args = append(args, filter.MinConfidence)
	}
	if !filter.IncludeExpired {
		query += ` AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := ms.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query managed items: %w", err)
	}
	defer rows.Close()
	return scanManagedItems(rows)
}

// RetrieveByIndex looks items up through the inverted index, newest first.
// A zero or negative limit falls back to defaultRetrieveLimit.
func (ms *ManagedStore) RetrieveByIndex(ctx context.Context, fieldName, fieldValue, entity string, limit int) ([]types.ManagedItem, error) {
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}
	query := `
		SELECT m.storage_key, m.entity, m.agent_type, m.storage_type, m.data, m.schema_version,
		       m.confidence_score, m.created_at, m.updated_at, m.expires_at, m.tags, m.source
		FROM managed_storage m
		JOIN storage_index i ON i.storage_key = m.storage_key
		WHERE i.field_name = ? AND i.field_value = ?
		AND (m.expires_at IS NULL OR m.expires_at > ?)`
	args := []interface{}{fieldName, fieldValue, time.Now().UTC().Format(time.RFC3339Nano)}
	if entity != "" {
		query += ` AND m.entity = ?`
		args = append(args, entity)
	}
	query += ` ORDER BY m.created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := ms.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query index %s=%s: %w", fieldName, fieldValue, err)
	}
	defer rows.Close()
	return scanManagedItems(rows)
}

// GetLatest returns the newest non-expired item for (entity, agentType),
// or nil when none exists. An empty storageType matches every tier.
func (ms *ManagedStore) GetLatest(ctx context.Context, entity, agentType string, storageType types.StorageType) (*types.ManagedItem, error) {
	items, err := ms.Retrieve(ctx, types.RetrieveFilter{
		Entity:      entity,
		AgentType:   agentType,
		StorageType: storageType,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// RegisterSchema stores or replaces a named schema definition.
func (ms *ManagedStore) RegisterSchema(ctx context.Context, name, version string, body map[string]interface{}) error {
	bodyJSON, err := marshalJSON(body)
	if err != nil {
		return err
	}
	_, err = ms.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO schema_registry (schema_name, schema_version, schema_body, registered_at)
		VALUES (?, ?, ?, ?)`,
		name, version, bodyJSON, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("register schema %s: %w", name, err)
	}
	return nil
}

// GetSchema returns a registered schema body and version, or nil when absent.
func (ms *ManagedStore) GetSchema(ctx context.Context, name string) (map[string]interface{}, string, error) {
	var (
		bodyRaw sql.NullString
		version string
	)
	err := ms.db.QueryRowContext(ctx, `
		SELECT schema_body, schema_version FROM schema_registry WHERE schema_name = ?`,
		name,
	).Scan(&bodyRaw, &version)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get schema %s: %w", name, err)
	}
	body, err := unmarshalMap(bodyRaw)
	if err != nil {
		return nil, "", err
	}
	return body, version, nil
}

// CreateJob opens a new analysis job in the queued state.
func (ms *ManagedStore) CreateJob(ctx context.Context, entity string) (*types.Job, error) {
	now := time.Now().UTC()
	job := &types.Job{
		ID:        uuid.New().String(),
		Entity:    entity,
		Status:    types.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := ms.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (job_id, entity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Entity, string(job.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("create job for %s: %w", entity, err)
	}
	return job, nil
}

// UpdateJob advances a job's status and replaces its result wholesale.
// Backward status moves are rejected. A nil result leaves the stored
// result untouched.
func (ms *ManagedStore) UpdateJob(ctx context.Context, jobID string, status types.JobStatus, result map[string]interface{}) error {
	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer rollbackTx(tx, "update job")

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM analysis_jobs WHERE job_id = ?`, jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return fmt.Errorf("read job %s: %w", jobID, err)
	}
	if err := types.ValidateJobTransition(types.JobStatus(current), status); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if result != nil {
		resultJSON, err := marshalJSON(result)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE analysis_jobs SET status = ?, result = ?, updated_at = ? WHERE job_id = ?`,
			string(status), resultJSON, now, jobID,
		)
		if err != nil {
			return fmt.Errorf("update job %s: %w", jobID, err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE analysis_jobs SET status = ?, updated_at = ? WHERE job_id = ?`,
			string(status), now, jobID,
		)
		if err != nil {
			return fmt.Errorf("update job %s: %w", jobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job tx: %w", err)
	}
	return nil
}

// GetJob returns a job by id, or nil when unknown.
func (ms *ManagedStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var (
		job        types.Job
		status     string
		resultRaw  sql.NullString
		createdRaw interface{}
		updatedRaw interface{}
	)
	err := ms.db.QueryRowContext(ctx, `
		SELECT job_id, entity, status, result, created_at, updated_at
		FROM analysis_jobs WHERE job_id = ?`,
		jobID,
	).Scan(&job.ID, &job.Entity, &status, &resultRaw, &createdRaw, &updatedRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	job.Status = types.JobStatus(status)
	if job.Result, err = unmarshalMap(resultRaw); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseDBTime(createdRaw); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseDBTime(updatedRaw); err != nil {
		return nil, err
	}
	return &job, nil
}

// CleanupExpired removes expired managed items and their index rows.
// Idempotent and safe to call repeatedly.
func (ms *ManagedStore) CleanupExpired(ctx context.Context) (int64, error) {
	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup tx: %w", err)
	}
	defer rollbackTx(tx, "cleanup managed items")

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM storage_index WHERE storage_key IN (
			SELECT storage_key FROM managed_storage
			WHERE expires_at IS NOT NULL AND expires_at < ?
		)`, now); err != nil {
		return 0, fmt.Errorf("cleanup index entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		DELETE FROM managed_storage WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup managed items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup tx: %w", err)
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}

func scanManagedItems(rows *sql.Rows) ([]types.ManagedItem, error) {
	items := []types.ManagedItem{}
	for rows.Next() {
		var (
			item        types.ManagedItem
			storageType string
			dataRaw     sql.NullString
			createdRaw  interface{}
			updatedRaw  interface{}
			expiresRaw  sql.NullString
			tagsRaw     sql.NullString
			source      sql.NullString
		)
		err := rows.Scan(&item.StorageKey, &item.Entity, &item.AgentType, &storageType,
			&dataRaw, &item.Metadata.SchemaVersion, &item.Metadata.ConfidenceScore,
			&createdRaw, &updatedRaw, &expiresRaw, &tagsRaw, &source)
		if err != nil {
			return nil, fmt.Errorf("scan managed item: %w", err)
		}
		item.StorageType = types.StorageType(storageType)
		if item.Data, err = unmarshalMap(dataRaw); err != nil {
			return nil, err
		}
		if item.CreatedAt, err = parseDBTime(createdRaw); err != nil {
			return nil, err
		}
		item.Metadata.CreatedAt = item.CreatedAt
		if item.Metadata.UpdatedAt, err = parseDBTime(updatedRaw); err != nil {
			return nil, err
		}
		if expiresRaw.Valid && expiresRaw.String != "" {
			t, err := parseTimeString(expiresRaw.String)
			if err != nil {
				return nil, err
			}
			item.Metadata.ExpiresAt = &t
		}
		if tagsRaw.Valid && tagsRaw.String != "" {
			var tags []string
			if err := unmarshalInto(tagsRaw.String, &tags); err != nil {
				return nil, err
			}
			item.Metadata.Tags = tags
		}
		if source.Valid {
			item.Metadata.Source = source.String
		}
		item.Metadata.Entity = item.Entity
		item.Metadata.AgentType = item.AgentType
		item.Metadata.StorageType = item.StorageType
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managed items: %w", err)
	}
	return items, nil
}
