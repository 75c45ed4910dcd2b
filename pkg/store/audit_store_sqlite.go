package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// AuditRecord is the persisted form of an audit event. Metadata is stored
// as raw JSON so the table schema never chases event shapes.
type AuditRecord struct {
	ID        string
	TenantID  string
	Type      string
	Action    string
	Resource  string
	Timestamp time.Time
	Metadata  map[string]any
}

// SQLiteAuditStore is an append-only audit sink. Rows are never updated or
// deleted through this type.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore opens (or creates) the audit table in the given
// database file.
func NewSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit store: open %s: %w", path, err)
	}
	s := &SQLiteAuditStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			type       TEXT NOT NULL,
			action     TEXT NOT NULL,
			resource   TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			metadata   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_tenant_time
			ON audit_events (tenant_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("audit store: migrate: %w", err)
	}
	return nil
}

// Append inserts one audit record.
func (s *SQLiteAuditStore) Append(ctx context.Context, rec AuditRecord) error {
	var metadata []byte
	if rec.Metadata != nil {
		var err error
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("audit store: encode metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, tenant_id, type, action, resource, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Type, rec.Action, rec.Resource,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), string(metadata))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("audit store: %w: event %s", ErrAlreadyExists, rec.ID)
		}
		return fmt.Errorf("audit store: insert %s: %w", rec.ID, err)
	}
	return nil
}

// ByTenant returns the tenant's events in timestamp order, newest last.
func (s *SQLiteAuditStore) ByTenant(ctx context.Context, tenantID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, type, action, resource, timestamp, metadata
		FROM audit_events WHERE tenant_id = ?
		ORDER BY timestamp ASC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit store: query tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var ts, metadata string
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.Action,
			&rec.Resource, &ts, &metadata); err != nil {
			return nil, fmt.Errorf("audit store: scan: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("audit store: parse timestamp: %w", err)
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("audit store: decode metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteAuditStore) Close() error { return s.db.Close() }
