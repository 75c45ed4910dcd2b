package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liye-os/kernel/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteEvidenceStore persists evidence packages in SQLite. The trace_id
// primary key makes write-once a database constraint rather than an
// application promise.
type SQLiteEvidenceStore struct {
	db *sql.DB
}

func NewSQLiteEvidenceStore(db *sql.DB) (*SQLiteEvidenceStore, error) {
	s := &SQLiteEvidenceStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEvidenceStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS evidence_packages (
        trace_id TEXT PRIMARY KEY,
        version TEXT NOT NULL,
        decision TEXT NOT NULL,
        decision_time DATETIME NOT NULL,
        policy_ref TEXT NOT NULL,
        inputs_hash TEXT NOT NULL,
        outputs_hash TEXT NOT NULL,
        package_hash TEXT NOT NULL,
        body JSON NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteEvidenceStore) Put(ctx context.Context, pkg *contracts.EvidencePackage) error {
	body, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("evidence store: marshal: %w", err)
	}

	query := `INSERT INTO evidence_packages (
		trace_id, version, decision, decision_time, policy_ref, inputs_hash, outputs_hash, package_hash, body
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		pkg.TraceID, pkg.Version, string(pkg.Decision),
		pkg.DecisionTime.UTC().Format(time.RFC3339Nano),
		pkg.PolicyRef, pkg.InputsHash, pkg.OutputsHash,
		pkg.Integrity.PackageHash, string(body),
	)
	if err != nil {
		// Primary key violation means a package for this trace already
		// exists; surface it as the write-once failure, not a DB error.
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: trace_id %s", ErrAlreadyExists, pkg.TraceID)
		}
		return fmt.Errorf("evidence store: insert: %w", err)
	}
	return nil
}

func (s *SQLiteEvidenceStore) Get(ctx context.Context, traceID string) (*contracts.EvidencePackage, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM evidence_packages WHERE trace_id = ?`, traceID,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: trace_id %s", ErrNotFound, traceID)
	}
	if err != nil {
		return nil, fmt.Errorf("evidence store: query: %w", err)
	}

	var pkg contracts.EvidencePackage
	if err := json.Unmarshal([]byte(body), &pkg); err != nil {
		return nil, fmt.Errorf("evidence store: decode: %w", err)
	}
	return &pkg, nil
}
