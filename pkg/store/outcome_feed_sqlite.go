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

// SQLiteOutcomeFeed persists outcome events durably. INSERT-only; there is
// no update or delete path.
type SQLiteOutcomeFeed struct {
	db *sql.DB
}

func NewSQLiteOutcomeFeed(db *sql.DB) (*SQLiteOutcomeFeed, error) {
	f := &SQLiteOutcomeFeed{db: db}
	if err := f.migrate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *SQLiteOutcomeFeed) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS action_outcomes (
        event_id TEXT PRIMARY KEY,
        trace_id TEXT NOT NULL,
        observation_id TEXT,
        action_id TEXT NOT NULL,
        cause_id TEXT,
        status TEXT NOT NULL,
        execution_mode TEXT,
        success INTEGER,
        timestamp DATETIME NOT NULL,
        duration_ms INTEGER NOT NULL DEFAULT 0,
        body JSON NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_outcomes_action ON action_outcomes(action_id, timestamp);`
	_, err := f.db.ExecContext(context.Background(), query)
	return err
}

func (f *SQLiteOutcomeFeed) Append(ctx context.Context, event *contracts.ActionOutcomeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("outcome feed: marshal: %w", err)
	}

	var success interface{}
	if event.Success != nil {
		success = *event.Success
	}

	query := `INSERT INTO action_outcomes (
		event_id, trace_id, observation_id, action_id, cause_id, status, execution_mode, success, timestamp, duration_ms, body
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = f.db.ExecContext(ctx, query,
		event.EventID, event.TraceID, event.ObservationID, event.ActionID,
		event.CauseID, string(event.Status), string(event.ExecutionMode),
		success, event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.DurationMs, string(body),
	)
	if err != nil {
		return fmt.Errorf("outcome feed: insert: %w", err)
	}
	return nil
}

func (f *SQLiteOutcomeFeed) Query(ctx context.Context, filter OutcomeFilter) ([]*contracts.ActionOutcomeEvent, error) {
	query := `SELECT body FROM action_outcomes WHERE 1=1`
	args := []interface{}{}
	if filter.ActionID != "" {
		query += ` AND action_id = ?`
		args = append(args, filter.ActionID)
	}
	if filter.TraceID != "" {
		query += ` AND trace_id = ?`
		args = append(args, filter.TraceID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY timestamp ASC`
	if filter.MaxResults > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.MaxResults)
	}

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("outcome feed: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*contracts.ActionOutcomeEvent
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("outcome feed: scan: %w", err)
		}
		var e contracts.ActionOutcomeEvent
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("outcome feed: decode: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
