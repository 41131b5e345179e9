// Package history persists completed maintenance runs to a local SQLite
// database, independent of the live event stream consumed by the UI.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"dev.helix.sqlmaint/internal/logging"
	"dev.helix.sqlmaint/internal/maintenance"
)

var log = logging.Named("history")

const createTableSQL = `
CREATE TABLE IF NOT EXISTS run_history (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id                TEXT    NOT NULL,
	profile_name              TEXT    NOT NULL,
	server                    TEXT    NOT NULL,
	started_at                TEXT    NOT NULL,
	finished_at               TEXT    NOT NULL,
	databases_processed       INTEGER NOT NULL DEFAULT 0,
	databases_failed          INTEGER NOT NULL DEFAULT 0,
	databases_skipped         INTEGER NOT NULL DEFAULT 0,
	total_indexes_rebuilt     INTEGER NOT NULL DEFAULT 0,
	total_indexes_reorganized INTEGER NOT NULL DEFAULT 0,
	total_indexes_skipped     INTEGER NOT NULL DEFAULT 0,
	total_duration_secs       REAL    NOT NULL DEFAULT 0,
	database_results          TEXT    NOT NULL DEFAULT '[]'
);`

// Store wraps a SQLite-backed run_history table.
type Store struct {
	db *sqlx.DB
}

// Open connects to (creating if absent) the SQLite file at path and runs
// the table-creation and column-migration steps.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PersistRun inserts one completed run. It satisfies maintenance.HistoryPersister.
func (s *Store) PersistRun(ctx context.Context, profileID, profileName, server, startedAt, finishedAt string, summary maintenance.MaintenanceSummary) error {
	resultsJSON, err := json.Marshal(summary.DatabaseResults)
	if err != nil {
		resultsJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_history (
			profile_id, profile_name, server, started_at, finished_at,
			databases_processed, databases_failed, databases_skipped,
			total_indexes_rebuilt, total_indexes_reorganized, total_indexes_skipped,
			total_duration_secs, database_results
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profileID, profileName, server, startedAt, finishedAt,
		summary.DatabasesProcessed, summary.DatabasesFailed, summary.DatabasesSkipped,
		summary.TotalIndexesRebuilt, summary.TotalIndexesReorganized, summary.TotalIndexesSkipped,
		summary.TotalDurationSecs, string(resultsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run history: %w", err)
	}
	return nil
}

// GetRuns returns the most recent limit runs, optionally filtered to one
// profile, newest first.
func (s *Store) GetRuns(ctx context.Context, profileID *string, limit int) ([]maintenance.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if profileID != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, profile_id, profile_name, server, started_at, finished_at,
				databases_processed, databases_failed, databases_skipped,
				total_indexes_rebuilt, total_indexes_reorganized, total_indexes_skipped,
				total_duration_secs, database_results
			FROM run_history WHERE profile_id = ? ORDER BY id DESC LIMIT ?`, *profileID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, profile_id, profile_name, server, started_at, finished_at,
				databases_processed, databases_failed, databases_skipped,
				total_indexes_rebuilt, total_indexes_reorganized, total_indexes_skipped,
				total_duration_secs, database_results
			FROM run_history ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []maintenance.RunRecord
	for rows.Next() {
		var r maintenance.RunRecord
		var resultsJSON string
		if err := rows.Scan(
			&r.ID, &r.ProfileID, &r.ProfileName, &r.Server, &r.StartedAt, &r.FinishedAt,
			&r.DatabasesProcessed, &r.DatabasesFailed, &r.DatabasesSkipped,
			&r.TotalIndexesRebuilt, &r.TotalIndexesReorganized, &r.TotalIndexesSkipped,
			&r.TotalDurationSecs, &resultsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan run history row: %w", err)
		}
		r.DatabaseResultsJSON = resultsJSON
		if err := json.Unmarshal([]byte(resultsJSON), &r.DatabaseResults); err != nil {
			r.DatabaseResults = nil
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRuns removes history rows, optionally scoped to one profile.
func (s *Store) DeleteRuns(ctx context.Context, profileID *string) error {
	var err error
	if profileID != nil {
		_, err = s.db.ExecContext(ctx, `DELETE FROM run_history WHERE profile_id = ?`, *profileID)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM run_history`)
	}
	if err != nil {
		return fmt.Errorf("delete run history: %w", err)
	}
	return nil
}
