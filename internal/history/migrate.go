package history

import "github.com/jmoiron/sqlx"

// migrate creates run_history if absent, then adds any columns missing
// from an older copy of the table. Each new column gets its own
// pragma_table_info check rather than a numbered-migration framework —
// the schema has grown by exactly one column in its history, and a
// migration runner would outweigh what it manages.
func migrate(db *sqlx.DB) error {
	if _, err := db.Exec(createTableSQL); err != nil {
		return err
	}

	hasColumn, err := columnExists(db, "run_history", "database_results")
	if err != nil {
		return err
	}
	if !hasColumn {
		if _, err := db.Exec(`ALTER TABLE run_history ADD COLUMN database_results TEXT NOT NULL DEFAULT '[]'`); err != nil {
			return err
		}
		log.Info("added database_results column to run_history")
	}

	return nil
}

func columnExists(db *sqlx.DB, table, column string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
	if err := db.Get(&count, query, table, column); err != nil {
		return false, err
	}
	return count > 0, nil
}
