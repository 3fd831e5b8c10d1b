package storage

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		for _, create := range []func(*sql.Tx) error{
			createSchemaVersionTable,
			createRunsTable,
			createSpansTable,
			createPairsTable,
		} {
			if err := create(tx); err != nil {
				return err
			}
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Debug("Dataset schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations brings an existing database to the current schema version.
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		return nil
	}
	if version == 0 {
		return db.initializeSchema()
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("dataset schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}

func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createRunsTable creates the runs table: one row per diagnose, transform or patch run.
func createRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('diagnose', 'transform', 'patch')),
			project TEXT NOT NULL,
			revision TEXT,
			rules_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

func createSpansTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS spans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			rule TEXT NOT NULL,
			severity TEXT NOT NULL,
			start_byte INTEGER NOT NULL,
			end_byte INTEGER NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			suggestion TEXT,
			note TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL CHECK(phase IN ('before', 'after')),
			resolved INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create spans table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_spans_run ON spans(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_spans_rule ON spans(rule)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func createPairsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS pairs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			rule TEXT NOT NULL,
			path TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			encoding TEXT NOT NULL CHECK(encoding IN ('identity', 'zstd')),
			before_body BLOB NOT NULL,
			after_body BLOB NOT NULL,
			spans_json TEXT NOT NULL,
			UNIQUE(run_id, rule, path, start_offset)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create pairs table: %w", err)
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_pairs_rule ON pairs(rule)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
