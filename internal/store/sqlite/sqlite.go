// Package sqlite is the concrete, pure-Go SQLite-backed implementation of
// the store façade, carrying the same versioned-migration convention the
// rest of the service's persistence layer has always used: a
// schema_version table, sequential "if version < N" migration blocks, and
// an ensureTableColumn helper for additive changes.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/stadam23/tradeup-ev/internal/logger"
	"github.com/stadam23/tradeup-ev/internal/store"
)

// DB is the sqlite-backed Store implementation.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the database at path and runs every
// pending migration.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // single-writer, matches the WAL single-writer model

	d := &DB{sql: conn}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	if _, err := d.sql.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	version := 0
	row := d.sql.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&version); err == sql.ErrNoRows {
		if _, err := d.sql.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("seeding schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("reading schema_version: %w", err)
	}

	if version < 1 {
		if _, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS collections (
				id TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				steam_tag TEXT NOT NULL UNIQUE,
				normalized_name TEXT NOT NULL
			)
		`); err != nil {
			return fmt.Errorf("migration v1 (collections): %w", err)
		}
		if _, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS skins (
				market_hash_name TEXT PRIMARY KEY,
				collection_id TEXT NOT NULL REFERENCES collections(id),
				base_name TEXT NOT NULL,
				exterior TEXT NOT NULL,
				rarity TEXT NOT NULL,
				is_stat_trak INTEGER NOT NULL DEFAULT 0,
				is_souvenir INTEGER NOT NULL DEFAULT 0,
				sell_listings INTEGER NOT NULL DEFAULT 0,
				last_known_price REAL,
				float_min REAL,
				float_max REAL
			)
		`); err != nil {
			return fmt.Errorf("migration v1 (skins): %w", err)
		}
		if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_skins_collection ON skins(collection_id)`); err != nil {
			return fmt.Errorf("migration v1 (skins index): %w", err)
		}
		if _, err := bumpVersion(d.sql, 1); err != nil {
			return err
		}
		logger.Info("DB", "applied migration v1: collections, skins")
		version = 1
	}

	if version < 2 {
		if _, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS catalog_state (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				ready INTEGER NOT NULL DEFAULT 0
			)
		`); err != nil {
			return fmt.Errorf("migration v2 (catalog_state): %w", err)
		}
		if _, err := d.sql.Exec(`INSERT OR IGNORE INTO catalog_state (id, ready) VALUES (1, 0)`); err != nil {
			return fmt.Errorf("migration v2 (seed catalog_state): %w", err)
		}
		if _, err := bumpVersion(d.sql, 2); err != nil {
			return err
		}
		logger.Info("DB", "applied migration v2: catalog_state")
		version = 2
	}

	if err := ensureTableColumn(d.sql, "skins", "sell_listings", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}

	return nil
}

func bumpVersion(conn *sql.DB, v int) (sql.Result, error) {
	res, err := conn.Exec(`UPDATE schema_version SET version = ?`, v)
	if err != nil {
		return nil, fmt.Errorf("bumping schema_version to %d: %w", v, err)
	}
	return res, nil
}

// ensureTableColumn adds columnDef to tableName as columnName if absent,
// the additive-migration convention for changes too small to warrant a
// dedicated version bump.
func ensureTableColumn(conn *sql.DB, tableName, columnName, columnDef string) error {
	rows, err := conn.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, tableName))
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning table_info(%s): %w", tableName, err)
		}
		if name == columnName {
			return nil
		}
	}

	if _, err := conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, tableName, columnName, columnDef)); err != nil {
		return fmt.Errorf("adding column %s.%s: %w", tableName, columnName, err)
	}
	logger.Info("DB", fmt.Sprintf("added column %s.%s", tableName, columnName))
	return nil
}

var _ store.Store = (*DB)(nil)
