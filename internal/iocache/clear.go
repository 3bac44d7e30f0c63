package iocache

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/huangsam/reposcan/schema"
)

// ClearHistory removes recorded scan history.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the history tables and the migration record.
// For NoneBackend, it does nothing.
func ClearHistory(backend schema.DatabaseBackend, connStr string) error {
	return clearStore(backend, connStr, GetHistoryDBFilePath(), scanRunsTable, fileResultsTable, migrationsTable)
}

// ClearCache removes cached size estimates.
// Dropping the migration record makes the next open recreate the table.
func ClearCache(backend schema.DatabaseBackend, connStr string) error {
	return clearStore(backend, connStr, GetCacheDBFilePath(), estimateCacheTable, migrationsTable)
}

func clearStore(backend schema.DatabaseBackend, connStr, defaultPath string, tables ...string) error {
	switch backend {
	case schema.NoneBackend, "":
		return nil

	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = defaultPath
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbPath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		db, err := openDB(backend, connStr, "")
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return dropTables(db, backend, tables...)

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

func dropTables(db *sql.DB, backend schema.DatabaseBackend, tables ...string) error {
	for _, table := range tables {
		if err := validateTableName(table); err != nil {
			return err
		}
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(table, backend))); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
