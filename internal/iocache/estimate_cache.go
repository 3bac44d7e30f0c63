package iocache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
)

// EstimateCacheImpl stores size estimates in the estimate_cache table.
type EstimateCacheImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	now     func() time.Time
}

var _ contract.EstimateCache = &EstimateCacheImpl{} // Compile-time check

// NewEstimateCache opens the estimate cache for a backend and migrates its schema.
// NoneBackend yields a cache that never hits.
func NewEstimateCache(backend schema.DatabaseBackend, connStr string) (*EstimateCacheImpl, error) {
	if backend == schema.NoneBackend {
		return &EstimateCacheImpl{backend: backend, now: time.Now}, nil
	}
	db, err := openDB(backend, connStr, GetCacheDBFilePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize estimate cache: %w", err)
	}
	if err := migrateUp(db, backend); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &EstimateCacheImpl{db: db, backend: backend, now: time.Now}, nil
}

// Get returns the estimate stored under key if it is younger than ttl.
func (c *EstimateCacheImpl) Get(key string, ttl time.Duration) (schema.SizeEstimate, bool, error) {
	if c.db == nil {
		return schema.SizeEstimate{}, false, nil
	}

	query := rebind(fmt.Sprintf(`SELECT file_count, total_bytes, confidence, source, created_at FROM %s WHERE cache_key = ?`,
		quoteTableName(estimateCacheTable, c.backend)), c.backend)

	var rec schema.EstimateCacheRecord
	var createdAt int64
	err := c.db.QueryRow(query, key).Scan(&rec.FileCount, &rec.TotalBytes, &rec.Confidence, &rec.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.SizeEstimate{}, false, nil
	}
	if err != nil {
		return schema.SizeEstimate{}, false, fmt.Errorf("failed to read estimate cache: %w", err)
	}
	if ttl > 0 && c.now().Sub(time.Unix(createdAt, 0)) > ttl {
		return schema.SizeEstimate{}, false, nil
	}
	return schema.SizeEstimate{
		FileCount:  int(rec.FileCount),
		TotalBytes: rec.TotalBytes,
		Confidence: schema.Confidence(rec.Confidence),
		Source:     rec.Source,
		ProbedAt:   time.Unix(createdAt, 0),
	}, true, nil
}

// Set inserts or replaces the estimate stored under key.
func (c *EstimateCacheImpl) Set(key string, repository string, est schema.SizeEstimate) error {
	if c.db == nil {
		return nil
	}
	table := quoteTableName(estimateCacheTable, c.backend)
	columns := "(cache_key, repository, file_count, total_bytes, confidence, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"

	var query string
	switch c.backend {
	case schema.MySQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s %s AS new ON DUPLICATE KEY UPDATE
			repository = new.repository, file_count = new.file_count, total_bytes = new.total_bytes,
			confidence = new.confidence, source = new.source, created_at = new.created_at`, table, columns)
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s %s ON CONFLICT (cache_key) DO UPDATE SET
			repository = EXCLUDED.repository, file_count = EXCLUDED.file_count, total_bytes = EXCLUDED.total_bytes,
			confidence = EXCLUDED.confidence, source = EXCLUDED.source, created_at = EXCLUDED.created_at`, table, columns)
	default: // SQLite
		query = fmt.Sprintf(`INSERT OR REPLACE INTO %s %s`, table, columns)
	}

	_, err := c.db.Exec(rebind(query, c.backend),
		key, repository, int64(est.FileCount), est.TotalBytes, string(est.Confidence), est.Source, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write estimate cache: %w", err)
	}
	return nil
}

// GetStatus returns status information about the estimate cache.
func (c *EstimateCacheImpl) GetStatus(ttl time.Duration) (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(c.backend), Connected: c.db != nil}
	if c.db == nil {
		return status, nil
	}

	table := quoteTableName(estimateCacheTable, c.backend)
	var newest, oldest sql.NullInt64
	row := c.db.QueryRow(fmt.Sprintf("SELECT COUNT(*), MAX(created_at), MIN(created_at) FROM %s", table))
	if err := row.Scan(&status.TotalEntries, &newest, &oldest); err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}
	if status.TotalEntries == 0 {
		return status, nil
	}
	status.LastEntryTime = time.Unix(newest.Int64, 0)
	status.OldestEntryTime = time.Unix(oldest.Int64, 0)

	if ttl > 0 {
		cutoff := c.now().Add(-ttl).Unix()
		query := rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE created_at < ?", table), c.backend)
		if err := c.db.QueryRow(query, cutoff).Scan(&status.ExpiredEntries); err != nil {
			return status, fmt.Errorf("failed to count expired entries: %w", err)
		}
	}
	return status, nil
}

// Close closes the underlying DB connection.
func (c *EstimateCacheImpl) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
