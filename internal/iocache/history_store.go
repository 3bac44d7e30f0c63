package iocache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
)

// HistoryStoreImpl records scan runs and their per-file results.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore opens the history database for a backend and migrates its schema.
// NoneBackend yields a store that records nothing.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (*HistoryStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &HistoryStoreImpl{backend: backend}, nil
	}
	db, err := openDB(backend, connStr, GetHistoryDBFilePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	if err := migrateUp(db, backend); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HistoryStoreImpl{db: db, backend: backend}, nil
}

func (hs *HistoryStoreImpl) table(name string) string { return quoteTableName(name, hs.backend) }

// BeginScan creates a new scan run and returns its unique ID.
func (hs *HistoryStoreImpl) BeginScan(startTime time.Time, sessionID string, desc schema.RepositoryDescriptor, level schema.ScanLevel) (int64, error) {
	if hs.db == nil {
		return 0, nil
	}

	var runID int64
	switch hs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (session_id, repository, branch, scan_level, start_time) VALUES ($1, $2, $3, $4, $5) RETURNING run_id`, hs.table(scanRunsTable))
		if err := hs.db.QueryRow(query, sessionID, desc.URL, desc.Branch, string(level), startTime).Scan(&runID); err != nil {
			return 0, fmt.Errorf("failed to insert scan run: %w", err)
		}
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (session_id, repository, branch, scan_level, start_time) VALUES (?, ?, ?, ?, ?)`, hs.table(scanRunsTable))
		result, err := hs.db.Exec(query, sessionID, desc.URL, desc.Branch, string(level), formatTime(startTime, hs.backend))
		if err != nil {
			return 0, fmt.Errorf("failed to insert scan run: %w", err)
		}
		if runID, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("failed to read scan run id: %w", err)
		}
	}
	return runID, nil
}

// RecordFileResults stores per-file outcomes for a run in one transaction.
func (hs *HistoryStoreImpl) RecordFileResults(runID int64, results []schema.FileScanResult) error {
	if hs.db == nil || len(results) == 0 {
		return nil
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := rebind(fmt.Sprintf(`INSERT INTO %s (run_id, file_path, size_bytes, extension, status, finding_count, elapsed_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, hs.table(fileResultsTable)), hs.backend)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare file result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		rec := schema.NewFileResultRecord(runID, r)
		if _, err := stmt.Exec(rec.RunID, rec.FilePath, rec.SizeBytes, rec.Extension, rec.Status,
			rec.FindingCount, rec.ElapsedMs, rec.ErrorMessage); err != nil {
			return fmt.Errorf("failed to insert file result %s: %w", rec.FilePath, err)
		}
	}
	return tx.Commit()
}

// EndScan updates the run with the final summary.
func (hs *HistoryStoreImpl) EndScan(runID int64, endTime time.Time, summary schema.ScanSummary) error {
	if hs.db == nil {
		return nil
	}

	var start timeColumn
	query := rebind(fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, hs.table(scanRunsTable)), hs.backend)
	if err := hs.db.QueryRow(query, runID).Scan(&start); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(start.value).Milliseconds()

	update := rebind(fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, tier = ?, total_files_listed = ?,
		sampled_files = ?, scanned_files = ?, findings_count = ?, completeness = ?, sample_fingerprint = ?,
		peak_memory_bytes = ?, workers_used = ? WHERE run_id = ?`, hs.table(scanRunsTable)), hs.backend)
	_, err := hs.db.Exec(update,
		formatTime(endTime, hs.backend), durationMs, string(summary.Tier), summary.TotalFilesListed,
		summary.SampledFiles, summary.ScannedFiles, summary.TotalFindings(), string(summary.Completeness),
		summary.SampleFingerprint, int64(summary.Performance.PeakMemoryBytes), summary.Performance.WorkersUsed, runID)
	if err != nil {
		return fmt.Errorf("failed to update scan run: %w", err)
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:           string(hs.backend),
		Connected:         hs.db != nil,
		CompletenessCount: make(map[string]int),
		TableSizes:        make(map[string]int64),
	}
	if hs.db == nil {
		return status, nil
	}

	for _, table := range []string{scanRunsTable, fileResultsTable} {
		var count int64
		if err := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", hs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalRuns = int(status.TableSizes[scanRunsTable])
	status.TotalFileResults = int(status.TableSizes[fileResultsTable])
	if status.TotalRuns == 0 {
		return status, nil
	}

	var last, oldest timeColumn
	row := hs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", hs.table(scanRunsTable)))
	if err := row.Scan(&status.LastRunID, &last); err != nil {
		return status, fmt.Errorf("failed to get last run info: %w", err)
	}
	status.LastRunTime = last.value

	row = hs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", hs.table(scanRunsTable)))
	if err := row.Scan(&oldest); err != nil {
		return status, fmt.Errorf("failed to get oldest run time: %w", err)
	}
	status.OldestRunTime = oldest.value

	rows, err := hs.db.Query(fmt.Sprintf("SELECT completeness, COUNT(*) FROM %s GROUP BY completeness", hs.table(scanRunsTable)))
	if err != nil {
		return status, fmt.Errorf("failed to count runs by completeness: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return status, fmt.Errorf("failed to scan completeness count: %w", err)
		}
		if c == "" {
			c = "unfinished"
		}
		status.CompletenessCount[c] = n
	}
	return status, rows.Err()
}

// GetAllScanRuns retrieves all scan runs from the store.
func (hs *HistoryStoreImpl) GetAllScanRuns() ([]schema.ScanRunRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, session_id, repository, branch, tier, scan_level, start_time, end_time,
		run_duration_ms, total_files_listed, sampled_files, scanned_files, findings_count, completeness,
		sample_fingerprint, peak_memory_bytes, workers_used FROM %s ORDER BY run_id`, hs.table(scanRunsTable))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ScanRunRecord
	for rows.Next() {
		var rec schema.ScanRunRecord
		var start, end timeColumn
		if err := rows.Scan(&rec.RunID, &rec.SessionID, &rec.Repository, &rec.Branch, &rec.Tier, &rec.ScanLevel,
			&start, &end, &rec.RunDurationMs, &rec.TotalFilesListed, &rec.SampledFiles, &rec.ScannedFiles,
			&rec.FindingsCount, &rec.Completeness, &rec.Fingerprint, &rec.PeakMemoryBytes, &rec.WorkersUsed); err != nil {
			return nil, fmt.Errorf("failed to scan scan run: %w", err)
		}
		rec.StartTime = start.value
		rec.EndTime = end.ptr()
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan runs: %w", err)
	}
	return results, nil
}

// GetAllFileResults retrieves all per-file results from the store.
func (hs *HistoryStoreImpl) GetAllFileResults() ([]schema.FileResultRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, file_path, size_bytes, extension, status, finding_count, elapsed_ms, error_message
		FROM %s ORDER BY run_id, file_path`, hs.table(fileResultsTable))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query file results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.FileResultRecord
	for rows.Next() {
		var rec schema.FileResultRecord
		if err := rows.Scan(&rec.RunID, &rec.FilePath, &rec.SizeBytes, &rec.Extension, &rec.Status,
			&rec.FindingCount, &rec.ElapsedMs, &rec.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan file result: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file results: %w", err)
	}
	return results, nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}
