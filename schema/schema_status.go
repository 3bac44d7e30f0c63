package schema

import "time"

// CacheStatus represents the status of the estimate cache.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	ExpiredEntries  int       `json:"expired_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
}

// HistoryStatus represents the status of the scan history store.
type HistoryStatus struct {
	Backend           string           `json:"backend"`
	Connected         bool             `json:"connected"`
	TotalRuns         int              `json:"total_runs"`
	LastRunID         int64            `json:"last_run_id"`
	LastRunTime       time.Time        `json:"last_run_time"`
	OldestRunTime     time.Time        `json:"oldest_run_time"`
	TotalFileResults  int              `json:"total_file_results"`
	CompletenessCount map[string]int   `json:"completeness_count"`
	TableSizes        map[string]int64 `json:"table_sizes"`
}
