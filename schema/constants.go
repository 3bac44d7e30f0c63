package schema

// Custom string types for type safety.
type (
	// ScanTier represents the size class of a repository.
	ScanTier string

	// ScanLevel represents how aggressively a repository is sampled.
	ScanLevel string

	// FileStatus represents the outcome of scanning a single file.
	FileStatus string

	// Completeness represents whether a scan reached every sampled file.
	Completeness string

	// SessionState represents a state of the scan state machine.
	SessionState string

	// Confidence represents how much a size estimate can be trusted.
	Confidence string

	// CheckoutStrategy represents how repository content was materialized.
	CheckoutStrategy string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for persistence.
	DatabaseBackend string
)

// All scan tiers supported.
const (
	NormalTier     ScanTier = "normal"
	LargeTier      ScanTier = "large"
	UltraLargeTier ScanTier = "ultra_large"
	MassiveTier    ScanTier = "massive"
)

// All scan levels supported.
const (
	FastLevel     ScanLevel = "fast"
	StandardLevel ScanLevel = "standard"
	ThoroughLevel ScanLevel = "thorough"
	AdaptiveLevel ScanLevel = "adaptive" // default
)

// All per-file statuses.
const (
	StatusOK              FileStatus = "ok"
	StatusSkippedTooLarge FileStatus = "skipped_too_large"
	StatusReadError       FileStatus = "read_error"
	StatusAnalyzerError   FileStatus = "analyzer_error"
	StatusTimeout         FileStatus = "timeout"
)

// All completeness flags.
const (
	Complete         Completeness = "complete"
	PartialTimeout   Completeness = "partial_timeout"
	PartialCancelled Completeness = "partial_cancelled"
)

// All session states.
const (
	StateIdle        SessionState = "idle"
	StateEstimating  SessionState = "estimating"
	StateCloning     SessionState = "cloning"
	StateListing     SessionState = "listing"
	StateSampling    SessionState = "sampling"
	StateScanning    SessionState = "scanning"
	StateAggregating SessionState = "aggregating"
	StateCompleted   SessionState = "completed"
	StateFailed      SessionState = "failed"
	StateTimedOut    SessionState = "timed_out"
	StateCancelled   SessionState = "cancelled"
)

// All estimate confidences.
const (
	HighConfidence Confidence = "high"
	LowConfidence  Confidence = "low"
)

// All checkout strategies.
const (
	ShallowCheckout CheckoutStrategy = "shallow"
	SparseCheckout  CheckoutStrategy = "sparse"
	LocalCheckout   CheckoutStrategy = "local"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// AllFileStatuses lists every per-file status in reporting order.
var AllFileStatuses = []FileStatus{StatusOK, StatusSkippedTooLarge, StatusReadError, StatusAnalyzerError, StatusTimeout}

// ValidScanLevels lists all valid scan levels.
var ValidScanLevels = map[ScanLevel]struct{}{
	FastLevel:     {},
	StandardLevel: {},
	ThoroughLevel: {},
	AdaptiveLevel: {},
}

// ValidScanTiers lists all valid scan tiers.
var ValidScanTiers = map[ScanTier]struct{}{
	NormalTier:     {},
	LargeTier:      {},
	UltraLargeTier: {},
	MassiveTier:    {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// IsTerminal reports whether no further transitions are possible from s.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// Scanned reports whether a file with this status went through the scan stage.
func (s FileStatus) Scanned() bool {
	return s != StatusSkippedTooLarge && s != ""
}
