package iocache

import (
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetHistoryStore implements the StoreManager interface.
func (m *MockStoreManager) GetHistoryStore() contract.HistoryStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.HistoryStore)
	return store
}

// GetEstimateCache implements the StoreManager interface.
func (m *MockStoreManager) GetEstimateCache() contract.EstimateCache {
	ret := m.Called()
	cache, _ := ret.Get(0).(contract.EstimateCache)
	return cache
}

// MockHistoryStore is a mock implementation of HistoryStore for testing.
type MockHistoryStore struct {
	mock.Mock
}

var _ contract.HistoryStore = &MockHistoryStore{} // Compile-time check

// BeginScan implements the HistoryStore interface.
func (m *MockHistoryStore) BeginScan(startTime time.Time, sessionID string, desc schema.RepositoryDescriptor, level schema.ScanLevel) (int64, error) {
	args := m.Called(startTime, sessionID, desc, level)
	return args.Get(0).(int64), args.Error(1)
}

// RecordFileResults implements the HistoryStore interface.
func (m *MockHistoryStore) RecordFileResults(runID int64, results []schema.FileScanResult) error {
	args := m.Called(runID, results)
	return args.Error(0)
}

// EndScan implements the HistoryStore interface.
func (m *MockHistoryStore) EndScan(runID int64, endTime time.Time, summary schema.ScanSummary) error {
	args := m.Called(runID, endTime, summary)
	return args.Error(0)
}

// GetStatus implements the HistoryStore interface.
func (m *MockHistoryStore) GetStatus() (schema.HistoryStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.HistoryStatus), args.Error(1)
}

// GetAllScanRuns implements the HistoryStore interface.
func (m *MockHistoryStore) GetAllScanRuns() ([]schema.ScanRunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.ScanRunRecord)
	return runs, args.Error(1)
}

// GetAllFileResults implements the HistoryStore interface.
func (m *MockHistoryStore) GetAllFileResults() ([]schema.FileResultRecord, error) {
	args := m.Called()
	files, _ := args.Get(0).([]schema.FileResultRecord)
	return files, args.Error(1)
}

// Close implements the HistoryStore interface.
func (m *MockHistoryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEstimateCache is a mock implementation of EstimateCache for testing.
type MockEstimateCache struct {
	mock.Mock
}

var _ contract.EstimateCache = &MockEstimateCache{} // Compile-time check

// Get implements the EstimateCache interface.
func (m *MockEstimateCache) Get(key string, ttl time.Duration) (schema.SizeEstimate, bool, error) {
	args := m.Called(key, ttl)
	return args.Get(0).(schema.SizeEstimate), args.Bool(1), args.Error(2)
}

// Set implements the EstimateCache interface.
func (m *MockEstimateCache) Set(key string, repository string, est schema.SizeEstimate) error {
	args := m.Called(key, repository, est)
	return args.Error(0)
}

// GetStatus implements the EstimateCache interface.
func (m *MockEstimateCache) GetStatus(ttl time.Duration) (schema.CacheStatus, error) {
	args := m.Called(ttl)
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Close implements the EstimateCache interface.
func (m *MockEstimateCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
