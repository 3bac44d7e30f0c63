// Package iocache persists size estimates and scan history in SQL databases.
package iocache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
)

// StoreManager owns the estimate cache and the history store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during close
	cache        contract.EstimateCache
	history      contract.HistoryStore
	closeOnce    sync.Once
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// GetCacheDBFilePath returns the path to the SQLite DB file for the estimate cache.
func GetCacheDBFilePath() string {
	return contract.GetCacheDBFilePath()
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for scan history.
func GetHistoryDBFilePath() string {
	return contract.GetHistoryDBFilePath()
}

// Open initializes the configured stores. A NoneBackend store is left nil so
// callers can skip persistence entirely.
func Open(cacheBackend schema.DatabaseBackend, cacheConnStr string, historyBackend schema.DatabaseBackend, historyConnStr string) (*StoreManager, error) {
	mgr := &StoreManager{}

	if cacheBackend != "" && cacheBackend != schema.NoneBackend {
		cache, err := NewEstimateCache(cacheBackend, cacheConnStr)
		if err != nil {
			return nil, err
		}
		mgr.cache = cache
	}

	if historyBackend != "" && historyBackend != schema.NoneBackend {
		history, err := NewHistoryStore(historyBackend, historyConnStr)
		if err != nil {
			_ = mgr.Close()
			return nil, err
		}
		mgr.history = history
	}
	return mgr, nil
}

// OpenFromConfig opens the stores named by a validated configuration.
func OpenFromConfig(cfg *contract.Config) (*StoreManager, error) {
	return Open(cfg.CacheBackend, cfg.CacheDBConnect, cfg.HistoryBackend, cfg.HistoryDBConnect)
}

// GetHistoryStore returns the history store, nil when history is disabled.
func (mgr *StoreManager) GetHistoryStore() contract.HistoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.history
}

// GetEstimateCache returns the estimate cache, nil when caching is disabled.
func (mgr *StoreManager) GetEstimateCache() contract.EstimateCache {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.cache
}

// Close closes every open store. It is safe to call more than once.
func (mgr *StoreManager) Close() error {
	var err error
	mgr.closeOnce.Do(func() {
		mgr.Lock()
		defer mgr.Unlock()
		if mgr.cache != nil {
			err = errors.Join(err, mgr.cache.Close())
			mgr.cache = nil
		}
		if mgr.history != nil {
			err = errors.Join(err, mgr.history.Close())
			mgr.history = nil
		}
	})
	if err != nil {
		return fmt.Errorf("failed to close stores: %w", err)
	}
	return nil
}
