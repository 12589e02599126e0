// Package store provides the on-disk bundle cache and the in-memory resolution store.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"nlsbundle/internal/bundle"
)

const (
	// DefaultMaxResolutions bounds the number of bundle directories remembered per epoch.
	DefaultMaxResolutions = 1024
	// DefaultFalsePositiveRate is the bloom filter rate used by NewResolutionStore callers.
	DefaultFalsePositiveRate = 0.001
)

// Resolution is a resolved bundle together with the header it was resolved for.
type Resolution struct {
	Header bundle.Header
	Bundle bundle.Bundle
}

// ResolutionStore remembers the outcome of bundle resolution per bundle directory.
// A nil *Resolution records a failed resolution that must not be retried. Failures are kept
// for the whole epoch; resolved bundles are bounded and the least recently used is evicted,
// after which its directory resolves again on next use.
type ResolutionStore struct {
	entries           map[string]*Resolution
	failures          map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	maxEntries        int
	falsePositiveRate float64
}

// NewResolutionStore creates a store holding at most maxEntries resolved bundles.
func NewResolutionStore(maxEntries int, falsePositiveRate float64) *ResolutionStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxResolutions
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}
	rs := &ResolutionStore{
		entries:           make(map[string]*Resolution),
		failures:          make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(maxEntries), falsePositiveRate),
		maxEntries:        maxEntries,
		falsePositiveRate: falsePositiveRate,
	}
	// Evictions run inside Put, Remove and Clear, which already hold the mutex
	rs.lru, _ = lru.NewWithEvict(maxEntries, func(key string, _ struct{}) {
		delete(rs.entries, key)
	})
	return rs
}

// Get returns the remembered outcome for key. found is false when key was never resolved.
func (rs *ResolutionStore) Get(key string) (resolution *Resolution, found bool) {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	if !rs.bloom.TestString(key) {
		return nil, false
	}

	if _, failed := rs.failures[key]; failed {
		return nil, true
	}
	resolution, found = rs.entries[key]
	if found {
		rs.lru.Get(key)
	}
	return resolution, found
}

// Put records the outcome for key; a nil resolution marks a sticky failure.
func (rs *ResolutionStore) Put(key string, resolution *Resolution) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	rs.bloom.AddString(key)
	if resolution == nil {
		rs.lru.Remove(key)
		rs.failures[key] = struct{}{}
		return
	}

	delete(rs.failures, key)
	rs.entries[key] = resolution
	rs.lru.Add(key, struct{}{})
}

// Remove forgets the outcome for key.
func (rs *ResolutionStore) Remove(key string) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	delete(rs.failures, key)
	rs.lru.Remove(key)
	// The bloom filter keeps the key; Get falls back to the maps for the answer
}

// Size returns the number of remembered outcomes, failures included.
func (rs *ResolutionStore) Size() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.entries) + len(rs.failures)
}

// Failures returns the number of remembered failures.
func (rs *ResolutionStore) Failures() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.failures)
}

// Clear forgets every outcome, starting a new epoch.
func (rs *ResolutionStore) Clear() {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	rs.lru.Purge()
	rs.entries = make(map[string]*Resolution)
	rs.failures = make(map[string]struct{})
	rs.bloom = bloom.NewWithEstimates(uint(rs.maxEntries), rs.falsePositiveRate)
}
