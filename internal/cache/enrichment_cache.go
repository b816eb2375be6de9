package cache

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
)

// EnrichmentCache uses dual bloom filters to skip phone lookups that were
// already answered. A positive answer may be a false positive; a negative
// answer is always exact.
type EnrichmentCache struct {
	enrichedFilter *bloom.BloomFilter // numbers whose location was copied onto a contact
	noDataFilter   *bloom.BloomFilter // numbers the lookup had nothing for
	mu             sync.RWMutex
	hits           atomic.Int64
	misses         atomic.Int64
}

// NewEnrichmentCache creates a new dual bloom filter cache
func NewEnrichmentCache(expected uint, fpRate float64) *EnrichmentCache {
	return &EnrichmentCache{
		enrichedFilter: bloom.NewWithEstimates(expected, fpRate),
		noDataFilter:   bloom.NewWithEstimates(expected, fpRate),
	}
}

// generateKey hashes the number with FNV-1a so formatting of the stored
// filter key does not depend on input length.
func (c *EnrichmentCache) generateKey(phoneNumber string) string {
	h := fnv.New64a()
	h.Write([]byte(phoneNumber))
	return fmt.Sprintf("%x", h.Sum64())
}

// Check reports what is known about phoneNumber.
func (c *EnrichmentCache) Check(phoneNumber string) Status {
	key := c.generateKey(phoneNumber)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.enrichedFilter.TestString(key) {
		c.hits.Add(1)
		observer.IncEnrichmentCacheCheck(true)
		return StatusMaybeEnriched
	}
	if c.noDataFilter.TestString(key) {
		c.hits.Add(1)
		observer.IncEnrichmentCacheCheck(true)
		return StatusMaybeNoData
	}

	c.misses.Add(1)
	observer.IncEnrichmentCacheCheck(false)
	return StatusUnknown
}

// MarkEnriched records that phoneNumber produced location data.
func (c *EnrichmentCache) MarkEnriched(phoneNumber string) {
	key := c.generateKey(phoneNumber)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrichedFilter.AddString(key)
}

// MarkNoData records that the lookup had nothing for phoneNumber.
func (c *EnrichmentCache) MarkNoData(phoneNumber string) {
	key := c.generateKey(phoneNumber)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.noDataFilter.AddString(key)
}

// Reset forgets every number, e.g. after the contact set was reloaded.
func (c *EnrichmentCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrichedFilter.ClearAll()
	c.noDataFilter.ClearAll()
	c.hits.Store(0)
	c.misses.Store(0)
}

// GetStats returns cache statistics
func (c *EnrichmentCache) GetStats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	c.mu.RLock()
	enrichedSize := c.enrichedFilter.ApproximatedSize()
	noDataSize := c.noDataFilter.ApproximatedSize()
	c.mu.RUnlock()

	return Stats{
		Hits:         hits,
		Misses:       misses,
		HitRate:      hitRate,
		EnrichedSize: uint64(enrichedSize),
		NoDataSize:   uint64(noDataSize),
	}
}

// Status represents the cache check result
type Status int

const (
	StatusUnknown Status = iota
	StatusMaybeEnriched
	StatusMaybeNoData
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusMaybeEnriched:
		return "maybe_enriched"
	case StatusMaybeNoData:
		return "maybe_no_data"
	default:
		return "unknown"
	}
}

type Stats struct {
	Hits         int64
	Misses       int64
	HitRate      float64
	EnrichedSize uint64
	NoDataSize   uint64
}
