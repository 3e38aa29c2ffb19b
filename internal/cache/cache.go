// Package cache implements the bounded LRU CRF cache (C4): a memoized
// mapping from (fingerprint, encoder kind, phase, CRF) to encode outcomes,
// shared across files within a process and optionally persisted as JSON.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/five82/mfboost/internal/fingerprint"
)

// Outcome mirrors the fields of an encode that the cache needs to recall.
// It intentionally only carries the subset of EncodeOutcome required for
// cache hits; the full record lives with the search controller.
type Outcome struct {
	CRF                    float64
	TotalBytes             uint64
	VideoStreamBytes       uint64
	ContainerOverheadBytes uint64
	SSIMY                  *float64
	SSIMAll                *float64
	MSSSIM                 *float64
	PSNR                   *float64
	WallSecs               float64
	Succeeded              bool
}

// Key identifies one cache entry.
type Key struct {
	Fingerprint string
	Encoder     fingerprint.EncoderKind
	Phase       string
	CRFKey      int64
}

// NewKey builds a Key from its constituent parts, converting crf to its
// fixed-point integer form.
func NewKey(fp fingerprint.Fingerprint, enc fingerprint.EncoderKind, phase string, crf float64) Key {
	return Key{Fingerprint: fp.String(), Encoder: enc, Phase: phase, CRFKey: fingerprint.CRFKey(crf)}
}

type entry struct {
	Value      Outcome `json:"value"`
	AccessedAt int64   `json:"accessed_at_ms"`
	CreatedAt  int64   `json:"created_at_ms"`
}

// Cache is a mutex-serialized, bounded LRU keyed by Key.
type Cache struct {
	mu         sync.Mutex
	capacity   int
	entries    map[Key]*entry
	evictCount int
	onEvict    func(evictedTotal int)
	lastStamp  int64
}

// New creates an empty cache bounded to capacity entries. capacity <= 0
// is treated as 1 (a cache that can never grow is still valid, just
// useless — callers should not do this, but it must not panic).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[Key]*entry, capacity),
	}
}

// OnEvict registers a callback invoked with the cumulative eviction count
// each time an entry is evicted, so callers can surface evictions loudly
// instead of silently dropping warm state.
func (c *Cache) OnEvict(fn func(evictedTotal int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the cached outcome for key, bumping its access time.
func (c *Cache) Get(key Key) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Outcome{}, false
	}
	e.AccessedAt = c.stampLocked()
	return e.Value, true
}

// stampLocked returns the current time in milliseconds, bumped past the
// previous stamp when needed, so accesses within one millisecond still get
// distinct increasing stamps and LRU order stays total.
func (c *Cache) stampLocked() int64 {
	now := nowMillis()
	if now <= c.lastStamp {
		now = c.lastStamp + 1
	}
	c.lastStamp = now
	return now
}

// Put inserts or updates an entry, evicting the least-recently-accessed
// entry if the cache is at capacity. A cache is never consulted across
// different fingerprints by construction of Key, since Key embeds the
// fingerprint string.
func (c *Cache) Put(key Key, value Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.stampLocked()
	if e, ok := c.entries[key]; ok {
		e.Value = value
		e.AccessedAt = now
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = &entry{Value: value, AccessedAt: now, CreatedAt: now}
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldestLocked() {
	var oldestKey Key
	var oldestAt int64
	first := true
	for k, e := range c.entries {
		if first || e.AccessedAt < oldestAt {
			oldestKey = k
			oldestAt = e.AccessedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.evictCount++
		if c.onEvict != nil {
			c.onEvict(c.evictCount)
		}
	}
}

// persistedFile is the on-disk JSON shape: {capacity, entries: [[key, entry]]}.
type persistedFile struct {
	Capacity int                `json:"capacity"`
	Entries  []persistedKeyPair `json:"entries"`
}

type persistedKeyPair struct {
	Key   persistedKey `json:"key"`
	Entry entry        `json:"entry"`
}

type persistedKey struct {
	Fingerprint string `json:"fingerprint"`
	Encoder     int    `json:"encoder"`
	Phase       string `json:"phase"`
	CRFKey      int64  `json:"crf_key"`
}

// SaveJSON persists the cache to path, best-effort (caller decides whether
// a write failure is Optional-severity).
func (c *Cache) SaveJSON(path string) error {
	c.mu.Lock()
	pf := persistedFile{Capacity: c.capacity}
	for k, e := range c.entries {
		pf.Entries = append(pf.Entries, persistedKeyPair{
			Key: persistedKey{
				Fingerprint: k.Fingerprint,
				Encoder:     int(k.Encoder),
				Phase:       k.Phase,
				CRFKey:      k.CRFKey,
			},
			Entry: *e,
		})
	}
	c.mu.Unlock()

	data, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadJSON loads a cache from path. A corrupt or missing file yields an
// empty cache of the requested fallback capacity and a non-nil error the
// caller should log as a loud (but non-fatal) warning — it never panics.
func LoadJSON(path string, fallbackCapacity int) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return New(fallbackCapacity), fmt.Errorf("cache: read %s: %w", path, err)
	}

	var pf persistedFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return New(fallbackCapacity), fmt.Errorf("cache: corrupt cache file %s: %w", path, err)
	}

	capacity := pf.Capacity
	if capacity <= 0 {
		capacity = fallbackCapacity
	}
	c := New(capacity)
	for _, pair := range pf.Entries {
		k := Key{
			Fingerprint: pair.Key.Fingerprint,
			Encoder:     fingerprint.EncoderKind(pair.Key.Encoder),
			Phase:       pair.Key.Phase,
			CRFKey:      pair.Key.CRFKey,
		}
		e := pair.Entry
		c.entries[k] = &e
		if len(c.entries) >= c.capacity {
			break
		}
	}
	return c, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
