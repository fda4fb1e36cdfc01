// Package resultcache is the per-process, per-block result cache of
// spec.md §4.9: a bounded LRU keyed by task_id with (caller, height)
// secondary indexes, block-aware window eviction, and reorg rewind.
// The LRU mechanics come from golang-lru/v2's simplelru.LRU; the
// block-aware eviction and reorg rewind on top of it are grounded on
// node/store/reorg.go's fork-point / disconnect-to-fork-point shape
// (drop-by-height here, rather than undo-log replay, but the same
// "determine the cut point, then mutate under one critical section"
// structure).
package resultcache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
)

// Stats mirrors spec.md §4.9's required counters.
type Stats struct {
	Items          int
	Hits           int64
	Misses         int64
	Puts           int64
	Evictions      int64
	ReorgResets    int64
	HeightsTracked int
}

type entry struct {
	record          jobs.ResultRecord
	availableHeight int64
	caller          string
}

// Cache is the result cache. Zero value is not usable; construct with
// New. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	lru        *simplelru.LRU[[32]byte, entry]
	byCaller   map[string]map[[32]byte]struct{}
	byHeight   map[int64]map[[32]byte]struct{}
	head       int64
	headKnown  bool
	keepBlocks int64
	stats      Stats
}

// New builds a cache bounded to maxItems entries, with a sliding
// window of keepBlocks behind the current head once begin_block has
// been called at least once.
func New(maxItems int, keepBlocks int64) (*Cache, error) {
	if maxItems <= 0 {
		return nil, caperrors.New(caperrors.InvalidInput, "resultcache: max_items must be > 0")
	}
	if keepBlocks < 0 {
		return nil, caperrors.New(caperrors.InvalidInput, "resultcache: keep_blocks must be >= 0")
	}
	c := &Cache{
		byCaller:   make(map[string]map[[32]byte]struct{}),
		byHeight:   make(map[int64]map[[32]byte]struct{}),
		keepBlocks: keepBlocks,
	}
	lru, err := simplelru.NewLRU[[32]byte, entry](maxItems, c.onEvict)
	if err != nil {
		return nil, caperrors.Wrap(caperrors.CapError, "resultcache: lru construction failed", err)
	}
	c.lru = lru
	return c, nil
}

// onEvict runs under c.mu (simplelru calls it synchronously from
// within Add/Remove/RemoveOldest) and keeps the secondary indexes
// consistent with whatever the LRU drops for capacity reasons.
func (c *Cache) onEvict(taskID [32]byte, e entry) {
	c.unindex(taskID, e)
	c.stats.Evictions++
}

func (c *Cache) unindex(taskID [32]byte, e entry) {
	if set, ok := c.byCaller[e.caller]; ok {
		delete(set, taskID)
		if len(set) == 0 {
			delete(c.byCaller, e.caller)
		}
	}
	if set, ok := c.byHeight[e.availableHeight]; ok {
		delete(set, taskID)
		if len(set) == 0 {
			delete(c.byHeight, e.availableHeight)
		}
	}
}

func (c *Cache) index(taskID [32]byte, e entry) {
	if c.byCaller[e.caller] == nil {
		c.byCaller[e.caller] = make(map[[32]byte]struct{})
	}
	c.byCaller[e.caller][taskID] = struct{}{}
	if c.byHeight[e.availableHeight] == nil {
		c.byHeight[e.availableHeight] = make(map[[32]byte]struct{})
	}
	c.byHeight[e.availableHeight][taskID] = struct{}{}
}

// BeginBlock advances the cache's notion of the chain head. Height
// increasing beyond the window evicts anything older than
// keep_blocks; height decreasing is a reorg: every entry whose
// available_height exceeds the new head is evicted and reorg_resets
// is incremented, per spec.md §4.9.
func (c *Cache) BeginBlock(height int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevHead := c.head
	prevKnown := c.headKnown
	c.head = height
	c.headKnown = true

	if prevKnown && height < prevHead {
		c.stats.ReorgResets++
		c.evictAboveLocked(height)
		return
	}
	c.evictBelowWindowLocked()
}

// evictAboveLocked drops every entry with available_height > newHead.
// Used for reorg rewind; must hold c.mu.
func (c *Cache) evictAboveLocked(newHead int64) {
	for h, set := range c.byHeight {
		if h <= newHead {
			continue
		}
		for taskID := range set {
			c.lru.Remove(taskID)
		}
	}
}

// evictBelowWindowLocked drops entries older than the sliding window.
// Must hold c.mu.
func (c *Cache) evictBelowWindowLocked() {
	cutoff := c.head - c.keepBlocks
	for h, set := range c.byHeight {
		if h > cutoff {
			continue
		}
		for taskID := range set {
			c.lru.Remove(taskID)
		}
	}
}

// Put inserts or replaces the record for task_id, associating it with
// caller and available_height for the secondary indexes. LRU
// touch-on-write semantics apply, and window eviction is re-enforced
// if the head is already known.
func (c *Cache) Put(taskID [32]byte, rec jobs.ResultRecord, availableHeight int64, caller []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(taskID); ok {
		c.unindex(taskID, old)
	}
	e := entry{record: rec, availableHeight: availableHeight, caller: string(caller)}
	c.lru.Add(taskID, e)
	c.index(taskID, e)
	c.stats.Puts++

	if c.headKnown {
		c.evictBelowWindowLocked()
	}
}

// Get returns the record for task_id and touches its LRU recency.
func (c *Cache) Get(taskID [32]byte) (jobs.ResultRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(taskID)
	if !ok {
		c.stats.Misses++
		return jobs.ResultRecord{}, false
	}
	c.stats.Hits++
	return e.record, true
}

// Has reports presence without touching LRU recency or hit/miss
// counters.
func (c *Cache) Has(taskID [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(taskID)
}

// Clear empties the cache and its secondary indexes. Counters are not
// reset; they describe the cache's lifetime, not its contents.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.byCaller = make(map[string]map[[32]byte]struct{})
	c.byHeight = make(map[int64]map[[32]byte]struct{})
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Items = c.lru.Len()
	s.HeightsTracked = len(c.byHeight)
	return s
}
