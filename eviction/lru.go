// Package eviction implements the LRUEntriesMap and EvictionController
// (spec §4.4, §4.8): the approximate-LRU list layered on a ConcurrentEntriesMap
// and the process-wide heap-usage controller that drives it.
package eviction

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"regioncache/config"
	"regioncache/entry"
)

var logger = logrus.WithFields(logrus.Fields{"component": "eviction"})

// PersistenceManager is the overflow-to-disk collaborator (spec §6): Write
// is called when a victim is overflowed, Read when a get() finds the
// OVERFLOWED sentinel and must restore the value.
type PersistenceManager interface {
	Write(key any, value any) (persistenceInfo any, err error)
	Read(key any, persistenceInfo any) (value any, err error)
	Destroy(key any, persistenceInfo any) error
}

// node is one link in the LRU list. Entries reference their node by index
// (entry.LRUProperties.NextIndex) rather than by live pointer, so a MapEntry
// removed from its segment does not keep a list node alive (spec §9).
type node struct {
	key  any
	e    *entry.Entry
	next int   // index into arena; -1 terminates the list
	size int64 // keySize+valueSize recorded at Track time, reused on evict
}

// LRUEntriesMap layers LRU bookkeeping on top of a backing entries map. It
// takes no dependency on segment.ConcurrentEntriesMap's concrete type: Map
// is the minimal surface it needs, so it can wrap the real cache engine or a
// fake in tests.
type Map interface {
	Get(key any) (*entry.Entry, bool)
	ContainsKey(key any) bool
}

// LRUEntriesMap is the LRU list plus eviction-action dispatch described in
// spec §4.4. The list itself is protected by its own mutex, distinct from
// any segment lock — list maintenance only ever touches RecentlyUsed,
// Evicted, and NextIndex, never an entry's value or version stamp (spec
// §9's locking discipline).
type LRUEntriesMap struct {
	mu sync.Mutex

	arena []node
	head  int // -1 if empty
	tail  int

	backing Map
	limit   int
	action  config.LRUEvictionAction
	persist PersistenceManager

	validCount     atomic.Int64
	currentMapSize atomic.Int64

	onSizeDelta func(delta int64)
}

// NewLRUEntriesMap constructs an LRU layer with the given entry-count limit
// and eviction action. onSizeDelta is invoked whenever currentMapSize
// changes, feeding the shared EvictionController's heap counter (spec
// §4.4's "reports deltas to the EvictionController"); it may be nil.
func NewLRUEntriesMap(backing Map, limit int, action config.LRUEvictionAction, persist PersistenceManager, onSizeDelta func(delta int64)) *LRUEntriesMap {
	return &LRUEntriesMap{
		arena:       make([]node, 0, limit),
		head:        -1,
		tail:        -1,
		backing:     backing,
		limit:       limit,
		action:      action,
		persist:     persist,
		onSizeDelta: onSizeDelta,
	}
}

// Track registers a freshly inserted entry with the LRU list and accounts
// for its footprint. keySize/valueSize are caller-estimated byte counts
// (the engine has no reflection-based sizer; callers that care about
// accurate heap accounting supply their own estimator).
func (m *LRUEntriesMap) Track(key any, e *entry.Entry, keySize, valueSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.arena)
	m.arena = append(m.arena, node{key: key, e: e, next: -1, size: keySize + valueSize})
	e.LRU().NextIndex = idx

	if m.tail == -1 {
		m.head, m.tail = idx, idx
	} else {
		m.arena[m.tail].next = idx
		m.tail = idx
	}
	m.validCount.Add(1)
	m.addSize(keySize + valueSize)
}

// Touch marks key's entry recently-used (spec §4.4: "On each get that finds
// a plain value, the entry's recentlyUsed is set").
func (m *LRUEntriesMap) Touch(e *entry.Entry) {
	if e.HasLRU() {
		e.LRU().RecentlyUsed = true
	}
}

// Untrack removes a destroyed/invalidated entry's footprint from the
// running size estimate and decrements the valid count. The list node
// itself is left in place with Evicted set; processLRU's scan discards it
// lazily rather than unlinking under a second lock acquisition.
func (m *LRUEntriesMap) Untrack(e *entry.Entry, keySize, valueSize int64) {
	if e.HasLRU() {
		e.LRU().Evicted = true
	}
	m.validCount.Add(-1)
	m.addSize(-(keySize + valueSize))
}

func (m *LRUEntriesMap) addSize(delta int64) {
	m.currentMapSize.Add(delta)
	if m.onSizeDelta != nil {
		m.onSizeDelta(delta)
	}
}

// ValidCount is the number of non-evicted entries the LRU list is tracking.
func (m *LRUEntriesMap) ValidCount() int64 { return m.validCount.Load() }

// CurrentMapSize is the running footprint estimate in bytes.
func (m *LRUEntriesMap) CurrentMapSize() int64 { return m.currentMapSize.Load() }

// MustEvict is true when the region's own count limit is exceeded (spec
// §4.4/§8: "lruLimit == 0 with heap-LRU disabled: mustEvict() always
// false").
func (m *LRUEntriesMap) MustEvict() bool {
	if m.limit <= 0 {
		return false
	}
	return m.validCount.Load() > int64(m.limit)
}

// victimLocked walks the list from head, discarding evicted nodes and
// demoting-then-requeueing recently-used ones, returning the first node
// that is neither (spec §4.4's scan rule) or ok=false if the list is
// exhausted without finding one.
func (m *LRUEntriesMap) victimLocked() (idx int, ok bool) {
	for m.head != -1 {
		cur := m.head
		n := &m.arena[cur]
		m.head = n.next
		if m.head == -1 {
			m.tail = -1
		}
		n.next = -1

		if n.e.LRU().Evicted {
			continue
		}
		if n.e.LRU().RecentlyUsed {
			n.e.LRU().RecentlyUsed = false
			// re-append to tail
			if m.tail == -1 {
				m.head, m.tail = cur, cur
			} else {
				m.arena[m.tail].next = cur
				m.tail = cur
			}
			continue
		}
		return cur, true
	}
	return 0, false
}

// ProcessLRU implements spec §4.4's eviction loop: while mustEvict() holds,
// evict successive victims via the configured action. It stops and returns
// the first persistence error encountered, per "on persistent-store
// failure it stops and surfaces the error".
func (m *LRUEntriesMap) ProcessLRU(destroy func(key any) error, localInvalidate func(key any) error) error {
	for m.MustEvict() {
		m.mu.Lock()
		idx, ok := m.victimLocked()
		if !ok {
			m.mu.Unlock()
			return nil
		}
		victim := m.arena[idx]
		m.mu.Unlock()

		if err := m.evictOne(victim, destroy, localInvalidate); err != nil {
			return err
		}
	}
	return nil
}

func (m *LRUEntriesMap) evictOne(n node, destroy func(key any) error, localInvalidate func(key any) error) error {
	switch m.action {
	case config.OverflowToDisk:
		return m.overflowToDisk(n)
	case config.LocalInvalidate:
		if err := localInvalidate(n.key); err != nil {
			return err
		}
		n.e.LRU().Evicted = true
		m.validCount.Add(-1)
		m.addSize(-n.size)
		return nil
	default: // LocalDestroy, Destroy: the action distinction is the
		// caller's (region layer decides local vs. distributed destroy);
		// the LRU map only needs "make this key go away".
		if err := destroy(n.key); err != nil {
			return err
		}
		n.e.LRU().Evicted = true
		m.validCount.Add(-1)
		m.addSize(-n.size)
		return nil
	}
}

// overflowToDisk implements spec §4.4's OVERFLOW_TO_DISK action: write the
// value out, replace it in memory with the OVERFLOWED token, mark evicted,
// and decrement the valid count (the on-disk copy is not "valid" in the
// in-memory sense until it is read back).
func (m *LRUEntriesMap) overflowToDisk(n node) error {
	if m.persist == nil {
		logger.Warn("overflow-to-disk action configured without a persistence manager")
		return nil
	}
	value := n.e.Value()
	if !value.IsReal() {
		return nil
	}
	info, err := m.persist.Write(n.key, value.Payload)
	if err != nil {
		return err
	}
	n.e.LRU().PersistenceInfo = info
	n.e.SetValue(entry.OverflowedValue())
	n.e.LRU().Evicted = true
	m.validCount.Add(-1)
	m.addSize(-n.size)
	logger.WithFields(logrus.Fields{"key": n.key}).Debug("entry overflowed to disk")
	return nil
}

// Restore implements the "get on an overflowed entry re-reads from disk"
// half of spec §4.4: reads the value back, restores it in memory, and
// re-appends the entry to the LRU tail.
func (m *LRUEntriesMap) Restore(key any, e *entry.Entry) (any, error) {
	if !e.HasLRU() || !e.Value().IsSentinel(entry.Overflowed) {
		return nil, nil
	}
	if m.persist == nil {
		return nil, nil
	}
	value, err := m.persist.Read(key, e.LRU().PersistenceInfo)
	if err != nil {
		return nil, err
	}
	e.SetValue(entry.Real(value))
	e.LRU().Evicted = false
	e.LRU().RecentlyUsed = true
	e.LRU().PersistenceInfo = nil
	m.validCount.Add(1)

	// The original Track-time size estimate is gone once a node is evicted;
	// re-crediting with a fresh, rough estimate keeps currentMapSize from
	// drifting to zero across repeated overflow/restore cycles, even though
	// it will not exactly match what Track recorded originally.
	restoredSize := roughSize(key) + roughSize(value)
	m.addSize(restoredSize)

	m.mu.Lock()
	idx := len(m.arena)
	m.arena = append(m.arena, node{key: key, e: e, next: -1, size: restoredSize})
	e.LRU().NextIndex = idx
	if m.tail == -1 {
		m.head, m.tail = idx, idx
	} else {
		m.arena[m.tail].next = idx
		m.tail = idx
	}
	m.mu.Unlock()

	return value, nil
}

// Evict approximately evicts overshootPct of the currently valid entries,
// called by the EvictionController on heap pressure (spec §4.8
// "region.evict(overshoot_pct)").
func (m *LRUEntriesMap) Evict(overshootPct float64, destroy func(key any) error, localInvalidate func(key any) error) error {
	if overshootPct <= 0 {
		return nil
	}
	target := int64(float64(m.ValidCount()) * overshootPct)
	if target < 1 {
		target = 1
	}
	for i := int64(0); i < target; i++ {
		m.mu.Lock()
		idx, ok := m.victimLocked()
		m.mu.Unlock()
		if !ok {
			return nil
		}
		if err := m.evictOne(m.arena[idx], destroy, localInvalidate); err != nil {
			return err
		}
	}
	return nil
}

// roughSize is a cheap, non-reflective byte estimate used only where no
// caller-supplied size is available (Restore). Callers that want accurate
// heap accounting still go through Track with their own estimator.
func roughSize(v any) int64 {
	switch x := v.(type) {
	case string:
		return int64(len(x)) + 16
	case []byte:
		return int64(len(x)) + 16
	default:
		return 64
	}
}
