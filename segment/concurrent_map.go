package segment

import (
	"sync/atomic"

	"regioncache/config"
	"regioncache/entry"
	"regioncache/version"
)

// ConcurrentEntriesMap implements spec §4.1: the top-level sharded map. It
// owns no locks of its own beyond what each Segment already holds — every
// operation routes to exactly one segment by key hash and delegates.
type ConcurrentEntriesMap struct {
	segments []*Segment
	members  *version.MemberList

	size            atomic.Int64
	destroyTrackers atomic.Int64
}

// NewConcurrentEntriesMap opens concurrencyHint (rounded up to the nearest
// bounded concurrency prime) segments, each sized to initialCapacity/
// concurrency (spec §4.1 "open(initialCapacity, concurrencyLevel)").
func NewConcurrentEntriesMap(initialCapacity, concurrencyHint int, attrs config.Attributes) *ConcurrentEntriesMap {
	numSegments := int(NextConcurrencyPrime(concurrencyHint))
	perSegment := initialCapacity / numSegments
	if perSegment < 1 {
		perSegment = 1
	}

	members := version.NewMemberList()
	factory := entry.NewFactory(attrs)

	m := &ConcurrentEntriesMap{segments: make([]*Segment, numSegments), members: members}
	for i := range m.segments {
		m.segments[i] = Open(perSegment, factory, attrs, members)
	}
	return m
}

func (m *ConcurrentEntriesMap) segmentFor(key any) *Segment {
	return m.segments[segmentIndex(key, len(m.segments))]
}

// Members exposes the shared MemberList so callers (the region layer) can
// interpret/compare VersionTags returned from Get.
func (m *ConcurrentEntriesMap) Members() *version.MemberList { return m.members }

func (m *ConcurrentEntriesMap) Get(key any) (*entry.Entry, bool) {
	return m.segmentFor(key).Get(key)
}

func (m *ConcurrentEntriesMap) ContainsKey(key any) bool {
	return m.segmentFor(key).ContainsKey(key)
}

func (m *ConcurrentEntriesMap) Create(key any, value any, tag version.Tag) error {
	err := m.segmentFor(key).Create(key, value, tag)
	if err == nil {
		m.size.Add(1)
	}
	return err
}

func (m *ConcurrentEntriesMap) Put(key any, value any, opts PutOptions) (isUpdate bool, err error) {
	isUpdate, err = m.segmentFor(key).Put(key, value, opts)
	if err == nil && !isUpdate {
		m.size.Add(1)
	}
	return isUpdate, err
}

func (m *ConcurrentEntriesMap) Invalidate(key any, tag version.Tag) error {
	inserted, err := m.segmentFor(key).Invalidate(key, tag)
	if err == nil && inserted {
		m.size.Add(1)
	}
	return err
}

func (m *ConcurrentEntriesMap) Remove(key any, tag version.Tag, updateCount int64) (RemoveResult, error) {
	result, err := m.segmentFor(key).Remove(key, tag, updateCount)
	if err == nil {
		m.size.Add(-1)
	}
	return result, err
}

// AddTrackerForEntry / RemoveTrackerForEntry proxy to the owning segment
// (spec §4.2.5); the tracker protocol only has an effect when concurrency-
// checks are disabled for the region this map belongs to.
func (m *ConcurrentEntriesMap) AddTrackerForEntry(key any) uint64 {
	count := m.segmentFor(key).AddTrackerForEntry(key)
	m.destroyTrackers.Add(1)
	return count
}

func (m *ConcurrentEntriesMap) RemoveTrackerForEntry(key any) {
	m.segmentFor(key).RemoveTrackerForEntry(key)
	if v := m.destroyTrackers.Add(-1); v < 0 {
		m.destroyTrackers.Store(0)
	}
}

// ActiveDestroyTrackers exposes the outstanding tracker count, for tests and
// for the region layer's diagnostics.
func (m *ConcurrentEntriesMap) ActiveDestroyTrackers() int64 { return m.destroyTrackers.Load() }

// Size is the aggregate live-entry count across all segments (spec §8
// testable property 1: "size() ... excludes tombstones"). The running
// counter is maintained incrementally rather than summed on every call,
// since segment-level Size() includes tombstones and would overcount.
func (m *ConcurrentEntriesMap) Size() int64 { return m.size.Load() }

// NumSegments exposes the segment count for tests and diagnostics.
func (m *ConcurrentEntriesMap) NumSegments() int { return len(m.segments) }

// ForEach walks every real (non-sentinel) entry across all segments. Each
// segment is visited under its own lock independently, so the view is not a
// single consistent snapshot across segments, only within each one — the
// same guarantee the source's per-segment locking gives.
func (m *ConcurrentEntriesMap) ForEach(fn func(key any, e *entry.Entry)) {
	for _, seg := range m.segments {
		seg.ForEach(func(k any, e *entry.Entry) {
			if e.Value().IsReal() {
				fn(k, e)
			}
		})
	}
}

// Keys snapshots every live key (spec §4.1 getKeys).
func (m *ConcurrentEntriesMap) Keys() []any {
	var keys []any
	m.ForEach(func(k any, _ *entry.Entry) { keys = append(keys, k) })
	return keys
}

// Values snapshots every live payload (spec §4.1 getValues).
func (m *ConcurrentEntriesMap) Values() []any {
	var values []any
	m.ForEach(func(_ any, e *entry.Entry) { values = append(values, e.Value().Payload) })
	return values
}

// ReapTombstonesByVersion fans a version-threshold reap out across every
// segment, returning every canceled task id so the caller can cancel them
// on its ExpiryTaskManager (spec §4.2.6).
func (m *ConcurrentEntriesMap) ReapTombstonesByVersion(gcVersions map[uint16]int64) []int64 {
	var canceled []int64
	for _, seg := range m.segments {
		canceled = append(canceled, seg.ReapTombstonesByVersion(gcVersions)...)
	}
	return canceled
}

// SetTombstoneExpiryTaskID attaches a scheduled TombstoneExpiryTask id to
// key's tombstone record, proxying to the owning segment.
func (m *ConcurrentEntriesMap) SetTombstoneExpiryTaskID(key any, taskID int64) bool {
	return m.segmentFor(key).SetTombstoneExpiryTaskID(key, taskID)
}

// RemoveTombstoneEntry implements expiry.TombstoneReaper, letting a
// ConcurrentEntriesMap be handed directly to a TombstoneExpiryTask.
func (m *ConcurrentEntriesMap) RemoveTombstoneEntry(key any) bool {
	return m.segmentFor(key).RemoveTombstoneEntry(key)
}

// TombstoneExists reports whether key currently carries a tombstone record.
func (m *ConcurrentEntriesMap) TombstoneExists(key any) bool {
	return m.segmentFor(key).TombstoneExists(key)
}

// ReapTombstonesByKeys fans an explicit-key reap out to the owning segment
// of each key.
func (m *ConcurrentEntriesMap) ReapTombstonesByKeys(keys []any) []int64 {
	var canceled []int64
	for _, key := range keys {
		canceled = append(canceled, m.segmentFor(key).ReapTombstonesByKeys([]any{key})...)
	}
	return canceled
}
