package segment

import (
	"time"

	"regioncache/entry"
)

// tombstoneRecord pairs a tombstoned MapEntry with the id of the
// TombstoneExpiryTask scheduled to eventually reap it (spec §3
// "TombstoneList maps key -> TombstoneEntry (MapEntry + expiry-task id)").
type tombstoneRecord struct {
	entry        *entry.Entry
	expiryTaskID int64
	createdAt    int64 // unix nano; original_source's tombstoneCreationTime
}

// TombstoneList lives inside a Segment; every mutation happens under the
// owning segment's lock, so it carries no lock of its own (spec §4.2.6).
type TombstoneList struct {
	owner   *Segment
	records map[any]*tombstoneRecord
}

func newTombstoneList(owner *Segment) *TombstoneList {
	return &TombstoneList{owner: owner, records: make(map[any]*tombstoneRecord)}
}

// addLocked registers a freshly tombstoned entry. Scheduling the actual
// TombstoneExpiryTask is the region orchestrator's job (it owns the
// ExpiryTaskManager); the task id is attached afterwards via
// Segment.SetTombstoneExpiryTaskID to avoid a segment -> expiry import
// cycle.
func (t *TombstoneList) addLocked(key any, e *entry.Entry) {
	t.records[key] = &tombstoneRecord{entry: e, createdAt: time.Now().UnixNano()}
}

func (t *TombstoneList) removeLocked(key any) {
	delete(t.records, key)
}

func (t *TombstoneList) existsLocked(key any) bool {
	_, ok := t.records[key]
	return ok
}

// SetTombstoneExpiryTaskID attaches the scheduled task id to key's
// tombstone record, returning false if the tombstone no longer exists
// (e.g. it was reaped before the caller got back from scheduling).
func (s *Segment) SetTombstoneExpiryTaskID(key any, taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tombstones.records[key]
	if !ok {
		return false
	}
	r.expiryTaskID = taskID
	return true
}

// TombstoneExists reports whether key currently has a tombstone record
// (spec §8 testable property 2).
func (s *Segment) TombstoneExists(key any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tombstones.existsLocked(key)
}

// TombstoneCount reports the live tombstone count, for tests.
func (s *Segment) TombstoneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tombstones.records)
}

// ReapTombstonesByVersion implements spec §4.2.6's first reapTombstones
// overload: removes tombstones whose stamp's member matches a key in
// gcVersions and whose region-version is <= the advertised threshold.
// Returns the expiry-task ids the caller must cancel.
func (s *Segment) ReapTombstonesByVersion(gcVersions map[uint16]int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var canceled []int64
	for key, r := range s.tombstones.records {
		if !r.entry.HasVersionStamp() {
			continue
		}
		stamp := r.entry.VersionStamp()
		threshold, tracked := gcVersions[stamp.MemberID()]
		if !tracked {
			continue
		}
		if stamp.RegionVersion() <= threshold {
			canceled = append(canceled, r.expiryTaskID)
			delete(s.tombstones.records, key)
			delete(s.entries, key)
		}
	}
	return canceled
}

// ReapTombstonesByKeys implements spec §4.2.6's second overload:
// unconditional removal of the listed keys from both the tombstone list
// and the segment.
func (s *Segment) ReapTombstonesByKeys(keys []any) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var canceled []int64
	for _, key := range keys {
		r, ok := s.tombstones.records[key]
		if !ok {
			continue
		}
		canceled = append(canceled, r.expiryTaskID)
		delete(s.tombstones.records, key)
		delete(s.entries, key)
	}
	return canceled
}

// RemoveTombstoneEntry is remove_tomb_entry: called by the per-entry
// TombstoneExpiryTask on timeout. Guarded against a race with a competing
// reap or re-create — if the key is no longer a tombstone, this is a no-op
// and ok is false.
func (s *Segment) RemoveTombstoneEntry(key any) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tracked := s.tombstones.records[key]; !tracked {
		return false
	}
	e, present := s.entries[key]
	if !present || !e.Value().IsSentinel(entry.Tombstone) {
		delete(s.tombstones.records, key)
		return false
	}
	delete(s.tombstones.records, key)
	delete(s.entries, key)
	return true
}
