package version

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"regioncache/errs"
)

var logger = logrus.WithFields(logrus.Fields{"component": "version"})

// Descriptor is the external MemberDescriptor collaborator from spec §6: a
// hashable, totally-ordered handle the engine never interprets beyond
// Key/CompareTo.
type Descriptor interface {
	// Key uniquely identifies the member; used as the interning map key.
	Key() string
	// CompareTo returns <0, 0, >0 the way a standard comparator does.
	// Ordering must be consistent across every process that interns the
	// same logical member, since it is the tiebreak in the conflict
	// algorithm (spec §4.5 step 6).
	CompareTo(other Descriptor) int
}

// MemberList is the process-wide MemberListForVersionStamp: a 16-bit id
// interning table over Descriptor. Ids are assigned monotonically and never
// reused. Readers (version tag processing) proceed in parallel; only
// registration of a brand-new member excludes them, per spec §5.
type MemberList struct {
	mu      sync.RWMutex
	byKey     map[string]uint16
	byID      []Descriptor // index 0 unused; ids start at 1
	conflated atomic.Uint64
}

// NewMemberList constructs an empty interning table.
func NewMemberList() *MemberList {
	return &MemberList{
		byKey: make(map[string]uint16),
		byID:  make([]Descriptor, 1, 64),
	}
}

// Add interns member, returning its 16-bit id. Repeated calls for the same
// logical member (by Key) return the same id, even under concurrent callers
// — the fast path takes the read lock, and only a genuine first-sighting
// promotes to the write lock.
func (m *MemberList) Add(member Descriptor) uint16 {
	m.mu.RLock()
	if id, ok := m.byKey[member.Key()]; ok {
		m.mu.RUnlock()
		return id
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[member.Key()]; ok {
		return id
	}
	id := uint16(len(m.byID))
	if id == 0 {
		// wrapped past 65535 entries; the source never reuses ids either,
		// so this is a hard configuration error rather than a silent wrap.
		panic("version: member interning table exhausted its 16-bit id space")
	}
	m.byID = append(m.byID, member)
	m.byKey[member.Key()] = id
	logger.WithFields(logrus.Fields{"member": member.Key(), "id": id}).Debug("interned new member")
	return id
}

// Descriptor resolves an interned id back to its Descriptor.
func (m *MemberList) Descriptor(id uint16) (Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.byID) || id == 0 {
		return nil, false
	}
	return m.byID[id], true
}

// Compare resolves two interned ids to their descriptors and orders them
// deterministically. Returns an error if either id was never interned —
// the source treats this as an "impossible but guarded" illegal state.
func (m *MemberList) Compare(a, b uint16) (int, error) {
	da, ok := m.Descriptor(a)
	if !ok {
		return 0, errs.Newf(errs.KindState, "version: member id %d not found in interning table", a)
	}
	db, ok := m.Descriptor(b)
	if !ok {
		return 0, errs.Newf(errs.KindState, "version: member id %d not found in interning table", b)
	}
	return da.CompareTo(db), nil
}

// IncrConflatedEvents records a rejected write — original_source's
// CachePerfStats::incConflatedEvents(), surfaced here as a plain counter
// since statistics collection proper is out of scope (spec §1).
func (m *MemberList) IncrConflatedEvents() { m.conflated.Add(1) }

// ConflatedEvents returns the running total of conflict-check rejections.
func (m *MemberList) ConflatedEvents() uint64 { return m.conflated.Load() }
