// Package entry implements the MapEntry family (spec §3, §4.3): the
// key/value cell a MapSegment stores, optionally composed with LRU,
// expiration, and version-stamp state depending on the region's
// attributes.
package entry

import (
	"regioncache/config"
	"regioncache/version"
)

// Sentinel is one of the engine-reserved value tokens (spec §3). A plain
// cached value never equals any Sentinel; callers compare with ==.
type Sentinel int

const (
	// NotSentinel marks that the stored value is a real, user-supplied
	// payload rather than one of the reserved tokens below.
	NotSentinel Sentinel = iota
	Invalid
	Destroyed
	Overflowed
	Tombstone
)

// Value wraps whatever payload a MapEntry holds: either a real opaque
// value or one of the four sentinel tokens, with the token taking
// precedence when set. This lets segment code branch on "what kind of
// thing is stored here" without type-asserting into the opaque value.
type Value struct {
	Sentinel Sentinel
	Payload  any
}

func Real(payload any) Value       { return Value{Sentinel: NotSentinel, Payload: payload} }
func InvalidValue() Value          { return Value{Sentinel: Invalid} }
func DestroyedValue() Value        { return Value{Sentinel: Destroyed} }
func OverflowedValue() Value       { return Value{Sentinel: Overflowed} }
func TombstoneValue() Value        { return Value{Sentinel: Tombstone} }
func (v Value) IsReal() bool       { return v.Sentinel == NotSentinel }
func (v Value) IsSentinel(s Sentinel) bool { return v.Sentinel == s }

// LRUProperties is the LRU-list aspect of a MapEntry: list linkage,
// recently-used/evicted flags, and an optional persistence-info handle for
// disk overflow. The "next node" pointer is a non-owning index into the
// LRU list's backing arena rather than a live pointer, so a MapEntry
// removed from its segment does not keep a dangling list node alive
// (spec §9, "shared vs. weak ownership").
type LRUProperties struct {
	NextIndex      int // index into the LRU list arena; -1 if untracked
	RecentlyUsed   bool
	Evicted        bool
	PersistenceInfo any
}

// ExpProperties is the expiration aspect. LastAccessed/LastModified are
// stored as UnixNano so the entry-expiry task can read them without
// holding the owning segment's lock (spec §5): "Expiry properties use
// atomic reads/writes of time fields."
type ExpProperties struct {
	lastAccessed atomicTime
	lastModified atomicTime
	expiryTaskID int64
}

func (p *ExpProperties) SetLastAccessed(unixNano int64) { p.lastAccessed.store(unixNano) }
func (p *ExpProperties) LastAccessed() int64            { return p.lastAccessed.load() }
func (p *ExpProperties) SetLastModified(unixNano int64) { p.lastModified.store(unixNano) }
func (p *ExpProperties) LastModified() int64            { return p.lastModified.load() }

// Entry is the MapEntry cell. Composition is decided once at construction
// by the EntryFactory according to region attributes; the optional
// pointers are nil when that aspect is disabled, and the accessor panics
// if asked for an aspect the composition lacks (spec §4.3).
//
// A single composed type stands in for the source's eight concrete
// MapEntry subclasses (plain / versioned / LRU / versioned-LRU, each with
// or without expiration): spec §9 explicitly frees an implementer from the
// source's placement-new vtable trick, and the same freedom extends to not
// hand-duplicating eight near-identical structs when one with optional
// fields expresses the same composition.
type Entry struct {
	key   any
	value Value

	trackingNumber uint64
	updateCount    uint64

	stamp *version.Stamp
	exp   *ExpProperties
	lru   *LRUProperties
}

// Kind describes which optional aspects a freshly constructed Entry has —
// used by EntryFactory to pick the right composition and by tests to
// assert the factory wired things up correctly.
type Kind struct {
	Versioned bool
	LRU       bool
	Expiring  bool
}

// New constructs an Entry with the aspects named by kind.
func New(key any, value Value, kind Kind) *Entry {
	e := &Entry{key: key, value: value}
	if kind.Versioned {
		e.stamp = &version.Stamp{}
	}
	if kind.Expiring {
		e.exp = &ExpProperties{}
	}
	if kind.LRU {
		e.lru = &LRUProperties{NextIndex: -1}
	}
	return e
}

func (e *Entry) Key() any    { return e.key }
func (e *Entry) Value() Value { return e.value }
func (e *Entry) SetValue(v Value) { e.value = v }

// Tracker protocol (spec §4.2.5) — only meaningful when concurrency-checks
// are disabled; the region/segment layer is responsible for treating these
// as no-ops otherwise, per the Open Question in spec §9.

// AddTracker snapshots the current update count and returns it, marking the
// entry as tracked (trackingNumber becomes non-zero).
func (e *Entry) AddTracker() uint64 {
	e.trackingNumber++
	return e.updateCount
}

// RemoveTracker clears tracking state unconditionally.
func (e *Entry) RemoveTracker() {
	e.trackingNumber = 0
}

func (e *Entry) TrackingNumber() uint64 { return e.trackingNumber }
func (e *Entry) UpdateCount() uint64    { return e.updateCount }

// IncrementUpdateCount is called on every local write through a tracked
// entry (spec testable property 6): any subsequent write must observe a
// strictly larger update count than a snapshot taken before it.
func (e *Entry) IncrementUpdateCount() { e.updateCount++ }

// VersionStamp returns the entry's version stamp, panicking if this
// composition was built without concurrency-checks support.
func (e *Entry) VersionStamp() *version.Stamp {
	if e.stamp == nil {
		panic("entry: VersionStamp() called on a non-versioned entry")
	}
	return e.stamp
}

func (e *Entry) HasVersionStamp() bool { return e.stamp != nil }

// Exp returns the entry's expiration properties, panicking if expiration
// was not enabled for this entry's region.
func (e *Entry) Exp() *ExpProperties {
	if e.exp == nil {
		panic("entry: Exp() called on a non-expiring entry")
	}
	return e.exp
}

func (e *Entry) HasExp() bool { return e.exp != nil }

// LRU returns the entry's LRU-list properties, panicking if LRU was not
// enabled for this entry's region.
func (e *Entry) LRU() *LRUProperties {
	if e.lru == nil {
		panic("entry: LRU() called on a non-LRU entry")
	}
	return e.lru
}

func (e *Entry) HasLRU() bool { return e.lru != nil }

// Cleanup releases any out-of-entry state after the entry has been removed
// from its segment under lock: canceling a scheduled expiry task is the
// owning region's job (it holds the expiry.Manager), so Cleanup here
// only clears the entry's own view of that id and unlinks LRU state.
func (e *Entry) Cleanup(flags config.EventFlags) {
	if e.exp != nil {
		e.exp.expiryTaskID = 0
	}
	if e.lru != nil {
		e.lru.NextIndex = -1
		e.lru.Evicted = true
	}
}

// ExpiryTaskID / SetExpiryTaskID track the id the segment's owning region
// got back from the ExpiryTaskManager when it scheduled this entry's task.
func (e *Entry) ExpiryTaskID() int64 {
	return e.Exp().expiryTaskID
}

func (e *Entry) SetExpiryTaskID(id int64) {
	e.Exp().expiryTaskID = id
}
