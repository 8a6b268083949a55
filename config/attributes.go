// Package config defines a region's attribute surface (spec §3, §6) and the
// viper-based loader used to populate it from the environment, mirroring the
// way the teacher's env package loads application config.
package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"regioncache/errs"
)

var logger = logrus.WithFields(logrus.Fields{"component": "config"})

// LRUEvictionAction selects what happens to the LRU victim once chosen.
type LRUEvictionAction int

const (
	LocalDestroy LRUEvictionAction = iota
	Destroy
	LocalInvalidate
	OverflowToDisk
)

func (a LRUEvictionAction) String() string {
	switch a {
	case LocalDestroy:
		return "LOCAL_DESTROY"
	case Destroy:
		return "DESTROY"
	case LocalInvalidate:
		return "LOCAL_INVALIDATE"
	case OverflowToDisk:
		return "OVERFLOW_TO_DISK"
	default:
		return "UNKNOWN"
	}
}

// ExpirationAction selects what happens when an entry or region TTL/idle
// timeout fires.
type ExpirationAction int

const (
	Invalidate ExpirationAction = iota
	LocalInvalidateAction
	DestroyAction
	LocalDestroyAction
)

func (a ExpirationAction) String() string {
	switch a {
	case Invalidate:
		return "INVALIDATE"
	case LocalInvalidateAction:
		return "LOCAL_INVALIDATE"
	case DestroyAction:
		return "DESTROY"
	case LocalDestroyAction:
		return "LOCAL_DESTROY"
	default:
		return "UNKNOWN"
	}
}

// EventFlags is the disjunction of event-context bits carried on every
// entry operation (spec §6).
type EventFlags uint8

const (
	Normal EventFlags = 1 << iota
	Local
	Notification
	NotificationUpdate
	Eviction
	ExpirationFlag
	CacheClose
	NoCacheWriter
)

func (f EventFlags) Has(bit EventFlags) bool { return f&bit != 0 }

// IsNotificationLike reports whether the event originates from something
// other than a direct API call — notifications, evictions and expirations
// never honor cache-writer vetoes (spec §4.9, §7).
func (f EventFlags) IsNotificationLike() bool {
	return f.Has(Notification) || f.Has(NotificationUpdate) ||
		f.Has(Eviction) || f.Has(ExpirationFlag) || f.Has(CacheClose)
}

// Expiration bundles a timeout with the action to take when it fires. A
// zero Timeout means the expiration is disabled.
type Expiration struct {
	Timeout time.Duration
	Action  ExpirationAction
}

func (e Expiration) Enabled() bool { return e.Timeout > 0 }

// Attributes is the region attributes configuration surface enumerated in
// spec §6. All fields are immutable after region open except through the
// attributes-mutator protocol implemented by region.Region.
type Attributes struct {
	CachingEnabled           bool
	ConcurrencyChecksEnabled bool
	ConcurrencyLevel         int
	InitialCapacity          int

	LRUEntriesLimit   int
	LRUEvictionAction LRUEvictionAction

	EntryTimeToLive  Expiration
	EntryIdleTimeout Expiration
	RegionTimeToLive Expiration
	RegionIdleTimeout Expiration

	CloningEnabled bool

	HeapLRUEnabled  bool
	HeapLRUDeltaPct float64

	// TombstoneTimeout bounds how long a destroyed versioned entry's
	// tombstone survives before the region reaps it (spec §4.2.6, §4.7).
	// Zero disables scheduled reaping (reapTombstones must be driven
	// explicitly instead).
	TombstoneTimeout time.Duration
}

// DefaultAttributes matches the source's defaults: caching on, concurrency
// checks on (server regions always version-stamp), a modest concurrency
// level, and no expiration/LRU configured.
func DefaultAttributes() Attributes {
	return Attributes{
		CachingEnabled:           true,
		ConcurrencyChecksEnabled: true,
		ConcurrencyLevel:         16,
		InitialCapacity:          16,
		LRUEvictionAction:        LocalDestroy,
		HeapLRUDeltaPct:          0.02,
		TombstoneTimeout:         10 * time.Minute,
	}
}

// Validate checks the invariants spec §8 calls out as boundary behaviors:
// concurrencyLevel and initialCapacity of zero are clamped rather than
// rejected, everything else is a hard argument error.
func (a *Attributes) Validate() error {
	if a.ConcurrencyLevel < 0 {
		return errs.Newf(errs.KindArgument, "concurrencyLevel must be >= 0, got %d", a.ConcurrencyLevel)
	}
	if a.ConcurrencyLevel == 0 {
		logger.Debug("concurrencyLevel clamped to 1")
		a.ConcurrencyLevel = 1
	}
	if a.InitialCapacity < 0 {
		return errs.Newf(errs.KindArgument, "initialCapacity must be >= 0, got %d", a.InitialCapacity)
	}
	if a.LRUEntriesLimit < 0 {
		return errs.Newf(errs.KindArgument, "lruEntriesLimit must be >= 0, got %d", a.LRUEntriesLimit)
	}
	if a.EntryTimeToLive.Timeout < 0 || a.EntryIdleTimeout.Timeout < 0 ||
		a.RegionTimeToLive.Timeout < 0 || a.RegionIdleTimeout.Timeout < 0 {
		return errs.Newf(errs.KindArgument, "expiration timeouts must be >= 0")
	}
	if a.TombstoneTimeout < 0 {
		return errs.Newf(errs.KindArgument, "tombstoneTimeout must be >= 0")
	}
	return nil
}

// LRUEnabled reports whether either a per-region count limit or the global
// heap-LRU controller governs this region's entries.
func (a *Attributes) LRUEnabled() bool {
	return a.LRUEntriesLimit > 0 || a.HeapLRUEnabled
}

// ExpirationEnabled reports whether any of the four expiration knobs are on.
func (a *Attributes) ExpirationEnabled() bool {
	return a.EntryTimeToLive.Enabled() || a.EntryIdleTimeout.Enabled() ||
		a.RegionTimeToLive.Enabled() || a.RegionIdleTimeout.Enabled()
}
