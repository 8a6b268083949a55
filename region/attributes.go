package region

import (
	"regioncache/config"
	"regioncache/errs"
	"regioncache/remote"
)

// enabledAtCreation snapshots which runtime-mutable features this region
// was opened with. Mutators consult the snapshot, not the live attrs, so a
// feature absent at creation can never be turned on later and one present
// at creation can never be turned off (spec §4.9: "each change is gated on
// the corresponding feature was enabled at region creation... downgrading
// from enabled-to-disabled is rejected").
type enabledAtCreation struct {
	lru        bool
	entryTTL   bool
	entryIdle  bool
	regionTTL  bool
	regionIdle bool
}

func deriveEnabled(attrs config.Attributes) enabledAtCreation {
	return enabledAtCreation{
		lru:        attrs.LRUEnabled(),
		entryTTL:   attrs.EntryTimeToLive.Enabled(),
		entryIdle:  attrs.EntryIdleTimeout.Enabled(),
		regionTTL:  attrs.RegionTimeToLive.Enabled(),
		regionIdle: attrs.RegionIdleTimeout.Enabled(),
	}
}

// SetLRUEntriesLimit updates the region's LRUEntriesLimit attribute.
// Rejected with a state error unless LRU (count-limit or heap-LRU) was
// enabled at region creation. The LRU layer built by Open keeps the limit it
// was constructed with, so this call does not change when eviction starts.
func (r *Region) SetLRUEntriesLimit(limit int) error {
	if limit < 0 {
		return errs.Newf(errs.KindArgument, "lruEntriesLimit must be >= 0, got %d", limit)
	}
	r.attrsMu.Lock()
	defer r.attrsMu.Unlock()
	if !r.enabled.lru {
		return errs.ErrFeatureDisabled
	}
	r.attrs.LRUEntriesLimit = limit
	return nil
}

// SetLRUEvictionAction updates the region's LRUEvictionAction attribute,
// gated the same way as SetLRUEntriesLimit. The LRU layer keeps the action
// it was constructed with at Open.
func (r *Region) SetLRUEvictionAction(action config.LRUEvictionAction) error {
	r.attrsMu.Lock()
	defer r.attrsMu.Unlock()
	if !r.enabled.lru {
		return errs.ErrFeatureDisabled
	}
	r.attrs.LRUEvictionAction = action
	return nil
}

// SetEntryTimeToLive changes the entry TTL duration/action; the feature
// must have been enabled at region creation.
func (r *Region) SetEntryTimeToLive(exp config.Expiration) error {
	return r.setExpiration(&r.attrs.EntryTimeToLive, r.enabled.entryTTL, exp)
}

// SetEntryIdleTimeout is SetEntryTimeToLive's idle-timeout counterpart.
func (r *Region) SetEntryIdleTimeout(exp config.Expiration) error {
	return r.setExpiration(&r.attrs.EntryIdleTimeout, r.enabled.entryIdle, exp)
}

// SetRegionTimeToLive changes the region-level TTL, rescheduling the
// region's own expiry task so the new duration takes effect immediately.
func (r *Region) SetRegionTimeToLive(exp config.Expiration) error {
	if err := r.setExpiration(&r.attrs.RegionTimeToLive, r.enabled.regionTTL, exp); err != nil {
		return err
	}
	r.rescheduleRegionExpiry()
	return nil
}

// SetRegionIdleTimeout is SetRegionTimeToLive's idle-timeout counterpart.
func (r *Region) SetRegionIdleTimeout(exp config.Expiration) error {
	if err := r.setExpiration(&r.attrs.RegionIdleTimeout, r.enabled.regionIdle, exp); err != nil {
		return err
	}
	r.rescheduleRegionExpiry()
	return nil
}

func (r *Region) setExpiration(field *config.Expiration, enabledAtOpen bool, exp config.Expiration) error {
	if exp.Timeout < 0 {
		return errs.ErrInvalidDuration
	}
	r.attrsMu.Lock()
	defer r.attrsMu.Unlock()
	if !enabledAtOpen {
		return errs.ErrFeatureDisabled
	}
	if !exp.Enabled() {
		return errs.New(errs.KindState, "expiration enabled at region creation cannot be disabled")
	}
	*field = exp
	return nil
}

func (r *Region) rescheduleRegionExpiry() {
	if r.expiryMgr == nil {
		return
	}
	for _, id := range r.regionExpiryTaskIDs {
		r.expiryMgr.Cancel(id)
	}
	r.regionExpiryTaskIDs = r.regionExpiryTaskIDs[:0]
	r.scheduleRegionExpiry()
}

// SetCacheListener / SetCacheWriter / SetCacheLoader swap the named
// collaborator at runtime; unlike LRU/expiration these carry no
// enabled-at-creation gate, since a nil collaborator is always a legal
// starting point (spec §6).
func (r *Region) SetCacheListener(l remote.CacheListener) {
	r.attrsMu.Lock()
	defer r.attrsMu.Unlock()
	r.listener = l
}

func (r *Region) SetCacheWriter(w remote.CacheWriter) {
	r.attrsMu.Lock()
	defer r.attrsMu.Unlock()
	r.writer = w
}

func (r *Region) SetCacheLoader(l remote.CacheLoader) {
	r.attrsMu.Lock()
	defer r.attrsMu.Unlock()
	r.loader = l
}
