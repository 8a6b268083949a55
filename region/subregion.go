package region

import (
	"regioncache/config"
	"regioncache/errs"
	"regioncache/remote"
	"regioncache/version"
)

// OpenSubRegion creates (or returns, if already present) a named child of
// r, sharing r's expiry manager and member list but owning its own entry
// map and attributes (spec §4.9's sub-region tree).
func (r *Region) OpenSubRegion(name string, attrs config.Attributes, collab Collaborators) (*Region, error) {
	if err := r.preflight(); err != nil {
		return nil, err
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()
	if existing, ok := r.subRegions[name]; ok {
		return existing, nil
	}

	if collab.Members == nil {
		collab.Members = r.members
	}
	if collab.ExpiryMgr == nil {
		collab.ExpiryMgr = r.expiryMgr
	}
	child, err := Open(name, attrs, collab)
	if err != nil {
		return nil, err
	}
	child.parent = r
	r.subRegions[name] = child
	return child, nil
}

// SubRegion looks up an already-open child by name.
func (r *Region) SubRegion(name string) (*Region, bool) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	sub, ok := r.subRegions[name]
	return sub, ok
}

// SubRegions snapshots the current set of child regions.
func (r *Region) SubRegions() []*Region {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	out := make([]*Region, 0, len(r.subRegions))
	for _, sub := range r.subRegions {
		out = append(out, sub)
	}
	return out
}

// Clear removes every entry from this region without destroying the
// region itself, dispatching BeforeRegionClear/AfterRegionClear around the
// sweep (spec §6).
func (r *Region) Clear() error {
	if err := r.preflight(); err != nil {
		return err
	}
	ev := remote.ListenerEvent{Flags: config.Normal}
	if r.writer != nil {
		if err := r.writer.BeforeRegionClear(ev); err != nil {
			return errs.Wrap(errs.KindWriterVeto, err, "cache writer vetoed region clear")
		}
	}
	for _, key := range r.entries.Keys() {
		if _, err := r.entries.Remove(key, version.Tag{}, noTracker); err != nil && !errs.Is(err, errs.KindEntryNotFound) {
			return err
		}
	}
	r.dispatchListener(func(l remote.CacheListener) { l.AfterRegionClear(ev) })
	return nil
}

// DestroyRegion implements region destroy (spec §4.9): sets the
// destroy-pending flag first so concurrent operations fail fast, then
// propagates depth-first to every sub-region before clearing this
// region's own entries and unlinking from its parent.
func (r *Region) DestroyRegion() error {
	return r.destroyRegion(config.Normal)
}

func (r *Region) destroyRegion(flags config.EventFlags) error {
	ev := remote.ListenerEvent{Flags: flags}
	if err := r.checkWriterVeto(flags, func(w remote.CacheWriter) error { return w.BeforeRegionDestroy(ev) }); err != nil {
		return err
	}

	r.destroyPending.Store(true)

	for _, sub := range r.SubRegions() {
		if err := sub.destroyRegion(flags); err != nil {
			logger.WithError(err).WithField("sub_region", sub.name).Warn("sub-region destroy failed")
		}
	}

	r.subMu.Lock()
	r.subRegions = make(map[string]*Region)
	r.subMu.Unlock()

	for _, key := range r.entries.Keys() {
		if _, err := r.entries.Remove(key, version.Tag{}, noTracker); err != nil && !errs.Is(err, errs.KindEntryNotFound) {
			logger.WithError(err).Warn("entry removal during region destroy failed")
		}
	}

	if err := r.Close(); err != nil {
		logger.WithError(err).Warn("region close during destroy failed")
	}

	r.dispatchListener(func(l remote.CacheListener) { l.AfterRegionDestroy(ev) })

	if r.parent != nil {
		r.parent.subMu.Lock()
		delete(r.parent.subRegions, r.name)
		r.parent.subMu.Unlock()
	}
	return nil
}

// invalidateRegion propagates InvalidateRegion depth-first without tearing
// the tree down (spec §4.9's invalidate-propagation half).
func (r *Region) invalidateRegion(flags config.EventFlags) error {
	ev := remote.ListenerEvent{Flags: flags}
	for _, key := range r.entries.Keys() {
		if err := r.doInvalidate(key, flags); err != nil && !errs.Is(err, errs.KindEntryNotFound) {
			return err
		}
	}
	for _, sub := range r.SubRegions() {
		if err := sub.invalidateRegion(flags); err != nil {
			logger.WithError(err).WithField("sub_region", sub.name).Warn("sub-region invalidate failed")
		}
	}
	r.dispatchListener(func(l remote.CacheListener) { l.AfterRegionInvalidate(ev) })
	return nil
}

// InvalidateRegion is the public entry point for whole-region invalidate.
func (r *Region) InvalidateRegion() error {
	if err := r.preflight(); err != nil {
		return err
	}
	return r.invalidateRegion(config.Normal)
}
