package region

import (
	"context"
	"fmt"
	"time"

	"regioncache/backoff"
	"regioncache/config"
	"regioncache/entry"
	"regioncache/errs"
	"regioncache/expiry"
	"regioncache/remote"
	"regioncache/segment"
	"regioncache/version"
)

// noTracker is the sentinel PutOptions.UpdateCount/Remove updateCount value
// meaning "not tracked, apply unconditionally" (spec §4.2.5).
const noTracker int64 = -1

func (r *Region) preflight() error {
	if err := r.checkNotDestroying(); err != nil {
		return err
	}
	return nil
}

// checkWriterVeto runs the cache writer's before-hook unless the event is
// notification-like (spec §4.9: "writer vetoes are observed when the event
// is not a notification/eviction/expiration"; cache-close vetoes are
// ignored, which IsNotificationLike already folds in).
func (r *Region) checkWriterVeto(flags config.EventFlags, before func(remote.CacheWriter) error) error {
	if r.writer == nil || flags.IsNotificationLike() {
		return nil
	}
	if err := before(r.writer); err != nil {
		return errs.Wrap(errs.KindWriterVeto, err, "cache writer vetoed operation")
	}
	return nil
}

// dispatchListener calls fn against the region's listener, catching a panic
// the same way it would catch a checked exception in the source: logged,
// surfaced as a listener-error status, never rolled back (spec §4.9).
func (r *Region) dispatchListener(fn func(remote.CacheListener)) (listenerErr error) {
	if r.listener == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			logger.WithField("panic", p).Warn("cache listener failed")
			listenerErr = errs.Newf(errs.KindListenerFailure, "cache listener panicked: %v", p)
		}
	}()
	fn(r.listener)
	return nil
}

func (r *Region) remoteTimeout(requested time.Duration) (time.Duration, error) {
	return r.remoteTuning.ClampTimeout(requested)
}

// callRemote forwards op to the remote collaborator unless flags say this
// event is local-only or itself a notification replaying a remote write
// (spec §4.9 rule ii). A nil RemoteOp is treated as "no remote collaborator
// configured," which behaves like a pure local cache.
// routingKeyCtxKey carries the PartitionResolver's routing object, when
// configured, to whatever RemoteOp implementation chooses to read it back
// out of the context (spec §6: "consumed only to stamp remote operations;
// not core logic", so the core never inspects it itself).
type routingKeyCtxKey struct{}

func (r *Region) callRemote(ctx context.Context, op remote.OpKind, key, value any, flags config.EventFlags, timeout time.Duration) (remote.Result, bool, error) {
	if r.remoteOp == nil || flags.Has(config.Local) || flags.Has(config.Notification) || flags.Has(config.NotificationUpdate) {
		return remote.Result{}, false, nil
	}
	t, err := r.remoteTimeout(timeout)
	if err != nil {
		return remote.Result{}, false, err
	}
	if r.resolver != nil {
		routingKey, rerr := r.resolver.RoutingObject(remote.ListenerEvent{Key: key, NewValue: value, Flags: flags})
		if rerr != nil {
			return remote.Result{}, false, errs.Wrap(errs.KindRemote, rerr, "partition resolver failed")
		}
		ctx = context.WithValue(ctx, routingKeyCtxKey{}, routingKey)
	}
	// Transient failures (network blips, a momentarily unreachable store)
	// are retried with backoff; a logical rejection (invalid delta, any
	// other non-OK status) is marked Permanent so it surfaces immediately
	// instead of being retried against an unchanged remote state.
	result, err := backoff.Retry(ctx, func() (remote.Result, error) {
		res, callErr := r.remoteOp.Call(ctx, op, key, value, t)
		if callErr != nil {
			return res, callErr
		}
		switch res.Status {
		case remote.StatusOK:
			return res, nil
		case remote.StatusInvalidDelta:
			return res, backoff.Permanent(errs.ErrInvalidDelta)
		default:
			return res, backoff.Permanent(errs.Newf(errs.KindRemote, "remote operation returned status %v", res.Status))
		}
	}, r.remoteTuning.DialInitialInterval, r.remoteTuning.DialMaxRetries)

	if err != nil {
		if errs.GetKind(err) != errs.KindUnknown {
			return result, true, err
		}
		return result, true, errs.Wrap(errs.KindRemote, err, "remote operation failed")
	}
	return result, true, nil
}

// afterEntryWritten updates the book-keeping a segment write never touches
// itself (spec §9's "region owns LRU/expiry wiring" split): the entry's own
// access/modify timestamps always move; LRU tracking and an entry's first
// expiry task only apply to a freshly inserted entry, never a re-put of an
// already-tracked one.
func (r *Region) afterEntryWritten(key any, isNew bool) {
	e, ok := r.entries.Get(key)
	if !ok {
		return
	}
	now := time.Now().UnixNano()
	if e.HasExp() {
		e.Exp().SetLastModified(now)
		e.Exp().SetLastAccessed(now)
	}
	if !isNew {
		return
	}
	if r.lru != nil && e.HasLRU() {
		r.lru.Track(key, e, approxSize(key), approxSize(e.Value().Payload))
	}
	if r.expiryMgr != nil && e.HasExp() {
		r.scheduleEntryExpiry(key, e)
	}
}

// scheduleEntryExpiry arms this entry's one expiry task (spec §4.7). An
// entry carries a single expiry-task id slot, so when both TTL and idle
// timeout are configured the TTL guard takes it; idle-only entries get the
// idle guard instead.
func (r *Region) scheduleEntryExpiry(key any, e *entry.Entry) {
	attrs := r.Attributes()
	var exp config.Expiration
	useTTL := true
	switch {
	case attrs.EntryTimeToLive.Enabled():
		exp = attrs.EntryTimeToLive
	case attrs.EntryIdleTimeout.Enabled():
		exp = attrs.EntryIdleTimeout
		useTTL = false
	default:
		return
	}
	task := expiry.NewEntryExpiryTask(key, e, r, exp.Timeout, useTTL, exp.Action)
	id := r.expiryMgr.Schedule(task, exp.Timeout, 0)
	task.Bind(r.expiryMgr, id)
	e.SetExpiryTaskID(id)
}

// afterTombstoneCreated arms a TombstoneExpiryTask for a just-destroyed
// versioned entry (spec §4.2.6, §4.7); a no-op when concurrency-checks are
// off (destroy never leaves a tombstone in that mode) or no tombstone
// timeout is configured.
func (r *Region) afterTombstoneCreated(key any) {
	attrs := r.Attributes()
	if !attrs.ConcurrencyChecksEnabled || r.expiryMgr == nil || attrs.TombstoneTimeout <= 0 {
		return
	}
	task := expiry.NewTombstoneExpiryTask(key, r.entries)
	id := r.expiryMgr.Schedule(task, attrs.TombstoneTimeout, 0)
	r.entries.SetTombstoneExpiryTaskID(key, id)
}

// cancelEntryExpiry stops a destroyed entry's own expiry task, if it had
// one armed; the entry itself is gone, so there is nothing left for the
// task to guard (spec §4.7).
func (r *Region) cancelEntryExpiry(e *entry.Entry) {
	if r.expiryMgr == nil || !e.HasExp() {
		return
	}
	if id := e.ExpiryTaskID(); id != 0 {
		r.expiryMgr.Cancel(id)
	}
}

// untrackLRU reverses afterEntryWritten's LRU accounting once a key is
// destroyed or invalidated outside of LRU-driven eviction, which already
// accounts for itself (spec §4.4's Untrack half). oldValue is whatever
// payload the entry held immediately before this call.
func (r *Region) untrackLRU(key any, e *entry.Entry, oldValue any, flags config.EventFlags) {
	if r.lru == nil || !e.HasLRU() || flags.Has(config.Eviction) {
		return
	}
	r.lru.Untrack(e, approxSize(key), approxSize(oldValue))
}

// installTrackerIfNeeded implements rule (iii): a tracker is installed
// before any remote call whenever concurrency-checks are off and the
// caller did not already supply an updateCount snapshot.
func (r *Region) installTrackerIfNeeded(key any, flags config.EventFlags, updateCount int64) int64 {
	if r.Attributes().ConcurrencyChecksEnabled || updateCount != noTracker {
		return updateCount
	}
	if flags.Has(config.Local) || flags.Has(config.Notification) || flags.Has(config.NotificationUpdate) {
		return updateCount
	}
	return int64(r.entries.AddTrackerForEntry(key))
}

// Get implements the region read path: a live value returns as-is, an
// OVERFLOWED sentinel is restored from disk through the LRU layer, and a
// miss falls through to the cache loader if one is configured.
func (r *Region) Get(key any, callbackArg any) (any, bool, error) {
	if err := r.preflight(); err != nil {
		return nil, false, err
	}
	r.touchAccessed()

	e, ok := r.entries.Get(key)
	if ok && e.Value().IsReal() {
		if r.lru != nil {
			r.lru.Touch(e)
		}
		if e.HasExp() {
			e.Exp().SetLastAccessed(time.Now().UnixNano())
		}
		return e.Value().Payload, true, nil
	}
	if ok && r.lru != nil {
		if v, err := r.lru.Restore(key, e); err != nil {
			return nil, false, errs.Wrap(errs.KindPersistenceFailure, err, "LRU overflow restore failed")
		} else if v != nil {
			return v, true, nil
		}
	}

	if r.loader == nil {
		return nil, false, nil
	}
	value, err := r.loader.Load(r.name, key, callbackArg)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindLoaderFailure, err, "cache loader failed")
	}
	if value == nil {
		return nil, false, nil
	}
	if _, err := r.doCreate(key, value, version.Tag{}, config.Normal|config.Local); err != nil && !errs.Is(err, errs.KindEntryExists) {
		return nil, false, err
	}
	return value, true, nil
}

// Create implements create(key, newValue) (spec §4.2.1, lifted to region
// scope with writer/listener/remote dispatch).
func (r *Region) Create(key, value any) error {
	if err := r.preflight(); err != nil {
		return err
	}
	_, err := r.doCreate(key, value, version.Tag{}, config.Normal)
	return err
}

func (r *Region) doCreate(key, value any, tag version.Tag, flags config.EventFlags) (listenerErr error, err error) {
	ev := remote.ListenerEvent{Key: key, NewValue: value, Flags: flags}
	if err := r.checkWriterVeto(flags, func(w remote.CacheWriter) error { return w.BeforeCreate(ev) }); err != nil {
		return nil, err
	}

	r.installTrackerIfNeeded(key, flags, noTracker)

	result, attempted, err := r.callRemote(context.Background(), remote.OpCreate, key, value, flags, 0)
	if err != nil {
		return nil, err
	}
	if attempted && !result.VersionTag.IsZero() {
		tag = result.VersionTag
	}

	applyErr := r.entries.Create(key, value, tag)
	if applyErr != nil {
		if errs.Is(applyErr, errs.KindEntryUpdated) && attempted {
			return nil, nil // rule (iv): remote succeeded, local apply stale — silent skip
		}
		return nil, applyErr
	}
	r.touchModified()
	r.afterEntryWritten(key, true)
	lErr := r.dispatchListener(func(l remote.CacheListener) { l.AfterCreate(ev) })
	return lErr, nil
}

// Put implements put(key, newValue) / delta-put (spec §4.2.2).
func (r *Region) Put(key, value any, delta bool, deltaApply func(old any) (any, error)) (isUpdate bool, err error) {
	if err := r.preflight(); err != nil {
		return false, err
	}
	return r.doPut(key, value, version.Tag{}, delta, deltaApply, config.Normal)
}

func (r *Region) doPut(key, value any, tag version.Tag, delta bool, deltaApply func(any) (any, error), flags config.EventFlags) (isUpdate bool, err error) {
	existing, _ := r.entries.Get(key)
	var oldValue any
	if existing != nil && existing.Value().IsReal() {
		oldValue = existing.Value().Payload
	}
	ev := remote.ListenerEvent{Key: key, OldValue: oldValue, NewValue: value, Flags: flags}

	evtKind := remote.OpPut
	if err := r.checkWriterVeto(flags, func(w remote.CacheWriter) error {
		if oldValue == nil {
			return w.BeforeCreate(ev)
		}
		return w.BeforeUpdate(ev)
	}); err != nil {
		return false, err
	}

	uc := r.installTrackerIfNeeded(key, flags, noTracker)

	result, attempted, err := r.callRemote(context.Background(), evtKind, key, value, flags, 0)
	if err != nil && errs.Is(err, errs.KindInvalidDelta) {
		// Rule (v): invalid-delta recovery — refetch the full object and
		// retry the apply once with it instead of the delta.
		full, fullTag, ferr := r.remoteOp.GetFullObject(context.Background(), fmt.Sprint(ev.Key))
		if ferr != nil {
			return false, errs.Wrap(errs.KindInvalidDelta, ferr, "full-object refetch failed")
		}
		return r.applyPut(key, full, fullTag, false, nil, uc)
	}
	if err != nil {
		return false, err
	}
	if attempted && !result.VersionTag.IsZero() {
		tag = result.VersionTag
	}

	isUpdate, applyErr := r.applyPut(key, value, tag, delta, deltaApply, uc)
	if applyErr != nil {
		if errs.Is(applyErr, errs.KindEntryUpdated) && attempted {
			return isUpdate, nil
		}
		return isUpdate, applyErr
	}
	r.touchModified()
	r.afterEntryWritten(key, !isUpdate)
	r.dispatchListener(func(l remote.CacheListener) {
		if oldValue == nil {
			l.AfterCreate(ev)
		} else {
			l.AfterUpdate(ev)
		}
	})
	return isUpdate, nil
}

func (r *Region) applyPut(key, value any, tag version.Tag, delta bool, deltaApply func(any) (any, error), uc int64) (bool, error) {
	opts := segment.PutOptions{
		Tag:         tag,
		Delta:       delta,
		DeltaApply:  deltaApply,
		UpdateCount: uc,
		Clone:       r.Attributes().CloningEnabled,
	}
	if r.lru != nil {
		opts.RestoreOverflowed = r.lru.Restore
	}
	return r.entries.Put(key, value, opts)
}

// Invalidate implements invalidate(key) (spec §4.2.3).
func (r *Region) Invalidate(key any) error {
	if err := r.preflight(); err != nil {
		return err
	}
	return r.doInvalidate(key, config.Normal)
}

func (r *Region) doInvalidate(key any, flags config.EventFlags) error {
	e, _ := r.entries.Get(key)
	var oldValue any
	if e != nil && e.Value().IsReal() {
		oldValue = e.Value().Payload
	}
	ev := remote.ListenerEvent{Key: key, OldValue: oldValue, Flags: flags}

	result, attempted, err := r.callRemote(context.Background(), remote.OpInvalidate, key, nil, flags, 0)
	if err != nil {
		return err
	}
	tag := version.Tag{}
	if attempted && !result.VersionTag.IsZero() {
		tag = result.VersionTag
	}

	if err := r.entries.Invalidate(key, tag); err != nil {
		if errs.Is(err, errs.KindEntryUpdated) && attempted {
			return nil
		}
		return err
	}
	r.touchModified()
	if e != nil {
		r.untrackLRU(key, e, oldValue, flags)
	}
	r.dispatchListener(func(l remote.CacheListener) { l.AfterInvalidate(ev) })
	return nil
}

// Destroy implements remove(key) (spec §4.2.4), returning the prior real
// value when one existed.
func (r *Region) Destroy(key any) (any, error) {
	if err := r.preflight(); err != nil {
		return nil, err
	}
	return r.doDestroy(key, config.Normal)
}

func (r *Region) doDestroy(key any, flags config.EventFlags) (any, error) {
	e, _ := r.entries.Get(key)
	var oldValue any
	if e != nil && e.Value().IsReal() {
		oldValue = e.Value().Payload
	}
	ev := remote.ListenerEvent{Key: key, OldValue: oldValue, Flags: flags}

	if err := r.checkWriterVeto(flags, func(w remote.CacheWriter) error { return w.BeforeDestroy(ev) }); err != nil {
		return nil, err
	}

	uc := r.installTrackerIfNeeded(key, flags, noTracker)

	result, attempted, err := r.callRemote(context.Background(), remote.OpDestroy, key, nil, flags, 0)
	if err != nil {
		return nil, err
	}
	tag := version.Tag{}
	if attempted && !result.VersionTag.IsZero() {
		tag = result.VersionTag
	}

	removeResult, err := r.entries.Remove(key, tag, uc)
	if err != nil {
		if errs.Is(err, errs.KindEntryUpdated) && attempted {
			return nil, nil
		}
		return nil, err
	}
	r.touchModified()
	if e != nil {
		r.untrackLRU(key, e, oldValue, flags)
		r.cancelEntryExpiry(e)
	}
	r.afterTombstoneCreated(key)
	r.dispatchListener(func(l remote.CacheListener) { l.AfterDestroy(ev) })
	if removeResult.HadRealValue {
		return removeResult.OldValue, nil
	}
	return nil, nil
}

// destroyKeyLocal is the narrow "make this key go away" hook the LRU layer
// calls for LOCAL_DESTROY/DESTROY eviction actions (spec §4.4).
func (r *Region) destroyKeyLocal(key any) error {
	_, err := r.doDestroy(key, config.Eviction|config.Local)
	return err
}

// invalidateKeyLocal is the LRU layer's LOCAL_INVALIDATE hook.
func (r *Region) invalidateKeyLocal(key any) error {
	return r.doInvalidate(key, config.Eviction|config.Local)
}

// ProcessLRU runs one eviction sweep if this region has an LRU layer
// configured; EvictionController calls this under heap pressure, and the
// region itself can call it after every Put/Create (spec §4.4, §4.8).
func (r *Region) ProcessLRU() error {
	if r.lru == nil {
		return nil
	}
	return r.lru.ProcessLRU(r.destroyKeyLocal, r.invalidateKeyLocal)
}

// Evict implements region.evict(overshootPct), the EvictionController's
// heap-pressure callback (spec §4.8).
func (r *Region) Evict(overshootPct float64) error {
	if r.lru == nil {
		return nil
	}
	return r.lru.Evict(overshootPct, r.destroyKeyLocal, r.invalidateKeyLocal)
}
