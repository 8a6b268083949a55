package region

import (
	"regioncache/config"
	"regioncache/expiry"
)

// scheduleRegionExpiry arms one RegionExpiryTask per enabled region-level
// timeout (spec §4.7): TTL and idle timeout are independent guards, so a
// region with both configured carries two tasks.
func (r *Region) scheduleRegionExpiry() {
	if r.expiryMgr == nil {
		return
	}
	attrs := r.Attributes()
	if attrs.RegionTimeToLive.Enabled() {
		r.armRegionExpiry(attrs.RegionTimeToLive, true)
	}
	if attrs.RegionIdleTimeout.Enabled() {
		r.armRegionExpiry(attrs.RegionIdleTimeout, false)
	}
}

func (r *Region) armRegionExpiry(exp config.Expiration, useTTL bool) {
	task := expiry.NewRegionExpiryTask(r, exp.Timeout, useTTL, exp.Action)
	id := r.expiryMgr.Schedule(task, exp.Timeout, 0)
	task.Bind(r.expiryMgr, id)
	r.regionExpiryTaskIDs = append(r.regionExpiryTaskIDs, id)
}

// ExpireRegion implements expiry.RegionActor: fired once this region's TTL
// or idle timeout is confirmed still due (spec §4.7). A destroying region
// ignores a redundant fire.
func (r *Region) ExpireRegion(action config.ExpirationAction) error {
	if r.destroyPending.Load() {
		return nil
	}
	flags := config.ExpirationFlag | config.Notification
	switch action {
	case config.DestroyAction:
		return r.destroyRegion(flags)
	case config.LocalDestroyAction:
		return r.destroyRegion(flags | config.Local)
	case config.LocalInvalidateAction:
		return r.invalidateRegion(flags | config.Local)
	default: // config.Invalidate
		return r.invalidateRegion(flags)
	}
}

// ExpireEntry implements expiry.EntryActor: fired once an entry's TTL or
// idle timeout is confirmed still due. This takes the same path a public
// Invalidate/Destroy call would, tagged with the EXPIRATION event flag so
// writer vetoes are bypassed (spec §4.9).
func (r *Region) ExpireEntry(key any, action config.ExpirationAction) error {
	flags := config.ExpirationFlag | config.Notification
	switch action {
	case config.DestroyAction:
		_, err := r.doDestroy(key, flags)
		return err
	case config.LocalDestroyAction:
		_, err := r.doDestroy(key, flags|config.Local)
		return err
	case config.LocalInvalidateAction:
		return r.doInvalidate(key, flags|config.Local)
	default: // config.Invalidate
		return r.doInvalidate(key, flags)
	}
}
