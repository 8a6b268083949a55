package expiry

import (
	"time"

	"regioncache/config"
	"regioncache/entry"
)

// nowNano is test-seamed so expiry tests can control the clock without
// sleeping real time.
var nowNano = func() int64 { return time.Now().UnixNano() }

// EntryActor is the region-side collaborator an EntryExpiryTask fires
// against (spec §4.7): perform action against key under EXPIRATION event
// flags.
type EntryActor interface {
	ExpireEntry(key any, action config.ExpirationAction) error
}

// EntryExpiryTask implements spec §4.7's entry-level task: expire_at() is
// derived from whichever of last-modified/last-accessed the configured
// expiration cares about, re-read on every fire so a write or read that
// landed after scheduling pushes the deadline out instead of firing early.
type EntryExpiryTask struct {
	key      any
	e        *entry.Entry
	actor    EntryActor
	duration time.Duration
	useTTL   bool // true: last-modified (TTL); false: last-accessed (idle)
	action   config.ExpirationAction

	manager *Manager
	selfID  int64
}

// NewEntryExpiryTask constructs the task; the caller schedules it on a
// Manager and then calls Bind so the task can call Reset on itself.
func NewEntryExpiryTask(key any, e *entry.Entry, actor EntryActor, duration time.Duration, useTTL bool, action config.ExpirationAction) *EntryExpiryTask {
	return &EntryExpiryTask{key: key, e: e, actor: actor, duration: duration, useTTL: useTTL, action: action}
}

// Bind attaches the manager and the id Schedule returned, so OnExpire can
// call Reset on itself when the guarded timestamp moved.
func (t *EntryExpiryTask) Bind(m *Manager, id int64) {
	t.manager = m
	t.selfID = id
}

func (t *EntryExpiryTask) expireAt() int64 {
	guard := t.e.Exp().LastAccessed()
	if t.useTTL {
		guard = t.e.Exp().LastModified()
	}
	return guard + t.duration.Nanoseconds()
}

// OnExpire implements the reschedule-instead-of-fire pattern shared by
// every expiry task (spec §4.7).
func (t *EntryExpiryTask) OnExpire() bool {
	if deadline := t.expireAt(); deadline > nowNano() {
		t.manager.Reset(t.selfID, time.Duration(deadline-nowNano()))
		return false
	}
	if err := t.actor.ExpireEntry(t.key, t.action); err != nil {
		logger.WithError(err).Warn("entry expiry action failed")
	}
	return true
}

// RegionActor is the region-level analog of EntryActor: expire the whole
// region (spec §4.7's RegionExpiryTask).
type RegionActor interface {
	LastAccessed() int64
	LastModified() int64
	ExpireRegion(action config.ExpirationAction) error
}

// RegionExpiryTask mirrors EntryExpiryTask at region granularity, reading
// the region's own statistics instead of a single entry's.
type RegionExpiryTask struct {
	actor    RegionActor
	duration time.Duration
	useTTL   bool
	action   config.ExpirationAction

	manager *Manager
	selfID  int64
}

func NewRegionExpiryTask(actor RegionActor, duration time.Duration, useTTL bool, action config.ExpirationAction) *RegionExpiryTask {
	return &RegionExpiryTask{actor: actor, duration: duration, useTTL: useTTL, action: action}
}

func (t *RegionExpiryTask) Bind(m *Manager, id int64) {
	t.manager = m
	t.selfID = id
}

func (t *RegionExpiryTask) expireAt() int64 {
	guard := t.actor.LastAccessed()
	if t.useTTL {
		guard = t.actor.LastModified()
	}
	return guard + t.duration.Nanoseconds()
}

func (t *RegionExpiryTask) OnExpire() bool {
	if deadline := t.expireAt(); deadline > nowNano() {
		t.manager.Reset(t.selfID, time.Duration(deadline-nowNano()))
		return false
	}
	if err := t.actor.ExpireRegion(t.action); err != nil {
		logger.WithError(err).Warn("region expiry action failed")
	}
	return true
}

// TombstoneReaper is the segment-side collaborator a TombstoneExpiryTask
// fires against: remove_tomb_entry (spec §4.2.6, §4.7).
type TombstoneReaper interface {
	RemoveTombstoneEntry(key any) bool
}

// TombstoneExpiryTask removes a single tombstone on timeout, a no-op if a
// competing reap or re-create already invalidated it (spec §4.7).
type TombstoneExpiryTask struct {
	key    any
	reaper TombstoneReaper
}

func NewTombstoneExpiryTask(key any, reaper TombstoneReaper) *TombstoneExpiryTask {
	return &TombstoneExpiryTask{key: key, reaper: reaper}
}

func (t *TombstoneExpiryTask) OnExpire() bool {
	t.reaper.RemoveTombstoneEntry(t.key)
	return true
}

// PdxUnreadDataExpiryTask releases preserved unread-field buffers after a
// timeout to bound memory (spec §4.7) — single-shot, no reschedule logic,
// since unlike entry/region expiry there is no "touched since scheduling"
// guard to re-check.
type PdxUnreadDataExpiryTask struct {
	release func()
}

func NewPdxUnreadDataExpiryTask(release func()) *PdxUnreadDataExpiryTask {
	return &PdxUnreadDataExpiryTask{release: release}
}

func (t *PdxUnreadDataExpiryTask) OnExpire() bool {
	t.release()
	return true
}
