// Package region implements the LocalRegion orchestrator (spec §4.9): the
// public region API, composed from segment/entry/version for storage,
// eviction/expiry for background maintenance, and remote/persistence for
// the external collaborators spec §6 names.
package region

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"regioncache/config"
	"regioncache/eviction"
	"regioncache/expiry"
	"regioncache/remote"
	"regioncache/segment"
	"regioncache/version"
)

var logger = logrus.WithFields(logrus.Fields{"component": "region"})

// Collaborators bundles the external collaborators a region may be opened
// with (spec §6); every field is optional.
type Collaborators struct {
	RemoteOp   remote.RemoteOp
	Persist    remote.PersistenceManager
	Listener   remote.CacheListener
	Writer     remote.CacheWriter
	Loader     remote.CacheLoader
	Resolver   remote.PartitionResolver
	ExpiryMgr  *expiry.Manager // shared across every region in the process
	Members    *version.MemberList
	LocalMember version.Descriptor
	RemoteTuning config.RemoteTuning
	// EvictionCtl is the shared, process-wide heap-usage controller (spec
	// §4.8); only consulted when the region's own HeapLRUEnabled is set.
	EvictionCtl *eviction.Controller
}

// Region is a LocalRegion: one named cache region plus its sub-region
// tree. Attribute reads/writes take attrsMu; the sub-region tree takes
// subMu; neither nests under the other, so there is no recursive-mutex
// equivalent to emulate (spec §9 already permits collapsing the source's
// spinlock/recursive-mutex split onto plain sync.Mutex; the same applies
// one level up, to this tree).
type Region struct {
	name string

	attrsMu sync.RWMutex
	attrs   config.Attributes
	enabled enabledAtCreation

	entries *segment.ConcurrentEntriesMap
	lru     *eviction.LRUEntriesMap

	remoteOp     remote.RemoteOp
	persist      remote.PersistenceManager
	listener     remote.CacheListener
	writer       remote.CacheWriter
	loader       remote.CacheLoader
	resolver     remote.PartitionResolver
	expiryMgr    *expiry.Manager
	members      *version.MemberList
	memberID     uint16
	remoteTuning config.RemoteTuning
	evictionCtl  *eviction.Controller

	destroyPending atomic.Bool
	closed         atomic.Bool

	lastAccessedNano atomic.Int64
	lastModifiedNano atomic.Int64
	regionExpiryTaskIDs []int64

	subMu      sync.Mutex
	subRegions map[string]*Region
	parent     *Region
}

// Open constructs a region named name with the given attributes and
// collaborators (spec §4.9's region-open path). attrs is validated and
// clamped exactly as config.Attributes.Validate describes.
func Open(name string, attrs config.Attributes, collab Collaborators) (*Region, error) {
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	members := collab.Members
	if members == nil {
		members = version.NewMemberList()
	}
	var memberID uint16
	if collab.LocalMember != nil {
		memberID = members.Add(collab.LocalMember)
	}

	entries := segment.NewConcurrentEntriesMap(attrs.InitialCapacity, attrs.ConcurrencyLevel, attrs)

	r := &Region{
		name:         name,
		attrs:        attrs,
		enabled:      deriveEnabled(attrs),
		entries:      entries,
		remoteOp:     collab.RemoteOp,
		persist:      collab.Persist,
		listener:     collab.Listener,
		writer:       collab.Writer,
		loader:       collab.Loader,
		resolver:     collab.Resolver,
		expiryMgr:    collab.ExpiryMgr,
		members:      members,
		memberID:     memberID,
		remoteTuning: collab.RemoteTuning,
		evictionCtl:  collab.EvictionCtl,
		subRegions:   make(map[string]*Region),
	}

	if attrs.LRUEnabled() {
		var pm eviction.PersistenceManager
		if collab.Persist != nil {
			pm = &persistAdapter{inner: collab.Persist}
		}
		var onSizeDelta func(int64)
		if attrs.HeapLRUEnabled && collab.EvictionCtl != nil {
			onSizeDelta = collab.EvictionCtl.IncrementHeapSize
		}
		r.lru = eviction.NewLRUEntriesMap(entries, attrs.LRUEntriesLimit, attrs.LRUEvictionAction, pm, onSizeDelta)
		if attrs.HeapLRUEnabled && collab.EvictionCtl != nil {
			collab.EvictionCtl.Register(name, r)
		}
	}

	if collab.Persist != nil {
		if err := collab.Persist.Init(name, nil); err != nil {
			return nil, err
		}
	}

	now := time.Now().UnixNano()
	r.lastAccessedNano.Store(now)
	r.lastModifiedNano.Store(now)
	r.scheduleRegionExpiry()

	return r, nil
}

// Name returns the region's name.
func (r *Region) Name() string { return r.name }

// Attributes returns a snapshot of the region's current attributes.
func (r *Region) Attributes() config.Attributes {
	r.attrsMu.RLock()
	defer r.attrsMu.RUnlock()
	return r.attrs
}

// Size returns the number of live (non-tombstone) entries (spec §4.1).
func (r *Region) Size() int64 { return r.entries.Size() }

// Close releases the region's background resources (expiry task, any
// persistence manager) without touching sub-regions; DestroyRegion is the
// recursive, data-clearing counterpart.
func (r *Region) Close() error {
	r.closed.Store(true)
	if r.expiryMgr != nil {
		for _, id := range r.regionExpiryTaskIDs {
			r.expiryMgr.Cancel(id)
		}
	}
	if r.evictionCtl != nil {
		r.evictionCtl.Deregister(r.name)
	}
	if r.listener != nil {
		r.listener.Close()
	}
	if r.persist != nil {
		return r.persist.Close()
	}
	return nil
}

func (r *Region) checkNotDestroying() error {
	if r.closed.Load() {
		return errClosed()
	}
	if r.destroyPending.Load() {
		return errDestroying()
	}
	return nil
}

func (r *Region) touchAccessed() {
	r.lastAccessedNano.Store(time.Now().UnixNano())
}

func (r *Region) touchModified() {
	now := time.Now().UnixNano()
	r.lastModifiedNano.Store(now)
	r.lastAccessedNano.Store(now)
}

// LastAccessed / LastModified implement expiry.RegionActor.
func (r *Region) LastAccessed() int64 { return r.lastAccessedNano.Load() }
func (r *Region) LastModified() int64 { return r.lastModifiedNano.Load() }
