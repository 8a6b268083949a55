// Package remote defines the external collaborator interfaces the region
// orchestrator talks to (spec §6): the opaque remote-operation gateway,
// persistence manager, cache listener/writer/loader, and the handful of
// descriptor types the core never interprets beyond hash/compare/equals.
package remote

import (
	"context"
	"time"

	"regioncache/config"
	"regioncache/version"
)

// OpKind names the region API operation a RemoteOp call is forwarding.
type OpKind int

const (
	OpCreate OpKind = iota
	OpPut
	OpInvalidate
	OpDestroy
	OpGet
)

// Status is the RemoteOp outcome taxonomy from spec §6.
type Status int

const (
	StatusOK Status = iota
	StatusNotAuthorized
	StatusTimedOut
	StatusTransactionDataRebalanced
	StatusTransactionDataNodeDeparted
	StatusInvalidDelta
	StatusError
)

// Result is what a RemoteOp call hands back: a status plus the optional
// return value and version tag spec §6 describes.
type Result struct {
	Status      Status
	Value       any
	VersionTag  version.Tag
}

// RemoteOp is the single external gateway every region write/read goes
// through before (or instead of) touching the local segment (spec §6). The
// engine treats op/key/value as opaque. Call takes no completion callback:
// every call blocks until its Result is available.
type RemoteOp interface {
	Call(ctx context.Context, op OpKind, key any, value any, timeout time.Duration) (Result, error)

	// GetFullObject implements spec §6's invalid-delta recovery path: a
	// full-object refetch keyed by the event that failed delta application.
	GetFullObject(ctx context.Context, eventID string) (any, version.Tag, error)
}

// PersistenceManager is spec §6's disk-overflow collaborator.
type PersistenceManager interface {
	Init(regionName string, properties map[string]any) error
	Read(key any, info any) (any, error)
	Write(key any, value any, info any) (newInfo any, err error)
	Destroy(key any, info any) error
	Close() error
}

// ListenerEvent is the argument every CacheListener callback receives.
type ListenerEvent struct {
	Key      any
	OldValue any
	NewValue any
	Flags    config.EventFlags
}

// CacheListener is spec §6's after-the-fact notification collaborator.
// Implementations must not block; listener exceptions are caught by the
// region layer and reported as a listener-error status without rolling
// back the data change (spec §4.9).
type CacheListener interface {
	AfterCreate(event ListenerEvent)
	AfterUpdate(event ListenerEvent)
	AfterDestroy(event ListenerEvent)
	AfterInvalidate(event ListenerEvent)
	AfterRegionDestroy(event ListenerEvent)
	AfterRegionInvalidate(event ListenerEvent)
	AfterRegionClear(event ListenerEvent)
	AfterRegionDisconnected()
	Close()
}

// CacheWriter is spec §6's veto-capable pre-mutation collaborator.
type CacheWriter interface {
	BeforeCreate(event ListenerEvent) error
	BeforeUpdate(event ListenerEvent) error
	BeforeDestroy(event ListenerEvent) error
	BeforeRegionDestroy(event ListenerEvent) error
	BeforeRegionClear(event ListenerEvent) error
}

// CacheLoader is spec §6's miss-fill collaborator.
type CacheLoader interface {
	Load(regionName string, key any, callbackArg any) (any, error)
}

// PartitionResolver picks the routing key stamped on outbound remote
// operations (spec §6); the core never consults it for anything else.
type PartitionResolver interface {
	RoutingObject(event ListenerEvent) (any, error)
}
