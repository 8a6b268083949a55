// Package errs defines the error taxonomy shared by every regioncache
// package: argument errors, state errors, concurrency-control rejections,
// and the handful of entry-lifecycle statuses the segment/region layers
// hand back to callers.
package errs

import "github.com/cockroachdb/errors"

// Kind classifies a regioncache error so callers can branch on taxonomy
// instead of string-matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindArgument
	KindState
	KindConcurrentModification
	KindInvalidDelta
	KindEntryExists
	KindEntryNotFound
	KindEntryUpdated
	KindWriterVeto
	KindListenerFailure
	KindLoaderFailure
	KindPersistenceFailure
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindState:
		return "state"
	case KindConcurrentModification:
		return "concurrent-modification"
	case KindInvalidDelta:
		return "invalid-delta"
	case KindEntryExists:
		return "entry-exists"
	case KindEntryNotFound:
		return "entry-not-found"
	case KindEntryUpdated:
		return "entry-updated"
	case KindWriterVeto:
		return "writer-veto"
	case KindListenerFailure:
		return "listener-failure"
	case KindLoaderFailure:
		return "loader-failure"
	case KindPersistenceFailure:
		return "persistence-failure"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Error is a regioncache error tagged with a Kind, wrapping an underlying
// cockroachdb/errors value for stack traces and %w chaining.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// New builds a tagged error from a message, formatted with cockroachdb/errors
// so call sites still get a stack trace attached.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.New(msg)}
}

// Newf builds a tagged, formatted error.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: errors.Newf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving %w unwrapping.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

// Is reports whether err (or anything in its chain) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.kind == kind {
				return true
			}
			err = e.err
			continue
		}
		return false
	}
	return false
}

// GetKind extracts the Kind from err, or KindUnknown if err was not produced
// by this package.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// Sentinel values for conditions that do not need a formatted message at the
// call site — callers compare with errors.Is the same way the teacher's
// mysql package exposes ErrWhereRequired-style sentinels.
var (
	ErrNilKey             = New(KindArgument, "key must not be nil")
	ErrInvalidDuration    = New(KindArgument, "duration must be non-negative")
	ErrInvalidEnum        = New(KindArgument, "invalid enum value")
	ErrRegionClosed       = New(KindState, "operation on a closed region")
	ErrRegionDestroying   = New(KindState, "region destroy is pending")
	ErrManagerNotRunning  = New(KindState, "expiry task manager is not running")
	ErrDoubleStart        = New(KindState, "expiry task manager already started")
	ErrDoubleStop         = New(KindState, "expiry task manager already stopped")
	ErrFeatureDisabled    = New(KindState, "attribute change requires the corresponding feature to be enabled at region creation")
	ErrConcurrentMod      = New(KindConcurrentModification, "version tag rejected by conflict check")
	ErrInvalidDelta       = New(KindInvalidDelta, "delta cannot be applied to current entry state")
	ErrEntryExists        = New(KindEntryExists, "entry already exists")
	ErrEntryNotFound      = New(KindEntryNotFound, "entry not found")
	ErrEntryUpdated       = New(KindEntryUpdated, "entry updated concurrently by a tracked write")
	ErrWriterVeto         = New(KindWriterVeto, "cache writer vetoed the operation")
)
