package region

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regioncache/config"
	"regioncache/remote"
	"regioncache/version"
)

func newTestRegion(t *testing.T, mutate func(*config.Attributes)) *Region {
	t.Helper()
	attrs := config.DefaultAttributes()
	if mutate != nil {
		mutate(&attrs)
	}
	r, err := Open("orders", attrs, Collaborators{})
	require.NoError(t, err)
	return r
}

func TestCreatePutGetDestroyRoundTrip(t *testing.T) {
	r := newTestRegion(t, nil)

	require.NoError(t, r.Create("k1", "v1"))
	value, found, err := r.Get("k1", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", value)

	isUpdate, err := r.Put("k1", "v2", false, nil)
	require.NoError(t, err)
	assert.True(t, isUpdate)

	old, err := r.Destroy("k1")
	require.NoError(t, err)
	assert.Equal(t, "v2", old)

	_, found, err = r.Get("k1", nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateOnLiveKeyReturnsEntryExists(t *testing.T) {
	r := newTestRegion(t, nil)
	require.NoError(t, r.Create("k1", "v1"))
	err := r.Create("k1", "v2")
	assert.Error(t, err)
}

func TestInvalidateClearsValueButKeepsEntry(t *testing.T) {
	r := newTestRegion(t, nil)
	require.NoError(t, r.Create("k1", "v1"))
	require.NoError(t, r.Invalidate("k1"))

	_, found, err := r.Get("k1", nil)
	require.NoError(t, err)
	assert.False(t, found)
}

// --- writer veto ---

type vetoingWriter struct {
	createErr error
}

func (w *vetoingWriter) BeforeCreate(remote.ListenerEvent) error       { return w.createErr }
func (w *vetoingWriter) BeforeUpdate(remote.ListenerEvent) error       { return nil }
func (w *vetoingWriter) BeforeDestroy(remote.ListenerEvent) error      { return nil }
func (w *vetoingWriter) BeforeRegionDestroy(remote.ListenerEvent) error { return nil }
func (w *vetoingWriter) BeforeRegionClear(remote.ListenerEvent) error  { return nil }

func TestWriterVetoBlocksCreate(t *testing.T) {
	attrs := config.DefaultAttributes()
	r, err := Open("orders", attrs, Collaborators{Writer: &vetoingWriter{createErr: assert.AnError}})
	require.NoError(t, err)

	err = r.Create("k1", "v1")
	assert.Error(t, err)
	_, found, _ := r.Get("k1", nil)
	assert.False(t, found)
}

type destroyVetoingWriter struct{ vetoingWriter }

func (w *destroyVetoingWriter) BeforeDestroy(remote.ListenerEvent) error { return assert.AnError }

func TestWriterVetoIgnoredOnEviction(t *testing.T) {
	attrs := config.DefaultAttributes()
	r, err := Open("orders", attrs, Collaborators{Writer: &destroyVetoingWriter{}})
	require.NoError(t, err)
	require.NoError(t, r.Create("k1", "v1"))

	// A normal destroy is vetoed...
	_, err = r.Destroy("k1")
	assert.Error(t, err)

	// ...but an eviction-flagged destroy bypasses the veto (spec §4.9).
	require.NoError(t, r.destroyKeyLocal("k1"))
	_, found, _ := r.Get("k1", nil)
	assert.False(t, found)
}

// --- listener dispatch ---

type recordingListener struct {
	created   []any
	destroyed []any
}

func (l *recordingListener) AfterCreate(ev remote.ListenerEvent)  { l.created = append(l.created, ev.Key) }
func (l *recordingListener) AfterUpdate(remote.ListenerEvent)     {}
func (l *recordingListener) AfterDestroy(ev remote.ListenerEvent) { l.destroyed = append(l.destroyed, ev.Key) }
func (l *recordingListener) AfterInvalidate(remote.ListenerEvent)       {}
func (l *recordingListener) AfterRegionDestroy(remote.ListenerEvent)    {}
func (l *recordingListener) AfterRegionInvalidate(remote.ListenerEvent) {}
func (l *recordingListener) AfterRegionClear(remote.ListenerEvent)      {}
func (l *recordingListener) AfterRegionDisconnected()                   {}
func (l *recordingListener) Close()                                    {}

func TestListenerDispatchedAfterCreateAndDestroy(t *testing.T) {
	listener := &recordingListener{}
	attrs := config.DefaultAttributes()
	r, err := Open("orders", attrs, Collaborators{Listener: listener})
	require.NoError(t, err)

	require.NoError(t, r.Create("k1", "v1"))
	_, err = r.Destroy("k1")
	require.NoError(t, err)

	assert.Equal(t, []any{"k1"}, listener.created)
	assert.Equal(t, []any{"k1"}, listener.destroyed)
}

type panickingListener struct{ recordingListener }

func (l *panickingListener) AfterCreate(remote.ListenerEvent) { panic("boom") }

func TestListenerPanicDoesNotRollBackWrite(t *testing.T) {
	attrs := config.DefaultAttributes()
	r, err := Open("orders", attrs, Collaborators{Listener: &panickingListener{}})
	require.NoError(t, err)

	require.NoError(t, r.Create("k1", "v1"))
	value, found, err := r.Get("k1", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", value)
}

// --- remote collaborator ---

type fakeRemoteOp struct {
	nextStatus remote.Status
	nextTag    version.Tag
	calls      int
}

func (f *fakeRemoteOp) Call(_ context.Context, _ remote.OpKind, _ any, _ any, _ time.Duration) (remote.Result, error) {
	f.calls++
	return remote.Result{Status: f.nextStatus, VersionTag: f.nextTag}, nil
}

func (f *fakeRemoteOp) GetFullObject(_ context.Context, _ string) (any, version.Tag, error) {
	return nil, version.Tag{}, nil
}

func TestRemoteCalledBeforeLocalApplyForNormalEvent(t *testing.T) {
	fake := &fakeRemoteOp{nextStatus: remote.StatusOK}
	attrs := config.DefaultAttributes()
	r, err := Open("orders", attrs, Collaborators{
		RemoteOp:     fake,
		RemoteTuning: config.DefaultRemoteTuning(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Create("k1", "v1"))
	assert.Equal(t, 1, fake.calls)
}

func TestLocalEventSkipsRemoteCall(t *testing.T) {
	fake := &fakeRemoteOp{nextStatus: remote.StatusOK}
	attrs := config.DefaultAttributes()
	r, err := Open("orders", attrs, Collaborators{
		RemoteOp:     fake,
		RemoteTuning: config.DefaultRemoteTuning(),
	})
	require.NoError(t, err)

	_, err = r.doCreate("k1", "v1", version.Tag{}, config.Normal|config.Local)
	require.NoError(t, err)
	assert.Equal(t, 0, fake.calls)
}

// --- sub-regions ---

func TestSubRegionDestroyPropagatesAndUnlinks(t *testing.T) {
	parent := newTestRegion(t, nil)
	child, err := parent.OpenSubRegion("line-items", config.DefaultAttributes(), Collaborators{})
	require.NoError(t, err)
	require.NoError(t, child.Create("li-1", "widget"))

	require.NoError(t, parent.DestroyRegion())

	_, found := parent.SubRegion("line-items")
	assert.False(t, found)
	assert.True(t, child.destroyPending.Load())
}

func TestOperationsFailFastWhileDestroyPending(t *testing.T) {
	r := newTestRegion(t, nil)
	r.destroyPending.Store(true)

	err := r.Create("k1", "v1")
	assert.ErrorIs(t, err, errDestroying())
}

// --- attribute mutator ---

func TestSetLRUEntriesLimitRejectedWhenLRUDisabled(t *testing.T) {
	r := newTestRegion(t, nil)
	err := r.SetLRUEntriesLimit(10)
	assert.Error(t, err)
}

func TestSetLRUEntriesLimitAppliesWhenEnabledAtCreation(t *testing.T) {
	r := newTestRegion(t, func(a *config.Attributes) { a.LRUEntriesLimit = 100 })
	require.NoError(t, r.SetLRUEntriesLimit(5))
	assert.Equal(t, 5, r.Attributes().LRUEntriesLimit)
}

func TestEntryTimeToLiveCannotBeEnabledAfterCreation(t *testing.T) {
	r := newTestRegion(t, nil)
	err := r.SetEntryTimeToLive(config.Expiration{Timeout: time.Minute, Action: config.DestroyAction})
	assert.Error(t, err)
}

func TestEntryTimeToLiveCannotBeDowngradedToDisabled(t *testing.T) {
	r := newTestRegion(t, func(a *config.Attributes) {
		a.EntryTimeToLive = config.Expiration{Timeout: time.Minute, Action: config.DestroyAction}
	})
	err := r.SetEntryTimeToLive(config.Expiration{})
	assert.Error(t, err)
}
