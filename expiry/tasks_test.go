package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regioncache/config"
	"regioncache/entry"
)

type fakeEntryActor struct {
	calls int
	last  config.ExpirationAction
}

func (f *fakeEntryActor) ExpireEntry(key any, action config.ExpirationAction) error {
	f.calls++
	f.last = action
	return nil
}

func TestEntryExpiryTaskReschedulesWhenTouchedSinceScheduling(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start())
	defer m.Stop()

	e := entry.New("k", entry.Real("v"), entry.Kind{Expiring: true})
	e.Exp().SetLastAccessed(time.Now().UnixNano())

	actor := &fakeEntryActor{}
	task := NewEntryExpiryTask("k", e, actor, 24*time.Hour, false, config.DestroyAction)

	id := m.Schedule(task, time.Millisecond, 0)
	task.Bind(m, id)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, actor.calls, "should have rescheduled instead of firing")
}

func TestEntryExpiryTaskFiresWhenDeadlinePassed(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Start())
	defer m.Stop()

	e := entry.New("k", entry.Real("v"), entry.Kind{Expiring: true})
	e.Exp().SetLastAccessed(time.Now().Add(-time.Hour).UnixNano())

	actor := &fakeEntryActor{}
	task := NewEntryExpiryTask("k", e, actor, time.Millisecond, false, config.LocalDestroyAction)

	id := m.Schedule(task, time.Millisecond, 0)
	task.Bind(m, id)

	assert.Eventually(t, func() bool { return actor.calls == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, config.LocalDestroyAction, actor.last)
}

type fakeTombstoneReaper struct{ removed []any }

func (f *fakeTombstoneReaper) RemoveTombstoneEntry(key any) bool {
	f.removed = append(f.removed, key)
	return true
}

func TestTombstoneExpiryTaskRemovesOnFire(t *testing.T) {
	reaper := &fakeTombstoneReaper{}
	task := NewTombstoneExpiryTask("k", reaper)
	assert.True(t, task.OnExpire())
	assert.Equal(t, []any{"k"}, reaper.removed)
}

func TestPdxUnreadDataExpiryTaskReleasesOnce(t *testing.T) {
	released := 0
	task := NewPdxUnreadDataExpiryTask(func() { released++ })
	assert.True(t, task.OnExpire())
	assert.Equal(t, 1, released)
}
