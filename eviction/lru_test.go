package eviction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regioncache/config"
	"regioncache/entry"
)

type fakeBacking struct {
	entries map[any]*entry.Entry
}

func (b *fakeBacking) Get(key any) (*entry.Entry, bool) {
	e, ok := b.entries[key]
	return e, ok
}
func (b *fakeBacking) ContainsKey(key any) bool {
	_, ok := b.entries[key]
	return ok
}

func newTrackedEntry(key any, value any) *entry.Entry {
	return entry.New(key, entry.Real(value), entry.Kind{LRU: true})
}

func TestMustEvictRespectsLimit(t *testing.T) {
	backing := &fakeBacking{entries: make(map[any]*entry.Entry)}
	m := NewLRUEntriesMap(backing, 2, config.LocalDestroy, nil, nil)

	for _, k := range []string{"a", "b"} {
		e := newTrackedEntry(k, k)
		backing.entries[k] = e
		m.Track(k, e, 1, 1)
	}
	assert.False(t, m.MustEvict())

	e := newTrackedEntry("c", "c")
	backing.entries["c"] = e
	m.Track("c", e, 1, 1)
	assert.True(t, m.MustEvict())
}

func TestZeroLimitNeverEvicts(t *testing.T) {
	backing := &fakeBacking{entries: make(map[any]*entry.Entry)}
	m := NewLRUEntriesMap(backing, 0, config.LocalDestroy, nil, nil)
	e := newTrackedEntry("a", "a")
	m.Track("a", e, 1, 1)
	assert.False(t, m.MustEvict())
}

func TestProcessLRUDestroysOldestNonRecentEntry(t *testing.T) {
	backing := &fakeBacking{entries: make(map[any]*entry.Entry)}
	m := NewLRUEntriesMap(backing, 2, config.LocalDestroy, nil, nil)

	order := []string{"a", "b", "c"}
	for _, k := range order {
		e := newTrackedEntry(k, k)
		e.LRU().RecentlyUsed = false
		backing.entries[k] = e
		m.Track(k, e, 1, 1)
	}

	var destroyed []any
	err := m.ProcessLRU(func(key any) error {
		destroyed = append(destroyed, key)
		delete(backing.entries, key)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, destroyed)
	assert.False(t, m.MustEvict())
}

func TestRecentlyUsedEntryIsDemotedNotEvicted(t *testing.T) {
	backing := &fakeBacking{entries: make(map[any]*entry.Entry)}
	m := NewLRUEntriesMap(backing, 1, config.LocalDestroy, nil, nil)

	a := newTrackedEntry("a", "a")
	a.LRU().RecentlyUsed = true
	backing.entries["a"] = a
	m.Track("a", a, 1, 1)

	b := newTrackedEntry("b", "b")
	b.LRU().RecentlyUsed = false
	backing.entries["b"] = b
	m.Track("b", b, 1, 1)

	var destroyed []any
	err := m.ProcessLRU(func(key any) error {
		destroyed = append(destroyed, key)
		delete(backing.entries, key)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"b"}, destroyed)
	assert.False(t, a.LRU().RecentlyUsed, "a should have been demoted on its first scan")
}

type fakePersist struct {
	writes map[any]any
}

func (p *fakePersist) Write(key any, value any) (any, error) {
	if p.writes == nil {
		p.writes = make(map[any]any)
	}
	p.writes[key] = value
	return "disk:" + key.(string), nil
}
func (p *fakePersist) Read(key any, info any) (any, error) {
	return p.writes[key], nil
}
func (p *fakePersist) Destroy(key any, info any) error { return nil }

func TestOverflowToDiskWritesAndMarksOverflowed(t *testing.T) {
	backing := &fakeBacking{entries: make(map[any]*entry.Entry)}
	persist := &fakePersist{}
	m := NewLRUEntriesMap(backing, 1, config.OverflowToDisk, persist, nil)

	a := newTrackedEntry("a", "va")
	backing.entries["a"] = a
	m.Track("a", a, 1, 1)

	b := newTrackedEntry("b", "vb")
	backing.entries["b"] = b
	m.Track("b", b, 1, 1)

	err := m.ProcessLRU(nil, nil)
	require.NoError(t, err)
	assert.True(t, a.Value().IsSentinel(entry.Overflowed))
	assert.Equal(t, "va", persist.writes["a"])
	assert.Equal(t, int64(1), m.ValidCount())
}
