package region

import "regioncache/remote"

// persistAdapter narrows a remote.PersistenceManager (Init/Read/Write/
// Destroy/Close, keyed by region name) down to the three-method shape
// eviction.PersistenceManager expects for LRU overflow-to-disk. Init/Close
// stay the region's responsibility since they are per-region lifecycle,
// not per-overflow-write.
type persistAdapter struct {
	inner remote.PersistenceManager
}

func (a *persistAdapter) Write(key any, value any) (any, error) {
	return a.inner.Write(key, value, nil)
}

func (a *persistAdapter) Read(key any, info any) (any, error) {
	return a.inner.Read(key, info)
}

func (a *persistAdapter) Destroy(key any, info any) error {
	return a.inner.Destroy(key, info)
}
