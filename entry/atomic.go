package entry

import "sync/atomic"

// atomicTime stores a UnixNano timestamp behind an atomic so expiry tasks
// can read last-accessed/last-modified without taking the owning
// segment's lock (spec §5).
type atomicTime struct {
	nanos atomic.Int64
}

func (t *atomicTime) store(v int64) { t.nanos.Store(v) }
func (t *atomicTime) load() int64   { return t.nanos.Load() }
