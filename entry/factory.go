package entry

import "regioncache/config"

// Factory constructs Entry values with the composition a region's
// attributes call for, decided once at region-open time (spec §4.3).
type Factory struct {
	kind Kind
}

// NewFactory derives the Kind from region attributes: versioning follows
// ConcurrencyChecksEnabled, LRU follows LRUEnabled(), expiration follows
// ExpirationEnabled().
func NewFactory(attrs config.Attributes) *Factory {
	return &Factory{
		kind: Kind{
			Versioned: attrs.ConcurrencyChecksEnabled,
			LRU:       attrs.LRUEnabled(),
			Expiring:  attrs.ExpirationEnabled(),
		},
	}
}

// Kind exposes the composition this factory builds, mostly for tests.
func (f *Factory) Kind() Kind { return f.kind }

// NewEntry builds an Entry for key/value using this factory's composition.
func (f *Factory) NewEntry(key any, value Value) *Entry {
	return New(key, value, f.kind)
}
