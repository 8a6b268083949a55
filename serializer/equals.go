package serializer

import "reflect"

// Equatable lets a value type own its own equality check; this is the
// delegate spec §9 points to in place of dynamic_cast-based serializer
// dispatch.
type Equatable interface {
	Equals(other any) bool
}

// Equals implements the engine's equals(a,b) predicate over opaque values
// (spec's Key/Value glossary entries): values implementing Equatable
// decide for themselves, everything else falls back to a structural
// comparison.
func Equals(a, b any) bool {
	if ea, ok := a.(Equatable); ok {
		return ea.Equals(b)
	}
	if eb, ok := b.(Equatable); ok {
		return eb.Equals(a)
	}
	return reflect.DeepEqual(a, b)
}
