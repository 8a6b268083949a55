// Package serializer provides the Value (de)serializer and the equals(a,b)
// delegate spec §9's design notes call for in place of the source's
// dynamic_cast-based serializer-flavor dispatch: a value's own Equatable
// implementation (if any) decides equality instead of the core
// type-switching on concrete serializer classes.
package serializer

import "fmt"

// ErrNotMessage is returned by Codec.Marshal/Unmarshal when the value does
// not satisfy the codec's required shape (e.g. proto.Message for Proto).
var ErrNotMessage = fmt.Errorf("serializer: value does not satisfy codec's required interface")

// Codec marshals and unmarshals a region value to and from its wire form.
// redisremote.Op (via SetCodec) and sqlpersist.Manager (via Config.Codec)
// each hold one, JSONCodec by default; Auto picks one for a given value.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
