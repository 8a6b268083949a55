package serializer

import "encoding/json"

// JSONCodec is the default Codec; every region value that is not a
// proto.Message round-trips through it.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes directly into v; v must already be a pointer (to a
// struct, map, or any), the same contract encoding/json itself expects.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
