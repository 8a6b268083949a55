package serializer

import "google.golang.org/protobuf/proto"

// ProtoCodec backs values that carry their own protobuf wire format;
// Marshal/Unmarshal reject anything that is not a proto.Message rather
// than silently falling back to JSON, so a misconfigured region fails at
// the first write instead of producing mixed-format rows.
type ProtoCodec struct{}

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, ErrNotMessage
	}
	return proto.Marshal(m)
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return ErrNotMessage
	}
	return proto.Unmarshal(data, m)
}

// Auto picks ProtoCodec for proto.Message values and JSONCodec for
// everything else, so region/ need not track which flavor a value was
// written with when a region mixes message and non-message values.
func Auto(v any) Codec {
	if _, ok := v.(proto.Message); ok {
		return ProtoCodec{}
	}
	return JSONCodec{}
}
