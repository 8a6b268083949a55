package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	type testStruct struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	codec := JSONCodec{}
	data, err := codec.Marshal(testStruct{Name: "Alice", Age: 30})
	require.NoError(t, err)

	var got testStruct
	require.NoError(t, codec.Unmarshal(data, &got))
	assert.Equal(t, testStruct{Name: "Alice", Age: 30}, got)
}

func TestJSONCodecMarshalRejectsUnsupportedValue(t *testing.T) {
	codec := JSONCodec{}
	_, err := codec.Marshal(func() {})
	assert.Error(t, err)
}

func TestJSONCodecUnmarshalRejectsMalformedInput(t *testing.T) {
	codec := JSONCodec{}
	var v any
	assert.Error(t, codec.Unmarshal([]byte(`{"a":`), &v))
}
