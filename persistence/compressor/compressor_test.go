package compressor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 64))

	cases := []struct {
		name string
		c    Compresser
	}{
		{"none", NoneCompressor{}},
		{"zstd", &ZstdCompressor{}},
		{"ddzstd", &DatadogZstdCompressor{}},
		{"lz4", Lz4Compressor{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compressed, err := tc.c.Compress(payload)
			require.NoError(t, err)

			out, err := tc.c.Decompress(compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, out))
		})
	}
}

func TestZstdRejectsIncompressibleInput(t *testing.T) {
	tiny := []byte("x")
	_, err := (&ZstdCompressor{}).Compress(tiny)
	assert.ErrorIs(t, err, ErrNotShrunk)
}

func TestNamedResolvesKnownCodecs(t *testing.T) {
	for _, name := range []string{"", "none", "zstd", "ddzstd", "lz4"} {
		c, err := Named(name)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}

	_, err := Named("bogus")
	assert.Error(t, err)
}
