package compressor

import (
	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor is the "zstd" codec: klauspost's pure-Go zstd, used for
// both directions so Compress and Decompress never depend on cgo.
type ZstdCompressor struct{}

// Compress rejects compression that did not shrink the input so callers
// can fall back to storing the value raw rather than paying the
// decompression cost for nothing.
func (z *ZstdCompressor) Compress(src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	compressed := enc.EncodeAll(src, nil)
	if len(compressed) >= len(src) {
		return nil, ErrNotShrunk
	}
	return compressed, nil
}

func (z *ZstdCompressor) Decompress(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(src, nil)
}
