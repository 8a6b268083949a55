package compressor

import (
	"encoding/binary"

	ddzstd "github.com/DataDog/zstd"
)

// DatadogZstdCompressor backs the "ddzstd" codec name with the cgo-based
// DataDog zstd binding, selectable per-row alongside the pure-Go default
// when a caller wants its throughput profile. DataDog's Decompress needs
// the original length up front, so the compressed form here is a uvarint
// length prefix followed by the cgo-compressed bytes.
type DatadogZstdCompressor struct{}

func (z *DatadogZstdCompressor) Compress(src []byte) ([]byte, error) {
	buf := make([]byte, ddzstd.CompressBound(len(src)))
	compressed, err := ddzstd.CompressLevel(buf, src, ddzstd.DefaultCompression)
	if err != nil {
		return nil, err
	}

	prefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(prefix, uint64(len(src)))
	out := make([]byte, n+len(compressed))
	copy(out, prefix[:n])
	copy(out[n:], compressed)

	if len(out) >= len(src) {
		return nil, ErrNotShrunk
	}
	return out, nil
}

func (z *DatadogZstdCompressor) Decompress(src []byte) ([]byte, error) {
	decodedSize, n := binary.Uvarint(src)
	if n <= 0 {
		return nil, ErrIncompressible
	}

	out := make([]byte, decodedSize)
	return ddzstd.Decompress(out, src[n:])
}
