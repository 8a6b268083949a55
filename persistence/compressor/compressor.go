// Package compressor wraps the overflow-to-disk payload with an optional
// compression pass before sqlpersist writes it and after it reads it back.
package compressor

import "github.com/cockroachdb/errors"

// Compresser is the interface sqlpersist codes against; callers pick a
// concrete implementation by name via Named.
type Compresser interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

var ErrIncompressible = errors.New("compress error")

// ErrNotShrunk signals the compressed form was not smaller than the input;
// sqlpersist falls back to storing the value uncompressed when it sees this.
var ErrNotShrunk = errors.New("compressed size not reduced")

// Named resolves a compressor by the short name persisted per-row, so a
// later Read uses the same codec the row was written with, even if the
// Manager's configured compressor changes later.
func Named(name string) (Compresser, error) {
	switch name {
	case "", "none":
		return NoneCompressor{}, nil
	case "zstd":
		return &ZstdCompressor{}, nil
	case "ddzstd":
		return &DatadogZstdCompressor{}, nil
	case "lz4":
		return Lz4Compressor{}, nil
	default:
		return nil, errors.Newf("compressor: unknown codec %q", name)
	}
}
