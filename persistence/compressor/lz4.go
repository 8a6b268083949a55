package compressor

import (
	"encoding/binary"

	"github.com/pierrec/lz4"
)

// Lz4Compressor uses lz4's raw block codec, which needs the original
// length handed back in at decompress time; that length is stored as a
// uvarint prefix ahead of the compressed block.
type Lz4Compressor struct{}

func (Lz4Compressor) Compress(src []byte) ([]byte, error) {
	maxDstSize := lz4.CompressBlockBound(len(src))
	block := make([]byte, maxDstSize)

	n, err := lz4.CompressBlock(src, block, nil)
	if err != nil {
		return nil, ErrIncompressible
	}
	if n == 0 {
		// lz4 returns 0 when the block would not have shrunk.
		return nil, ErrNotShrunk
	}

	prefix := make([]byte, binary.MaxVarintLen64)
	pn := binary.PutUvarint(prefix, uint64(len(src)))
	out := make([]byte, pn+n)
	copy(out, prefix[:pn])
	copy(out[pn:], block[:n])
	return out, nil
}

func (Lz4Compressor) Decompress(src []byte) ([]byte, error) {
	originalLen, n := binary.Uvarint(src)
	if n <= 0 {
		return nil, ErrIncompressible
	}

	dst := make([]byte, originalLen)
	written, err := lz4.UncompressBlock(src[n:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:written], nil
}
