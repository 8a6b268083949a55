package compressor

// NoneCompressor is the passthrough codec sqlpersist uses when its Config
// sets no Compressor.
type NoneCompressor struct{}

func (NoneCompressor) Compress(src []byte) ([]byte, error) { return src, nil }

func (NoneCompressor) Decompress(src []byte) ([]byte, error) { return src, nil }
