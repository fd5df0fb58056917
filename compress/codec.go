// Package compress implements the block compression registry (format
// specification §4.2): a table mapping a 4-byte ASCII codec label to an
// encoder/decoder pair. Four labels are recognized: the all-zero
// "none" label, "zlib", "bzp2", and "lz4".
package compress

import (
	"fmt"

	"github.com/asdf-format/asdf-sub001/asdferr"
	"github.com/asdf-format/asdf-sub001/format"
)

// Compressor compresses a full in-memory payload.
//
// Memory management:
//   - The returned slice is owned by the caller; it may share memory with
//     the input (the "none" codec returns the input itself).
//   - The input slice is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a full in-memory payload that was produced by
// the matching Compressor.
//
// Implementations must tolerate being handed exactly the bytes written by
// write_block — no trailing padding, no external framing beyond what the
// codec itself defines.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions of one compression label.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionLabel]Codec{
	format.CompressionNone:  NewNoOpCompressor(),
	format.CompressionZlib:  NewZlibCodec(),
	format.CompressionBzip2: NewBzip2Codec(),
	format.CompressionLZ4:   NewLZ4Codec(),
}

// CreateCodec returns the Codec registered for label, or
// ErrUnknownCompression wrapped with the offending label for anything else.
func CreateCodec(label format.CompressionLabel) (Codec, error) {
	if codec, ok := builtinCodecs[label]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", asdferr.ErrUnknownCompression, label)
}
