package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4ChunkSize bounds how much uncompressed data goes into a single framed
// record. A fixed chunk size lets Decompress reuse one scratch buffer for
// every record regardless of where the original write boundaries fell.
const lz4ChunkSize = 4 << 20 // 4MiB

// lz4StoredFlag is OR'd into a record's length field to mark a chunk that
// CompressBlock could not shrink (returns n == 0, not an error): the record
// body is the chunk's raw bytes rather than an lz4 block, matching the
// stored-block convention of the LZ4 frame format's block-size field. The
// chunk size is bounded well under 1<<31, so it never collides with this bit.
const lz4StoredFlag = uint32(1) << 31

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec implements the "lz4" compression label: block-mode LZ4 framed as
// a concatenation of (big-endian u32 length, lz4-block) records, so a
// decoder never needs the total compressed length up front.
type LZ4Codec struct{}

var _ Codec = (*LZ4Codec)(nil)

// NewLZ4Codec creates a new LZ4 codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress splits data into lz4ChunkSize chunks, block-compresses each with
// a pooled lz4.Compressor, and frames every compressed chunk with its
// big-endian u32 length.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	out := make([]byte, 0, len(data))
	scratch := make([]byte, lz4.CompressBlockBound(lz4ChunkSize))

	for offset := 0; offset < len(data); offset += lz4ChunkSize {
		end := offset + lz4ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		n, err := lc.CompressBlock(chunk, scratch)
		if err != nil {
			return nil, fmt.Errorf("lz4: compress chunk at %d: %w", offset, err)
		}

		var lenBuf [4]byte
		if n == 0 {
			// Incompressible chunk: CompressBlock declines silently rather
			// than returning an error, so store it raw.
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(chunk))|lz4StoredFlag)
			out = append(out, lenBuf[:]...)
			out = append(out, chunk...)
			continue
		}

		binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
		out = append(out, lenBuf[:]...)
		out = append(out, scratch[:n]...)
	}

	return out, nil
}

// Decompress reassembles the length-prefixed record stream produced by
// Compress. Each record's uncompressed size is recovered implicitly: the
// destination buffer is sized to lz4ChunkSize (the most a record could have
// held), and UncompressBlock reports how many bytes it actually wrote,
// which is short for the final, partial chunk.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, len(data)*3)
	scratch := make([]byte, lz4ChunkSize)

	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("lz4: truncated record length")
		}

		rawLen := binary.BigEndian.Uint32(data[:4])
		stored := rawLen&lz4StoredFlag != 0
		recLen := rawLen &^ lz4StoredFlag
		data = data[4:]

		if uint64(len(data)) < uint64(recLen) {
			return nil, fmt.Errorf("lz4: truncated record body")
		}

		record := data[:recLen]
		data = data[recLen:]

		if stored {
			out = append(out, record...)
			continue
		}

		n, err := lz4.UncompressBlock(record, scratch)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
				return nil, fmt.Errorf("lz4: record exceeds chunk size: %w", err)
			}

			return nil, err
		}

		out = append(out, scratch[:n]...)
	}

	return out, nil
}
