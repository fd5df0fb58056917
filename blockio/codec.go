// Package blockio implements the block-level read and write operations
// (format specification §4.3–§4.5): parsing and validating a single block's
// header and payload, writing a block out with compression and padding,
// and the higher-level Reader/Writer that sequence many blocks across a
// whole file.
package blockio

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"io"

	"github.com/asdf-format/asdf-sub001/asdferr"
	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/compress"
	"github.com/asdf-format/asdf-sub001/format"
	"github.com/asdf-format/asdf-sub001/genericio"
)

// ReadHeader reads the 2-byte header_size field and the packed header that
// follows it. The caller must have already consumed the 4-byte magic (or
// ruled out the index marker). A stream that ends inside the header_size
// field or the header body yields an error (io.ErrUnexpectedEOF when the
// read itself succeeded short); detecting that no more blocks follow is the
// caller's job, done before the magic is consumed.
func ReadHeader(f genericio.File) (blockfmt.Header, error) {
	sizeBuf := make([]byte, blockfmt.HeaderSizeFieldSize)
	n, err := f.ReadInto(sizeBuf)
	if err != nil {
		return blockfmt.Header{}, err
	}
	if n < blockfmt.HeaderSizeFieldSize {
		return blockfmt.Header{}, io.ErrUnexpectedEOF
	}

	headerSize := binary.BigEndian.Uint16(sizeBuf)
	if int(headerSize) < blockfmt.HeaderSize {
		return blockfmt.Header{}, asdferr.ErrHeaderTooSmall
	}

	body := make([]byte, headerSize)
	if n, err := f.ReadInto(body); err != nil || n < int(headerSize) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return blockfmt.Header{}, err
	}

	return blockfmt.ParseHeader(body)
}

// ReadData reads a block's payload given its already-parsed header. For an
// uncompressed block with memmap requested on a memmap-capable file, it
// returns a memory-mapped view instead of an owned copy. The file cursor
// always ends at header_end + allocated_size, except for streamed blocks,
// which read to EOF.
func ReadData(f genericio.File, header blockfmt.Header, memmap bool) ([]byte, error) {
	if header.Streamed() {
		var buf bytes.Buffer
		chunk := make([]byte, f.BlockSize())
		for {
			n, err := f.ReadInto(chunk)
			if n > 0 {
				buf.Write(chunk[:n])
			}
			if n == 0 || err != nil {
				break
			}
		}
		return buf.Bytes(), nil
	}

	if header.Compression.IsNone() && memmap && f.MemmapCapable() {
		offset, err := f.Tell()
		if err != nil {
			return nil, err
		}
		view, err := f.Memmap(offset, int(header.UsedSize))
		if err != nil {
			return nil, err
		}
		if err := f.FastForward(int64(header.AllocatedSize)); err != nil {
			return nil, err
		}
		return view.Bytes(), nil
	}

	raw := make([]byte, header.UsedSize)
	if _, err := f.ReadInto(raw); err != nil {
		return nil, err
	}
	if err := f.FastForward(int64(header.AllocatedSize - header.UsedSize)); err != nil {
		return nil, err
	}

	if header.Compression.IsNone() {
		return raw, nil
	}

	codec, err := compress.CreateCodec(header.Compression)
	if err != nil {
		return nil, err
	}

	data, err := codec.Decompress(raw)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != header.DataSize {
		return nil, asdferr.ErrInvariantViolation
	}
	return data, nil
}

// WriteOptions configures a single WriteBlock call.
type WriteOptions struct {
	Compression   format.CompressionLabel
	Streamed      bool
	PaddingFactor float64 // in [0,1]; 0 means no padding
}

// ComputeHeader builds the Header and (possibly compressed) body bytes for
// payload under opts, without performing any I/O. It is the pure core of
// WriteBlock, factored out so the update engine's layout planner can learn
// a block's exact on-disk footprint before deciding where to place it.
func ComputeHeader(payload []byte, opts WriteOptions, blockSize int) (blockfmt.Header, []byte, error) {
	var h blockfmt.Header

	if opts.Streamed {
		h.Flags = blockfmt.FlagStreamed
		h.Compression = format.CompressionNone
		// A streamed block's body is written raw, directly after the
		// header, with no length framing: the reader consumes it to
		// EOF rather than trusting a recorded size.
		return h, payload, nil
	}

	h.DataSize = uint64(len(payload))
	h.Checksum = md5.Sum(payload)
	h.Compression = opts.Compression

	body := payload
	if !opts.Compression.IsNone() {
		codec, err := compress.CreateCodec(opts.Compression)
		if err != nil {
			return blockfmt.Header{}, nil, err
		}
		compressed, err := codec.Compress(payload)
		if err != nil {
			return blockfmt.Header{}, nil, err
		}
		body = compressed
	}
	h.UsedSize = uint64(len(body))
	h.AllocatedSize = h.UsedSize + padding(h.UsedSize, opts.PaddingFactor, blockSize)

	if h.AllocatedSize < h.UsedSize {
		return blockfmt.Header{}, nil, asdferr.ErrInvariantViolation
	}

	return h, body, nil
}

// FrameSize returns the total on-disk footprint of a block written with
// ComputeHeader's result: magic + header_size field + packed header +
// AllocatedSize. It is 0 for a streamed block, whose footprint extends to
// EOF and is never placed by the layout planner.
func FrameSize(h blockfmt.Header) int64 {
	if h.Streamed() {
		return 0
	}
	return blockfmt.MagicSize + blockfmt.HeaderSizeFieldSize + int64(blockfmt.HeaderSize) + int64(h.AllocatedSize)
}

// WriteBlock writes magic, header_size, header, payload, and trailing
// padding for a single block. payload must already be the uncompressed,
// contiguous byte form of the logical array. It returns the header that
// was written, letting callers (e.g. the block index) record the recorded
// offsets alongside sizes without re-deriving them.
func WriteBlock(f genericio.File, payload []byte, opts WriteOptions) (blockfmt.Header, error) {
	h, body, err := ComputeHeader(payload, opts, f.BlockSize())
	if err != nil {
		return blockfmt.Header{}, err
	}
	if err := WriteFrame(f, h, body); err != nil {
		return blockfmt.Header{}, err
	}
	return h, nil
}

// WriteFrame writes magic, header_size, header, and body (already
// compressed if h.Compression requires it) for a precomputed Header,
// letting a caller that already ran ComputeHeader once — the update
// engine's layout planner — write the same frame at a different offset
// without recompressing.
func WriteFrame(f genericio.File, h blockfmt.Header, body []byte) error {
	if _, err := f.Write(blockfmt.Magic[:]); err != nil {
		return err
	}

	headerBytes := h.Bytes()
	var sizeBuf [2]byte
	binary.BigEndian.PutUint16(sizeBuf[:], uint16(len(headerBytes)))
	if _, err := f.Write(sizeBuf[:]); err != nil {
		return err
	}
	if _, err := f.Write(headerBytes); err != nil {
		return err
	}

	if len(body) > 0 {
		if _, err := f.WriteArray(body); err != nil {
			return err
		}
	}

	return f.FastForward(int64(h.AllocatedSize - h.UsedSize))
}

// padding rounds up used by factor*blockSize, matching the writer's
// padding-factor contract: 0 means no padding, 1.0 means round up to a
// full additional block size's worth of slack.
func padding(used uint64, factor float64, blockSize int) uint64 {
	if factor <= 0 || blockSize <= 0 {
		return 0
	}
	return uint64(factor * float64(blockSize))
}
