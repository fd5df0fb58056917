package blockfmt

import (
	"encoding/binary"

	"github.com/asdf-format/asdf-sub001/asdferr"
	"github.com/asdf-format/asdf-sub001/format"
)

// Header is the fixed-size, big-endian-packed structure that follows the
// magic and the header_size field of every block.
type Header struct {
	// Flags holds the STREAMED bit (bit 0); other bits are reserved and
	// must round-trip as zero.
	Flags uint32
	// Compression is the 4-byte codec label; the all-zero label means
	// uncompressed.
	Compression format.CompressionLabel
	// AllocatedSize is the number of bytes reserved on disk for the
	// payload, including any padding.
	AllocatedSize uint64
	// UsedSize is the number of bytes actually occupied by the
	// (possibly compressed) payload; UsedSize <= AllocatedSize.
	UsedSize uint64
	// DataSize is the size of the payload after decompression.
	DataSize uint64
	// Checksum is the MD5 of the decompressed payload; all-zero means
	// unset.
	Checksum [ChecksumSize]byte
}

// Streamed reports whether the STREAMED bit is set.
func (h Header) Streamed() bool {
	return h.Flags&FlagStreamed != 0
}

// ChecksumSet reports whether the checksum field holds a real digest
// rather than the "unset" all-zero marker.
func (h Header) ChecksumSet() bool {
	return h.Checksum != [ChecksumSize]byte{}
}

// Bytes serializes the header into a HeaderSize-byte big-endian buffer.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	binary.BigEndian.PutUint32(b[0:4], h.Flags)
	copy(b[4:8], h.Compression[:])
	binary.BigEndian.PutUint64(b[8:16], h.AllocatedSize)
	binary.BigEndian.PutUint64(b[16:24], h.UsedSize)
	binary.BigEndian.PutUint64(b[24:32], h.DataSize)
	copy(b[32:48], h.Checksum[:])

	return b
}

// ParseHeader parses a Header from the first HeaderSize bytes of data and
// validates the invariants from the format specification: AllocatedSize >=
// UsedSize, and uncompressed blocks have UsedSize == DataSize. It does not
// validate the checksum; that requires the decompressed payload and is the
// caller's responsibility once the payload has been read.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, asdferr.ErrHeaderTooSmall
	}

	var h Header
	h.Flags = binary.BigEndian.Uint32(data[0:4])
	copy(h.Compression[:], data[4:8])
	h.AllocatedSize = binary.BigEndian.Uint64(data[8:16])
	h.UsedSize = binary.BigEndian.Uint64(data[16:24])
	h.DataSize = binary.BigEndian.Uint64(data[24:32])
	copy(h.Checksum[:], data[32:48])

	if err := h.Validate(); err != nil {
		return Header{}, err
	}

	return h, nil
}

// Validate checks the size invariants from the format specification (§3):
// AllocatedSize >= UsedSize always; uncompressed non-streamed blocks also
// require UsedSize == DataSize; a streamed block must carry the
// uncompressed label and all three sizes zero.
func (h Header) Validate() error {
	if h.AllocatedSize < h.UsedSize {
		return asdferr.ErrInvariantViolation
	}

	if h.Streamed() {
		if !h.Compression.IsNone() {
			return asdferr.ErrInvariantViolation
		}
		if h.AllocatedSize != 0 || h.UsedSize != 0 || h.DataSize != 0 {
			return asdferr.ErrInvariantViolation
		}

		return nil
	}

	if h.Compression.IsNone() && h.UsedSize != h.DataSize {
		return asdferr.ErrInvariantViolation
	}

	return nil
}
