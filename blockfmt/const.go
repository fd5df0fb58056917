// Package blockfmt defines the on-disk layout of a single ASDF block: the
// magic, the packed big-endian header, and the bit layout of its flags
// field. It holds no I/O logic — that belongs to package blockio — only
// parsing, validation, and serialization of the fixed-size structures.
package blockfmt

const (
	// MagicSize is the width of Magic, the marker that precedes every block header. The
	// high-bit byte forces naive content-type sniffers to treat the file
	// as binary.
	MagicSize = 4

	// HeaderSizeFieldSize is the width of the big-endian header_size field
	// that follows the magic.
	HeaderSizeFieldSize = 2

	// HeaderSize is the packed size, in bytes, of the Header struct body
	// (flags, compression, allocated_size, used_size, data_size, checksum),
	// not counting the magic or the header_size field itself.
	HeaderSize = 4 + 4 + 8 + 8 + 8 + 16 // = 48

	// ChecksumSize is the width of the MD5 checksum field.
	ChecksumSize = 16
)

// Magic is the 4-byte block magic: 0xD3 'B' 'L' 'K'.
var Magic = [MagicSize]byte{0xD3, 'B', 'L', 'K'}

// IndexMarker is the literal ASCII line that introduces the end-of-file
// block index (without its trailing newline).
const IndexMarker = "#ASDF BLOCK INDEX"

// FlagStreamed is bit 0 of the header's flags field: this block is the
// terminal, unbounded streamed block.
const FlagStreamed uint32 = 1 << 0
