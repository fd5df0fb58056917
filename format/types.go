// Package format defines the small, stable vocabulary shared by every layer
// of the block format: compression labels and block storage classes.
package format

import "fmt"

// CompressionLabel is the 4-byte ASCII codec label stored in a block header's
// compression field. The all-zero label means "uncompressed".
type CompressionLabel [4]byte

var (
	CompressionNone  = CompressionLabel{0, 0, 0, 0}       // pass-through, used_size == data_size
	CompressionZlib  = CompressionLabel{'z', 'l', 'i', 'b'} // RFC 1950
	CompressionBzip2 = CompressionLabel{'b', 'z', 'p', '2'} // bzip2
	CompressionLZ4   = CompressionLabel{'l', 'z', '4', 0}   // block mode, length-prefixed records
)

// String renders the label the way it appears in diagnostics: the ASCII
// text for recognized labels, "none" for the all-zero label, or a hex dump
// of the raw bytes for anything else.
func (c CompressionLabel) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionBzip2:
		return "bzp2"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("%#x", [4]byte(c))
	}
}

// IsNone reports whether the label is the all-zero "uncompressed" marker.
func (c CompressionLabel) IsNone() bool {
	return c == CompressionNone
}

// StorageClass drives where and how a logical array's payload is
// serialized: inside the block section, in a sibling file, inline in YAML,
// or as the terminal streamed block.
type StorageClass uint8

const (
	StorageInternal StorageClass = iota
	StorageExternal
	StorageInline
	StorageStreamed
)

func (s StorageClass) String() string {
	switch s {
	case StorageInternal:
		return "internal"
	case StorageExternal:
		return "external"
	case StorageInline:
		return "inline"
	case StorageStreamed:
		return "streamed"
	default:
		return "unknown"
	}
}
