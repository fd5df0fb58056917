// Package tree implements the narrow YAML tree adapter named by the format
// specification's external-interfaces section: it walks and parses the
// `%YAML 1.1` / `---` / `...` framed document that sits between an ASDF
// file's header line and its first block, recognizing exactly one
// extension point — the array-reference leaf — beyond plain YAML scalars,
// mappings, and sequences. It is not a general YAML engine or a schema-aware
// tree; those are out of scope.
package tree

import (
	"github.com/asdf-format/asdf-sub001/endian"
	"github.com/asdf-format/asdf-sub001/format"
)

// Kind discriminates the four leaf shapes a Node can take.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
	KindArrayRef
)

// Node is the in-memory shape of one YAML value. Exactly one of the fields
// below is meaningful, selected by Kind:
//
//   - KindScalar: Scalar holds a string, bool, number, or nil already
//     decoded to its Go representation.
//   - KindMapping: Mapping holds key/value pairs in document order; YAML
//     mapping keys are always strings in this adapter's scope.
//   - KindSequence: Sequence holds ordered child nodes.
//   - KindArrayRef: Ref holds the block-backed array this leaf stands for.
//     The hook passed to DumpTree/LoadTree decides how it is encoded.
type Node struct {
	Kind Kind

	Scalar   any
	Mapping  []MappingEntry
	Sequence []Node
	Ref      *ArrayRef
}

// MappingEntry is one key/value pair of a KindMapping node.
type MappingEntry struct {
	Key   string
	Value Node
}

// ArrayRef is the payload of a KindArrayRef leaf: everything the tagged
// scalar hook needs to decide how a logical array is encoded, and what it
// decodes to on the way back in.
type ArrayRef struct {
	// Source identifies which block (or inline/external payload) backs
	// this array. Its meaning depends on Encoding.
	Source any

	// Shape and Datatype are carried through verbatim; this adapter does
	// not interpret them, only round-trips them for the hook's use.
	Shape    []int
	Datatype string

	// Storage and Compression are the BlockOptions this leaf was (or
	// will be) stored under. They are distinct from Encoding: Storage
	// drives which manager call a caller makes (MakeWriteBlock vs
	// SetStreamedBlock vs nothing, for StorageInline), while Encoding
	// drives what shape DumpTree emits for this leaf. The two agree in
	// practice (StorageStreamed leaves never use RefEncodingSource's
	// `source:` form, see DefaultHook) but are tracked separately so the
	// hook never has to reach into a BlockManager to know which tag to
	// write.
	Storage     format.StorageClass
	Compression format.CompressionLabel

	// Encoding is set by LoadTree from what it found on disk, and
	// consulted by DumpTree's hook to decide what to emit. See the
	// RefEncoding constants below.
	Encoding RefEncoding

	// Inline holds the literal scalar values when Encoding is
	// RefEncodingInline.
	Inline []any

	// ExternalURI holds the sibling-file URI when Encoding is
	// RefEncodingExternal.
	ExternalURI string

	// ByteOrder is the array's element byte order, "big" or "little", as
	// carried by the original format's `byteorder` field. Empty means the
	// writer never recorded one; Endian falls back to the host's native
	// order in that case.
	ByteOrder string
}

// Endian resolves r.ByteOrder to the engine a caller should use to decode
// this array's raw bytes into multi-byte elements, defaulting to the
// host's native order when ByteOrder is unset or unrecognized.
func (r *ArrayRef) Endian() endian.EndianEngine {
	switch r.ByteOrder {
	case "big":
		return endian.GetBigEndianEngine()
	case "little":
		return endian.GetLittleEndianEngine()
	default:
		if endian.IsNativeBigEndian() {
			return endian.GetBigEndianEngine()
		}
		return endian.GetLittleEndianEngine()
	}
}

// RefEncoding selects which of the three on-disk shapes a tagged array
// scalar takes, per the format specification's collaborator interface.
type RefEncoding int

const (
	// RefEncodingSource is an integer `source:` field indexing into the
	// block section.
	RefEncodingSource RefEncoding = iota
	// RefEncodingInline emits the array as a literal YAML sequence.
	RefEncodingInline
	// RefEncodingExternal emits the array as a URI string pointing at a
	// sibling file.
	RefEncodingExternal
)

// Scalar builds a KindScalar node.
func Scalar(v any) Node { return Node{Kind: KindScalar, Scalar: v} }

// Mapping builds a KindMapping node from entries in document order.
func Mapping(entries ...MappingEntry) Node {
	return Node{Kind: KindMapping, Mapping: entries}
}

// Entry is a convenience constructor for a MappingEntry.
func Entry(key string, value Node) MappingEntry {
	return MappingEntry{Key: key, Value: value}
}

// Sequence builds a KindSequence node.
func Sequence(items ...Node) Node {
	return Node{Kind: KindSequence, Sequence: items}
}

// Get returns the value associated with key in a KindMapping node, and
// whether it was found.
func (n Node) Get(key string) (Node, bool) {
	for _, e := range n.Mapping {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Node{}, false
}
