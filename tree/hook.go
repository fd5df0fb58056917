package tree

import (
	"gopkg.in/yaml.v3"

	"github.com/asdf-format/asdf-sub001/format"
)

// TaggedScalarHook is the extension point DumpTree and LoadTree call for
// every KindArrayRef leaf, letting the caller (the façade, wiring in a
// BlockManager) decide how a logical array is encoded without this package
// knowing anything about blocks.
type TaggedScalarHook interface {
	// EncodeArrayRef returns the yaml.v3 node to emit in place of an
	// ArrayRef leaf, honoring ref.Encoding.
	EncodeArrayRef(ref *ArrayRef) (*yaml.Node, error)

	// DecodeArrayRef recognizes whether raw is an array reference shape
	// this hook understands and, if so, decodes it. DefaultHook recognizes
	// only the tagged mapping (a `source:` index or `streamed: true`); an
	// inline sequence or an external URI string is not recognized.
	// ok is false for any node this hook does not recognize as an array
	// reference, in which case the caller falls back to treating raw as
	// a plain scalar/mapping/sequence.
	DecodeArrayRef(raw *yaml.Node) (ref *ArrayRef, ok bool, err error)
}

// ndarrayTag is the YAML tag this adapter's default hook attaches to a
// source-index array reference, matching the original implementation's
// `!core/ndarray-1.0.0` convention closely enough to round-trip the three
// encodings this package cares about (it does not validate against the
// full tag schema).
const ndarrayTag = "!core/ndarray-1.0.0"

// DefaultHook implements TaggedScalarHook with no block manager wired in:
// it round-trips whatever Encoding is already set on the ArrayRef. Callers
// that need EncodeArrayRef to allocate a new block slot (via
// blockmgr.Manager.MakeWriteBlock) should wrap or replace it.
type DefaultHook struct{}

func (DefaultHook) EncodeArrayRef(ref *ArrayRef) (*yaml.Node, error) {
	switch ref.Encoding {
	case RefEncodingInline:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, v := range ref.Inline {
			scalar := &yaml.Node{}
			if err := scalar.Encode(v); err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, scalar)
		}
		return seq, nil
	case RefEncodingExternal:
		n := &yaml.Node{}
		if err := n.Encode(ref.ExternalURI); err != nil {
			return nil, err
		}
		return n, nil
	default: // RefEncodingSource
		mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: ndarrayTag}
		if ref.Storage == format.StorageStreamed {
			// The streamed block is always the file's terminal block,
			// identified positionally rather than by index.
			streamedKey := &yaml.Node{}
			_ = streamedKey.Encode("streamed")
			streamedVal := &yaml.Node{}
			_ = streamedVal.Encode(true)
			mapping.Content = append(mapping.Content, streamedKey, streamedVal)
		} else {
			idx, _ := ref.Source.(int)
			sourceKey := &yaml.Node{}
			_ = sourceKey.Encode("source")
			sourceVal := &yaml.Node{}
			_ = sourceVal.Encode(idx)
			mapping.Content = append(mapping.Content, sourceKey, sourceVal)
		}
		if len(ref.Shape) > 0 {
			shapeKey := &yaml.Node{}
			_ = shapeKey.Encode("shape")
			shapeVal := &yaml.Node{}
			_ = shapeVal.Encode(ref.Shape)
			mapping.Content = append(mapping.Content, shapeKey, shapeVal)
		}
		if ref.Datatype != "" {
			dtKey := &yaml.Node{}
			_ = dtKey.Encode("datatype")
			dtVal := &yaml.Node{}
			_ = dtVal.Encode(ref.Datatype)
			mapping.Content = append(mapping.Content, dtKey, dtVal)
		}
		if ref.ByteOrder != "" {
			boKey := &yaml.Node{}
			_ = boKey.Encode("byteorder")
			boVal := &yaml.Node{}
			_ = boVal.Encode(ref.ByteOrder)
			mapping.Content = append(mapping.Content, boKey, boVal)
		}
		return mapping, nil
	}
}

func (DefaultHook) DecodeArrayRef(raw *yaml.Node) (*ArrayRef, bool, error) {
	if raw.Kind == yaml.MappingNode && raw.Tag == ndarrayTag {
		ref := &ArrayRef{Encoding: RefEncodingSource}
		for i := 0; i+1 < len(raw.Content); i += 2 {
			key := raw.Content[i].Value
			val := raw.Content[i+1]
			switch key {
			case "source":
				var idx int
				if err := val.Decode(&idx); err != nil {
					return nil, false, err
				}
				ref.Source = idx
			case "streamed":
				var streamed bool
				if err := val.Decode(&streamed); err != nil {
					return nil, false, err
				}
				if streamed {
					ref.Storage = format.StorageStreamed
				}
			case "shape":
				var shape []int
				if err := val.Decode(&shape); err != nil {
					return nil, false, err
				}
				ref.Shape = shape
			case "datatype":
				var dt string
				if err := val.Decode(&dt); err != nil {
					return nil, false, err
				}
				ref.Datatype = dt
			case "byteorder":
				var bo string
				if err := val.Decode(&bo); err != nil {
					return nil, false, err
				}
				ref.ByteOrder = bo
			}
		}
		return ref, true, nil
	}
	return nil, false, nil
}
