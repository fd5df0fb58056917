package tree

import (
	"io"

	"gopkg.in/yaml.v3"
)

// LoadTree parses a framed YAML document (the `%YAML 1.1` directive and
// `---`/`...` markers are tolerated but not required — yaml.v3's decoder
// already skips directives and document markers) back into a Node tree,
// recognizing array references with DefaultHook. Use LoadTreeWithHook to
// recognize a caller-supplied encoding instead.
func LoadTree(in io.Reader) (Node, error) {
	return LoadTreeWithHook(in, DefaultHook{})
}

// LoadTreeWithHook is LoadTree with an explicit TaggedScalarHook, letting a
// caller wired to a BlockManager resolve source indices to live blocks
// while the tree is parsed. A nil hook uses DefaultHook.
func LoadTreeWithHook(in io.Reader, hook TaggedScalarHook) (Node, error) {
	if hook == nil {
		hook = DefaultHook{}
	}

	var doc yaml.Node
	dec := yaml.NewDecoder(in)
	if err := dec.Decode(&doc); err != nil {
		return Node{}, err
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return Node{}, nil
		}
		root = root.Content[0]
	}

	return decodeNode(root, hook)
}

func decodeNode(yn *yaml.Node, hook TaggedScalarHook) (Node, error) {
	if ref, ok, err := hook.DecodeArrayRef(yn); err != nil {
		return Node{}, err
	} else if ok {
		return Node{Kind: KindArrayRef, Ref: ref}, nil
	}

	switch yn.Kind {
	case yaml.MappingNode:
		n := Node{Kind: KindMapping}
		for i := 0; i+1 < len(yn.Content); i += 2 {
			var key string
			if err := yn.Content[i].Decode(&key); err != nil {
				return Node{}, err
			}
			val, err := decodeNode(yn.Content[i+1], hook)
			if err != nil {
				return Node{}, err
			}
			n.Mapping = append(n.Mapping, MappingEntry{Key: key, Value: val})
		}
		return n, nil

	case yaml.SequenceNode:
		n := Node{Kind: KindSequence}
		for _, item := range yn.Content {
			child, err := decodeNode(item, hook)
			if err != nil {
				return Node{}, err
			}
			n.Sequence = append(n.Sequence, child)
		}
		return n, nil

	default:
		var scalar any
		if err := yn.Decode(&scalar); err != nil {
			return Node{}, err
		}
		return Node{Kind: KindScalar, Scalar: scalar}, nil
	}
}
