package tree

import (
	"io"

	"gopkg.in/yaml.v3"
)

// yamlDirective and the document markers frame every tree this package
// writes, matching the same manual "---"/"..." framing blockio.
// WriteBlockIndex uses for the block index document — yaml.v3's plain
// Marshal does not emit a YAML directive or explicit document markers on
// its own.
const yamlDirective = "%YAML 1.1\n"

// DumpTree serializes root as a framed YAML document: a `%YAML 1.1`
// directive, `---`, the tree body, and a terminating `...`. hook decides how
// each KindArrayRef leaf is encoded; a nil hook uses DefaultHook.
func DumpTree(root Node, out io.Writer, hook TaggedScalarHook) error {
	if hook == nil {
		hook = DefaultHook{}
	}

	yn, err := encodeNode(root, hook)
	if err != nil {
		return err
	}

	body, err := yaml.Marshal(yn)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(out, yamlDirective); err != nil {
		return err
	}
	if _, err := io.WriteString(out, "---\n"); err != nil {
		return err
	}
	if _, err := out.Write(body); err != nil {
		return err
	}
	_, err = io.WriteString(out, "...\n")
	return err
}

func encodeNode(n Node, hook TaggedScalarHook) (*yaml.Node, error) {
	switch n.Kind {
	case KindScalar:
		yn := &yaml.Node{}
		if err := yn.Encode(n.Scalar); err != nil {
			return nil, err
		}
		return yn, nil

	case KindMapping:
		yn := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range n.Mapping {
			keyNode := &yaml.Node{}
			if err := keyNode.Encode(e.Key); err != nil {
				return nil, err
			}
			valNode, err := encodeNode(e.Value, hook)
			if err != nil {
				return nil, err
			}
			yn.Content = append(yn.Content, keyNode, valNode)
		}
		return yn, nil

	case KindSequence:
		yn := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Sequence {
			itemNode, err := encodeNode(item, hook)
			if err != nil {
				return nil, err
			}
			yn.Content = append(yn.Content, itemNode)
		}
		return yn, nil

	case KindArrayRef:
		return hook.EncodeArrayRef(n.Ref)

	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "~"}, nil
	}
}
