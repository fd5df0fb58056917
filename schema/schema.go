// Package schema defines the validator contract the façade consults when a
// file is opened; Write and Update do not run it (format specification §6). It is
// deliberately not a JSON Schema engine: spec.md §1 excludes general
// schema validation from scope, so this package only carries the
// interface and a no-op implementation far enough to exercise the
// extension point end to end.
package schema

import "github.com/asdf-format/asdf-sub001/tree"

// Violation describes one schema-validation failure against a tree node.
type Violation struct {
	// Path is a dotted/indexed description of where in the tree the
	// violation occurred, e.g. "data.shape[1]".
	Path string
	// Message is a human-readable description of the failure.
	Message string
}

// Validator checks a tree against a named schema, returning zero or more
// Violations. A nil slice with a nil error means the tree is valid.
type Validator interface {
	Validate(root tree.Node, schemaURI string) ([]Violation, error)
}

// NoopValidator is the only concrete Validator this module ships: it
// always reports the tree as valid. It exists so AsdfFile always has a
// well-defined Validator to call, per spec.md §6, without this module
// pulling in a JSON Schema dependency it has no use for beyond this one
// extension point.
type NoopValidator struct{}

func (NoopValidator) Validate(tree.Node, string) ([]Violation, error) {
	return nil, nil
}
