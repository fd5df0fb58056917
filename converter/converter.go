// Package converter defines the extension-registry contract named in the
// format specification (§6): a tag maps to a pair of (ToTree, FromTree)
// functions operating on YAML-native nodes and opaque user objects.
// spec.md §1 excludes a user-extensible conversion system beyond this hook
// point, so this package is only the registry plumbing, with no built-in
// converters.
package converter

import (
	"fmt"

	"github.com/asdf-format/asdf-sub001/tree"
)

// Converter adapts between a Go value and its tagged tree representation
// for one custom YAML tag.
type Converter interface {
	// Tag returns the YAML tag this converter owns, e.g.
	// "tag:example.com,2020:example/thing-1.0.0".
	Tag() string
	ToTree(obj any) (tree.Node, error)
	FromTree(n tree.Node) (any, error)
}

// Registry maps a tag string to the Converter that owns it. The tree
// adapter does not consult it: tree.DefaultHook recognizes only its one
// array-reference shape, and any other tagged node loads as a plain node.
type Registry struct {
	byTag map[string]Converter
}

// NewRegistry returns an empty Registry ready to accept Register calls.
func NewRegistry() *Registry {
	return &Registry{byTag: make(map[string]Converter)}
}

// Register adds c under its own Tag(), returning an error if that tag is
// already registered.
func (r *Registry) Register(c Converter) error {
	if _, exists := r.byTag[c.Tag()]; exists {
		return fmt.Errorf("converter: tag %q already registered", c.Tag())
	}
	r.byTag[c.Tag()] = c
	return nil
}

// Lookup returns the Converter registered for tag, and whether one was
// found.
func (r *Registry) Lookup(tag string) (Converter, bool) {
	c, ok := r.byTag[tag]
	return c, ok
}

// Tags returns every registered tag, in no particular order — used by the
// CLI's "extensions" subcommand.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	return tags
}
