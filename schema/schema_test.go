package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asdf-format/asdf-sub001/tree"
)

func TestNoopValidator_AlwaysValid(t *testing.T) {
	v := NoopValidator{}
	violations, err := v.Validate(tree.Scalar(1), "https://example.com/schemas/any-1.0.0")
	assert.NoError(t, err)
	assert.Nil(t, violations)
}

func TestValidator_InterfaceSatisfiedByNoop(t *testing.T) {
	var v Validator = NoopValidator{}
	_, err := v.Validate(tree.Mapping(), "")
	assert.NoError(t, err)
}
