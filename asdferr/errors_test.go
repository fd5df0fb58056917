package asdferr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtOffset_Nil(t *testing.T) {
	assert.Nil(t, AtOffset(10, nil))
}

func TestAtOffset_WrapsAndUnwraps(t *testing.T) {
	err := AtOffset(128, ErrBadMagic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadMagic))
	assert.Contains(t, err.Error(), "128")
}

func TestOffsetError_Unwrap(t *testing.T) {
	oe := &OffsetError{Offset: 4, Err: ErrHeaderTooSmall}
	assert.Equal(t, ErrHeaderTooSmall, errors.Unwrap(oe))
}
