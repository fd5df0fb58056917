package genericio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBuffer_WriteReadRoundTrip(t *testing.T) {
	m := NewMemoryBuffer(nil)

	n, err := m.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pos, err := m.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	got, err := m.Read(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestMemoryBuffer_WriteAtGap(t *testing.T) {
	m := NewMemoryBuffer(nil)

	_, err := m.Seek(4, io.SeekStart)
	require.NoError(t, err)
	_, err = m.Write([]byte("x"))
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0, 0, 'x'}, m.Bytes())
}

func TestMemoryBuffer_Truncate(t *testing.T) {
	m := NewMemoryBuffer([]byte("abcdef"))

	require.NoError(t, m.Truncate(3))
	assert.Equal(t, "abc", string(m.Bytes()))

	require.NoError(t, m.Truncate(5))
	assert.Equal(t, 5, len(m.Bytes()))
}

func TestMemoryBuffer_NotMemmapCapable(t *testing.T) {
	m := NewMemoryBuffer([]byte("x"))
	_, err := m.Memmap(0, 1)
	require.Error(t, err)
	assert.False(t, m.MemmapCapable())
}
