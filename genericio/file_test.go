package genericio

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUntil_IncludeDelim(t *testing.T) {
	m := NewMemoryBuffer([]byte("%YAML 1.1\n---\nfoo: 1\n...\ntrailing"))

	out, err := m.ReadUntil(regexp.MustCompile(`\.\.\.\n`), 4, true, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "%YAML 1.1\n---\nfoo: 1\n...\n", string(out))

	rest, err := m.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "trailing", string(rest))
}

func TestReadUntil_ExcludeDelim(t *testing.T) {
	m := NewMemoryBuffer([]byte("abcDELIMxyz"))

	out, err := m.ReadUntil(regexp.MustCompile(`DELIM`), 2, false, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	rest, err := m.Read(64)
	require.NoError(t, err)
	assert.Equal(t, "DELIMxyz", string(rest))
}

func TestReadUntil_NotFound_Raises(t *testing.T) {
	m := NewMemoryBuffer([]byte("no delimiter here"))

	_, err := m.ReadUntil(regexp.MustCompile(`MISSING`), 2, true, nil, true)
	require.Error(t, err)
}

func TestReadUntil_NotFound_NoRaise(t *testing.T) {
	m := NewMemoryBuffer([]byte("no delimiter here"))

	out, err := m.ReadUntil(regexp.MustCompile(`MISSING`), 2, true, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "no delimiter here", string(out))
}

func TestReadBlocks_SlabBoundaries(t *testing.T) {
	data := make([]byte, DefaultBlockSize*2+17)
	for i := range data {
		data[i] = byte(i)
	}
	m := NewMemoryBuffer(data)

	var got []byte
	var calls int
	err := m.ReadBlocks(int64(len(data)), func(chunk []byte) error {
		calls++
		got = append(got, chunk...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 3, calls)
}
