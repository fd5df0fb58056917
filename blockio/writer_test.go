package blockio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asdf-format/asdf-sub001/format"
	"github.com/asdf-format/asdf-sub001/genericio"
)

func dataItem(b []byte) WriteItem {
	return WriteItem{
		Data:         func() ([]byte, error) { return b, nil },
		WriteOptions: WriteOptions{Compression: format.CompressionNone},
	}
}

func TestWriter_WriteBlocks_WithIndex(t *testing.T) {
	f := genericio.NewMemoryBuffer(nil)

	items := []WriteItem{
		dataItem([]byte("block-zero")),
		dataItem([]byte("block-one-is-longer")),
	}

	w := Writer{WriteIndex: true}
	offsets, err := w.WriteBlocks(f, items, nil)
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	assert.Equal(t, int64(0), offsets[0])

	indexOffset, err := FindBlockIndex(f, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, indexOffset, int64(0))

	recovered, err := ReadBlockIndex(f, indexOffset)
	require.NoError(t, err)
	assert.Equal(t, offsets, recovered)
}

func TestWriter_WriteBlocks_Streamed_NoIndex(t *testing.T) {
	f := genericio.NewMemoryBuffer(nil)

	items := []WriteItem{dataItem([]byte("fixed"))}
	streamed := &WriteItem{Data: func() ([]byte, error) { return []byte("tail"), nil }}

	w := Writer{WriteIndex: true}
	_, err := w.WriteBlocks(f, items, streamed)
	require.NoError(t, err)

	idx, err := FindBlockIndex(f, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), idx)
}
