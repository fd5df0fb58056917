package blockio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asdf-format/asdf-sub001/format"
	"github.com/asdf-format/asdf-sub001/genericio"
)

func TestWriteBlock_ReadHeaderReadData_RoundTrip(t *testing.T) {
	f := genericio.NewMemoryBuffer(nil)
	payload := []byte("the quick brown fox")

	header, err := WriteBlock(f, payload, WriteOptions{Compression: format.CompressionNone})
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), header.DataSize)
	assert.Equal(t, uint64(len(payload)), header.UsedSize)

	_, err = f.Seek(4, 0)
	require.NoError(t, err)

	readHeader, err := ReadHeader(f)
	require.NoError(t, err)
	assert.Equal(t, header.Checksum, readHeader.Checksum)

	data, err := ReadData(f, readHeader, false)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestWriteBlock_Compressed_RoundTrip(t *testing.T) {
	f := genericio.NewMemoryBuffer(nil)
	payload := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	header, err := WriteBlock(f, payload, WriteOptions{Compression: format.CompressionZlib})
	require.NoError(t, err)
	assert.Less(t, header.UsedSize, header.DataSize)

	_, err = f.Seek(4, 0)
	require.NoError(t, err)

	readHeader, err := ReadHeader(f)
	require.NoError(t, err)

	data, err := ReadData(f, readHeader, false)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestWriteBlock_Streamed(t *testing.T) {
	f := genericio.NewMemoryBuffer(nil)

	header, err := WriteBlock(f, []byte("streamed payload"), WriteOptions{Streamed: true})
	require.NoError(t, err)
	assert.True(t, header.Streamed())
	assert.Zero(t, header.AllocatedSize)

	_, err = f.Seek(4, 0)
	require.NoError(t, err)
	readHeader, err := ReadHeader(f)
	require.NoError(t, err)
	data, err := ReadData(f, readHeader, false)
	require.NoError(t, err)
	assert.Equal(t, "streamed payload", string(data))
}

func TestWriteBlock_WithPadding(t *testing.T) {
	f := genericio.NewMemoryBuffer(nil)
	payload := []byte("x")

	header, err := WriteBlock(f, payload, WriteOptions{Compression: format.CompressionNone, PaddingFactor: 1.0})
	require.NoError(t, err)
	assert.Greater(t, header.AllocatedSize, header.UsedSize)
}
