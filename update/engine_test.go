package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/blockio"
	"github.com/asdf-format/asdf-sub001/format"
	"github.com/asdf-format/asdf-sub001/genericio"
)

func TestEngine_UpdateInPlace_ShrinksUnfittingBlock(t *testing.T) {
	header := []byte("#ASDF header placeholder\n")
	dataA := []byte("aaaaaaaa")
	dataB := make([]byte, 64)
	for i := range dataB {
		dataB[i] = 'b'
	}

	f := genericio.NewMemoryBuffer(nil)
	_, err := f.Write(header)
	require.NoError(t, err)

	w := blockio.Writer{}
	offsets, err := w.WriteBlocks(f, []blockio.WriteItem{
		{Data: func() ([]byte, error) { return dataA, nil }, WriteOptions: blockio.WriteOptions{Compression: format.CompressionNone}},
		{Data: func() ([]byte, error) { return dataB, nil }, WriteOptions: blockio.WriteOptions{Compression: format.CompressionNone}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, offsets, 2)

	hA, _, err := blockio.ComputeHeader(dataA, blockio.WriteOptions{Compression: format.CompressionNone}, f.BlockSize())
	require.NoError(t, err)

	newDataB := []byte("smaller-b-payload")

	engine := Engine{BlockSize: int64(f.BlockSize())}
	err = engine.Update(f, header, []Item{
		{Key: "a", Fixed: true, CurrentOffset: offsets[0], CurrentSize: blockio.FrameSize(hA)},
		{
			Key:     "b",
			Data:    func() ([]byte, error) { return newDataB, nil },
			Options: blockio.WriteOptions{Compression: format.CompressionNone},
		},
	}, nil)
	require.NoError(t, err)

	_, err = f.Seek(int64(len(header)), 0)
	require.NoError(t, err)

	blocks, err := (blockio.Reader{}).ReadBlocks(f, false)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	gotA, err := blocks[0].Data()
	require.NoError(t, err)
	assert.Equal(t, dataA, gotA)

	gotB, err := blocks[1].Data()
	require.NoError(t, err)
	assert.Equal(t, newDataB, gotB)

	assert.LessOrEqual(t, int64(len(f.Bytes())), int64(len(header))+blockio.FrameSize(hA)+blockio.FrameSize(mustHeader(t, newDataB)))
}

func TestEngine_UpdateSerial_WhenNoFixedBlocks(t *testing.T) {
	header := []byte("#ASDF header\n")
	f := genericio.NewMemoryBuffer(nil)

	engine := Engine{BlockSize: int64(f.BlockSize())}
	err := engine.Update(f, header, []Item{
		{Key: "a", Data: func() ([]byte, error) { return []byte("only block"), nil }, Options: blockio.WriteOptions{Compression: format.CompressionNone}},
	}, nil)
	require.NoError(t, err)

	_, err = f.Seek(int64(len(header)), 0)
	require.NoError(t, err)

	blocks, err := (blockio.Reader{}).ReadBlocks(f, false)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	data, err := blocks[0].Data()
	require.NoError(t, err)
	assert.Equal(t, "only block", string(data))
}

func TestEngine_UpdateInPlace_WithStreamedBlock(t *testing.T) {
	header := []byte("#ASDF header\n")
	dataA := []byte("fixed")

	f := genericio.NewMemoryBuffer(nil)
	_, err := f.Write(header)
	require.NoError(t, err)

	w := blockio.Writer{}
	offsets, err := w.WriteBlocks(f, []blockio.WriteItem{
		{Data: func() ([]byte, error) { return dataA, nil }, WriteOptions: blockio.WriteOptions{Compression: format.CompressionNone}},
	}, nil)
	require.NoError(t, err)

	hA, _, err := blockio.ComputeHeader(dataA, blockio.WriteOptions{Compression: format.CompressionNone}, f.BlockSize())
	require.NoError(t, err)

	engine := Engine{BlockSize: int64(f.BlockSize())}
	err = engine.Update(f, header, []Item{
		{Key: "a", Fixed: true, CurrentOffset: offsets[0], CurrentSize: blockio.FrameSize(hA)},
	}, &Item{Key: "s", Data: func() ([]byte, error) { return []byte("streamed tail"), nil }})
	require.NoError(t, err)

	_, err = f.Seek(int64(len(header)), 0)
	require.NoError(t, err)

	blocks, err := (blockio.Reader{}).ReadBlocks(f, false)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.True(t, blocks[1].Header.Streamed())

	tail, err := blocks[1].Data()
	require.NoError(t, err)
	assert.Equal(t, "streamed tail", string(tail))
}

func mustHeader(t *testing.T, data []byte) blockfmt.Header {
	t.Helper()
	h, _, err := blockio.ComputeHeader(data, blockio.WriteOptions{Compression: format.CompressionNone}, 8192)
	require.NoError(t, err)
	return h
}
