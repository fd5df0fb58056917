package compress

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asdf-format/asdf-sub001/format"
)

func TestCreateCodec_Builtin(t *testing.T) {
	labels := []format.CompressionLabel{
		format.CompressionNone,
		format.CompressionZlib,
		format.CompressionBzip2,
		format.CompressionLZ4,
	}

	for _, label := range labels {
		codec, err := CreateCodec(label)
		require.NoError(t, err)
		assert.NotNil(t, codec)
	}
}

func TestCreateCodec_Unknown(t *testing.T) {
	_, err := CreateCodec(format.CompressionLabel{'z', 'z', 'z', 'z'})
	require.Error(t, err)
}

func TestCodecs_RoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated. " +
		"the quick brown fox jumps over the lazy dog, repeated.")

	codecs := map[string]Codec{
		"none":  NewNoOpCompressor(),
		"zlib":  NewZlibCodec(),
		"bzip2": NewBzip2Codec(),
		"lz4":   NewLZ4Codec(),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}

func TestCodecs_RoundTrip_Empty(t *testing.T) {
	codecs := map[string]Codec{
		"none":  NewNoOpCompressor(),
		"zlib":  NewZlibCodec(),
		"bzip2": NewBzip2Codec(),
		"lz4":   NewLZ4Codec(),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(nil)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Empty(t, decompressed)
		})
	}
}

func TestLZ4Codec_IncompressibleChunk(t *testing.T) {
	// High-entropy random bytes routinely make CompressBlock return n == 0
	// (declined, not an error) rather than growing the output; Compress must
	// fall back to storing such a chunk raw instead of dropping it.
	payload := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(payload)

	codec := NewLZ4Codec()

	compressed, err := codec.Compress(payload)
	require.NoError(t, err)

	decompressed, err := codec.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, decompressed)
}

func TestLZ4Codec_MultiChunk(t *testing.T) {
	payload := make([]byte, lz4ChunkSize*2+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	codec := NewLZ4Codec()

	compressed, err := codec.Compress(payload)
	require.NoError(t, err)

	decompressed, err := codec.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, decompressed)
}
