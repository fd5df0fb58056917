package genericio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealFile_CreateIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.asdf")

	f, err := CreateRealFile(path)
	require.NoError(t, err)

	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file must not exist before Close")

	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRealFile_CreateTracksPosition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.asdf")

	f, err := CreateRealFile(path)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pos, err := f.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	_, err = f.Write([]byte("de"))
	require.NoError(t, err)

	pos, err = f.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
}

func TestRealFile_ReadWriteInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.asdf")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f, err := OpenRealFileReadWrite(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Seek(2, io.SeekStart)
	require.NoError(t, err)

	n, err := f.Write([]byte("XY"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	got, err := f.Read(10)
	require.NoError(t, err)
	assert.Equal(t, "01XY456789", string(got))
}

func TestRealFile_Memmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapped.asdf")
	require.NoError(t, os.WriteFile(path, []byte("mapped-contents"), 0o644))

	f, err := OpenRealFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.MemmapCapable())

	view, err := f.Memmap(7, 8)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(view.Bytes()))
}
