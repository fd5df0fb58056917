package genericio

import (
	"errors"
	"io"
	"regexp"
)

// MemoryBuffer is a File backed by an in-memory byte slice: seekable, not
// memmap-capable (there is nothing to map; the bytes are already resident),
// length known.
type MemoryBuffer struct {
	uri  string
	data []byte
	pos  int64
}

var _ File = (*MemoryBuffer)(nil)

// NewMemoryBuffer wraps an existing byte slice for reading and writing in
// place. The slice is used directly, not copied.
func NewMemoryBuffer(data []byte) *MemoryBuffer {
	return &MemoryBuffer{data: data}
}

// NewMemoryBufferURI is like NewMemoryBuffer but attaches a URI, used when
// a memory buffer stands in for a file that does have a logical path (for
// example, test fixtures for external-URI resolution).
func NewMemoryBufferURI(data []byte, uri string) *MemoryBuffer {
	return &MemoryBuffer{data: data, uri: uri}
}

func (m *MemoryBuffer) Read(n int) ([]byte, error) {
	if m.pos >= int64(len(m.data)) {
		return []byte{}, nil
	}
	end := m.pos + int64(n)
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	out := m.data[m.pos:end]
	m.pos = end
	return out, nil
}

func (m *MemoryBuffer) ReadInto(buf []byte) (int, error) {
	chunk, _ := m.Read(len(buf))
	return copy(buf, chunk), nil
}

func (m *MemoryBuffer) ReadUntil(delim *regexp.Regexp, readahead int, includeDelim bool, initContent []byte, raiseOnMissing bool) ([]byte, error) {
	return readUntil(m, delim, readahead, includeDelim, initContent, raiseOnMissing)
}

func (m *MemoryBuffer) rewind(extra []byte) error {
	m.pos -= int64(len(extra))
	return nil
}

func (m *MemoryBuffer) Write(p []byte) (int, error) {
	if m.pos < int64(len(m.data)) {
		n := copy(m.data[m.pos:], p)
		if n < len(p) {
			m.data = append(m.data, p[n:]...)
		}
	} else {
		if gap := m.pos - int64(len(m.data)); gap > 0 {
			m.data = append(m.data, make([]byte, gap)...)
		}
		m.data = append(m.data, p...)
	}
	m.pos += int64(len(p))
	return len(p), nil
}

func (m *MemoryBuffer) WriteArray(p []byte) (int, error) {
	return m.Write(p)
}

func (m *MemoryBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, errors.New("genericio: invalid whence")
	}

	pos := base + offset
	if pos < 0 {
		return 0, errors.New("genericio: negative seek position")
	}
	m.pos = pos
	return pos, nil
}

func (m *MemoryBuffer) Tell() (int64, error) {
	return m.pos, nil
}

func (m *MemoryBuffer) FastForward(n int64) error {
	_, err := m.Seek(n, io.SeekCurrent)
	return err
}

func (m *MemoryBuffer) Truncate(n int64) error {
	if n < int64(len(m.data)) {
		m.data = m.data[:n]
		return nil
	}
	m.data = append(m.data, make([]byte, n-int64(len(m.data)))...)
	return nil
}

func (m *MemoryBuffer) Memmap(offset int64, length int) (MemView, error) {
	return nil, errors.New("genericio: MemoryBuffer is not memmap-capable")
}

func (m *MemoryBuffer) ReadBlocks(size int64, fn func(chunk []byte) error) error {
	return readBlocks(m, size, fn)
}

func (m *MemoryBuffer) BlockSize() int       { return DefaultBlockSize }
func (m *MemoryBuffer) URI() string          { return m.uri }
func (m *MemoryBuffer) Seekable() bool       { return true }
func (m *MemoryBuffer) MemmapCapable() bool  { return false }
func (m *MemoryBuffer) Close() error         { return nil }

// Bytes returns the buffer's current backing slice.
func (m *MemoryBuffer) Bytes() []byte { return m.data }
