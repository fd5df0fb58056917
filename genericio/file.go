// Package genericio provides a uniform byte-oriented abstraction over the
// handful of file-like things the block layer needs to read or write: real
// files on disk, in-memory buffers, one-shot streams, and HTTP byte-range
// resources. Callers obtain a File through one of the New* constructors in
// this package; the block codec and readers/writers operate only against
// the File interface.
package genericio

import (
	"io"
	"regexp"

	"github.com/asdf-format/asdf-sub001/asdferr"
)

// DefaultBlockSize is used as the preferred I/O chunk size whenever the
// underlying resource has no notion of its own block size (streams, HTTP
// resources, and platforms where the filesystem block size can't be
// queried).
const DefaultBlockSize = 8192

// MemView is a live view over a range of a File's bytes, obtained through
// File.Memmap. Its lifetime is bound to the File it came from: once the
// File is closed, further access to a MemView is undefined at the Go level
// and callers must not retain one past Close.
type MemView interface {
	// Bytes returns the mapped range. The caller must not write through
	// this slice.
	Bytes() []byte
	// Close releases any resources the view itself holds. It does not
	// affect the owning File.
	Close() error
}

// File is the polymorphic byte-stream abstraction consumed by the block
// codec, reader, and writer. Every operation mirrors one row of the
// GenericFile operation table; not every variant supports every operation
// meaningfully (an OutputStream cannot seek, a non-seekable stream cannot
// memmap), and such calls return an error rather than silently degrading.
type File interface {
	// Read reads up to n bytes, returning fewer only at EOF. Reading 0
	// bytes is a no-op that always succeeds with an empty, non-nil
	// slice.
	Read(n int) ([]byte, error)
	// ReadInto reads into a caller-supplied buffer and returns the
	// number of bytes read.
	ReadInto(buf []byte) (int, error)
	// ReadUntil consumes bytes until delim matches within a sliding
	// window readahead bytes wider than a single block read, so that a
	// match straddling a read boundary is still found.
	ReadUntil(delim *regexp.Regexp, readahead int, includeDelim bool, initContent []byte, raiseOnMissing bool) ([]byte, error)
	// Write appends p. Only valid in write-capable modes.
	Write(p []byte) (int, error)
	// WriteArray writes a contiguous byte payload; for every variant in
	// this package it behaves exactly like Write, but it exists as a
	// distinct operation because the origin of a payload (a decoded
	// array versus a raw byte slice) matters to callers that need to
	// account bytes written per logical array.
	WriteArray(p []byte) (int, error)
	// Seek repositions the cursor. Only valid on seekable variants.
	Seek(offset int64, whence int) (int64, error)
	// Tell reports the current cursor position.
	Tell() (int64, error)
	// FastForward skips the cursor forward by n bytes: a seek on
	// seekable variants, a write of zeros or a read-and-discard on
	// stream variants.
	FastForward(n int64) error
	// Truncate resizes the underlying resource. Only valid on
	// seekable, owned variants.
	Truncate(n int64) error
	// Memmap returns a view of length bytes starting at offset. Only
	// valid on memmap-capable variants.
	Memmap(offset int64, length int) (MemView, error)
	// ReadBlocks reads size bytes total, calling fn once per
	// BlockSize()-sized slab (the final slab may be shorter). It stops
	// and returns fn's error if fn returns one.
	ReadBlocks(size int64, fn func(chunk []byte) error) error
	// BlockSize reports the preferred I/O chunk size.
	BlockSize() int
	// URI reports the resource's identifying path or URL, or "" if
	// none was given.
	URI() string
	// Seekable reports whether Seek/Tell/Truncate/Memmap are usable.
	Seekable() bool
	// MemmapCapable reports whether Memmap is usable.
	MemmapCapable() bool
	io.Closer

	// rewind returns n bytes that were read past a logical stopping
	// point back to the front of the stream. It backs the shared
	// ReadUntil implementation and is not meant to be called directly.
	rewind(extra []byte) error
}

// readUntil implements the sliding-window scan shared by every File
// variant: read BlockSize()-sized chunks, accumulate them, and look for
// delim. A match found with fewer than readahead bytes of trailing context
// is provisional — more data is pulled in to rule out a longer match
// straddling the chunk boundary — unless the stream is already exhausted.
func readUntil(f File, delim *regexp.Regexp, readahead int, includeDelim bool, initContent []byte, raiseOnMissing bool) ([]byte, error) {
	buf := append([]byte(nil), initContent...)
	eof := false

	for {
		if loc := delim.FindIndex(buf); loc != nil && (eof || len(buf)-loc[1] >= readahead) {
			return cutAndRewind(f, buf, loc, includeDelim)
		}

		if eof {
			break
		}

		chunk, err := f.Read(f.BlockSize())
		buf = append(buf, chunk...)
		if len(chunk) == 0 || err != nil {
			eof = true
		}
	}

	if loc := delim.FindIndex(buf); loc != nil {
		return cutAndRewind(f, buf, loc, includeDelim)
	}

	if raiseOnMissing {
		return nil, asdferr.ErrDelimiterNotFound
	}

	return buf, nil
}

func cutAndRewind(f File, buf []byte, loc []int, includeDelim bool) ([]byte, error) {
	cut := loc[0]
	if includeDelim {
		cut = loc[1]
	}

	if extra := buf[cut:]; len(extra) > 0 {
		if err := f.rewind(extra); err != nil {
			return nil, err
		}
	}

	return buf[:cut], nil
}

// readBlocks is the shared ReadBlocks implementation: it only depends on
// Read and BlockSize, so every variant can reuse it verbatim.
func readBlocks(f File, size int64, fn func(chunk []byte) error) error {
	blockSize := f.BlockSize()

	for remaining := size; remaining > 0; {
		n := blockSize
		if int64(n) > remaining {
			n = int(remaining)
		}

		chunk, readErr := f.Read(n)
		if len(chunk) > 0 {
			if err := fn(chunk); err != nil {
				return err
			}
		}
		remaining -= int64(len(chunk))
		if len(chunk) < n || readErr != nil {
			return readErr
		}
	}

	return nil
}
