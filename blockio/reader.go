package blockio

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/asdf-format/asdf-sub001/asdferr"
	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/genericio"
)

// Block is one entry of a Reader's scan: its offset, its header once
// known, and its payload, which may be lazy.
type Block struct {
	Offset     int64
	DataOffset int64
	Header     blockfmt.Header
	Streamed   bool

	f      genericio.File
	memmap bool
	data   []byte
	loaded bool
}

// newEagerBlock builds a Block whose header and data are already known.
func newEagerBlock(offset, dataOffset int64, header blockfmt.Header, data []byte) *Block {
	return &Block{Offset: offset, DataOffset: dataOffset, Header: header, Streamed: header.Streamed(), data: data, loaded: true}
}

// newLazyPlaceholder builds a Block that knows only its offset; Load must
// be called (directly, or implicitly via Data) before Header or Data are
// meaningful.
func newLazyPlaceholder(f genericio.File, offset int64, memmap bool) *Block {
	return &Block{Offset: offset, f: f, memmap: memmap}
}

// Loaded reports whether the header and payload have been read yet.
func (b *Block) Loaded() bool {
	return b.loaded
}

// Load forces a lazy placeholder's header and payload to be read from its
// recorded offset. It is a no-op if already loaded.
func (b *Block) Load() error {
	if b.loaded {
		return nil
	}

	if _, err := b.f.Seek(b.Offset+blockfmt.MagicSize, io.SeekStart); err != nil {
		return err
	}

	header, err := ReadHeader(b.f)
	if err != nil {
		return err
	}

	dataOffset, err := b.f.Tell()
	if err != nil {
		return err
	}

	data, err := ReadData(b.f, header, b.memmap)
	if err != nil {
		return err
	}

	b.Header = header
	b.DataOffset = dataOffset
	b.Streamed = header.Streamed()
	b.data = data
	b.loaded = true
	return nil
}

// Data returns the block's payload, loading it first if it was lazy.
func (b *Block) Data() ([]byte, error) {
	if err := b.Load(); err != nil {
		return nil, err
	}
	return b.data, nil
}

// Logger receives the non-fatal diagnostics the format specification's
// error-handling design calls for (§7): falling back from a malformed block
// index to a serial scan, and tolerating a small run of trailing zero bytes
// between the last block and EOF.
type Logger interface {
	Warnf(format string, args ...any)
}

// Reader scans an already-positioned File for the sequence of blocks that
// follow, using either a serial magic-seeking scan or, when requested, a
// backward search for a trailing block index.
type Reader struct {
	Memmap   bool
	LazyLoad bool
	Logger   Logger
}

func (r Reader) warnf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Warnf(format, args...)
	}
}

// ReadBlocks scans f starting at its current offset. When useIndex is
// true and f is seekable, it first attempts the indexed strategy and
// falls back to serial scanning if the index is missing, malformed, or
// fails its magic sanity check.
func (r Reader) ReadBlocks(f genericio.File, useIndex bool) ([]*Block, error) {
	if !useIndex || !f.Seekable() {
		return r.readSerially(f)
	}

	start, err := f.Tell()
	if err != nil {
		return nil, err
	}

	blocks, err := r.readIndexed(f, start)
	if err != nil || blocks == nil {
		if err != nil {
			r.warnf("block index invalid, falling back to serial scan: %v", err)
		}
		if _, seekErr := f.Seek(start, io.SeekStart); seekErr != nil {
			return nil, seekErr
		}
		return r.readSerially(f)
	}

	return blocks, nil
}

func (r Reader) readSerially(f genericio.File) ([]*Block, error) {
	var blocks []*Block
	var buf []byte

	indexMarkerHead := []byte(blockfmt.IndexMarker)[:blockfmt.MagicSize]

	for {
		if need := blockfmt.MagicSize - len(buf); need > 0 {
			chunk, err := f.Read(need)
			if err != nil {
				return nil, err
			}
			buf = append(buf, chunk...)
			if len(buf) < blockfmt.MagicSize {
				// Exhausted with no more blocks and no index. Up to 3
				// trailing zero bytes are tolerated as padding noise; a
				// non-zero byte means real, unparseable trailing data.
				if len(buf) == 0 {
					break
				}
				allZero := true
				for _, b := range buf {
					if b != 0 {
						allZero = false
						break
					}
				}
				if !allZero {
					return nil, fmt.Errorf("%w: %x", asdferr.ErrTrailingGarbage, buf)
				}
				r.warnf("%d trailing zero byte(s) after last block: %v", len(buf), asdferr.ErrTrailingGarbage)
				break
			}
		}

		if bytes.Equal(buf, indexMarkerHead) {
			break
		}

		if !bytes.Equal(buf, blockfmt.Magic[:]) {
			if len(blocks) > 0 || buf[0] != 0 {
				return nil, fmt.Errorf("%w: %x", asdferr.ErrBadMagic, buf)
			}
			// Leading NUL padding before the first block is tolerated:
			// strip it and refill the window on the next iteration.
			i := 0
			for i < len(buf) && buf[i] == 0 {
				i++
			}
			buf = append(buf[:0], buf[i:]...)
			continue
		}

		offset, err := f.Tell()
		if err != nil {
			return nil, err
		}
		offset -= blockfmt.MagicSize
		buf = buf[:0]

		header, err := ReadHeader(f)
		if err != nil {
			return nil, err
		}
		dataOffset, err := f.Tell()
		if err != nil {
			return nil, err
		}

		var blk *Block
		if r.LazyLoad && f.Seekable() {
			blk = newLazyPlaceholder(f, offset, r.Memmap)
			if err := f.FastForward(int64(header.AllocatedSize)); err != nil {
				return nil, err
			}
			blk.Header = header
			blk.DataOffset = dataOffset
			blk.Streamed = header.Streamed()
		} else {
			data, err := ReadData(f, header, r.Memmap)
			if err != nil {
				return nil, err
			}
			blk = newEagerBlock(offset, dataOffset, header, data)
		}

		blocks = append(blocks, blk)
		if blk.Header.Streamed() {
			break
		}
	}

	return blocks, nil
}

func (r Reader) readIndexed(f genericio.File, searchFrom int64) ([]*Block, error) {
	indexOffset, err := FindBlockIndex(f, searchFrom)
	if err != nil || indexOffset < 0 {
		return nil, err
	}

	offsets, err := ReadBlockIndex(f, indexOffset)
	if err != nil {
		return nil, asdferr.ErrInvalidBlockIndex
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	blocks := make([]*Block, len(offsets))
	for i, off := range offsets {
		blocks[i] = newLazyPlaceholder(f, off, r.Memmap)
	}

	for _, i := range []int{0, len(blocks) - 1} {
		if _, err := f.Seek(blocks[i].Offset, io.SeekStart); err != nil {
			return nil, err
		}
		magic := make([]byte, blockfmt.MagicSize)
		if _, err := f.ReadInto(magic); err != nil {
			return nil, err
		}
		if !bytes.Equal(magic, blockfmt.Magic[:]) {
			return nil, asdferr.ErrInvalidBlockIndex
		}
		if err := blocks[i].Load(); err != nil {
			return nil, asdferr.ErrInvalidBlockIndex
		}
	}

	return blocks, nil
}

// FindBlockIndex searches backward from end-of-file for the block index
// marker, scanning f.BlockSize()-sized windows that overlap by one byte
// less than the marker's length, stopping once the search passes searchFrom. It returns
// -1 if no marker was found.
func FindBlockIndex(f genericio.File, searchFrom int64) (int64, error) {
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return -1, err
	}

	blockSize := int64(f.BlockSize())
	marker := []byte(blockfmt.IndexMarker)

	tail := []byte{}
	for offset := alignDown(end, blockSize); offset >= searchFrom; offset -= blockSize {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return -1, err
		}
		window := make([]byte, blockSize)
		n, err := f.ReadInto(window)
		if err != nil {
			return -1, err
		}
		window = append(window[:n], tail...)

		if idx := bytes.Index(window, marker); idx >= 0 {
			return offset + int64(idx), nil
		}

		if len(window) >= len(marker) {
			tail = window[:len(marker)-1]
		} else {
			tail = window
		}

		if offset == 0 {
			break
		}
	}

	return -1, nil
}

func alignDown(n, size int64) int64 {
	return (n / size) * size
}

// ReadBlockIndex parses the YAML list of strictly increasing non-negative
// integer offsets that follows the index marker starting at offset (the
// position FindBlockIndex returns); the marker itself is skipped.
func ReadBlockIndex(f genericio.File, offset int64) ([]int64, error) {
	if _, err := f.Seek(offset+int64(len(blockfmt.IndexMarker)), io.SeekStart); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	chunk := make([]byte, f.BlockSize())
	for {
		n, err := f.ReadInto(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if n == 0 || err != nil {
			break
		}
	}

	var offsets []int64
	if err := yaml.Unmarshal(buf.Bytes(), &offsets); err != nil {
		return nil, asdferr.ErrInvalidBlockIndex
	}

	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return nil, asdferr.ErrInvalidBlockIndex
		}
	}
	if len(offsets) > 0 && offsets[0] < 0 {
		return nil, asdferr.ErrInvalidBlockIndex
	}

	return offsets, nil
}
