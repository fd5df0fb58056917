package blockio

import (
	"gopkg.in/yaml.v3"

	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/genericio"
)

// WriteItem is one block queued for Writer.WriteBlocks: its payload (or a
// callback that produces it, for blocks whose source is a lazy read-side
// buffer being re-serialized without having been materialized) and its
// per-block write options.
type WriteItem struct {
	Data func() ([]byte, error)
	WriteOptions
}

// Writer emits an ordered sequence of blocks, optionally followed by a
// single terminal streamed block, optionally followed by a block index.
type Writer struct {
	WriteIndex bool
}

// WriteBlocks writes every item via WriteBlock, recording each one's
// starting offset, then the streamed block (if any), then the block index
// (if requested, no streamed block is present, at least one block was
// written, and f is seekable). It returns the recorded offsets in file
// order (excluding the streamed block, which is never part of the index).
func (w Writer) WriteBlocks(f genericio.File, items []WriteItem, streamed *WriteItem) ([]int64, error) {
	offsets := make([]int64, 0, len(items))

	for _, item := range items {
		offset, err := f.Tell()
		if err != nil {
			return nil, err
		}

		payload, err := item.Data()
		if err != nil {
			return nil, err
		}
		if _, err := WriteBlock(f, payload, item.WriteOptions); err != nil {
			return nil, err
		}

		offsets = append(offsets, offset)
	}

	if streamed != nil {
		payload, err := streamed.Data()
		if err != nil {
			return nil, err
		}
		opts := streamed.WriteOptions
		opts.Streamed = true
		if _, err := WriteBlock(f, payload, opts); err != nil {
			return nil, err
		}
		return offsets, nil
	}

	if len(items) > 0 && w.WriteIndex && f.Seekable() {
		if err := WriteBlockIndex(f, offsets); err != nil {
			return nil, err
		}
	}

	return offsets, nil
}

// WriteBlockIndex writes the ASCII marker line followed by a
// "---"/"..."-framed YAML sequence of offsets.
func WriteBlockIndex(f genericio.File, offsets []int64) error {
	if _, err := f.Write([]byte(blockfmt.IndexMarker)); err != nil {
		return err
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return err
	}

	var buf []byte
	buf = append(buf, "---\n"...)

	encoded, err := yaml.Marshal(offsets)
	if err != nil {
		return err
	}
	buf = append(buf, encoded...)
	buf = append(buf, "...\n"...)

	_, err = f.Write(buf)
	return err
}
