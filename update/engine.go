package update

import (
	"io"
	"sort"

	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/blockio"
	"github.com/asdf-format/asdf-sub001/genericio"
)

// Item is one block queued for Engine.Update: either a survivor of a prior
// read (Fixed, with its current on-disk location known) or a new or
// changed block that must be (re)written.
type Item struct {
	Key any

	// Data produces the item's uncompressed payload. It is called at
	// most once per Update, and always before any write to the target
	// file begins, so a lazy reader backed by the file being updated is
	// never asked to read through bytes this Update has already
	// overwritten.
	Data func() ([]byte, error)

	Options blockio.WriteOptions

	// Fixed, CurrentOffset, and CurrentSize describe this item's
	// existing on-disk location when it is unchanged from a prior read
	// (same buffer identity, same storage class, same compression).
	// Fixed is false for newly added or changed blocks.
	Fixed         bool
	CurrentOffset int64
	CurrentSize   int64
}

// Engine executes a file update: plan a layout with Planner, then either
// rewrite in place or fall back to a full serial rewrite.
type Engine struct {
	BlockSize     int64
	PaddingFactor float64
	WriteIndex    bool
}

type preparedItem struct {
	header blockfmt.Header
	body   []byte
}

// Update rewrites f so that re-reading it yields header as the tree
// section followed by items (in their given order) and, if non-nil,
// streamed as the terminal streamed block. f must already be positioned
// irrelevant to this call; Update always seeks explicitly.
func (e Engine) Update(f genericio.File, header []byte, items []Item, streamed *Item) error {
	prepared := make([]preparedItem, len(items))
	blocks := make([]BlockInfo, len(items))
	for i, it := range items {
		if it.Fixed {
			blocks[i] = BlockInfo{Key: it.Key, Size: it.CurrentSize, Offset: it.CurrentOffset, Fixed: true}
			continue
		}

		p, err := e.prepare(it)
		if err != nil {
			return err
		}
		prepared[i] = p
		blocks[i] = BlockInfo{Key: it.Key, Size: blockio.FrameSize(p.header), Fixed: false}
	}

	var streamedInfo *BlockInfo
	var streamedPrepared preparedItem
	if streamed != nil {
		opts := streamed.Options
		opts.Streamed = true
		payload, err := streamed.Data()
		if err != nil {
			return err
		}
		h, body, err := blockio.ComputeHeader(payload, opts, int(e.BlockSize))
		if err != nil {
			return err
		}
		streamedPrepared = preparedItem{header: h, body: body}
		frameSize := int64(blockfmt.MagicSize+blockfmt.HeaderSizeFieldSize+blockfmt.HeaderSize) + int64(len(payload))
		streamedInfo = &BlockInfo{Key: streamed.Key, Size: frameSize}
	}

	planner := Planner{HeaderSize: int64(len(header)), BlockSize: e.BlockSize, PaddingFactor: e.PaddingFactor, Streamed: streamedInfo}
	plan := planner.Plan(blocks)

	if !plan.InPlace {
		return e.updateSerial(f, header, items, prepared, streamed, streamedPrepared)
	}

	return e.updateInPlace(f, header, items, prepared, plan, streamed, streamedPrepared)
}

func (e Engine) prepare(it Item) (preparedItem, error) {
	payload, err := it.Data()
	if err != nil {
		return preparedItem{}, err
	}
	h, body, err := blockio.ComputeHeader(payload, it.Options, int(e.BlockSize))
	if err != nil {
		return preparedItem{}, err
	}
	return preparedItem{header: h, body: body}, nil
}

// updateInPlace demotes nothing further: any item the planner marked
// Fixed-but-unmoved is left untouched on disk; every Moved placement
// (already prepared for free items, or a fixed item whose location
// changed, which this function now materializes) is written at its
// planned offset before the file is truncated to the new tail.
func (e Engine) updateInPlace(f genericio.File, header []byte, items []Item, prepared []preparedItem, plan Plan, streamed *Item, streamedPrepared preparedItem) error {
	byKey := make(map[any]int, len(items))
	for i, it := range items {
		byKey[it.Key] = i
	}

	order := append([]Placement(nil), plan.Placements...)
	sort.Slice(order, func(i, j int) bool { return order[i].Offset < order[j].Offset })

	// Materialize every moved item before any write begins, so a lazily
	// backed payload is always read before this update could have
	// clobbered its source bytes.
	toWrite := make(map[any]preparedItem, len(order))
	for _, pl := range order {
		if !pl.Moved {
			continue
		}
		idx := byKey[pl.Key]
		if prepared[idx].body != nil {
			toWrite[pl.Key] = prepared[idx]
			continue
		}
		p, err := e.prepare(items[idx])
		if err != nil {
			return err
		}
		toWrite[pl.Key] = p
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		return err
	}
	padLen := order[0].Offset - int64(len(header))
	if padLen > 0 {
		if _, err := f.Write(make([]byte, padLen)); err != nil {
			return err
		}
	}

	for _, pl := range order {
		if !pl.Moved {
			continue
		}
		p := toWrite[pl.Key]
		if _, err := f.Seek(pl.Offset, io.SeekStart); err != nil {
			return err
		}
		if err := blockio.WriteFrame(f, p.header, p.body); err != nil {
			return err
		}
	}

	if plan.HasStreamed {
		if _, err := f.Seek(plan.StreamedOffset, io.SeekStart); err != nil {
			return err
		}
		if err := blockio.WriteFrame(f, streamedPrepared.header, streamedPrepared.body); err != nil {
			return err
		}
	}

	if err := f.Truncate(plan.TailSize); err != nil {
		return err
	}

	if e.WriteIndex && !plan.HasStreamed && len(order) > 0 {
		offsets := make([]int64, len(order))
		for i, pl := range order {
			offsets[i] = pl.Offset
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
		return blockio.WriteBlockIndex(f, offsets)
	}

	return nil
}

// updateSerial rewrites the whole file end to end: header, then every
// item (materializing any not already prepared), then the streamed
// block, then the index. Every payload is read into memory before any
// write begins, for the same reason updateInPlace does it for moved
// items — here every item is effectively moved.
func (e Engine) updateSerial(f genericio.File, header []byte, items []Item, prepared []preparedItem, streamed *Item, streamedPrepared preparedItem) error {
	for i, it := range items {
		if prepared[i].body != nil {
			continue
		}
		p, err := e.prepare(it)
		if err != nil {
			return err
		}
		prepared[i] = p
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		return err
	}

	offsets := make([]int64, len(items))
	for i, p := range prepared {
		off, err := f.Tell()
		if err != nil {
			return err
		}
		offsets[i] = off
		if err := blockio.WriteFrame(f, p.header, p.body); err != nil {
			return err
		}
	}

	tail, err := f.Tell()
	if err != nil {
		return err
	}

	if streamed != nil {
		if err := blockio.WriteFrame(f, streamedPrepared.header, streamedPrepared.body); err != nil {
			return err
		}
		tail, err = f.Tell()
		if err != nil {
			return err
		}
	}

	if err := f.Truncate(tail); err != nil {
		return err
	}

	if e.WriteIndex && streamed == nil && len(offsets) > 0 {
		return blockio.WriteBlockIndex(f, offsets)
	}

	return nil
}
