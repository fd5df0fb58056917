// Package update implements the in-place file update engine: given an
// already-open seekable file and a freshly serialized tree, it decides
// (via Planner) whether existing blocks can be reused at their current
// offsets or whether the file must be rewritten serially, then executes
// that plan (via Engine) while never truncating surviving data before its
// new image is safely in place.
package update

import "sort"

// BlockInfo describes one block as input to the layout planner.
type BlockInfo struct {
	// Key identifies the block across planning and execution; callers
	// typically use the same buffer-identity key as package blockmgr.
	Key any
	// Size is the block's total on-disk footprint (magic + header +
	// allocated payload), from blockio.FrameSize.
	Size int64
	// Offset is this block's current location on disk. Meaningful only
	// when Fixed is true.
	Offset int64
	// Fixed reports whether this block's underlying buffer is unchanged
	// from what's already on disk at Offset, making it eligible to keep
	// its current location.
	Fixed bool
}

// Placement is one block's resolved offset in an in-place layout.
type Placement struct {
	Key    any
	Offset int64
	Size   int64
	// Moved reports whether this block must be (re)written: either it
	// was never fixed, or the planner relocated it from its prior offset.
	Moved bool
}

// Plan is the result of Planner.Plan.
type Plan struct {
	// InPlace is false when the planner could not find a usable layout
	// and the caller must fall back to a full serial rewrite.
	InPlace bool
	// Placements holds every non-streamed block's resolved offset,
	// sorted by Offset.
	Placements []Placement
	// HasStreamed and StreamedOffset describe the terminal streamed
	// block's placement, always last, when one is present.
	HasStreamed   bool
	StreamedOffset int64
	// TailSize is the planned total file size before the block index is
	// appended: the offset just past the last placed block (streamed,
	// if present, else the last regular placement).
	TailSize int64
}

// Planner computes a naive first-fit in-place layout: any fixed block
// that would overlap the new header is demoted to free, free blocks are
// placed into gaps between the remaining fixed blocks (most recently
// demoted or added first), and whatever doesn't fit is appended after the
// last placed block, past a gap of PaddingFactor*BlockSize bytes.
type Planner struct {
	// HeaderSize is the byte length of the newly serialized tree header
	// that must occupy the file's prefix.
	HeaderSize int64
	// BlockSize is the preferred padding granularity for blocks that are
	// appended rather than fit into an existing gap.
	BlockSize int64
	// PaddingFactor scales BlockSize into the padding amount; 0 disables
	// padding for appended blocks.
	PaddingFactor float64
	// Streamed, if non-nil, describes the terminal streamed block this
	// write includes. It is always appended last regardless of fit.
	Streamed *BlockInfo
}

type fixedEntry struct {
	start, end int64
	info       BlockInfo
}

// Plan computes the layout for blocks, returning InPlace=false if no
// fixed block survives the header-prefix demotion (the signal to fall
// back to a serial rewrite).
func (p Planner) Plan(blocks []BlockInfo) Plan {
	var fixed []fixedEntry
	var free []BlockInfo

	for _, b := range blocks {
		if b.Fixed {
			fixed = append(fixed, fixedEntry{start: b.Offset, end: b.Offset + b.Size, info: b})
		} else {
			free = append(free, b)
		}
	}

	sortFixed := func() {
		sort.Slice(fixed, func(i, j int) bool { return fixed[i].start < fixed[j].start })
	}

	if len(fixed) == 0 {
		return Plan{InPlace: false}
	}
	sortFixed()

	for len(fixed) > 0 && fixed[0].start < p.HeaderSize {
		free = append(free, fixed[0].info)
		fixed = fixed[1:]
	}
	if len(fixed) == 0 {
		return Plan{InPlace: false}
	}

	for len(free) > 0 {
		b := free[len(free)-1]
		free = free[:len(free)-1]

		lastEnd := p.HeaderSize
		placed := false
		for _, e := range fixed {
			if e.start-lastEnd >= b.Size {
				off := lastEnd
				fixed = append(fixed, fixedEntry{start: off, end: off + b.Size, info: b})
				sortFixed()
				placed = true
				break
			}
			lastEnd = e.end
		}
		if !placed {
			last := fixed[len(fixed)-1]
			off := last.end + p.padding(last.info.Size)
			fixed = append(fixed, fixedEntry{start: off, end: off + b.Size, info: b})
			sortFixed()
		}
	}

	placements := make([]Placement, len(fixed))
	for i, e := range fixed {
		placements[i] = Placement{
			Key:    e.info.Key,
			Offset: e.start,
			Size:   e.info.Size,
			Moved:  !e.info.Fixed || e.start != e.info.Offset,
		}
	}

	last := placements[len(placements)-1]
	plan := Plan{InPlace: true, Placements: placements, TailSize: last.Offset + last.Size}

	if p.Streamed != nil {
		off := last.Offset + last.Size + p.padding(last.Size)
		plan.HasStreamed = true
		plan.StreamedOffset = off
		plan.TailSize = off + p.Streamed.Size
	}

	return plan
}

func (p Planner) padding(size int64) int64 {
	if p.PaddingFactor <= 0 || p.BlockSize <= 0 {
		return 0
	}
	return int64(p.PaddingFactor * float64(p.BlockSize))
}
