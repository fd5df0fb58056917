package asdf

import (
	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/blockio"
	"github.com/asdf-format/asdf-sub001/format"
)

// BlockView is the read-only handle the format specification's external
// interfaces (§6) name as the CLI's `info` subcommand's unit of work: a
// block's recorded position and header, plus the ability to force a lazy
// placeholder to load without going through the tree layer at all.
type BlockView struct {
	Index      int
	Offset     int64
	DataOffset int64
	Header     blockfmt.Header

	block *blockio.Block
}

// Loaded reports whether this block's payload has already been read from
// disk.
func (v BlockView) Loaded() bool {
	return v.block.Loaded()
}

// Load forces this block's payload to be read, if it was a lazy
// placeholder. It is a no-op if already loaded.
func (v BlockView) Load() error {
	return v.block.Load()
}

// Data returns this block's payload, loading it first if necessary.
func (v BlockView) Data() ([]byte, error) {
	return v.block.Data()
}

// FileInfo summarizes an open AsdfFile for diagnostics: the CLI's `info`
// subcommand prints one line per BlockView.
type FileInfo struct {
	URI             string
	Version         string
	StandardVersion string
	Blocks          []BlockView
}

// CompressionsUsed returns the distinct compression labels appearing
// across Blocks, in no particular order.
func (fi FileInfo) CompressionsUsed() []format.CompressionLabel {
	seen := make(map[format.CompressionLabel]struct{})
	var out []format.CompressionLabel
	for _, b := range fi.Blocks {
		if _, ok := seen[b.Header.Compression]; ok {
			continue
		}
		seen[b.Header.Compression] = struct{}{}
		out = append(out, b.Header.Compression)
	}
	return out
}
