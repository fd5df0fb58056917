// Package asdf is the façade tying the block layer, the block manager, and
// the tree adapter together into the file-level operations named by the
// format specification's external interfaces (§6): Open/Create a file,
// read or replace its tree, and write it back either as a full rewrite or,
// for an already-associated real file, as an in-place update.
package asdf

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/asdf-format/asdf-sub001/asdferr"
	"github.com/asdf-format/asdf-sub001/blockio"
	"github.com/asdf-format/asdf-sub001/blockmgr"
	"github.com/asdf-format/asdf-sub001/format"
	"github.com/asdf-format/asdf-sub001/genericio"
	"github.com/asdf-format/asdf-sub001/internal/options"
	"github.com/asdf-format/asdf-sub001/tree"
	"github.com/asdf-format/asdf-sub001/update"
)

// AsdfFile is one open ASDF document: its tree, the block manager backing
// every array reference the tree contains, and the file it was opened
// from (nil for a tree built from scratch with no backing file yet).
type AsdfFile struct {
	f        genericio.File
	path     string
	readOnly bool

	header fileHeader
	tr     tree.Node
	mgr    *blockmgr.Manager
	opts   *fileOptions
}

// Open opens path for reading, and for writing too if the file can be
// opened read-write; Update then reports asdferr.ErrReadOnly if it
// couldn't be.
func Open(path string, opts ...OpenOption) (*AsdfFile, error) {
	f, readOnly, err := openRealFilePreferWrite(path)
	if err != nil {
		return nil, err
	}
	a, err := openFile(f, readOnly, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

func openRealFilePreferWrite(path string) (genericio.File, bool, error) {
	if f, err := genericio.OpenRealFileReadWrite(path); err == nil {
		return f, false, nil
	}
	f, err := genericio.OpenRealFile(path)
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// OpenFile opens an already-constructed File. Its read-only status is
// inferred from Seekable: Update and in-place rewrites fundamentally
// require seeking, so a non-seekable File (an InputStream, an
// OutputStream, a range-incapable HTTPRange) is treated as read-only
// regardless of what the caller might otherwise be able to do with it. A
// seekable File that is nonetheless not actually writable (a RealFile
// opened for reading only) surfaces that as a write error from Update
// itself rather than from this constructor.
func OpenFile(f genericio.File, opts ...OpenOption) (*AsdfFile, error) {
	return openFile(f, !f.Seekable(), opts)
}

// Create opens path for writing a brand-new file from scratch: an empty
// tree and no blocks until the caller populates both and calls Write.
func Create(path string, opts ...OpenOption) (*AsdfFile, error) {
	f, err := genericio.CreateRealFile(path)
	if err != nil {
		return nil, err
	}

	o := defaultFileOptions()
	if err := options.Apply(o, opts...); err != nil {
		f.Close()
		return nil, err
	}

	return &AsdfFile{
		f:      f,
		path:   f.URI(),
		header: fileHeader{Version: FileFormatVersion, StandardVersion: o.StandardVersion},
		tr:     tree.Mapping(),
		mgr:    blockmgr.New(f.URI()),
		opts:   o,
	}, nil
}

func openFile(f genericio.File, readOnly bool, opts []OpenOption) (*AsdfFile, error) {
	o := defaultFileOptions()
	if err := options.Apply(o, opts...); err != nil {
		return nil, err
	}

	header, treeBytes, err := readPreamble(f)
	if err != nil {
		return nil, err
	}
	if o.StandardVersion != "" {
		header.StandardVersion = o.StandardVersion
	}

	root, err := tree.LoadTreeWithHook(bytes.NewReader(treeBytes), tree.DefaultHook{})
	if err != nil {
		return nil, err
	}

	reader := blockio.Reader{Memmap: o.Memmap, Logger: o.Logger}
	blocks, err := reader.ReadBlocks(f, o.BlockIndexLookup)
	if err != nil {
		return nil, err
	}

	if o.ValidateChecksum {
		if err := validateChecksums(blocks); err != nil {
			return nil, err
		}
	}

	mgr := blockmgr.New(f.URI())
	mgr.LoadReadBlocks(blocks)
	bindArrayRefs(root, mgr, blocks)

	if violations, err := o.Validator.Validate(root, header.StandardVersion); err != nil {
		return nil, err
	} else if len(violations) > 0 {
		o.Logger.Warnf("tree failed validation against %q: %d violation(s), first: %s: %s",
			header.StandardVersion, len(violations), violations[0].Path, violations[0].Message)
	}

	return &AsdfFile{
		f:        f,
		path:     f.URI(),
		readOnly: readOnly,
		header:   header,
		tr:       root,
		mgr:      mgr,
		opts:     o,
	}, nil
}

func validateChecksums(blocks []*blockio.Block) error {
	for _, b := range blocks {
		if b.Header.Streamed() || !b.Header.ChecksumSet() {
			continue
		}
		data, err := b.Data()
		if err != nil {
			return err
		}
		if md5.Sum(data) != b.Header.Checksum {
			return asdferr.ErrChecksumMismatch
		}
	}
	return nil
}

// bindArrayRefs walks root for ArrayRef leaves produced by LoadTree and
// tells mgr which read block each one came from, so a later Write/Update
// that leaves a block untouched can still re-serialize its payload and
// the façade's Info can report its BlockView.
func bindArrayRefs(root tree.Node, mgr *blockmgr.Manager, blocks []*blockio.Block) {
	streamedIdx := -1
	if n := len(blocks); n > 0 && blocks[n-1].Header.Streamed() {
		streamedIdx = n - 1
	}

	for _, ref := range collectArrayRefs(root) {
		switch {
		case ref.Storage == format.StorageStreamed:
			if streamedIdx < 0 {
				continue
			}
			ref.Source = streamedIdx
			ref.Compression = blocks[streamedIdx].Header.Compression
			mgr.BindReadBlock(ref, streamedIdx)
		case ref.Encoding == tree.RefEncodingSource:
			idx, ok := ref.Source.(int)
			if !ok {
				continue
			}
			ref.Compression = blocks[idx].Header.Compression
			mgr.BindReadBlock(ref, idx)
		}
	}
}

// collectArrayRefs returns every ArrayRef leaf reachable from root, in
// document order.
func collectArrayRefs(n tree.Node) []*tree.ArrayRef {
	var out []*tree.ArrayRef
	var walk func(tree.Node)
	walk = func(n tree.Node) {
		switch n.Kind {
		case tree.KindArrayRef:
			out = append(out, n.Ref)
		case tree.KindMapping:
			for _, e := range n.Mapping {
				walk(e.Value)
			}
		case tree.KindSequence:
			for _, c := range n.Sequence {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

// Tree returns the document's current root node.
func (a *AsdfFile) Tree() tree.Node { return a.tr }

// SetTree replaces the document's root node wholesale. Array references
// within it that were produced by this same AsdfFile's Tree() keep their
// binding to the block manager; newly built ones are picked up by
// MakeWriteBlock/SetStreamedBlock the next time Write or Update runs.
func (a *AsdfFile) SetTree(n tree.Node) { a.tr = n }

// Close releases the underlying File. It does not write anything.
func (a *AsdfFile) Close() error {
	if a.f == nil {
		return nil
	}
	return a.f.Close()
}

// Info summarizes the open file for diagnostics.
func (a *AsdfFile) Info() FileInfo {
	fi := FileInfo{URI: a.path, Version: a.header.Version, StandardVersion: a.header.StandardVersion}
	for i := 0; i < a.mgr.ReadBlockCount(); i++ {
		blk, err := a.mgr.ReadBlockAt(i)
		if err != nil {
			continue
		}
		fi.Blocks = append(fi.Blocks, BlockView{
			Index:      i,
			Offset:     blk.Offset,
			DataOffset: blk.DataOffset,
			Header:     blk.Header,
			block:      blk,
		})
	}
	return fi
}

// Write serializes the whole document from scratch: header, tree, every
// block in document order, then (if requested) a block index. It is the
// only option for a file with no path (built via Create in memory, or
// handed to OpenFile over a non-seekable stream). Update does not call it:
// when no fixed block survives the new header's prefix, update.Engine
// performs its own serial rewrite.
func (a *AsdfFile) Write(opts ...WriteOption) error {
	o := *a.opts
	if err := options.Apply(&o, opts...); err != nil {
		return err
	}

	a.mgr.ClearWrite()
	if err := a.planWriteRefs(); err != nil {
		return err
	}

	treeBytes, err := a.renderTree()
	if err != nil {
		return err
	}
	header := renderPreamble(a.header, treeBytes)

	if a.f.Seekable() {
		if _, err := a.f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}
	if _, err := a.f.Write(header); err != nil {
		return err
	}

	w := blockio.Writer{WriteIndex: o.BlockIndexLookup}
	streamed := a.mgr.StreamedItem()
	items := a.mgr.WriteItems()
	for i := range items {
		items[i].PaddingFactor = o.Padding
	}
	if _, err := w.WriteBlocks(a.f, items, streamed); err != nil {
		return err
	}

	if a.f.Seekable() {
		end, err := a.f.Tell()
		if err != nil {
			return err
		}
		if err := a.f.Truncate(end); err != nil {
			return err
		}
	}

	if err := a.writeExternalBlocks(); err != nil {
		return err
	}

	a.opts = &o
	return nil
}

// writeExternalBlocks serializes every pending StorageExternal array as its
// own minimal sibling ASDF file: the same header line this file carries,
// an empty tree, and the array's single block, matching how a sibling file
// is itself a valid, independently openable ASDF document.
func (a *AsdfFile) writeExternalBlocks() error {
	for _, ext := range a.mgr.ExternalWriteBlocks() {
		path := blockmgr.ResolveExternalURI(a.path, ext.URI)
		sib, err := genericio.CreateRealFile(path)
		if err != nil {
			return err
		}

		emptyTree, err := a.renderEmptyTree()
		if err != nil {
			sib.Close()
			return err
		}
		if _, err := sib.Write(renderPreamble(fileHeader{Version: a.header.Version}, emptyTree)); err != nil {
			sib.Close()
			return err
		}

		item := blockio.WriteItem{Data: ext.Data, WriteOptions: blockio.WriteOptions{Compression: ext.Compression}}
		if _, err := (blockio.Writer{}).WriteBlocks(sib, []blockio.WriteItem{item}, nil); err != nil {
			sib.Close()
			return err
		}

		if err := sib.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (a *AsdfFile) renderEmptyTree() ([]byte, error) {
	var buf bytes.Buffer
	if err := tree.DumpTree(tree.Mapping(), &buf, tree.DefaultHook{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Update rewrites the file in place, reusing the on-disk location of any
// block whose buffer, storage, and compression are all unchanged since
// this AsdfFile was opened. It requires an associated, writable file;
// anything else is Write's job.
func (a *AsdfFile) Update(opts ...WriteOption) error {
	if a.path == "" {
		return asdferr.ErrNoAssociatedFile
	}
	if a.readOnly {
		return asdferr.ErrReadOnly
	}

	o := *a.opts
	if err := options.Apply(&o, opts...); err != nil {
		return err
	}

	items, streamedItem, err := a.planUpdateRefs()
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Options.PaddingFactor = o.Padding
	}

	treeBytes, err := a.renderTree()
	if err != nil {
		return err
	}
	header := renderPreamble(a.header, treeBytes)

	engine := update.Engine{BlockSize: int64(a.f.BlockSize()), PaddingFactor: o.Padding, WriteIndex: o.BlockIndexLookup}
	if err := engine.Update(a.f, header, items, streamedItem); err != nil {
		return err
	}

	if err := a.writeExternalBlocks(); err != nil {
		return err
	}

	a.opts = &o
	return nil
}

// renderTree serializes a.tr through tree.DumpTree.
func (a *AsdfFile) renderTree() ([]byte, error) {
	var buf bytes.Buffer
	if err := tree.DumpTree(a.tr, &buf, tree.DefaultHook{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// planWriteRefs walks every array reference in document order and queues
// its payload with the block manager for a fresh, fully serial write,
// rewriting each ref's Encoding/Source/ExternalURI to match.
func (a *AsdfFile) planWriteRefs() error {
	for _, ref := range collectArrayRefs(a.tr) {
		if ref.Storage == format.StorageInline {
			ref.Encoding = tree.RefEncodingInline
			continue
		}

		data, err := a.refData(ref)
		if err != nil {
			return err
		}

		if ref.Storage == format.StorageStreamed {
			if err := a.mgr.SetOptions(ref, blockmgr.BlockOptions{Storage: ref.Storage}); err != nil {
				return err
			}
			if err := a.mgr.SetStreamedBlock(ref, data); err != nil {
				return err
			}
			ref.Source = nil
			continue
		}

		opts := blockmgr.BlockOptions{Storage: ref.Storage, Compression: ref.Compression}
		if err := a.mgr.SetOptions(ref, opts); err != nil {
			return err
		}
		result, err := a.mgr.MakeWriteBlock(ref, opts, data)
		if err != nil {
			return err
		}
		switch result.Storage {
		case format.StorageExternal:
			ref.Encoding = tree.RefEncodingExternal
			ref.ExternalURI = result.URI
		default:
			ref.Encoding = tree.RefEncodingSource
			ref.Source = result.Index
		}
	}
	return nil
}

// planUpdateRefs builds the update.Item list Update hands to update.Engine,
// in the same document order the refs appear in the tree: per the engine's
// contract, an item's position in that list is also the block index a
// `source:` field must reference, so each ref's Source/Encoding is
// finalized here before the header is rendered.
func (a *AsdfFile) planUpdateRefs() ([]update.Item, *update.Item, error) {
	a.mgr.ClearWrite()

	var items []update.Item
	var streamedItem *update.Item

	for _, ref := range collectArrayRefs(a.tr) {
		if ref.Storage == format.StorageInline {
			ref.Encoding = tree.RefEncodingInline
			continue
		}
		if ref.Storage == format.StorageExternal {
			data, err := a.refData(ref)
			if err != nil {
				return nil, nil, err
			}
			opts := blockmgr.BlockOptions{Storage: ref.Storage, Compression: ref.Compression}
			if err := a.mgr.SetOptions(ref, opts); err != nil {
				return nil, nil, err
			}
			result, err := a.mgr.MakeWriteBlock(ref, opts, data)
			if err != nil {
				return nil, nil, err
			}
			ref.Encoding = tree.RefEncodingExternal
			ref.ExternalURI = result.URI
			continue
		}

		unchanged := a.refUnchanged(ref)

		data, err := a.refData(ref)
		if err != nil {
			return nil, nil, err
		}

		if ref.Storage == format.StorageStreamed {
			if err := a.mgr.SetOptions(ref, blockmgr.BlockOptions{Storage: ref.Storage}); err != nil {
				return nil, nil, err
			}
			streamedItem = &update.Item{Key: ref, Data: data}
			ref.Source = nil
			continue
		}

		if err := a.mgr.SetOptions(ref, blockmgr.BlockOptions{Storage: ref.Storage, Compression: ref.Compression}); err != nil {
			return nil, nil, err
		}
		ref.Encoding = tree.RefEncodingSource
		ref.Source = len(items)
		items = append(items, update.Item{
			Key:  ref,
			Data: data,
			Options: blockio.WriteOptions{
				Compression: ref.Compression,
			},
			Fixed:         unchanged,
			CurrentOffset: a.refCurrentOffset(ref),
			CurrentSize:   a.refCurrentSize(ref),
		})
	}

	return items, streamedItem, nil
}

// refUnchanged reports whether ref's payload, storage, and compression all
// still match the read block it was originally bound to: its Source has
// not been replaced with a caller-supplied data callback, its Storage is
// still internal, and its Compression matches that block's header. Must
// be called before refData/MakeWriteBlock mutate ref.Source.
func (a *AsdfFile) refUnchanged(ref *tree.ArrayRef) bool {
	if _, freshData := ref.Source.(blockmgr.DataFunc); freshData {
		return false
	}
	idx, ok := a.mgr.BoundReadIndex(ref)
	if !ok {
		return false
	}
	blk, err := a.mgr.ReadBlockAt(idx)
	if err != nil || blk == nil {
		return false
	}
	return ref.Storage == format.StorageInternal && ref.Compression == blk.Header.Compression
}

func (a *AsdfFile) refCurrentOffset(ref *tree.ArrayRef) int64 {
	idx, ok := a.mgr.BoundReadIndex(ref)
	if !ok {
		return 0
	}
	blk, err := a.mgr.ReadBlockAt(idx)
	if err != nil {
		return 0
	}
	return blk.Offset
}

func (a *AsdfFile) refCurrentSize(ref *tree.ArrayRef) int64 {
	idx, ok := a.mgr.BoundReadIndex(ref)
	if !ok {
		return 0
	}
	blk, err := a.mgr.ReadBlockAt(idx)
	if err != nil {
		return 0
	}
	return blockio.FrameSize(blk.Header)
}

// refData resolves ref's payload source to a blockmgr.DataFunc: either the
// callback a caller installed directly (by setting Source to one when
// building a new array reference) or a lazy re-read of the existing block
// it was bound to.
func (a *AsdfFile) refData(ref *tree.ArrayRef) (blockmgr.DataFunc, error) {
	switch src := ref.Source.(type) {
	case blockmgr.DataFunc:
		return src, nil
	case int:
		return a.mgr.DataCallback(src)
	default:
		if idx, ok := a.mgr.BoundReadIndex(ref); ok {
			return a.mgr.DataCallback(idx)
		}
		return nil, fmt.Errorf("asdf: array reference has no data source")
	}
}

// ReadArray returns ref's uncompressed payload, loading it from its bound
// block (or calling its installed data callback) as needed. This is the
// complement to NewArray: one builds an array reference, the other reads
// one back, whether ref came from Tree() after Open or was just attached
// to the tree by the caller before the first Write.
func (a *AsdfFile) ReadArray(ref *tree.ArrayRef) ([]byte, error) {
	data, err := a.refData(ref)
	if err != nil {
		return nil, err
	}
	return data()
}

// NewArray builds a KindArrayRef node around a fresh payload callback, for
// a caller assembling a tree from scratch or adding an array to one that
// was read. storage selects how Write/Update will store it; compression
// is ignored for StorageInline and StorageStreamed is always
// uncompressed.
func NewArray(data func() ([]byte, error), storage format.StorageClass, compression format.CompressionLabel, shape []int, datatype string) tree.Node {
	return tree.Node{
		Kind: tree.KindArrayRef,
		Ref: &tree.ArrayRef{
			Source:      blockmgr.DataFunc(data),
			Shape:       shape,
			Datatype:    datatype,
			Storage:     storage,
			Compression: compression,
		},
	}
}
