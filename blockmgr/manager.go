// Package blockmgr tracks the read-side block list and the write-side
// bookkeeping (pending internal blocks, external sibling files, at most one
// streamed block) that sit between the block layer (package blockio) and
// the tree layer: per-array storage options, data callbacks for lazy
// materialization, and the aggregate set of compressions a write will use.
package blockmgr

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/asdf-format/asdf-sub001/asdferr"
	"github.com/asdf-format/asdf-sub001/blockfmt"
	"github.com/asdf-format/asdf-sub001/blockio"
	"github.com/asdf-format/asdf-sub001/format"
)

// BufferKey identifies an array's underlying buffer by identity rather than
// by value — callers pass the same key (typically a pointer into the
// tree's array representation) for every lookup concerning one buffer.
type BufferKey any

// BlockOptions records how one array's payload will be stored on write.
type BlockOptions struct {
	Storage     format.StorageClass
	Compression format.CompressionLabel
}

// DataFunc produces an array's uncompressed payload on demand, either by
// re-reading it from an already-loaded buffer or by forcing a lazy read
// block to load.
type DataFunc func() ([]byte, error)

// ReadBlock is one entry of the manager's read-side list: its header (for
// synthesizing default options) and a callback that returns its payload,
// loading it from disk on first use if it was opened lazily.
type ReadBlock struct {
	Header blockfmt.Header
	data   DataFunc
	block  *blockio.Block
}

type writeEntry struct {
	key  BufferKey
	data DataFunc
	opts BlockOptions
}

type externalEntry struct {
	key  BufferKey
	uri  string
	data DataFunc
	opts BlockOptions
}

// Manager is the block-layer/tree-layer boundary for one AsdfFile: it owns
// the read block list, per-buffer storage options, and the pending write
// lists that a write pass will hand to blockio.Writer.
type Manager struct {
	mu sync.Mutex

	uri string

	readBlocks []*ReadBlock
	readIndex  map[BufferKey]int // buffer -> read block it was materialized from, once known

	options         map[BufferKey]*BlockOptions
	explicitOptions map[BufferKey]bool

	writeBlocks   []*writeEntry
	writeIndex    map[BufferKey]int
	externalBlock []*externalEntry
	externalIndex map[BufferKey]int

	streamed    *writeEntry
	streamedKey BufferKey
}

// New creates an empty Manager. uri is the associated file's own location,
// used to resolve external block sibling paths; it may be empty for
// in-memory files, in which case external storage requests fail.
func New(uri string) *Manager {
	return &Manager{
		uri:             uri,
		readIndex:       make(map[BufferKey]int),
		options:         make(map[BufferKey]*BlockOptions),
		explicitOptions: make(map[BufferKey]bool),
		writeIndex:      make(map[BufferKey]int),
		externalIndex:   make(map[BufferKey]int),
	}
}

// BoundReadIndex returns the read block index key was materialized from, if
// BindReadBlock has recorded one.
func (m *Manager) BoundReadIndex(key BufferKey) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.readIndex[key]
	return idx, ok
}

// HasExplicitOptions reports whether SetOptions has been called for key,
// distinguishing a caller's deliberate storage/compression choice from
// GetOptions' synthesized-from-read-header default.
func (m *Manager) HasExplicitOptions(key BufferKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.explicitOptions[key]
}

// LoadReadBlocks replaces the manager's read block list, deriving a lazy
// DataFunc from each blockio.Block.
func (m *Manager) LoadReadBlocks(blocks []*blockio.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readBlocks = make([]*ReadBlock, len(blocks))
	for i, b := range blocks {
		blk := b
		m.readBlocks[i] = &ReadBlock{Header: blk.Header, data: blk.Data, block: blk}
	}
}

// ReadBlockAt returns the blockio.Block backing read-side index, for a
// caller (the façade's FileInfo/BlockView) that needs its Loaded/Load
// semantics directly rather than just its header and data callback.
func (m *Manager) ReadBlockAt(index int) (*blockio.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.readBlocks) {
		return nil, fmt.Errorf("asdf: read block index %d out of range", index)
	}
	return m.readBlocks[index].block, nil
}

// ReadBlockCount reports how many read blocks are loaded.
func (m *Manager) ReadBlockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readBlocks)
}

// DataCallback returns the DataFunc for the read block at index, forcing a
// lazy load the first time it's invoked. It is the hook the tree layer
// calls to re-materialize an array it never fully loaded.
func (m *Manager) DataCallback(index int) (DataFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.readBlocks) {
		return nil, fmt.Errorf("asdf: read block index %d out of range", index)
	}
	return m.readBlocks[index].data, nil
}

// BindReadBlock records that key's buffer was materialized from read block
// index, so a later GetOptions call can synthesize defaults from that
// block's header instead of from the all-zero BlockOptions.
func (m *Manager) BindReadBlock(key BufferKey, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readIndex[key] = index
}

// GetOptions returns key's current BlockOptions, synthesizing one from a
// bound read block's header (storage=streamed if FlagStreamed is set, else
// internal; compression from the header) if none has been set explicitly,
// or a zero-value BlockOptions (storage=internal, no compression)
// otherwise. The returned pointer is live: SetOptions mutates the same
// record in place for repeated lookups of the same key.
func (m *Manager) GetOptions(key BufferKey) *BlockOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOptionsLocked(key)
}

func (m *Manager) getOptionsLocked(key BufferKey) *BlockOptions {
	if opts, ok := m.options[key]; ok {
		return opts
	}

	opts := &BlockOptions{Storage: format.StorageInternal}
	if idx, ok := m.readIndex[key]; ok {
		h := m.readBlocks[idx].Header
		if h.Streamed() {
			opts.Storage = format.StorageStreamed
		}
		opts.Compression = h.Compression
	}
	m.options[key] = opts
	return opts
}

// SetOptions installs opts for key, replacing any existing record. It
// rejects installing a second StorageStreamed record for a different key:
// at most one array may be the terminal streamed block at a time.
func (m *Manager) SetOptions(key BufferKey, opts BlockOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.Storage == format.StorageStreamed {
		for k, existing := range m.options {
			if k != key && existing.Storage == format.StorageStreamed {
				return asdferr.ErrDuplicateStream
			}
		}
	}

	stored := opts
	m.options[key] = &stored
	m.explicitOptions[key] = true
	return nil
}

// WriteResult is what MakeWriteBlock returns: exactly one of Index (for
// StorageInternal) or URI (for StorageExternal) is
// meaningful, selected by Storage.
type WriteResult struct {
	Storage format.StorageClass
	Index   int
	URI     string
}

// MakeWriteBlock queues data for writing under the given options, reusing
// an existing pending entry if key was already queued. For StorageInline
// it returns a result the tree layer must interpret as "serialize the
// array literally"; this package makes no further use of that case.
func (m *Manager) MakeWriteBlock(key BufferKey, opts BlockOptions, data DataFunc) (WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch opts.Storage {
	case format.StorageExternal:
		if idx, ok := m.externalIndex[key]; ok {
			return WriteResult{Storage: format.StorageExternal, URI: m.externalBlock[idx].uri}, nil
		}
		base := m.uri
		if base == "" {
			return WriteResult{}, asdferr.ErrExternalWriteWithoutURI
		}
		index := len(m.externalBlock)
		uri := ExternalURI(base, index)
		m.externalIndex[key] = index
		m.externalBlock = append(m.externalBlock, &externalEntry{key: key, uri: uri, data: data, opts: opts})
		return WriteResult{Storage: format.StorageExternal, URI: uri}, nil

	case format.StorageInline:
		return WriteResult{Storage: format.StorageInline}, nil

	case format.StorageStreamed:
		return WriteResult{}, fmt.Errorf("%w: use SetStreamedBlock for streamed storage", asdferr.ErrUnsupportedStorage)

	default:
		if idx, ok := m.writeIndex[key]; ok {
			return WriteResult{Storage: format.StorageInternal, Index: idx}, nil
		}
		index := len(m.writeBlocks)
		m.writeIndex[key] = index
		m.writeBlocks = append(m.writeBlocks, &writeEntry{key: key, data: data, opts: opts})
		return WriteResult{Storage: format.StorageInternal, Index: index}, nil
	}
}

// SetStreamedBlock installs data as the terminal streamed block, keyed by
// key. A second call with a different key fails with ErrDuplicateStream;
// a second call with the same key replaces the payload producer.
func (m *Manager) SetStreamedBlock(key BufferKey, data DataFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamed != nil && m.streamedKey != key {
		return asdferr.ErrDuplicateStream
	}
	m.streamed = &writeEntry{key: key, data: data, opts: BlockOptions{Storage: format.StorageStreamed}}
	m.streamedKey = key
	return nil
}

// ClearWrite discards all pending write-side state (internal, external,
// and streamed blocks) while leaving the read block list untouched. An
// AsdfFile calls this before planning a fresh write.
func (m *Manager) ClearWrite() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeBlocks = nil
	m.writeIndex = make(map[BufferKey]int)
	m.externalBlock = nil
	m.externalIndex = make(map[BufferKey]int)
	m.streamed = nil
	m.streamedKey = nil
}

// WriteItems returns the pending internal write blocks as blockio.WriteItem
// values, in queued order, ready to hand to a blockio.Writer.
func (m *Manager) WriteItems() []blockio.WriteItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]blockio.WriteItem, len(m.writeBlocks))
	for i, w := range m.writeBlocks {
		items[i] = blockio.WriteItem{
			Data: w.data,
			WriteOptions: blockio.WriteOptions{
				Compression: w.opts.Compression,
			},
		}
	}
	return items
}

// StreamedItem returns the pending streamed block, or nil if none was set.
func (m *Manager) StreamedItem() *blockio.WriteItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamed == nil {
		return nil
	}
	return &blockio.WriteItem{Data: m.streamed.data}
}

// ExternalWriteBlocks returns the pending external blocks for a caller
// (the file writer) to serialize as sibling files.
func (m *Manager) ExternalWriteBlocks() []ExternalBlock {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ExternalBlock, len(m.externalBlock))
	for i, e := range m.externalBlock {
		out[i] = ExternalBlock{URI: e.uri, Data: e.data, Compression: e.opts.Compression}
	}
	return out
}

// ExternalBlock is one sibling-file block queued for a separate write.
type ExternalBlock struct {
	URI         string
	Data        DataFunc
	Compression format.CompressionLabel
}

// GetOutputCompressions returns the set of codec labels that will appear
// in the file a write pass produces: every write block's and external
// block's explicit compression, plus, for read blocks that were never
// touched (no explicit options set), the compression their stored header
// already carries — since an untouched block is rewritten as-is.
func (m *Manager) GetOutputCompressions() map[format.CompressionLabel]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[format.CompressionLabel]struct{})
	for _, w := range m.writeBlocks {
		if !w.opts.Compression.IsNone() {
			out[w.opts.Compression] = struct{}{}
		}
	}
	for _, e := range m.externalBlock {
		if !e.opts.Compression.IsNone() {
			out[e.opts.Compression] = struct{}{}
		}
	}
	for key, blockIdx := range m.readIndex {
		if m.explicitOptions[key] {
			continue
		}
		h := m.readBlocks[blockIdx].Header
		if !h.Compression.IsNone() {
			out[h.Compression] = struct{}{}
		}
	}
	return out
}

// ExternalURI synthesizes the relative sibling-file name for the index-th
// external block of a file whose own location is base: the base's stem
// with a zero-padded 4-digit index appended, plus the ".asdf" extension.
func ExternalURI(base string, index int) string {
	_, file := path.Split(base)
	stem := strings.TrimSuffix(file, path.Ext(file))
	return fmt.Sprintf("%s%04d.asdf", stem, index)
}

// ResolveExternalURI resolves a relative external block URI against the
// directory of the main file's own URI.
func ResolveExternalURI(base, relative string) string {
	dir, _ := path.Split(base)
	return path.Join(dir, relative)
}
