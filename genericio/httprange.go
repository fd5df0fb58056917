package genericio

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
)

// httpClient is shared across HTTPRange instances; MaxIdleConnsPerHost is
// raised well past the default of 2 since a single open file can issue
// many concurrent-looking sequential range requests.
var httpClient = &http.Client{Transport: &http.Transport{
	MaxIdleConnsPerHost: 64,
}}

// blockBitset tracks, one bit per block index, which blocks of an
// HTTPRange's backing resource have already been fetched into the local
// cache file.
type blockBitset struct {
	words []uint64
}

func (b *blockBitset) set(i int64) {
	word := int(i / 64)
	for word >= len(b.words) {
		b.words = append(b.words, 0)
	}
	b.words[word] |= 1 << uint(i%64)
}

func (b *blockBitset) has(i int64) bool {
	word := int(i / 64)
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&(1<<uint(i%64)) != 0
}

// HTTPRange is a File backed by HTTP byte-range GETs, cached into a local
// temporary file as blocks are touched: seekable, not memmap-capable,
// length known once the server confirms range support.
//
// If the server does not answer the opening probe with 206 Partial
// Content, Accept-Ranges: bytes, and a known Content-Length, the
// connection degrades to a plain forward InputStream over the response
// body that the probe already opened.
type HTTPRange struct {
	uri    string
	length int64
	pos    int64

	rangeCapable bool
	blockSize    int
	cached       blockBitset
	cacheFile    *os.File

	fallback *InputStream
}

var _ File = (*HTTPRange)(nil)

// OpenHTTPRange issues the opening probe request and returns a File backed
// by the result, either range-capable or degraded to a plain stream.
func OpenHTTPRange(uri string) (*HTTPRange, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	h := &HTTPRange{uri: uri, blockSize: DefaultBlockSize}

	if resp.StatusCode == http.StatusPartialContent &&
		resp.Header.Get("Accept-Ranges") == "bytes" &&
		resp.ContentLength > 0 {

		resp.Body.Close()
		h.rangeCapable = true
		h.length = resp.ContentLength

		cache, err := os.CreateTemp("", "asdf-httprange-*")
		if err != nil {
			return nil, err
		}
		h.cacheFile = cache

		return h, nil
	}

	h.fallback = NewInputStream(resp.Body, uri)
	return h, nil
}

func (h *HTTPRange) fetchBlock(blockIdx int64) error {
	if h.cached.has(blockIdx) {
		return nil
	}

	start := blockIdx * int64(h.blockSize)
	end := start + int64(h.blockSize) - 1
	if end > h.length-1 {
		end = h.length - 1
	}

	req, err := http.NewRequest(http.MethodGet, h.uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("genericio: HTTP range request returned status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if _, err := h.cacheFile.WriteAt(data, start); err != nil {
		return err
	}

	h.cached.set(blockIdx)
	return nil
}

func (h *HTTPRange) Read(n int) ([]byte, error) {
	if !h.rangeCapable {
		return h.fallback.Read(n)
	}

	end := h.pos + int64(n)
	if end > h.length {
		end = h.length
	}
	if end <= h.pos {
		return []byte{}, nil
	}

	firstBlock := h.pos / int64(h.blockSize)
	lastBlock := (end - 1) / int64(h.blockSize)
	for b := firstBlock; b <= lastBlock; b++ {
		if err := h.fetchBlock(b); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, end-h.pos)
	if _, err := h.cacheFile.ReadAt(buf, h.pos); err != nil {
		return nil, err
	}
	h.pos = end
	return buf, nil
}

func (h *HTTPRange) ReadInto(buf []byte) (int, error) {
	chunk, err := h.Read(len(buf))
	return copy(buf, chunk), err
}

func (h *HTTPRange) ReadUntil(delim *regexp.Regexp, readahead int, includeDelim bool, initContent []byte, raiseOnMissing bool) ([]byte, error) {
	if !h.rangeCapable {
		return h.fallback.ReadUntil(delim, readahead, includeDelim, initContent, raiseOnMissing)
	}
	return readUntil(h, delim, readahead, includeDelim, initContent, raiseOnMissing)
}

func (h *HTTPRange) rewind(extra []byte) error {
	if !h.rangeCapable {
		return h.fallback.rewind(extra)
	}
	h.pos -= int64(len(extra))
	return nil
}

func (h *HTTPRange) Write(p []byte) (int, error) {
	return 0, errors.New("genericio: HTTPRange is read-only")
}

func (h *HTTPRange) WriteArray(p []byte) (int, error) {
	return h.Write(p)
}

func (h *HTTPRange) Seek(offset int64, whence int) (int64, error) {
	if !h.rangeCapable {
		return 0, errNotSeekable
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = h.pos
	case io.SeekEnd:
		base = h.length
	default:
		return 0, errors.New("genericio: invalid whence")
	}

	pos := base + offset
	if pos < 0 {
		return 0, errors.New("genericio: negative seek position")
	}
	h.pos = pos
	return pos, nil
}

func (h *HTTPRange) Tell() (int64, error) {
	if !h.rangeCapable {
		return h.fallback.Tell()
	}
	return h.pos, nil
}

func (h *HTTPRange) FastForward(n int64) error {
	if !h.rangeCapable {
		return h.fallback.FastForward(n)
	}
	_, err := h.Seek(n, io.SeekCurrent)
	return err
}

func (h *HTTPRange) Truncate(n int64) error {
	return errors.New("genericio: HTTPRange is read-only")
}

func (h *HTTPRange) Memmap(offset int64, length int) (MemView, error) {
	return nil, errors.New("genericio: HTTPRange is not memmap-capable")
}

func (h *HTTPRange) ReadBlocks(size int64, fn func(chunk []byte) error) error {
	return readBlocks(h, size, fn)
}

func (h *HTTPRange) BlockSize() int { return h.blockSize }
func (h *HTTPRange) URI() string    { return h.uri }
func (h *HTTPRange) Seekable() bool { return h.rangeCapable }

func (h *HTTPRange) MemmapCapable() bool { return false }

func (h *HTTPRange) Close() error {
	if !h.rangeCapable {
		return h.fallback.Close()
	}

	name := h.cacheFile.Name()
	err := h.cacheFile.Close()
	os.Remove(name)
	return err
}
