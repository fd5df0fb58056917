package compress

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// Bzip2Codec implements the "bzp2" compression label. The standard
// library's compress/bzip2 only decodes; github.com/dsnet/compress/bzip2
// provides the matching encoder.
type Bzip2Codec struct{}

var _ Codec = (*Bzip2Codec)(nil)

// NewBzip2Codec creates a new bzip2 codec.
func NewBzip2Codec() Bzip2Codec {
	return Bzip2Codec{}
}

// Compress writes data through a bzip2.Writer at the library's default
// configuration.
func (c Bzip2Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress reads data through a bzip2.Reader to completion.
func (c Bzip2Codec) Decompress(data []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
