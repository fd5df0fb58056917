package blockmgr

import (
	"github.com/asdf-format/asdf-sub001/format"
	"github.com/asdf-format/asdf-sub001/internal/options"
)

// Option configures a BlockOptions via NewOptions, mirroring the
// functional-option pattern used for every other constructor in this
// module.
type Option = options.Option[*BlockOptions]

// NewOptions builds a BlockOptions defaulting to StorageInternal with no
// compression, then applies opts in order.
func NewOptions(opts ...Option) (*BlockOptions, error) {
	o := &BlockOptions{Storage: format.StorageInternal}
	if err := options.Apply(o, opts...); err != nil {
		return nil, err
	}
	return o, nil
}

// WithStorage sets the storage class.
func WithStorage(s format.StorageClass) Option {
	return options.NoError(func(o *BlockOptions) { o.Storage = s })
}

// WithCompression sets the compression label.
func WithCompression(c format.CompressionLabel) Option {
	return options.NoError(func(o *BlockOptions) { o.Compression = c })
}
