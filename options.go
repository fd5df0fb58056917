package asdf

import (
	"github.com/asdf-format/asdf-sub001/converter"
	"github.com/asdf-format/asdf-sub001/internal/options"
	"github.com/asdf-format/asdf-sub001/schema"
)

// fileOptions collects every tunable exposed across Open/Create/Write/
// Update, matching how the teacher exposes all its tunables as functional
// options rather than a config struct or file (spec.md's domain has no
// daemon/service surface to warrant one).
type fileOptions struct {
	ValidateChecksum bool
	BlockIndexLookup bool
	Memmap           bool
	Padding          float64
	StandardVersion  string
	Validator        schema.Validator
	Converters       *converter.Registry
	Logger           Logger
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		ValidateChecksum: true,
		BlockIndexLookup: true,
		Validator:        schema.NoopValidator{},
		Converters:       converter.NewRegistry(),
		Logger:           stdLogger{},
	}
}

// OpenOption and WriteOption are the same underlying option type: both
// names are aliases for options.Option[*fileOptions] rather than two
// distinct types that would need separate WithXxx families. A knob passed
// where it has no effect is ignored: WithValidateChecksum, WithMemmap,
// WithValidator, WithStandardVersion and WithLogger act when a file is
// opened or created, WithPadding when it is written, and
// WithBlockIndexLookup in both places.
type (
	OpenOption  = options.Option[*fileOptions]
	WriteOption = options.Option[*fileOptions]
)

// WithValidateChecksum toggles verifying each internal block's MD5
// checksum against its header on read. Default true.
func WithValidateChecksum(v bool) OpenOption {
	return options.NoError(func(o *fileOptions) { o.ValidateChecksum = v })
}

// WithBlockIndexLookup toggles attempting the trailing block-index fast
// path before falling back to a serial scan. Default true.
func WithBlockIndexLookup(v bool) OpenOption {
	return options.NoError(func(o *fileOptions) { o.BlockIndexLookup = v })
}

// WithMemmap toggles returning memory-mapped views for uncompressed block
// payloads instead of owned copies, where the underlying File supports it.
func WithMemmap(v bool) OpenOption {
	return options.NoError(func(o *fileOptions) { o.Memmap = v })
}

// WithPadding sets the padding factor (in [0,1]) new or rewritten blocks
// reserve beyond their used size, trading file size for future in-place
// update headroom.
func WithPadding(factor float64) WriteOption {
	return options.NoError(func(o *fileOptions) { o.Padding = factor })
}

// WithStandardVersion sets the `#ASDF_STANDARD` comment line recorded when
// a file is opened or created and written by its later Write/Update calls;
// passed to Write or Update directly, it leaves the header unchanged.
func WithStandardVersion(v string) OpenOption {
	return options.NoError(func(o *fileOptions) { o.StandardVersion = v })
}

// WithValidator installs the schema.Validator run on the tree loaded by
// Open/OpenFile; Write and Update do not run it. Default schema.NoopValidator{}.
func WithValidator(v schema.Validator) OpenOption {
	return options.NoError(func(o *fileOptions) { o.Validator = v })
}

// WithConverters installs a converter.Registry on the file's options. Tree
// loading and dumping do not consult it; the tree package recognizes only
// its one built-in array-reference shape.
func WithConverters(r *converter.Registry) OpenOption {
	return options.NoError(func(o *fileOptions) { o.Converters = r })
}

// WithLogger installs the Logger warnings (block-index fallback,
// trailing-garbage tolerance) are sent to. Default logs via the stdlib
// log package.
func WithLogger(l Logger) OpenOption {
	return options.NoError(func(o *fileOptions) { o.Logger = l })
}
