// Package asdferr defines the sentinel error values surfaced by the block
// layer and file-layout engine, and the OffsetError wrapper that attaches
// a byte offset to them.
//
// Callers should use errors.Is against the sentinels below; the wrapper
// exists only to make diagnostics readable, never to change identity.
package asdferr

import (
	"errors"
	"strconv"
)

// Sentinel errors, one per error kind named in the format specification.
var (
	ErrBadMagic                = errors.New("asdf: expected block magic not found")
	ErrHeaderTooSmall          = errors.New("asdf: header_size below the packed header size")
	ErrInvariantViolation      = errors.New("asdf: block header violates a size invariant")
	ErrChecksumMismatch        = errors.New("asdf: block payload checksum does not match header")
	ErrUnknownCompression      = errors.New("asdf: unrecognized compression label")
	ErrDelimiterNotFound       = errors.New("asdf: delimiter not found before end of stream")
	ErrFileClosed              = errors.New("asdf: access to payload after file was closed")
	ErrReadOnly                = errors.New("asdf: update() called on a read-only file")
	ErrNoAssociatedFile        = errors.New("asdf: update() called on a file with no path")
	ErrInvalidBlockIndex       = errors.New("asdf: block index is malformed, falling back to serial scan")
	ErrTrailingGarbage         = errors.New("asdf: non-zero bytes between a block and the next magic")
	ErrExternalWriteWithoutURI = errors.New("asdf: external storage requested but file has no URI")
	ErrDuplicateStream         = errors.New("asdf: a streamed block is already installed")
	ErrUnsupportedStorage      = errors.New("asdf: storage class is not valid in this context")
)

// OffsetError wraps a sentinel with the byte offset at which it occurred.
type OffsetError struct {
	Offset int64
	Err    error
}

func (e *OffsetError) Error() string {
	return errAt(e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// AtOffset wraps err with the byte offset it was discovered at. It is a
// no-op if err is nil.
func AtOffset(offset int64, err error) error {
	if err == nil {
		return nil
	}

	return &OffsetError{Offset: offset, Err: err}
}

func errAt(offset int64, err error) string {
	if err == nil {
		return ""
	}

	return err.Error() + ": at offset " + strconv.FormatInt(offset, 10)
}
