package asdf

import "log"

// Logger receives the non-fatal diagnostics the format specification's
// error-handling design calls for (§7): falling back from a malformed
// block index to a serial scan, tolerating trailing garbage between
// blocks. The teacher itself never logs (it's a pure codec library with
// no I/O side effects beyond the buffers it's handed), so this follows
// distr1-distri's use of the stdlib log package throughout its CLI rather
// than adopting a structured logging dependency no pack example wires in
// for a library this shape.
type Logger interface {
	Warnf(format string, args ...any)
}

type stdLogger struct{}

func (stdLogger) Warnf(format string, args ...any) {
	log.Printf("asdf: "+format, args...)
}
