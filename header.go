package asdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asdf-format/asdf-sub001/genericio"
)

// FileFormatVersion is the version this module writes on the `#ASDF ` header
// line. It only round-trips whatever version a file being rewritten
// already carries; this is the default for files created from scratch.
const FileFormatVersion = "1.0.0"

const (
	headerLinePrefix  = "#ASDF "
	standardCommentPfx = "#ASDF_STANDARD "
)

var (
	newlineRe = regexp.MustCompile(`\n`)
	treeEndRe = regexp.MustCompile(`\n\.\.\.\r?\n`)
)

// fileHeader is the parsed form of the ASCII header line and its
// recognized comment lines (spec.md §3 item 2, §3.2).
type fileHeader struct {
	Version         string
	StandardVersion string
}

// readPreamble reads f's header line, any `#`-prefixed comment lines, and
// the `%YAML 1.1`/`---`/`...`-framed tree document that follows, leaving
// f's cursor positioned at the first byte after the tree's terminating
// `...` line — exactly where the block section begins. It returns the
// parsed header and the raw tree document bytes, ready for tree.LoadTree.
func readPreamble(f genericio.File) (fileHeader, []byte, error) {
	line, err := f.ReadUntil(newlineRe, 0, true, nil, true)
	if err != nil {
		return fileHeader{}, nil, err
	}
	if !strings.HasPrefix(string(line), headerLinePrefix) {
		return fileHeader{}, nil, fmt.Errorf("asdf: file does not start with %q", strings.TrimSpace(headerLinePrefix))
	}
	header := fileHeader{Version: strings.TrimSpace(strings.TrimPrefix(string(line), headerLinePrefix))}

	rest, err := f.ReadUntil(treeEndRe, 0, true, nil, true)
	if err != nil {
		return fileHeader{}, nil, err
	}

	lines := strings.Split(string(rest), "\n")
	treeStart := len(lines)
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, standardCommentPfx):
			header.StandardVersion = strings.TrimSpace(strings.TrimPrefix(l, standardCommentPfx))
		case strings.HasPrefix(l, "#"):
			// Other recognized or unrecognized comment lines are skipped.
		default:
			treeStart = i
		}
		if treeStart != len(lines) {
			break
		}
	}

	return header, []byte(strings.Join(lines[treeStart:], "\n")), nil
}

// renderPreamble serializes header and tree as the bytes that precede the
// block section: the `#ASDF ` line, an optional `#ASDF_STANDARD` comment,
// then the framed YAML document tree.DumpTree produces.
func renderPreamble(header fileHeader, treeBytes []byte) []byte {
	var buf []byte
	buf = append(buf, headerLinePrefix...)
	buf = append(buf, header.Version...)
	buf = append(buf, '\n')
	if header.StandardVersion != "" {
		buf = append(buf, standardCommentPfx...)
		buf = append(buf, header.StandardVersion...)
		buf = append(buf, '\n')
	}
	return append(buf, treeBytes...)
}
