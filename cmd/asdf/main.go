// Command asdf is a small CLI over the asdf package: edit a file's tree
// in $EDITOR, list the tags a build's converter.Registry recognizes, or
// print a per-block summary of a file.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/asdf-format/asdf-sub001"
	"github.com/asdf-format/asdf-sub001/converter"
	"github.com/asdf-format/asdf-sub001/genericio"
	"github.com/asdf-format/asdf-sub001/schema"
	"github.com/asdf-format/asdf-sub001/tree"
)

const usage = `asdf - ASDF file tool

Usage:
  asdf edit <path>         Edit a file's tree in $EDITOR and update it in place
  asdf extensions          List the converter tags this build recognizes
  asdf info <path>         Print a per-block summary of a file

Examples:
  asdf edit dataset.asdf
  asdf info dataset.asdf
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "edit":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: missing path")
			os.Exit(1)
		}
		err = runEdit(os.Args[2])
	case "extensions":
		runExtensions()
	case "info":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: missing path")
			os.Exit(1)
		}
		err = runInfo(os.Args[2])
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// runEdit opens path, dumps its tree to a temp file, spawns $EDITOR on it,
// re-parses and validates the result, and updates the file in place. Any
// failure along the way leaves the original file untouched.
func runEdit(path string) error {
	a, err := asdf.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()

	tmp, err := os.CreateTemp("", "asdf-edit-*.yaml")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tree.DumpTree(a.Tree(), tmp, tree.DefaultHook{}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	cmd := exec.Command(editor, tmpPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("asdf: editor exited with an error: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	edited, err := tree.LoadTree(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("asdf: edited tree failed to parse: %w", err)
	}

	violations, err := (schema.NoopValidator{}).Validate(edited, a.Info().StandardVersion)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("asdf: edited tree failed validation: %s: %s", violations[0].Path, violations[0].Message)
	}

	a.SetTree(edited)
	return a.Update()
}

// runExtensions lists the tags a fixed, empty-by-default converter.Registry
// recognizes, demonstrating the contract a caller-supplied registry would
// answer the same way.
func runExtensions() {
	reg := converter.NewRegistry()
	tags := reg.Tags()
	if len(tags) == 0 {
		fmt.Println("(no converters registered)")
		return
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
}

// runInfo opens path read-only and prints one line per block.
func runInfo(path string) error {
	f, err := genericio.OpenRealFile(path)
	if err != nil {
		return err
	}
	a, err := asdf.OpenFile(f, asdf.WithBlockIndexLookup(true))
	if err != nil {
		f.Close()
		return err
	}
	defer a.Close()

	info := a.Info()
	fmt.Printf("%s: format %s", info.URI, info.Version)
	if info.StandardVersion != "" {
		fmt.Printf(", standard %s", info.StandardVersion)
	}
	fmt.Printf(", %d block(s)\n", len(info.Blocks))

	for _, b := range info.Blocks {
		loaded := "not loaded"
		if b.Loaded() {
			loaded = "loaded"
		}
		fmt.Printf("  [%d] offset=%d data_offset=%d compression=%s used_size=%d allocated_size=%d (%s)\n",
			b.Index, b.Offset, b.DataOffset, b.Header.Compression, b.Header.UsedSize, b.Header.AllocatedSize, loaded)
	}
	return nil
}
