// Command zpak packs a directory tree into a single compressed archive and
// restores one bit-faithfully.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goopsie/zpak/pkg/codec"
	"github.com/goopsie/zpak/pkg/zpak"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  zpak encode <input-dir> <output-file> [--algo lz4|zstd|lzma|brotli] [--level low|medium|high] [-v]\n")
	fmt.Fprintf(os.Stderr, "  zpak decode <input-file> <output-dir> [-v]\n")
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
		return fmt.Errorf("missing command")
	}

	rest := args[1:]
	// The two paths may come before the flags, as the usage line shows; flag
	// parsing stops at the first non-flag argument, so move them last.
	if len(rest) >= 2 && !strings.HasPrefix(rest[0], "-") && !strings.HasPrefix(rest[1], "-") {
		rest = append(append([]string{}, rest[2:]...), rest[0], rest[1])
	}

	switch args[0] {
	case "encode":
		return runEncode(rest)
	case "decode":
		return runDecode(rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	algo := fs.String("algo", "lz4", "compression algorithm: lz4, zstd, lzma, brotli")
	levelName := fs.String("level", "medium", "compression level: low, medium, high")
	verbose := fs.Bool("v", false, "print each file as it is packed")
	fs.BoolVar(verbose, "verbose", false, "print each file as it is packed")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		usage()
		return fmt.Errorf("encode requires exactly two positional arguments: <input-dir> <output-file>")
	}

	level, err := codec.ParseLevel(*levelName)
	if err != nil {
		usage()
		return err
	}
	if _, err := codec.NewRegistry().ByName(*algo); err != nil {
		usage()
		return err
	}

	opts := []zpak.EncodeOption{zpak.WithAlgorithm(*algo), zpak.WithLevel(level)}
	if *verbose {
		opts = append(opts, zpak.WithProgress(func(relPath string) {
			fmt.Printf("packed %s\n", relPath)
		}))
	}

	inputDir, outputFile := fs.Arg(0), fs.Arg(1)
	result, err := zpak.Encode(inputDir, outputFile, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Build complete. %d files packed, %d bytes written to %s\n",
		result.EntryCount, result.CompressedSize, outputFile)
	return nil
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "print each file as it is extracted")
	fs.BoolVar(verbose, "verbose", false, "print each file as it is extracted")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		usage()
		return fmt.Errorf("decode requires exactly two positional arguments: <input-file> <output-dir>")
	}

	var opts []zpak.DecodeOption
	if *verbose {
		opts = append(opts, zpak.WithExtractProgress(func(relPath string) {
			fmt.Printf("extracting %s\n", relPath)
		}))
	}

	inputFile, outputDir := fs.Arg(0), fs.Arg(1)
	result, err := zpak.Decode(inputFile, outputDir, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Extraction complete. %d files written to %s\n", result.EntryCount, outputDir)
	return nil
}
