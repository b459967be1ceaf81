// Command asmdiff compares two compiled executables at the
// machine-instruction level and writes one diff report per bundle. It
// wires the engine's interfaces to their concrete adapters and carries
// no comparison logic of its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"loov.dev/asmdiff/internal/asminst"
	"loov.dev/asmdiff/internal/asmmatch"
	"loov.dev/asmdiff/internal/bundle"
	"loov.dev/asmdiff/internal/disasmx86"
	"loov.dev/asmdiff/internal/execfmt"
	"loov.dev/asmdiff/internal/pipeline"
	"loov.dev/asmdiff/internal/report"
	"loov.dev/asmdiff/internal/symdb"
)

func main() {
	lookahead := flag.Uint("lookahead", 32, "maximum instruction lookahead for resync")
	strictnessFlag := flag.String("strictness", "lenient", "match strictness: lenient, undecided, strict")
	bundleFlag := flag.String("bundle", "none", "bundle grouping: compiland, sourcefile, none")
	formatFlag := flag.String("format", "default", "instruction syntax: default, igas, agas, masm")
	mode := flag.Int("mode", 64, "processor mode in bits: 64 or 32")
	output := flag.String("o", "asmdiff.txt", "output file; one file is written per bundle")
	workers := flag.Int("workers", 4, "worker pool size for disassembling and comparing")

	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "asmdiff [flags] <exeA> <exeB> [debugDatabase]")
		flag.Usage()
		os.Exit(1)
	}
	pathA, pathB := flag.Arg(0), flag.Arg(1)

	warn := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "asmdiff: "+format+"\n", args...)
	}

	readerA, err := execfmt.Open(pathA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asmdiff: opening %s: %v\n", pathA, err)
		os.Exit(1)
	}
	readerB, err := execfmt.Open(pathB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asmdiff: opening %s: %v\n", pathB, err)
		os.Exit(1)
	}

	var database symdb.Database
	if flag.NArg() >= 3 {
		db, err := symdb.OpenDWARF(flag.Arg(2))
		if err != nil {
			warn("loading debug database %s: %v; continuing without source linking", flag.Arg(2), err)
		} else {
			database = db
		}
	}

	disasm := disasmAdapter{}

	coord := pipeline.NewCoordinator(readerA, readerB, disasm)
	coord.Database = database
	coord.Mode = *mode
	coord.Format = parseFormat(*formatFlag, warn)
	coord.Strictness = asmmatch.ParseStrictness(*strictnessFlag, warn)
	coord.Align = asmmatch.Config{LookaheadLimit: uint32(*lookahead)}
	coord.Warn = warn

	ctx := context.Background()

	if err := coord.BuildMatchedFunctions(); err != nil {
		fmt.Fprintf(os.Stderr, "asmdiff: %v\n", err)
		os.Exit(1)
	}
	if err := coord.Disassemble(ctx, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "asmdiff: disassembling: %v\n", err)
		os.Exit(1)
	}
	coord.LinkSourceFiles()
	if err := coord.LoadSourceFiles(); err != nil {
		warn("loading source files: %v", err)
	}

	policy := bundle.ParsePolicy(*bundleFlag, warn)
	family := coord.BuildBundles(policy, nil)

	matched := coord.MatchedFunctions()
	allIndices := make([]int, len(matched))
	for i := range matched {
		allIndices[i] = i
	}
	if err := coord.Compare(ctx, *workers, allIndices); err != nil {
		fmt.Fprintf(os.Stderr, "asmdiff: comparing: %v\n", err)
		os.Exit(1)
	}
	coord.Refresh()

	formatter := report.Formatter{Widths: report.DefaultWidths}
	for i, b := range family.Bundles {
		if err := writeBundle(formatter, coord, b, i, pathA, pathB, *output); err != nil {
			fmt.Fprintf(os.Stderr, "asmdiff: writing bundle %s: %v\n", b.Name, err)
			os.Exit(1)
		}
	}
}

func writeBundle(f report.Formatter, coord *pipeline.Coordinator, b *bundle.Bundle, i int, pathA, pathB, output string) error {
	outPath := report.OutputPath(output, i, b.Name)
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	matched := coord.MatchedFunctions()
	for _, idx := range b.MatchedIndices {
		m := matched[idx]
		var src *report.Source
		if fa := coord.SourceFileContent(m.FunctionPair[0].SourceFileName); fa != nil {
			src = &report.Source{
				FileA:   fa,
				FileB:   coord.SourceFileContent(m.FunctionPair[1].SourceFileName),
				RangesA: m.FunctionPair[0].LineRanges,
				RangesB: m.FunctionPair[1].LineRanges,
			}
		}
		displayName := coord.ReaderA.DisplayName(m.Name)
		if err := f.WriteBundle(out, displayName, pathA, pathB, m.Comparison, src, coord.Strictness); err != nil {
			return err
		}
	}
	return nil
}

// disasmAdapter bridges pipeline.Disassembler (which knows nothing of
// the concrete disasmx86 package) to disasmx86.Disassembler.
type disasmAdapter struct{}

func (disasmAdapter) Disassemble(setup pipeline.DisassembleSetup, code []byte, base, start, end uint64) asminst.Stream {
	var d disasmx86.Disassembler
	return d.Disassemble(disasmx86.Setup{
		Mode:     setup.Mode,
		Format:   setup.Format,
		SymbolAt: setup.SymbolAt,
	}, code, base, start, end)
}

func parseFormat(s string, warn func(format string, args ...any)) asminst.Format {
	switch s {
	case "igas":
		return asminst.FormatIGAS
	case "agas":
		return asminst.FormatAGAS
	case "masm":
		return asminst.FormatMASM
	case "default", "":
		return asminst.FormatDefault
	default:
		warn("unrecognized asm format %q, defaulting to default", s)
		return asminst.FormatDefault
	}
}
