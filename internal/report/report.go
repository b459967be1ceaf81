// Package report renders a bundle's ComparisonResults to human-readable
// text: the minimal Formatter the engine hands its output to.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"loov.dev/asmdiff/internal/asmmatch"
	"loov.dev/asmdiff/internal/asminst"
	"loov.dev/asmdiff/internal/srcline"
)

// Widths configures the fixed-column layout of a rendered line.
type Widths struct {
	Indent     int
	Asm        int
	ByteCount  int
	SourceCols int
}

// DefaultWidths is a reasonable default column layout for a terminal.
var DefaultWidths = Widths{Indent: 2, Asm: 48, ByteCount: 8, SourceCols: 60}

// Source is an optional pair of loaded source files to interleave with
// the asm diff, one per executable side. RangesA/RangesB are the
// function's known line ranges from the debug database; when set, a
// side's source line is only rendered if it falls inside them, so an
// instruction whose Line drifted onto an unrelated function (e.g. an
// inlined call site) doesn't get interleaved with the wrong text.
type Source struct {
	FileA, FileB     *TextFileContent
	RangesA, RangesB []srcline.Range
}

// TextFileContent is the line-indexed content of one loaded source
// file.
type TextFileContent struct {
	Filename string
	Lines    []string
}

func (t *TextFileContent) line(n int) string {
	if t == nil || n < 1 || n > len(t.Lines) {
		return ""
	}
	return t.Lines[n-1]
}

// Formatter renders ComparisonResults to a writer.
type Formatter struct {
	Widths Widths
}

// WriteBundle renders every record of result, labeling each side with
// fileA/fileB (the originating executable paths) and, if src is
// non-nil, interleaving the matching source line for each side.
func (f Formatter) WriteBundle(w io.Writer, bundleName, fileA, fileB string, result asmmatch.Result, src *Source, strictness asmmatch.Strictness) error {
	bw := &bufWriter{w: w}

	fmt.Fprintf(bw, "bundle %s: %s vs %s\n", bundleName, fileA, fileB)
	fmt.Fprintf(bw, "similarity: %.1f%% (%d/%d)\n\n", result.Similarity(strictness)*100, result.MatchCountAt(strictness), result.InstructionCount())

	for _, rec := range result.Records {
		switch rec.Kind {
		case asmmatch.RecordLabelPair:
			f.writeLabelPair(bw, rec)
		case asmmatch.RecordInstructionPair:
			f.writeInstructionPair(bw, rec, src)
		}
	}
	return bw.err
}

func (f Formatter) writeLabelPair(w io.Writer, rec asmmatch.Record) {
	left, right := "", ""
	if rec.LabelA != nil {
		left = string(*rec.LabelA) + ":"
	}
	if rec.LabelB != nil {
		right = string(*rec.LabelB) + ":"
	}
	fmt.Fprintf(w, "%s%-*s | %s\n", strings.Repeat(" ", f.Widths.Indent), f.Widths.Asm, left, right)
}

func (f Formatter) writeInstructionPair(w io.Writer, rec asmmatch.Record, src *Source) {
	marker := matchMarker(rec.Mismatch)
	left := instructionColumn(rec.InstrA, f.Widths.Asm, f.Widths.ByteCount)
	right := instructionColumn(rec.InstrB, f.Widths.Asm, f.Widths.ByteCount)

	fmt.Fprintf(w, "%s%s %s | %s\n", strings.Repeat(" ", f.Widths.Indent), marker, left, right)

	if src == nil {
		return
	}
	lineA, lineB := sourceLineOf(rec.InstrA), sourceLineOf(rec.InstrB)
	if lineA != 0 && len(src.RangesA) > 0 && !srcline.Contain(src.RangesA, lineA, lineA) {
		lineA = 0
	}
	if lineB != 0 && len(src.RangesB) > 0 && !srcline.Contain(src.RangesB, lineB, lineB) {
		lineB = 0
	}
	if lineA == 0 && lineB == 0 {
		return
	}
	fmt.Fprintf(w, "%s  %-*s | %-*s\n", strings.Repeat(" ", f.Widths.Indent),
		f.Widths.SourceCols, truncate(src.FileA.line(lineA), f.Widths.SourceCols),
		f.Widths.SourceCols, truncate(src.FileB.line(lineB), f.Widths.SourceCols))
}

func matchMarker(m asmmatch.MismatchInfo) string {
	switch {
	case m.IsMatch():
		return " "
	case m.IsMaybeMatch():
		return "~"
	default:
		return "!"
	}
}

func instructionColumn(in *asminst.Instruction, asmWidth, byteWidth int) string {
	if in == nil {
		return strings.Repeat(" ", asmWidth)
	}
	bytes := fmt.Sprintf("%-*s", byteWidth, hexBytes(in.Bytes))
	text := in.Text
	if in.IsInvalid {
		text = "(invalid) " + text
	}
	return fmt.Sprintf("%s %-*s", bytes, asmWidth-byteWidth-1, text)
}

func sourceLineOf(in *asminst.Instruction) int {
	if in == nil {
		return 0
	}
	return in.Line
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 16))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// OutputPath derives the per-bundle output file path from outputFile,
// the bundle's index i and name n: <stem>.<basename(n)>.<i><ext>,
// placed in parent(outputFile).
func OutputPath(outputFile string, i int, n string) string {
	dir := filepath.Dir(outputFile)
	base := filepath.Base(outputFile)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%d%s", stem, filepath.Base(n), i, ext))
}

type bufWriter struct {
	w   io.Writer
	err error
}

func (b *bufWriter) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	n, err := b.w.Write(p)
	if err != nil {
		b.err = err
	}
	return n, err
}
