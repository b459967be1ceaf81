// Package bundle groups matched and unmatched functions by compiland,
// source file, or none, and tracks each group's progress through the
// disassembly/linking/loading/comparison pipeline.
package bundle

import (
	"strings"

	"loov.dev/asmdiff/internal/asmmatch"
	"loov.dev/asmdiff/internal/asminst"
	"loov.dev/asmdiff/internal/srcline"
)

// Unmatched is the sentinel NamedFunction.MatchedIndex value meaning the
// function has no counterpart on the other side.
const Unmatched = -1

// Function is one side's view of a single function body: its
// instruction stream plus source-file linkage state.
type Function struct {
	Instructions        asminst.Stream
	SourceFileName      string
	SourceLineNumber    uint32
	LineRanges          []srcline.Range // the lines the debug database attributes to this function
	CanLinkToSourceFile bool
	HasLoadedSourceFile bool
}

// IsDisassembled reports whether the instruction stream has been
// populated.
func (f Function) IsDisassembled() bool {
	return len(f.Instructions) != 0
}

// IsLinkedToSourceFile reports whether a source file has been
// associated with this function.
func (f Function) IsLinkedToSourceFile() bool {
	return f.SourceFileName != ""
}

// NamedFunction is a single function in one executable, named by its
// symbol, paired with its matched counterpart if one exists.
type NamedFunction struct {
	SymbolName   string
	Function     Function
	MatchedIndex int // Unmatched, or an index into a MatchedFunctions slice
}

// IsMatched reports whether this function has a counterpart on the
// other side.
func (n NamedFunction) IsMatched() bool {
	return n.MatchedIndex != Unmatched
}

// MatchedFunction pairs a function from each executable that was
// successfully matched by symbol name, plus the alignment outcome.
type MatchedFunction struct {
	Name         string
	FunctionPair [2]Function
	Comparison   asmmatch.Result
}

// IsCompared reports whether the alignment engine has produced records
// for this pair.
func (m MatchedFunction) IsCompared() bool {
	return len(m.Comparison.Records) != 0
}

func (m MatchedFunction) isDisassembled() bool {
	return m.FunctionPair[0].IsDisassembled() && m.FunctionPair[1].IsDisassembled()
}

func (m MatchedFunction) linkState() (linked, missing bool) {
	for _, f := range m.FunctionPair {
		if f.IsLinkedToSourceFile() {
			linked = true
		} else if !f.CanLinkToSourceFile {
			missing = true
		}
	}
	return linked, missing
}

func (m MatchedFunction) isLoaded() bool {
	return m.FunctionPair[0].HasLoadedSourceFile && m.FunctionPair[1].HasLoadedSourceFile
}

// Policy selects how functions are grouped into bundles.
type Policy uint8

const (
	Compiland Policy = iota
	SourceFile
	None
	policyCount // sentinel: count of named policies, not a usable value
)

func (p Policy) String() string {
	switch p {
	case Compiland:
		return "Compiland"
	case SourceFile:
		return "SourceFile"
	case None:
		return "None"
	default:
		return "Unknown"
	}
}

func init() {
	if policyCount != 3 {
		panic("bundle: Policy enum changed without updating ParsePolicy/policyCount")
	}
}

// ParsePolicy parses s case-insensitively, warning and defaulting to
// None on an unrecognized value.
func ParsePolicy(s string, warn func(format string, args ...any)) Policy {
	switch strings.ToLower(s) {
	case "compiland":
		return Compiland
	case "sourcefile":
		return SourceFile
	case "none":
		return None
	default:
		if warn != nil {
			warn("unrecognized match bundle type %q, defaulting to none", s)
		}
		return None
	}
}

// Group names one unit of source-of-grouping data (a compiland or a
// source file) and the symbol names that belong to it.
type Group struct {
	Name    string
	Members []string
}

// Progress tracks a bundle's members' advancement through the pipeline.
type Progress struct {
	Disassembled  int
	LinkedSource  int
	MissingSource int
	LoadedSource  int
	Compared      int
	Total         int
}

// Bundle groups function indices that share a compiland, source file,
// or (for the None policy) nothing at all.
type Bundle struct {
	Name             string
	MatchedIndices   []int
	UnmatchedIndices [2][]int
	Progress         Progress
}

// HasCompletedDisassembling reports whether every member's instruction
// stream has been populated.
func (b *Bundle) HasCompletedDisassembling() bool {
	return b.Progress.Disassembled == b.Progress.Total
}

// HasCompletedSourceFileLinking reports whether every member is either
// linked to a source file or known not to be linkable.
func (b *Bundle) HasCompletedSourceFileLinking() bool {
	return b.Progress.LinkedSource+b.Progress.MissingSource == b.Progress.Total
}

// HasCompletedSourceFileLoading reports whether linking is complete and
// every linked source file has been loaded.
func (b *Bundle) HasCompletedSourceFileLoading() bool {
	return b.HasCompletedSourceFileLinking() && b.Progress.LoadedSource == b.Progress.LinkedSource
}

// HasCompletedComparison reports whether every matched member has been
// compared. Unmatched members have no counterpart to compare against
// and never contribute to Compared, so this checks against
// MatchedIndices rather than Total.
func (b *Bundle) HasCompletedComparison() bool {
	return b.Progress.Compared == len(b.MatchedIndices)
}

// Refresh recomputes the bundle's progress counters from scratch by
// rescanning its members. Called by the Coordinator on the owning
// thread after a phase completes; never called concurrently with a
// phase in flight.
func (b *Bundle) Refresh(namedA, namedB []NamedFunction, matched []MatchedFunction) {
	p := Progress{Total: len(b.MatchedIndices) + len(b.UnmatchedIndices[0]) + len(b.UnmatchedIndices[1])}

	for _, idx := range b.MatchedIndices {
		m := matched[idx]
		if m.isDisassembled() {
			p.Disassembled++
		}
		linked, missing := m.linkState()
		if linked {
			p.LinkedSource++
		} else if missing {
			p.MissingSource++
		}
		if m.isLoaded() {
			p.LoadedSource++
		}
		if m.IsCompared() {
			p.Compared++
		}
	}

	named := [2][]NamedFunction{namedA, namedB}
	for side, indices := range b.UnmatchedIndices {
		for _, idx := range indices {
			n := named[side][idx]
			if n.Function.IsDisassembled() {
				p.Disassembled++
			}
			if n.Function.IsLinkedToSourceFile() {
				p.LinkedSource++
			} else if !n.Function.CanLinkToSourceFile {
				p.MissingSource++
			}
			if n.Function.HasLoadedSourceFile {
				p.LoadedSource++
			}
		}
	}

	b.Progress = p
}

// Family is every Bundle produced under one Policy, together with the
// grand totals across all of them.
type Family struct {
	Policy  Policy
	Bundles []*Bundle
}

// Refresh recomputes progress counters for every bundle in the family.
func (f *Family) Refresh(namedA, namedB []NamedFunction, matched []MatchedFunction) {
	for _, b := range f.Bundles {
		b.Refresh(namedA, namedB, matched)
	}
}

// Totals sums progress across every bundle in the family.
func (f *Family) Totals() Progress {
	var t Progress
	for _, b := range f.Bundles {
		t.Disassembled += b.Progress.Disassembled
		t.LinkedSource += b.Progress.LinkedSource
		t.MissingSource += b.Progress.MissingSource
		t.LoadedSource += b.Progress.LoadedSource
		t.Compared += b.Progress.Compared
		t.Total += b.Progress.Total
	}
	return t
}
