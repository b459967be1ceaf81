package asmmatch

import "loov.dev/asmdiff/internal/asminst"

// RecordKind identifies the variant a Record holds.
type RecordKind uint8

const (
	RecordLabelPair RecordKind = iota
	RecordInstructionPair
)

// Record is a single aligned position: either a pair of labels (either
// side possibly nil) or a pair of instructions with the mismatch info
// that classified them (exactly one side may be nil, signaling
// ReasonMissing).
//
// The instruction pointers borrow directly into the streams passed to
// Align; a Result must not outlive them.
type Record struct {
	Kind RecordKind

	LabelA *asminst.Label
	LabelB *asminst.Label

	InstrA *asminst.Instruction
	InstrB *asminst.Instruction
	Mismatch MismatchInfo
}

func labelRecord(a, b *asminst.Label) Record {
	return Record{Kind: RecordLabelPair, LabelA: a, LabelB: b}
}

func instructionRecord(a, b *asminst.Instruction, info MismatchInfo) Record {
	return Record{Kind: RecordInstructionPair, InstrA: a, InstrB: b, Mismatch: info}
}

// Result is the outcome of aligning two instruction streams: the
// ordered records plus the totals used for the rollups below.
type Result struct {
	Records []Record

	LabelCount      uint32
	MatchCount      uint32
	MaybeMatchCount uint32
	MismatchCount   uint32
}

// InstructionCount is the total number of instruction positions
// (match + maybe-match + mismatch).
func (r Result) InstructionCount() uint32 {
	return r.MatchCount + r.MaybeMatchCount + r.MismatchCount
}

// MatchCountAt returns the match count under strictness s.
func (r Result) MatchCountAt(s Strictness) uint32 {
	if s == Lenient {
		return r.MatchCount + r.MaybeMatchCount
	}
	return r.MatchCount
}

// MaxMatchCountAt returns the best-case match count under strictness s,
// i.e. treating every maybe-match as a match unless s is Strict.
func (r Result) MaxMatchCountAt(s Strictness) uint32 {
	if s == Strict {
		return r.MatchCount
	}
	return r.MatchCount + r.MaybeMatchCount
}

// MismatchCountAt returns the mismatch count under strictness s.
func (r Result) MismatchCountAt(s Strictness) uint32 {
	if s == Strict {
		return r.MismatchCount + r.MaybeMatchCount
	}
	return r.MismatchCount
}

// MaxMismatchCountAt returns the worst-case mismatch count under
// strictness s.
func (r Result) MaxMismatchCountAt(s Strictness) uint32 {
	if s == Lenient {
		return r.MismatchCount
	}
	return r.MismatchCount + r.MaybeMatchCount
}

// Similarity returns match_count(s)/instruction_count, defined as 1.0
// when there are no instruction positions at all (two empty functions
// match).
func (r Result) Similarity(s Strictness) float64 {
	n := r.InstructionCount()
	if n == 0 {
		return 1.0
	}
	return float64(r.MatchCountAt(s)) / float64(n)
}

// MaxSimilarity returns max_match_count(s)/instruction_count, with the
// same empty-stream convention as Similarity.
func (r Result) MaxSimilarity(s Strictness) float64 {
	n := r.InstructionCount()
	if n == 0 {
		return 1.0
	}
	return float64(r.MaxMatchCountAt(s)) / float64(n)
}
