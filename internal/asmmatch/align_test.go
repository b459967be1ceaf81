package asmmatch

import (
	"testing"

	"loov.dev/asmdiff/internal/asminst"
)

func inst(text string) asminst.StreamElem {
	return asminst.NewInstruction(asminst.Instruction{Text: text})
}

func jumpInst(text string, length int16) asminst.StreamElem {
	e := asminst.NewInstruction(asminst.Instruction{Text: text, IsJump: true, JumpLen: length})
	return e
}

func invalidInst(text string) asminst.StreamElem {
	return asminst.NewInstruction(asminst.Instruction{Text: text, IsInvalid: true})
}

func label(name string) asminst.StreamElem {
	return asminst.NewLabel(asminst.Label(name))
}

func countRecords(res Result) (labelPairs, instrPairs int) {
	for _, r := range res.Records {
		if r.Kind == RecordLabelPair {
			labelPairs++
		} else {
			instrPairs++
		}
	}
	return
}

// S1
func TestAlign_S1_Identical(t *testing.T) {
	a := asminst.Stream{inst("mov eax,1"), inst("ret")}
	b := asminst.Stream{inst("mov eax,1"), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})

	if res.MatchCount != 2 || res.MaybeMatchCount != 0 || res.MismatchCount != 0 {
		t.Fatalf("got match=%d maybe=%d mismatch=%d", res.MatchCount, res.MaybeMatchCount, res.MismatchCount)
	}
	if got := res.Similarity(Undecided); got != 1.0 {
		t.Fatalf("similarity = %v, want 1.0", got)
	}
}

// S2
func TestAlign_S2_SingleOperandMismatch(t *testing.T) {
	a := asminst.Stream{inst("mov eax,1"), inst("ret")}
	b := asminst.Stream{inst("mov eax,2"), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})

	if res.MatchCount != 1 || res.MismatchCount != 1 || res.MaybeMatchCount != 0 {
		t.Fatalf("got match=%d maybe=%d mismatch=%d", res.MatchCount, res.MaybeMatchCount, res.MismatchCount)
	}
	if got := res.Similarity(Undecided); got != 0.5 {
		t.Fatalf("similarity = %v, want 0.5", got)
	}
}

// S3
func TestAlign_S3_UnknownSymbolIsMaybeMatch(t *testing.T) {
	a := asminst.Stream{inst("mov eax,unk_400"), inst("ret")}
	b := asminst.Stream{inst("mov eax,SymbolX"), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})

	if res.MatchCount != 1 || res.MaybeMatchCount != 1 || res.MismatchCount != 0 {
		t.Fatalf("got match=%d maybe=%d mismatch=%d", res.MatchCount, res.MaybeMatchCount, res.MismatchCount)
	}
	if got := res.Similarity(Lenient); got != 1.0 {
		t.Fatalf("lenient similarity = %v, want 1.0", got)
	}
	if got := res.Similarity(Strict); got != 0.5 {
		t.Fatalf("strict similarity = %v, want 0.5", got)
	}
}

// S4
func TestAlign_S4_ExtraPrologueInstruction(t *testing.T) {
	a := asminst.Stream{inst("push ebp"), inst("mov ebp,esp"), inst("ret")}
	b := asminst.Stream{inst("mov ebp,esp"), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})

	if res.MismatchCount != 1 || res.MatchCount != 2 {
		t.Fatalf("got match=%d mismatch=%d, want match=2 mismatch=1", res.MatchCount, res.MismatchCount)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	r0 := res.Records[0]
	if r0.InstrA == nil || r0.InstrA.Text != "push ebp" || r0.InstrB != nil {
		t.Fatalf("record 0 = %+v, want (push ebp, null, Missing)", r0)
	}
	if r0.Mismatch.Reasons != ReasonMissing {
		t.Fatalf("record 0 reasons = %v, want Missing", r0.Mismatch.Reasons)
	}
	for _, idx := range []int{1, 2} {
		r := res.Records[idx]
		if r.InstrA == nil || r.InstrB == nil || !r.Mismatch.IsMatch() {
			t.Fatalf("record %d = %+v, want a matching pair", idx, r)
		}
	}
}

// S5
func TestAlign_S5_JumpLenMismatch(t *testing.T) {
	a := asminst.Stream{jumpInst("jmp", 8), inst("ret")}
	b := asminst.Stream{jumpInst("jmp", 16), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})

	if res.MatchCount != 1 || res.MismatchCount != 1 {
		t.Fatalf("got match=%d mismatch=%d, want match=1 mismatch=1", res.MatchCount, res.MismatchCount)
	}
	found := false
	for _, r := range res.Records {
		if r.Kind == RecordInstructionPair && r.Mismatch.Reasons&ReasonJumpLen != 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a record with ReasonJumpLen")
	}
}

// S6
func TestAlign_S6_InvalidInstruction(t *testing.T) {
	a := asminst.Stream{inst("mov eax,1"), invalidInst("<bad>"), inst("ret")}
	b := asminst.Stream{inst("mov eax,1"), inst("nop"), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})

	if res.MatchCount != 2 || res.MismatchCount != 1 {
		t.Fatalf("got match=%d mismatch=%d, want match=2 mismatch=1", res.MatchCount, res.MismatchCount)
	}
	mid := res.Records[1]
	if mid.Mismatch.Reasons != ReasonInvalid {
		t.Fatalf("middle record reasons = %v, want Invalid", mid.Mismatch.Reasons)
	}
}

func TestAlign_LabelHandling(t *testing.T) {
	a := asminst.Stream{label("L1"), inst("ret")}
	b := asminst.Stream{label("L1"), inst("ret")}
	res := Align(a, b, Config{LookaheadLimit: 2})
	if res.LabelCount != 1 {
		t.Fatalf("label count = %d, want 1", res.LabelCount)
	}
	labelPairs, _ := countRecords(res)
	if labelPairs != 1 {
		t.Fatalf("label pair records = %d, want 1", labelPairs)
	}
}

func TestAlign_CountConservation(t *testing.T) {
	a := asminst.Stream{inst("a"), label("L"), inst("b"), inst("c")}
	b := asminst.Stream{inst("x"), inst("b"), inst("c"), inst("d")}
	res := Align(a, b, Config{LookaheadLimit: 3})

	_, instrPairs := countRecords(res)
	if uint32(instrPairs) != res.InstructionCount() {
		t.Fatalf("instruction pair records = %d, instruction count = %d", instrPairs, res.InstructionCount())
	}
	labelPairs, _ := countRecords(res)
	if uint32(labelPairs) != res.LabelCount {
		t.Fatalf("label pair records = %d, label count = %d", labelPairs, res.LabelCount)
	}
}

func TestAlign_Reflexivity(t *testing.T) {
	stream := asminst.Stream{
		label("fn_entry"),
		inst("push ebp"),
		inst("mov ebp,esp"),
		jumpInst("jmp +16", 16),
		inst("nop"),
		inst("pop ebp"),
		inst("ret"),
	}
	res := Align(stream, stream, Config{LookaheadLimit: 2})
	if res.MismatchCount != 0 || res.MaybeMatchCount != 0 {
		t.Fatalf("mismatch=%d maybe=%d, want both 0", res.MismatchCount, res.MaybeMatchCount)
	}
	for _, s := range []Strictness{Lenient, Undecided, Strict} {
		if got := res.Similarity(s); got != 1.0 {
			t.Fatalf("similarity(%v) = %v, want 1.0", s, got)
		}
	}
}

func TestClassify_Symmetry(t *testing.T) {
	a := &asminst.Instruction{Text: "mov eax,unk_400"}
	b := &asminst.Instruction{Text: "mov eax,SymbolX"}

	ab := Classify(a, b)
	ba := Classify(b, a)
	if ab.MismatchBits != ba.MismatchBits || ab.MaybeMismatchBits != ba.MaybeMismatchBits {
		t.Fatalf("classification not symmetric: %+v vs %+v", ab, ba)
	}

	missingAB := Classify(a, nil)
	missingBA := Classify(nil, a)
	if missingAB.Reasons != ReasonMissing || missingBA.Reasons != ReasonMissing {
		t.Fatalf("missing-side classification should keep ReasonMissing regardless of side")
	}
}

func TestResult_StrictnessMonotonicity(t *testing.T) {
	a := asminst.Stream{inst("mov eax,1"), inst("mov eax,unk_1"), inst("mov eax,3")}
	b := asminst.Stream{inst("mov eax,1"), inst("mov eax,SymbolX"), inst("mov eax,4")}
	res := Align(a, b, Config{LookaheadLimit: 0})

	strict := res.MatchCountAt(Strict)
	undecided := res.MatchCountAt(Undecided)
	lenient := res.MatchCountAt(Lenient)
	if !(strict <= undecided && undecided <= lenient) {
		t.Fatalf("match counts not monotonic: strict=%d undecided=%d lenient=%d", strict, undecided, lenient)
	}

	strictMis := res.MismatchCountAt(Strict)
	undecidedMis := res.MismatchCountAt(Undecided)
	lenientMis := res.MismatchCountAt(Lenient)
	if !(strictMis >= undecidedMis && undecidedMis >= lenientMis) {
		t.Fatalf("mismatch counts not reverse-monotonic: strict=%d undecided=%d lenient=%d", strictMis, undecidedMis, lenientMis)
	}
}

func TestAlign_EmptyStreams(t *testing.T) {
	res := Align(nil, nil, Config{LookaheadLimit: 4})
	if res.InstructionCount() != 0 {
		t.Fatalf("instruction count = %d, want 0", res.InstructionCount())
	}
	if len(res.Records) != 0 {
		t.Fatalf("records = %d, want 0", len(res.Records))
	}
	if got := res.Similarity(Undecided); got != 1.0 {
		t.Fatalf("similarity = %v, want 1.0", got)
	}
}

func TestAlign_LookaheadBound(t *testing.T) {
	// A single swapped instruction, resyncable with a (dA=1, dB=0) shift.
	a := asminst.Stream{inst("x"), inst("shared")}
	b := asminst.Stream{inst("shared"), inst("y")}

	withLookahead := Align(a, b, Config{LookaheadLimit: 1})
	if withLookahead.MatchCount != 1 || withLookahead.MismatchCount != 2 {
		t.Fatalf("L=1: got match=%d mismatch=%d, want match=1 mismatch=2", withLookahead.MatchCount, withLookahead.MismatchCount)
	}

	// With L=0, resync can never fire: both positions become genuine
	// two-sided mismatches and the streams never resynchronize onto the
	// shared instruction.
	withoutLookahead := Align(a, b, Config{LookaheadLimit: 0})
	if withoutLookahead.MismatchCount != 2 || withoutLookahead.MatchCount != 0 {
		t.Fatalf("L=0: got match=%d mismatch=%d, want match=0 mismatch=2", withoutLookahead.MatchCount, withoutLookahead.MismatchCount)
	}
	for _, r := range withoutLookahead.Records {
		if r.Kind == RecordInstructionPair && r.Mismatch.Reasons == ReasonMissing {
			t.Fatalf("L=0 must never produce a resync Missing record: %+v", r)
		}
		if r.InstrA == nil || r.InstrB == nil {
			t.Fatalf("L=0 on equal-length streams should never leave a side absent: %+v", r)
		}
	}
}

func TestMismatchInfo_TokenOverflowClamps(t *testing.T) {
	wide := func(n int, val string) string {
		s := ""
		for i := 0; i < n; i++ {
			if i > 0 {
				s += ","
			}
			s += val
		}
		return s
	}
	a := &asminst.Instruction{Text: wide(20, "1")}
	b := &asminst.Instruction{Text: wide(20, "2")}
	info := Classify(a, b)
	if info.MismatchBits&overflowBit == 0 {
		t.Fatalf("expected overflow bit set, got %016b", info.MismatchBits)
	}
}
