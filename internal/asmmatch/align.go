package asmmatch

import (
	"loov.dev/asmdiff/internal/asminst"
)

// Config parameterizes the alignment engine.
type Config struct {
	// LookaheadLimit bounds how far either cursor may be shifted while
	// resynchronizing after a mismatch. 0 disables resync entirely:
	// every non-matching pair becomes a mismatch record.
	LookaheadLimit uint32
}

// shift is a candidate (dA, dB) resynchronization offset.
type shift struct{ dA, dB int }

// candidateShifts returns every pure single-side shift (0, n) or (n, 0)
// with 1 <= n <= limit, ordered by increasing n, (0, n) before (n, 0)
// at each n. A shift with both dA > 0 and dB > 0 would resync by
// skipping an instruction on each side at once, which is just a
// disguised way of dropping the mismatching pair in front of us rather
// than recognizing it as an insertion or deletion; those candidates are
// excluded so a genuine one-for-one mismatch always falls through to
// the direct-mismatch branch in Align instead of resyncing past it.
func candidateShifts(limit int) []shift {
	var all []shift
	for n := 1; n <= limit; n++ {
		all = append(all, shift{dA: 0, dB: n}, shift{dA: n, dB: 0})
	}
	return all
}

// instrOffset returns the stream index of the shift-th instruction at
// or after from (from itself counts as shift 0), skipping over any
// labels in between without consuming the lookahead budget. from must
// itself index an instruction, or be len(s) when shift can only be 0
// and the result is never used (callers only invoke this once they
// know there's an instruction to start from).
func instrOffset(s asminst.Stream, from, shift int) (int, bool) {
	count := 0
	for idx := from; idx < len(s); idx++ {
		if s[idx].IsInstruction() {
			if count == shift {
				return idx, true
			}
			count++
		}
	}
	return 0, false
}

// findResync searches the lookahead window for the first (by the tie
// break in candidateShifts) pair of positions that classifies as an
// exact match. Labels inside the window are skipped and do not count
// against the limit.
func findResync(a, b asminst.Stream, i, j int, shifts []shift) (dA, dB int, found bool) {
	for _, s := range shifts {
		idxA, ok := instrOffset(a, i, s.dA)
		if !ok {
			continue
		}
		idxB, ok := instrOffset(b, j, s.dB)
		if !ok {
			continue
		}
		if Classify(&a[idxA].Instruction, &b[idxB].Instruction).IsMatch() {
			return s.dA, s.dB, true
		}
	}
	return 0, 0, false
}

// Align performs the bounded-lookahead greedy alignment of two
// instruction streams, producing the full comparison result.
func Align(a, b asminst.Stream, cfg Config) Result {
	var res Result
	shifts := candidateShifts(int(cfg.LookaheadLimit))

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		aIsLabel := i < len(a) && a[i].IsLabel()
		bIsLabel := j < len(b) && b[j].IsLabel()

		switch {
		case aIsLabel && bIsLabel:
			res.Records = append(res.Records, labelRecord(&a[i].Label, &b[j].Label))
			res.LabelCount++
			i++
			j++
			continue
		case aIsLabel:
			res.Records = append(res.Records, labelRecord(&a[i].Label, nil))
			res.LabelCount++
			i++
			continue
		case bIsLabel:
			res.Records = append(res.Records, labelRecord(nil, &b[j].Label))
			res.LabelCount++
			j++
			continue
		}

		aDone := i >= len(a)
		bDone := j >= len(b)
		switch {
		case aDone && bDone:
			// nothing left on either side
		case aDone:
			res.Records = append(res.Records, instructionRecord(nil, &b[j].Instruction, MismatchInfo{Reasons: ReasonMissing}))
			res.MismatchCount++
			j++
			continue
		case bDone:
			res.Records = append(res.Records, instructionRecord(&a[i].Instruction, nil, MismatchInfo{Reasons: ReasonMissing}))
			res.MismatchCount++
			i++
			continue
		}
		if aDone && bDone {
			break
		}

		info := Classify(&a[i].Instruction, &b[j].Instruction)
		switch {
		case info.IsMatch():
			res.Records = append(res.Records, instructionRecord(&a[i].Instruction, &b[j].Instruction, info))
			res.MatchCount++
			i++
			j++
		case info.IsMaybeMatch():
			res.Records = append(res.Records, instructionRecord(&a[i].Instruction, &b[j].Instruction, info))
			res.MaybeMatchCount++
			i++
			j++
		default:
			dA, dB, found := findResync(a, b, i, j, shifts)
			if !found {
				res.Records = append(res.Records, instructionRecord(&a[i].Instruction, &b[j].Instruction, info))
				res.MismatchCount++
				i++
				j++
				continue
			}
			for k := 0; k < dA; k++ {
				idx, _ := instrOffset(a, i, k)
				res.Records = append(res.Records, instructionRecord(&a[idx].Instruction, nil, MismatchInfo{Reasons: ReasonMissing}))
				res.MismatchCount++
			}
			for k := 0; k < dB; k++ {
				idx, _ := instrOffset(b, j, k)
				res.Records = append(res.Records, instructionRecord(nil, &b[idx].Instruction, MismatchInfo{Reasons: ReasonMissing}))
				res.MismatchCount++
			}
			newI, _ := instrOffset(a, i, dA)
			newJ, _ := instrOffset(b, j, dB)
			i, j = newI, newJ
			// The matched pair itself is handled on the next iteration.
		}
	}

	return res
}
