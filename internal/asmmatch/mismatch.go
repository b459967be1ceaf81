// Package asmmatch implements the per-position mismatch classifier, the
// bounded-lookahead alignment engine, and the aggregated comparison
// result with its strictness-parameterized rollups.
package asmmatch

import (
	"strings"

	"loov.dev/asmdiff/internal/asminst"
)

// Strictness maps a maybe-match classification onto match or mismatch
// for the purpose of counts and similarity.
type Strictness uint8

const (
	Lenient Strictness = iota
	Undecided
	Strict
)

// ParseStrictness parses s case-insensitively. An unrecognized value is
// reported through warn (if non-nil) and defaults to Undecided.
func ParseStrictness(s string, warn func(format string, args ...any)) Strictness {
	switch strings.ToLower(s) {
	case "lenient":
		return Lenient
	case "undecided":
		return Undecided
	case "strict":
		return Strict
	default:
		if warn != nil {
			warn("unrecognized asm match strictness %q, defaulting to undecided", s)
		}
		return Undecided
	}
}

// MismatchReason are flags explaining why a position failed to match
// outright, independent of the token-level bitmaps.
type MismatchReason uint16

const (
	ReasonMissing MismatchReason = 1 << iota // instruction absent on one side
	ReasonInvalid                            // instruction un-disassembled on one side
	ReasonJumpLen                            // jump displacement magnitude differs
)

// overflowBit is set in MismatchBits when tokens differ at position
// maxTrackedTokens or beyond; nothing past that position is recorded.
const overflowBit = uint16(1) << 15

// maxTrackedTokens is the number of token positions individually
// tracked before the classifier folds any remaining differences into
// the overflow bit.
const maxTrackedTokens = 15

// MismatchInfo is the outcome of comparing a single pair of positions.
// It is deliberately packed into three uint16s so it stays cheap to
// carry around per-record.
type MismatchInfo struct {
	MismatchBits      uint16 // bitmap of operand/byte positions that definitely differ
	MaybeMismatchBits uint16 // bitmap of positions differing only via an unknown symbol
	Reasons           MismatchReason
}

// IsMatch reports whether the position is an unconditional match.
func (m MismatchInfo) IsMatch() bool {
	return m.MismatchBits == 0 && m.MaybeMismatchBits == 0 && m.Reasons == 0
}

// IsMaybeMatch reports whether the position matches modulo an unknown
// symbol reference.
func (m MismatchInfo) IsMaybeMatch() bool {
	return m.MismatchBits == 0 && m.MaybeMismatchBits != 0 && m.Reasons == 0
}

// IsMismatch reports whether the position is a definite mismatch.
func (m MismatchInfo) IsMismatch() bool {
	return m.MismatchBits != 0 || m.Reasons != 0
}

// MatchValue is the three-way classification of a position, as seen
// through a particular strictness.
type MatchValue uint8

const (
	ValueMatch MatchValue = iota
	ValueMaybeMatch
	ValueMismatch
)

// MatchValue classifies the position under strictness s. Lenient folds
// maybe-matches into matches; Strict folds them into mismatches;
// Undecided keeps the three-way distinction.
func (m MismatchInfo) MatchValue(s Strictness) MatchValue {
	switch s {
	case Lenient:
		if m.MismatchBits == 0 && m.Reasons == 0 {
			return ValueMatch
		}
		return ValueMismatch
	case Strict:
		if m.IsMatch() {
			return ValueMatch
		}
		return ValueMismatch
	default: // Undecided
		if m.IsMatch() {
			return ValueMatch
		}
		if m.MaybeMismatchBits != 0 {
			return ValueMaybeMatch
		}
		return ValueMismatch
	}
}

// unknownSymbolPrefixes mark an operand token as referring to an
// address that couldn't be resolved to a known symbol; the renderer
// substitutes known symbols directly, so anything still carrying one
// of these prefixes is, by construction, unresolved.
var unknownSymbolPrefixes = [...]string{"sub_", "off_", "unk_", "loc_"}

func isUnknownSymbolToken(tok string) bool {
	tok = strings.Trim(tok, "()[]{}+-*,")
	for _, prefix := range unknownSymbolPrefixes {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

// Classify compares a and b, either of which may be nil to mean
// "absent on this side". It must never be called with both nil.
func Classify(a, b *asminst.Instruction) MismatchInfo {
	switch {
	case a == nil && b == nil:
		panic("asmmatch: Classify called with both sides absent")
	case a == nil || b == nil:
		return MismatchInfo{Reasons: ReasonMissing}
	case a.IsInvalid || b.IsInvalid:
		return MismatchInfo{Reasons: ReasonInvalid}
	}

	var info MismatchInfo
	tokensA := tokenize(a.Text)
	tokensB := tokenize(b.Text)

	n := len(tokensA)
	if len(tokensB) > n {
		n = len(tokensB)
	}

	for i := 0; i < n; i++ {
		var tokA, tokB string
		if i < len(tokensA) {
			tokA = tokensA[i]
		}
		if i < len(tokensB) {
			tokB = tokensB[i]
		}
		if tokA == tokB {
			continue
		}
		if i >= maxTrackedTokens {
			info.MismatchBits |= overflowBit
			break
		}
		bit := uint16(1) << uint(i)
		if isUnknownSymbolToken(tokA) || isUnknownSymbolToken(tokB) {
			info.MaybeMismatchBits |= bit
		} else {
			info.MismatchBits |= bit
		}
	}

	if a.IsJump && b.IsJump {
		lenA, lenB := a.JumpLen, b.JumpLen
		if lenA < 0 {
			lenA = -lenA
		}
		if lenB < 0 {
			lenB = -lenB
		}
		if lenA != lenB {
			info.Reasons |= ReasonJumpLen
		}
	}

	return info
}
