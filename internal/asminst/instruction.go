// Package asminst holds the value types shared by every stage of the
// comparison engine: a decoded instruction, a label, and the ordered
// stream of the two that a disassembler produces for a function body.
package asminst

import "math"

// Format selects the instruction-text flavor a Disassembler renders.
// The engine never interprets the flavor itself, it just threads it
// through to the disassembler bridge.
type Format uint8

const (
	FormatDefault Format = iota
	FormatIGAS
	FormatAGAS
	FormatMASM
)

func (f Format) String() string {
	switch f {
	case FormatIGAS:
		return "igas"
	case FormatAGAS:
		return "agas"
	case FormatMASM:
		return "masm"
	default:
		return "default"
	}
}

// Instruction is a single decoded machine instruction.
//
// Text carries the mnemonic and operands with address-to-symbol
// substitution already applied; the comparator looks at Text (plus the
// IsInvalid, IsJump and JumpLen fields), never at Bytes, to decide
// whether two instructions match.
type Instruction struct {
	Address   uint64
	Bytes     []byte // raw opcode bytes, len(Bytes) <= MaxBytes
	IsJump    bool
	IsInvalid bool // if set, Text must not be trusted for comparison
	JumpLen   int16
	Line      int // source line number, 0 means none
	Text      string
}

// MaxBytes is the largest raw instruction length the model carries.
const MaxBytes = 15

// LineIndex returns Line-1, or the sentinel ^uint16(0) when Line is 0.
func (in Instruction) LineIndex() uint16 {
	if in.Line == 0 {
		return math.MaxUint16
	}
	return uint16(in.Line - 1)
}

// Label is a named position between instructions in a stream.
type Label string

// Kind identifies what a StreamElem currently holds.
type Kind uint8

const (
	// KindInstruction holds a decoded Instruction.
	KindInstruction Kind = iota
	// KindLabel holds a Label.
	KindLabel
	// KindNull is alignment padding; it never appears in a freshly
	// disassembled stream, only in rendered/padded output.
	KindNull
)

// StreamElem is one position in an instruction stream: a label, an
// instruction, or (only ever produced by alignment padding) null.
type StreamElem struct {
	Kind        Kind
	Label       Label
	Instruction Instruction
}

// NewLabel builds a label element.
func NewLabel(l Label) StreamElem { return StreamElem{Kind: KindLabel, Label: l} }

// NewInstruction builds an instruction element.
func NewInstruction(in Instruction) StreamElem { return StreamElem{Kind: KindInstruction, Instruction: in} }

// Null is the padding element.
func Null() StreamElem { return StreamElem{Kind: KindNull} }

func (e StreamElem) IsLabel() bool       { return e.Kind == KindLabel }
func (e StreamElem) IsInstruction() bool { return e.Kind == KindInstruction }
func (e StreamElem) IsNull() bool        { return e.Kind == KindNull }

// Stream is an ordered sequence of labels and instructions, as produced
// by disassembling a single function body.
type Stream []StreamElem
