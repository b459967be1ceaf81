// Package disasmx86 is the concrete Disassembler bridge: it decodes a
// byte range of amd64 or 386 code into the asminst.Stream the
// comparison engine consumes, using golang.org/x/arch/x86/x86asm.
package disasmx86

import (
	"golang.org/x/arch/x86/x86asm"

	"loov.dev/asmdiff/internal/asminst"
)

// Setup carries the per-call configuration for Disassemble.
type Setup struct {
	// Mode is the processor mode in bits: 64 for amd64, 32 for 386.
	Mode int
	// Format selects the rendered mnemonic/operand syntax.
	Format asminst.Format
	// SymbolAt resolves an address to a symbol name, or "" if the
	// address isn't a known symbol. An unresolved address that is a
	// branch target inside the decoded range is rendered as a
	// "loc_<hex>" label name, a prefix the mismatch classifier treats as
	// "unknown"; any other unresolved address is rendered as a number.
	SymbolAt func(addr uint64) string
}

// Disassembler decodes raw instruction bytes using Setup's mode and
// format, substituting known symbol names into operand text.
type Disassembler struct{}

// Disassemble decodes code[start-base:end-base], where code is the
// full code section's bytes and base its load address, into an
// ordered stream of labels and instructions. Undecodable bytes produce
// an Instruction with IsInvalid set rather than aborting the whole
// range, so one bad function never blocks the rest of the batch.
func (Disassembler) Disassemble(setup Setup, code []byte, base, start, end uint64) asminst.Stream {
	if start < base || end > base+uint64(len(code)) || start >= end {
		return nil
	}
	body := code[start-base : end-base]

	type decoded struct {
		addr uint64
		inst x86asm.Inst
		raw  []byte
		ok   bool
	}
	var decodedInsts []decoded
	targets := map[uint64]bool{}

	for off := 0; off < len(body); {
		addr := start + uint64(off)
		inst, err := x86asm.Decode(body[off:], setup.Mode)
		// x86asm reports a dangling or truncated byte as a one-byte Inst
		// with no opcode (Op == 0) and a nil error.
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			decodedInsts = append(decodedInsts, decoded{addr: addr, ok: false})
			off++
			continue
		}
		decodedInsts = append(decodedInsts, decoded{addr: addr, inst: inst, raw: body[off : off+inst.Len], ok: true})
		if target, _, isBranch := branchTarget(inst, addr); isBranch && target >= start && target < end {
			targets[target] = true
		}
		off += inst.Len
	}

	symName := func(addr uint64) (string, uint64) {
		if setup.SymbolAt != nil {
			if name := setup.SymbolAt(addr); name != "" {
				return name, 0
			}
		}
		if targets[addr] {
			return labelName(addr), 0
		}
		return "", 0
	}

	var stream asminst.Stream
	for _, d := range decodedInsts {
		if targets[d.addr] {
			stream = append(stream, asminst.NewLabel(asminst.Label(labelName(d.addr))))
		}
		if !d.ok {
			stream = append(stream, asminst.NewInstruction(asminst.Instruction{
				Address:   d.addr,
				IsInvalid: true,
			}))
			continue
		}

		text := render(setup.Format, d.inst, d.addr, symName)
		in := asminst.Instruction{
			Address: d.addr,
			Bytes:   append([]byte(nil), d.raw...),
			Text:    text,
		}
		if _, rel, isBranch := branchTarget(d.inst, d.addr); isBranch {
			in.IsJump = true
			in.JumpLen = int16(rel)
		}
		stream = append(stream, asminst.NewInstruction(in))
	}
	return stream
}

func labelName(addr uint64) string {
	return "loc_" + hex(addr)
}

func render(format asminst.Format, inst x86asm.Inst, pc uint64, symName x86asm.SymLookup) string {
	switch format {
	case asminst.FormatAGAS:
		return x86asm.GNUSyntax(inst, pc, symName)
	case asminst.FormatIGAS, asminst.FormatMASM:
		return x86asm.IntelSyntax(inst, pc, symName)
	default:
		return x86asm.GNUSyntax(inst, pc, symName)
	}
}

// branchTarget returns the absolute target address of a direct
// jump/call instruction, the signed displacement that got it there, and
// whether inst is a jump/call at all. rel is the encoded byte
// displacement itself, not x86asm.Inst.PCRel (which is only the
// operand's encoding width in bytes, 1/2/4, and so can't distinguish a
// rel8 +8 from a rel8 +16).
func branchTarget(inst x86asm.Inst, addr uint64) (target uint64, rel int64, isBranch bool) {
	if !isBranchOp(inst.Op) {
		return 0, 0, false
	}
	if r, ok := inst.Args[0].(x86asm.Rel); ok {
		rel = int64(r)
		return uint64(int64(addr) + int64(inst.Len) + rel), rel, true
	}
	return 0, 0, true
}

func isBranchOp(op x86asm.Op) bool {
	switch op {
	case x86asm.JMP, x86asm.CALL,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ,
		x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	default:
		return false
	}
}

const hexDigits = "0123456789abcdef"

func hex(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}
