package emu

import (
	"fmt"

	"github.com/cranklab/x86emu/insts"
	"github.com/cranklab/x86emu/loader"
)

// Interpreter owns the register file and runs one architectural
// instruction per Tick against a borrowed MemoryMap. It holds no reference
// to the MemoryMap between ticks: the map is passed in fresh each call.
type Interpreter struct {
	Regs   *Registers
	halted bool
}

// NewInterpreter returns an Interpreter with a zeroed register file.
func NewInterpreter() *Interpreter {
	return &Interpreter{Regs: &Registers{}}
}

// Init sets RIP to the memory map's entry point and RSP to its starting
// stack pointer. Every other register remains zero.
func (in *Interpreter) Init(mm *loader.MemoryMap) {
	in.Regs.RIP = mm.EntryPoint()
	in.Regs.Write(RSP, mm.StartingStack())
}

// Running reports whether the interpreter has not yet hit the sentinel
// halt. Once halted, it never resumes.
func (in *Interpreter) Running() bool {
	return !in.halted
}

// Tick executes exactly one architectural instruction: it consumes legacy
// and REX prefixes in a loop, then decodes and executes the first
// non-prefix opcode byte and returns. It never executes more than one
// primary opcode per call.
func (in *Interpreter) Tick(mm *loader.MemoryMap) {
	var prefixes prefixBits
	var rex insts.RexFlags

	for {
		b := in.fetch8(mm)

		switch {
		case b == insts.PrefixRep:
			prefixes |= prefixRep
			continue
		case b == insts.PrefixOpsize:
			prefixes |= prefixOpsize
			continue
		case insts.IsRexPrefix(b):
			rex = insts.DecodeRex(b)
			prefixes |= prefixRex
			if rex.W {
				prefixes |= prefixRexW
			}
			if rex.R {
				prefixes |= prefixRexR
			}
			if rex.X {
				prefixes |= prefixRexX
			}
			if rex.B {
				prefixes |= prefixRexB
			}
			continue
		default:
			in.execute(mm, b, prefixes, rex)
			return
		}
	}
}

// execute decodes and runs the primary opcode byte b, having already
// consumed any prefixes.
func (in *Interpreter) execute(mm *loader.MemoryMap, b byte, prefixes prefixBits, rex insts.RexFlags) {
	width := prefixes.effectiveWidth()

	switch insts.Opcode(b) {
	case insts.OpTwoByte:
		in.executeTwoByte(mm)

	case insts.OpXorRmR:
		in.modrm(mm, rex, width, func(dst, src uint64) uint64 { return dst ^ src })

	case insts.OpPushRAX:
		in.push(mm, in.Regs.Read(RAX))

	case insts.OpPushRSP:
		// Stores the post-decrement RSP, not the pre-decrement value — a
		// documented deviation from native semantics. See DESIGN.md.
		newSP := in.Regs.Read(RSP) - 8
		in.Regs.Write(RSP, newSP)
		mm.WriteU64(newSP, newSP)

	case insts.OpPopRSI:
		v := mm.ReadU64(in.Regs.Read(RSP))
		in.Regs.Write(RSI, v)
		in.Regs.Write(RSP, in.Regs.Read(RSP)+8)

	case insts.OpMovRmR:
		in.modrm(mm, rex, width, func(dst, src uint64) uint64 { return src })

	case insts.OpLea:
		regIdx, addr := in.modrmlea(mm, rex)
		in.setRegOperand(regIdx, width, addr)

	case insts.OpGrp1Imm8:
		in.executeGrp1(mm, width)

	case insts.OpGrp5:
		in.executeGrp5(mm, width)

	default:
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP - 1, Byte: b, Detail: "unrecognized opcode"})
	}
}

// executeTwoByte handles the single two-byte opcode this core recognizes:
// 0F 1E /imm8, the multi-byte NOP / ENDBR64 sentinel that halts the run.
func (in *Interpreter) executeTwoByte(mm *loader.MemoryMap) {
	second := in.fetch8(mm)
	if second != insts.TwoByteNopEndbr64 {
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP - 1, Byte: second, Detail: "unrecognized two-byte opcode"})
	}
	_ = in.fetch8(mm) // the ModR/M byte; its addressing mode is never consulted
	in.halted = true
}

// push decrements RSP by 8 and stores v at the new RSP.
func (in *Interpreter) push(mm *loader.MemoryMap, v uint64) {
	newSP := in.Regs.Read(RSP) - 8
	in.Regs.Write(RSP, newSP)
	mm.WriteU64(newSP, v)
}

// executeGrp1 dispatches the 0x83 group on its reg-field sub-opcode.
// Sub-ops 2 and 5 execute ADD and SUB respectively, rather than the ADC and
// SBB their encoding would natively select, and sub-op 7 (CMP) elides flag
// effects entirely as a no-op — both documented deviations, see DESIGN.md.
func (in *Interpreter) executeGrp1(mm *loader.MemoryMap, width int) {
	ext, dst, writeback, imm := in.modrmimm(mm, width)
	src := uint64(imm)

	switch insts.Grp1Op(ext) {
	case insts.Grp1Add, insts.Grp1Adc:
		writeback(dst + src)
	case insts.Grp1Or:
		writeback(dst | src)
	case insts.Grp1Sub, insts.Grp1Sbb:
		writeback(dst - src)
	case insts.Grp1And:
		writeback(dst & src)
	case insts.Grp1Xor:
		writeback(dst ^ src)
	case insts.Grp1Cmp:
		// no-op: CMP's flag effects are out of scope for this core.
	default:
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP, Byte: byte(insts.OpGrp1Imm8), Detail: fmt.Sprintf("Grp1 sub-opcode /%d is unsupported", ext)})
	}
}

// executeGrp5 dispatches the 0xFF group on its reg-field sub-opcode.
func (in *Interpreter) executeGrp5(mm *loader.MemoryMap, width int) {
	ext, dst, writeback := in.modrmext(mm, width)

	switch insts.Grp5Op(ext) {
	case insts.Grp5Inc:
		writeback(dst + 1)
	case insts.Grp5Dec:
		writeback(dst - 1)
	case insts.Grp5CallNear:
		target := dst
		newSP := in.Regs.Read(RSP) - 8
		in.Regs.Write(RSP, newSP)
		mm.WriteU64(newSP, in.Regs.RIP)
		in.Regs.RIP = target
	default:
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP, Byte: byte(insts.OpGrp5), Detail: fmt.Sprintf("Grp5 sub-opcode /%d is unsupported", ext)})
	}
}
