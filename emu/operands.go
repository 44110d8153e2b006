package emu

import (
	"github.com/cranklab/x86emu/insts"
	"github.com/cranklab/x86emu/loader"
)

// fetch8 reads one byte at RIP and advances RIP past it.
func (in *Interpreter) fetch8(mm *loader.MemoryMap) byte {
	v := mm.ReadU8(in.Regs.RIP)
	in.Regs.RIP++
	return v
}

// fetchDisp32 reads a signed 32-bit displacement at RIP and advances RIP
// past it.
func (in *Interpreter) fetchDisp32(mm *loader.MemoryMap) int32 {
	v := int32(mm.ReadU32(in.Regs.RIP))
	in.Regs.RIP += 4
	return v
}

// regOperand reads GPR idx at the given effective width (32 or 64).
func (in *Interpreter) regOperand(idx byte, width int) uint64 {
	if width == 32 {
		return uint64(in.Regs.Read32(idx))
	}
	return in.Regs.Read(idx)
}

// setRegOperand writes v to GPR idx at the given effective width. A 32-bit
// write zero-extends into the full 64-bit slot, matching native behavior.
func (in *Interpreter) setRegOperand(idx byte, width int, v uint64) {
	if width == 32 {
		in.Regs.Write32(idx, uint32(v))
		return
	}
	in.Regs.Write(idx, v)
}

// decodeRM interprets an already-fetched ModR/M byte's mod:rm fields. For
// mod=11 (register-direct) it reports no memory operand; otherwise it
// computes the effective address per the covered addressing modes, fetching
// a trailing RIP-relative displacement if needed. mod=01/10 (disp8/disp32)
// and rm=100 (SIB) are unsupported and panic.
func (in *Interpreter) decodeRM(mm *loader.MemoryMap, modByte byte) (fields insts.ModRM, mem bool, addr uint64) {
	fields = insts.DecodeModRM(modByte)
	if fields.Mod == insts.ModRegisterDirect {
		return fields, false, 0
	}
	if fields.Mod != insts.ModNoDisp {
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP, Byte: modByte, Detail: "disp8/disp32 addressing (mod=01/10) is not supported"})
	}
	switch fields.Rm {
	case insts.RmRipRelative:
		disp := in.fetchDisp32(mm)
		addr = uint64(int64(in.Regs.RIP) + int64(disp))
	case insts.RmSib:
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP, Byte: modByte, Detail: "SIB byte addressing is not supported"})
	default:
		addr = in.Regs.Read(fields.Rm)
	}
	return fields, true, addr
}

// modrm decodes an rm-operand ModR/M byte, reads dst (the rm operand) and
// src (gpr[reg], extended by REX.R), and writes apply(dst, src) back to the
// rm operand. Memory operands are always 32 bits wide regardless of the
// effective register width.
func (in *Interpreter) modrm(mm *loader.MemoryMap, rex insts.RexFlags, width int, apply func(dst, src uint64) uint64) {
	b := in.fetch8(mm)
	fields, mem, addr := in.decodeRM(mm, b)

	regIdx := fields.Reg
	if rex.R {
		regIdx += 8
	}
	src := in.regOperand(regIdx, width)

	dst, writeback := in.rmAccessor(mm, fields.Rm, mem, addr, width)
	writeback(apply(dst, src))
}

// modrmext decodes an rm-operand ModR/M byte whose reg field is reused as a
// 3-bit opcode extension (no trailing immediate). Used by Grp5 (0xFF).
func (in *Interpreter) modrmext(mm *loader.MemoryMap, width int) (ext byte, dst uint64, writeback func(uint64)) {
	b := in.fetch8(mm)
	fields, mem, addr := in.decodeRM(mm, b)
	ext = fields.Reg
	dst, writeback = in.rmAccessor(mm, fields.Rm, mem, addr, width)
	return ext, dst, writeback
}

// modrmimm is modrmext followed by a sign-extended 8-bit immediate. Used by
// Grp1 (0x83).
func (in *Interpreter) modrmimm(mm *loader.MemoryMap, width int) (ext byte, dst uint64, writeback func(uint64), imm int64) {
	ext, dst, writeback = in.modrmext(mm, width)
	imm = int64(int8(in.fetch8(mm)))
	return ext, dst, writeback, imm
}

// modrmlea decodes a ModR/M byte under LEA's rules: the effective address is
// computed but never dereferenced, and mod=11 is illegal (LEA has no
// register-direct form).
func (in *Interpreter) modrmlea(mm *loader.MemoryMap, rex insts.RexFlags) (regIdx byte, addr uint64) {
	b := in.fetch8(mm)
	fields := insts.DecodeModRM(b)
	if fields.Mod == insts.ModRegisterDirect {
		panic(&UnsupportedDecodeError{RIP: in.Regs.RIP, Byte: b, Detail: "LEA requires a memory operand; mod=11 is illegal"})
	}
	_, _, addr = in.decodeRM(mm, b)
	regIdx = fields.Reg
	if rex.R {
		regIdx += 8
	}
	return regIdx, addr
}

// rmAccessor returns the current value of the rm operand and a closure that
// writes a new value back to the same location.
func (in *Interpreter) rmAccessor(mm *loader.MemoryMap, rm byte, mem bool, addr uint64, width int) (uint64, func(uint64)) {
	if mem {
		return uint64(mm.ReadU32(addr)), func(v uint64) { mm.WriteU32(addr, uint32(v)) }
	}
	return in.regOperand(rm, width), func(v uint64) { in.setRegOperand(rm, width, v) }
}
