// Package insts provides x86/AMD64 opcode and ModR/M byte definitions shared
// by the interpreter's decode step. It holds constants and pure bit-layout
// helpers only; fetching bytes and executing their effects belongs to emu.
package insts

// Prefix bytes the interpreter recognizes during the per-tick prefix loop.
// This set is closed: anything not in it, including other legacy prefixes
// like 0xF2 (REPNE), 0xF0 (LOCK), and 0x67 (ADDRSIZE), is an unrecognized
// primary opcode and the loop stops there.
const (
	PrefixOpsize = 0x66
	PrefixRep    = 0xF3

	RexLow  = 0x40
	RexHigh = 0x4F
)

// Opcode identifies the primary one-byte opcodes this core covers.
type Opcode byte

const (
	OpGrp1Imm8 Opcode = 0x83
	OpXorRmR   Opcode = 0x31
	OpPushRAX  Opcode = 0x50
	OpPushRSP  Opcode = 0x54
	OpPopRSI   Opcode = 0x5E
	OpMovRmR   Opcode = 0x89
	OpLea      Opcode = 0x8D
	OpGrp5     Opcode = 0xFF
	OpTwoByte  Opcode = 0x0F
)

// TwoByteNopEndbr64 is the second byte of the 0F 1E sentinel sequence that
// this core treats as a multi-byte NOP / ENDBR64 and its clean halt signal.
const TwoByteNopEndbr64 = 0x1E

// Grp1Op is the /reg sub-opcode selector for the 0x83 group.
type Grp1Op byte

const (
	Grp1Add Grp1Op = 0
	Grp1Or  Grp1Op = 1
	Grp1Adc Grp1Op = 2 // executed as ADD: documented deviation, see DESIGN.md
	Grp1Sub Grp1Op = 3
	Grp1And Grp1Op = 4
	Grp1Sbb Grp1Op = 5 // executed as SUB: documented deviation, see DESIGN.md
	Grp1Xor Grp1Op = 6
	Grp1Cmp Grp1Op = 7 // no-op: flag effects are out of scope
)

// Grp5Op is the /reg sub-opcode selector for the 0xFF group.
type Grp5Op byte

const (
	Grp5Inc          Grp5Op = 0
	Grp5Dec          Grp5Op = 1
	Grp5CallNear     Grp5Op = 2
	Grp5Unsupported3 Grp5Op = 3
	Grp5Unsupported4 Grp5Op = 4
	Grp5Unsupported5 Grp5Op = 5
	Grp5Unsupported6 Grp5Op = 6
	Grp5Unsupported7 Grp5Op = 7
)

// ModRM is the decoded mod:2|reg:3|rm:3 split of a ModR/M byte.
type ModRM struct {
	Mod byte
	Reg byte
	Rm  byte
}

// DecodeModRM splits a raw ModR/M byte into its three fields.
func DecodeModRM(b byte) ModRM {
	return ModRM{
		Mod: (b >> 6) & 0x3,
		Reg: (b >> 3) & 0x7,
		Rm:  b & 0x7,
	}
}

// ModRegisterDirect is the mod value selecting register-direct addressing
// (the destination operand is itself a register, not a memory reference).
const ModRegisterDirect = 0x3

// ModNoDisp is the mod value selecting no-displacement memory addressing,
// with rm=RmRipRelative and rm=RmSib carrying special meaning.
const ModNoDisp = 0x0

// RmRipRelative is the rm encoding, under ModNoDisp, that signals a
// RIP-relative operand: a 32-bit displacement follows the ModR/M byte.
const RmRipRelative = 0x5

// RmSib is the rm encoding, under ModNoDisp, that signals a SIB byte
// follows. This core does not support SIB addressing.
const RmSib = 0x4

// IsRexPrefix reports whether b is one of the 16 REX prefix bytes.
func IsRexPrefix(b byte) bool {
	return b >= RexLow && b <= RexHigh
}

// RexFlags decodes the W/R/X/B subflags packed into a REX prefix's low
// nibble.
type RexFlags struct {
	W, R, X, B bool
}

// DecodeRex extracts the W/R/X/B subflags from a REX prefix byte. The
// caller is responsible for having verified IsRexPrefix(b) first.
func DecodeRex(b byte) RexFlags {
	return RexFlags{
		W: b&0x8 != 0,
		R: b&0x4 != 0,
		X: b&0x2 != 0,
		B: b&0x1 != 0,
	}
}
