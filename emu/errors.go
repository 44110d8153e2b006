package emu

import "fmt"

// UnsupportedDecodeError reports an opcode, ModR/M mode, or sub-opcode this
// core does not implement: an unrecognized primary opcode, a SIB byte, an
// unimplemented addressing mode, or a Grp1/Grp5 sub-op this core leaves
// unsupported. Tick panics with this type; cmd/x86emu recovers it once, in
// the deferred recover of run.
type UnsupportedDecodeError struct {
	RIP    uint64
	Byte   byte
	Detail string
}

func (e *UnsupportedDecodeError) Error() string {
	return fmt.Sprintf("unsupported decode at RIP 0x%x: byte 0x%x: %s", e.RIP, e.Byte, e.Detail)
}
