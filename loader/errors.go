package loader

import "fmt"

// MalformedELFError reports a structural or header-validation failure while
// parsing an ELF file: bad magic, an unsupported class/encoding/version, or
// a machine type that does not match the declared class. Load returns this
// as an error rather than panicking, since loading happens once and has an
// obvious error-return path; the hot per-instruction path (MemoryMap reads
// and writes, the interpreter's tick) panics instead.
type MalformedELFError struct {
	Reason string
}

func (e *MalformedELFError) Error() string {
	return fmt.Sprintf("malformed ELF file: %s", e.Reason)
}

// SegfaultError reports an access to an address outside every live segment,
// or a multi-byte access that would straddle a segment boundary. MemoryMap
// read/write methods panic with this type; cmd/x86emu recovers it in the
// deferred recover of run and reports it as a fatal diagnostic.
type SegfaultError struct {
	Addr   uint64
	Reason string
}

func (e *SegfaultError) Error() string {
	return fmt.Sprintf("segmentation fault at 0x%x: %s", e.Addr, e.Reason)
}
