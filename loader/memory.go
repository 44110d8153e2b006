package loader

import "encoding/binary"

// StartingStackPointer is the initial RSP value the interpreter loads on
// init: the top of the synthetic stack segment (vaddr 0x7FFF0000 + memsz
// 0x10000 = 0x80000000) less 8 bytes, so the first 64-bit slot lies inside
// the segment.
const StartingStackPointer uint64 = 0x7FFFFFF8

// StackSegmentVAddr and StackSegmentSize describe the synthetic stack the
// loader appends after every file-defined segment.
const (
	StackSegmentVAddr uint64 = 0x7FFF0000
	StackSegmentSize  uint64 = 0x10000
)

// XMMWord is the 128-bit little-endian byte payload of an XMM-width read.
type XMMWord [16]byte

// YMMWord is the 256-bit little-endian byte payload of a YMM-width read.
type YMMWord [32]byte

// MemoryMap is the emulator's sparse virtual address space: an
// insertion-ordered list of non-overlapping segments plus the word size and
// entry point recorded by whichever loader built it.
//
// It is constructed once by a Loader and then borrowed mutably, one tick at
// a time, by the interpreter. MemoryMap owns its segments exclusively; it
// does not know about registers.
type MemoryMap struct {
	segments []*Segment
	bits     int
	entry    uint64
}

// NewMemoryMap creates an empty MemoryMap for the given word size (32 or 64)
// and entry point. Segments are added with AddSegment.
func NewMemoryMap(bits int, entry uint64) *MemoryMap {
	return &MemoryMap{bits: bits, entry: entry}
}

// AddSegment appends a segment to the map's insertion-ordered segment list.
func (m *MemoryMap) AddSegment(seg *Segment) {
	m.segments = append(m.segments, seg)
}

// Segments returns the map's segments in insertion order. The returned slice
// is owned by the caller's view only; mutate segment Data through the
// MemoryMap's write methods, not this slice.
func (m *MemoryMap) Segments() []*Segment {
	return m.segments
}

// Bits returns the word size the executable was built for: 32 or 64.
func (m *MemoryMap) Bits() int {
	return m.bits
}

// EntryPoint returns the ELF entry point address (e_entry).
func (m *MemoryMap) EntryPoint() uint64 {
	return m.entry
}

// StartingStack returns the initial stack pointer value.
func (m *MemoryMap) StartingStack() uint64 {
	return StartingStackPointer
}

// find returns the first segment, in insertion order, whose extent contains
// addr.
func (m *MemoryMap) find(addr uint64) (*Segment, bool) {
	for _, seg := range m.segments {
		if seg.contains(addr) {
			return seg, true
		}
	}
	return nil, false
}

// readBytes returns width bytes starting at addr, little-endian order in
// the sense that buf[0] is the byte at addr. The whole access must land in
// a single segment: straddling two segments (or landing nowhere) is a
// segmentation fault, never a silent merge of two segments' data.
func (m *MemoryMap) readBytes(addr uint64, width uint64) []byte {
	seg, ok := m.find(addr)
	if !ok {
		panic(&SegfaultError{Addr: addr, Reason: "address is not mapped by any segment"})
	}
	end := addr + width
	if end < addr || end > seg.VAddr+seg.MemSize {
		panic(&SegfaultError{Addr: addr, Reason: "access straddles the end of its segment"})
	}
	buf := make([]byte, width)
	for i := uint64(0); i < width; i++ {
		buf[i] = seg.byteAt(addr + i)
	}
	return buf
}

// writeBytes writes data starting at addr, growing the segment's backing
// buffer as needed so long as the access stays within the segment's MemSize.
func (m *MemoryMap) writeBytes(addr uint64, data []byte) {
	seg, ok := m.find(addr)
	if !ok {
		panic(&SegfaultError{Addr: addr, Reason: "address is not mapped by any segment"})
	}
	width := uint64(len(data))
	end := addr + width
	if end < addr || end > seg.VAddr+seg.MemSize {
		panic(&SegfaultError{Addr: addr, Reason: "access straddles the end of its segment"})
	}
	needed := int(end - seg.VAddr)
	if needed > len(seg.Data) {
		grown := make([]byte, needed)
		copy(grown, seg.Data)
		seg.Data = grown
	}
	copy(seg.Data[addr-seg.VAddr:], data)
}

// ReadU8 reads one byte at addr.
func (m *MemoryMap) ReadU8(addr uint64) uint8 {
	return m.readBytes(addr, 1)[0]
}

// ReadU16 reads a little-endian 16-bit value at addr.
func (m *MemoryMap) ReadU16(addr uint64) uint16 {
	return binary.LittleEndian.Uint16(m.readBytes(addr, 2))
}

// ReadU32 reads a little-endian 32-bit value at addr.
func (m *MemoryMap) ReadU32(addr uint64) uint32 {
	return binary.LittleEndian.Uint32(m.readBytes(addr, 4))
}

// ReadU64 reads a little-endian 64-bit value at addr.
func (m *MemoryMap) ReadU64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(m.readBytes(addr, 8))
}

// ReadXMMWord reads a little-endian 128-bit value at addr.
func (m *MemoryMap) ReadXMMWord(addr uint64) XMMWord {
	var w XMMWord
	copy(w[:], m.readBytes(addr, 16))
	return w
}

// ReadYMMWord reads a little-endian 256-bit value at addr.
func (m *MemoryMap) ReadYMMWord(addr uint64) YMMWord {
	var w YMMWord
	copy(w[:], m.readBytes(addr, 32))
	return w
}

// WriteU8 writes one byte at addr.
func (m *MemoryMap) WriteU8(addr uint64, v uint8) {
	m.writeBytes(addr, []byte{v})
}

// WriteU16 writes a little-endian 16-bit value at addr.
func (m *MemoryMap) WriteU16(addr uint64, v uint16) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	m.writeBytes(addr, buf)
}

// WriteU32 writes a little-endian 32-bit value at addr.
func (m *MemoryMap) WriteU32(addr uint64, v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	m.writeBytes(addr, buf)
}

// WriteU64 writes a little-endian 64-bit value at addr.
func (m *MemoryMap) WriteU64(addr uint64, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	m.writeBytes(addr, buf)
}
