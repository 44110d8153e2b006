package loader

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ELF identification and machine constants this loader recognizes. Section
// headers are never read; only the identification bytes, the file header's
// class-dependent fields, and the program headers matter here.
const (
	elfClass32 = 1
	elfClass64 = 2

	elfDataLittleEndian = 1

	elfVersionCurrent = 1

	emI386  = 0x03
	emX8664 = 0x3E
	ptLoad  = 1
	pfExec  = 1 << 0
	pfWrite = 1 << 1
	pfRead  = 1 << 2
)

// elf64HeaderRest is the byte length of the ELF64 file header following the
// 16-byte e_ident block.
const elf64HeaderRest = 48

// elf32HeaderRest is the byte length of the ELF32 file header following the
// 16-byte e_ident block.
const elf32HeaderRest = 36

// ElfFormat recognizes and loads 32- and 64-bit little-endian ELF
// executables for i386 and x86-64.
type ElfFormat struct{}

// CanLoad reports whether src begins with the ELF magic followed by any two
// bytes and the ELF version byte 1. It always rewinds src to offset 0
// before returning, on both the true and false paths.
func (f *ElfFormat) CanLoad(src Source) bool {
	defer func() { _, _ = src.Seek(0, io.SeekStart) }()

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return false
	}

	buf := make([]byte, 7)
	if _, err := io.ReadFull(src, buf); err != nil {
		return false
	}

	return buf[0] == 0x7F && buf[1] == 'E' && buf[2] == 'L' && buf[3] == 'F' && buf[6] == elfVersionCurrent
}

// Load parses the ELF header and program headers, materializes every
// PT_LOAD segment, appends the synthetic stack segment, and returns the
// resulting MemoryMap. It never consults section headers.
func (f *ElfFormat) Load(src Source) (*MemoryMap, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to start of file: %w", err)
	}

	ident := make([]byte, 16)
	if _, err := io.ReadFull(src, ident); err != nil {
		return nil, &MalformedELFError{Reason: fmt.Sprintf("short e_ident: %v", err)}
	}
	if ident[0] != 0x7F || ident[1] != 'E' || ident[2] != 'L' || ident[3] != 'F' {
		return nil, &MalformedELFError{Reason: "bad magic"}
	}

	class := ident[4]
	if class != elfClass32 && class != elfClass64 {
		return nil, &MalformedELFError{Reason: fmt.Sprintf("unsupported EI_CLASS %d (want ELFCLASS32=1 or ELFCLASS64=2)", class)}
	}
	is64 := class == elfClass64

	if ident[5] != elfDataLittleEndian {
		return nil, &MalformedELFError{Reason: "x86 is little-endian: unsupported EI_DATA"}
	}
	if ident[6] != elfVersionCurrent {
		return nil, &MalformedELFError{Reason: fmt.Sprintf("unsupported EI_VERSION %d", ident[6])}
	}

	eMachine, eVersion, entry, phoff, phentsize, phnum, err := f.readFileHeaderRest(src, is64)
	if err != nil {
		return nil, err
	}
	if eVersion != elfVersionCurrent {
		return nil, &MalformedELFError{Reason: fmt.Sprintf("unsupported e_version %d", eVersion)}
	}

	switch {
	case is64 && eMachine == emX8664:
	case !is64 && eMachine == emI386:
	default:
		return nil, &MalformedELFError{
			Reason: fmt.Sprintf("e_machine 0x%x is incompatible with ELFCLASS%d", eMachine, classBits(is64)),
		}
	}

	mm := NewMemoryMap(classBits(is64), entry)

	for i := uint16(0); i < phnum; i++ {
		off := int64(phoff) + int64(i)*int64(phentsize)
		if _, err := src.Seek(off, io.SeekStart); err != nil {
			return nil, &MalformedELFError{Reason: fmt.Sprintf("seek to program header %d: %v", i, err)}
		}
		seg, err := f.readProgramHeader(src, is64)
		if err != nil {
			return nil, err
		}
		if seg != nil {
			mm.AddSegment(seg)
		}
	}

	mm.AddSegment(newStackSegment())

	return mm, nil
}

// readFileHeaderRest reads the class-dependent remainder of the ELF file
// header (everything after e_ident) and returns the fields Load needs.
func (f *ElfFormat) readFileHeaderRest(src Source, is64 bool) (eMachine uint16, eVersion uint32, entry, phoff uint64, phentsize, phnum uint16, err error) {
	if is64 {
		buf := make([]byte, elf64HeaderRest)
		if _, rerr := io.ReadFull(src, buf); rerr != nil {
			return 0, 0, 0, 0, 0, 0, &MalformedELFError{Reason: fmt.Sprintf("short ELF64 header: %v", rerr)}
		}
		// e_type       buf[0:2]  (unused)
		eMachine = binary.LittleEndian.Uint16(buf[2:4])
		eVersion = binary.LittleEndian.Uint32(buf[4:8])
		entry = binary.LittleEndian.Uint64(buf[8:16])
		phoff = binary.LittleEndian.Uint64(buf[16:24])
		// e_shoff      buf[24:32] (unused — section headers are ignored)
		// e_flags      buf[32:36] (unused)
		// e_ehsize     buf[36:38] (unused)
		phentsize = binary.LittleEndian.Uint16(buf[38:40])
		phnum = binary.LittleEndian.Uint16(buf[40:42])
		// e_shentsize, e_shnum, e_shstrndx buf[42:48] (unused)
		return eMachine, eVersion, entry, phoff, phentsize, phnum, nil
	}

	buf := make([]byte, elf32HeaderRest)
	if _, rerr := io.ReadFull(src, buf); rerr != nil {
		return 0, 0, 0, 0, 0, 0, &MalformedELFError{Reason: fmt.Sprintf("short ELF32 header: %v", rerr)}
	}
	// e_type       buf[0:2]  (unused)
	eMachine = binary.LittleEndian.Uint16(buf[2:4])
	eVersion = binary.LittleEndian.Uint32(buf[4:8])
	entry = uint64(binary.LittleEndian.Uint32(buf[8:12]))
	phoff = uint64(binary.LittleEndian.Uint32(buf[12:16]))
	// e_shoff      buf[16:20] (unused)
	// e_flags      buf[20:24] (unused)
	// e_ehsize     buf[24:26] (unused)
	phentsize = binary.LittleEndian.Uint16(buf[26:28])
	phnum = binary.LittleEndian.Uint16(buf[28:30])
	// e_shentsize, e_shnum, e_shstrndx buf[30:36] (unused)
	return eMachine, eVersion, entry, phoff, phentsize, phnum, nil
}

// readProgramHeader reads one program header entry at the file's current
// seek position and, if it is a PT_LOAD entry, reads its file-backed bytes
// and returns the resulting Segment. Non-PT_LOAD entries yield (nil, nil).
//
// The field layout differs between classes beyond just width: in ELF64,
// p_flags immediately follows p_type, while in ELF32 it follows p_memsz.
func (f *ElfFormat) readProgramHeader(src Source, is64 bool) (*Segment, error) {
	var pType, pFlags uint32
	var pOffset, pVAddr, pPAddr, pFilesz, pMemsz, pAlign uint64

	if is64 {
		buf := make([]byte, 56)
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, &MalformedELFError{Reason: fmt.Sprintf("short ELF64 program header: %v", err)}
		}
		pType = binary.LittleEndian.Uint32(buf[0:4])
		pFlags = binary.LittleEndian.Uint32(buf[4:8])
		pOffset = binary.LittleEndian.Uint64(buf[8:16])
		pVAddr = binary.LittleEndian.Uint64(buf[16:24])
		pPAddr = binary.LittleEndian.Uint64(buf[24:32])
		pFilesz = binary.LittleEndian.Uint64(buf[32:40])
		pMemsz = binary.LittleEndian.Uint64(buf[40:48])
		pAlign = binary.LittleEndian.Uint64(buf[48:56])
	} else {
		buf := make([]byte, 32)
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, &MalformedELFError{Reason: fmt.Sprintf("short ELF32 program header: %v", err)}
		}
		pType = binary.LittleEndian.Uint32(buf[0:4])
		pOffset = uint64(binary.LittleEndian.Uint32(buf[4:8]))
		pVAddr = uint64(binary.LittleEndian.Uint32(buf[8:12]))
		pPAddr = uint64(binary.LittleEndian.Uint32(buf[12:16]))
		pFilesz = uint64(binary.LittleEndian.Uint32(buf[16:20]))
		pMemsz = uint64(binary.LittleEndian.Uint32(buf[20:24]))
		pFlags = binary.LittleEndian.Uint32(buf[24:28])
		pAlign = uint64(binary.LittleEndian.Uint32(buf[28:32]))
	}

	if pType != ptLoad {
		return nil, nil
	}

	data := make([]byte, pFilesz)
	if pFilesz > 0 {
		if _, err := src.Seek(int64(pOffset), io.SeekStart); err != nil {
			return nil, &MalformedELFError{Reason: fmt.Sprintf("seek to segment data at offset %d: %v", pOffset, err)}
		}
		if _, err := io.ReadFull(src, data); err != nil {
			return nil, &MalformedELFError{Reason: fmt.Sprintf("short segment data at vaddr 0x%x: %v", pVAddr, err)}
		}
	}

	return &Segment{
		Kind:    KindLoad,
		Perm:    permFromFlags(pFlags),
		VAddr:   pVAddr,
		PAddr:   pPAddr,
		MemSize: pMemsz,
		Align:   pAlign,
		Data:    data,
	}, nil
}

func permFromFlags(flags uint32) Perm {
	var p Perm
	if flags&pfRead != 0 {
		p |= PermRead
	}
	if flags&pfWrite != 0 {
		p |= PermWrite
	}
	if flags&pfExec != 0 {
		p |= PermExec
	}
	return p
}

func classBits(is64 bool) int {
	if is64 {
		return 64
	}
	return 32
}

// newStackSegment builds the 64 KiB zeroed synthetic stack segment appended
// after every file-defined segment.
func newStackSegment() *Segment {
	return &Segment{
		Kind:    KindStack,
		Perm:    PermRead | PermWrite,
		VAddr:   StackSegmentVAddr,
		PAddr:   0,
		MemSize: StackSegmentSize,
		Align:   0,
		Data:    make([]byte, StackSegmentSize),
	}
}
