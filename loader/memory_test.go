package loader_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cranklab/x86emu/loader"
)

var _ = Describe("MemoryMap", func() {
	var mm *loader.MemoryMap

	BeforeEach(func() {
		mm = loader.NewMemoryMap(64, 0x400000)
		mm.AddSegment(&loader.Segment{
			Kind:    loader.KindLoad,
			Perm:    loader.PermRead | loader.PermWrite | loader.PermExec,
			VAddr:   0x400000,
			MemSize: 0x20,
			Data:    []byte{0x01, 0x02, 0x03, 0x04},
		})
	})

	Describe("reads", func() {
		It("returns in-buffer bytes as written", func() {
			Expect(mm.ReadU8(0x400000)).To(Equal(uint8(0x01)))
			Expect(mm.ReadU32(0x400000)).To(Equal(uint32(0x04030201)))
		})

		It("zero-fills past the data buffer but within memsz (BSS)", func() {
			Expect(mm.ReadU8(0x400010)).To(Equal(uint8(0)))
			Expect(mm.ReadU64(0x400010)).To(Equal(uint64(0)))
		})

		It("segfaults on a completely unmapped address", func() {
			Expect(func() { mm.ReadU8(0xDEADBEEF) }).To(PanicWith(BeAssignableToTypeOf(&loader.SegfaultError{})))
		})

		It("segfaults when a multi-byte read straddles the end of a segment", func() {
			// segment spans [0x400000, 0x400020); a 4-byte read at 0x40001E
			// would need bytes through 0x400021, outside the segment.
			Expect(func() { mm.ReadU32(0x40001E) }).To(PanicWith(BeAssignableToTypeOf(&loader.SegfaultError{})))
		})

		It("picks the first matching segment in insertion order", func() {
			mm2 := loader.NewMemoryMap(64, 0)
			mm2.AddSegment(&loader.Segment{VAddr: 0x1000, MemSize: 0x10, Data: []byte{0xAA}})
			mm2.AddSegment(&loader.Segment{VAddr: 0x1000, MemSize: 0x10, Data: []byte{0xBB}})
			Expect(mm2.ReadU8(0x1000)).To(Equal(uint8(0xAA)))
		})
	})

	Describe("writes", func() {
		It("round-trips every width", func() {
			mm.WriteU8(0x400004, 0x7F)
			Expect(mm.ReadU8(0x400004)).To(Equal(uint8(0x7F)))

			mm.WriteU16(0x400006, 0xBEEF)
			Expect(mm.ReadU16(0x400006)).To(Equal(uint16(0xBEEF)))

			mm.WriteU32(0x400008, 0xCAFEBABE)
			Expect(mm.ReadU32(0x400008)).To(Equal(uint32(0xCAFEBABE)))

			mm.WriteU64(0x400010, 0x0123456789ABCDEF)
			Expect(mm.ReadU64(0x400010)).To(Equal(uint64(0x0123456789ABCDEF)))
		})

		It("grows the backing buffer on demand without touching memsz", func() {
			mm.WriteU8(0x40001F, 0x99)
			Expect(mm.ReadU8(0x40001F)).To(Equal(uint8(0x99)))
			Expect(mm.Segments()[0].MemSize).To(Equal(uint64(0x20)))
		})

		It("segfaults writing past the segment's memsz", func() {
			Expect(func() { mm.WriteU64(0x400019, 0) }).To(PanicWith(BeAssignableToTypeOf(&loader.SegfaultError{})))
		})

		It("segfaults writing to an unmapped address", func() {
			Expect(func() { mm.WriteU8(0x999999, 1) }).To(PanicWith(BeAssignableToTypeOf(&loader.SegfaultError{})))
		})
	})

	Describe("128- and 256-bit accesses", func() {
		It("reads a zero-filled XMM word past the data buffer", func() {
			w := mm.ReadXMMWord(0x400004)
			Expect(w).To(Equal(loader.XMMWord{}))
		})

		It("reads the in-buffer prefix of a YMM word correctly", func() {
			w := mm.ReadYMMWord(0x400000)
			Expect(w[0]).To(Equal(byte(0x01)))
			Expect(w[1]).To(Equal(byte(0x02)))
			Expect(w[4]).To(Equal(byte(0)))
		})
	})

	Describe("accessors", func() {
		It("reports bits and entry point as constructed", func() {
			Expect(mm.Bits()).To(Equal(64))
			Expect(mm.EntryPoint()).To(Equal(uint64(0x400000)))
		})

		It("reports the fixed starting stack pointer", func() {
			Expect(mm.StartingStack()).To(Equal(loader.StartingStackPointer))
		})
	})
})
