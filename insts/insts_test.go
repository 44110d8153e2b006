package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cranklab/x86emu/insts"
)

var _ = Describe("DecodeModRM", func() {
	It("splits mod, reg, rm per the 2:3:3 bit layout", func() {
		// 11 010 001 = 0xD1: mod=3, reg=2, rm=1
		m := insts.DecodeModRM(0xD1)
		Expect(m.Mod).To(Equal(byte(0x3)))
		Expect(m.Reg).To(Equal(byte(0x2)))
		Expect(m.Rm).To(Equal(byte(0x1)))
	})

	It("decodes an all-zero byte as mod=0 reg=0 rm=0", func() {
		m := insts.DecodeModRM(0x00)
		Expect(m).To(Equal(insts.ModRM{Mod: 0, Reg: 0, Rm: 0}))
	})
})

var _ = Describe("REX prefix helpers", func() {
	It("recognizes the full 0x40-0x4F range as REX prefixes", func() {
		Expect(insts.IsRexPrefix(0x40)).To(BeTrue())
		Expect(insts.IsRexPrefix(0x4F)).To(BeTrue())
		Expect(insts.IsRexPrefix(0x3F)).To(BeFalse())
		Expect(insts.IsRexPrefix(0x50)).To(BeFalse())
	})

	It("decodes W/R/X/B from the low nibble", func() {
		// REX.W set, REX.B set: 0x49 = 0100 1001
		flags := insts.DecodeRex(0x49)
		Expect(flags.W).To(BeTrue())
		Expect(flags.R).To(BeFalse())
		Expect(flags.X).To(BeFalse())
		Expect(flags.B).To(BeTrue())
	})

	It("decodes a bare REX prefix as all subflags clear", func() {
		flags := insts.DecodeRex(0x40)
		Expect(flags).To(Equal(insts.RexFlags{}))
	})
})
