package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cranklab/x86emu/emu"
)

var _ = Describe("YMMWord", func() {
	// Byte pattern chosen so each view's elements are distinguishable:
	// word i occupies bytes [2i, 2i+2), dword i occupies [4i, 4i+4), etc.
	var y emu.YMMWord

	BeforeEach(func() {
		for i := range y {
			y[i] = byte(i)
		}
	})

	It("exposes the lower 128 bits as the XMM view", func() {
		lo := y.Lo128()
		for i := 0; i < 16; i++ {
			Expect(lo[i]).To(Equal(byte(i)))
		}
	})

	It("exposes a 16x16-bit little-endian view", func() {
		words := y.Words()
		Expect(words[0]).To(Equal(uint16(0x0100)))
		Expect(words[15]).To(Equal(uint16(0x1F1E)))
	})

	It("exposes an 8x32-bit little-endian view", func() {
		dwords := y.Dwords()
		Expect(dwords[0]).To(Equal(uint32(0x03020100)))
		Expect(dwords[7]).To(Equal(uint32(0x1F1E1D1C)))
	})

	It("exposes a 4x64-bit little-endian view", func() {
		qwords := y.Qwords()
		Expect(qwords[0]).To(Equal(uint64(0x0706050403020100)))
		Expect(qwords[3]).To(Equal(uint64(0x1F1E1D1C1B1A1918)))
	})

	It("exposes an 8xfloat32 view reinterpreting the dword bits", func() {
		var bits emu.YMMWord
		v := math.Float32bits(3.5)
		bits[0] = byte(v)
		bits[1] = byte(v >> 8)
		bits[2] = byte(v >> 16)
		bits[3] = byte(v >> 24)
		Expect(bits.Floats()[0]).To(Equal(float32(3.5)))
	})

	It("exposes a 4xfloat64 view reinterpreting the qword bits", func() {
		var bits emu.YMMWord
		v := math.Float64bits(-2.25)
		for b := 0; b < 8; b++ {
			bits[b] = byte(v >> (8 * b))
		}
		Expect(bits.Doubles()[0]).To(Equal(-2.25))
	})
})
