package riscv

// Tiny instruction encoders mirroring the format tables in execute.go's
// decoders. Kept local to tests: the core never needs to assemble, only
// decode.

func encodeR(funct7, rs2n, rs1n, funct3, rdn, op uint32) uint32 {
	return funct7<<25 | rs2n<<20 | rs1n<<15 | funct3<<12 | rdn<<7 | op
}

func encodeI(imm uint32, rs1n, funct3, rdn, op uint32) uint32 {
	return (imm&0xfff)<<20 | rs1n<<15 | funct3<<12 | rdn<<7 | op
}

func encodeS(imm uint32, rs2n, rs1n, funct3, op uint32) uint32 {
	lo := imm & 0x1f
	hi := (imm >> 5) & 0x7f
	return hi<<25 | rs2n<<20 | rs1n<<15 | funct3<<12 | lo<<7 | op
}

func encodeB(imm uint32, rs2n, rs1n, funct3, op uint32) uint32 {
	b11 := (imm >> 11) & 1
	b12 := (imm >> 12) & 1
	b41 := (imm >> 1) & 0xf
	b105 := (imm >> 5) & 0x3f
	return b12<<31 | b105<<25 | rs2n<<20 | rs1n<<15 | funct3<<12 | b41<<8 | b11<<7 | op
}

func encodeU(imm uint32, rdn, op uint32) uint32 {
	return (imm << 12) | rdn<<7 | op
}

func encodeJ(imm uint32, rdn, op uint32) uint32 {
	b19_12 := (imm >> 12) & 0xff
	b11 := (imm >> 11) & 1
	b10_1 := (imm >> 1) & 0x3ff
	b20 := (imm >> 20) & 1
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | rdn<<7 | op
}

func addi(rdn, rs1n uint32, imm uint32) uint32 { return encodeI(imm, rs1n, 0, rdn, opOpImm) }
func csrrw(rdn, csr uint32, rs1n uint32) uint32 {
	return encodeI(csr, rs1n, 1, rdn, opSystem)
}

// newTestHart builds a bare hart wired to freshly allocated DRAM, ready to
// fetch from DramBase.
func newTestHart() *Hart {
	bus := NewBus(DramSize)
	return NewHart(bus)
}

func (h *Hart) loadWord(off uint64, insn uint32) {
	h.Bus.Store(DramBase+off, 32, uint64(insn))
}

func (h *Hart) stepOne() error {
	word, err := h.Bus.Load(h.PC, 32)
	if err != nil {
		return err
	}
	return h.Execute(uint32(word))
}
