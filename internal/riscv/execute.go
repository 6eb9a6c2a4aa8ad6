package riscv

// Opcodes implemented by this core (spec's restricted RV64IMA + Zicsr
// subset: no compressed, no F/D, no LR/SC, no full 32-bit M-extension
// table).
const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opOpImm   = 0x13
	opAuipc   = 0x17
	opOpImm32 = 0x1b
	opStore   = 0x23
	opAmo     = 0x2f
	opOp      = 0x33
	opLui     = 0x37
	opOp32    = 0x3b
	opBranch  = 0x63
	opJalr    = 0x67
	opJal     = 0x6f
	opSystem  = 0x73
)

func opcode(insn uint32) uint32 { return insn & 0x7f }
func rd(insn uint32) uint32     { return (insn >> 7) & 0x1f }
func funct3(insn uint32) uint32 { return (insn >> 12) & 0x7 }
func rs1(insn uint32) uint32    { return (insn >> 15) & 0x1f }
func rs2(insn uint32) uint32    { return (insn >> 20) & 0x1f }
func funct7(insn uint32) uint32 { return (insn >> 25) & 0x7f }
func funct5(insn uint32) uint32 { return (insn >> 27) & 0x1f }

func immI(insn uint32) int64 { return signExtend(uint64(insn>>20), 12) }

func immS(insn uint32) int64 {
	imm := (insn >> 7) & 0x1f
	imm |= ((insn >> 25) & 0x7f) << 5
	return signExtend(uint64(imm), 12)
}

func immB(insn uint32) int64 {
	imm := ((insn >> 8) & 0xf) << 1
	imm |= ((insn >> 25) & 0x3f) << 5
	imm |= ((insn >> 7) & 0x1) << 11
	imm |= ((insn >> 31) & 0x1) << 12
	return signExtend(uint64(imm), 13)
}

func immU(insn uint32) int64 { return signExtend(uint64(insn&0xfffff000), 32) }

func immJ(insn uint32) int64 {
	imm := ((insn >> 21) & 0x3ff) << 1
	imm |= ((insn >> 20) & 0x1) << 11
	imm |= ((insn >> 12) & 0xff) << 12
	imm |= ((insn >> 31) & 0x1) << 20
	return signExtend(uint64(imm), 21)
}

func shamt(insn uint32) uint32   { return (insn >> 20) & 0x3f }
func shamt32(insn uint32) uint32 { return (insn >> 20) & 0x1f }

// Execute decodes and runs one instruction, leaving h.PC at the next
// instruction to fetch (h.X[0] is re-zeroed first so no opcode need
// worry about writes to x0). Control-flow opcodes compute their own next
// PC; everything else falls through to the PC+4 default. h.PC is only
// updated when the instruction completes without raising a trap.
func (h *Hart) Execute(insn uint32) error {
	h.X[0] = 0

	next := h.PC + 4
	op := opcode(insn)

	var err error
	switch op {
	case opLui:
		h.SetReg(rd(insn), uint64(immU(insn)))
	case opAuipc:
		h.SetReg(rd(insn), uint64(int64(h.PC)+immU(insn)))
	case opJal:
		h.SetReg(rd(insn), next)
		next = uint64(int64(h.PC) + immJ(insn))
	case opJalr:
		target := uint64(int64(h.Reg(rs1(insn)))+immI(insn)) &^ 1
		h.SetReg(rd(insn), next)
		next = target
	case opBranch:
		next, err = h.execBranch(insn, next)
	case opLoad:
		err = h.execLoad(insn)
	case opStore:
		err = h.execStore(insn)
	case opOpImm:
		err = h.execOpImm(insn)
	case opOpImm32:
		err = h.execOpImm32(insn)
	case opOp:
		err = h.execOp(insn)
	case opOp32:
		err = h.execOp32(insn)
	case opMiscMem:
		err = h.execMiscMem(insn)
	case opAmo:
		err = h.execAmo(insn)
	case opSystem:
		next, err = h.execSystem(insn, next)
	default:
		err = Exc(IllegalInstruction, uint64(insn))
	}

	if err == nil {
		h.PC = next
	}
	return err
}

func (h *Hart) execBranch(insn uint32, next uint64) (uint64, error) {
	r1, r2 := h.Reg(rs1(insn)), h.Reg(rs2(insn))
	var taken bool
	switch funct3(insn) {
	case 0b000:
		taken = r1 == r2
	case 0b001:
		taken = r1 != r2
	case 0b100:
		taken = int64(r1) < int64(r2)
	case 0b101:
		taken = int64(r1) >= int64(r2)
	case 0b110:
		taken = r1 < r2
	case 0b111:
		taken = r1 >= r2
	default:
		return next, Exc(IllegalInstruction, uint64(insn))
	}
	if taken {
		return uint64(int64(h.PC) + immB(insn)), nil
	}
	return next, nil
}

func (h *Hart) loadVA(va, size uint64) (uint64, error) {
	pa, err := h.Translate(va, AccessLoad)
	if err != nil {
		return 0, err
	}
	return h.Bus.Load(pa, size)
}

func (h *Hart) storeVA(va, size, value uint64) error {
	pa, err := h.Translate(va, AccessStore)
	if err != nil {
		return err
	}
	return h.Bus.Store(pa, size, value)
}

func (h *Hart) execLoad(insn uint32) error {
	addr := uint64(int64(h.Reg(rs1(insn))) + immI(insn))
	var val uint64
	var err error
	switch funct3(insn) {
	case 0b000:
		v, e := h.loadVA(addr, 8)
		val, err = uint64(int8(v)), e
	case 0b001:
		v, e := h.loadVA(addr, 16)
		val, err = uint64(int16(v)), e
	case 0b010:
		v, e := h.loadVA(addr, 32)
		val, err = uint64(int32(v)), e
	case 0b011:
		val, err = h.loadVA(addr, 64)
	case 0b100:
		val, err = h.loadVA(addr, 8)
	case 0b101:
		val, err = h.loadVA(addr, 16)
	case 0b110:
		val, err = h.loadVA(addr, 32)
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
	if err != nil {
		return err
	}
	h.SetReg(rd(insn), val)
	return nil
}

func (h *Hart) execStore(insn uint32) error {
	addr := uint64(int64(h.Reg(rs1(insn))) + immS(insn))
	val := h.Reg(rs2(insn))
	switch funct3(insn) {
	case 0b000:
		return h.storeVA(addr, 8, val)
	case 0b001:
		return h.storeVA(addr, 16, val)
	case 0b010:
		return h.storeVA(addr, 32, val)
	case 0b011:
		return h.storeVA(addr, 64, val)
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
}

func (h *Hart) execOpImm(insn uint32) error {
	r1 := h.Reg(rs1(insn))
	imm := immI(insn)
	sh := shamt(insn)

	var val uint64
	switch funct3(insn) {
	case 0b000:
		val = uint64(int64(r1) + imm)
	case 0b001:
		val = r1 << sh
	case 0b010:
		if int64(r1) < imm {
			val = 1
		}
	case 0b011:
		if r1 < uint64(imm) {
			val = 1
		}
	case 0b100:
		val = r1 ^ uint64(imm)
	case 0b101:
		if (insn>>30)&1 == 1 {
			val = uint64(int64(r1) >> sh)
		} else {
			val = r1 >> sh
		}
	case 0b110:
		val = r1 | uint64(imm)
	case 0b111:
		val = r1 & uint64(imm)
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
	h.SetReg(rd(insn), val)
	return nil
}

func (h *Hart) execOpImm32(insn uint32) error {
	r1 := uint32(h.Reg(rs1(insn)))
	imm := int32(immI(insn))
	sh := shamt32(insn)

	var val int32
	switch funct3(insn) {
	case 0b000:
		val = int32(r1) + imm
	case 0b001:
		val = int32(r1 << sh)
	case 0b101:
		if (insn>>30)&1 == 1 {
			val = int32(r1) >> sh
		} else {
			val = int32(r1 >> sh)
		}
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
	h.SetReg(rd(insn), uint64(val))
	return nil
}

func (h *Hart) execOp(insn uint32) error {
	r1, r2 := h.Reg(rs1(insn)), h.Reg(rs2(insn))
	f3, f7 := funct3(insn), funct7(insn)

	if f7 == 0b0000001 {
		return h.execOpM(insn, r1, r2, f3)
	}

	var val uint64
	switch f3 {
	case 0b000:
		if f7 == 0b0100000 {
			val = uint64(int64(r1) - int64(r2))
		} else {
			val = uint64(int64(r1) + int64(r2))
		}
	case 0b001:
		val = r1 << (r2 & 0x3f)
	case 0b010:
		if int64(r1) < int64(r2) {
			val = 1
		}
	case 0b011:
		if r1 < r2 {
			val = 1
		}
	case 0b100:
		val = r1 ^ r2
	case 0b101:
		if f7 == 0b0100000 {
			val = uint64(int64(r1) >> (r2 & 0x3f))
		} else {
			val = r1 >> (r2 & 0x3f)
		}
	case 0b110:
		val = r1 | r2
	case 0b111:
		val = r1 & r2
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
	h.SetReg(rd(insn), val)
	return nil
}

func (h *Hart) execOpM(insn uint32, r1, r2 uint64, f3 uint32) error {
	var val uint64
	switch f3 {
	case 0b000: // mul
		val = uint64(int64(r1) * int64(r2))
	case 0b001: // mulh
		hi, _ := mulh64(int64(r1), int64(r2))
		val = uint64(hi)
	case 0b010: // mulhsu
		hi, _ := mulhsu64(int64(r1), r2)
		val = uint64(hi)
	case 0b011: // mulhu
		hi, _ := mulhu64(r1, r2)
		val = hi
	case 0b100: // div
		switch {
		case r2 == 0:
			val = ^uint64(0)
		case r1 == uint64(1)<<63 && r2 == ^uint64(0):
			val = r1
		default:
			val = uint64(int64(r1) / int64(r2))
		}
	case 0b101: // divu
		if r2 == 0 {
			val = ^uint64(0)
		} else {
			val = r1 / r2
		}
	case 0b110: // rem
		switch {
		case r2 == 0:
			val = r1
		case r1 == uint64(1)<<63 && r2 == ^uint64(0):
			val = 0
		default:
			val = uint64(int64(r1) % int64(r2))
		}
	case 0b111: // remu
		if r2 == 0 {
			val = r1
		} else {
			val = r1 % r2
		}
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
	h.SetReg(rd(insn), val)
	return nil
}

// execOp32 implements the restricted 0x3B table: addw, subw, sllw, srlw,
// divu (sic — a 32-bit word-width divu, not the WORD-suffixed divuw one
// might expect), sraw, remuw.
func (h *Hart) execOp32(insn uint32) error {
	r1, r2 := uint32(h.Reg(rs1(insn))), uint32(h.Reg(rs2(insn)))
	f3, f7 := funct3(insn), funct7(insn)

	var val int32
	switch {
	case f3 == 0b000 && f7 == 0b0000000:
		val = int32(r1) + int32(r2) // addw
	case f3 == 0b000 && f7 == 0b0100000:
		val = int32(r1) - int32(r2) // subw
	case f3 == 0b001:
		val = int32(r1 << (r2 & 0x1f)) // sllw
	case f3 == 0b101 && f7 == 0b0000000:
		val = int32(r1 >> (r2 & 0x1f)) // srlw
	case f3 == 0b101 && f7 == 0b0100000:
		val = int32(r1) >> (r2 & 0x1f) // sraw
	case f3 == 0b101 && f7 == 0b0000001:
		if r2 == 0 {
			val = -1
		} else {
			val = int32(r1 / r2) // divu
		}
	case f3 == 0b111 && f7 == 0b0000001:
		if r2 == 0 {
			val = int32(r1) // remuw
		} else {
			val = int32(r1 % r2)
		}
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
	h.SetReg(rd(insn), uint64(val))
	return nil
}

func (h *Hart) execMiscMem(insn uint32) error {
	switch funct3(insn) {
	case 0b000: // fence
		return nil
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}
}

// execAmo implements the restricted AMO set: amoadd.w/d, amoswap.w/d.
// aq/rl bits are ignored and the read-modify-write is non-atomic, which
// is sound on a single hart.
func (h *Hart) execAmo(insn uint32) error {
	addr := h.Reg(rs1(insn))
	f3 := funct3(insn)
	f5 := funct5(insn)

	var size uint64
	switch f3 {
	case 0b010:
		size = 32
	case 0b011:
		size = 64
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}

	pa, err := h.Translate(addr, AccessLoad)
	if err != nil {
		return err
	}
	old, err := h.Bus.Load(pa, size)
	if err != nil {
		return err
	}
	if size == 32 {
		old = uint64(int32(old))
	}

	src := h.Reg(rs2(insn))
	var result uint64
	switch f5 {
	case 0b00000: // amoadd
		result = old + src
	case 0b00001: // amoswap
		result = src
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}

	spa, err := h.Translate(addr, AccessStore)
	if err != nil {
		return err
	}
	if err := h.Bus.Store(spa, size, result); err != nil {
		return err
	}
	h.SetReg(rd(insn), old)
	return nil
}

func mulhu64(a, b uint64) (hi, lo uint64) {
	const mask32 = 0xffffffff
	a0, a1 := a&mask32, a>>32
	b0, b1 := b&mask32, b>>32

	p0 := a0 * b0
	p1 := a0 * b1
	p2 := a1 * b0
	p3 := a1 * b1

	carry := ((p0 >> 32) + (p1 & mask32) + (p2 & mask32)) >> 32
	hi = p3 + (p1 >> 32) + (p2 >> 32) + carry
	lo = a * b
	return hi, lo
}

func mulh64(a, b int64) (int64, uint64) {
	neg := (a < 0) != (b < 0)
	ua, ub := uint64(a), uint64(b)
	if a < 0 {
		ua = uint64(-a)
	}
	if b < 0 {
		ub = uint64(-b)
	}
	hi, lo := mulhu64(ua, ub)
	if neg {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	return int64(hi), lo
}

func mulhsu64(a int64, b uint64) (int64, uint64) {
	neg := a < 0
	ua := uint64(a)
	if a < 0 {
		ua = uint64(-a)
	}
	hi, lo := mulhu64(ua, b)
	if neg {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	return int64(hi), lo
}

// execSystem handles CSR instructions, ECALL/EBREAK, and the privileged
// return/fence instructions.
func (h *Hart) execSystem(insn uint32, next uint64) (uint64, error) {
	f3 := funct3(insn)
	if f3 == 0 {
		switch insn {
		case 0x0000_0073: // ecall
			switch h.Mode {
			case User:
				return next, Exc(EnvironmentCallFromUMode, h.PC)
			case Supervisor:
				return next, Exc(EnvironmentCallFromSMode, h.PC)
			default:
				return next, Exc(EnvironmentCallFromMMode, h.PC)
			}
		case 0x0010_0073: // ebreak
			return next, Exc(Breakpoint, h.PC)
		case 0x3020_0073: // mret
			return h.execMret(), nil
		case 0x1020_0073: // sret
			return h.execSret(), nil
		default:
			if (insn >> 25) == 0b0001001 { // sfence.vma
				return next, nil
			}
			return next, Exc(IllegalInstruction, uint64(insn))
		}
	}
	return next, h.execCSR(insn, f3)
}

func (h *Hart) execCSR(insn uint32, f3 uint32) error {
	csr := uint16(insn >> 20)
	rdReg, rs1Reg := rd(insn), rs1(insn)

	src := h.Reg(rs1Reg)
	if f3 >= 5 {
		src = uint64(rs1Reg)
	}

	old := h.CSR.Load(csr)

	var write uint64
	doWrite := true
	switch f3 & 3 {
	case 1: // csrrw(i)
		write = src
	case 2: // csrrs(i)
		write = old | src
		doWrite = rs1Reg != 0
	case 3: // csrrc(i)
		write = old &^ src
		doWrite = rs1Reg != 0
	default:
		return Exc(IllegalInstruction, uint64(insn))
	}

	if doWrite {
		h.CSR.Store(csr, write)
		if csr == CSRSatp {
			h.RefreshPaging()
		}
	}
	h.SetReg(rdReg, old)
	return nil
}

func (h *Hart) execMret() uint64 {
	status := h.CSR.Load(CSRMstatus)
	mpp := (status >> StatusMPPShift) & 0b11
	h.Mode = uint8(mpp)

	if status&StatusMPIE != 0 {
		status |= StatusMIE
	} else {
		status &^= StatusMIE
	}
	status |= StatusMPIE
	status &^= StatusMPP
	if h.Mode != Machine {
		status &^= StatusMPRV
	}

	h.CSR.Store(CSRMstatus, status)
	return h.CSR.Load(CSRMepc)
}

func (h *Hart) execSret() uint64 {
	status := h.CSR.Load(CSRMstatus)
	spp := (status >> StatusSPPShift) & 1
	if spp == 1 {
		h.Mode = Supervisor
	} else {
		h.Mode = User
	}

	if status&StatusSPIE != 0 {
		status |= StatusSIE
	} else {
		status &^= StatusSIE
	}
	status |= StatusSPIE
	status &^= StatusSPP

	h.CSR.Store(CSRMstatus, status)
	return h.CSR.Load(CSRSepc)
}
