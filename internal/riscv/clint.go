package riscv

// Clint is the Core-Local Interruptor: a 64-bit mtime counter compared
// against mtimecmp to raise the machine timer interrupt. Only 64-bit
// accesses are legal; unknown offsets fault.
type Clint struct {
	csr *CSRFile

	mtime    uint64
	mtimecmp uint64
}

// NewClint creates a CLINT that sets MIP.MTIP on csr when mtime reaches
// mtimecmp.
func NewClint(csr *CSRFile) *Clint {
	return &Clint{csr: csr, mtimecmp: ^uint64(0)}
}

func (c *Clint) Load(offset, size uint64) (uint64, error) {
	if size != 64 {
		return 0, Exc(LoadAccessFault, ClintBase+offset)
	}
	switch offset {
	case ClintMtimecmp:
		return c.mtimecmp, nil
	case ClintMtime:
		return c.mtime, nil
	default:
		return 0, Exc(LoadAccessFault, ClintBase+offset)
	}
}

func (c *Clint) Store(offset, size, value uint64) error {
	if size != 64 {
		return Exc(StoreAMOAccessFault, ClintBase+offset)
	}
	switch offset {
	case ClintMtimecmp:
		c.mtimecmp = value
		if c.mtime < c.mtimecmp {
			c.csr.regs[CSRMip] &^= MipMTIP
		}
	case ClintMtime:
		c.mtime = value
	default:
		return Exc(StoreAMOAccessFault, ClintBase+offset)
	}
	return nil
}

// Tick advances mtime by one and raises MIP.MTIP once it reaches
// mtimecmp. The core does not call this on its own (spec.md §5 leaves
// mtime auto-advance optional); cmd/rv64emu's -tick-timer flag drives it
// from the main loop.
func (c *Clint) Tick() {
	c.mtime++
	if c.mtime >= c.mtimecmp {
		c.csr.regs[CSRMip] |= MipMTIP
	}
}

var _ Device = (*Clint)(nil)
