package riscv

// Plic is a drastically simplified Platform-Level Interrupt Controller:
// four fixed 32-bit registers (pending, senable, spriority, sclaim).
// Only 32-bit accesses are legal. Unlike a real PLIC, unknown offsets do
// not fault: they read as 0 and absorb writes, because xv6 probes offsets
// this model does not implement and expects that to be harmless.
type Plic struct {
	pending   uint32
	senable   uint32
	spriority uint32
	sclaim    uint32
}

func NewPlic() *Plic { return &Plic{} }

func (p *Plic) Load(offset, size uint64) (uint64, error) {
	if size != 32 {
		return 0, Exc(LoadAccessFault, PlicBase+offset)
	}
	switch offset {
	case PlicPending:
		return uint64(p.pending), nil
	case PlicSenable:
		return uint64(p.senable), nil
	case PlicSpriority:
		return uint64(p.spriority), nil
	case PlicSclaim:
		return uint64(p.sclaim), nil
	default:
		return 0, nil
	}
}

func (p *Plic) Store(offset, size, value uint64) error {
	if size != 32 {
		return Exc(StoreAMOAccessFault, PlicBase+offset)
	}
	switch offset {
	case PlicPending:
		p.pending = uint32(value)
	case PlicSenable:
		p.senable = uint32(value)
	case PlicSpriority:
		p.spriority = uint32(value)
	case PlicSclaim:
		p.sclaim = uint32(value)
	}
	return nil
}

// Claim records irq as the outstanding claim, as the CPU does when a
// device signals an interrupt.
func (p *Plic) Claim(irq uint32) {
	p.sclaim = irq
}

var _ Device = (*Plic)(nil)
