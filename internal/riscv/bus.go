package riscv

// Device is a memory-mapped peripheral. load/store operate on offsets
// relative to the device's base address; size is in bits. Devices signal
// an invalid size or offset by returning an Exception.
type Device interface {
	Load(offset, size uint64) (uint64, error)
	Store(offset, size, value uint64) error
}

type region struct {
	base, end uint64
	dev       Device
}

// Bus is the single choke point that routes a physical address to DRAM
// or one of the four MMIO devices, faulting on unmapped ranges.
type Bus struct {
	dram    *Dram
	devices []region
}

// NewBus creates a bus with size bytes of DRAM at DramBase and no
// devices attached.
func NewBus(size uint64) *Bus {
	return &Bus{dram: NewDram(size)}
}

// Attach maps dev into [base, base+size).
func (b *Bus) Attach(base, size uint64, dev Device) {
	b.devices = append(b.devices, region{base: base, end: base + size - 1, dev: dev})
}

// Dram returns the bus's backing DRAM, for image loading.
func (b *Bus) Dram() *Dram { return b.dram }

// Load reads size bits from addr, dispatching to DRAM or the owning
// device. Unmapped addresses fault with LoadAccessFault.
func (b *Bus) Load(addr, size uint64) (uint64, error) {
	if addr >= DramBase && addr <= DramEnd {
		return b.dram.Load(addr, size)
	}
	for _, r := range b.devices {
		if addr >= r.base && addr <= r.end {
			return r.dev.Load(addr-r.base, size)
		}
	}
	return 0, Exc(LoadAccessFault, addr)
}

// Store writes the low size bits of value to addr, dispatching to DRAM
// or the owning device. Unmapped addresses fault with StoreAMOAccessFault.
func (b *Bus) Store(addr, size, value uint64) error {
	if addr >= DramBase && addr <= DramEnd {
		return b.dram.Store(addr, size, value)
	}
	for _, r := range b.devices {
		if addr >= r.base && addr <= r.end {
			return r.dev.Store(addr-r.base, size, value)
		}
	}
	return Exc(StoreAMOAccessFault, addr)
}

// LoadImage copies code verbatim into DRAM starting at DramBase.
func (b *Bus) LoadImage(code []byte) {
	b.dram.LoadImage(code)
}
