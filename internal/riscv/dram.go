package riscv

import "encoding/binary"

// Dram is a byte-addressed backing store for guest physical memory,
// mapped at [DramBase, DramEnd]. All accesses are little-endian.
type Dram struct {
	mem []byte
}

// NewDram allocates a zeroed region of size bytes.
func NewDram(size uint64) *Dram {
	return &Dram{mem: make([]byte, size)}
}

// LoadImage copies code into the start of the backing store, as a kernel
// image is dropped into guest memory before the hart starts.
func (d *Dram) LoadImage(code []byte) {
	copy(d.mem, code)
}

func (d *Dram) bounds(addr, size uint64) (uint64, bool) {
	off := addr - DramBase
	n := size / 8
	if n == 0 || off+n > uint64(len(d.mem)) || off > off+n {
		return 0, false
	}
	return off, true
}

// Load reads size bits (8, 16, 32, or 64) from addr and zero-extends the
// result into a uint64. Any other size, or an out-of-range address,
// yields LoadAccessFault.
func (d *Dram) Load(addr, size uint64) (uint64, error) {
	off, ok := d.bounds(addr, size)
	if !ok {
		return 0, Exc(LoadAccessFault, addr)
	}
	switch size {
	case 8:
		return uint64(d.mem[off]), nil
	case 16:
		return uint64(binary.LittleEndian.Uint16(d.mem[off:])), nil
	case 32:
		return uint64(binary.LittleEndian.Uint32(d.mem[off:])), nil
	case 64:
		return binary.LittleEndian.Uint64(d.mem[off:]), nil
	default:
		return 0, Exc(LoadAccessFault, addr)
	}
}

// Store writes the low size bits (8, 16, 32, or 64) of value to addr. Any
// other size, or an out-of-range address, yields StoreAMOAccessFault.
func (d *Dram) Store(addr, size, value uint64) error {
	off, ok := d.bounds(addr, size)
	if !ok {
		return Exc(StoreAMOAccessFault, addr)
	}
	switch size {
	case 8:
		d.mem[off] = byte(value)
	case 16:
		binary.LittleEndian.PutUint16(d.mem[off:], uint16(value))
	case 32:
		binary.LittleEndian.PutUint32(d.mem[off:], uint32(value))
	case 64:
		binary.LittleEndian.PutUint64(d.mem[off:], value)
	default:
		return Exc(StoreAMOAccessFault, addr)
	}
	return nil
}
