package riscv

const virtioNotifyNone = 9999

// Virtio is a legacy (pre-1.0) MMIO virtio-blk device. Reads return
// fixed magic/version/device-id/vendor-id plus mutable config fields.
// Only 32-bit accesses are legal. A guest write to QUEUE_NOTIFY latches a
// pending interrupt consumed by IsInterrupting; the machine's interrupt
// check then calls ServiceRequest, so one descriptor chain is serviced
// per notify.
type Virtio struct {
	driverFeatures uint64
	pageSize       uint64
	queueSel       uint64
	queueNum       uint64
	queuePFN       uint64
	queueNotify    uint64
	status         uint64

	disk []byte
	bus  *Bus
	id   uint64
}

// NewVirtio creates a virtio-blk device backed by disk (the raw disk
// image, mutated in place; not flushed back to the host filesystem).
func NewVirtio(disk []byte) *Virtio {
	return &Virtio{queueNotify: virtioNotifyNone, disk: disk}
}

// AttachBus wires the device to the bus it must read guest memory
// through when servicing a descriptor chain. Called once, after the bus
// that owns this device has been constructed.
func (v *Virtio) AttachBus(bus *Bus) { v.bus = bus }

func (v *Virtio) Load(offset, size uint64) (uint64, error) {
	if size != 32 {
		return 0, Exc(LoadAccessFault, VirtioBase+offset)
	}
	switch offset {
	case VirtioMagic:
		return VirtioMagicValue, nil
	case VirtioVersion:
		return VirtioVersionNum, nil
	case VirtioDeviceID:
		return VirtioDeviceIDNum, nil
	case VirtioVendorID:
		return VirtioVendorIDNum, nil
	case VirtioDeviceFeatures:
		return 0, nil
	case VirtioDriverFeatures:
		return v.driverFeatures, nil
	case VirtioQueueNumMax:
		return VirtioQueueMax, nil
	case VirtioQueuePFN:
		return v.queuePFN, nil
	case VirtioStatus:
		return v.status, nil
	default:
		return 0, nil
	}
}

func (v *Virtio) Store(offset, size, value uint64) error {
	if size != 32 {
		return Exc(StoreAMOAccessFault, VirtioBase+offset)
	}
	switch offset {
	case VirtioDriverFeatures:
		v.driverFeatures = value
	case VirtioGuestPageSize:
		v.pageSize = value
	case VirtioQueueSel:
		v.queueSel = value
	case VirtioQueueNum:
		v.queueNum = value
	case VirtioQueuePFN:
		v.queuePFN = value
	case VirtioQueueNotify:
		v.queueNotify = value
	case VirtioStatus:
		v.status = value
	}
	return nil
}

// IsInterrupting reports, and clears, the queue-notify latch.
func (v *Virtio) IsInterrupting() bool {
	if v.queueNotify != virtioNotifyNone {
		v.queueNotify = virtioNotifyNone
		return true
	}
	return false
}

func (v *Virtio) descAddr() uint64 { return v.queuePFN * v.guestPageSize() }

func (v *Virtio) guestPageSize() uint64 {
	if v.pageSize != 0 {
		return v.pageSize
	}
	return PageSize
}

func (v *Virtio) load64(addr uint64) (uint64, error) { return v.bus.Load(addr, 64) }
func (v *Virtio) load32(addr uint64) (uint32, error) {
	x, err := v.bus.Load(addr, 32)
	return uint32(x), err
}
func (v *Virtio) load16(addr uint64) (uint16, error) {
	x, err := v.bus.Load(addr, 16)
	return uint16(x), err
}

// ServiceRequest walks one descriptor chain off the available ring and
// performs the requested disk read or write, following the legacy
// virtio-blk layout: a header descriptor {iotype, reserved, sector}
// chained via `next` to a data descriptor {addr, len}.
func (v *Virtio) ServiceRequest() error {
	descAddr := v.descAddr()
	availAddr := descAddr + DescNum*16
	usedAddr := descAddr + 4096

	idx, err := v.load16(availAddr + 2)
	if err != nil {
		return err
	}
	head, err := v.load16(availAddr + 4 + (uint64(idx)%DescNum)*2)
	if err != nil {
		return err
	}

	desc0 := descAddr + 16*uint64(head)
	headerAddr, err := v.load64(desc0)
	if err != nil {
		return err
	}
	next0, err := v.load16(desc0 + 14)
	if err != nil {
		return err
	}

	iotype, err := v.load32(headerAddr)
	if err != nil {
		return err
	}
	sector, err := v.load64(headerAddr + 8)
	if err != nil {
		return err
	}

	desc1 := descAddr + 16*uint64(next0)
	dataAddr, err := v.load64(desc1)
	if err != nil {
		return err
	}
	dataLen, err := v.load32(desc1 + 8)
	if err != nil {
		return err
	}

	for i := uint64(0); i < uint64(dataLen); i++ {
		diskOff := sector*SectorSize + i
		if diskOff >= uint64(len(v.disk)) {
			break
		}
		switch iotype {
		case VirtioBlkTOut:
			b, err := v.bus.Load(dataAddr+i, 8)
			if err != nil {
				return err
			}
			v.disk[diskOff] = byte(b)
		case VirtioBlkTIn:
			if err := v.bus.Store(dataAddr+i, 8, uint64(v.disk[diskOff])); err != nil {
				return err
			}
		}
	}

	id := v.nextID()
	return v.bus.Store(usedAddr+2, 16, id%DescNum)
}

func (v *Virtio) nextID() uint64 {
	v.id++
	return v.id
}

var _ Device = (*Virtio)(nil)
