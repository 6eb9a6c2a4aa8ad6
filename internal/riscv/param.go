// Package riscv implements a single-hart RV64IMA + Zicsr + Sv39 emulator
// with a memory-mapped device set resembling QEMU's virt machine.
package riscv

// Physical memory map, following QEMU's virt machine layout
// (https://github.com/qemu/qemu/blob/master/hw/riscv/virt.c).
const (
	DramBase uint64 = 0x8000_0000
	DramSize uint64 = 128 * 1024 * 1024
	DramEnd  uint64 = DramBase + DramSize - 1

	ClintBase uint64 = 0x0200_0000
	ClintSize uint64 = 0x10000
	ClintEnd  uint64 = ClintBase + ClintSize - 1

	PlicBase uint64 = 0x0c00_0000
	PlicSize uint64 = 0x0400_0000
	PlicEnd  uint64 = PlicBase + PlicSize - 1

	UartBase uint64 = 0x1000_0000
	UartSize uint64 = 0x100
	UartEnd  uint64 = UartBase + UartSize - 1

	VirtioBase uint64 = 0x1000_1000
	VirtioSize uint64 = 0x1000
	VirtioEnd  uint64 = VirtioBase + VirtioSize - 1
)

// CLINT register offsets.
const (
	ClintMtimecmp uint64 = 0x4000
	ClintMtime    uint64 = 0xbff8
)

// PLIC register offsets.
const (
	PlicPending   uint64 = 0x1000
	PlicSenable   uint64 = 0x2000
	PlicSpriority uint64 = 0x201000
	PlicSclaim    uint64 = 0x201004
)

// IRQ numbers claimed through PLIC_SCLAIM.
const (
	UartIRQ   uint32 = 10
	VirtioIRQ uint32 = 1
)

// UART register offsets (16550 subset).
const (
	UartRHR uint64 = 0 // = UartTHR
	UartTHR uint64 = 0
	UartLCR uint64 = 3
	UartLSR uint64 = 5
)

// UART LSR bits.
const (
	UartLSRRxReady uint8 = 1 << 0
	UartLSRTxEmpty uint8 = 1 << 5
)

// Legacy virtio-blk MMIO register offsets.
const (
	VirtioMagic          uint64 = 0x000
	VirtioVersion        uint64 = 0x004
	VirtioDeviceID       uint64 = 0x008
	VirtioVendorID       uint64 = 0x00c
	VirtioDeviceFeatures uint64 = 0x010
	VirtioDriverFeatures uint64 = 0x020
	VirtioGuestPageSize  uint64 = 0x028
	VirtioQueueSel       uint64 = 0x030
	VirtioQueueNumMax    uint64 = 0x034
	VirtioQueueNum       uint64 = 0x038
	VirtioQueuePFN       uint64 = 0x040
	VirtioQueueNotify    uint64 = 0x050
	VirtioStatus         uint64 = 0x070
)

const (
	VirtioMagicValue  uint64 = 0x7472_6976
	VirtioVersionNum  uint64 = 1
	VirtioDeviceIDNum uint64 = 2
	VirtioVendorIDNum uint64 = 0x554d_4551
	VirtioQueueMax    uint64 = 8

	PageSize   uint64 = 4096
	SectorSize uint64 = 512
	DescNum    uint64 = 8

	VirtioBlkTIn  uint32 = 0
	VirtioBlkTOut uint32 = 1
)

// Privilege modes.
const (
	User       uint8 = 0b00
	Supervisor uint8 = 0b01
	Machine    uint8 = 0b11
)

// CSR addresses used by this core.
const (
	CSRSstatus  uint16 = 0x100
	CSRSie      uint16 = 0x104
	CSRStvec    uint16 = 0x105
	CSRSscratch uint16 = 0x140
	CSRSepc     uint16 = 0x141
	CSRScause   uint16 = 0x142
	CSRStval    uint16 = 0x143
	CSRSip      uint16 = 0x144
	CSRSatp     uint16 = 0x180

	CSRMstatus  uint16 = 0x300
	CSRMedeleg  uint16 = 0x302
	CSRMideleg  uint16 = 0x303
	CSRMie      uint16 = 0x304
	CSRMtvec    uint16 = 0x305
	CSRMscratch uint16 = 0x340
	CSRMepc     uint16 = 0x341
	CSRMcause   uint16 = 0x342
	CSRMtval    uint16 = 0x343
	CSRMip      uint16 = 0x344
)

// mstatus / sstatus bit positions and masks (fixed by the ISA).
const (
	StatusSIE  uint64 = 1 << 1
	StatusMIE  uint64 = 1 << 3
	StatusSPIE uint64 = 1 << 5
	StatusUBE  uint64 = 1 << 6
	StatusMPIE uint64 = 1 << 7
	StatusSPP  uint64 = 1 << 8
	StatusMPP  uint64 = 0b11 << 11
	StatusFS   uint64 = 0b11 << 13
	StatusXS   uint64 = 0b11 << 15
	StatusMPRV uint64 = 1 << 17
	StatusSUM  uint64 = 1 << 18
	StatusMXR  uint64 = 1 << 19
	StatusUXL  uint64 = 0b11 << 32
	StatusSD   uint64 = 1 << 63

	StatusSPPShift = 8
	StatusMPPShift = 11
)

// SstatusMask is the subset of MSTATUS bits visible through the SSTATUS
// alias.
const SstatusMask = StatusSIE | StatusSPIE | StatusUBE | StatusSPP |
	StatusFS | StatusXS | StatusSUM | StatusMXR | StatusUXL | StatusSD

// mip / mie bit masks.
const (
	MipSSIP uint64 = 1 << 1
	MipMSIP uint64 = 1 << 3
	MipSTIP uint64 = 1 << 5
	MipMTIP uint64 = 1 << 7
	MipSEIP uint64 = 1 << 9
	MipMEIP uint64 = 1 << 11
)

// SATP MODE field values.
const (
	SatpModeBare uint64 = 0
	SatpModeSv39 uint64 = 8
)

// Sv39 paging constants.
const (
	PteV = 1 << 0
	PteR = 1 << 1
	PteW = 1 << 2
	PteX = 1 << 3
)
