package riscv

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrHalt is returned by Run once Halt has been called on the machine;
// otherwise Run continues until ctx is done or a fatal trap occurs.
var ErrHalt = errors.New("machine halted")

// VirtMachine wires a Hart to DRAM and the four MMIO devices, and drives
// the fetch/execute/trap/interrupt-check loop.
type VirtMachine struct {
	Hart   *Hart
	Bus    *Bus
	Clint  *Clint
	Plic   *Plic
	Uart   *Uart
	Virtio *Virtio

	// TickTimer, when set, advances Clint's mtime once per yieldAfter-sized
	// batch of Run's inner loop (not once per Step), so guests that rely
	// on the timer to preempt (xv6's scheduler does) see it move without
	// a caller driving it explicitly.
	TickTimer bool

	halted bool
}

// NewMachine builds a complete system: code is placed verbatim at DRAM
// base, disk becomes the virtio-blk backing store (nil or empty yields
// an empty disk). out/in drive the UART's host stdio; a nil in disables
// the UART's background reader goroutine.
func NewMachine(code, disk []byte, out io.Writer, in io.Reader) *VirtMachine {
	bus := NewBus(DramSize)
	hart := NewHart(bus)

	csr := hart.CSR
	clint := NewClint(csr)
	plic := NewPlic()
	uart := NewUart(out, in)
	virtio := NewVirtio(disk)

	bus.Attach(ClintBase, ClintSize, clint)
	bus.Attach(PlicBase, PlicSize, plic)
	bus.Attach(UartBase, UartSize, uart)
	bus.Attach(VirtioBase, VirtioSize, virtio)
	virtio.AttachBus(bus)

	bus.LoadImage(code)

	return &VirtMachine{
		Hart:   hart,
		Bus:    bus,
		Clint:  clint,
		Plic:   plic,
		Uart:   uart,
		Virtio: virtio,
	}
}

// Halt marks the machine as stopped; Run returns ErrHalt before it
// executes another instruction.
func (m *VirtMachine) Halt() { m.halted = true }

// IsHalted reports whether Halt has been called.
func (m *VirtMachine) IsHalted() bool { return m.halted }

// Step executes exactly one instruction: fetch, execute, and — if either
// raised a trap — deliver it, returning an error only when the trap is
// fatal (spec's fatality predicate). Otherwise it samples pending
// interrupts before returning.
func (m *VirtMachine) Step() error {
	pc := m.Hart.PC

	pa, err := m.Hart.Translate(pc, AccessInstruction)
	if err != nil {
		return m.deliver(err, pc)
	}
	word, err := m.Bus.Load(pa, 32)
	if err != nil {
		return m.deliver(err, pc)
	}

	if err := m.Hart.Execute(uint32(word)); err != nil {
		return m.deliver(err, pc)
	}

	m.checkInterrupts()
	return nil
}

func (m *VirtMachine) deliver(err error, pc uint64) error {
	trap, ok := err.(Trap)
	if !ok {
		return err
	}
	fatal := false
	if exc, ok := trap.(Exception); ok {
		fatal = exc.Kind.Fatal()
	}
	m.Hart.EnterTrap(trap, pc)
	if fatal {
		return trap
	}
	return nil
}

var interruptPriority = []struct {
	bit  uint64
	kind InterruptKind
}{
	{MipMEIP, MachineExternalInterrupt},
	{MipMSIP, MachineSoftwareInterrupt},
	{MipMTIP, MachineTimerInterrupt},
	{MipSEIP, SupervisorExternalInterrupt},
	{MipSSIP, SupervisorSoftwareInterrupt},
	{MipSTIP, SupervisorTimerInterrupt},
}

// checkInterrupts implements spec's interrupt-sampling pass: gated by
// the current mode's global enable, device sources sampled UART then
// VIRTIO, then the highest-priority pending-and-enabled bit is cleared
// and delivered.
func (m *VirtMachine) checkInterrupts() {
	csr := m.Hart.CSR
	status := csr.Load(CSRMstatus)
	if m.Hart.Mode == Machine && status&StatusMIE == 0 {
		return
	}
	if m.Hart.Mode == Supervisor && status&StatusSIE == 0 {
		return
	}

	if m.Uart.IsInterrupting() {
		m.Plic.Claim(UartIRQ)
		csr.Store(CSRMip, csr.Load(CSRMip)|MipSEIP)
	} else if m.Virtio.IsInterrupting() {
		m.Virtio.ServiceRequest()
		m.Plic.Claim(VirtioIRQ)
		csr.Store(CSRMip, csr.Load(CSRMip)|MipSEIP)
	}

	pending := csr.Load(CSRMie) & csr.Load(CSRMip)
	if pending == 0 {
		return
	}
	for _, p := range interruptPriority {
		if pending&p.bit != 0 {
			csr.Store(CSRMip, csr.Load(CSRMip)&^p.bit)
			m.Hart.EnterTrap(Interrupt{Kind: p.kind}, m.Hart.PC)
			return
		}
	}
}

// Run drives Step in batches of yieldAfter instructions, checking ctx
// between batches, until ctx is done, Halt is called, or Step returns a
// fatal trap.
func (m *VirtMachine) Run(ctx context.Context, yieldAfter int64) error {
	if yieldAfter <= 0 {
		yieldAfter = 100_000
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.halted {
			return ErrHalt
		}

		if m.TickTimer {
			m.Clint.Tick()
		}

		for i := int64(0); i < yieldAfter; i++ {
			if m.halted {
				return ErrHalt
			}
			pc := m.Hart.PC
			if err := m.Step(); err != nil {
				return fmt.Errorf("fatal trap at pc=0x%x: %w", pc, err)
			}
		}
	}
}
