package riscv

import (
	"io"
	"sync"
	"sync/atomic"
)

// Uart is a 16550 subset: RHR/THR at offset 0, LCR at offset 3, LSR at
// offset 5. Only 8-bit accesses are legal. A background goroutine reads
// one byte at a time from in and deposits it into rhr, waiting on a
// condition variable until the guest has consumed the previous byte.
// interrupting is a release/acquire atomic latch set once per received
// byte and consumed by IsInterrupting.
//
// regs backs every offset this model does not give special handling:
// unimplemented registers (IER, FCR, and the rest of the 16550's
// register file) read back whatever was last written, defaulting to 0,
// the same laxity already given to the PLIC's unknown offsets. Real
// guests (xv6's uartinit) write IER and FCR during boot and expect that
// to be harmless.
type Uart struct {
	mu   sync.Mutex
	cond *sync.Cond

	rhr     uint8
	rxReady bool
	lcr     uint8
	regs    [UartSize]uint8

	out io.Writer

	interrupting atomic.Bool
}

// NewUart starts a UART whose THR writes go to out and whose background
// reader consumes bytes from in. A nil in disables the reader goroutine
// (useful for tests that never exercise guest input).
func NewUart(out io.Writer, in io.Reader) *Uart {
	u := &Uart{out: out}
	u.cond = sync.NewCond(&u.mu)
	if in != nil {
		go u.readLoop(in)
	}
	return u
}

func (u *Uart) readLoop(in io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		u.mu.Lock()
		for u.rxReady {
			u.cond.Wait()
		}
		u.rhr = buf[0]
		u.rxReady = true
		u.interrupting.Store(true)
		u.mu.Unlock()
	}
}

func (u *Uart) Load(offset, size uint64) (uint64, error) {
	if size != 8 {
		return 0, Exc(LoadAccessFault, UartBase+offset)
	}
	switch offset {
	case UartRHR:
		u.mu.Lock()
		defer u.mu.Unlock()
		v := u.rhr
		if u.rxReady {
			u.rxReady = false
			u.cond.Signal()
		}
		return uint64(v), nil
	case UartLCR:
		u.mu.Lock()
		defer u.mu.Unlock()
		return uint64(u.lcr), nil
	case UartLSR:
		return uint64(u.lsr()), nil
	default:
		if offset >= UartSize {
			return 0, Exc(LoadAccessFault, UartBase+offset)
		}
		u.mu.Lock()
		defer u.mu.Unlock()
		return uint64(u.regs[offset]), nil
	}
}

func (u *Uart) lsr() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	lsr := UartLSRTxEmpty
	if u.rxReady {
		lsr |= UartLSRRxReady
	}
	return lsr
}

func (u *Uart) Store(offset, size, value uint64) error {
	if size != 8 {
		return Exc(StoreAMOAccessFault, UartBase+offset)
	}
	switch offset {
	case UartTHR:
		if u.out != nil {
			u.out.Write([]byte{byte(value)})
		}
		return nil
	case UartLCR:
		u.mu.Lock()
		u.lcr = byte(value)
		u.mu.Unlock()
		return nil
	default:
		if offset >= UartSize {
			return Exc(StoreAMOAccessFault, UartBase+offset)
		}
		u.mu.Lock()
		u.regs[offset] = byte(value)
		u.mu.Unlock()
		return nil
	}
}

// IsInterrupting reports, and clears, the pending-byte latch: it returns
// true exactly once per received byte.
func (u *Uart) IsInterrupting() bool {
	return u.interrupting.CompareAndSwap(true, false)
}

var _ Device = (*Uart)(nil)
