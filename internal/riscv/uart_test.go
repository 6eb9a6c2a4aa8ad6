package riscv

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestUartWriteGoesToHostStdout(t *testing.T) {
	out := &bytes.Buffer{}
	u := NewUart(out, nil)

	for _, c := range "Hi\n" {
		if err := u.Store(UartTHR, 8, uint64(c)); err != nil {
			t.Fatal(err)
		}
	}
	if out.String() != "Hi\n" {
		t.Fatalf("got %q, want %q", out.String(), "Hi\n")
	}
}

func TestUartLSRTxEmptyAlwaysSet(t *testing.T) {
	u := NewUart(&bytes.Buffer{}, nil)
	lsr, err := u.Load(UartLSR, 8)
	if err != nil {
		t.Fatal(err)
	}
	if lsr&uint64(UartLSRTxEmpty) == 0 {
		t.Fatal("LSR TX-empty bit must always be set")
	}
}

// The background reader deposits a byte into RHR, sets LSR.RX, and raises
// IsInterrupting exactly once; reading RHR clears LSR.RX.
func TestUartInputReaderRaisesInterruptOnce(t *testing.T) {
	u := NewUart(&bytes.Buffer{}, strings.NewReader("A"))

	deadline := time.After(2 * time.Second)
	for {
		lsr, _ := u.Load(UartLSR, 8)
		if lsr&uint64(UartLSRRxReady) != 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for RHR to become ready")
		case <-time.After(time.Millisecond):
		}
	}

	if !u.IsInterrupting() {
		t.Fatal("expected IsInterrupting to report true once after a received byte")
	}
	if u.IsInterrupting() {
		t.Fatal("IsInterrupting must not fire twice for the same byte")
	}

	v, err := u.Load(UartRHR, 8)
	if err != nil {
		t.Fatal(err)
	}
	if v != 'A' {
		t.Fatalf("rhr = %q, want 'A'", v)
	}

	lsr, _ := u.Load(UartLSR, 8)
	if lsr&uint64(UartLSRRxReady) != 0 {
		t.Fatal("reading RHR must clear LSR.RX")
	}
}

func TestUartWrongSizeFaults(t *testing.T) {
	u := NewUart(&bytes.Buffer{}, nil)
	if _, err := u.Load(UartLSR, 32); err == nil {
		t.Fatal("expected a fault for a non-8-bit UART access")
	}
}
