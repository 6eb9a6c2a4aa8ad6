package riscv

import "testing"

// Scenario 8: ecall in U-mode with MEDELEG=0 traps to Machine mode.
func TestEcallUndelegatedGoesToMachine(t *testing.T) {
	h := newTestHart()
	h.Mode = User
	h.CSR.Store(CSRMtvec, 0x8000_1000)
	pc := h.PC

	h.EnterTrap(Exc(EnvironmentCallFromUMode, pc), pc)

	if h.Mode != Machine {
		t.Fatalf("mode = %d, want Machine", h.Mode)
	}
	if h.CSR.Load(CSRMcause) != 8 {
		t.Fatalf("mcause = %d, want 8", h.CSR.Load(CSRMcause))
	}
	if h.CSR.Load(CSRMepc) != pc {
		t.Fatalf("mepc = 0x%x, want 0x%x", h.CSR.Load(CSRMepc), pc)
	}
	if h.PC != 0x8000_1000 {
		t.Fatalf("pc = 0x%x, want mtvec & ~3", h.PC)
	}
}

// Same scenario but with MEDELEG bit 8 set: delegated to Supervisor.
func TestEcallDelegatedGoesToSupervisor(t *testing.T) {
	h := newTestHart()
	h.Mode = User
	h.CSR.Store(CSRMedeleg, 1<<8)
	h.CSR.Store(CSRStvec, 0x8000_2000)
	pc := h.PC

	h.EnterTrap(Exc(EnvironmentCallFromUMode, pc), pc)

	if h.Mode != Supervisor {
		t.Fatalf("mode = %d, want Supervisor", h.Mode)
	}
	if h.CSR.Load(CSRScause) != 8 {
		t.Fatalf("scause = %d, want 8", h.CSR.Load(CSRScause))
	}
	if h.CSR.Load(CSRSepc) != pc {
		t.Fatalf("sepc = 0x%x, want 0x%x", h.CSR.Load(CSRSepc), pc)
	}
	if h.PC != 0x8000_2000 {
		t.Fatalf("pc = 0x%x, want stvec & ~3", h.PC)
	}
}

// After trap delivery, xPIE must hold the pre-trap xIE, xIE must be clear,
// and xPP must hold the pre-trap mode.
func TestTrapStatusRotation(t *testing.T) {
	h := newTestHart()
	h.Mode = Supervisor
	h.CSR.Store(CSRMedeleg, 1<<13) // delegate LoadPageFault
	h.CSR.Store(CSRMstatus, StatusSIE)

	h.EnterTrap(Exc(LoadPageFault, 0x1234), h.PC)

	status := h.CSR.Load(CSRMstatus)
	if status&StatusSPIE == 0 {
		t.Fatal("spie should carry the pre-trap sie value (1)")
	}
	if status&StatusSIE != 0 {
		t.Fatal("sie should be cleared on trap entry")
	}
	if (status>>StatusSPPShift)&1 != 1 {
		t.Fatal("spp should record the pre-trap mode (Supervisor=1)")
	}
	if h.CSR.Load(CSRStval) != 0x1234 {
		t.Fatalf("stval = 0x%x, want 0x1234", h.CSR.Load(CSRStval))
	}
}

func TestVectoredInterruptOffsetsByCause(t *testing.T) {
	h := newTestHart()
	h.CSR.Store(CSRMtvec, 0x8000_0000|1) // vectored mode
	h.EnterTrap(Interrupt{Kind: MachineTimerInterrupt}, h.PC)
	if h.PC != 0x8000_0000+uint64(MachineTimerInterrupt)*4 {
		t.Fatalf("pc = 0x%x, want vectored offset", h.PC)
	}
}

func TestMretRestoresModeAndStatus(t *testing.T) {
	h := newTestHart()
	h.Mode = Machine
	h.CSR.Store(CSRMstatus, StatusMPIE|(uint64(User)<<StatusMPPShift)|StatusMPRV)
	h.CSR.Store(CSRMepc, DramBase+0x40)

	next, err := h.execSystem(0x3020_0073, h.PC+4)
	if err != nil {
		t.Fatal(err)
	}
	h.PC = next

	if h.Mode != User {
		t.Fatalf("mode = %d, want User", h.Mode)
	}
	if h.PC != DramBase+0x40 {
		t.Fatalf("pc = 0x%x, want mepc", h.PC)
	}
	status := h.CSR.Load(CSRMstatus)
	if status&StatusMIE == 0 {
		t.Fatal("mie should be set from mpie")
	}
	if status&StatusMPRV != 0 {
		t.Fatal("mprv must clear when the new mode is not Machine")
	}
}

func TestSretRestoresModeAndStatus(t *testing.T) {
	h := newTestHart()
	h.Mode = Supervisor
	h.CSR.Store(CSRMstatus, StatusSPIE|StatusSPP)
	h.CSR.Store(CSRSepc, DramBase+0x80)

	next, err := h.execSystem(0x1020_0073, h.PC+4)
	if err != nil {
		t.Fatal(err)
	}
	h.PC = next

	if h.Mode != Supervisor {
		t.Fatalf("mode = %d, want Supervisor (spp was 1)", h.Mode)
	}
	if h.PC != DramBase+0x80 {
		t.Fatalf("pc = 0x%x, want sepc", h.PC)
	}
	if h.CSR.Load(CSRMstatus)&StatusSIE == 0 {
		t.Fatal("sie should be set from spie")
	}
}

func TestFatalityPredicate(t *testing.T) {
	fatal := []ExceptionKind{
		InstructionAddressMisaligned, InstructionAccessFault,
		LoadAccessFault, StoreAMOAddressMisaligned,
		StoreAMOAccessFault, IllegalInstruction,
	}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%v should be fatal", k)
		}
	}
	nonFatal := []ExceptionKind{Breakpoint, LoadPageFault, EnvironmentCallFromUMode}
	for _, k := range nonFatal {
		if k.Fatal() {
			t.Errorf("%v should not be fatal", k)
		}
	}
	if (Interrupt{Kind: MachineTimerInterrupt}).IsInterrupt() != true {
		t.Fatal("interrupts must report IsInterrupt true")
	}
}
