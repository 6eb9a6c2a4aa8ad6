package riscv

import "testing"

func TestSstatusAliasPreservesComplementBits(t *testing.T) {
	c := &CSRFile{}
	c.Store(CSRMstatus, StatusMPP|StatusSD) // bits outside SstatusMask
	before := c.Load(CSRMstatus) &^ SstatusMask

	c.Store(CSRSstatus, StatusSIE|StatusSPIE)

	after := c.Load(CSRMstatus) &^ SstatusMask
	if after != before {
		t.Fatalf("non-aliased mstatus bits changed: before=0x%x after=0x%x", before, after)
	}
	if c.Load(CSRSstatus)&(StatusSIE|StatusSPIE) != StatusSIE|StatusSPIE {
		t.Fatalf("sstatus did not retain the written S-visible bits")
	}
}

func TestSieAliasMasksByMideleg(t *testing.T) {
	c := &CSRFile{}
	c.Store(CSRMideleg, MipSSIP|MipSTIP)
	c.Store(CSRMie, MipMEIP) // pre-existing M-only bit

	c.Store(CSRSie, MipSSIP|MipSTIP|MipMEIP) // write attempts an M-only bit too

	gotMie := c.Load(CSRMie)
	wantMie := MipMEIP | MipSSIP | MipSTIP
	if gotMie != wantMie {
		t.Fatalf("mie = 0x%x, want 0x%x", gotMie, wantMie)
	}
	if c.Load(CSRSie) != MipSSIP|MipSTIP {
		t.Fatalf("sie read exposed bits outside mideleg")
	}
}

func TestSipAliasMasksByMideleg(t *testing.T) {
	c := &CSRFile{}
	c.Store(CSRMideleg, MipSTIP)
	c.Store(CSRMip, MipMTIP)

	c.Store(CSRSip, MipSTIP|MipMTIP) // the MTIP bit should be dropped

	if c.Load(CSRMip) != MipMTIP|MipSTIP {
		t.Fatalf("mip = 0x%x, want MTIP|STIP", c.Load(CSRMip))
	}
	if c.Load(CSRSip) != MipSTIP {
		t.Fatalf("sip = 0x%x, want STIP only", c.Load(CSRSip))
	}
}

func TestDelegationQueries(t *testing.T) {
	c := &CSRFile{}
	c.Store(CSRMedeleg, 1<<8)
	c.Store(CSRMideleg, 1<<5)

	if !c.IsMedelegated(8) || c.IsMedelegated(9) {
		t.Fatal("IsMedelegated disagrees with MEDELEG bit 8")
	}
	if !c.IsMidelegated(5) || c.IsMidelegated(1) {
		t.Fatal("IsMidelegated disagrees with MIDELEG bit 5")
	}
}

// Scenario 7: CSR exercise.
func TestCSRExercise(t *testing.T) {
	h := newTestHart()
	t0, t1, t2 := uint32(5), uint32(6), uint32(7)
	h.X[t0], h.X[t1], h.X[t2] = 1, 2, 3

	var pc uint64
	emit := func(insn uint32) {
		h.loadWord(pc-DramBase, insn)
		pc += 4
	}
	pc = DramBase

	emit(csrrw(0, uint32(CSRMstatus), t0)) // csrrw zero, mstatus, t0
	emit(csrrw(0, uint32(CSRMtvec), t1))   // csrrw zero, mtvec, t1
	emit(csrrw(0, uint32(CSRMepc), t2))    // csrrw zero, mepc, t2

	for i := 0; i < 3; i++ {
		if err := h.stepOne(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if got := h.CSR.Load(CSRMstatus); got != 1 {
		t.Errorf("mstatus = %d, want 1", got)
	}
	if got := h.CSR.Load(CSRMtvec); got != 2 {
		t.Errorf("mtvec = %d, want 2", got)
	}
	if got := h.CSR.Load(CSRMepc); got != 3 {
		t.Errorf("mepc = %d, want 3", got)
	}
}
