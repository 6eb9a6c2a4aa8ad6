package riscv

// statusTuple names the four CSR addresses and the status bit positions
// a trap delivered to one mode must read and write. Exceptions and
// interrupts share this single routine to avoid the two paths drifting
// apart.
type statusTuple struct {
	tvec, cause, tval, epc uint16

	pieMask, pieShift uint64
	ieMask, ieShift   uint64
	ppMask, ppShift   uint64
}

var supervisorTuple = statusTuple{
	tvec: CSRStvec, cause: CSRScause, tval: CSRStval, epc: CSRSepc,
	pieMask: StatusSPIE, pieShift: 5,
	ieMask: StatusSIE, ieShift: 1,
	ppMask: StatusSPP, ppShift: StatusSPPShift,
}

var machineTuple = statusTuple{
	tvec: CSRMtvec, cause: CSRMcause, tval: CSRMtval, epc: CSRMepc,
	pieMask: StatusMPIE, pieShift: 7,
	ieMask: StatusMIE, ieShift: 3,
	ppMask: StatusMPP, ppShift: StatusMPPShift,
}

// EnterTrap delivers trap, raised while the hart's PC was at pc, by
// mutating the CSR file and redirecting h.PC. A delegation test picks
// Supervisor or Machine as the target mode, then a single
// status-rotation routine runs regardless of which mode, or whether
// trap is an exception or an interrupt.
func (h *Hart) EnterTrap(trap Trap, pc uint64) {
	cause := trap.Code()
	causeIndex := cause &^ (uint64(1) << 63)

	delegated := h.Mode <= Supervisor
	if delegated {
		if trap.IsInterrupt() {
			delegated = h.CSR.IsMidelegated(causeIndex)
		} else {
			delegated = h.CSR.IsMedelegated(causeIndex)
		}
	}

	tuple := machineTuple
	target := Machine
	if delegated {
		tuple = supervisorTuple
		target = Supervisor
	}

	tvec := h.CSR.Load(tuple.tvec)
	var newPC uint64
	if trap.IsInterrupt() && tvec&0b11 == 1 {
		newPC = (tvec &^ 0b11) + causeIndex*4
	} else {
		newPC = tvec &^ 0b11
	}

	h.CSR.Store(tuple.epc, pc)
	h.CSR.Store(tuple.cause, cause)
	h.CSR.Store(tuple.tval, trap.Tval())

	status := h.CSR.Load(CSRMstatus)
	ie := (status & tuple.ieMask) >> tuple.ieShift
	status = (status &^ tuple.pieMask) | (ie << tuple.pieShift)
	status &^= tuple.ieMask
	status = (status &^ tuple.ppMask) | (uint64(h.Mode) << tuple.ppShift)
	h.CSR.Store(CSRMstatus, status)

	h.Mode = target
	h.PC = newPC
}
