package riscv

// AccessType selects which page-fault exception a failed translation
// raises.
type AccessType int

const (
	AccessInstruction AccessType = iota
	AccessLoad
	AccessStore
)

func (a AccessType) fault() ExceptionKind {
	switch a {
	case AccessInstruction:
		return InstructionPageFault
	case AccessStore:
		return StoreAMOPageFault
	default:
		return LoadPageFault
	}
}

// Translate walks the Sv39 page table rooted at h.PageTable to convert
// virtual address va into a physical address, or returns the page-fault
// matching kind. If paging is disabled the address passes through
// unchanged. Per-access permission checks (R/W/X/U vs. mode, SUM, MXR)
// and accessed/dirty bit updates are intentionally not performed.
func (h *Hart) Translate(va uint64, kind AccessType) (uint64, error) {
	if !h.EnablePaging {
		return va, nil
	}

	vpn := [3]uint64{
		(va >> 12) & 0x1ff,
		(va >> 21) & 0x1ff,
		(va >> 30) & 0x1ff,
	}
	offset := va & 0xfff

	a := h.PageTable
	for i := 2; i >= 0; i-- {
		pteAddr := a + vpn[i]*8
		pte, err := h.Bus.Load(pteAddr, 64)
		if err != nil {
			return 0, Exc(kind.fault(), va)
		}

		v := pte&PteV != 0
		r := pte&PteR != 0
		w := pte&PteW != 0
		if !v || (!r && w) {
			return 0, Exc(kind.fault(), va)
		}

		x := pte&PteX != 0
		if r || x {
			ppn2 := (pte >> 28) & 0x3ff_ffff
			ppn1 := (pte >> 19) & 0x1ff
			ppn0 := (pte >> 10) & 0x1ff
			switch i {
			case 0:
				return (ppn2<<30 | ppn1<<21 | ppn0<<12) | offset, nil
			case 1:
				return (ppn2<<30 | ppn1<<21 | vpn[0]<<12) | offset, nil
			default:
				return (ppn2<<30 | vpn[1]<<21 | vpn[0]<<12) | offset, nil
			}
		}

		a = ((pte >> 10) & 0xfff_ffff_ffff) * PageSize
	}

	return 0, Exc(kind.fault(), va)
}
