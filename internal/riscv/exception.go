package riscv

import "fmt"

// ExceptionKind is a closed set of the synchronous traps this core raises.
// The numeric value is the RISC-V cause code for that exception.
type ExceptionKind uint64

const (
	InstructionAddressMisaligned ExceptionKind = 0
	InstructionAccessFault       ExceptionKind = 1
	IllegalInstruction           ExceptionKind = 2
	Breakpoint                   ExceptionKind = 3
	LoadAddressMisaligned        ExceptionKind = 4
	LoadAccessFault              ExceptionKind = 5
	StoreAMOAddressMisaligned    ExceptionKind = 6
	StoreAMOAccessFault          ExceptionKind = 7
	EnvironmentCallFromUMode     ExceptionKind = 8
	EnvironmentCallFromSMode     ExceptionKind = 9
	EnvironmentCallFromMMode     ExceptionKind = 11
	InstructionPageFault         ExceptionKind = 12
	LoadPageFault                ExceptionKind = 13
	StoreAMOPageFault            ExceptionKind = 15
)

func (k ExceptionKind) String() string {
	switch k {
	case InstructionAddressMisaligned:
		return "instruction address misaligned"
	case InstructionAccessFault:
		return "instruction access fault"
	case IllegalInstruction:
		return "illegal instruction"
	case Breakpoint:
		return "breakpoint"
	case LoadAddressMisaligned:
		return "load address misaligned"
	case LoadAccessFault:
		return "load access fault"
	case StoreAMOAddressMisaligned:
		return "store/amo address misaligned"
	case StoreAMOAccessFault:
		return "store/amo access fault"
	case EnvironmentCallFromUMode:
		return "environment call from U-mode"
	case EnvironmentCallFromSMode:
		return "environment call from S-mode"
	case EnvironmentCallFromMMode:
		return "environment call from M-mode"
	case InstructionPageFault:
		return "instruction page fault"
	case LoadPageFault:
		return "load page fault"
	case StoreAMOPageFault:
		return "store/amo page fault"
	default:
		return fmt.Sprintf("exception(%d)", uint64(k))
	}
}

// Fatal reports whether the outer loop must stop after delivering this
// exception (spec.md §7).
func (k ExceptionKind) Fatal() bool {
	switch k {
	case InstructionAddressMisaligned, InstructionAccessFault,
		LoadAccessFault, StoreAMOAddressMisaligned,
		StoreAMOAccessFault, IllegalInstruction:
		return true
	default:
		return false
	}
}

// Exception is a synchronous trap tied to one instruction, carrying its
// tval payload (spec.md §7's table).
type Exception struct {
	Kind ExceptionKind
	Val  uint64
}

func (e Exception) Error() string {
	return fmt.Sprintf("%s (tval=0x%x)", e.Kind, e.Val)
}

// Code returns the RISC-V cause code for this exception (no interrupt bit).
func (e Exception) Code() uint64 { return uint64(e.Kind) }

func (e Exception) IsInterrupt() bool { return false }

func (e Exception) Tval() uint64 { return e.Val }

// Exc is a constructor shorthand used throughout decode/execute.
func Exc(kind ExceptionKind, val uint64) Exception {
	return Exception{Kind: kind, Val: val}
}

// InterruptKind is a closed set of the asynchronous traps this core raises.
// The numeric value is the cause's low bits; the interrupt bit (1<<63) is
// added by Code().
type InterruptKind uint64

const (
	SupervisorSoftwareInterrupt InterruptKind = 1
	MachineSoftwareInterrupt    InterruptKind = 3
	SupervisorTimerInterrupt    InterruptKind = 5
	MachineTimerInterrupt       InterruptKind = 7
	SupervisorExternalInterrupt InterruptKind = 9
	MachineExternalInterrupt    InterruptKind = 11
)

func (k InterruptKind) String() string {
	switch k {
	case SupervisorSoftwareInterrupt:
		return "supervisor software interrupt"
	case MachineSoftwareInterrupt:
		return "machine software interrupt"
	case SupervisorTimerInterrupt:
		return "supervisor timer interrupt"
	case MachineTimerInterrupt:
		return "machine timer interrupt"
	case SupervisorExternalInterrupt:
		return "supervisor external interrupt"
	case MachineExternalInterrupt:
		return "machine external interrupt"
	default:
		return fmt.Sprintf("interrupt(%d)", uint64(k))
	}
}

// Interrupt is an asynchronous trap. Interrupts are never fatal.
type Interrupt struct {
	Kind InterruptKind
}

func (i Interrupt) Error() string { return i.Kind.String() }

// Code returns the cause value with the interrupt bit (1<<63) set.
func (i Interrupt) Code() uint64 { return (uint64(1) << 63) | uint64(i.Kind) }

func (i Interrupt) IsInterrupt() bool { return true }

func (i Interrupt) Tval() uint64 { return 0 }

// Trap unifies Exception and Interrupt for the pipeline in trap.go: both
// carry a 64-bit cause (via Code) and a 64-bit tval payload (via Tval).
type Trap interface {
	error
	Code() uint64
	Tval() uint64
	IsInterrupt() bool
}

var (
	_ Trap = Exception{}
	_ Trap = Interrupt{}
)
