// Package fault implements spec.md §4.7: the SIGSEGV/SIGBUS handler.
// This file holds the architecture-specific read/write classification
// logic as pure, OS- and cgo-independent functions so they're unit
// testable without installing a real signal handler.
package fault

// Classification is the outcome of deciding whether a trapped access was
// a read or a write.
type Classification struct {
	IsWrite    bool
	Recognized bool
}

// ClassifyX86_64ErrorCode implements spec.md §4.7 step 4's x86_64 branch:
// bit 0x2 of the page-fault error code (saved in the trapping thread's
// context) is set exactly when the faulting access was a write.
func ClassifyX86_64ErrorCode(errorCode uint64) Classification {
	return Classification{IsWrite: errorCode&0x2 != 0, Recognized: true}
}

// ClassifyAArch64Instruction implements spec.md §4.7 step 4's aarch64
// branch: decode the 32-bit instruction at the faulting PC. This covers
// the common LDR/STR (immediate, unsigned offset) encodings — the
// overwhelming majority of compiler-generated loads and stores to a
// compressed/protected heap region. Pre/post-indexed addressing,
// register-offset addressing, load/store pair, and SIMD&FP loads/stores
// are not decoded; per spec.md §4.7/§9 an unrecognized encoding defaults
// to "read" (the conservative choice: a later write re-faults and
// upgrades protection).
func ClassifyAArch64Instruction(instr uint32) Classification {
	// Load/store register (unsigned immediate) class: bits[29:24] == 0b111001,
	// independent of the size field in bits[31:30].
	const ldstImmClassMask = 0x3F
	const ldstImmClassValue = 0x39

	classBits := uint32(instr>>24) & ldstImmClassMask
	if classBits != ldstImmClassValue {
		return Classification{Recognized: false}
	}

	// opc in bits[23:22]: 00 = store, 01/10/11 = load variants (including
	// the sign-extending LDRSB/LDRSW forms).
	opc := (instr >> 22) & 0x3
	if opc == 0 {
		return Classification{IsWrite: true, Recognized: true}
	}

	return Classification{IsWrite: false, Recognized: true}
}
