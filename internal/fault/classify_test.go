package fault_test

import (
	"testing"

	"github.com/orizon-lang/heaptrap/internal/fault"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
)

func TestClassifyX86_64ErrorCodeWriteBitSet(t *testing.T) {
	c := fault.ClassifyX86_64ErrorCode(0x2)
	assert.True(t, c.Recognized)
	assert.True(t, c.IsWrite)
}

func TestClassifyX86_64ErrorCodeWriteBitClear(t *testing.T) {
	c := fault.ClassifyX86_64ErrorCode(0x0)
	assert.True(t, c.Recognized)
	assert.False(t, c.IsWrite)
}

func TestClassifyX86_64ErrorCodeIgnoresUnrelatedBits(t *testing.T) {
	// bit 0x1 (present), bit 0x4 (user-mode) set, write bit clear.
	c := fault.ClassifyX86_64ErrorCode(0x5)
	assert.False(t, c.IsWrite)
}

func TestClassifyAArch64StrImmediate64(t *testing.T) {
	// STR X0, [X1] — size=11, opc=00.
	c := fault.ClassifyAArch64Instruction(0xF9000020)
	assert.True(t, c.Recognized)
	assert.True(t, c.IsWrite)
}

func TestClassifyAArch64LdrImmediate64(t *testing.T) {
	// LDR X0, [X1] — size=11, opc=01.
	c := fault.ClassifyAArch64Instruction(0xF9400020)
	assert.True(t, c.Recognized)
	assert.False(t, c.IsWrite)
}

func TestClassifyAArch64StrbImmediate(t *testing.T) {
	// STRB W0, [X1] — size=00, opc=00.
	c := fault.ClassifyAArch64Instruction(0x39000020)
	assert.True(t, c.Recognized)
	assert.True(t, c.IsWrite)
}

func TestClassifyAArch64LdrswIsRead(t *testing.T) {
	// LDRSW X0, [X1] — size=10, opc=10, still a load.
	c := fault.ClassifyAArch64Instruction(0xB9800020)
	assert.True(t, c.Recognized)
	assert.False(t, c.IsWrite)
}

func TestClassifyAArch64UnrecognizedDefaultsToUnrecognized(t *testing.T) {
	// NOP has no load/store class bits set.
	c := fault.ClassifyAArch64Instruction(0xD503201F)
	assert.False(t, c.Recognized)
	assert.False(t, c.IsWrite)
}
