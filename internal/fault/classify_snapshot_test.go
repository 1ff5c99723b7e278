package fault_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/orizon-lang/heaptrap/internal/fault"
	"github.com/orizon-lang/heaptrap/internal/testrunner"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
)

// aarch64ClassificationCases mirrors the instructions exercised individually
// in classify_test.go; the golden file catches any drift in the whole table
// at once instead of one assertion at a time.
var aarch64ClassificationCases = []struct {
	name  string
	instr uint32
}{
	{"str_x0_imm", 0xF9000020},
	{"ldr_x0_imm", 0xF9400020},
	{"strb_w0_imm", 0x39000020},
	{"ldrsw_x0_imm", 0xB9800020},
	{"nop", 0xD503201F},
}

func TestAArch64ClassificationTableSnapshot(t *testing.T) {
	var report strings.Builder

	for _, c := range aarch64ClassificationCases {
		cl := fault.ClassifyAArch64Instruction(c.instr)
		fmt.Fprintf(&report, "%s\t%#x\twrite=%t\trecognized=%t\n", c.name, c.instr, cl.IsWrite, cl.Recognized)
	}

	sm := testrunner.NewSnapshotManager(testrunner.SnapshotOptions{
		BaseDir: "testdata/snapshots",
		Format:  "text",
	})

	ok, err := sm.VerifySnapshot("aarch64_classification_table", report.String())
	assert.NoError(t, err)
	assert.True(t, ok)
}
