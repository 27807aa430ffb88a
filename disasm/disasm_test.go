package disasm_test

import (
	"strings"
	"testing"

	"github.com/hpfc/hpfc/bpf"
	"github.com/hpfc/hpfc/disasm"
)

func TestDisassembleReturnAndLoads(t *testing.T) {
	cases := []struct {
		ins  bpf.RawInstruction
		want string
	}{
		{bpf.RawInstruction{Op: bpf.RET | bpf.K, K: bpf.Accept}, "L0: ret #0xffffffff"},
		{bpf.RawInstruction{Op: bpf.RET | bpf.A}, "L0: ret a"},
		{bpf.RawInstruction{Op: bpf.LD | bpf.W | bpf.ABS, K: 12}, "L0: ld [12]"},
		{bpf.RawInstruction{Op: bpf.LD | bpf.H | bpf.ABS, K: 0x1000}, "L0: ldh proto"},
		{bpf.RawInstruction{Op: bpf.LDX | bpf.B | bpf.MSH, K: 0}, "L0: ldxb 4*([0]&0xf)"},
		{bpf.RawInstruction{Op: bpf.ST, K: 3}, "L0: st M[3]"},
	}
	for _, c := range cases {
		got := disasm.Disassemble(c.ins, 0)
		if got != c.want {
			t.Errorf("Disassemble(%+v) = %q, want %q", c.ins, got, c.want)
		}
	}
}

func TestDisassembleConditionalJumpNamesBothLabels(t *testing.T) {
	ins := bpf.RawInstruction{Op: bpf.JMP | bpf.JEQ | bpf.K, K: 0x800, Jt: 0, Jf: 3}
	got := disasm.Disassemble(ins, 4)
	want := "L4: jeq #0x800, L5, L8"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDisassembleUnconditionalJumpNamesOneLabel(t *testing.T) {
	ins := bpf.RawInstruction{Op: bpf.JMP | bpf.JA, K: 2}
	got := disasm.Disassemble(ins, 1)
	want := "L1: ja 4"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDisassembleUnknownOpcodeIsUnimp(t *testing.T) {
	ins := bpf.RawInstruction{Op: 0x1234}
	got := disasm.Disassemble(ins, 0)
	if !strings.HasPrefix(got, "L0: unimp 0x") {
		t.Fatalf("got %q, want an unimp fallback", got)
	}
}

func TestProgramRendersOneLinePerInstruction(t *testing.T) {
	prog := []bpf.RawInstruction{
		{Op: bpf.LD | bpf.H | bpf.ABS, K: 12},
		{Op: bpf.JMP | bpf.JEQ | bpf.K, K: 0x800, Jt: 0, Jf: 1},
		{Op: bpf.RET | bpf.K, K: bpf.Accept},
		{Op: bpf.RET | bpf.K, K: bpf.Drop},
	}
	lines := disasm.Program(prog)
	if len(lines) != len(prog) {
		t.Fatalf("got %d lines, want %d", len(lines), len(prog))
	}
	if !strings.Contains(lines[1], "L2") || !strings.Contains(lines[1], "L3") {
		t.Fatalf("branch line %q should reference both successor labels", lines[1])
	}
}
