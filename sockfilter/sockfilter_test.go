//go:build linux

package sockfilter

import (
	"testing"

	"github.com/hpfc/hpfc/bpf"
)

func TestToSockFilterPreservesFieldOrder(t *testing.T) {
	prog := []bpf.RawInstruction{{Op: 0x15, Jt: 1, Jf: 2, K: 0x800}}
	out := toSockFilter(prog)
	if len(out) != 1 {
		t.Fatalf("got %d entries, want 1", len(out))
	}
	if out[0].Code != prog[0].Op || out[0].Jt != prog[0].Jt || out[0].Jf != prog[0].Jf || out[0].K != prog[0].K {
		t.Fatalf("field mismatch: got %+v, want fields of %+v", out[0], prog[0])
	}
}

func TestAttachRejectsEmptyProgram(t *testing.T) {
	if _, err := Attach("lo", nil); err == nil {
		t.Fatal("expected an error attaching an empty program")
	}
}

func TestHtonsSwapsBytes(t *testing.T) {
	if got := htons(0x0001); got != 0x0100 {
		t.Fatalf("htons(0x0001) = %#x, want 0x0100", got)
	}
}
