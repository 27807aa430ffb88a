package optimize_test

import (
	"errors"
	"testing"

	"github.com/hpfc/hpfc/bpf"
	"github.com/hpfc/hpfc/ir"
	"github.com/hpfc/hpfc/optimize"
)

func TestXorFoldsCorrectly(t *testing.T) {
	c := ir.NewContext()
	l, _ := c.ExprNumber(5)
	r, _ := c.ExprNumber(3)
	sum, err := c.ExprBinOp(ir.Xor, l, r)
	if err != nil {
		t.Fatalf("ExprBinOp: %v", err)
	}
	xorInstr := sum.Instrs[len(sum.Instrs)-2]
	c.BlockBuild(sum)

	optimize.Optimize(c)

	if xorInstr.K != 6 {
		t.Fatalf("5 XOR 3 folded to %#x, want 6 (val0^=val0 would always give 0)", xorInstr.K)
	}
}

func TestDivByZeroDiagnosedNotFolded(t *testing.T) {
	c := ir.NewContext()
	l, _ := c.ExprNumber(10)
	r, _ := c.ExprNumber(0)
	quot, err := c.ExprBinOp(ir.Div, l, r)
	if err != nil {
		t.Fatalf("ExprBinOp: %v", err)
	}
	divInstr := quot.Instrs[len(quot.Instrs)-2]
	originalCode := divInstr.Code
	originalK := divInstr.K
	c.BlockBuild(quot)

	diags := optimize.Optimize(c)

	var divErr *optimize.DivByZeroError
	found := false
	for _, d := range diags {
		if errors.As(d, &divErr) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DivByZeroError diagnostic, got %v", diags)
	}
	if divInstr.Code != originalCode || divInstr.K != originalK {
		t.Fatalf("division by zero must not be folded: code %#x->%#x, k %d->%d",
			originalCode, divInstr.Code, originalK, divInstr.K)
	}
}

func TestRedundantImmediateLoadMarkedOptimized(t *testing.T) {
	c := ir.NewContext()
	e1, _ := c.ExprNumber(5)
	e2, _ := c.ExprNumber(5)
	secondLoad := e2.Instrs[0]

	sum, err := c.ExprBinOp(ir.Add, e1, e2)
	if err != nil {
		t.Fatalf("ExprBinOp: %v", err)
	}
	c.BlockBuild(sum)

	optimize.Optimize(c)

	if !secondLoad.Optimized {
		t.Fatal("second LD #5 should be recognized as redundant and marked optimized")
	}
}

func TestIndirectLoadRewrittenToAbsoluteOnConstantOffset(t *testing.T) {
	c := ir.NewContext()
	off, _ := c.ExprNumber(14)
	loaded, err := c.ExprOffset(off, 2)
	if err != nil {
		t.Fatalf("ExprOffset: %v", err)
	}
	indInstr := loaded.Instrs[len(loaded.Instrs)-2]
	c.BlockBuild(loaded)

	optimize.Optimize(c)

	if indInstr.Code != bpf.LD|bpf.ABS|bpf.H {
		t.Fatalf("IND load with constant offset should rewrite to ABS, got code %#x", indInstr.Code)
	}
	if indInstr.K != 14 {
		t.Fatalf("rewritten ABS load should carry offset 14, got %d", indInstr.K)
	}
}

func TestOptimizeTerminatesOnBranchedProgram(t *testing.T) {
	c := ir.NewContext()
	l, _ := c.ExprNumber(1)
	r, _ := c.ExprNumber(2)
	sum, _ := c.ExprBinOp(ir.Add, l, r)
	three, _ := c.ExprNumber(3)
	blk := c.BranchBuild(ir.CmpEq, sum, three)
	root, accept, drop := c.Finalize(blk)

	_ = optimize.Optimize(c)

	if root < 0 || accept < 0 || drop < 0 {
		t.Fatal("Finalize should bind valid block indices")
	}
}
