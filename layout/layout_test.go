package layout_test

import (
	"testing"

	"github.com/hpfc/hpfc/bpf"
	"github.com/hpfc/hpfc/ir"
	"github.com/hpfc/hpfc/layout"
)

func TestSimpleComparisonLayout(t *testing.T) {
	c := ir.NewContext()
	l, _ := c.ExprNumber(0x800)
	r, _ := c.ExprNumber(0x800)
	cond := c.BranchBuild(ir.CmpEq, l, r)
	root, accept, drop := c.Finalize(cond)

	prog := layout.Layout(c, root)

	if len(prog) != 9 {
		t.Fatalf("got %d instructions, want 9", len(prog))
	}

	jmp := prog[6]
	if jmp.Op != bpf.JMP|bpf.JEQ|bpf.X {
		t.Fatalf("instruction 6 should be the JEQ branch, got op %#x", jmp.Op)
	}
	if jmp.Jt != 0 || jmp.Jf != 1 {
		t.Fatalf("branch jt/jf = %d/%d, want 0/1", jmp.Jt, jmp.Jf)
	}
	if prog[7].K != bpf.Accept || prog[8].K != bpf.Drop {
		t.Fatalf("terminal verdicts misplaced: prog[7].K=%#x prog[8].K=%#x", prog[7].K, prog[8].K)
	}

	if c.Block(accept).Offset != 7 || c.Block(drop).Offset != 8 || c.Block(root).Offset != 0 {
		t.Fatalf("unexpected offsets: root=%d accept=%d drop=%d",
			c.Block(root).Offset, c.Block(accept).Offset, c.Block(drop).Offset)
	}
}

func TestReversedComparisonSwapsSuccessors(t *testing.T) {
	c := ir.NewContext()
	l, _ := c.ExprNumber(1)
	r, _ := c.ExprNumber(5)
	cond := c.BranchBuild(ir.CmpLt, l, r) // reversed: encoded as JGE with swapped roles
	root, accept, drop := c.Finalize(cond)

	layout.Layout(c, root)

	blk := c.Block(cond)
	if !blk.IsReversed {
		t.Fatal("CmpLt should be built with reversed polarity")
	}
	// Reversed: Finalize backpatches the false-meaning exit to accept and
	// the true-meaning exit to drop, i.e. the roles are swapped relative
	// to the non-reversed case.
	if blk.SuccFalse != accept || blk.SuccTrue != drop {
		t.Fatalf("reversed successor wiring wrong: true=%d false=%d (accept=%d drop=%d)",
			blk.SuccTrue, blk.SuccFalse, accept, drop)
	}
}

func TestAndChainsThroughBothConditions(t *testing.T) {
	c := ir.NewContext()
	l1, _ := c.ExprNumber(1)
	r1, _ := c.ExprNumber(1)
	left := c.BranchBuild(ir.CmpEq, l1, r1)

	l2, _ := c.ExprNumber(2)
	r2, _ := c.ExprNumber(2)
	right := c.BranchBuild(ir.CmpEq, l2, r2)

	combined := c.BranchMerge(ir.BoolAnd, left, right)
	root, accept, drop := c.Finalize(combined)

	prog := layout.Layout(c, root)
	if len(prog) == 0 {
		t.Fatal("expected a non-empty program")
	}

	// left's true exit should reach right's block, and both conditions'
	// false exits should reach drop.
	if c.Block(left).SuccTrue != right {
		t.Fatalf("left's true successor should be right (block %d), got %d", right, c.Block(left).SuccTrue)
	}
	if c.Block(left).SuccFalse != drop {
		t.Fatalf("left's false successor should be drop, got %d", c.Block(left).SuccFalse)
	}
	if c.Block(right).SuccTrue != accept || c.Block(right).SuccFalse != drop {
		t.Fatalf("right's successors wrong: true=%d false=%d", c.Block(right).SuccTrue, c.Block(right).SuccFalse)
	}
}
