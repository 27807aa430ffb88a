// Package layout performs the final pass of the compiler: a post-order
// walk of the block graph that assigns each block a final offset and
// emits its live instructions into the program array, back to front.
//
// Emission runs back-to-front (the cursor starts at the end of the
// program and decrements) because a block's jump targets must already
// have known offsets before its own jt/jf can be computed, and the
// natural traversal order (false successor, then true successor, then
// the block itself) visits every block strictly after its successors.
package layout

import (
	"github.com/hpfc/hpfc/bpf"
	"github.com/hpfc/hpfc/ir"
)

// state carries the output buffer and write cursor through the
// recursive post-order walk.
type state struct {
	ctx    *ir.Context
	prog   []bpf.RawInstruction
	cursor int
}

// Layout lays out every block reachable from root into a single
// []bpf.RawInstruction program, resolving every conditional jump's jt/jf
// to the relative instruction distance to its target.
func Layout(ctx *ir.Context, root int) []bpf.RawInstruction {
	seen := make([]bool, len(ctx.Blocks))
	total := countLive(ctx, root, seen)

	st := &state{ctx: ctx, prog: make([]bpf.RawInstruction, total), cursor: total}
	st.compileBlock(root)
	return st.prog
}

// countLive sums the live (non-optimized-away) instruction count over
// every block reachable from idx exactly once, so the output buffer is
// sized to hold exactly the instructions that will actually be emitted.
func countLive(ctx *ir.Context, idx int, seen []bool) int {
	if !ir.HasSucc(idx) || seen[idx] {
		return 0
	}
	seen[idx] = true

	blk := ctx.Block(idx)
	total := countLive(ctx, blk.SuccFalse, seen) + countLive(ctx, blk.SuccTrue, seen)

	n := ir.LiveInstrCount(blk.Instrs)
	if blk.Jmp != nil {
		n++
	}
	return total + n
}

// compileBlock lays out blk and everything beneath it. The guard against
// blk.Offset != 0 serves two purposes at once: it stops recursion from
// re-emitting a block two different predecessors both jump to, and it
// implements the "offset 0 means unlaid" sentinel -- safe because only
// the root block (which nothing else ever targets as a successor) can
// legitimately end up at offset 0; every other block is reached for the
// first time from exactly one predecessor in this post-order walk.
func (st *state) compileBlock(idx int) {
	if !ir.HasSucc(idx) {
		return
	}
	blk := st.ctx.Block(idx)
	if blk.Offset != 0 {
		return
	}

	st.compileBlock(blk.SuccFalse)
	st.compileBlock(blk.SuccTrue)

	insCount := ir.LiveInstrCount(blk.Instrs)
	if blk.Jmp != nil {
		insCount++
	}

	st.cursor -= insCount
	blk.Offset = st.cursor
	pos := st.cursor

	for _, ins := range blk.Instrs {
		if ins.Optimized {
			continue
		}
		st.prog[pos] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
		pos++
	}

	if blk.Jmp == nil {
		return
	}

	jt, jf := blk.Jmp.Jt, blk.Jmp.Jf
	if ir.HasSucc(blk.SuccTrue) {
		jt = uint8(st.jumpOffset(blk, insCount, blk.SuccTrue))
	}
	if ir.HasSucc(blk.SuccFalse) {
		jf = uint8(st.jumpOffset(blk, insCount, blk.SuccFalse))
	}
	st.prog[pos] = bpf.RawInstruction{Op: blk.Jmp.Code, Jt: jt, Jf: jf, K: blk.Jmp.K}
}

// jumpOffset computes the relative jump distance from the instruction
// immediately after blk's body to target's first instruction.
func (st *state) jumpOffset(blk *ir.Block, insCount, target int) int {
	return st.ctx.Block(target).Offset - (blk.Offset + insCount)
}
