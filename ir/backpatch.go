package ir

import "github.com/hpfc/hpfc/bpf"

// BoolOp names the two short-circuit boolean combinators a filter
// expression can chain branch conditions with.
type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
)

func (c *Context) succ(idx int, trueList bool) int {
	if trueList {
		return c.Blocks[idx].SuccTrue
	}
	return c.Blocks[idx].SuccFalse
}

func (c *Context) setSucc(idx int, trueList bool, target int) {
	if trueList {
		c.Blocks[idx].SuccTrue = target
	} else {
		c.Blocks[idx].SuccFalse = target
	}
}

// Backpatch walks the open chain of blocks starting at head along its
// trueList successor slot, rewriting every link in the chain to target.
// Each open block's successor slot doubles as a "next node in this
// chain" pointer until it is backpatched; walking the chain consumes
// that pointer (reads it as "next") in the same step that overwrites it
// with the real target, exactly as backpatch() does.
func (c *Context) Backpatch(head, target int, trueList bool) {
	blk := head
	for blk != noSucc {
		next := c.succ(blk, trueList)
		c.setSucc(blk, trueList, target)
		blk = next
	}
}

// Merge splices left onto the tail of right's trueList open chain: it
// walks from right along trueList successors until it finds a still-open
// slot (noSucc) and attaches left there. This is how two independently
// built backpatch lists are combined into one without copying either.
func (c *Context) Merge(left, right int, trueList bool) {
	blk := right
	for c.succ(blk, trueList) != noSucc {
		blk = c.succ(blk, trueList)
	}
	c.setSucc(blk, trueList, left)
}

// BranchMerge combines left and right under a short-circuit boolean
// operator, returning the index of the combined block (right, whose Root
// is updated to point at left's root so the whole chain shares one
// representative entry block).
//
// For OR: if left is true, skip right (left's true-chain stays open to
// be resolved later); if left is false, fall into right. That is
// "backpatch left's false-exits to right" then "splice left's
// true-chain onto right's true-chain".
//
// For AND: if left is true, fall into right; if left is false, skip
// right. Mirror image of OR.
//
// Both directions are negated through left.IsReversed, since a reversed
// block's true/false successor roles are swapped relative to its
// encoded comparison.
func (c *Context) BranchMerge(op BoolOp, left, right int) int {
	reversed := c.Blocks[left].IsReversed
	switch op {
	case BoolOr:
		c.Backpatch(left, right, reversed)
		c.Merge(left, right, !reversed)
	case BoolAnd:
		c.Backpatch(left, right, !reversed)
		c.Merge(left, right, reversed)
	}
	c.Blocks[right].Root = c.Blocks[left].Root
	return right
}

// buildReturn allocates a terminal block holding a single RET
// instruction and no condition; it never participates in a backpatch
// chain and its Root is itself.
func (c *Context) buildReturn(k uint32) int {
	idx := c.newBlock()
	c.Blocks[idx].Jmp = c.newInstr(bpf.RET|bpf.K, 0, 0, k)
	return idx
}

// BuildAccept allocates the synthetic "take the whole packet" terminal.
func (c *Context) BuildAccept() int { return c.buildReturn(bpf.Accept) }

// BuildDrop allocates the synthetic "discard the packet" terminal.
func (c *Context) BuildDrop() int { return c.buildReturn(bpf.Drop) }

// Finalize closes a fully built expression block out to the two
// synthetic terminals and returns the representative root block index
// the layout pass should start its traversal from, plus the accept/drop
// block indices it produced. Mirrors parse_finish: whichever polarity
// blk's comparison is encoded with, its true-meaning exit backpatches to
// accept and its false-meaning exit backpatches to drop.
func (c *Context) Finalize(blk int) (root, accept, drop int) {
	accept = c.BuildAccept()
	drop = c.BuildDrop()

	reversed := c.Blocks[blk].IsReversed
	c.Backpatch(blk, accept, !reversed)
	c.Backpatch(blk, drop, reversed)

	return c.Blocks[blk].Root, accept, drop
}
