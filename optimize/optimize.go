// Package optimize implements the two interleaved passes the compiler
// runs to a fixed point over every block: local value numbering with
// constant folding, and dead-store elimination. Both operate directly on
// the *ir.Block instruction lists, marking instructions Optimized rather
// than removing them, so later passes keep seeing full dataflow.
package optimize

import (
	"github.com/hpfc/hpfc/bpf"
	"github.com/hpfc/hpfc/ir"
)

// bpfLDHash is the synthetic "code" every pure constant is hashed under,
// regardless of whether it arrived via LD #k or an ALU immediate
// operand -- this is what lets "LD #5" and "ALU ADD A,5" alias to the
// same value number for the constant 5.
const bpfLDHash = bpf.LD | bpf.IMM | bpf.W

// value is one entry of the per-pass value table: a 32-bit constant and
// whether it has been proven to actually hold that constant yet.
type value struct {
	val     uint32
	isConst bool
}

type memoKey struct {
	code uint16
	arg0 int
	arg1 int
}

// pass holds the value-numbering state for one full sweep over every
// block in the program. A fresh pass starts with value number 0
// reserved (permanently non-constant, matching the "value number 0 is
// reserved" invariant) and accumulates value numbers and their memo
// table across every block it visits, so identical expressions in
// different blocks can still alias within a single sweep.
type pass struct {
	values      []value
	memo        map[memoKey]int
	nextValue   int
	modified    bool
	diagnostics []error
}

func newPass(instrCountHint int) *pass {
	size := instrCountHint*3 + 1
	if size < 1 {
		size = 1
	}
	return &pass{
		values: make([]value, 1, size),
		memo:   make(map[memoKey]int, size),
	}
}

func (p *pass) valueNew() int {
	p.nextValue++
	p.values = append(p.values, value{})
	return p.nextValue
}

func (p *pass) valueSet(idx int, val uint32) {
	p.values[idx] = value{val: val, isConst: true}
}

func (p *pass) valueIsConst(idx int) bool {
	return p.values[idx].isConst
}

func (p *pass) valueGet(idx int) uint32 {
	return p.values[idx].val
}

// instrEval resolves a (code, arg0, arg1) triple to its value number,
// assigning a fresh one the first time the triple is seen in this pass.
func (p *pass) instrEval(code uint16, arg0, arg1 int) int {
	key := memoKey{code, arg0, arg1}
	if idx, ok := p.memo[key]; ok {
		return idx
	}
	idx := p.valueNew()
	p.memo[key] = idx
	return idx
}

func (p *pass) setOptimized(ins *ir.Instr) {
	if ins.Optimized {
		return
	}
	p.modified = true
	ins.Optimized = true
}

func (p *pass) modify(ins *ir.Instr, code uint16, k uint32) {
	ins.Code = code
	ins.K = k
	p.modified = true
}

// optimizeReg marks ins optimized if reg already holds newVal (the write
// is redundant), otherwise updates reg to newVal.
func (p *pass) optimizeReg(ins *ir.Instr, reg *int, newVal int) {
	if *reg == newVal {
		p.setOptimized(ins)
	} else {
		*reg = newVal
	}
}

// calcValue folds ins's ALU operator over two known constants and
// rewrites it to LD #result, returning false (leaving ins untouched)
// when the operator is division or modulus by a zero divisor -- that
// case is diagnosed via p.diagnostics instead of folded.
//
// BPF_XOR here computes val0 ^ val1. instr_calc_value computed
// val0 ^= val0, always zero regardless of the right operand; this is
// one of the four flagged bugs and is fixed here.
func (p *pass) calcValue(ins *ir.Instr, val0, val1 uint32) bool {
	switch bpf.Op(ins.Code) {
	case bpf.ADD:
		val0 += val1
	case bpf.SUB:
		val0 -= val1
	case bpf.MUL:
		val0 *= val1
	case bpf.DIV:
		if val1 == 0 {
			p.diagnostics = append(p.diagnostics, &DivByZeroError{Op: "/"})
			return false
		}
		val0 /= val1
	case bpf.MOD:
		if val1 == 0 {
			p.diagnostics = append(p.diagnostics, &DivByZeroError{Op: "%"})
			return false
		}
		val0 %= val1
	case bpf.AND:
		val0 &= val1
	case bpf.OR:
		val0 |= val1
	case bpf.XOR:
		val0 ^= val1
	case bpf.LSH:
		val0 <<= val1
	case bpf.RSH:
		val0 >>= val1
	}
	p.modify(ins, bpf.LD|bpf.IMM, val0)
	return true
}

// evalInstr applies local value numbering / constant folding to a
// single non-jump instruction, threading the block's register->value
// map (regs) through.
func (p *pass) evalInstr(ins *ir.Instr, regs *[ir.RegsMax]int) {
	if ins.Optimized {
		return
	}

	switch ins.Code {
	case bpf.LD | bpf.IMM:
		idx := p.instrEval(bpfLDHash, int(ins.K), 0)
		p.optimizeReg(ins, &regs[ir.RegA], idx)
		p.valueSet(idx, ins.K)
		return
	case bpf.LDX | bpf.IMM:
		idx := p.instrEval(bpfLDHash, int(ins.K), 0)
		p.optimizeReg(ins, &regs[ir.RegX], idx)
		p.valueSet(idx, ins.K)
		return
	case bpf.LD | bpf.MEM:
		idx := regs[ins.K]
		if p.valueIsConst(idx) {
			p.modify(ins, bpf.LD|bpf.IMM, p.valueGet(idx))
		}
		p.optimizeReg(ins, &regs[ir.RegA], idx)
		return
	case bpf.LDX | bpf.MEM:
		idx := regs[ins.K]
		if p.valueIsConst(idx) {
			p.modify(ins, bpf.LDX|bpf.IMM, p.valueGet(idx))
		}
		p.optimizeReg(ins, &regs[ir.RegX], idx)
		return
	case bpf.ST:
		p.optimizeReg(ins, &regs[ins.K], regs[ir.RegA])
		return
	case bpf.STX:
		p.optimizeReg(ins, &regs[ins.K], regs[ir.RegX])
		return
	}

	class := bpf.Class(ins.Code)
	op := bpf.Op(ins.Code)
	src := bpf.Src(ins.Code)

	if class == bpf.ALU && src == bpf.K {
		kIdx := p.instrEval(bpfLDHash, int(ins.K), 0)
		if p.valueIsConst(regs[ir.RegA]) {
			a := p.valueGet(regs[ir.RegA])
			k := p.valueGet(kIdx)
			if p.calcValue(ins, a, k) {
				regs[ir.RegA] = p.instrEval(bpfLDHash, int(ins.K), 0)
			}
			return
		}
		if ins.K == 0 && (op == bpf.DIV || op == bpf.MOD) {
			sym := "/"
			if op == bpf.MOD {
				sym = "%"
			}
			p.diagnostics = append(p.diagnostics, &DivByZeroError{Op: sym})
		}
		regs[ir.RegA] = p.instrEval(ins.Code, regs[ir.RegA], kIdx)
		return
	}

	if class == bpf.ALU && src == bpf.X {
		if !p.valueIsConst(regs[ir.RegX]) {
			return
		}
		if p.valueIsConst(regs[ir.RegA]) {
			a := p.valueGet(regs[ir.RegA])
			x := p.valueGet(regs[ir.RegX])
			if p.calcValue(ins, a, x) {
				regs[ir.RegA] = p.instrEval(bpfLDHash, int(ins.K), 0)
			}
			return
		}
		code := bpf.ALU | bpf.K | op
		xVal := p.valueGet(regs[ir.RegX])
		p.modify(ins, code, xVal)
		kIdx := p.instrEval(bpfLDHash, int(ins.K), 0)
		regs[ir.RegA] = p.instrEval(ins.Code, regs[ir.RegA], kIdx)
		return
	}

	if class == bpf.LD && bpf.Mode(ins.Code) == bpf.ABS {
		idx := p.instrEval(ins.Code, int(ins.K), 0)
		p.optimizeReg(ins, &regs[ir.RegA], idx)
		return
	}

	if class == bpf.LD && bpf.Mode(ins.Code) == bpf.IND {
		xIdx := regs[ir.RegX]
		var idx int
		if p.valueIsConst(xIdx) {
			offset := ins.K + p.valueGet(xIdx)
			code := bpf.LD | bpf.ABS | bpf.Size(ins.Code)
			p.modify(ins, code, offset)
			idx = p.instrEval(ins.Code, int(ins.K), 0)
		} else {
			idx = p.instrEval(ins.Code, int(ins.K), xIdx)
		}
		p.optimizeReg(ins, &regs[ir.RegA], idx)
		return
	}
}

// regsInfo reports the architectural source/destination locations an
// instruction reads from and writes to, for dead-store tracking. -1
// means "no such operand". Mirrors instr_regs_info's per-class mapping,
// including its BPF_LD/BPF_LDX and BPF_ALU/BPF_JMP shared-logic pairs.
func regsInfo(ins *ir.Instr) (src0, src1, dst int) {
	src0, src1, dst = -1, -1, -1

	switch bpf.Class(ins.Code) {
	case bpf.RET:
		switch bpf.RVal(ins.Code) {
		case bpf.A:
			src0 = ir.RegA
		case bpf.X:
			src0 = ir.RegX
		}

	case bpf.LD, bpf.LDX:
		if bpf.Class(ins.Code) == bpf.LD {
			dst = ir.RegA
		} else {
			dst = ir.RegX
		}
		switch bpf.Mode(ins.Code) {
		case bpf.IND:
			src0 = ir.RegX
		case bpf.MEM:
			src0 = int(ins.K)
		}

	case bpf.ST:
		src0 = ir.RegA
		dst = int(ins.K)
	case bpf.STX:
		src0 = ir.RegX
		dst = int(ins.K)

	case bpf.ALU, bpf.JMP:
		if bpf.Class(ins.Code) == bpf.ALU {
			dst = ir.RegA
		}
		if bpf.Src(ins.Code) == bpf.X {
			src0 = ir.RegA
			src1 = ir.RegX
		} else {
			src0 = ir.RegA
		}

	case bpf.MISC:
		if bpf.MiscOp(ins.Code) == bpf.TXA {
			src0 = ir.RegX
		} else {
			src0 = ir.RegA
		}
		if bpf.MiscOp(ins.Code) == bpf.TAX {
			dst = ir.RegX
		} else {
			dst = ir.RegA
		}
	}
	return
}

// deadStep folds one instruction into the dead-store tracker:
// regsInstr[loc] is the last writer to loc whose output has not yet
// been read. A read clears the pending flag on its source; a write that
// clobbers a still-pending writer marks that writer Optimized. A
// division or modulus whose divisor is X or a zero K never becomes a
// pending writer, so it is never elided: it can abort the filter at run
// time, and a constant zero divisor stays in the program as diagnosed.
func (p *pass) deadStep(ins *ir.Instr, regsInstr []*ir.Instr) {
	if ins.Optimized {
		return
	}
	src0, src1, dst := regsInfo(ins)
	if src0 >= 0 {
		regsInstr[src0] = nil
	}
	if src1 >= 0 {
		regsInstr[src1] = nil
	}
	if dst >= 0 {
		if regsInstr[dst] != nil {
			p.setOptimized(regsInstr[dst])
		}
		regsInstr[dst] = ins
		op := bpf.Op(ins.Code)
		if bpf.Class(ins.Code) == bpf.ALU && (op == bpf.DIV || op == bpf.MOD) &&
			(bpf.Src(ins.Code) == bpf.X || ins.K == 0) {
			regsInstr[dst] = nil
		}
	}
}

func (p *pass) deadInstrs(blk *ir.Block) {
	regsInstr := make([]*ir.Instr, ir.RegsMax)
	for _, ins := range blk.Instrs {
		p.deadStep(ins, regsInstr)
	}
	if blk.Jmp != nil {
		p.deadStep(blk.Jmp, regsInstr)
	}
	// Any writer still pending when the block ends never has its
	// output read inside the block -- scratch slots are block-local, so
	// nothing outside the block can observe it either.
	for _, w := range regsInstr {
		if w != nil {
			p.setOptimized(w)
		}
	}
}

func (p *pass) optimizeBlock(blk *ir.Block) {
	blk.Regs = [ir.RegsMax]int{}
	for _, ins := range blk.Instrs {
		p.evalInstr(ins, &blk.Regs)
	}
	// A conditional jump whose X operand is a known constant is rewritten
	// to its K form; the comparison itself is never evaluated, so both
	// successors stay in the program.
	if j := blk.Jmp; j != nil && bpf.Class(j.Code) == bpf.JMP && bpf.Src(j.Code) == bpf.X &&
		p.valueIsConst(blk.Regs[ir.RegX]) {
		p.modify(j, bpf.JMP|bpf.Op(j.Code)|bpf.K, p.valueGet(blk.Regs[ir.RegX]))
	}
	p.deadInstrs(blk)
}

// Optimize runs the value-numbering/constant-folding and dead-store
// elimination passes over every block in ctx to a fixed point: each
// sweep either marks more instructions Optimized or folds more
// constants, both strictly bounded, so the loop always terminates.
//
// It returns any non-fatal diagnostics raised along the way (currently
// only constant division/modulus by zero); the returned program is
// otherwise fully usable regardless of whether diagnostics are present.
func Optimize(ctx *ir.Context) []error {
	var diags []error
	for {
		p := newPass(ctx.InstrCount)
		for _, blk := range ctx.Blocks {
			p.optimizeBlock(blk)
		}
		diags = p.diagnostics
		if !p.modified {
			return diags
		}
	}
}
