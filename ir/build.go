package ir

import "github.com/hpfc/hpfc/bpf"

// BinOp names the arithmetic/bitwise binary operators a filter
// expression can combine scalar values with.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	And
	Or
	Xor
	Lsh
	Rsh
)

// bpfCode maps a BinOp to the ALU operator nibble used by instr_alu_x_a.
// OP_BXOR had no case in oper_to_bpf_code (it fell through to an
// implicit zero return); that omission is not one of the four flagged
// bugs, so XOR is simply given its correct mapping here.
func (op BinOp) bpfCode() uint16 {
	switch op {
	case Add:
		return bpf.ADD
	case Sub:
		return bpf.SUB
	case Mul:
		return bpf.MUL
	case Div:
		return bpf.DIV
	case And:
		return bpf.AND
	case Or:
		return bpf.OR
	case Xor:
		return bpf.XOR
	case Lsh:
		return bpf.LSH
	case Rsh:
		return bpf.RSH
	default:
		return bpf.ADD
	}
}

// CmpOp names the comparison operators a branch condition can use.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpGt
	CmpGe
	CmpLt
	CmpLe
	CmpSet
)

// jmpCode returns the canonical (non-reversed) jump opcode and whether
// the comparison must be encoded with reversed polarity, mirroring
// oper_to_jmp_code plus the is_reversed assignment in branch_build.
// "<" and "<=" have no direct cBPF opcode, so they are encoded as their
// mirror image (">=",">" respectively) with reversed=true; the caller
// swaps the true/false successor roles to recover the intended meaning.
// "!=" has no direct opcode either (OP_NEQ went unhandled); this
// extends the same reversed-polarity technique to it, encoding != as a
// reversed JEQ -- a supplement, not a fix to one of the four flagged
// bugs.
func (op CmpOp) jmpCode() (code uint16, reversed bool) {
	switch op {
	case CmpEq:
		return bpf.JEQ, false
	case CmpNe:
		return bpf.JEQ, true
	case CmpGt:
		return bpf.JGT, false
	case CmpGe:
		return bpf.JGE, false
	case CmpLt:
		return bpf.JGE, true
	case CmpLe:
		return bpf.JGT, true
	case CmpSet:
		return bpf.JSET, false
	default:
		return bpf.JEQ, false
	}
}

// ProtoBaseLookup resolves a protocol name to its assumed frame base
// offset. ir depends only on this function type, not on the registry
// package, so it stays testable with a fake table.
type ProtoBaseLookup func(name string) (base int, ok bool)

func (c *Context) loadImm(val uint32) *Instr {
	return c.newInstr(bpf.LD|bpf.IMM|bpf.W, 0, 0, val)
}

func (c *Context) storeAMem(reg int) *Instr {
	return c.newInstr(bpf.ST, 0, 0, uint32(reg))
}

func (c *Context) loadMemA(reg int) *Instr {
	return c.newInstr(bpf.LD|bpf.MEM|bpf.W, 0, 0, uint32(reg))
}

func (c *Context) loadMemX(reg int) *Instr {
	return c.newInstr(bpf.LDX|bpf.MEM|bpf.W, 0, 0, uint32(reg))
}

func sizeCode(size int) uint16 {
	switch size {
	case 1:
		return bpf.B
	case 2:
		return bpf.H
	default:
		return bpf.W
	}
}

// ExprNumber loads an immediate constant into a freshly allocated
// scratch slot: LD #val; ST M[r].
func (c *Context) ExprNumber(val uint32) (*Expr, error) {
	r, err := c.regGet()
	if err != nil {
		return nil, err
	}
	v := val
	e := &Expr{
		Instrs:   []*Instr{c.loadImm(val), c.storeAMem(r)},
		Reg:      r,
		ConstVal: &v,
	}
	return e, nil
}

// ExprOffset treats e's value as a byte offset into the packet and loads
// size bytes (1, 2 or 4) from there, using indexed addressing: LDX M[e.reg]
// (the offset becomes X), LD size IND [x+0], ST M[r']. Frees e.reg.
func (c *Context) ExprOffset(e *Expr, size int) (*Expr, error) {
	r, err := c.regGet()
	if err != nil {
		return nil, err
	}
	instrs := append([]*Instr{}, e.Instrs...)
	instrs = append(instrs,
		c.loadMemX(e.Reg),
		c.newInstr(bpf.LD|bpf.IND|sizeCode(size), 0, 0, 0),
		c.storeAMem(r),
	)
	c.regPut(e.Reg)
	return &Expr{Instrs: instrs, Reg: r}, nil
}

// ExprProto resolves name to its registered frame base offset and emits
// it as a number, i.e. ExprNumber(base(name)). expr_proto instead
// allocated sizeof(struct block) and returned it uninitialized, never
// actually computing a base offset; this is one of the four flagged
// bugs and is fixed here.
func (c *Context) ExprProto(name string, lookup ProtoBaseLookup) (*Expr, error) {
	base, ok := lookup(name)
	if !ok {
		return nil, &UnknownFieldError{Name: name}
	}
	return c.ExprNumber(uint32(base))
}

// ExprProtoOffset is equivalent to expr_number(base(name)) + e: it adds a
// field's relative offset e to the protocol's base offset.
func (c *Context) ExprProtoOffset(name string, e *Expr, lookup ProtoBaseLookup) (*Expr, error) {
	base, err := c.ExprProto(name, lookup)
	if err != nil {
		return nil, err
	}
	return c.ExprBinOp(Add, base, e)
}

// ExprBinOp computes left op right: LD M[left.reg]; LDX M[right.reg];
// ALU op A,X; ST M[left.reg]. Frees right.reg and reuses left.reg for
// the result, exactly as expr_build does.
func (c *Context) ExprBinOp(op BinOp, left, right *Expr) (*Expr, error) {
	instrs := append([]*Instr{}, left.Instrs...)
	instrs = append(instrs, right.Instrs...)
	instrs = append(instrs,
		c.loadMemA(left.Reg),
		c.loadMemX(right.Reg),
		c.newInstr(bpf.ALU|op.bpfCode()|bpf.X, 0, 0, 0),
		c.storeAMem(left.Reg),
	)
	c.regPut(right.Reg)
	return &Expr{Instrs: instrs, Reg: left.Reg}, nil
}

// BranchBuild forms a Block whose body computes left and right into
// scratch, loads A from left and X from right, and whose terminating
// jump is the comparison op encodes. Comparisons with no direct cBPF
// opcode ("<", "<=", "!=") are encoded with reversed polarity; the
// successor-linking step (BranchMerge/Finalize) recovers the intended
// truth value by swapping jmp_true/jmp_false roles for reversed blocks.
func (c *Context) BranchBuild(op CmpOp, left, right *Expr) int {
	idx := c.newBlock()
	blk := c.Blocks[idx]

	instrs := append([]*Instr{}, left.Instrs...)
	instrs = append(instrs, right.Instrs...)
	instrs = append(instrs, c.loadMemA(left.Reg), c.loadMemX(right.Reg))
	blk.Instrs = instrs

	code, reversed := op.jmpCode()
	blk.Jmp = c.newInstr(bpf.JMP|code|bpf.X, 0, 0, 0)
	blk.IsReversed = reversed

	c.regPut(left.Reg)
	c.regPut(right.Reg)
	return idx
}

// BranchNot inverts a Block's truth polarity by toggling IsReversed, and
// returns the same index for chaining. branch_not toggled the field but
// declared (and failed to honor) a struct block * return type, forcing
// every caller to rely on the side effect alone; this is one of the
// four flagged bugs and is fixed here by returning idx.
func (c *Context) BranchNot(idx int) int {
	c.Blocks[idx].IsReversed = !c.Blocks[idx].IsReversed
	return idx
}

// BlockBuild wraps a scalar Expr into a Block with no branch, used for
// side-effecting sequencing of a value with no associated condition.
func (c *Context) BlockBuild(e *Expr) int {
	idx := c.newBlock()
	blk := c.Blocks[idx]
	blk.Instrs = append([]*Instr{}, e.Instrs...)
	c.regPut(e.Reg)
	return idx
}
