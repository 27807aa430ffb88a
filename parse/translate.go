package parse

import (
	"strconv"

	"github.com/hpfc/hpfc/ir"
	"github.com/hpfc/hpfc/registry"
)

// Translator lowers a parsed grammar tree into ir builder calls. It
// holds no state of its own beyond the Context and lookup hooks it was
// given, so it adds nothing to the compile's resource lifetime beyond
// what the ir package already tracks.
type Translator struct {
	Ctx       *ir.Context
	Fields    registry.LookupFunc
	ProtoBase ir.ProtoBaseLookup
}

// NewTranslator wires a Translator against the process-wide registry,
// the only configuration the front end needs.
func NewTranslator(ctx *ir.Context) *Translator {
	return &Translator{Ctx: ctx, Fields: registry.Lookup, ProtoBase: registry.LookupProtoBase}
}

// Translate lowers the root of a parsed expression to a block index
// ready for ir.Context.Finalize. It does not finalize itself, since a
// caller may want to inspect or further combine the result first.
func (t *Translator) Translate(root *OrExpr) (int, error) {
	idx, _, err := t.translateOr(root)
	return idx, err
}

func (t *Translator) translateOr(n *OrExpr) (idx int, hasJmp bool, err error) {
	idx, hasJmp, err = t.translateAnd(n.Left)
	if err != nil {
		return 0, false, err
	}
	for _, rhs := range n.Rest {
		if !hasJmp {
			return 0, false, &SemanticError{Text: "'or' requires a boolean comparison on its left operand"}
		}
		rIdx, rHasJmp, rerr := t.translateAnd(rhs)
		if rerr != nil {
			return 0, false, rerr
		}
		if !rHasJmp {
			return 0, false, &SemanticError{Text: "'or' requires a boolean comparison on its right operand"}
		}
		idx = t.Ctx.BranchMerge(ir.BoolOr, idx, rIdx)
		hasJmp = true
	}
	return idx, hasJmp, nil
}

func (t *Translator) translateAnd(n *AndExpr) (idx int, hasJmp bool, err error) {
	idx, hasJmp, err = t.translateNot(n.Left)
	if err != nil {
		return 0, false, err
	}
	for _, rhs := range n.Rest {
		if !hasJmp {
			return 0, false, &SemanticError{Text: "'and' requires a boolean comparison on its left operand"}
		}
		rIdx, rHasJmp, rerr := t.translateNot(rhs)
		if rerr != nil {
			return 0, false, rerr
		}
		if !rHasJmp {
			return 0, false, &SemanticError{Text: "'and' requires a boolean comparison on its right operand"}
		}
		idx = t.Ctx.BranchMerge(ir.BoolAnd, idx, rIdx)
		hasJmp = true
	}
	return idx, hasJmp, nil
}

func (t *Translator) translateNot(n *NotExpr) (idx int, hasJmp bool, err error) {
	idx, hasJmp, err = t.translateAtom(n.Atom)
	if err != nil {
		return 0, false, err
	}
	if n.Not {
		if !hasJmp {
			return 0, false, &SemanticError{Text: "'not' requires a boolean comparison, not a bare value"}
		}
		idx = t.Ctx.BranchNot(idx)
	}
	return idx, hasJmp, nil
}

func (t *Translator) translateAtom(a *Atom) (idx int, hasJmp bool, err error) {
	if a.Group != nil {
		return t.translateOr(a.Group)
	}
	return t.translateComparison(a.Cmp)
}

func (t *Translator) translateComparison(c *Comparison) (idx int, hasJmp bool, err error) {
	left, err := t.translateArith(c.Left)
	if err != nil {
		return 0, false, err
	}
	if c.Op == nil {
		return t.Ctx.BlockBuild(left), false, nil
	}
	right, err := t.translateArith(c.Right)
	if err != nil {
		return 0, false, err
	}
	op, err := cmpOpFromToken(*c.Op)
	if err != nil {
		return 0, false, err
	}
	return t.Ctx.BranchBuild(op, left, right), true, nil
}

func (t *Translator) translateArith(a *Arith) (*ir.Expr, error) {
	left, err := t.translateTerm(a.Left)
	if err != nil {
		return nil, err
	}
	for _, rhs := range a.Ops {
		right, rerr := t.translateTerm(rhs.Right)
		if rerr != nil {
			return nil, rerr
		}
		op, oerr := binOpFromToken(rhs.Op)
		if oerr != nil {
			return nil, oerr
		}
		left, err = t.Ctx.ExprBinOp(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (t *Translator) translateTerm(term *Term) (*ir.Expr, error) {
	switch {
	case term.SubArith != nil:
		return t.translateArith(term.SubArith)
	case term.Number != nil:
		v, err := strconv.ParseUint(*term.Number, 0, 32)
		if err != nil {
			return nil, &SyntaxError{Text: *term.Number, Err: err}
		}
		return t.Ctx.ExprNumber(uint32(v))
	case term.Field != nil:
		return t.translateField(term.Field)
	default:
		return nil, &SemanticError{Text: "empty term"}
	}
}

// translateField resolves a dotted "proto.field" reference to the
// absolute byte offset its protocol base plus the field's relative
// offset names, then emits the indirect load (and mask, if the field
// has one) that reads it from the packet.
func (t *Translator) translateField(f *Field) (*ir.Expr, error) {
	if len(f.Parts) != 2 {
		return nil, &ir.UnknownFieldError{Name: joinDots(f.Parts)}
	}
	dotted := f.Parts[0] + "." + f.Parts[1]
	fd, ok := t.Fields(dotted)
	if !ok {
		return nil, &ir.UnknownFieldError{Name: dotted}
	}

	relOffset, err := t.Ctx.ExprNumber(uint32(fd.Offset))
	if err != nil {
		return nil, err
	}
	absOffset, err := t.Ctx.ExprProtoOffset(fd.Proto, relOffset, t.ProtoBase)
	if err != nil {
		return nil, err
	}
	loaded, err := t.Ctx.ExprOffset(absOffset, fd.Length)
	if err != nil {
		return nil, err
	}
	if fd.Mask == 0 {
		return loaded, nil
	}
	maskVal, err := t.Ctx.ExprNumber(fd.Mask)
	if err != nil {
		return nil, err
	}
	return t.Ctx.ExprBinOp(ir.And, loaded, maskVal)
}

func joinDots(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "." + p
	}
	return out
}

func cmpOpFromToken(tok string) (ir.CmpOp, error) {
	switch tok {
	case "==":
		return ir.CmpEq, nil
	case "!=":
		return ir.CmpNe, nil
	case ">":
		return ir.CmpGt, nil
	case ">=":
		return ir.CmpGe, nil
	case "<":
		return ir.CmpLt, nil
	case "<=":
		return ir.CmpLe, nil
	case "~":
		return ir.CmpSet, nil
	default:
		return 0, &SemanticError{Text: "unknown comparison operator " + tok}
	}
}

func binOpFromToken(tok string) (ir.BinOp, error) {
	switch tok {
	case "+":
		return ir.Add, nil
	case "-":
		return ir.Sub, nil
	case "*":
		return ir.Mul, nil
	case "/":
		return ir.Div, nil
	case "&":
		return ir.And, nil
	case "|":
		return ir.Or, nil
	case "^":
		return ir.Xor, nil
	case "<<":
		return ir.Lsh, nil
	case ">>":
		return ir.Rsh, nil
	default:
		return 0, &SemanticError{Text: "unknown arithmetic operator " + tok}
	}
}
