// Package disasm renders a compiled cBPF program back into the
// conventional one-line-per-instruction text form used by tcpdump and
// the kernel's own filter dumper: "L<n>: <op> <operand>[, L<jt>, L<jf>]".
package disasm

import (
	"fmt"

	"github.com/hpfc/hpfc/bpf"
)

// Ancillary load offsets (SKF_AD_OFF + SKF_AD_*), given symbolic names
// the same way the kernel's own dump helper does, rather than printed
// as bare immediates.
const skfAdOff = 0x1000

const (
	skfAdProtocol = skfAdOff + 0
	skfAdPktType  = skfAdOff + 4
	skfAdIfIndex  = skfAdOff + 8
	skfAdNlAttr   = skfAdOff + 12
	skfAdNlAttrN  = skfAdOff + 16
	skfAdMark     = skfAdOff + 20
	skfAdQueue    = skfAdOff + 24
	skfAdHatype   = skfAdOff + 28
	skfAdRxhash   = skfAdOff + 32
	skfAdCPU      = skfAdOff + 36
	skfAdVlanTag  = skfAdOff + 44
	skfAdVlanTagP = skfAdOff + 48
	skfAdPayOff   = skfAdOff + 52
)

var ancillaryNames = map[uint32]string{
	skfAdProtocol: "proto",
	skfAdPktType:  "type",
	skfAdIfIndex:  "ifidx",
	skfAdNlAttr:   "nla",
	skfAdNlAttrN:  "nlan",
	skfAdMark:     "mark",
	skfAdQueue:    "queue",
	skfAdHatype:   "hatype",
	skfAdRxhash:   "rxhash",
	skfAdCPU:      "cpu",
	skfAdVlanTag:  "vlant",
	skfAdVlanTagP: "vlanp",
	skfAdPayOff:   "poff",
}

// absOperand renders the k of an absolute load: either one of the
// ancillary-data symbolic names, or a bracketed byte offset.
func absOperand(k uint32) string {
	if name, ok := ancillaryNames[k]; ok {
		return name
	}
	return fmt.Sprintf("[%d]", k)
}

// Disassemble renders a single instruction at program position n into
// its mnemonic text. Conditional jumps name both successor labels;
// BPF_JA names only its single target. Opcodes this package doesn't
// recognize render as "unimp 0x<code>" rather than panicking, since a
// disassembler has to survive malformed or foreign input.
func Disassemble(ins bpf.RawInstruction, n int) string {
	op, operand, isCond := decode(ins, n)
	if isCond {
		return fmt.Sprintf("L%d: %s %s, L%d, L%d", n, op, operand, n+1+int(ins.Jt), n+1+int(ins.Jf))
	}
	return fmt.Sprintf("L%d: %s %s", n, op, operand)
}

// decode returns the mnemonic, operand text, and whether the
// instruction is a two-way conditional jump (as opposed to RET, JA, or
// a straight-line ALU/load/store op).
func decode(ins bpf.RawInstruction, n int) (op, operand string, isCond bool) {
	code := ins.Op
	class := bpf.Class(code)

	switch {
	case code == bpf.RET|bpf.K:
		return "ret", fmt.Sprintf("#0x%x", ins.K), false
	case code == bpf.RET|bpf.A:
		return "ret", "a", false
	case code == bpf.RET|bpf.X:
		return "ret", "x", false

	case code == bpf.LD|bpf.W|bpf.ABS:
		return "ld", absOperand(ins.K), false
	case code == bpf.LD|bpf.H|bpf.ABS:
		return "ldh", absOperand(ins.K), false
	case code == bpf.LD|bpf.B|bpf.ABS:
		return "ldb", absOperand(ins.K), false
	case code == bpf.LD|bpf.W|bpf.LEN:
		return "ld", "#len", false
	case code == bpf.LD|bpf.W|bpf.IND:
		return "ld", fmt.Sprintf("[x + %d]", ins.K), false
	case code == bpf.LD|bpf.H|bpf.IND:
		return "ldh", fmt.Sprintf("[x + %d]", ins.K), false
	case code == bpf.LD|bpf.B|bpf.IND:
		return "ldb", fmt.Sprintf("[x + %d]", ins.K), false
	case code == bpf.LD|bpf.IMM:
		return "ld", fmt.Sprintf("#0x%x", ins.K), false
	case code == bpf.LDX|bpf.IMM:
		return "ldx", fmt.Sprintf("#0x%x", ins.K), false
	case code == bpf.LDX|bpf.B|bpf.MSH:
		return "ldxb", fmt.Sprintf("4*([%d]&0xf)", ins.K), false
	case code == bpf.LD|bpf.MEM:
		return "ld", fmt.Sprintf("M[%d]", ins.K), false
	case code == bpf.LDX|bpf.MEM:
		return "ldx", fmt.Sprintf("M[%d]", ins.K), false

	case code == bpf.ST:
		return "st", fmt.Sprintf("M[%d]", ins.K), false
	case code == bpf.STX:
		return "stx", fmt.Sprintf("M[%d]", ins.K), false

	case code == bpf.JMP|bpf.JA:
		return "ja", fmt.Sprintf("%d", n+1+int(ins.K)), false

	// Every defined cBPF opcode fits in the low byte; anything wider, or
	// an operator nibble with no mnemonic, falls through to unimp.
	case class == bpf.JMP && code <= 0xff && jmpMnemonic(code) != "unimp":
		return jmpMnemonic(code), jmpOperand(code, ins.K), true

	case class == bpf.ALU && code <= 0xff && aluMnemonic(code) != "unimp":
		return aluMnemonic(code), aluOperand(code, ins.K), false

	case code == bpf.MISC|bpf.TAX:
		return "tax", "", false
	case code == bpf.MISC|bpf.TXA:
		return "txa", "", false
	}

	return "unimp", fmt.Sprintf("0x%x", code), false
}

func jmpMnemonic(code uint16) string {
	switch bpf.Op(code) {
	case bpf.JEQ:
		return "jeq"
	case bpf.JGT:
		return "jgt"
	case bpf.JGE:
		return "jge"
	case bpf.JSET:
		return "jset"
	default:
		return "unimp"
	}
}

func jmpOperand(code uint16, k uint32) string {
	if bpf.Src(code) == bpf.X {
		return "x"
	}
	return fmt.Sprintf("#0x%x", k)
}

func aluMnemonic(code uint16) string {
	switch bpf.Op(code) {
	case bpf.ADD:
		return "add"
	case bpf.SUB:
		return "sub"
	case bpf.MUL:
		return "mul"
	case bpf.DIV:
		return "div"
	case bpf.MOD:
		return "mod"
	case bpf.NEG:
		return "neg"
	case bpf.AND:
		return "and"
	case bpf.OR:
		return "or"
	case bpf.XOR:
		return "xor"
	case bpf.LSH:
		return "lsh"
	case bpf.RSH:
		return "rsh"
	default:
		return "unimp"
	}
}

func aluOperand(code uint16, k uint32) string {
	if bpf.Op(code) == bpf.NEG {
		return ""
	}
	if bpf.Src(code) == bpf.X {
		return "x"
	}
	switch bpf.Op(code) {
	case bpf.AND, bpf.OR, bpf.XOR:
		return fmt.Sprintf("#0x%x", k)
	default:
		return fmt.Sprintf("#%d", k)
	}
}

// Program renders every instruction in prog, in order, one line per
// instruction.
func Program(prog []bpf.RawInstruction) []string {
	lines := make([]string, len(prog))
	for i, ins := range prog {
		lines[i] = Disassemble(ins, i)
	}
	return lines
}
