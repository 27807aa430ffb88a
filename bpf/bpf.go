// Package bpf provides the bit-exact classic BPF (cBPF) instruction
// encoding used by Linux socket filters: instruction classes, ALU/jump
// operators, addressing modes, and the packed 8-byte on-the-wire layout
// (matching the kernel's struct sock_filter).
package bpf

import "encoding/binary"

// Instruction classes (low 3 bits of Op).
const (
	LD   = 0x00
	LDX  = 0x01
	ST   = 0x02
	STX  = 0x03
	ALU  = 0x04
	JMP  = 0x05
	RET  = 0x06
	MISC = 0x07
)

// Load/store size modifiers.
const (
	W = 0x00 // 32-bit word
	H = 0x08 // 16-bit half-word
	B = 0x10 // 8-bit byte
)

// Addressing modes for LD/LDX.
const (
	IMM = 0x00
	ABS = 0x20
	IND = 0x40
	MEM = 0x60
	LEN = 0x80
	MSH = 0xa0
)

// ALU/JMP operators (bits 4-7).
const (
	ADD = 0x00
	SUB = 0x10
	MUL = 0x20
	DIV = 0x30
	OR  = 0x40
	AND = 0x50
	LSH = 0x60
	RSH = 0x70
	NEG = 0x80
	MOD = 0x90
	XOR = 0xa0

	JA   = 0x00
	JEQ  = 0x10
	JGT  = 0x20
	JGE  = 0x30
	JSET = 0x40
)

// Operand sources, and RET value sources (same bit position).
const (
	K = 0x00
	X = 0x08
	A = 0x10
)

// MISC sub-operators.
const (
	TAX = 0x00
	TXA = 0x80
)

// Class extracts the instruction class (BPF_CLASS).
func Class(code uint16) uint16 { return code & 0x07 }

// Size extracts the load/store size (BPF_SIZE).
func Size(code uint16) uint16 { return code & 0x18 }

// Mode extracts the addressing mode (BPF_MODE).
func Mode(code uint16) uint16 { return code & 0xe0 }

// Op extracts the ALU/JMP operator (BPF_OP).
func Op(code uint16) uint16 { return code & 0xf0 }

// Src extracts the operand source, K or X (BPF_SRC).
func Src(code uint16) uint16 { return code & 0x08 }

// RVal extracts the RET source, K, X or A (BPF_RVAL).
func RVal(code uint16) uint16 { return code & 0x18 }

// MiscOp extracts the MISC sub-operator (BPF_MISCOP).
func MiscOp(code uint16) uint16 { return code & 0xf8 }

// Accept and Drop are the immediate values RET uses for the two
// synthetic terminal verdicts: take the whole packet, or discard it.
const (
	Accept = 0xFFFFFFFF
	Drop   = 0x00000000
)

// RawInstruction is one classic BPF instruction in the exact layout the
// Linux kernel expects for a socket filter program (struct sock_filter):
// a 16-bit opcode, two 8-bit jump offsets, and a 32-bit immediate/offset.
type RawInstruction struct {
	Op uint16
	Jt uint8
	Jf uint8
	K  uint32
}

// InstructionLen is the encoded size of a single RawInstruction in bytes.
const InstructionLen = 8

// Marshal encodes the instruction into the 8-byte little-endian wire
// format matching struct sock_filter.
func (r RawInstruction) Marshal() [InstructionLen]byte {
	var buf [InstructionLen]byte
	binary.LittleEndian.PutUint16(buf[0:2], r.Op)
	buf[2] = r.Jt
	buf[3] = r.Jf
	binary.LittleEndian.PutUint32(buf[4:8], r.K)
	return buf
}

// MarshalProgram encodes a whole program back to back, suitable for
// writing to a file or handing to a kernel ABI that wants raw bytes.
func MarshalProgram(prog []RawInstruction) []byte {
	out := make([]byte, 0, len(prog)*InstructionLen)
	for _, ins := range prog {
		b := ins.Marshal()
		out = append(out, b[:]...)
	}
	return out
}
