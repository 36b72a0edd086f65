package mdionl

import (
	"encoding/binary"
	"errors"
	"strconv"
)

// SizeInsn is the size of an encoded [Insn]: the opcode and three arguments as native endian uint32.
const SizeInsn = 16

var errShortInsn = errors.New("short instruction")

// Arg is an instruction operand as sent on the wire. The upper 16 bits
// hold the [ArgMode] and the lower 16 bits hold an immediate value or a register index.
// The zero Arg marks an unused slot.
type Arg uint32

// Imm returns an immediate operand.
func Imm(v uint16) Arg { return makeArg(ArgImm, v) }

// Reg returns a register operand.
func Reg(idx uint16) Arg { return makeArg(ArgReg, idx) }

// Jump returns the immediate branch operand of a jump instruction at index from
// so that execution continues at index to. The executor advances the program counter
// before applying the offset so to == from + 1 + offset.
func Jump(from, to int) Arg { return makeArg(ArgImm, uint16(int16(to-from-1))) }

func makeArg(mode ArgMode, v uint16) Arg { return Arg(uint32(mode)<<16 | uint32(v)) }

// Mode returns the operand tag.
func (a Arg) Mode() ArgMode { return ArgMode(a >> 16) }

// Value returns the immediate value or register index.
func (a Arg) Value() uint16 { return uint16(a) }

// Offset interprets an immediate as a signed branch offset.
func (a Arg) Offset() int16 { return int16(a) }

// IsZero reports whether the argument slot is unused.
func (a Arg) IsZero() bool { return a == 0 }

func (a Arg) String() string {
	switch a.Mode() {
	case ArgNone:
		return "-"
	case ArgReg:
		return "r" + strconv.Itoa(int(a.Value()))
	case ArgImm:
		return "$" + strconv.Itoa(int(a.Value()))
	}
	return "Arg(" + strconv.FormatUint(uint64(a), 16) + ")"
}

// Insn is a single executor instruction.
type Insn struct {
	Op   Op
	Arg0 Arg
	Arg1 Arg
	Arg2 Arg
}

// Read loads register reg of device dev into dst, which must be a register.
func Read(dev, reg, dst Arg) Insn { return Insn{Op: OpRead, Arg0: dev, Arg1: reg, Arg2: dst} }

// Write stores src into register reg of device dev.
func Write(dev, reg, src Arg) Insn { return Insn{Op: OpWrite, Arg0: dev, Arg1: reg, Arg2: src} }

// Add stores a+b into dst.
func Add(a, b, dst Arg) Insn { return Insn{Op: OpAdd, Arg0: a, Arg1: b, Arg2: dst} }

// And stores a&b into dst.
func And(a, b, dst Arg) Insn { return Insn{Op: OpAnd, Arg0: a, Arg1: b, Arg2: dst} }

// Or stores a|b into dst.
func Or(a, b, dst Arg) Insn { return Insn{Op: OpOr, Arg0: a, Arg1: b, Arg2: dst} }

// Jeq branches by jmp when a==b. Use [Jump] to compute jmp.
func Jeq(a, b, jmp Arg) Insn { return Insn{Op: OpJeq, Arg0: a, Arg1: b, Arg2: jmp} }

// Jne branches by jmp when a!=b. Use [Jump] to compute jmp.
func Jne(a, b, jmp Arg) Insn { return Insn{Op: OpJne, Arg0: a, Arg1: b, Arg2: jmp} }

// Emit appends src to the reply data.
func Emit(src Arg) Insn { return Insn{Op: OpEmit, Arg0: src} }

// Put encodes the instruction into the first [SizeInsn] bytes of b.
func (in Insn) Put(b []byte) {
	_ = b[SizeInsn-1] // bounds check hint.
	binary.NativeEndian.PutUint32(b[0:4], uint32(in.Op))
	binary.NativeEndian.PutUint32(b[4:8], uint32(in.Arg0))
	binary.NativeEndian.PutUint32(b[8:12], uint32(in.Arg1))
	binary.NativeEndian.PutUint32(b[12:16], uint32(in.Arg2))
}

// AppendBinary appends the encoded instruction to dst.
func (in Insn) AppendBinary(dst []byte) ([]byte, error) {
	var buf [SizeInsn]byte
	in.Put(buf[:])
	return append(dst, buf[:]...), nil
}

// DecodeInsn decodes an instruction from the first [SizeInsn] bytes of b.
func DecodeInsn(b []byte) (Insn, error) {
	if len(b) < SizeInsn {
		return Insn{}, errShortInsn
	}
	return Insn{
		Op:   Op(binary.NativeEndian.Uint32(b[0:4])),
		Arg0: Arg(binary.NativeEndian.Uint32(b[4:8])),
		Arg1: Arg(binary.NativeEndian.Uint32(b[8:12])),
		Arg2: Arg(binary.NativeEndian.Uint32(b[12:16])),
	}, nil
}

func (in Insn) String() string {
	s := in.Op.String()
	if !in.Op.IsValid() {
		return s
	}
	switch in.Op.NumArgs() {
	case 1:
		s += " " + in.Arg0.String()
	case 3:
		last := in.Arg2.String()
		if (in.Op == OpJeq || in.Op == OpJne) && in.Arg2.Mode() == ArgImm {
			last = strconv.Itoa(int(in.Arg2.Offset()))
		}
		s += " " + in.Arg0.String() + ", " + in.Arg1.String() + ", " + last
	}
	return s
}
