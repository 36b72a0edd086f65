package mdionl

import (
	"errors"
	"strconv"
	"strings"
)

// Program is an ordered sequence of instructions executed by the kernel
// in a single transfer. Execution proceeds in order except where a jump redirects it.
// The zero value is an empty program ready for use.
type Program struct {
	insns []Insn
}

// Push appends insn to the program and returns its index, which
// may be used as a [Jump] source or target.
func (p *Program) Push(insn Insn) int {
	p.insns = append(p.insns, insn)
	return len(p.insns) - 1
}

// Len returns the number of instructions in the program.
func (p *Program) Len() int { return len(p.insns) }

// Insns returns the program instructions. The returned slice must not be modified.
func (p *Program) Insns() []Insn { return p.insns }

// Reset empties the program keeping its storage.
func (p *Program) Reset() { p.insns = p.insns[:0] }

// Size returns the length of the encoded program in bytes.
func (p *Program) Size() int { return len(p.insns) * SizeInsn }

// AppendBinary appends the wire encoding of the program to dst.
func (p *Program) AppendBinary(dst []byte) ([]byte, error) {
	off := len(dst)
	dst = append(dst, make([]byte, p.Size())...)
	for i := range p.insns {
		p.insns[i].Put(dst[off+i*SizeInsn:])
	}
	return dst, nil
}

// MarshalBinary returns the wire encoding of the program.
func (p *Program) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, p.Size()))
}

// UnmarshalBinary replaces the program with the instructions encoded in b.
func (p *Program) UnmarshalBinary(b []byte) error {
	if len(b)%SizeInsn != 0 {
		return errors.New("program length not multiple of instruction size")
	}
	p.Reset()
	for len(b) > 0 {
		insn, err := DecodeInsn(b)
		if err != nil {
			return err
		}
		p.insns = append(p.insns, insn)
		b = b[SizeInsn:]
	}
	return nil
}

func (p *Program) String() string {
	var sb strings.Builder
	for i, insn := range p.insns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(": ")
		sb.WriteString(insn.String())
	}
	return sb.String()
}

// Registers used by the scan program.
const (
	scanRegValue = 0
	scanRegIndex = 1
)

// Clause 22 registers read by the scan program for every device.
const (
	scanRegBMSR  = 0x01
	scanRegIDHi  = 0x02
	scanRegIDLow = 0x03
)

// ScanFields is the number of values emitted per device by a scan program.
const ScanFields = 3

// NewScanProgram returns a program that reads the basic status register and both
// PHY identifier registers of every device address in 0..devices-1, emitting
// [ScanFields] values per device in that order. NewScanProgram panics if devices is zero.
func NewScanProgram(devices uint16) *Program {
	if devices == 0 {
		panic("zero scan devices")
	}
	var p Program
	p.insns = make([]Insn, 0, 9)
	idx, val := Reg(scanRegIndex), Reg(scanRegValue)
	p.Push(Add(Imm(0), Imm(0), idx))
	loop := p.Push(Read(idx, Imm(scanRegBMSR), val))
	p.Push(Emit(val))
	p.Push(Read(idx, Imm(scanRegIDHi), val))
	p.Push(Emit(val))
	p.Push(Read(idx, Imm(scanRegIDLow), val))
	p.Push(Emit(val))
	p.Push(Add(idx, Imm(1), idx))
	jmp := p.Len()
	p.Push(Jne(idx, Imm(devices), Jump(jmp, loop)))
	return &p
}
