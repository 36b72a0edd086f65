package mdionl

import (
	"bytes"
	"math"
	"testing"
)

var allOps = []Op{OpRead, OpWrite, OpAnd, OpOr, OpAdd, OpJeq, OpJne, OpEmit}

func TestArgEncoding(t *testing.T) {
	for v := 0; v <= math.MaxUint16; v++ {
		imm, reg := Imm(uint16(v)), Reg(uint16(v))
		if imm.Mode() != ArgImm || imm.Value() != uint16(v) {
			t.Fatalf("Imm(%d) decoded as %s %d", v, imm.Mode(), imm.Value())
		}
		if reg.Mode() != ArgReg || reg.Value() != uint16(v) {
			t.Fatalf("Reg(%d) decoded as %s %d", v, reg.Mode(), reg.Value())
		}
		if uint32(imm)>>16 != uint32(ArgImm) || uint32(reg)>>16 != uint32(ArgReg) {
			t.Fatalf("tag not in upper half: imm=%#x reg=%#x", uint32(imm), uint32(reg))
		}
	}
	var unused Arg
	if !unused.IsZero() || unused.Mode() != ArgNone {
		t.Fatal("zero arg must be unused")
	}
}

func TestInsnRoundTrip(t *testing.T) {
	var buf [SizeInsn]byte
	for _, op := range allOps {
		for v := 0; v <= math.MaxUint16; v += 257 {
			for _, mk := range []func(uint16) Arg{Imm, Reg} {
				want := Insn{Op: op, Arg0: mk(uint16(v)), Arg1: mk(uint16(math.MaxUint16 - v)), Arg2: mk(uint16(v ^ 0x5a5a))}
				want.Put(buf[:])
				got, err := DecodeInsn(buf[:])
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Fatalf("%s: got %+v want %+v", op, got, want)
				}
				for i, pair := range [][2]Arg{{got.Arg0, want.Arg0}, {got.Arg1, want.Arg1}, {got.Arg2, want.Arg2}} {
					if pair[0].Mode() != pair[1].Mode() || pair[0].Value() != pair[1].Value() {
						t.Fatalf("%s arg%d: got %s want %s", op, i, pair[0], pair[1])
					}
				}
			}
		}
	}
	_, err := DecodeInsn(buf[:SizeInsn-1])
	if err == nil {
		t.Fatal("expected error decoding short instruction")
	}
}

func TestJump(t *testing.T) {
	for from := 0; from < 300; from++ {
		for to := 0; to < 300; to++ {
			jmp := Jump(from, to)
			if jmp.Mode() != ArgImm {
				t.Fatalf("Jump(%d,%d) not immediate", from, to)
			}
			if got := from + 1 + int(jmp.Offset()); got != to {
				t.Fatalf("Jump(%d,%d): from+1+offset=%d", from, to, got)
			}
		}
	}
}

func TestProgramMarshal(t *testing.T) {
	var p Program
	if p.Len() != 0 {
		t.Fatal("zero program not empty")
	}
	b, err := p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	} else if len(b) != 0 {
		t.Fatalf("empty program encoded to %d bytes", len(b))
	}

	i0 := p.Push(Read(Imm(3), Imm(5), Reg(0)))
	i1 := p.Push(Emit(Reg(0)))
	if i0 != 0 || i1 != 1 {
		t.Fatalf("push returned indices %d,%d", i0, i1)
	}
	b, err = p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	} else if len(b) != 2*SizeInsn || p.Size() != len(b) {
		t.Fatalf("want %d bytes, got %d", 2*SizeInsn, len(b))
	}
	prefix := []byte("hdr")
	appended, _ := p.AppendBinary(prefix)
	if !bytes.Equal(appended[len(prefix):], b) {
		t.Fatal("AppendBinary does not match MarshalBinary")
	}

	var got Program
	err = got.UnmarshalBinary(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 || got.Insns()[0] != p.Insns()[0] || got.Insns()[1] != p.Insns()[1] {
		t.Fatalf("round trip mismatch:\n%s\nvs\n%s", got.String(), p.String())
	}
	err = got.UnmarshalBinary(b[:SizeInsn+3])
	if err == nil {
		t.Fatal("expected error on truncated program")
	}
}

func TestScanProgramLayout(t *testing.T) {
	want := []Insn{
		Add(Imm(0), Imm(0), Reg(1)),
		Read(Reg(1), Imm(1), Reg(0)),
		Emit(Reg(0)),
		Read(Reg(1), Imm(2), Reg(0)),
		Emit(Reg(0)),
		Read(Reg(1), Imm(3), Reg(0)),
		Emit(Reg(0)),
		Add(Reg(1), Imm(1), Reg(1)),
		Jne(Reg(1), Imm(DevMax), makeArg(ArgImm, uint16(0xfff8))), // -8
	}
	got := NewScanProgram(DevMax).Insns()
	if len(got) != len(want) {
		t.Fatalf("want %d instructions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("insn %d: want %s, got %s", i, want[i], got[i])
		}
	}
	if off := got[8].Arg2.Offset(); off != -8 {
		t.Errorf("loop offset want -8 got %d", off)
	}
}

func TestOpIsValid(t *testing.T) {
	for _, op := range allOps {
		if !op.IsValid() || op.NumArgs() == 0 {
			t.Errorf("%s must be valid with arguments", op)
		}
	}
	for _, op := range []Op{OpUnspec, opMax, 42} {
		if op.IsValid() || op.NumArgs() != 0 {
			t.Errorf("%s must be invalid", op)
		}
	}
}

func TestInsnString(t *testing.T) {
	tests := []struct {
		insn Insn
		want string
	}{
		{Read(Imm(3), Imm(5), Reg(0)), "read $3, $5, r0"},
		{Emit(Reg(0)), "emit r0"},
		{Jne(Reg(1), Imm(32), Jump(8, 1)), "jne r1, $32, -8"},
		{Insn{Op: 42}, "Op(42)"},
		{Insn{Op: OpUnspec, Arg0: Imm(1)}, "unspec"},
	}
	for _, tt := range tests {
		if got := tt.insn.String(); got != tt.want {
			t.Errorf("want %q, got %q", tt.want, got)
		}
	}
}

func TestDeviceError(t *testing.T) {
	if DeviceError(7).Errno() != 0 {
		t.Error("positive device error has no errno")
	}
	err := DeviceError(-110)
	if err.Errno() != 110 {
		t.Errorf("want errno 110, got %d", err.Errno())
	}
	if err.Error() == "" || ErrProtocol.Error() == "" {
		t.Error("empty error string")
	}
}

func FuzzInsnDecode(f *testing.F) {
	f.Add(make([]byte, SizeInsn))
	var seed [SizeInsn]byte
	Jne(Reg(1), Imm(32), Jump(8, 1)).Put(seed[:])
	f.Add(seed[:])
	f.Fuzz(func(t *testing.T, b []byte) {
		insn, err := DecodeInsn(b)
		if len(b) < SizeInsn {
			if err == nil {
				t.Fatal("expected error for short buffer")
			}
			return
		}
		var out [SizeInsn]byte
		insn.Put(out[:])
		if !bytes.Equal(out[:], b[:SizeInsn]) {
			t.Fatalf("re-encoding mismatch: %x vs %x", out, b[:SizeInsn])
		}
	})
}
