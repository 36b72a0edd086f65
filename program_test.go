package mdionl_test

import (
	"testing"

	"github.com/soypat/mdionl"
	"github.com/soypat/mdionl/internal/mdiotest"
)

func TestScanProgramExec(t *testing.T) {
	for _, n := range []uint16{1, 2, 7, mdionl.DevMax} {
		var bus mdiotest.Bus
		bus.AddPHY(0, 0x0022, 0x1622, 0x796d)
		data, status := mdiotest.Exec(&bus, mdionl.NewScanProgram(n).Insns(), 1<<16)
		if status != 0 {
			t.Fatalf("n=%d: status %d", n, status)
		}
		if len(data) != mdionl.ScanFields*int(n) {
			t.Fatalf("n=%d: want %d values, got %d", n, mdionl.ScanFields*int(n), len(data))
		}
		if bus.Reads != mdionl.ScanFields*int(n) {
			t.Fatalf("n=%d: want %d loop iterations, got %d bus reads", n, n, bus.Reads)
		}
		if data[0] != 0x796d || data[1] != 0x0022 || data[2] != 0x1622 {
			t.Fatalf("n=%d: device 0 triple %#x", n, data[:3])
		}
		for i := 3; i < len(data); i++ {
			if data[i] != 0xffff {
				t.Fatalf("n=%d: absent device value %d = %#x", n, i, data[i])
			}
		}
	}
}

func TestExecBranching(t *testing.T) {
	// r2 = 0; loop: r2 += 3; r3 = r2 & 0xf; r3 |= 0x100; jeq r2, 12 -> out; jump loop; out: emit r2, r3.
	var p mdionl.Program
	p.Push(mdionl.Add(mdionl.Imm(0), mdionl.Imm(0), mdionl.Reg(2)))
	loop := p.Push(mdionl.Add(mdionl.Reg(2), mdionl.Imm(3), mdionl.Reg(2)))
	p.Push(mdionl.And(mdionl.Reg(2), mdionl.Imm(0xf), mdionl.Reg(3)))
	p.Push(mdionl.Or(mdionl.Reg(3), mdionl.Imm(0x100), mdionl.Reg(3)))
	const out = 6
	p.Push(mdionl.Jeq(mdionl.Reg(2), mdionl.Imm(12), mdionl.Jump(p.Len(), out)))
	p.Push(mdionl.Jeq(mdionl.Imm(0), mdionl.Imm(0), mdionl.Jump(p.Len(), loop))) // goto
	if p.Push(mdionl.Emit(mdionl.Reg(2))) != out {
		t.Fatal("bad branch target")
	}
	p.Push(mdionl.Emit(mdionl.Reg(3)))

	var bus mdiotest.Bus
	data, status := mdiotest.Exec(&bus, p.Insns(), 1000)
	if status != 0 {
		t.Fatalf("status %d", status)
	}
	if len(data) != 2 || data[0] != 12 || data[1] != 0x10c {
		t.Fatalf("got %#x", data)
	}
}

func TestExecStepLimit(t *testing.T) {
	var p mdionl.Program
	p.Push(mdionl.Jne(mdionl.Imm(0), mdionl.Imm(1), mdionl.Jump(0, 0))) // spin forever.
	var bus mdiotest.Bus
	_, status := mdiotest.Exec(&bus, p.Insns(), 100)
	if mdionl.DeviceError(status).Errno() == 0 {
		t.Fatalf("expected errno status, got %d", status)
	}
}

func TestExecRejectsUnknownOp(t *testing.T) {
	for _, op := range []mdionl.Op{mdionl.OpUnspec, 42} {
		var p mdionl.Program
		p.Push(mdionl.Emit(mdionl.Imm(7)))
		p.Push(mdionl.Insn{Op: op, Arg0: mdionl.Imm(1), Arg1: mdionl.Imm(1), Arg2: mdionl.Reg(0)})
		p.Push(mdionl.Emit(mdionl.Imm(8)))
		var bus mdiotest.Bus
		data, status := mdiotest.Exec(&bus, p.Insns(), 100)
		if mdionl.DeviceError(status).Errno() == 0 {
			t.Fatalf("%s: expected errno status, got %d", op, status)
		} else if len(data) != 1 || data[0] != 7 {
			t.Fatalf("%s: want values emitted before the bad instruction, got %v", op, data)
		}
	}
}
