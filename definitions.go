package mdionl

import "strconv"

// Generic netlink family registered by the mdio-netlink kernel module.
const (
	FamilyName = "mdio"
	// ModuleName is the kernel module that registers [FamilyName].
	ModuleName = "mdio-netlink"
	// FamilyVersion is the genetlink header version sent with every command.
	FamilyVersion = 1
)

// DevMax is the number of device addresses on a Clause 22 MDIO bus.
const DevMax = 32

// DefaultTimeout is the program execution timeout in milliseconds enforced by the kernel.
const DefaultTimeout uint16 = 1000

// Command is a generic netlink command of the mdio family.
type Command uint8

const (
	CmdUnspec Command = iota
	CmdXfer           // execute a program on a bus
)

// Attr is a netlink attribute type of the mdio family.
type Attr uint16

const (
	AttrUnspec  Attr = iota
	AttrBusID        // string, NUL terminated
	AttrTimeout      // u16 milliseconds
	AttrProg         // concatenated instructions
	AttrData         // u32 array of emitted values
	AttrError        // s32 executor error
)

// Op is an instruction opcode understood by the kernel executor.
type Op uint32

const (
	OpUnspec Op = iota
	OpRead      // read  dev(RI), reg(RI), dst(R)
	OpWrite     // write dev(RI), reg(RI), src(RI)
	OpAnd       // and   a(RI), b(RI), dst(R)
	OpOr        // or    a(RI), b(RI), dst(R)
	OpAdd       // add   a(RI), b(RI), dst(R)
	OpJeq       // jeq   a(RI), b(RI), jmp(I)
	OpJne       // jne   a(RI), b(RI), jmp(I)
	OpEmit      // emit  src(RI)
	opMax
)

// IsValid reports whether op is a known opcode.
func (op Op) IsValid() bool { return op > OpUnspec && op < opMax }

// NumArgs returns the number of argument slots op uses.
func (op Op) NumArgs() int {
	switch op {
	case OpEmit:
		return 1
	case OpRead, OpWrite, OpAnd, OpOr, OpAdd, OpJeq, OpJne:
		return 3
	}
	return 0
}

func (op Op) String() string {
	switch op {
	case OpUnspec:
		return "unspec"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpAdd:
		return "add"
	case OpJeq:
		return "jeq"
	case OpJne:
		return "jne"
	case OpEmit:
		return "emit"
	}
	return "Op(" + strconv.FormatUint(uint64(op), 10) + ")"
}

// ArgMode is the tag stored in the upper 16 bits of an [Arg].
type ArgMode uint16

const (
	ArgNone ArgMode = iota // unused
	ArgReg                 // register
	ArgImm                 // immediate
)

func (m ArgMode) String() string {
	switch m {
	case ArgNone:
		return "none"
	case ArgReg:
		return "reg"
	case ArgImm:
		return "imm"
	}
	return "ArgMode(" + strconv.FormatUint(uint64(m), 10) + ")"
}
