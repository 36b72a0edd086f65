// Package mdiotest emulates the generic netlink controller and the mdio-netlink
// program executor so transfers can be tested without the kernel module.
package mdiotest

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nltest"
	"github.com/soypat/mdionl"
)

// Generic netlink controller definitions from linux/genetlink.h.
const (
	genlIDCtrl         = 0x10
	ctrlCmdNewFamily   = 1
	ctrlCmdGetFamily   = 3
	ctrlAttrFamilyID   = 1
	ctrlAttrFamilyName = 2
)

// NumRegs is the number of executor registers.
const NumRegs = 8

const defaultMaxSteps = 1 << 16

// Kernel answers requests sent over connections returned by [Kernel.Dial].
// Exported fields must be set before the first Dial.
type Kernel struct {
	// FamilyID is the identifier of the mdio family. Zero means the module is not loaded.
	FamilyID uint16
	Buses    map[string]*Bus
	// MaxSteps bounds the instructions executed per program before
	// the executor gives up with -ETIMEDOUT. Defaults to 65536.
	MaxSteps int
	// Chunk splits emitted values over several reply messages of at most
	// Chunk values each when positive.
	Chunk int
	// SkewSequence makes replies carry a sequence number not matching the request.
	SkewSequence bool
	// Stream delivers a single reply message per socket read instead of
	// the whole reply in one read.
	Stream bool
	// Status replaces the executor status of every transfer when non-zero.
	Status int32

	mu          sync.Mutex
	lookups     int
	xfers       int
	lastTimeout uint16
	lastProg    mdionl.Program
}

// Bus is an emulated Clause 22 MDIO bus.
type Bus struct {
	Regs    [mdionl.DevMax][32]uint16
	Present [mdionl.DevMax]bool
	Reads   int
	Writes  int
}

// AddPHY marks addr as present with the given identifier and basic status.
func (b *Bus) AddPHY(addr uint8, id1, id2, bmsr uint16) {
	b.Present[addr] = true
	b.Regs[addr][0x01] = bmsr
	b.Regs[addr][0x02] = id1
	b.Regs[addr][0x03] = id2
}

func (b *Bus) read(dev, reg uint32) (uint16, int32) {
	if dev >= mdionl.DevMax {
		return 0, -int32(syscall.ENODEV)
	} else if reg >= 32 {
		return 0, -int32(syscall.EINVAL)
	}
	b.Reads++
	if !b.Present[dev] {
		return 0xffff, 0 // Pulled up data line.
	}
	return b.Regs[dev][reg], 0
}

func (b *Bus) write(dev, reg uint32, v uint16) int32 {
	if dev >= mdionl.DevMax {
		return -int32(syscall.ENODEV)
	} else if reg >= 32 {
		return -int32(syscall.EINVAL)
	}
	b.Writes++
	if b.Present[dev] {
		b.Regs[dev][reg] = v
	}
	return 0
}

// Dial returns a new connection to the emulated kernel.
func (k *Kernel) Dial() *netlink.Conn {
	var pending []netlink.Message
	return nltest.Dial(func(reqs []netlink.Message) ([]netlink.Message, error) {
		if len(reqs) == 0 {
			if len(pending) == 0 {
				return nil, io.EOF // Nothing pending.
			}
			next := pending[:1]
			pending = pending[1:]
			return next, nil
		}
		msgs, err := k.handle(reqs)
		if err == nil && k.Stream && len(msgs) > 1 {
			pending = msgs[1:]
			msgs = msgs[:1]
		}
		return msgs, err
	})
}

// Lookups returns the number of family discovery requests received.
func (k *Kernel) Lookups() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lookups
}

// Xfers returns the number of programs executed.
func (k *Kernel) Xfers() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.xfers
}

// LastTimeout returns the timeout attribute of the last transfer.
func (k *Kernel) LastTimeout() uint16 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastTimeout
}

// LastProgram returns a copy of the last program received.
func (k *Kernel) LastProgram() []mdionl.Insn {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]mdionl.Insn(nil), k.lastProg.Insns()...)
}

func (k *Kernel) handle(reqs []netlink.Message) ([]netlink.Message, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	req := reqs[0]
	var gm genetlink.Message
	err := gm.UnmarshalBinary(req.Data)
	if err != nil {
		return nltest.Error(int(syscall.EINVAL), reqs)
	}
	switch {
	case req.Header.Type == genlIDCtrl && gm.Header.Command == ctrlCmdGetFamily:
		return k.getFamily(reqs, gm)
	case k.FamilyID != 0 && uint16(req.Header.Type) == k.FamilyID && gm.Header.Command == uint8(mdionl.CmdXfer):
		return k.xfer(reqs, gm)
	}
	return nltest.Error(int(syscall.EOPNOTSUPP), reqs)
}

func (k *Kernel) getFamily(reqs []netlink.Message, gm genetlink.Message) ([]netlink.Message, error) {
	k.lookups++
	ad, err := netlink.NewAttributeDecoder(gm.Data)
	if err != nil {
		return nltest.Error(int(syscall.EINVAL), reqs)
	}
	var name string
	for ad.Next() {
		if ad.Type() == ctrlAttrFamilyName {
			name = ad.String()
		}
	}
	if ad.Err() != nil {
		return nltest.Error(int(syscall.EINVAL), reqs)
	} else if name != mdionl.FamilyName || k.FamilyID == 0 {
		return nltest.Error(int(syscall.ENOENT), reqs)
	}
	ae := netlink.NewAttributeEncoder()
	ae.String(ctrlAttrFamilyName, name)
	ae.Uint16(ctrlAttrFamilyID, k.FamilyID)
	return k.replies(reqs, ctrlCmdNewFamily, ae)
}

func (k *Kernel) xfer(reqs []netlink.Message, gm genetlink.Message) ([]netlink.Message, error) {
	k.xfers++
	ad, err := netlink.NewAttributeDecoder(gm.Data)
	if err != nil {
		return nltest.Error(int(syscall.EINVAL), reqs)
	}
	var busID string
	var prog []byte
	for ad.Next() {
		switch mdionl.Attr(ad.Type()) {
		case mdionl.AttrBusID:
			busID = ad.String()
		case mdionl.AttrProg:
			prog = ad.Bytes()
		case mdionl.AttrTimeout:
			k.lastTimeout = ad.Uint16()
		}
	}
	if ad.Err() != nil || k.lastProg.UnmarshalBinary(prog) != nil {
		return nltest.Error(int(syscall.EINVAL), reqs)
	}
	bus := k.Buses[busID]
	if bus == nil {
		return nltest.Error(int(syscall.ENODEV), reqs)
	}
	maxSteps := k.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	data, status := Exec(bus, k.lastProg.Insns(), maxSteps)
	if k.Status != 0 {
		status = k.Status
	}

	var msgs []netlink.Message
	for {
		chunk := data
		if k.Chunk > 0 && len(chunk) > k.Chunk {
			chunk = chunk[:k.Chunk]
		}
		data = data[len(chunk):]
		ae := netlink.NewAttributeEncoder()
		ae.Bytes(uint16(mdionl.AttrData), appendValues(nil, chunk))
		last := len(data) == 0
		if last {
			ae.Uint32(uint16(mdionl.AttrError), uint32(status))
		}
		// The module sends every transfer reply as part of a multi-part message
		// terminated by the acknowledgement.
		msg, err := k.reply(reqs[0], uint8(mdionl.CmdXfer), netlink.Multi, ae)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		if last {
			break
		}
	}
	ack, _ := nltest.Error(0, reqs)
	return append(msgs, ack...), nil
}

func (k *Kernel) replies(reqs []netlink.Message, cmd uint8, ae *netlink.AttributeEncoder) ([]netlink.Message, error) {
	msg, err := k.reply(reqs[0], cmd, 0, ae)
	if err != nil {
		return nil, err
	}
	ack, _ := nltest.Error(0, reqs)
	return append([]netlink.Message{msg}, ack...), nil
}

func (k *Kernel) reply(req netlink.Message, cmd uint8, flags netlink.HeaderFlags, ae *netlink.AttributeEncoder) (netlink.Message, error) {
	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, err
	}
	gm := genetlink.Message{
		Header: genetlink.Header{Command: cmd, Version: mdionl.FamilyVersion},
		Data:   attrs,
	}
	b, err := gm.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}
	seq := req.Header.Sequence
	if k.SkewSequence {
		seq++
	}
	return netlink.Message{
		Header: netlink.Header{
			Length:   uint32(16 + len(b)),
			Type:     req.Header.Type,
			Flags:    flags,
			Sequence: seq,
			PID:      req.Header.PID,
		},
		Data: b,
	}, nil
}

func appendValues(dst []byte, values []uint32) []byte {
	for _, v := range values {
		dst = binary.NativeEndian.AppendUint32(dst, v)
	}
	return dst
}

var errBadArg = errors.New("bad argument")

// Exec runs prog on b the way the kernel executor does and returns
// the emitted values and the executor status, zero on success or a negated errno.
func Exec(b *Bus, prog []mdionl.Insn, maxSteps int) (data []uint32, status int32) {
	var regs [NumRegs]uint32
	load := func(a mdionl.Arg) (uint32, error) {
		switch a.Mode() {
		case mdionl.ArgImm:
			return uint32(a.Value()), nil
		case mdionl.ArgReg:
			if a.Value() >= NumRegs {
				return 0, errBadArg
			}
			return regs[a.Value()], nil
		}
		return 0, errBadArg
	}
	store := func(a mdionl.Arg, v uint32) error {
		if a.Mode() != mdionl.ArgReg || a.Value() >= NumRegs {
			return errBadArg
		}
		regs[a.Value()] = v
		return nil
	}
	const einval = -int32(syscall.EINVAL)
	pc := 0
	for steps := 0; pc < len(prog); steps++ {
		if steps >= maxSteps {
			return data, -int32(syscall.ETIMEDOUT)
		}
		insn := prog[pc]
		pc++
		if !insn.Op.IsValid() {
			return data, einval
		}
		a, errA := load(insn.Arg0)
		if errA != nil {
			return data, einval
		}
		if insn.Op == mdionl.OpEmit {
			data = append(data, a)
			continue
		}
		bv, errB := load(insn.Arg1)
		if errB != nil {
			return data, einval
		}
		var err error
		switch insn.Op {
		case mdionl.OpRead:
			v, st := b.read(a, bv)
			if st != 0 {
				return data, st
			}
			err = store(insn.Arg2, uint32(v))
		case mdionl.OpWrite:
			var src uint32
			src, err = load(insn.Arg2)
			if err == nil {
				if st := b.write(a, bv, uint16(src)); st != 0 {
					return data, st
				}
			}
		case mdionl.OpAdd:
			err = store(insn.Arg2, a+bv)
		case mdionl.OpAnd:
			err = store(insn.Arg2, a&bv)
		case mdionl.OpOr:
			err = store(insn.Arg2, a|bv)
		case mdionl.OpJeq, mdionl.OpJne:
			if insn.Arg2.Mode() != mdionl.ArgImm {
				return data, einval
			}
			if (a == bv) == (insn.Op == mdionl.OpJeq) {
				pc += int(insn.Arg2.Offset())
				if pc < 0 {
					return data, einval
				}
			}
		default:
			return data, einval
		}
		if err != nil {
			return data, einval
		}
	}
	return data, 0
}
