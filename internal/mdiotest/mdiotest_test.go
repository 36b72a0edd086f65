package mdiotest

import (
	"testing"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/soypat/mdionl"
)

func TestXferRepliesMultipart(t *testing.T) {
	for _, stream := range []bool{false, true} {
		k := &Kernel{FamilyID: 0x1c, Buses: map[string]*Bus{"b": new(Bus)}, Chunk: 1, Stream: stream}
		var prog mdionl.Program
		prog.Push(mdionl.Emit(mdionl.Imm(1)))
		prog.Push(mdionl.Emit(mdionl.Imm(2)))
		prog.Push(mdionl.Emit(mdionl.Imm(3)))
		insns, err := prog.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		ae := netlink.NewAttributeEncoder()
		ae.String(uint16(mdionl.AttrBusID), "b")
		ae.Bytes(uint16(mdionl.AttrProg), insns)
		ae.Uint16(uint16(mdionl.AttrTimeout), mdionl.DefaultTimeout)
		attrs, err := ae.Encode()
		if err != nil {
			t.Fatal(err)
		}
		gm := genetlink.Message{Header: genetlink.Header{Command: uint8(mdionl.CmdXfer), Version: mdionl.FamilyVersion}, Data: attrs}
		b, err := gm.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}

		conn := k.Dial()
		_, err = conn.Send(netlink.Message{
			Header: netlink.Header{Type: netlink.HeaderType(k.FamilyID), Flags: netlink.Request | netlink.Acknowledge},
			Data:   b,
		})
		if err != nil {
			t.Fatal(err)
		}
		msgs, err := conn.Receive()
		if err != nil {
			t.Fatal(err)
		}
		data := 0
		for _, m := range msgs {
			if m.Header.Type == netlink.Error {
				continue
			}
			data++
			if m.Header.Flags&netlink.Multi == 0 {
				t.Errorf("stream=%v: transfer reply %d without multi flag", stream, data)
			}
		}
		if data != 3 {
			t.Fatalf("stream=%v: want 3 data replies in one receive, got %d", stream, data)
		}
		conn.Close()
	}
}

func TestFamilyReplySingle(t *testing.T) {
	k := &Kernel{FamilyID: 0x1c}
	ae := netlink.NewAttributeEncoder()
	ae.String(ctrlAttrFamilyName, mdionl.FamilyName)
	attrs, err := ae.Encode()
	if err != nil {
		t.Fatal(err)
	}
	gm := genetlink.Message{Header: genetlink.Header{Command: ctrlCmdGetFamily}, Data: attrs}
	b, err := gm.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	conn := k.Dial()
	defer conn.Close()
	_, err = conn.Send(netlink.Message{Header: netlink.Header{Type: genlIDCtrl, Flags: netlink.Request | netlink.Acknowledge}, Data: b})
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := conn.Receive()
	if err != nil {
		t.Fatal(err)
	} else if len(msgs) == 0 || msgs[0].Header.Flags&netlink.Multi != 0 {
		t.Fatalf("want a single non multi-part reply, got %+v", msgs)
	}
	if k.Lookups() != 1 {
		t.Fatalf("want 1 lookup, got %d", k.Lookups())
	}
}
