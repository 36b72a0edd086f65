package xfer

import (
	"fmt"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/soypat/mdionl"
)

// Reply is the decoded content of one reply message of a transfer.
type Reply struct {
	// Data holds the values emitted by the program in emission order.
	Data []uint32
	// Code is the executor status. Non-zero values are reported as [mdionl.DeviceError].
	Code int32
	// HasCode is set when the message carried the executor status, which
	// marks it as the last reply of the transfer.
	HasCode bool
}

func xferAttrs(bus string, prog *mdionl.Program, timeout uint16) ([]byte, error) {
	ae := netlink.NewAttributeEncoder()
	ae.String(uint16(mdionl.AttrBusID), bus)
	var insns []byte
	if prog != nil {
		var err error
		insns, err = prog.MarshalBinary()
		if err != nil {
			return nil, err
		}
	}
	ae.Bytes(uint16(mdionl.AttrProg), insns)
	ae.Uint16(uint16(mdionl.AttrTimeout), timeout)
	return ae.Encode()
}

func decodeReply(gm genetlink.Message) (r Reply, err error) {
	ad, err := netlink.NewAttributeDecoder(gm.Data)
	if err != nil {
		return r, fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
	}
	hasData := false
	for ad.Next() {
		switch mdionl.Attr(ad.Type()) {
		case mdionl.AttrData:
			hasData = true
			ad.Do(func(b []byte) error {
				r.Data, err = decodeValues(b)
				return err
			})
		case mdionl.AttrError:
			r.Code = int32(ad.Uint32())
			r.HasCode = true
		}
	}
	if err = ad.Err(); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
	} else if !hasData && !r.HasCode {
		return Reply{}, fmt.Errorf("%w: reply without data", mdionl.ErrProtocol)
	}
	return r, nil
}

func decodeValues(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("emitted data length %d not multiple of 4", len(b))
	}
	values := make([]uint32, len(b)/4)
	for i := range values {
		values[i] = nlenc.Uint32(b[i*4 : i*4+4])
	}
	return values, nil
}
