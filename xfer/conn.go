// Package xfer submits mdio programs to the mdio-netlink kernel module
// over generic netlink and collects the values they emit.
//
// A [Client] resolves the "mdio" family once, then opens a dedicated
// netlink socket for every transfer so transfers may run concurrently:
//
//	var c xfer.Client
//	err := c.Configure(xfer.ClientConfig{Loader: xfer.Modprobe{}})
//	if err != nil {
//		return err
//	}
//	phys, err := c.Scan("fixed-0")
package xfer

import (
	"fmt"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/soypat/mdionl"
)

// Conn is the netlink transport used for a single conversation.
// It is implemented by [*netlink.Conn].
type Conn interface {
	Send(m netlink.Message) (netlink.Message, error)
	Receive() ([]netlink.Message, error)
	Close() error
}

var _ Conn = (*netlink.Conn)(nil) // compile time guarantee of interface implementation.

// DialFunc opens a new generic netlink connection.
type DialFunc func() (Conn, error)

// DialGeneric opens a NETLINK_GENERIC socket.
func DialGeneric() (Conn, error) {
	conn, err := netlink.Dial(netlinkGeneric, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// converse sends req and hands every generic netlink reply with a matching sequence
// number to fn until the kernel acknowledges the request, fn reports done or an error occurs.
// Receive failures, kernel errno NACKs included, are wrapped with recvKind and keep the errno.
func converse(conn Conn, req netlink.Message, recvKind error, fn func(seq uint32, gm genetlink.Message) (done bool, err error)) error {
	sent, err := conn.Send(req)
	if err != nil {
		return fmt.Errorf("%w: send: %w", mdionl.ErrTransportUnavailable, err)
	}
	for {
		msgs, err := conn.Receive()
		if err != nil {
			return fmt.Errorf("%w: receive: %w", recvKind, err)
		} else if len(msgs) == 0 {
			return nil // Multi-part done message trimmed by netlink.Conn.
		}
		err = netlink.Validate(sent, msgs)
		if err != nil {
			return fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
		}
		for _, m := range msgs {
			if m.Header.Type == netlink.Error || m.Header.Type == netlink.Done {
				return nil // Acknowledged, conversation over.
			}
			var gm genetlink.Message
			err = gm.UnmarshalBinary(m.Data)
			if err != nil {
				return fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
			}
			done, err := fn(sent.Header.Sequence, gm)
			if err != nil || done {
				return err
			}
		}
	}
}

func newRequest(family uint16, cmd uint8, attrs []byte) (netlink.Message, error) {
	gm := genetlink.Message{
		Header: genetlink.Header{Command: cmd, Version: mdionl.FamilyVersion},
		Data:   attrs,
	}
	b, err := gm.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}
	return netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(family),
			Flags: netlink.Request | netlink.Acknowledge,
		},
		Data: b,
	}, nil
}
