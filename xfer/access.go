package xfer

import (
	"fmt"

	"github.com/soypat/mdionl"
	"github.com/soypat/mdionl/phy"
)

var errClause45 = fmt.Errorf("%w: mdio-netlink bus supports Clause 22 access only", mdionl.ErrInvalidArgument)

// ReadRegister reads register reg of device dev on bus.
func (c *Client) ReadRegister(bus string, dev, reg uint16) (uint16, error) {
	var prog mdionl.Program
	prog.Push(mdionl.Read(mdionl.Imm(dev), mdionl.Imm(reg), mdionl.Reg(0)))
	prog.Push(mdionl.Emit(mdionl.Reg(0)))
	var value uint32
	n := 0
	err := c.Execute(bus, &prog, func(r Reply) error {
		n += len(r.Data)
		if n > 1 {
			return fmt.Errorf("%w: read got %d values", mdionl.ErrProtocol, n)
		} else if len(r.Data) == 1 {
			value = r.Data[0]
		}
		return nil
	})
	if err != nil {
		return 0, err
	} else if n != 1 {
		return 0, fmt.Errorf("%w: read got %d values", mdionl.ErrProtocol, n)
	}
	return uint16(value), nil
}

// WriteRegister writes val to register reg of device dev on bus.
func (c *Client) WriteRegister(bus string, dev, reg, val uint16) error {
	var prog mdionl.Program
	prog.Push(mdionl.Write(mdionl.Imm(dev), mdionl.Imm(reg), mdionl.Imm(val)))
	// Emitting forces a reply carrying the executor status; the value is meaningless.
	prog.Push(mdionl.Emit(mdionl.Reg(0)))
	return c.Execute(bus, &prog, nil)
}

var _ phy.MDIOBus = Bus{} // compile time guarantee of interface implementation.

// Bus is a Clause 22 [phy.MDIOBus] on a named mdio-netlink bus.
// Every register access is a separate transfer.
type Bus struct {
	Client *Client
	Name   string
}

// Read reads a PHY register. devAddr must be zero.
func (b Bus) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if devAddr != 0 {
		return 0, errClause45
	}
	return b.Client.ReadRegister(b.Name, uint16(phyAddr), regAddr)
}

// Write writes a PHY register. devAddr must be zero.
func (b Bus) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if devAddr != 0 {
		return errClause45
	}
	return b.Client.WriteRegister(b.Name, uint16(phyAddr), regAddr, value)
}
