// Package phy provides Ethernet PHY management via MDIO.
// It supports IEEE 802.3 Clause 22 register access for configuring
// and monitoring physical layer transceivers over any [MDIOBus],
// such as the netlink backed bus in package xfer.
package phy

import (
	"errors"
)

var (
	errInvalidPhyAddr  = errors.New("invalid PHY address")
	errNilBus          = errors.New("nil MDIO bus")
	errNoPHY           = errors.New("no phy found")
	errANEnableIgnored = errors.New("auto-negotiation enable bit not applied")
	errANIncomplete    = errors.New("auto-negotiation not complete")
)

// MDIOBus reads and writes 16-bit management registers of the devices on one MDIO bus.
// devAddr selects the MMD for Clause 45 access; zero means Clause 22 framing with
// register addresses 0-31. Buses limited to Clause 22 reject a non-zero devAddr.
type MDIOBus interface {
	Read(phyAddr, devAddr uint8, regAddr uint16) (value uint16, err error)
	Write(phyAddr, devAddr uint8, regAddr, value uint16) error
}

// FindClause22PHYs finds all Clause 22 PHYs on the MDIO bus by probing every address
// and appends their addresses to dst. A PHY is present when its identifier registers
// do not read as all ones. Read errors on individual addresses are skipped.
// FindClause22PHYs returns an error only if no PHY is found.
func FindClause22PHYs(mdio MDIOBus, dst []uint8) ([]uint8, error) {
	const maxAddr = 31
	found := len(dst)
	for addr := uint8(0); addr <= maxAddr; addr++ {
		hi, err := mdio.Read(addr, 0, AddrPHYID1)
		if err != nil {
			continue
		}
		lo, err := mdio.Read(addr, 0, AddrPHYID2)
		if err != nil {
			continue
		}
		if !NewID(hi, lo).IsAbsent() {
			dst = append(dst, addr)
		}
	}
	if len(dst) == found {
		return dst, errNoPHY
	}
	return dst, nil
}

// Device is a Clause 22 PHY at a fixed address on an MDIO bus.
type Device struct {
	mdio    MDIOBus
	phyaddr uint8
}

// ConfigureAs22 binds the device to the Clause 22 PHY at phyAddr. The PHY itself is not touched.
func (phy *Device) ConfigureAs22(mdio MDIOBus, phyAddr uint8) error {
	if phyAddr > 31 {
		return errInvalidPhyAddr
	} else if mdio == nil {
		return errNilBus
	}
	phy.mdio = mdio
	phy.phyaddr = phyAddr
	return nil
}

// PHYAddr returns the PHY address on the MDIO bus (0-31).
func (phy *Device) PHYAddr() uint8 {
	return phy.phyaddr
}

// BasicControl returns the control register of the device.
func (phy *Device) BasicControl() (BMCR, error) {
	v, err := phy.rread(AddrBMCR)
	return BMCR(v), err
}

// BasicStatus returns the status register of the device.
func (phy *Device) BasicStatus() (BMSR, error) {
	v, err := phy.rread(AddrBMSR)
	return BMSR(v), err
}

// ID returns the 32-bit identifier held in registers 2 and 3.
func (phy *Device) ID() (ID, error) {
	hi, err := phy.rread(AddrPHYID1)
	if err != nil {
		return 0, err
	}
	lo, err := phy.rread(AddrPHYID2)
	return NewID(hi, lo), err
}

// EnableAutoNegotiation sets or clears the auto-negotiation enable bit and
// reads the control register back to check the device accepted it.
func (phy *Device) EnableAutoNegotiation(enable bool) error {
	ctl, err := phy.modifyControl(BMCRANEnable, enable)
	if err != nil {
		return err
	}
	got, err := phy.BasicControl()
	if err != nil {
		return err
	} else if got&BMCRANEnable != ctl&BMCRANEnable {
		return errANEnableIgnored
	}
	return nil
}

// RestartAutoNeg enables auto-negotiation and starts a new negotiation round.
func (phy *Device) RestartAutoNeg() error {
	_, err := phy.modifyControl(BMCRANEnable|BMCRANRestart, true)
	return err
}

// SetLoopback switches near-end loopback, which returns transmitted data to the receive path.
func (phy *Device) SetLoopback(enable bool) error {
	_, err := phy.modifyControl(BMCRLoopback, enable)
	return err
}

// IsLinkUp reads the status register and reports the link status bit.
func (phy *Device) IsLinkUp() (bool, error) {
	status, err := phy.BasicStatus()
	return err == nil && status.LinkUp(), err
}

// NegotiatedLink returns the best mode advertised by both ends once auto-negotiation completed.
func (phy *Device) NegotiatedLink() (LinkMode, error) {
	status, err := phy.BasicStatus()
	if err != nil {
		return LinkDown, err
	} else if !status.AutoNegotiationComplete() {
		return LinkDown, errANIncomplete
	}
	local, err := phy.rread(AddrANAR)
	if err != nil {
		return LinkDown, err
	}
	partner, err := phy.rread(AddrANLPAR)
	if err != nil {
		return LinkDown, err
	}
	return (ANAR(local) & ANAR(partner)).LinkMode(), nil
}

// modifyControl sets or clears mask in the control register and returns the value written.
func (phy *Device) modifyControl(mask BMCR, set bool) (BMCR, error) {
	ctl, err := phy.BasicControl()
	if err != nil {
		return 0, err
	}
	if set {
		ctl |= mask
	} else {
		ctl &^= mask
	}
	return ctl, phy.rwrite(AddrBMCR, uint16(ctl))
}

func (phy *Device) rread(reg uint16) (uint16, error) {
	return phy.mdio.Read(phy.phyaddr, 0, reg)
}

func (phy *Device) rwrite(reg, value uint16) error {
	return phy.mdio.Write(phy.phyaddr, 0, reg, value)
}
