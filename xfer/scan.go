package xfer

import (
	"fmt"

	"github.com/soypat/mdionl"
	"github.com/soypat/mdionl/phy"
)

// PHYStatus is the state of a device found by a bus scan.
type PHYStatus struct {
	Addr   uint8
	ID     phy.ID
	Status phy.BMSR
}

// LinkUp returns true if the device reported link.
func (s PHYStatus) LinkUp() bool { return s.Status.LinkUp() }

func (s PHYStatus) String() string {
	link := "down"
	if s.LinkUp() {
		link = "up"
	}
	return fmt.Sprintf("0x%02x  %s  %s", s.Addr, s.ID.String(), link)
}

// Scan reads status and identifiers of every device address on bus in a single transfer
// and returns the devices present. No partial result is returned on error.
func (c *Client) Scan(bus string) ([]PHYStatus, error) {
	return c.ScanRange(bus, mdionl.DevMax)
}

// ScanRange is like [Client.Scan] but only probes addresses 0..devices-1.
func (c *Client) ScanRange(bus string, devices uint16) ([]PHYStatus, error) {
	if devices == 0 || devices > mdionl.DevMax {
		return nil, fmt.Errorf("%w: scan devices %d out of range 1..%d", mdionl.ErrInvalidArgument, devices, mdionl.DevMax)
	}
	values := make([]uint32, 0, mdionl.ScanFields*int(devices))
	err := c.Execute(bus, mdionl.NewScanProgram(devices), func(r Reply) error {
		values = append(values, r.Data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ParseScan(values, devices)
}

// ParseScan converts the values emitted by [mdionl.NewScanProgram] into the
// status of present devices. Devices whose identifier reads all ones are absent.
func ParseScan(values []uint32, devices uint16) ([]PHYStatus, error) {
	if len(values) != mdionl.ScanFields*int(devices) {
		return nil, fmt.Errorf("%w: scan got %d values, want %d", mdionl.ErrProtocol, len(values), mdionl.ScanFields*int(devices))
	}
	var found []PHYStatus
	for addr := 0; addr < int(devices); addr++ {
		v := values[addr*mdionl.ScanFields:]
		id := phy.NewID(uint16(v[1]), uint16(v[2]))
		if id.IsAbsent() {
			continue
		}
		found = append(found, PHYStatus{
			Addr:   uint8(addr),
			ID:     id,
			Status: phy.BMSR(v[0]),
		})
	}
	return found, nil
}
