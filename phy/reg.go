package phy

import "strconv"

// Clause 22 register addresses used by this package. IEEE 802.3 Clause 22.2.4.
const (
	AddrBMCR   = 0x00 // basic control
	AddrBMSR   = 0x01 // basic status
	AddrPHYID1 = 0x02 // identifier, OUI bits 3-18
	AddrPHYID2 = 0x03 // identifier, OUI bits 19-24, model and revision
	AddrANAR   = 0x04 // local auto-negotiation advertisement
	AddrANLPAR = 0x05 // link partner ability, same layout as ANAR
)

// BMCR is the basic control register value.
type BMCR uint16

// Control bits.
const (
	BMCRFullDuplex BMCR = 1 << 8  // forced full duplex
	BMCRANRestart  BMCR = 1 << 9  // self-clearing
	BMCRIsolate    BMCR = 1 << 10 // electrically isolate from MII
	BMCRPowerDown  BMCR = 1 << 11
	BMCRANEnable   BMCR = 1 << 12
	BMCRSpeed100   BMCR = 1 << 13 // forced speed when auto-negotiation is off
	BMCRLoopback   BMCR = 1 << 14
	BMCRReset      BMCR = 1 << 15 // self-clearing
)

// BMSR is the basic status register value.
type BMSR uint16

// Status bits.
const (
	BMSRExtCap     BMSR = 1 << 0 // extended registers present
	BMSRLinkStatus BMSR = 1 << 2 // latched low
	BMSRANCap      BMSR = 1 << 3
	BMSRANComplete BMSR = 1 << 5
	BMSR10Half     BMSR = 1 << 11
	BMSR10Full     BMSR = 1 << 12
	BMSR100Half    BMSR = 1 << 13
	BMSR100Full    BMSR = 1 << 14
	BMSR100Base4   BMSR = 1 << 15
)

// LinkUp reports the link status bit. A link failure since the previous read reports down once.
func (s BMSR) LinkUp() bool { return s&BMSRLinkStatus != 0 }

// AutoNegotiationComplete reports whether negotiation results in ANLPAR are valid.
func (s BMSR) AutoNegotiationComplete() bool { return s&BMSRANComplete != 0 }

// ID is the 32-bit PHY identifier formed by PHY Identifier 1 in the upper half
// and PHY Identifier 2 in the lower half.
// Reference: IEEE 802.3 Clause 22.2.4.3.1
type ID uint32

// NewID joins the two PHY identifier register values.
func NewID(id1, id2 uint16) ID { return ID(uint32(id1)<<16 | uint32(id2)) }

// IsAbsent returns true for the all ones identifier read from an address with no PHY.
func (id ID) IsAbsent() bool { return id == 0xffff_ffff }

// OUI returns the 22 bits of the organizationally unique identifier held by the PHY
// (OUI bits 3-24; bits 1-2 are not stored).
func (id ID) OUI() uint32 { return uint32(id) >> 10 }

// Model returns the 6-bit manufacturer model number.
func (id ID) Model() uint8 { return uint8(id>>4) & 0x3f }

// Revision returns the 4-bit manufacturer revision number.
func (id ID) Revision() uint8 { return uint8(id) & 0xf }

func (id ID) String() string {
	s := strconv.FormatUint(uint64(id), 16)
	for len(s) < 8 {
		s = "0" + s
	}
	return "0x" + s
}

// ANAR is an auto-negotiation ability value as found in the advertisement
// and link partner ability registers. IEEE 802.3 Clause 28.2.4.1.
type ANAR uint16

// Technology ability bits.
const (
	ANARSelector8023 ANAR = 0x0001 // selector field value for IEEE 802.3
	ANAR10Half       ANAR = 1 << 5
	ANAR10Full       ANAR = 1 << 6
	ANAR100Half      ANAR = 1 << 7
	ANAR100Full      ANAR = 1 << 8
	ANAR100BaseT4    ANAR = 1 << 9
)

// abilityOrder lists ability bits from most to least preferred (IEEE 802.3 Annex 28B.3).
var abilityOrder = [...]struct {
	bit  ANAR
	mode LinkMode
}{
	{ANAR100Full, Link100FDX},
	{ANAR100BaseT4, Link100T4},
	{ANAR100Half, Link100HDX},
	{ANAR10Full, Link10FDX},
	{ANAR10Half, Link10HDX},
}

// LinkMode returns the preferred mode among the abilities in a, or LinkDown if none is set.
// Pass the intersection of both ends' abilities to obtain the negotiated mode.
func (a ANAR) LinkMode() LinkMode {
	for _, ab := range abilityOrder {
		if a&ab.bit != 0 {
			return ab.mode
		}
	}
	return LinkDown
}

// LinkMode is a Clause 22 link speed and duplex combination.
type LinkMode uint8

const (
	LinkDown   LinkMode = iota
	Link10HDX           // 10BASE-T half duplex
	Link10FDX           // 10BASE-T full duplex
	Link100HDX          // 100BASE-TX half duplex
	Link100FDX          // 100BASE-TX full duplex
	Link100T4           // 100BASE-T4, half duplex only
	numLinkModes
)

var linkModes = [numLinkModes]struct {
	name  string
	mbps  int
	fullD bool
}{
	LinkDown:   {"down", 0, false},
	Link10HDX:  {"10M-H", 10, false},
	Link10FDX:  {"10M-F", 10, true},
	Link100HDX: {"100M-H", 100, false},
	Link100FDX: {"100M-F", 100, true},
	Link100T4:  {"100M-T4", 100, false},
}

func (lm LinkMode) String() string {
	if lm >= numLinkModes {
		return "LinkMode(" + strconv.Itoa(int(lm)) + ")"
	}
	return linkModes[lm].name
}

// SpeedMbps returns the link speed in megabits per second, zero when down or unknown.
func (lm LinkMode) SpeedMbps() int {
	if lm >= numLinkModes {
		return 0
	}
	return linkModes[lm].mbps
}

// IsFullDuplex reports whether both directions transmit simultaneously.
func (lm LinkMode) IsFullDuplex() bool {
	return lm < numLinkModes && linkModes[lm].fullD
}
