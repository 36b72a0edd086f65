//go:build !linux

package xfer

// Generic netlink controller definitions from linux/genetlink.h.
// Kept so the package and its mock based tests build on other platforms;
// dialing a real netlink socket fails there.
const (
	netlinkGeneric     = 16
	genlIDCtrl         = 0x10
	ctrlCmdGetFamily   = 3
	ctrlAttrFamilyID   = 1
	ctrlAttrFamilyName = 2
)
