//go:build linux

package xfer

import "golang.org/x/sys/unix"

// Generic netlink controller definitions from linux/genetlink.h.
const (
	netlinkGeneric     = unix.NETLINK_GENERIC
	genlIDCtrl         = unix.GENL_ID_CTRL
	ctrlCmdGetFamily   = unix.CTRL_CMD_GETFAMILY
	ctrlAttrFamilyID   = unix.CTRL_ATTR_FAMILY_ID
	ctrlAttrFamilyName = unix.CTRL_ATTR_FAMILY_NAME
)
