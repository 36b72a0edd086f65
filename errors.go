package mdionl

import (
	"strconv"
	"syscall"
)

type errGeneric uint8

// Error kinds returned by mdio transfers. Errors returned by the Client, Resolver
// and Bus methods of package xfer wrap exactly one of these, or are a [DeviceError].
// Kernel errno values stay reachable through errors.Is alongside the kind.
const (
	_                       errGeneric = iota // non-initialized err
	ErrTransportUnavailable                   // netlink transport unavailable
	ErrChannelUnresolved                      // mdio family unresolved
	ErrProtocol                               // mdio protocol error
	ErrAborted                                // transfer aborted by consumer
	ErrBootstrap                              // mdio-netlink module load failed
	ErrInvalidArgument                        // invalid argument or configuration
)

func (err errGeneric) Error() string {
	return err.String()
}

func (err errGeneric) String() string {
	switch err {
	case ErrTransportUnavailable:
		return "netlink transport unavailable"
	case ErrChannelUnresolved:
		return "mdio family unresolved"
	case ErrProtocol:
		return "mdio protocol error"
	case ErrAborted:
		return "transfer aborted by consumer"
	case ErrBootstrap:
		return "mdio-netlink module load failed"
	case ErrInvalidArgument:
		return "invalid argument or configuration"
	}
	return "errGeneric(" + strconv.Itoa(int(err)) + ")"
}

// DeviceError is the status reported by the kernel program executor,
// usually a negated errno such as -ETIMEDOUT or -ENODEV.
type DeviceError int32

func (e DeviceError) Error() string {
	if e < 0 {
		return "mdio device error " + strconv.Itoa(int(e)) + ": " + syscall.Errno(-e).Error()
	}
	return "mdio device error " + strconv.Itoa(int(e))
}

// Errno returns the errno carried by a negative device error, or 0.
func (e DeviceError) Errno() syscall.Errno {
	if e < 0 {
		return syscall.Errno(-e)
	}
	return 0
}
