package xfer

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/mdlayher/genetlink"
	"github.com/soypat/mdionl"
	"github.com/soypat/mdionl/internal"
	"golang.org/x/sync/singleflight"
)

var (
	errEmptyBus           = fmt.Errorf("%w: empty bus identifier", mdionl.ErrInvalidArgument)
	errClientUnconfigured = fmt.Errorf("%w: client not configured", mdionl.ErrInvalidArgument)
	errStopped            = errors.New("iteration stopped")
)

// ClientConfig configures a [Client]. The zero value talks to the "mdio"
// family over a real generic netlink socket and never loads the kernel module.
type ClientConfig struct {
	// Family is the generic netlink family name. Defaults to [mdionl.FamilyName].
	Family string
	// Timeout is the execution time limit in milliseconds enforced by the kernel
	// for every program. Defaults to [mdionl.DefaultTimeout].
	Timeout uint16
	// Dial opens the connection dedicated to a single transfer. Defaults to [DialGeneric].
	Dial DialFunc
	// Resolver caches family identifiers. If nil the client uses a private
	// resolver that shares Dial and Logger.
	Resolver *Resolver
	// Loader loads the kernel module in [Client.EnsureLoaded]. Use [Modprobe] in production.
	Loader Loader
	Logger *slog.Logger
}

// Client submits programs to the mdio-netlink kernel executor.
// Every transfer owns its connection so a Client is safe for concurrent use
// once configured.
type Client struct {
	family  string
	timeout uint16
	dial    DialFunc
	res     *Resolver
	loader  Loader
	loads   singleflight.Group
	log     *slog.Logger
}

// Configure resets the client with cfg.
func (c *Client) Configure(cfg ClientConfig) error {
	if cfg.Family == "" {
		cfg.Family = mdionl.FamilyName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = mdionl.DefaultTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = DialGeneric
	}
	if cfg.Resolver == nil {
		cfg.Resolver = new(Resolver)
		err := cfg.Resolver.Configure(ResolverConfig{Dial: cfg.Dial, Logger: cfg.Logger})
		if err != nil {
			return err
		}
	}
	*c = Client{
		family:  cfg.Family,
		timeout: cfg.Timeout,
		dial:    cfg.Dial,
		res:     cfg.Resolver,
		loader:  cfg.Loader,
		log:     cfg.Logger,
	}
	return nil
}

// Init makes a best effort to load the kernel module when a loader is configured
// and then resolves the family identifier, which is returned.
// A failed module load is logged and does not prevent resolution.
func (c *Client) Init() (family uint16, err error) {
	if c.res == nil {
		return 0, errClientUnconfigured
	}
	if c.loader != nil {
		err = c.EnsureLoaded()
		if err != nil {
			c.logerr("init:load", internal.SlogErr(err))
		}
	}
	family, err = c.res.Resolve(c.family)
	if err != nil {
		c.logerr("init:resolve", slog.String("family", c.family), internal.SlogErr(err))
		return 0, err
	}
	c.debug("init", slog.String("family", c.family), slog.Uint64("id", uint64(family)))
	return family, nil
}

// EnsureLoaded runs the configured [Loader]. Concurrent calls wait on a single
// load attempt. Errors wrap [mdionl.ErrBootstrap] and are not fatal: the family
// may already be registered by a built-in module.
func (c *Client) EnsureLoaded() error {
	if c.loader == nil {
		return fmt.Errorf("%w: no loader configured", mdionl.ErrBootstrap)
	}
	_, err, _ := c.loads.Do(mdionl.ModuleName, func() (any, error) {
		return nil, c.loader.Load()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", mdionl.ErrBootstrap, err)
	}
	return nil
}

// Family returns the resolved family identifier, resolving it if needed.
func (c *Client) Family() (uint16, error) {
	if c.res == nil {
		return 0, errClientUnconfigured
	}
	return c.res.Resolve(c.family)
}

// Execute runs prog on bus and calls fn once for every reply message in the order they
// arrive. A nil prog is the empty program. fn may be nil when the emitted values are not needed.
//
// Execute returns nil once the kernel acknowledges the transfer. If the executor reports
// a non-zero status the returned error is a [mdionl.DeviceError]. If fn returns an error
// the transfer stops and the error is returned wrapped together with [mdionl.ErrAborted].
//
// There is no local timeout: the kernel enforces the configured execution time limit.
func (c *Client) Execute(bus string, prog *mdionl.Program, fn func(Reply) error) error {
	if c.dial == nil {
		return errClientUnconfigured
	} else if bus == "" {
		return errEmptyBus
	}
	family, err := c.res.Resolve(c.family)
	if err != nil {
		return err
	}
	attrs, err := xferAttrs(bus, prog, c.timeout)
	if err != nil {
		return fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
	}
	req, err := newRequest(family, uint8(mdionl.CmdXfer), attrs)
	if err != nil {
		return fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
	}
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("%w: %w", mdionl.ErrTransportUnavailable, err)
	}
	defer conn.Close()
	traced := c.logenabled(internal.LevelTrace)
	if traced {
		c.trace("xfer:send", slog.String("bus", bus), slog.Uint64("family", uint64(family)), slog.Int("insns", progLen(prog)))
	}

	err = converse(conn, req, mdionl.ErrTransportUnavailable, func(seq uint32, gm genetlink.Message) (bool, error) {
		reply, err := decodeReply(gm)
		if err != nil {
			return true, err
		}
		if traced {
			c.trace("xfer:reply", slog.Uint64("seq", uint64(seq)), slog.Int("values", len(reply.Data)), slog.Int("code", int(reply.Code)))
		}
		var cberr error
		if fn != nil {
			cberr = fn(reply)
		}
		switch {
		case reply.Code != 0:
			return true, mdionl.DeviceError(reply.Code)
		case cberr != nil:
			return true, fmt.Errorf("%w: %w", mdionl.ErrAborted, cberr)
		}
		return reply.HasCode, nil
	})
	if err != nil {
		c.debug("xfer:fail", slog.String("bus", bus), internal.SlogErr(err))
	}
	return err
}

// Replies is the iterator form of [Client.Execute]. Every reply is yielded with a nil error;
// a failed transfer yields a final zero Reply with the error. Breaking out of the loop
// ends the transfer.
func (c *Client) Replies(bus string, prog *mdionl.Program) iter.Seq2[Reply, error] {
	return func(yield func(Reply, error) bool) {
		stopped := false
		err := c.Execute(bus, prog, func(r Reply) error {
			if !yield(r, nil) {
				stopped = true
				return errStopped
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Reply{}, err)
		}
	}
}

func progLen(prog *mdionl.Program) int {
	if prog == nil {
		return 0
	}
	return prog.Len()
}
