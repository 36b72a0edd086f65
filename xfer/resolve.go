package xfer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/soypat/mdionl"
	"github.com/soypat/mdionl/internal/lrucache"
	"golang.org/x/sync/singleflight"
)

const defaultFamilyCacheSize = 4

var errResolverUnconfigured = fmt.Errorf("%w: resolver not configured", mdionl.ErrInvalidArgument)

// ResolverConfig configures a [Resolver].
type ResolverConfig struct {
	// Dial opens the connection used for family discovery. Defaults to [DialGeneric].
	Dial DialFunc
	// CacheSize is the number of family names remembered. Defaults to 4.
	CacheSize int
	Logger    *slog.Logger
}

// Resolver discovers generic netlink family identifiers by name and caches them.
// A Resolver is safe for concurrent use and may be shared between clients.
type Resolver struct {
	dial  DialFunc
	log   *slog.Logger
	mu    sync.Mutex
	cache lrucache.Cache[string, uint16]
	group singleflight.Group
}

// Configure resets the resolver, dropping every cached family.
func (r *Resolver) Configure(cfg ResolverConfig) error {
	if cfg.CacheSize < 0 {
		return fmt.Errorf("%w: negative family cache size", mdionl.ErrInvalidArgument)
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaultFamilyCacheSize
	}
	if cfg.Dial == nil {
		cfg.Dial = DialGeneric
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dial = cfg.Dial
	r.log = cfg.Logger
	r.cache = lrucache.New[string, uint16](cfg.CacheSize)
	return nil
}

// Resolve returns the identifier of the family registered under name.
// Only the first successful call for a name talks to the kernel; concurrent
// first calls share a single discovery round-trip.
func (r *Resolver) Resolve(name string) (uint16, error) {
	id, ok, err := r.cached(name)
	if err != nil || ok {
		return id, err
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		if id, ok, _ := r.cached(name); ok {
			return id, nil
		}
		id, err := r.lookup(name)
		if err != nil {
			return uint16(0), err
		}
		r.mu.Lock()
		r.cache.Push(name, id)
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint16), nil
}

// Forget drops the cached identifier for name so the next [Resolver.Resolve]
// asks the kernel again, as needed after the module registering it is reloaded.
func (r *Resolver) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache.Cap() > 0 {
		r.cache.Remove(name)
	}
}

func (r *Resolver) cached(name string) (uint16, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dial == nil {
		return 0, false, errResolverUnconfigured
	}
	id, ok := r.cache.Get(name)
	return id, ok && id != 0, nil
}

func (r *Resolver) lookup(name string) (uint16, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint16(ctrlAttrFamilyID, genlIDCtrl)
	ae.String(ctrlAttrFamilyName, name)
	attrs, err := ae.Encode()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
	}
	req, err := newRequest(genlIDCtrl, ctrlCmdGetFamily, attrs)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", mdionl.ErrProtocol, err)
	}
	r.mu.Lock()
	dial := r.dial
	r.mu.Unlock()
	conn, err := dial()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", mdionl.ErrTransportUnavailable, err)
	}
	defer conn.Close()

	var id uint16
	err = converse(conn, req, mdionl.ErrChannelUnresolved, func(seq uint32, gm genetlink.Message) (bool, error) {
		ad, err := netlink.NewAttributeDecoder(gm.Data)
		if err != nil {
			return true, err
		}
		for ad.Next() {
			if ad.Type() == ctrlAttrFamilyID {
				id = ad.Uint16()
			}
		}
		return id != 0, ad.Err()
	})
	switch {
	case errors.Is(err, mdionl.ErrTransportUnavailable), errors.Is(err, mdionl.ErrProtocol):
		return 0, err
	case errors.Is(err, mdionl.ErrChannelUnresolved):
		return 0, fmt.Errorf("%q: %w", name, err)
	case err != nil:
		return 0, fmt.Errorf("%w: %q: %w", mdionl.ErrChannelUnresolved, name, err)
	case id == 0:
		return 0, fmt.Errorf("%w: %q: no family id in reply", mdionl.ErrChannelUnresolved, name)
	}
	r.trace("resolve", slog.String("family", name), slog.Uint64("id", uint64(id)))
	return id, nil
}
