package xfer

import (
	"log/slog"

	"github.com/soypat/mdionl/internal"
)

func (c *Client) logenabled(lvl slog.Level) bool {
	return internal.LogEnabled(c.log, lvl)
}

func (c *Client) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(c.log, lvl, msg, attrs...)
}

func (c *Client) debug(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelDebug, msg, attrs...)
}

func (c *Client) trace(msg string, attrs ...slog.Attr) {
	c.logattrs(internal.LevelTrace, msg, attrs...)
}

func (c *Client) logerr(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelError, msg, attrs...)
}

func (r *Resolver) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(r.log, internal.LevelTrace, msg, attrs...)
}
