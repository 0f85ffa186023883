// Package simple provides a minimal in-memory Channel, used for tests and
// for any delivery destination that is just a function callback (e.g. a
// local log sink), mirroring the plain mock channel used throughout
// test_dispatcher.py.
package simple

import (
	"context"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// SendFunc delivers one alert and reports success.
type SendFunc func(ctx context.Context, alert model.Alert) (bool, error)

// Channel wraps a SendFunc as a channel.Channel.
type Channel struct {
	name    string
	enabled bool
	send    SendFunc
}

// New returns a Channel named name, backed by send.
func New(name string, send SendFunc) *Channel {
	return &Channel{name: name, enabled: true, send: send}
}

// Name implements channel.Channel.
func (c *Channel) Name() string { return c.name }

// Enabled implements channel.Channel.
func (c *Channel) Enabled() bool { return c.enabled }

// SetEnabled toggles delivery.
func (c *Channel) SetEnabled(enabled bool) { c.enabled = enabled }

// Send implements channel.Channel.
func (c *Channel) Send(ctx context.Context, alert model.Alert) (bool, error) {
	return c.send(ctx, alert)
}
