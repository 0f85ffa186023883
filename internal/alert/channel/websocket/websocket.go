// Package websocket implements the real-time dashboard alert channel:
// alerts are pushed to every connected client over a WebSocket connection
// as soon as they are dispatched, grounded on the teacher's WebSocket
// session pattern (coder/websocket, a mutex-guarded connection registry,
// JSON frames) and the Python websocket_channel's "<50ms" delivery goal.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	ws "github.com/coder/websocket"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// Channel broadcasts alerts to every registered dashboard connection.
type Channel struct {
	name    string
	enabled bool

	mu    sync.RWMutex
	conns map[*ws.Conn]struct{}
}

// New returns a Channel with no connections registered yet.
func New() *Channel {
	return &Channel{name: "websocket", enabled: true, conns: make(map[*ws.Conn]struct{})}
}

// Name implements channel.Channel.
func (c *Channel) Name() string { return c.name }

// Enabled implements channel.Channel.
func (c *Channel) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles delivery without dropping registered connections.
func (c *Channel) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Register adds conn to the broadcast set. Callers are responsible for
// accepting the connection (ws.Accept) and for calling Unregister when it
// closes.
func (c *Channel) Register(conn *ws.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn] = struct{}{}
}

// Unregister removes conn from the broadcast set.
func (c *Channel) Unregister(conn *ws.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, conn)
}

// ConnectionCount reports how many dashboard clients are currently
// registered.
func (c *Channel) ConnectionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Send implements channel.Channel. It broadcasts alert to every
// registered connection and reports true if at least one write
// succeeded. Connections that fail to write are dropped from the
// registry; with zero connections registered, Send reports false without
// error — there is simply no dashboard client listening right now.
func (c *Channel) Send(ctx context.Context, alert model.Alert) (bool, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return false, fmt.Errorf("websocket channel: marshal alert: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var delivered bool
	for conn := range c.conns {
		if err := conn.Write(ctx, ws.MessageText, payload); err != nil {
			delete(c.conns, conn)
			continue
		}
		delivered = true
	}
	return delivered, nil
}
