// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ChannelError represents a transport-level failure.
type ChannelError struct {
	Message string
	Cause   error
}

func (e *ChannelError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Cause
}

// ErrChannelClosed is returned by Send on a channel that is no longer open.
var ErrChannelClosed = &ChannelError{Message: "channel is closed"}

// =============================================================================
// CALLBACKS
// =============================================================================

// FrameHandler receives one raw inbound frame. Handlers are invoked
// sequentially from the channel's read loop, in arrival order.
type FrameHandler func(data []byte)

// CloseHandler is invoked exactly once when the channel stops delivering
// frames. err is nil for a clean close (local Close or a normal close frame
// from the peer) and non-nil for an abnormal close.
type CloseHandler func(err error)

// =============================================================================
// CHANNEL
// =============================================================================

// Channel is one streaming duplex WebSocket connection. A Channel delivers
// frames until the peer closes, the read fails, or Close is called; after
// that it is inert.
type Channel struct {
	conn *websocket.Conn

	mu     sync.Mutex
	state  model.ChannelState
	closed bool

	closeOnce sync.Once
	onClose   CloseHandler
}

// Open establishes a streaming channel to url and starts the read loop.
// The url must already carry the bearer credential (resolved by the caller,
// one resolution per open attempt). Connect timeout is governed by ctx.
//
// On dial failure Open returns the error directly; onClose is not invoked
// for a channel that never opened.
func Open(ctx context.Context, url string, onFrame FrameHandler, onClose CloseHandler) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &ChannelError{Message: "connect failed", Cause: err}
	}

	ch := &Channel{
		conn:    conn,
		state:   model.ChannelOpen,
		onClose: onClose,
	}

	go ch.readLoop(onFrame)

	return ch, nil
}

// readLoop pumps inbound frames to the handler until the connection stops.
func (c *Channel) readLoop(onFrame FrameHandler) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}

// finish marks the channel closed and fires onClose exactly once. A read
// error after a local Close is the expected shutdown path, not a failure.
func (c *Channel) finish(readErr error) {
	c.mu.Lock()
	locallyClosed := c.closed
	if !c.closed {
		c.closed = true
		if isAbnormal(readErr) {
			c.state = model.ChannelError
		} else {
			c.state = model.ChannelClosed
		}
	}
	c.mu.Unlock()

	c.conn.Close()

	c.closeOnce.Do(func() {
		if c.onClose == nil {
			return
		}
		if locallyClosed || !isAbnormal(readErr) {
			c.onClose(nil)
			return
		}
		c.onClose(&ChannelError{Message: "channel closed abnormally", Cause: readErr})
	})
}

// isAbnormal reports whether a read-loop error represents an abnormal close.
func isAbnormal(err error) bool {
	if err == nil {
		return false
	}
	return !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// Send writes one frame. The channel must be open.
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &ChannelError{Message: "send failed", Cause: err}
	}
	return nil
}

// Close requests graceful shutdown. Closing an already-closed channel is a
// no-op. The read loop observes the closed connection and fires onClose
// with a nil error.
func (c *Channel) Close(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = model.ChannelClosed
	c.mu.Unlock()

	// Best effort: tell the peer before tearing down.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.conn.Close()
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() model.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
