package wsclient

import (
	"sync"
	"time"

	"github.com/sphinx-core/wsauth/internal/wsproto"
)

// eventListeners holds the registered callbacks for every event
// ClientCore emits. Multiple listeners per event are supported, in
// registration order.
type eventListeners struct {
	mu            sync.Mutex
	connected     []func()
	authenticated []func(serverAddress string)
	message       []func([]byte)
	heartbeat     []func(wsproto.HeartbeatMessage)
	disconnected  []func()
	reconnecting  []func(attempt int, delay time.Duration)
	errored       []func(error)
}

// OnConnected registers a callback fired once the WebSocket upgrade
// completes, before the server's authentication reply is verified.
func (c *Client) OnConnected(fn func()) {
	c.listeners.mu.Lock()
	c.listeners.connected = append(c.listeners.connected, fn)
	c.listeners.mu.Unlock()
}

// OnAuthenticated registers a callback fired once the server's
// authentication reply has been verified, passing the server's
// address.
func (c *Client) OnAuthenticated(fn func(serverAddress string)) {
	c.listeners.mu.Lock()
	c.listeners.authenticated = append(c.listeners.authenticated, fn)
	c.listeners.mu.Unlock()
}

// OnMessage registers a callback fired for every application message
// received from the server (heartbeats excluded).
func (c *Client) OnMessage(fn func([]byte)) {
	c.listeners.mu.Lock()
	c.listeners.message = append(c.listeners.message, fn)
	c.listeners.mu.Unlock()
}

// OnHeartbeat registers a callback fired for every heartbeat received
// from the server, with the decoded heartbeat message.
func (c *Client) OnHeartbeat(fn func(wsproto.HeartbeatMessage)) {
	c.listeners.mu.Lock()
	c.listeners.heartbeat = append(c.listeners.heartbeat, fn)
	c.listeners.mu.Unlock()
}

// OnDisconnected registers a callback fired when the connection drops,
// by any cause, before any reconnect attempt.
func (c *Client) OnDisconnected(fn func()) {
	c.listeners.mu.Lock()
	c.listeners.disconnected = append(c.listeners.disconnected, fn)
	c.listeners.mu.Unlock()
}

// OnReconnecting registers a callback fired before each reconnect
// attempt, with the attempt number (1-based) and the delay waited
// before it.
func (c *Client) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	c.listeners.mu.Lock()
	c.listeners.reconnecting = append(c.listeners.reconnecting, fn)
	c.listeners.mu.Unlock()
}

// OnError registers a callback fired for every connection-scoped
// error, including ErrReconnectExhausted.
func (c *Client) OnError(fn func(error)) {
	c.listeners.mu.Lock()
	c.listeners.errored = append(c.listeners.errored, fn)
	c.listeners.mu.Unlock()
}

func (c *Client) fireConnected() {
	c.listeners.mu.Lock()
	fns := append([]func(){}, c.listeners.connected...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *Client) fireAuthenticated(serverAddress string) {
	c.listeners.mu.Lock()
	fns := append([]func(string){}, c.listeners.authenticated...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(serverAddress)
	}
}

func (c *Client) fireMessage(data []byte) {
	c.listeners.mu.Lock()
	fns := append([]func([]byte){}, c.listeners.message...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
}

func (c *Client) fireHeartbeat(msg wsproto.HeartbeatMessage) {
	c.listeners.mu.Lock()
	fns := append([]func(wsproto.HeartbeatMessage){}, c.listeners.heartbeat...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (c *Client) fireDisconnected() {
	c.listeners.mu.Lock()
	fns := append([]func(){}, c.listeners.disconnected...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *Client) fireReconnecting(attempt int, delay time.Duration) {
	c.listeners.mu.Lock()
	fns := append([]func(int, time.Duration){}, c.listeners.reconnecting...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(attempt, delay)
	}
}

func (c *Client) fireError(err error) {
	c.listeners.mu.Lock()
	fns := append([]func(error){}, c.listeners.errored...)
	c.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}
