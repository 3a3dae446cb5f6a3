// Package wstransport wraps gorilla/websocket behind the minimal
// message-oriented duplex channel the session layer needs: send,
// close, onMessage/onClose/onError callbacks, and control-frame
// ping/pong.
package wstransport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a single WebSocket connection. One ReadLoop goroutine owns
// reading; Send/Close/Ping may be called from any goroutine.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	pongMu      sync.Mutex
	pongHandler func()

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, closed: make(chan struct{})}
	ws.SetPongHandler(func(string) error {
		c.pongMu.Lock()
		h := c.pongHandler
		c.pongMu.Unlock()
		if h != nil {
			h()
		}
		return nil
	})
	return c
}

// RemoteAddr returns the remote address of the underlying socket.
func (c *Conn) RemoteAddr() string {
	if c == nil || c.ws == nil {
		return ""
	}
	return c.ws.RemoteAddr().String()
}

// Send writes a single text frame. Safe for concurrent use.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("wstransport: send: %v", err)
	}
	return nil
}

// Ping sends a control-frame ping.
func (c *Conn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(5 * time.Second)
	if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return fmt.Errorf("wstransport: ping: %v", err)
	}
	return nil
}

// SetPongHandler installs the callback invoked whenever a pong control
// frame arrives.
func (c *Conn) SetPongHandler(fn func()) {
	c.pongMu.Lock()
	c.pongHandler = fn
	c.pongMu.Unlock()
}

// WriteRaw writes an advisory status line as a single text frame.
// Used only for the pre-auth rejection status lines (§6 of the
// protocol) — cosmetic, best-effort, errors are not propagated.
func (c *Conn) WriteRaw(line string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close closes the underlying socket. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

// ReadLoop blocks reading frames until the connection closes or errors,
// calling onMessage for every text/binary frame and onClose exactly
// once at the end. It must be run on its own goroutine, and must be
// started exactly once per Conn.
func (c *Conn) ReadLoop(onMessage func([]byte), onClose func(error)) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			onClose(classifyReadError(err))
			return
		}
		onMessage(data)
	}
}

func classifyReadError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// Dialer dials outbound WebSocket connections, plain or TLS.
type Dialer struct {
	UseTLS             bool
	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration
}

// Dial connects to host:port and returns an open Conn.
func (d Dialer) Dial(host string, port int) (*Conn, error) {
	scheme := "ws"
	if d.UseTLS {
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s/ws", scheme, net.JoinHostPort(host, fmt.Sprintf("%d", port)))

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	if d.UseTLS {
		dialer.TLSClientConfig = tlsClientConfig(d.InsecureSkipVerify)
	}

	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: dial %s: %v", url, err)
	}
	return newConn(ws), nil
}

// Upgrader upgrades inbound HTTP requests to WebSocket connections for
// the server side.
type Upgrader struct {
	inner websocket.Upgrader
}

// NewUpgrader returns a ready-to-use Upgrader.
func NewUpgrader() *Upgrader {
	return &Upgrader{inner: websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}}
}

// Upgrade upgrades r to a WebSocket connection.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.inner.Upgrade(w, r, nil)
	if err != nil {
		if !websocket.IsWebSocketUpgrade(r) {
			return nil, fmt.Errorf("%w: %v", ErrNotWebSocketUpgrade, err)
		}
		return nil, fmt.Errorf("wstransport: upgrade: %v", err)
	}
	return newConn(ws), nil
}

// ErrNotWebSocketUpgrade is returned when a request does not carry the
// websocket upgrade header.
var ErrNotWebSocketUpgrade = errors.New("wstransport: request is not a websocket upgrade")
