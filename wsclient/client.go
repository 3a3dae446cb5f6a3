// Package wsclient implements ClientCore: dialing the server,
// performing its side of the authentication handshake, verifying the
// server's signed reply, and maintaining the connection with bounded
// linear-backoff reconnection.
package wsclient

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sphinx-core/wsauth/internal/wslog"
	"github.com/sphinx-core/wsauth/internal/wsmetrics"
	"github.com/sphinx-core/wsauth/internal/wsproto"
	"github.com/sphinx-core/wsauth/wstransport"
)

// Client is one end of an authenticated session, owning at most one
// live connection at a time.
type Client struct {
	cfg     Config
	dialer  wstransport.Dialer
	metrics *wsmetrics.Client

	mu            sync.Mutex
	conn          *wstransport.Conn
	serverAddress string

	authenticated     atomic.Bool
	shouldReconnect   atomic.Bool
	reconnectAttempts atomic.Int32

	listeners eventListeners
}

// NewClient builds a Client from cfg, applying defaults for any unset
// field.
func NewClient(cfg Config) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		dialer: wstransport.Dialer{
			UseTLS:             cfg.TLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		metrics: wsmetrics.NewClient(),
	}, nil
}

// Connect dials the server, runs the authentication handshake, and, on
// success, starts the steady-state read loop on its own goroutine.
// Connect returns as soon as this first attempt succeeds or fails; it
// does not block through subsequent retries. If it fails and
// reconnection is still enabled, it hands off to the same
// backoff-driven reconnect loop that a later unexpected disconnect
// would trigger, see reconnect.go.
func (c *Client) Connect() error {
	c.shouldReconnect.Store(true)
	err := c.connectOnce()
	if err != nil && c.shouldReconnect.Load() {
		go c.scheduleReconnect()
	}
	return err
}

func (c *Client) connectOnce() error {
	start := time.Now()

	conn, err := c.dialer.Dial(c.cfg.Host, c.cfg.Port)
	if err != nil {
		return fmt.Errorf("wsclient: connect: %w", wsproto.ErrTransport)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.fireConnected()

	auth, err := wsproto.BuildAuthenticate(c.cfg.Wallet, time.Now())
	if err != nil {
		conn.Close()
		return fmt.Errorf("wsclient: build authenticate message: %v", err)
	}
	data, err := json.Marshal(auth)
	if err != nil {
		conn.Close()
		return fmt.Errorf("wsclient: marshal authenticate message: %v", err)
	}
	if err := conn.Send(data); err != nil {
		conn.Close()
		return fmt.Errorf("wsclient: send authenticate message: %w", wsproto.ErrTransport)
	}

	serverAddr, err := c.awaitServerAuthentication(conn)
	if err != nil {
		c.metrics.AuthFailures.Inc()
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.serverAddress = serverAddr
	c.mu.Unlock()
	c.authenticated.Store(true)
	c.reconnectAttempts.Store(0)
	c.metrics.HandshakeLatency.Observe(time.Since(start).Seconds())
	wslog.Infof("wsclient: authenticated server %s", serverAddr)
	c.fireAuthenticated(serverAddr)

	go c.readLoop(conn)
	return nil
}

// awaitServerAuthentication blocks for the server's own authenticate
// reply (the mutual half of the handshake) and verifies it the same
// way the server verifies the client's.
func (c *Client) awaitServerAuthentication(conn *wstransport.Conn) (string, error) {
	type frame struct {
		data []byte
		err  error
	}
	received := make(chan frame, 1)
	go conn.ReadLoop(func(data []byte) {
		select {
		case received <- frame{data: data}:
		default:
		}
	}, func(err error) {
		select {
		case received <- frame{err: err}:
		default:
		}
	})

	select {
	case f := <-received:
		if f.err != nil {
			return "", fmt.Errorf("wsclient: %w: %v", wsproto.ErrTransport, f.err)
		}
		msg, err := wsproto.DecodeAuthenticate(f.data)
		if err != nil {
			return "", err
		}
		if err := wsproto.VerifyAuthenticate(msg, time.Now(), c.cfg.AuthTimeout); err != nil {
			return "", err
		}
		return msg.Address, nil
	case <-time.After(c.cfg.AuthTimeout):
		return "", wsproto.ErrTimeout
	}
}

// readLoop is the steady-state reader, started once per successful
// handshake. On close it fires OnDisconnected and, if still allowed to
// reconnect, schedules the next attempt.
func (c *Client) readLoop(conn *wstransport.Conn) {
	conn.ReadLoop(func(data []byte) {
		c.dispatch(data)
	}, func(err error) {
		if err != nil {
			c.fireError(err)
		}
		c.authenticated.Store(false)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		c.fireDisconnected()

		if c.shouldReconnect.Load() {
			go c.scheduleReconnect()
		}
	})
}

// dispatch routes one post-auth application frame: heartbeats are
// decoded and fire OnHeartbeat, a reserved type other than heartbeat
// (i.e. a second "authenticate") is a protocol error and is dropped,
// and everything else is passed through to OnMessage verbatim.
func (c *Client) dispatch(data []byte) {
	env, err := wsproto.DecodeEnvelope(data)
	if err != nil {
		c.fireError(err)
		return
	}
	switch env.Type {
	case wsproto.TypeHeartbeat:
		hb, err := wsproto.DecodeHeartbeat(data)
		if err != nil {
			c.fireError(err)
			return
		}
		c.fireHeartbeat(hb)
	case wsproto.TypeAuthenticate:
		c.fireError(fmt.Errorf("%w: unexpected authenticate message from server", wsproto.ErrProtocol))
	default:
		c.fireMessage(data)
	}
}

// Disconnect closes the connection and disables automatic
// reconnection. Idempotent.
func (c *Client) Disconnect() {
	c.shouldReconnect.Store(false)
	c.authenticated.Store(false)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Send JSON-serializes msg and writes it to the server. It is a no-op
// if not currently connected.
func (c *Client) Send(msg any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsclient: marshal message: %v", err)
	}
	return conn.Send(data)
}

// Address returns this client's own wallet address.
func (c *Client) Address() string {
	return c.cfg.Wallet.Address
}

// ServerAddress returns the authenticated server's wallet address, or
// the empty string if not currently authenticated.
func (c *Client) ServerAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverAddress
}

// Connected reports whether a transport connection is currently open,
// authenticated or not.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Authenticated reports whether the current connection has completed
// mutual authentication.
func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}
