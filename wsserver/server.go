// MIT License
//
// Copyright (c) 2024 sphinx-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package wsserver implements ServerCore: accepting raw sockets,
// performing the WebSocket upgrade, validating the authentication
// handshake, maintaining the address→AuthenticatedPeer table, and
// running the heartbeat, auth-timeout, and idle sweepers.
package wsserver

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sphinx-core/wsauth/internal/wslog"
	"github.com/sphinx-core/wsauth/internal/wsmetrics"
	"github.com/sphinx-core/wsauth/wstransport"
)

// pendingSocket is a raw accepted connection not yet upgraded.
type pendingSocket struct {
	conn       net.Conn
	acceptedAt time.Time
}

// pendingAuth is an upgraded WebSocket awaiting a valid authenticate
// message.
type pendingAuth struct {
	conn       *wstransport.Conn
	upgradedAt time.Time
}

// Server is ServerCore: it owns the listener, the three connection
// tables, the sweepers, and event dispatch.
type Server struct {
	cfg      Config
	upgrader *wstransport.Upgrader
	metrics  *wsmetrics.Server

	httpServer *http.Server
	listener   net.Listener

	mu             sync.Mutex
	pendingSockets map[string]*pendingSocket
	pendingAuths   map[string]*pendingAuth
	peers          map[string]*AuthenticatedPeer
	closed         bool

	tickers []*time.Ticker
	wg      sync.WaitGroup
	stop    chan struct{}

	listeners eventListeners
}

// NewServer builds a Server from cfg, applying defaults for any unset
// field.
func NewServer(cfg Config) (*Server, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:            cfg,
		upgrader:       wstransport.NewUpgrader(),
		metrics:        wsmetrics.NewServer(),
		pendingSockets: make(map[string]*pendingSocket),
		pendingAuths:   make(map[string]*pendingAuth),
		peers:          make(map[string]*AuthenticatedPeer),
		stop:           make(chan struct{}),
	}, nil
}

// Listen binds the configured port, starts the HTTP(S) upgrade handler
// and the sweepers, and calls onReady once bound.
func (s *Server) Listen(onReady func()) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)

	s.httpServer = &http.Server{
		Addr:      fmt.Sprintf(":%d", s.cfg.Port),
		Handler:   mux,
		ConnState: s.trackConnState,
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: bind port %d: %v", s.cfg.Port, err)
	}
	s.listener = ln

	s.startSweepers()

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.tlsEnabled() {
			err = s.httpServer.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			wslog.Errorf("wsserver: serve: %v", err)
		}
		serveErr <- err
	}()

	if onReady != nil {
		onReady()
	}
	wslog.Infof("wsserver: listening on %s (tls=%v)", s.httpServer.Addr, s.cfg.tlsEnabled())
	return nil
}

// trackConnState implements the Raw/Upgrading stage of the state
// machine: entries appear in pendingSockets the instant the TCP layer
// accepts them and are removed once the connection either upgrades or
// closes without upgrading.
func (s *Server) trackConnState(conn net.Conn, state http.ConnState) {
	key := conn.RemoteAddr().String()
	switch state {
	case http.StateNew:
		s.metrics.SocketsAccepted.Inc()
		s.mu.Lock()
		if !s.closed {
			s.pendingSockets[key] = &pendingSocket{conn: conn, acceptedAt: time.Now()}
		}
		s.mu.Unlock()
	case http.StateClosed, http.StateHijacked:
		s.mu.Lock()
		delete(s.pendingSockets, key)
		s.mu.Unlock()
	}
}

// Close stops all sweepers, closes the listener, drops every pending
// and authenticated connection, and emits close. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sockets := s.pendingSockets
	auths := s.pendingAuths
	peers := s.peers
	s.pendingSockets = make(map[string]*pendingSocket)
	s.pendingAuths = make(map[string]*pendingAuth)
	s.peers = make(map[string]*AuthenticatedPeer)
	s.mu.Unlock()

	close(s.stop)
	for _, t := range s.tickers {
		t.Stop()
	}

	for _, ps := range sockets {
		ps.conn.Close()
	}
	for _, pa := range auths {
		pa.conn.Close()
	}
	for _, p := range peers {
		p.Close()
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Close()
	}
	s.wg.Wait()
	s.fireClose()
	return err
}

// Addr returns the bound listener address. Only valid after Listen
// returns successfully.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns a snapshot of currently authenticated peers.
func (s *Server) Clients() []*AuthenticatedPeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AuthenticatedPeer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Client returns the authenticated peer for address, if present.
func (s *Server) Client(address string) (*AuthenticatedPeer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[address]
	return p, ok
}

// Send JSON-serializes msg and sends it to the named peer. It reports
// failure via the error event (and this return value) if the peer is
// not present.
func (s *Server) Send(address string, msg any) error {
	peer, ok := s.Client(address)
	if !ok {
		err := fmt.Errorf("wsserver: send: no authenticated peer for address %s", address)
		s.fireError(err)
		return err
	}
	if err := peer.Send(msg); err != nil {
		s.fireError(err)
		return err
	}
	return nil
}

// Broadcast sends msg to every authenticated peer, best-effort:
// per-peer failures are reported via the error event but do not abort
// the broadcast.
func (s *Server) Broadcast(msg any) {
	for _, peer := range s.Clients() {
		if err := peer.Send(msg); err != nil {
			s.fireError(fmt.Errorf("wsserver: broadcast to %s: %v", peer.Address, err))
		}
	}
}
