package wsserver

import (
	"sync"

	"github.com/sphinx-core/wsauth/internal/wsproto"
)

// eventListeners holds the registered callbacks for every event
// ServerCore emits. Multiple listeners per event are supported, in
// registration order.
type eventListeners struct {
	mu            sync.Mutex
	connected     []func(*AuthenticatedPeer)
	authenticated []func(*AuthenticatedPeer)
	message       []func(*AuthenticatedPeer, []byte)
	heartbeat     []func(*AuthenticatedPeer, wsproto.HeartbeatMessage)
	disconnected  []func(*AuthenticatedPeer)
	errored       []func(error)
	closed        []func()
}

// OnConnected registers a callback fired once a connection is promoted
// to an AuthenticatedPeer, immediately before OnAuthenticated.
func (s *Server) OnConnected(fn func(*AuthenticatedPeer)) {
	s.listeners.mu.Lock()
	s.listeners.connected = append(s.listeners.connected, fn)
	s.listeners.mu.Unlock()
}

// OnAuthenticated registers a callback fired once a connection is
// promoted to an AuthenticatedPeer.
func (s *Server) OnAuthenticated(fn func(*AuthenticatedPeer)) {
	s.listeners.mu.Lock()
	s.listeners.authenticated = append(s.listeners.authenticated, fn)
	s.listeners.mu.Unlock()
}

// OnMessage registers a callback fired for every application message
// received from an authenticated peer (heartbeats excluded).
func (s *Server) OnMessage(fn func(*AuthenticatedPeer, []byte)) {
	s.listeners.mu.Lock()
	s.listeners.message = append(s.listeners.message, fn)
	s.listeners.mu.Unlock()
}

// OnHeartbeat registers a callback fired for every heartbeat received
// from an authenticated peer, with the decoded heartbeat message.
func (s *Server) OnHeartbeat(fn func(*AuthenticatedPeer, wsproto.HeartbeatMessage)) {
	s.listeners.mu.Lock()
	s.listeners.heartbeat = append(s.listeners.heartbeat, fn)
	s.listeners.mu.Unlock()
}

// OnDisconnected registers a callback fired when an authenticated peer
// disconnects, by any cause.
func (s *Server) OnDisconnected(fn func(*AuthenticatedPeer)) {
	s.listeners.mu.Lock()
	s.listeners.disconnected = append(s.listeners.disconnected, fn)
	s.listeners.mu.Unlock()
}

// OnError registers a callback fired for every connection-scoped error.
func (s *Server) OnError(fn func(error)) {
	s.listeners.mu.Lock()
	s.listeners.errored = append(s.listeners.errored, fn)
	s.listeners.mu.Unlock()
}

// OnClose registers a callback fired once, when the server finishes
// shutting down.
func (s *Server) OnClose(fn func()) {
	s.listeners.mu.Lock()
	s.listeners.closed = append(s.listeners.closed, fn)
	s.listeners.mu.Unlock()
}

func (s *Server) fireConnected(p *AuthenticatedPeer) {
	s.listeners.mu.Lock()
	fns := append([]func(*AuthenticatedPeer){}, s.listeners.connected...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (s *Server) fireAuthenticated(p *AuthenticatedPeer) {
	s.listeners.mu.Lock()
	fns := append([]func(*AuthenticatedPeer){}, s.listeners.authenticated...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (s *Server) fireMessage(p *AuthenticatedPeer, data []byte) {
	s.listeners.mu.Lock()
	fns := append([]func(*AuthenticatedPeer, []byte){}, s.listeners.message...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(p, data)
	}
}

func (s *Server) fireHeartbeat(p *AuthenticatedPeer, msg wsproto.HeartbeatMessage) {
	s.listeners.mu.Lock()
	fns := append([]func(*AuthenticatedPeer, wsproto.HeartbeatMessage){}, s.listeners.heartbeat...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(p, msg)
	}
}

func (s *Server) fireDisconnected(p *AuthenticatedPeer) {
	s.listeners.mu.Lock()
	fns := append([]func(*AuthenticatedPeer){}, s.listeners.disconnected...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (s *Server) fireError(err error) {
	s.listeners.mu.Lock()
	fns := append([]func(error){}, s.listeners.errored...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (s *Server) fireClose() {
	s.listeners.mu.Lock()
	fns := append([]func(){}, s.listeners.closed...)
	s.listeners.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
