package wsserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sphinx-core/wsauth/internal/wslog"
	"github.com/sphinx-core/wsauth/internal/wsproto"
	"github.com/sphinx-core/wsauth/wstransport"
)

// handleUpgrade is the HTTP handler mounted at /ws. It performs the
// WebSocket upgrade, moves the connection from pendingSockets to
// pendingAuths, and hands it to a single per-connection read loop that
// first runs the pre-auth gate and then, on success, the authenticated
// steady state. Pending-auth connections that send no frame at all are
// closed by the auth-timeout sweeper; a first frame that fails the gate
// is rejected by gate itself.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	remote := r.RemoteAddr

	conn, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		s.fireError(err)
		return
	}
	s.metrics.Upgrades.Inc()

	s.mu.Lock()
	delete(s.pendingSockets, remote)
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.pendingAuths[remote] = &pendingAuth{conn: conn, upgradedAt: time.Now()}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runConnection(remote, conn)
}

// runConnection owns the single reader goroutine for one upgraded
// connection. Its closure state (peer) starts nil, meaning frames are
// routed through the pre-auth gate; once the gate promotes the
// connection, subsequent frames route through dispatch instead.
func (s *Server) runConnection(remote string, conn *wstransport.Conn) {
	defer s.wg.Done()

	upgradeStart := time.Now()
	var peer *AuthenticatedPeer

	conn.ReadLoop(func(data []byte) {
		if peer == nil {
			peer = s.gate(remote, conn, upgradeStart, data)
			return
		}
		peer.UpdateActivity()
		s.dispatch(peer, data)
	}, func(err error) {
		if err != nil {
			s.fireError(err)
		}
		s.mu.Lock()
		delete(s.pendingAuths, remote)
		s.mu.Unlock()
		if peer != nil {
			s.mu.Lock()
			if s.peers[peer.Address] == peer {
				delete(s.peers, peer.Address)
			}
			s.mu.Unlock()
			s.fireDisconnected(peer)
		}
	})
}

// gate runs the pre-auth sequence against the first frame received on
// a pending-auth connection: type check, whitelist, OnAuthenticate
// hook, freshness, signature verify, address-collision policy,
// promote. On success it returns the new peer so the caller's closure
// switches to steady-state dispatch. On rejection it writes an
// advisory status line, closes the connection, and returns nil; the
// connection's onClose will then run with peer still nil.
func (s *Server) gate(remote string, conn *wstransport.Conn, upgradeStart time.Time, data []byte) *AuthenticatedPeer {
	reject := func(reason string, err error) *AuthenticatedPeer {
		s.metrics.AuthFailure.WithLabelValues(reason).Inc()
		conn.WriteRaw("401 authentication failed: " + reason)
		conn.Close()
		s.fireError(err)
		return nil
	}

	env, err := wsproto.DecodeEnvelope(data)
	if err != nil {
		return reject("parse", err)
	}
	if env.Type != wsproto.TypeAuthenticate {
		return reject("protocol", wsproto.ErrProtocol)
	}

	msg, err := wsproto.DecodeAuthenticate(data)
	if err != nil {
		return reject("parse", err)
	}

	if len(s.cfg.Whitelist) > 0 {
		if _, ok := s.cfg.Whitelist[msg.Address]; !ok {
			return reject("whitelist", wsproto.ErrAuthFailure)
		}
	}

	if s.cfg.OnAuthenticate != nil && !s.cfg.OnAuthenticate(msg.Address) {
		return reject("rejected", wsproto.ErrAuthFailure)
	}

	if err := wsproto.VerifyAuthenticate(msg, time.Now(), s.cfg.AuthTimeout); err != nil {
		return reject("signature", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	existing, collision := s.peers[msg.Address]
	if collision {
		if !s.cfg.ReplaceExisting {
			s.mu.Unlock()
			return reject("address_collision", wsproto.ErrAddressCollision)
		}
		s.metrics.Replacements.Inc()
	}
	peer := newAuthenticatedPeer(msg.Address, conn)
	s.peers[msg.Address] = peer
	delete(s.pendingAuths, remote)
	s.mu.Unlock()

	if collision {
		existing.Close()
		s.fireError(fmt.Errorf("%w: client %s replaced by a newer authentication", wsproto.ErrAddressCollision, existing.Address))
		s.fireDisconnected(existing)
	}

	if reply, err := wsproto.BuildAuthenticate(s.cfg.Wallet, time.Now()); err == nil {
		if data, mErr := json.Marshal(reply); mErr == nil {
			conn.Send(data)
		}
	}

	s.metrics.AuthSuccess.Inc()
	s.metrics.HandshakeLatency.Observe(time.Since(upgradeStart).Seconds())
	wslog.Infof("wsserver: authenticated %s (%s)", peer.Address, peer.ID)
	conn.SetPongHandler(peer.UpdateActivity)
	s.fireConnected(peer)
	s.fireAuthenticated(peer)
	return peer
}

// dispatch routes one post-auth application frame: heartbeats update
// activity and fire OnHeartbeat, a reserved type other than heartbeat
// (i.e. a post-auth "authenticate") is a protocol error and is
// dropped, and everything else is passed through to OnMessage
// verbatim.
func (s *Server) dispatch(peer *AuthenticatedPeer, data []byte) {
	env, err := wsproto.DecodeEnvelope(data)
	if err != nil {
		s.fireError(err)
		return
	}
	switch env.Type {
	case wsproto.TypeHeartbeat:
		hb, err := wsproto.DecodeHeartbeat(data)
		if err != nil {
			s.fireError(err)
			return
		}
		s.fireHeartbeat(peer, hb)
	case wsproto.TypeAuthenticate:
		s.fireError(fmt.Errorf("%w: unexpected authenticate message from authenticated peer %s", wsproto.ErrProtocol, peer.Address))
	default:
		s.fireMessage(peer, data)
	}
}
