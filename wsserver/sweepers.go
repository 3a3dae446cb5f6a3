package wsserver

import (
	"time"

	"github.com/sphinx-core/wsauth/internal/wslog"
	"github.com/sphinx-core/wsauth/internal/wsproto"
)

// startSweepers launches the three independent periodic sweepers,
// each gated on its configured interval being non-nil and greater than
// zero. Every ticker registered here is stopped in Close.
func (s *Server) startSweepers() {
	if iv := s.cfg.AuthCheckInterval; iv != nil && *iv > 0 {
		s.startTicker(*iv, s.sweepAuthTimeouts)
	}
	if iv := s.cfg.HeartbeatInterval; iv != nil && *iv > 0 {
		s.startTicker(*iv, s.sweepHeartbeat)
	}
	if iv := s.cfg.ClientTimeoutInterval; iv != nil && *iv > 0 {
		s.startTicker(*iv, s.sweepIdle)
	}
}

func (s *Server) startTicker(interval time.Duration, fn func()) {
	t := time.NewTicker(interval)
	s.tickers = append(s.tickers, t)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-t.C:
				fn()
			case <-s.stop:
				return
			}
		}
	}()
}

// sweepAuthTimeouts closes any raw socket or pending-auth connection
// that has exceeded AuthTimeout without completing its handshake.
func (s *Server) sweepAuthTimeouts() {
	now := time.Now()

	s.mu.Lock()
	var staleSockets []*pendingSocket
	for addr, ps := range s.pendingSockets {
		if now.Sub(ps.acceptedAt) > s.cfg.AuthTimeout {
			staleSockets = append(staleSockets, ps)
			delete(s.pendingSockets, addr)
		}
	}
	var staleAuths []*pendingAuth
	for addr, pa := range s.pendingAuths {
		if now.Sub(pa.upgradedAt) > s.cfg.AuthTimeout {
			staleAuths = append(staleAuths, pa)
			delete(s.pendingAuths, addr)
		}
	}
	s.mu.Unlock()

	for _, ps := range staleSockets {
		ps.conn.Close()
		s.metrics.AuthTimeouts.Inc()
		s.fireError(wsproto.ErrTimeout)
	}
	for _, pa := range staleAuths {
		pa.conn.Close()
		s.metrics.AuthTimeouts.Inc()
		s.fireError(wsproto.ErrTimeout)
	}
}

// sweepHeartbeat sends a control-frame ping and an application-level
// heartbeat message to every authenticated peer.
func (s *Server) sweepHeartbeat() {
	now := time.Now()
	for _, peer := range s.Clients() {
		if err := peer.conn.Ping(); err != nil {
			s.fireError(err)
			continue
		}
		hb := wsproto.NewHeartbeat(now)
		if err := peer.Send(hb); err != nil {
			s.fireError(err)
		}
	}
}

// sweepIdle closes and evicts any authenticated peer that has exceeded
// ClientTimeout without observed activity (message, heartbeat, or
// pong).
func (s *Server) sweepIdle() {
	var evicted []*AuthenticatedPeer

	s.mu.Lock()
	for addr, peer := range s.peers {
		if peer.IdleFor() > s.cfg.ClientTimeout {
			evicted = append(evicted, peer)
			delete(s.peers, addr)
		}
	}
	s.mu.Unlock()

	for _, peer := range evicted {
		peer.Close()
		s.metrics.IdleEvictions.Inc()
		wslog.Warnf("wsserver: evicted idle peer %s (%s)", peer.Address, peer.ID)
		s.fireDisconnected(peer)
	}
}
