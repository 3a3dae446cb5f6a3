package wsserver

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sphinx-core/wsauth/wstransport"
)

// AuthenticatedPeer is the server's bookkeeping record for a
// successfully authenticated counterparty: a stable local id, the
// peer's wallet address, last-activity timestamp, and a JSON send
// method over its transport.
type AuthenticatedPeer struct {
	// ID is a freshly minted opaque identifier, distinct per
	// connection, so log lines can distinguish successive sessions for
	// the same address.
	ID      string
	Address string

	conn            *wstransport.Conn
	authenticatedAt time.Time
	lastActive      atomic.Int64 // unix nanos
}

func newAuthenticatedPeer(address string, conn *wstransport.Conn) *AuthenticatedPeer {
	p := &AuthenticatedPeer{
		ID:              uuid.NewString(),
		Address:         address,
		conn:            conn,
		authenticatedAt: time.Now(),
	}
	p.UpdateActivity()
	return p
}

// Send JSON-serializes msg and writes it to the peer's transport.
func (p *AuthenticatedPeer) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsserver: marshal message for peer %s: %v", p.ID, err)
	}
	return p.conn.Send(data)
}

// Close closes the peer's underlying transport.
func (p *AuthenticatedPeer) Close() error {
	return p.conn.Close()
}

// UpdateActivity records the current time as the peer's last activity.
func (p *AuthenticatedPeer) UpdateActivity() {
	p.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the timestamp of the peer's last observed activity.
func (p *AuthenticatedPeer) LastActive() time.Time {
	return time.Unix(0, p.lastActive.Load())
}

// IdleFor returns how long it has been since the peer's last activity.
func (p *AuthenticatedPeer) IdleFor() time.Duration {
	return time.Since(p.LastActive())
}
