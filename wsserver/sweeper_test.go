package wsserver

import (
	"testing"
	"time"

	"github.com/sphinx-core/wsauth/wallet"
)

func TestAuthTimeoutSweeperClosesPendingAuth(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	disabled := time.Duration(0)
	sweep := 30 * time.Millisecond

	closedErrs := make(chan error, 4)
	srv := startTestServer(t, 39101, Config{
		Wallet:                serverWallet,
		AuthTimeout:           50 * time.Millisecond,
		AuthCheckInterval:     &sweep,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})
	srv.OnError(func(err error) {
		select {
		case closedErrs <- err:
		default:
		}
	})

	conn := dialOnly(t, wsURL(srv))
	defer conn.Close()

	select {
	case <-closedErrs:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth-timeout sweep")
	}

	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection closed by auth-timeout sweeper")
	}
}

func TestIdleSweeperEvictsInactivePeer(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	disabled := time.Duration(0)
	sweep := 30 * time.Millisecond

	disconnected := make(chan struct{}, 1)
	srv := startTestServer(t, 39102, Config{
		Wallet:                serverWallet,
		ClientTimeout:         50 * time.Millisecond,
		ClientTimeoutInterval: &sweep,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
	})
	srv.OnDisconnected(func(p *AuthenticatedPeer) {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})

	authenticated := make(chan struct{}, 1)
	srv.OnAuthenticated(func(p *AuthenticatedPeer) { authenticated <- struct{}{} })

	conn := dialAndAuthenticate(t, wsURL(srv), clientWallet)
	defer conn.Close()
	<-authenticated

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for idle eviction")
	}

	if _, ok := srv.Client(clientWallet.Address); ok {
		t.Fatal("expected idle peer to be evicted")
	}
}
