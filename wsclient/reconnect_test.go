package wsclient

import (
	"testing"
	"time"

	"github.com/sphinx-core/wsauth/wallet"
	"github.com/sphinx-core/wsauth/wsserver"
)

func startTestServer(t *testing.T, port int) (*wsserver.Server, wallet.Wallet) {
	t.Helper()
	serverWallet, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate server wallet: %v", err)
	}
	disabled := time.Duration(0)
	srv, err := wsserver.NewServer(wsserver.Config{
		Port:                  port,
		Wallet:                serverWallet,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Listen(nil); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, serverWallet
}

func TestConnectAuthenticatesAgainstServer(t *testing.T) {
	srv, _ := startTestServer(t, 39301)

	clientWallet, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate client wallet: %v", err)
	}
	client, err := NewClient(Config{Host: "127.0.0.1", Port: 39301, Wallet: clientWallet})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Disconnect()

	authenticated := make(chan string, 1)
	client.OnAuthenticated(func(serverAddress string) { authenticated <- serverAddress })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case serverAddress := <-authenticated:
		if _, ok := srv.Client(clientWallet.Address); !ok {
			t.Fatal("server does not show client as authenticated")
		}
		_ = serverAddress
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for authentication")
	}

	if !client.Authenticated() {
		t.Fatal("client.Authenticated() = false after successful handshake")
	}
}

// TestReconnectBackoffIsLinear drives the failure through Connect itself
// (rather than calling scheduleReconnect directly) so it exercises the
// path where the very first dial fails: Connect must enter the backoff
// loop on that failure too, not only on a post-auth disconnect.
func TestReconnectBackoffIsLinear(t *testing.T) {
	clientWallet, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate client wallet: %v", err)
	}
	client, err := NewClient(Config{
		Host:                 "127.0.0.1",
		Port:                 39399, // nothing listening here
		Wallet:               clientWallet,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var delays []time.Duration
	done := make(chan struct{})
	client.OnReconnecting(func(attempt int, delay time.Duration) {
		delays = append(delays, delay)
		if attempt == client.cfg.MaxReconnectAttempts {
			close(done)
		}
	})
	exhausted := make(chan struct{})
	client.OnError(func(err error) {
		if err.Error() == "wsproto: max reconnect attempts reached" {
			close(exhausted)
		}
	})

	if err := client.Connect(); err == nil {
		t.Fatal("expected Connect to fail dialing a closed port")
	}

	select {
	case <-exhausted:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reconnect exhaustion")
	}

	if len(delays) != 3 {
		t.Fatalf("got %d reconnect attempts, want 3", len(delays))
	}
	for i, d := range delays {
		want := client.cfg.ReconnectDelay * time.Duration(i+1)
		if d != want {
			t.Fatalf("attempt %d delay = %v, want %v (linear backoff)", i+1, d, want)
		}
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	startTestServer(t, 39302)
	clientWallet, _ := wallet.Generate()
	client, err := NewClient(Config{Host: "127.0.0.1", Port: 39302, Wallet: clientWallet})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client.Disconnect()
	client.Disconnect()
	if client.Connected() {
		t.Fatal("expected Connected() == false after Disconnect")
	}
}
