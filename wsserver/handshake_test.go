package wsserver

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sphinx-core/wsauth/internal/wsproto"
	"github.com/sphinx-core/wsauth/wallet"
)

func dialAndAuthenticate(t *testing.T, url string, w wallet.Wallet) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	msg, err := wsproto.BuildAuthenticate(w, time.Now())
	if err != nil {
		t.Fatalf("build authenticate: %v", err)
	}
	data, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write authenticate: %v", err)
	}
	return conn
}

func startTestServer(t *testing.T, port int, cfg Config) *Server {
	t.Helper()
	cfg.Port = port
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Listen(nil); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func wsURL(srv *Server) string {
	return "ws://" + srv.Addr() + "/ws"
}

func dialOnly(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHandshakeHappyPath(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	disabled := time.Duration(0)

	authenticated := make(chan string, 1)
	srv := startTestServer(t, 39001, Config{
		Wallet:                serverWallet,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})
	srv.OnAuthenticated(func(p *AuthenticatedPeer) { authenticated <- p.Address })

	conn := dialAndAuthenticate(t, wsURL(srv), clientWallet)
	defer conn.Close()

	select {
	case addr := <-authenticated:
		if addr != clientWallet.Address {
			t.Fatalf("authenticated address = %s, want %s", addr, clientWallet.Address)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for authentication")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read server reply: %v", err)
	}
	var reply wsproto.AuthenticateMessage
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("unmarshal server reply: %v", err)
	}
	if reply.Address != serverWallet.Address {
		t.Fatalf("server reply address = %s, want %s", reply.Address, serverWallet.Address)
	}
}

func TestHandshakeRejectsStaleTimestamp(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	disabled := time.Duration(0)

	errs := make(chan error, 1)
	srv := startTestServer(t, 39002, Config{
		Wallet:                serverWallet,
		AuthTimeout:           100 * time.Millisecond,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})
	srv.OnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stale := time.Now().Add(-10 * time.Second)
	msg, err := wsproto.BuildAuthenticate(clientWallet, stale)
	if err != nil {
		t.Fatalf("build authenticate: %v", err)
	}
	data, _ := json.Marshal(msg)
	conn.WriteMessage(websocket.TextMessage, data)

	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "timeout") {
			t.Fatalf("error = %v, want timeout-related", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejection")
	}
}

func TestHandshakeRejectsBadSignature(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	disabled := time.Duration(0)

	srv := startTestServer(t, 39003, Config{
		Wallet:                serverWallet,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := wsproto.BuildAuthenticate(clientWallet, time.Now())
	msg.Signature = strings.Repeat("00", 64)
	data, _ := json.Marshal(msg)
	conn.WriteMessage(websocket.TextMessage, data)

	// The gate writes one advisory status frame before it closes.
	_, advisory, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read advisory status: %v", err)
	}
	if !strings.Contains(string(advisory), "signature") {
		t.Fatalf("advisory status = %q, want a signature rejection", advisory)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed after bad signature")
	}
}

func TestHandshakeRejectsNonWhitelistedAddress(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	otherWallet, _ := wallet.Generate()
	disabled := time.Duration(0)

	srv := startTestServer(t, 39004, Config{
		Wallet:                serverWallet,
		Whitelist:             map[string]struct{}{otherWallet.Address: {}},
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := wsproto.BuildAuthenticate(clientWallet, time.Now())
	data, _ := json.Marshal(msg)
	conn.WriteMessage(websocket.TextMessage, data)

	time.Sleep(200 * time.Millisecond)
	if _, ok := srv.Client(clientWallet.Address); ok {
		t.Fatal("non-whitelisted client should not be authenticated")
	}
}

func TestHandshakeAddressCollisionReplacesWhenEnabled(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	disabled := time.Duration(0)

	authenticated := make(chan struct{}, 2)
	srv := startTestServer(t, 39005, Config{
		Wallet:                serverWallet,
		ReplaceExisting:       true,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})
	srv.OnAuthenticated(func(p *AuthenticatedPeer) { authenticated <- struct{}{} })

	url := wsURL(srv)
	first := dialAndAuthenticate(t, url, clientWallet)
	defer first.Close()
	<-authenticated

	second := dialAndAuthenticate(t, url, clientWallet)
	defer second.Close()
	<-authenticated

	if _, ok := srv.Client(clientWallet.Address); !ok {
		t.Fatal("expected replacement peer to remain authenticated")
	}
}

func TestHandshakeAddressCollisionRejectedWhenReplaceDisabled(t *testing.T) {
	serverWallet, _ := wallet.Generate()
	clientWallet, _ := wallet.Generate()
	disabled := time.Duration(0)

	authenticated := make(chan struct{}, 2)
	srv := startTestServer(t, 39006, Config{
		Wallet:                serverWallet,
		ReplaceExisting:       false,
		AuthCheckInterval:     &disabled,
		HeartbeatInterval:     &disabled,
		ClientTimeoutInterval: &disabled,
	})
	srv.OnAuthenticated(func(p *AuthenticatedPeer) { authenticated <- struct{}{} })

	url := wsURL(srv)
	first := dialAndAuthenticate(t, url, clientWallet)
	defer first.Close()
	<-authenticated

	second := dialAndAuthenticate(t, url, clientWallet)
	defer second.Close()

	select {
	case <-authenticated:
		t.Fatal("second connection should not have been authenticated")
	case <-time.After(300 * time.Millisecond):
	}

	// The gate writes one advisory status frame before it closes.
	_, advisory, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("read advisory status: %v", err)
	}
	if !strings.Contains(string(advisory), "address_collision") {
		t.Fatalf("advisory status = %q, want an address-collision rejection", advisory)
	}
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatal("expected rejected connection to be closed")
	}
}
