package wsclient

import (
	"fmt"
	"time"

	"github.com/sphinx-core/wsauth/wallet"
)

// Config configures a Client. Zero-value fields fall back to the
// defaults documented in each field's comment.
type Config struct {
	// Host to connect to. Default "localhost".
	Host string
	// Port to connect to. Default 3793.
	Port int
	// TLS selects wss:// instead of ws://. Default false.
	TLS bool
	// InsecureSkipVerify disables server certificate verification when
	// TLS is set. Intended for tests against self-signed certificates.
	InsecureSkipVerify bool
	// Wallet is this client's identity. A fresh wallet is generated if
	// unset.
	Wallet wallet.Wallet
	// MaxReconnectAttempts bounds automatic reconnection after an
	// unexpected disconnect. Default 5.
	MaxReconnectAttempts int
	// ReconnectDelay is the linear backoff unit: the Nth attempt waits
	// ReconnectDelay*N. Default 1s.
	ReconnectDelay time.Duration
	// AuthTimeout bounds how long Connect waits for the server's signed
	// reply, and the freshness window applied to it. Default 5s.
	AuthTimeout time.Duration
}

const (
	defaultHost                 = "localhost"
	defaultPort                 = 3793
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 1 * time.Second
	defaultAuthTimeout          = 5 * time.Second
)

func (c Config) withDefaults() (Config, error) {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = defaultAuthTimeout
	}
	if c.Wallet.Address == "" {
		w, err := wallet.Generate()
		if err != nil {
			return Config{}, fmt.Errorf("wsclient: generate wallet: %v", err)
		}
		c.Wallet = w
	}
	return c, nil
}
