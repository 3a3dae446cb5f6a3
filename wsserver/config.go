package wsserver

import (
	"fmt"
	"time"

	"github.com/sphinx-core/wsauth/wallet"
)

// Config configures a Server. Zero-value fields fall back to the
// defaults documented in each field's comment; an explicit interval of
// 0 disables the corresponding sweeper.
type Config struct {
	// Port the server listens on. Default 3793.
	Port int
	// AuthTimeout bounds raw-socket and pending-auth lifetimes, and is
	// also the freshness window applied to handshake timestamps.
	// Default 5s.
	AuthTimeout time.Duration
	// AuthCheckInterval is the auth-timeout sweeper's period. Nil
	// selects the 1s default; a pointer to 0 disables the sweeper
	// entirely, per the "any interval set to 0 disables its sweeper"
	// rule — a plain zero time.Duration can't distinguish "unset" from
	// "disabled", hence the pointer.
	AuthCheckInterval *time.Duration
	// HeartbeatInterval is the heartbeat sweeper's period. Nil selects
	// the 1s default; a pointer to 0 disables it.
	HeartbeatInterval *time.Duration
	// ClientTimeout bounds inactive authenticated peer lifetimes.
	// Default 5s.
	ClientTimeout time.Duration
	// ClientTimeoutInterval is the idle sweeper's period. Nil selects
	// the 1s default; a pointer to 0 disables it.
	ClientTimeoutInterval *time.Duration
	// ReplaceExisting controls address-collision policy: true evicts
	// the existing peer in favor of the new authentication, false
	// rejects the new connection. No default is applied: the zero value
	// false (reject) is used when the field is not set.
	ReplaceExisting bool
	// Wallet is the server's own identity, used to sign its
	// authenticate response. A fresh wallet is generated if unset.
	Wallet wallet.Wallet
	// Whitelist, if non-empty, restricts authentication to these
	// addresses.
	Whitelist map[string]struct{}
	// OnAuthenticate, if set, is run after the whitelist check and
	// before the freshness check; it must be pure and fast.
	OnAuthenticate func(address string) bool
	// KeyFile and CertFile, if both set, enable TLS (wss://).
	KeyFile  string
	CertFile string
}

const (
	defaultPort                  = 3793
	defaultAuthTimeout           = 5 * time.Second
	defaultAuthCheckInterval     = 1 * time.Second
	defaultHeartbeatInterval     = 1 * time.Second
	defaultClientTimeout         = 5 * time.Second
	defaultClientTimeoutInterval = 1 * time.Second
)

func (c Config) withDefaults() (Config, error) {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = defaultAuthTimeout
	}
	if c.AuthCheckInterval == nil {
		d := defaultAuthCheckInterval
		c.AuthCheckInterval = &d
	}
	if c.HeartbeatInterval == nil {
		d := defaultHeartbeatInterval
		c.HeartbeatInterval = &d
	}
	if c.ClientTimeout == 0 {
		c.ClientTimeout = defaultClientTimeout
	}
	if c.ClientTimeoutInterval == nil {
		d := defaultClientTimeoutInterval
		c.ClientTimeoutInterval = &d
	}
	if c.Wallet.Address == "" {
		w, err := wallet.Generate()
		if err != nil {
			return Config{}, fmt.Errorf("wsserver: generate server wallet: %v", err)
		}
		c.Wallet = w
	}
	if (c.KeyFile == "") != (c.CertFile == "") {
		return Config{}, fmt.Errorf("wsserver: TLS requires both KeyFile and CertFile")
	}
	return c, nil
}

func (c Config) tlsEnabled() bool {
	return c.KeyFile != "" && c.CertFile != ""
}
