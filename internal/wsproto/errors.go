package wsproto

import "errors"

// Error taxonomy surfaced through OnError events, per the distilled
// protocol's error design. All connection-scoped; none of these ever
// panic or propagate past the connection that produced them.
var (
	// ErrParse: malformed JSON in a received frame.
	ErrParse = errors.New("wsproto: malformed message")
	// ErrProtocol: unexpected message type before auth, or reserved
	// type misuse.
	ErrProtocol = errors.New("wsproto: protocol violation")
	// ErrAuthFailure: bad signature, stale timestamp, non-whitelisted
	// or custom-auth-rejected address.
	ErrAuthFailure = errors.New("wsproto: authentication failed")
	// ErrAddressCollision: a second authenticated connection exists
	// for the same address.
	ErrAddressCollision = errors.New("wsproto: address collision")
	// ErrTimeout: a raw socket, pending-auth connection, or idle
	// authenticated peer exceeded its bound.
	ErrTimeout = errors.New("wsproto: timeout")
	// ErrTransport: the underlying socket or TLS layer failed.
	ErrTransport = errors.New("wsproto: transport error")
	// ErrReconnectExhausted: the client's maxReconnectAttempts was
	// reached with shouldReconnect still set.
	ErrReconnectExhausted = errors.New("wsproto: max reconnect attempts reached")
)
