// Package wsproto defines the wire messages and shared handshake helpers
// used by both wsserver and wsclient, plus the error taxonomy surfaced
// through their OnError events.
package wsproto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sphinx-core/wsauth/wallet"
)

// Reserved type discriminators. Any other value is a user message and is
// passed through unchanged.
const (
	TypeAuthenticate = "authenticate"
	TypeHeartbeat    = "heartbeat"
)

// Envelope is the minimal shape every inbound frame must satisfy before
// being routed to a specific message type.
type Envelope struct {
	Type string `json:"type"`
}

// AuthenticateMessage is the handshake message sent by both sides. The
// wire format extends the base {type,address,timestamp,signature} with a
// public_key field: ed25519 verification needs the signer's public key,
// and the verify(message, signature, address) contract is preserved by
// deriving the address from PublicKey and rejecting the message if it
// does not match Address (see DecodeAndVerifyAuthenticate).
type AuthenticateMessage struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

// HeartbeatMessage is the liveness message either side may originate.
type HeartbeatMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// SigningPayload returns the ASCII decimal representation of timestamp,
// the exact bytes that get signed and verified, per the distilled
// protocol.
func SigningPayload(timestampMillis int64) []byte {
	return []byte(strconv.FormatInt(timestampMillis, 10))
}

// BuildAuthenticate signs the current time with w and returns the wire
// message to send.
func BuildAuthenticate(w wallet.Wallet, now time.Time) (AuthenticateMessage, error) {
	ts := now.UnixMilli()
	sig, err := w.Sign(SigningPayload(ts))
	if err != nil {
		return AuthenticateMessage{}, fmt.Errorf("build authenticate message: %v", err)
	}
	return AuthenticateMessage{
		Type:      TypeAuthenticate,
		Address:   w.Address,
		Timestamp: ts,
		Signature: hexEncode(sig),
		PublicKey: hexEncode(w.PublicKey),
	}, nil
}

// VerifyAuthenticate checks freshness against authTimeout, that
// PublicKey derives Address, and that Signature verifies over
// SigningPayload(Timestamp). now is the verifier's own clock.
func VerifyAuthenticate(msg AuthenticateMessage, now time.Time, authTimeout time.Duration) error {
	skew := now.UnixMilli() - msg.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Millisecond >= authTimeout {
		return fmt.Errorf("%w: timestamp skew %dms exceeds authTimeout", ErrTimeout, skew)
	}

	pub, err := hexDecode(msg.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: bad public key encoding: %v", ErrAuthFailure, err)
	}
	if got := wallet.DeriveAddress(wallet.PublicKey(pub)); got != msg.Address {
		return fmt.Errorf("%w: public key does not derive claimed address", ErrAuthFailure)
	}

	sig, err := hexDecode(msg.Signature)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding: %v", ErrAuthFailure, err)
	}
	if !wallet.Verify(SigningPayload(msg.Timestamp), wallet.Signature(sig), wallet.PublicKey(pub)) {
		return fmt.Errorf("%w: invalid signature", ErrAuthFailure)
	}
	return nil
}

// DecodeEnvelope parses just the discriminator, used before dispatching
// to a type-specific decode.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return env, nil
}

// DecodeAuthenticate parses an authenticate message body.
func DecodeAuthenticate(data []byte) (AuthenticateMessage, error) {
	var msg AuthenticateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return AuthenticateMessage{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return msg, nil
}

// DecodeHeartbeat parses a heartbeat message body.
func DecodeHeartbeat(data []byte) (HeartbeatMessage, error) {
	var msg HeartbeatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return HeartbeatMessage{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return msg, nil
}

// NewHeartbeat builds a heartbeat message stamped with now.
func NewHeartbeat(now time.Time) HeartbeatMessage {
	return HeartbeatMessage{Type: TypeHeartbeat, Ts: now.UnixMilli()}
}
