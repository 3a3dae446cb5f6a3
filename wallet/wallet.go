// MIT License
//
// Copyright (c) 2024 sphinx-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package wallet implements the WalletOps capability: keypair generation,
// restoration, signing and verification, and address derivation. It is the
// concrete default implementation of the opaque "wallet" collaborator the
// session layer treats as external.
package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
)

// PrivateKey is an opaque signing key.
type PrivateKey []byte

// PublicKey is an opaque verification key.
type PublicKey []byte

// Signature is an opaque signature over a signed message.
type Signature []byte

// Wallet binds a keypair to its derived address. It is immutable once
// constructed.
type Wallet struct {
	Address    string
	PrivateKey PrivateKey
	PublicKey  PublicKey
}

// Generate creates a fresh wallet with a new ed25519 keypair.
func Generate() (Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Wallet{}, fmt.Errorf("generate wallet: %v", err)
	}
	return Wallet{
		Address:    DeriveAddress(PublicKey(pub)),
		PrivateKey: PrivateKey(priv),
		PublicKey:  PublicKey(pub),
	}, nil
}

// RestoreFromPrivateKey reconstructs a wallet from a hex-encoded ed25519
// seed or expanded private key.
func RestoreFromPrivateKey(hexKey string) (Wallet, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return Wallet{}, fmt.Errorf("restore wallet: decode private key: %v", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	default:
		return Wallet{}, errors.New("restore wallet: private key has unexpected length")
	}

	pub := priv.Public().(ed25519.PublicKey)
	return Wallet{
		Address:    DeriveAddress(PublicKey(pub)),
		PrivateKey: PrivateKey(priv),
		PublicKey:  PublicKey(pub),
	}, nil
}

// Sign signs message with the wallet's private key.
func (w Wallet) Sign(message []byte) (Signature, error) {
	if len(w.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("sign: wallet has no usable private key")
	}
	sig := ed25519.Sign(ed25519.PrivateKey(w.PrivateKey), message)
	return Signature(sig), nil
}

// Verify checks sig over message against pub. It does not look at any
// address — callers that need address-bound verification must first
// confirm pub derives the claimed address via DeriveAddress (see
// internal/wsproto for the handshake that does exactly this).
func Verify(message []byte, sig Signature, pub PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, []byte(sig))
}

// PrivateKeyHex returns the hex encoding of the wallet's private key,
// suitable for RestoreFromPrivateKey.
func (w Wallet) PrivateKeyHex() string {
	return hex.EncodeToString(w.PrivateKey)
}

// PublicKeyHex returns the hex encoding of the wallet's public key.
func (w Wallet) PublicKeyHex() string {
	return hex.EncodeToString(w.PublicKey)
}
