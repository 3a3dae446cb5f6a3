package wallet

import (
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// addressVersion is the single version byte prepended before base58
// encoding.
const addressVersion = 0x2f

// DeriveAddress derives a printable address from a public key: double
// SHA3-256, then RIPEMD-160 of that, then plain base58 (no checksum) of
// a version byte prefix followed by the digest.
func DeriveAddress(pub PublicKey) string {
	h := sha3Twice(pub)
	short := ripemd160Of(h)
	versioned := append([]byte{addressVersion}, short...)
	return base58.Encode(versioned)
}

// DecodeAddress reverses DeriveAddress's encoding, returning the
// RIPEMD-160 digest carried in the address (not the public key itself —
// the hash is one-way). It is used to sanity-check address syntax, not
// to recover a public key.
func DecodeAddress(address string) ([]byte, error) {
	decoded := base58.Decode(address)
	if len(decoded) == 0 {
		return nil, fmt.Errorf("decode address: invalid base58 string %q", address)
	}
	if decoded[0] != addressVersion {
		return nil, fmt.Errorf("decode address: unexpected version byte 0x%x", decoded[0])
	}
	return decoded[1:], nil
}

func sha3Twice(data []byte) []byte {
	first := sha3.Sum256(data)
	second := sha3.Sum256(first[:])
	return second[:]
}

func ripemd160Of(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}
