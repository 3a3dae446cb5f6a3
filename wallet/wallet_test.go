package wallet

import "testing"

func TestGenerateProducesVerifiableSignature(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("1731000000000")
	sig, err := w.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(msg, sig, w.PublicKey) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sig, err := w.Sign([]byte("999"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if Verify([]byte("1000"), sig, w.PublicKey) {
		t.Fatalf("expected verification of tampered message to fail")
	}
}

func TestRestoreFromPrivateKeyRoundTrips(t *testing.T) {
	w1, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	w2, err := RestoreFromPrivateKey(w1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if w1.Address != w2.Address {
		t.Fatalf("expected restored wallet to have the same address, got %q want %q", w2.Address, w1.Address)
	}
}

func TestDeriveAddressIsStableAndDecodable(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr2 := DeriveAddress(w.PublicKey)
	if w.Address != addr2 {
		t.Fatalf("expected address derivation to be deterministic")
	}
	if _, err := DecodeAddress(w.Address); err != nil {
		t.Fatalf("decode address: %v", err)
	}
}

func TestDecodeAddressRejectsWrongVersion(t *testing.T) {
	if _, err := DecodeAddress("1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"); err == nil {
		t.Fatalf("expected decode of foreign address scheme to fail")
	}
}
