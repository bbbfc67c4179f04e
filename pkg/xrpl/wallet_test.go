package xrpl

import (
	"bytes"
	"testing"
)

func TestBase58EncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x00},
		{0x01, 0x02, 0x03, 0x04, 0x05},
		bytes.Repeat([]byte{0xff}, 20),
		append([]byte{0x00, 0x00}, bytes.Repeat([]byte{0xab}, 16)...),
	}
	for _, payload := range cases {
		encoded := rippleBase58.encode(payload)
		decoded, err := rippleBase58.decode(encoded)
		if err != nil {
			t.Fatalf("decode(%x) returned error: %v", payload, err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Fatalf("round trip mismatch: %x -> %q -> %x", payload, encoded, decoded)
		}
	}
}

func TestEncodeDecodeCheckRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 20)
	encoded := encodeCheck(rippleBase58, addressVersion, payload)

	version, decoded, err := decodeCheck(rippleBase58, encoded)
	if err != nil {
		t.Fatalf("decodeCheck returned error: %v", err)
	}
	if version != addressVersion {
		t.Fatalf("version = %x, want %x", version, addressVersion)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("payload mismatch: got %x, want %x", decoded, payload)
	}
}

func TestDecodeCheckRejectsCorruption(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 20)
	encoded := encodeCheck(rippleBase58, addressVersion, payload)

	corrupted := []byte(encoded)
	// Flip one character to a different valid alphabet symbol.
	for _, c := range rippleAlphabet {
		if byte(c) != corrupted[0] {
			corrupted[0] = byte(c)
			break
		}
	}

	if _, _, err := decodeCheck(rippleBase58, string(corrupted)); err == nil {
		t.Fatalf("expected checksum mismatch to be detected")
	}
}

func TestNewWalletFromSeedIsDeterministic(t *testing.T) {
	entropy := bytes.Repeat([]byte{0x07}, 16)
	seed := encodeCheck(rippleBase58, seedVersionFamily, entropy)

	w1, err := NewWalletFromSeed(seed)
	if err != nil {
		t.Fatalf("NewWalletFromSeed returned error: %v", err)
	}
	w2, err := NewWalletFromSeed(seed)
	if err != nil {
		t.Fatalf("NewWalletFromSeed returned error: %v", err)
	}

	if w1.Address != w2.Address {
		t.Fatalf("expected deterministic address derivation, got %q and %q", w1.Address, w2.Address)
	}
	if !bytes.Equal(w1.PublicKey, w2.PublicKey) {
		t.Fatalf("expected deterministic public key derivation")
	}
	if !IsValidAddress(w1.Address) {
		t.Fatalf("derived address %q does not validate as a well-formed address", w1.Address)
	}
}

func TestIsValidAddressRejectsGarbage(t *testing.T) {
	cases := []string{"", "not-an-address", "xInvalidPrefix1234567890123456", "r"}
	for _, c := range cases {
		if IsValidAddress(c) {
			t.Fatalf("IsValidAddress(%q) = true, want false", c)
		}
	}
}
