// crypto.go implements the "WHISPER__" payload transform: symmetric
// authenticated encryption keyed by SHA-256 of an ECDH shared secret,
// using NaCl secretbox as the X25519-paired AEAD.
package memo

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// WhisperPrefix marks a memo payload whose remainder is
// secretbox-encrypted, keyed by an ECDH shared secret.
const WhisperPrefix = "WHISPER__"

// secretboxKey derives the symmetric encryption key from a raw ECDH
// shared secret.
func secretboxKey(sharedSecret []byte) [32]byte {
	return sha256.Sum256(sharedSecret)
}

// encryptMessage encrypts plaintext with the key derived from
// sharedSecret, returning base64-encoded ciphertext: a 24-byte random
// nonce followed by the sealed box, matching the wire grammar
// WHISPER__ base64(AEAD(...)).
func encryptMessage(plaintext string, sharedSecret []byte) (string, error) {
	key := secretboxKey(sharedSecret)

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decryptMessage reverses encryptMessage.
func decryptMessage(encoded string, sharedSecret []byte) (string, error) {
	key := secretboxKey(sharedSecret)

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid base64 in encrypted payload: %w", err)
	}
	if len(data) < 24 {
		return "", fmt.Errorf("encrypted payload too short")
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])

	plaintext, ok := secretbox.Open(nil, data[24:], &nonce, &key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
