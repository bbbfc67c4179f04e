package memo

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"
)

func TestEncodeDecodeField(t *testing.T) {
	want := "2025-01-01_10:00__AA00"
	encoded := EncodeField(want)
	got, err := DecodeField(encoded)
	if err != nil {
		t.Fatalf("DecodeField returned error: %v", err)
	}
	if got != want {
		t.Fatalf("DecodeField(EncodeField(%q)) = %q", want, got)
	}
}

func TestSplitIntoChunksRoundTrip(t *testing.T) {
	payload := strings.Repeat("a", 2500)
	chunks := labelChunks(splitIntoChunks(payload))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for a 2500-byte payload, got %d", len(chunks))
	}

	rows := make([]ChunkedMemo, len(chunks))
	for i, c := range chunks {
		rows[i] = ChunkedMemo{MemoData: c, LedgerIndex: int64(i), Hash: "h"}
	}
	// shuffle to confirm reassembly sorts by chunk index, not arrival order
	rows[0], rows[len(rows)-1] = rows[len(rows)-1], rows[0]

	reassembled := ReassembleChunks(rows)
	if reassembled != payload {
		t.Fatalf("reassembled payload does not match original (len %d vs %d)", len(reassembled), len(payload))
	}
}

func TestChunkLabelsStartAtOne(t *testing.T) {
	payload := strings.Repeat("b", 2000)
	chunks := labelChunks(splitIntoChunks(payload))
	if !strings.HasPrefix(chunks[0], "chunk_1__") {
		t.Fatalf("expected first chunk label to be chunk_1__, got %q", chunks[0][:12])
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	text := "PROPOSED PF ___ Write report outline .. 60"
	compressed, err := compressString(text)
	if err != nil {
		t.Fatalf("compressString returned error: %v", err)
	}
	decompressed, err := decompressString(compressed)
	if err != nil {
		t.Fatalf("decompressString returned error: %v", err)
	}
	if decompressed != text {
		t.Fatalf("decompressString(compressString(%q)) = %q", text, decompressed)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := []byte("a shared secret derived from ECDH")
	text := "COMPLETION JUSTIFICATION ___ did X"

	ciphertext, err := encryptMessage(text, secret)
	if err != nil {
		t.Fatalf("encryptMessage returned error: %v", err)
	}
	plaintext, err := decryptMessage(ciphertext, secret)
	if err != nil {
		t.Fatalf("decryptMessage returned error: %v", err)
	}
	if plaintext != text {
		t.Fatalf("decryptMessage(encryptMessage(%q)) = %q", text, plaintext)
	}

	if _, err := decryptMessage(ciphertext, []byte("wrong secret")); err == nil {
		t.Fatalf("expected decryption with wrong secret to fail")
	}
}

func TestEncodeDecodePlain(t *testing.T) {
	raws, err := Encode("HANDSHAKE", "node1", "deadbeef", EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected a single chunk for a short plain payload, got %d", len(raws))
	}

	decoded, err := DecodeRaw(raws[0])
	if err != nil {
		t.Fatalf("DecodeRaw returned error: %v", err)
	}
	if decoded.MemoData != "deadbeef" {
		t.Fatalf("decoded.MemoData = %q, want %q", decoded.MemoData, "deadbeef")
	}

	got := Decode(decoded.MemoData, nil, nil)
	if got != "deadbeef" {
		t.Fatalf("Decode = %q, want %q", got, "deadbeef")
	}
}

func TestEncodeDecodeCompressAndEncrypt(t *testing.T) {
	secret := []byte("shared secret bytes")
	payload := "VERIFICATION PROMPT ___ show me X"

	raws, err := Encode("2025-01-01_10:00", "node1", payload, EncodeOptions{
		Compress:     true,
		Encrypt:      true,
		SharedSecret: secret,
	})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(raws))
	}

	decoded, err := DecodeRaw(raws[0])
	if err != nil {
		t.Fatalf("DecodeRaw returned error: %v", err)
	}
	if !strings.HasPrefix(decoded.MemoData, WhisperPrefix) {
		t.Fatalf("expected encrypted payload to carry WHISPER__ prefix, got %q", decoded.MemoData[:20])
	}

	got := Decode(decoded.MemoData, secret, nil)
	if got != payload {
		t.Fatalf("Decode = %q, want %q", got, payload)
	}
}

func TestDecodeFallsBackOnFailureNeverErrors(t *testing.T) {
	malformed := WhisperPrefix + "not valid base64 ciphertext!!"
	got := Decode(malformed, []byte("secret"), nil)
	if got != malformed {
		t.Fatalf("Decode should fall back to the raw payload on failure, got %q", got)
	}
}

func TestEncodeRequiresSharedSecretToEncrypt(t *testing.T) {
	_, err := Encode("HANDSHAKE", "node1", "payload", EncodeOptions{Encrypt: true})
	if err != ErrNoSharedSecret {
		t.Fatalf("expected ErrNoSharedSecret, got %v", err)
	}
}

func TestSharedSecretSymmetry(t *testing.T) {
	entropyA := []byte("aaaaaaaaaaaaaaaa")
	entropyB := []byte("bbbbbbbbbbbbbbbb")

	edSeedA := sha512.Sum512(entropyA)
	edPrivA := ed25519.NewKeyFromSeed(edSeedA[:32])
	edPubA := edPrivA.Public().(ed25519.PublicKey)

	edSeedB := sha512.Sum512(entropyB)
	edPrivB := ed25519.NewKeyFromSeed(edSeedB[:32])
	edPubB := edPrivB.Public().(ed25519.PublicKey)

	secretAB, err := SharedSecret(entropyA, hex.EncodeToString(edPubB))
	if err != nil {
		t.Fatalf("SharedSecret(A, pubB) returned error: %v", err)
	}
	secretBA, err := SharedSecret(entropyB, hex.EncodeToString(edPubA))
	if err != nil {
		t.Fatalf("SharedSecret(B, pubA) returned error: %v", err)
	}

	if string(secretAB) != string(secretBA) {
		t.Fatalf("shared secrets do not agree: A->B = %x, B->A = %x", secretAB, secretBA)
	}
}
