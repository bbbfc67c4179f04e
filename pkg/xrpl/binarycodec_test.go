package xrpl

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"testing"
)

var testSeedCounter byte

// generateTestSeed produces a distinct well-formed family seed per call.
func generateTestSeed(t *testing.T) string {
	t.Helper()
	testSeedCounter++
	entropy := bytes.Repeat([]byte{testSeedCounter}, 16)
	return encodeCheck(rippleBase58, seedVersionFamily, entropy)
}

func TestEncodeAmountDrops(t *testing.T) {
	encoded, err := encodeAmount("1")
	if err != nil {
		t.Fatalf("encodeAmount returned error: %v", err)
	}
	if len(encoded) != 8 {
		t.Fatalf("drops amount should be 8 bytes, got %d", len(encoded))
	}
	got := binary.BigEndian.Uint64(encoded)
	want := uint64(1) | amountPositiveBit
	if got != want {
		t.Fatalf("encoded drops = %x, want %x", got, want)
	}
}

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		value    string
		mantissa uint64
		exponent int
	}{
		{"1", 1_000_000_000_000_000, -15},
		{"45", 4_500_000_000_000_000, -14},
		{"0.5", 5_000_000_000_000_000, -16},
		{"1200", 1_200_000_000_000_000, -12},
		{"0", 0, 0},
	}
	for _, tt := range tests {
		mantissa, exponent, err := normalizeDecimal(tt.value)
		if err != nil {
			t.Errorf("normalizeDecimal(%q) returned error: %v", tt.value, err)
			continue
		}
		if mantissa != tt.mantissa || exponent != tt.exponent {
			t.Errorf("normalizeDecimal(%q) = (%d, %d), want (%d, %d)",
				tt.value, mantissa, exponent, tt.mantissa, tt.exponent)
		}
	}

	if _, _, err := normalizeDecimal("-1"); err == nil {
		t.Errorf("negative amounts should be rejected")
	}
}

func TestFieldHeader(t *testing.T) {
	if got := fieldHeader(typeUInt16, fieldTransactionType); got[0] != 0x12 {
		t.Errorf("TransactionType header = %x, want 12", got)
	}
	if got := fieldHeader(typeUInt32, fieldLastLedgerSequence); len(got) != 2 || got[0] != 0x20 || got[1] != 27 {
		t.Errorf("LastLedgerSequence header = %x, want 201b", got)
	}
	if got := fieldHeader(typeArray, fieldMemos); got[0] != 0xF9 {
		t.Errorf("Memos header = %x, want f9", got)
	}
}

func TestSignPaymentProducesVerifiableSignature(t *testing.T) {
	wallet, err := NewWalletFromSeed(generateTestSeed(t))
	if err != nil {
		t.Fatalf("failed to derive wallet: %v", err)
	}

	destWallet, err := NewWalletFromSeed(generateTestSeed(t))
	if err != nil {
		t.Fatalf("failed to derive destination wallet: %v", err)
	}

	payment := &Payment{
		TransactionType: "Payment",
		Account:         wallet.Address,
		Destination:     destWallet.Address,
		Amount:          AmountIssued("PFT", destWallet.Address, "1"),
		Sequence:        7,
		Memos: []MemoWrapper{{Memo: Memo{
			MemoType:   "48414e445348414b45", // "HANDSHAKE"
			MemoFormat: "6e6f646531",         // "node1"
			MemoData:   "deadbeef",
		}}},
	}

	signed, err := SignPayment(wallet, payment)
	if err != nil {
		t.Fatalf("SignPayment returned error: %v", err)
	}
	if len(signed.Hash) != 64 {
		t.Fatalf("tx hash should be 64 hex chars, got %d", len(signed.Hash))
	}

	// The signature must verify over the signing-prefixed serialization
	// without the TxnSignature field.
	unsigned, err := SerializePayment(payment, true)
	if err != nil {
		t.Fatalf("SerializePayment returned error: %v", err)
	}
	sig, err := hex.DecodeString(signed.Payment.TxnSignature)
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}
	message := append(append([]byte{}, signaturePrefix...), unsigned...)
	if !ed25519.Verify(wallet.PublicKey, message, sig) {
		t.Fatalf("signature does not verify")
	}
}

func TestSignPaymentRejectsForeignWallet(t *testing.T) {
	wallet, err := NewWalletFromSeed(generateTestSeed(t))
	if err != nil {
		t.Fatalf("failed to derive wallet: %v", err)
	}
	payment := &Payment{
		Account:     "rrrrrrrrrrrrrrrrrrrrrhoLvTp",
		Destination: wallet.Address,
		Amount:      "1",
		Sequence:    1,
	}
	if _, err := SignPayment(wallet, payment); err == nil {
		t.Fatalf("signing for a foreign account should fail")
	}
}
