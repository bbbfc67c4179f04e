// sign.go performs local Ed25519 transaction signing: private keys never
// leave the process; only the signed blob goes over the wire.
package xrpl

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// defaultFeeDrops is the flat fee attached to every engine-originated
// transaction, comfortably above the reference transaction cost.
const defaultFeeDrops = "12"

// SignedTx is a fully signed transaction ready for submission.
type SignedTx struct {
	BlobHex string
	Hash    string
	Payment *Payment
}

// SignPayment fills in the signing fields of p, serializes it, signs it
// with w's Ed25519 key, and returns the submit-ready blob plus the
// transaction hash the ledger will know it by. The caller must have set
// Account, Destination, Amount, and Sequence; Fee defaults if empty.
func SignPayment(w *Wallet, p *Payment) (*SignedTx, error) {
	if p.TransactionType == "" {
		p.TransactionType = "Payment"
	}
	if p.Fee == "" {
		p.Fee = defaultFeeDrops
	}
	if p.Account != w.Address {
		return nil, fmt.Errorf("payment account %s does not match wallet address %s", p.Account, w.Address)
	}

	// XRPL prefixes Ed25519 public keys with 0xED to distinguish them
	// from secp256k1 keys.
	p.SigningPubKey = strings.ToUpper("ed" + hex.EncodeToString(w.PublicKey))
	p.TxnSignature = ""

	unsigned, err := SerializePayment(p, true)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payment for signing: %w", err)
	}

	toSign := append(append([]byte{}, signaturePrefix...), unsigned...)
	signature := ed25519.Sign(w.PrivateKey, toSign)
	p.TxnSignature = strings.ToUpper(hex.EncodeToString(signature))

	signed, err := SerializePayment(p, false)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed payment: %w", err)
	}

	return &SignedTx{
		BlobHex: strings.ToUpper(hex.EncodeToString(signed)),
		Hash:    TxHash(signed),
		Payment: p,
	}, nil
}
