// ecdh.go implements ECDH key derivation: deriving an Ed25519 keypair
// from an XRPL wallet seed, converting Ed25519 keys to Curve25519, and
// computing an X25519 shared secret.
package memo

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// curve25519Prime is 2^255 - 19, the field modulus for Curve25519/Ed25519.
var curve25519Prime = new(big.Int).Sub(
	new(big.Int).Lsh(big.NewInt(1), 255),
	big.NewInt(19),
)

// PublicKeyFromSeed derives this wallet's Ed25519 public key,
// hex-encoded, from its XRPL wallet seed's raw entropy. This is the
// value transmitted in a HANDSHAKE memo; the receiver
// converts it to Curve25519 before computing the shared secret.
func PublicKeyFromSeed(rawEntropy []byte) (string, error) {
	if len(rawEntropy) == 0 {
		return "", fmt.Errorf("empty wallet entropy")
	}
	h := sha512.Sum512(rawEntropy)
	priv := ed25519.NewKeyFromSeed(h[:32])
	pub := priv.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub), nil
}

// SharedSecret derives the X25519 shared secret between this wallet's seed
// entropy and a peer's ECDH public key (as received, hex-encoded, in their
// HANDSHAKE memo, which carries their Ed25519 public key).
func SharedSecret(rawEntropy []byte, peerPublicKeyHex string) ([]byte, error) {
	ourPriv, _, err := deriveCurve25519KeyPair(rawEntropy)
	if err != nil {
		return nil, fmt.Errorf("failed to derive local keypair: %w", err)
	}

	peerEdPub, err := hex.DecodeString(peerPublicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key hex: %w", err)
	}
	if len(peerEdPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid peer public key length: got %d, want %d", len(peerEdPub), ed25519.PublicKeySize)
	}

	peerCurvePub, err := edPublicKeyToCurve25519(peerEdPub)
	if err != nil {
		return nil, fmt.Errorf("failed to convert peer public key: %w", err)
	}

	shared, err := curve25519.X25519(ourPriv[:], peerCurvePub[:])
	if err != nil {
		return nil, fmt.Errorf("X25519 scalar multiplication failed: %w", err)
	}
	return shared, nil
}

// deriveCurve25519KeyPair derives the wallet's Ed25519 keypair from raw
// entropy (XRPL's canonical method: the Ed25519 seed is the first 32
// bytes of SHA-512(entropy)), then converts it to its Curve25519
// equivalent. The private scalar is the same one Ed25519 signs with, so
// the public half here equals the birational image of the wallet's
// transmitted Ed25519 public key — both sides of a handshake land on
// the same X25519 keys.
func deriveCurve25519KeyPair(rawEntropy []byte) (priv, pub [32]byte, err error) {
	if len(rawEntropy) == 0 {
		return priv, pub, fmt.Errorf("empty wallet entropy")
	}

	edSeedFull := sha512.Sum512(rawEntropy)
	scalarFull := sha512.Sum512(edSeedFull[:32])
	h := scalarFull[:32]
	clamp(h)
	copy(priv[:], h)

	curvePub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, fmt.Errorf("failed to compute curve25519 public key: %w", err)
	}
	copy(pub[:], curvePub)
	return priv, pub, nil
}

// clamp applies the standard X25519 scalar clamp in place.
func clamp(scalar []byte) {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}

// edPublicKeyToCurve25519 performs the birational map from an Edwards25519
// public key (as used by Ed25519) to its Montgomery u-coordinate (as used
// by Curve25519/X25519): u = (1+y) / (1-y) mod p.
func edPublicKeyToCurve25519(edPub ed25519.PublicKey) ([32]byte, error) {
	var u [32]byte
	if len(edPub) != 32 {
		return u, fmt.Errorf("invalid ed25519 public key length: %d", len(edPub))
	}

	// RFC 8032: the encoded point is little-endian y with the sign of x
	// stored in the top bit of the last byte.
	yBytes := make([]byte, 32)
	copy(yBytes, edPub)
	yBytes[31] &= 0x7f

	y := littleEndianToBigInt(yBytes)

	one := big.NewInt(1)
	numerator := new(big.Int).Add(one, y)
	numerator.Mod(numerator, curve25519Prime)

	denominator := new(big.Int).Sub(one, y)
	denominator.Mod(denominator, curve25519Prime)

	denomInv := new(big.Int).ModInverse(denominator, curve25519Prime)
	if denomInv == nil {
		return u, fmt.Errorf("public key has no valid curve25519 equivalent")
	}

	uInt := new(big.Int).Mul(numerator, denomInv)
	uInt.Mod(uInt, curve25519Prime)

	bigIntToLittleEndian(uInt, u[:])
	return u, nil
}

func littleEndianToBigInt(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}

func bigIntToLittleEndian(n *big.Int, out []byte) {
	be := n.Bytes()
	for i := 0; i < len(be) && i < len(out); i++ {
		out[i] = be[len(be)-1-i]
	}
}
