// Package crypto wraps the secp256k1 primitives used to sign and verify
// interaction tokens, credentials, and presentation proofs.
package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

const privateKeySize = 32

// Sign signs a digest using ECDSA with secp256k1, producing a 65-byte
// [r, s, v] signature.
func Sign(digest []byte, hexPrivateKey string) ([]byte, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	signature, err := crypto.Sign(digest, privKey)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length, expected 65 bytes")
	}

	return signature, nil
}

// SignMessage hashes a message with SHA-256 and signs the digest.
func SignMessage(message []byte, hexPrivateKey string) ([]byte, error) {
	hash := sha256.Sum256(message)
	return Sign(hash[:], hexPrivateKey)
}

// ParsePublicKeyHex parses a hex-encoded secp256k1 public key in either
// compressed (33 byte) or uncompressed (65 byte) form.
func ParsePublicKeyHex(publicKeyHex string) (*ecdsa.PublicKey, error) {
	publicKeyHex = strings.TrimPrefix(publicKeyHex, "0x")

	publicKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key hex: %w", err)
	}

	switch {
	case len(publicKeyBytes) == 33 && (publicKeyBytes[0] == 0x02 || publicKeyBytes[0] == 0x03):
		parsed, err := secp256k1.ParsePubKey(publicKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse compressed public key: %w", err)
		}
		return parsed.ToECDSA(), nil
	case len(publicKeyBytes) == 65 && publicKeyBytes[0] == 0x04:
		pubKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse uncompressed public key: %w", err)
		}
		return pubKey, nil
	default:
		return nil, fmt.Errorf("unsupported public key format, got %d bytes", len(publicKeyBytes))
	}
}

// VerifyDigest verifies an ECDSA signature over a digest. The signature may
// be 64 bytes (r, s) or 65 bytes (r, s, v); the recovery byte is ignored.
func VerifyDigest(publicKey *ecdsa.PublicKey, digest, signature []byte) error {
	var rsBytes []byte
	switch len(signature) {
	case 65:
		rsBytes = signature[:64]
	case 64:
		rsBytes = signature
	default:
		return fmt.Errorf("invalid signature length: got %d, want 64 or 65 bytes", len(signature))
	}

	r := new(big.Int).SetBytes(rsBytes[:32])
	s := new(big.Int).SetBytes(rsBytes[32:])

	if !ecdsa.Verify(publicKey, digest, r, s) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// VerifyMessage hashes a message with SHA-256 and verifies the signature
// against a hex public key.
func VerifyMessage(publicKeyHex string, message, signature []byte) error {
	pubKey, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(message)
	return VerifyDigest(pubKey, hash[:], signature)
}

// CompressPublicKey serializes an ECDSA public key into 33-byte compressed form.
func CompressPublicKey(pubKey *ecdsa.PublicKey) ([]byte, error) {
	btcecKey, err := btcec.ParsePubKey(crypto.FromECDSAPub(pubKey))
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key: %w", err)
	}
	return btcecKey.SerializeCompressed(), nil
}

// PublicKeyHexFromPrivate derives the uncompressed hex public key for a hex
// private key.
func PublicKeyHexFromPrivate(hexPrivateKey string) (string, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexPrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return hex.EncodeToString(crypto.FromECDSAPub(&privKey.PublicKey)), nil
}

// VerifyKeyPairFromHex verifies if a private key (hex) and public key (hex) match.
func VerifyKeyPairFromHex(privateKeyHex, publicKeyHex string) (bool, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return false, fmt.Errorf("failed to convert private key hex: %w", err)
	}

	publicKey, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return false, err
	}

	derived := &privateKey.PublicKey
	return derived.X.Cmp(publicKey.X) == 0 && derived.Y.Cmp(publicKey.Y) == 0, nil
}

// ValidatePrivateKeyHex checks that a hex string decodes to a 32-byte scalar.
func ValidatePrivateKeyHex(hexPrivateKey string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexPrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("private key is not valid hex: %w", err)
	}
	if len(raw) != privateKeySize {
		return fmt.Errorf("private key must be %d bytes, got %d", privateKeySize, len(raw))
	}
	return nil
}
