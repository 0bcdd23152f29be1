package jwt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/crypto"
)

// SigningMethodES256K implements ES256K signing for golang-jwt.
type SigningMethodES256K struct{}

// Alg returns the algorithm name.
func (m *SigningMethodES256K) Alg() string {
	return "ES256K"
}

// Sign signs a string with a hex private key.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	privKeyHex, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("invalid key type, expected hex private key string")
	}

	sig, err := crypto.SignMessage([]byte(signingString), privKeyHex)
	if err != nil {
		return nil, err
	}

	// Return R and S, excluding the recovery ID.
	return sig[:64], nil
}

// Verify verifies a signature against an ECDSA public key.
func (m *SigningMethodES256K) Verify(signingString string, signature []byte, key interface{}) error {
	publicKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("invalid key type, expected *ecdsa.PublicKey")
	}

	digest := sha256.Sum256([]byte(signingString))

	return crypto.VerifyDigest(publicKey, digest[:], signature)
}

// ES256K is the ES256K signing method instance.
var ES256K = &SigningMethodES256K{}

var registerOnce sync.Once

// RegisterES256K registers the signing method with golang-jwt. Safe to call
// repeatedly.
func RegisterES256K() {
	registerOnce.Do(func() {
		jwt.RegisterSigningMethod(ES256K.Alg(), func() jwt.SigningMethod {
			return ES256K
		})
	})
}
