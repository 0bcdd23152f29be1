package jwt

import (
	"fmt"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/crypto"
)

// VerifySignature checks an ES256K signature over a token's signing input
// (header.payload) against a hex public key.
func VerifySignature(signingInput string, signature []byte, publicKeyHex string) error {
	publicKey, err := crypto.ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	return ES256K.Verify(signingInput, signature, publicKey)
}
