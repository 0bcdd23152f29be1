package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/crypto"
)

const defaultKeyName = "key-1"

// Signer signs tokens and documents on behalf of one DID key.
type Signer struct {
	privKeyHex string
	did        string
	keyName    string
}

// SignerOpt configures a Signer.
type SignerOpt func(*Signer)

// WithKeyName overrides the verification method fragment (default "key-1").
func WithKeyName(name string) SignerOpt {
	return func(s *Signer) {
		s.keyName = name
	}
}

// NewSigner creates a signer for a hex private key and its controlling DID.
func NewSigner(privKeyHex, did string, opts ...SignerOpt) (*Signer, error) {
	if err := crypto.ValidatePrivateKeyHex(privKeyHex); err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	if did == "" {
		return nil, fmt.Errorf("signer DID is empty")
	}

	s := &Signer{
		privKeyHex: privKeyHex,
		did:        did,
		keyName:    defaultKeyName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DID returns the signer's DID.
func (s *Signer) DID() string {
	return s.did
}

// KeyID returns the verification method URL this signer's signatures resolve to.
func (s *Signer) KeyID() string {
	return fmt.Sprintf("%s#%s", s.did, s.keyName)
}

// PrivateKeyHex exposes the raw key for proof construction.
func (s *Signer) PrivateKeyHex() string {
	return s.privKeyHex
}

// SignClaims builds and signs a JWT carrying the given claims.
func (s *Signer) SignClaims(claims map[string]interface{}) (string, error) {
	RegisterES256K()

	token := jwt.NewWithClaims(ES256K, jwt.MapClaims(claims))
	token.Header["typ"] = "JWT"
	token.Header["kid"] = s.KeyID()

	signedString, err := token.SignedString(s.privKeyHex)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedString, nil
}

// SignDocument signs a verifiable document (VC or VP) as a JWT. The document
// is nested under the claim named by docType, with registered claims derived
// from the document alongside it.
func (s *Signer) SignDocument(doc map[string]interface{}, docType string, additionalClaims map[string]interface{}) (string, error) {
	claims := map[string]interface{}{
		docType: doc,
	}
	for key, value := range additionalClaims {
		claims[key] = value
	}
	return s.SignClaims(claims)
}
