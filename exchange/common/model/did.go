package model

import (
	"fmt"
	"strings"
)

// DIDDocument represents the structure of a resolved DID Document. Extra
// fields returned by a resolver are ignored rather than rejected.
type DIDDocument struct {
	Context             []string                  `json:"@context"`
	ID                  string                    `json:"id"`
	VerificationMethod  []VerificationMethodEntry `json:"verificationMethod"`
	Authentication      []string                  `json:"authentication"`
	AssertionMethod     []string                  `json:"assertionMethod"`
	Controller          interface{}               `json:"controller"` // Can be string or []string
	DIDDocumentMetadata map[string]interface{}    `json:"didDocumentMetadata"`
}

// VerificationMethodEntry represents a single verification method in a DID Document.
type VerificationMethodEntry struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Controller   string `json:"controller"`
	PublicKeyHex string `json:"publicKeyHex,omitempty"`
	PublicKeyJwk *JWK   `json:"publicKeyJwk,omitempty"`
}

// JWK represents a JSON Web Key structure.
type JWK struct {
	Kty string `json:"kty"` // Key type
	Crv string `json:"crv"` // Curve
	X   string `json:"x"`   // X coordinate
	Y   string `json:"y"`   // Y coordinate
}

// PublicKeyForID looks up the hex public key referenced by a verification
// method URL (did#fragment) in the document.
func (d *DIDDocument) PublicKeyForID(keyID string) (string, error) {
	for _, vm := range d.VerificationMethod {
		if vm.ID == keyID {
			return strings.TrimPrefix(vm.PublicKeyHex, "0x"), nil
		}
	}
	return "", fmt.Errorf("verification method %q not found in DID document for %q", keyID, d.ID)
}

// DefaultPublicKey returns the first verification method's hex public key.
func (d *DIDDocument) DefaultPublicKey() (string, error) {
	if len(d.VerificationMethod) == 0 {
		return "", fmt.Errorf("DID document for %q has no verification method", d.ID)
	}
	return strings.TrimPrefix(d.VerificationMethod[0].PublicKeyHex, "0x"), nil
}

// KeyIDToDID extracts the DID from a verification method URL by removing the
// fragment.
func KeyIDToDID(keyID string) (string, error) {
	if keyID == "" {
		return "", fmt.Errorf("verification method is empty")
	}

	didPart, _, _ := strings.Cut(keyID, "#")
	if didPart == "" {
		return "", fmt.Errorf("invalid verification method URL, could not extract DID: %s", keyID)
	}

	didPart = StripParameters(didPart)
	if !strings.HasPrefix(didPart, "did:") {
		return "", fmt.Errorf("extracted DID %q is invalid, must start with 'did:'", didPart)
	}

	return didPart, nil
}

// StripParameters removes DID-URL decorations (query parameters and fragment)
// from a DID so that two references to the same subject compare equal. Path
// segments are method-specific identifier material and are kept.
func StripParameters(did string) string {
	if i := strings.IndexAny(did, "?#"); i >= 0 {
		return did[:i]
	}
	return did
}
