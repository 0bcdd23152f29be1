// Package jsonmap implements an open JSON record with Linked Data Proof
// support. Documents keep arbitrary extra fields; only the proof field is
// interpreted.
package jsonmap

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/crypto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/processor"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/util"
)

// JSONMap represents a JSON object as a map.
type JSONMap map[string]interface{}

// ToJSON serializes the JSONMap to JSON.
func (m *JSONMap) ToJSON() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSONMap: %w", err)
	}
	return data, nil
}

// FromJSON parses raw JSON into a JSONMap.
func FromJSON(raw []byte) (JSONMap, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}
	var m JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return m, nil
}

// Canonicalize produces the content digest of the JSONMap: the document
// canonicalized without its proof field.
func (m *JSONMap) Canonicalize(opts ...processor.ProcessorOpt) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	mCopy := JSONMap(util.ShallowCopyObj(*m))
	delete(mCopy, "proof")

	canonical, err := processor.CanonicalizeDocument(mCopy, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}

	return processor.ComputeDigest(canonical)
}

// signingDigest hashes the document together with its proof options, the
// proofValue left out. The signature therefore covers the challenge and
// domain the proof claims to be bound to; rewriting either after signing
// changes the digest.
func (m *JSONMap) signingDigest(proof *dto.Proof, opts ...processor.ProcessorOpt) ([]byte, error) {
	options := *proof
	options.ProofValue = ""

	mCopy := JSONMap(util.ShallowCopyObj(*m))
	mCopy["proof"] = map[string]interface{}(SerializeProof(&options))

	canonical, err := processor.CanonicalizeDocument(mCopy, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}

	return processor.ComputeDigest(canonical)
}

// AddProof signs the JSONMap and attaches a DataIntegrityProof. Challenge and
// domain bind the proof to one request and one relying party; either may be
// empty when the proof purpose does not require them.
func (m *JSONMap) AddProof(privHex, verificationMethod, proofPurpose, challenge, domain string, opts ...processor.ProcessorOpt) error {
	if m == nil {
		return fmt.Errorf("JSONMap is nil")
	}
	if verificationMethod == "" {
		return fmt.Errorf("verification method is required")
	}
	if proofPurpose == "" {
		return fmt.Errorf("proof purpose is required")
	}

	proof := &dto.Proof{
		Type:               "DataIntegrityProof",
		Created:            time.Now().UTC().Format(time.RFC3339),
		VerificationMethod: verificationMethod,
		ProofPurpose:       proofPurpose,
		Cryptosuite:        "ecdsa-rdfc-2019",
		Challenge:          challenge,
		Domain:             domain,
	}

	digest, err := m.signingDigest(proof, opts...)
	if err != nil {
		return fmt.Errorf("failed to canonicalize JSONMap: %w", err)
	}

	signature, err := crypto.Sign(digest, privHex)
	if err != nil {
		return fmt.Errorf("failed to sign proof: %w", err)
	}
	proof.ProofValue = hex.EncodeToString(signature)

	(*m)["proof"] = SerializeProof(proof)
	return nil
}

// Proof extracts the first proof from the JSONMap.
func (m *JSONMap) Proof() (*dto.Proof, error) {
	if m == nil {
		return nil, fmt.Errorf("JSONMap is nil")
	}

	raw, exists := (*m)["proof"]
	if !exists {
		return nil, fmt.Errorf("JSONMap has no proof")
	}

	if list, ok := raw.([]interface{}); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("JSONMap has an empty proof list")
		}
		raw = list[0]
	}

	return ParseRawToProof(raw)
}

// VerifyProof checks the JSONMap's proof signature against the key material
// in a resolved DID document. The document must belong to the proof's
// verification method controller.
func (m *JSONMap) VerifyProof(doc *model.DIDDocument, opts ...processor.ProcessorOpt) error {
	proof, err := m.Proof()
	if err != nil {
		return err
	}

	digest, err := m.signingDigest(proof, opts...)
	if err != nil {
		return fmt.Errorf("failed to canonicalize JSONMap: %w", err)
	}

	publicKeyHex, err := doc.PublicKeyForID(proof.VerificationMethod)
	if err != nil {
		// Fall back to the document's default key when the proof does not
		// reference an entry by id.
		publicKeyHex, err = doc.DefaultPublicKey()
		if err != nil {
			return fmt.Errorf("failed to find public key: %w", err)
		}
	}

	publicKey, err := crypto.ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	signature, err := hex.DecodeString(proof.ProofValue)
	if err != nil {
		return fmt.Errorf("failed to decode proof value: %w", err)
	}

	if err := crypto.VerifyDigest(publicKey, digest, signature); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// SerializeProof converts a Proof struct to a JSON object.
func SerializeProof(proof *dto.Proof) JSONMap {
	result := make(JSONMap)
	if proof.Type != "" {
		result["type"] = proof.Type
	}
	if proof.Created != "" {
		result["created"] = proof.Created
	}
	if proof.VerificationMethod != "" {
		result["verificationMethod"] = proof.VerificationMethod
	}
	if proof.ProofPurpose != "" {
		result["proofPurpose"] = proof.ProofPurpose
	}
	if proof.ProofValue != "" {
		result["proofValue"] = proof.ProofValue
	}
	if proof.Cryptosuite != "" {
		result["cryptosuite"] = proof.Cryptosuite
	}
	if proof.Challenge != "" {
		result["challenge"] = proof.Challenge
	}
	if proof.Domain != "" {
		result["domain"] = proof.Domain
	}
	return result
}

// ParseRawToProof converts a JSON object to a Proof struct.
func ParseRawToProof(proof interface{}) (*dto.Proof, error) {
	var proofMap map[string]interface{}
	switch v := proof.(type) {
	case JSONMap:
		proofMap = v
	case map[string]interface{}:
		proofMap = v
	default:
		return nil, fmt.Errorf("invalid proof format: expected map[string]interface{}, got %T", proof)
	}

	result := &dto.Proof{}
	if t, ok := proofMap["type"].(string); ok {
		result.Type = t
	}
	if created, ok := proofMap["created"].(string); ok {
		result.Created = created
	}
	if purpose, ok := proofMap["proofPurpose"].(string); ok {
		result.ProofPurpose = purpose
	}
	if vm, ok := proofMap["verificationMethod"].(string); ok {
		result.VerificationMethod = vm
	}
	if pv, ok := proofMap["proofValue"].(string); ok {
		result.ProofValue = pv
	}
	if suite, ok := proofMap["cryptosuite"].(string); ok {
		result.Cryptosuite = suite
	}
	if challenge, ok := proofMap["challenge"].(string); ok {
		result.Challenge = challenge
	}
	if domain, ok := proofMap["domain"].(string); ok {
		result.Domain = domain
	}
	return result, nil
}
