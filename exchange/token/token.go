// Package token implements the signed interaction token carried between the
// parties of a credential exchange: offer requests and responses, share
// (presentation) requests and responses.
//
// A token is a compact three-segment string (base64url header, base64url
// claims, base64url signature). The claims bundle the registered fields
// (iss, aud, iat, exp, jti, typ) with a type-specific payload under the
// interactionToken claim.
package token

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
)

// Type discriminates the four interaction token kinds.
type Type string

const (
	TypeCredentialOfferRequest  Type = "credentialOfferRequest"
	TypeCredentialOfferResponse Type = "credentialOfferResponse"
	TypeCredentialRequest       Type = "credentialRequest"
	TypeCredentialResponse      Type = "credentialResponse"
)

// responseFor maps a request token type to the type expected in its response.
var responseFor = map[Type]Type{
	TypeCredentialOfferRequest: TypeCredentialOfferResponse,
	TypeCredentialRequest:      TypeCredentialResponse,
}

// Payload is the type-specific content of an interaction token. Exactly one
// concrete payload shape exists per Type, and decoding rejects mismatches.
type Payload interface {
	TokenType() Type
}

// OfferRequestPayload lists the credentials an issuer offers.
type OfferRequestPayload struct {
	CallbackURL        string                  `json:"callbackURL"`
	OfferedCredentials []dto.OfferedCredential `json:"offeredCredentials"`
}

// TokenType implements Payload.
func (OfferRequestPayload) TokenType() Type { return TypeCredentialOfferRequest }

// OfferResponsePayload carries the subset of offered credentials the holder
// accepts.
type OfferResponsePayload struct {
	CallbackURL         string                  `json:"callbackURL"`
	SelectedCredentials []dto.OfferedCredential `json:"selectedCredentials"`
}

// TokenType implements Payload.
func (OfferResponsePayload) TokenType() Type { return TypeCredentialOfferResponse }

// ShareRequestPayload lists the credential requirements a verifier asks for.
type ShareRequestPayload struct {
	CallbackURL            string                      `json:"callbackURL"`
	CredentialRequirements []dto.CredentialRequirement `json:"credentialRequirements"`
}

// TokenType implements Payload.
func (ShareRequestPayload) TokenType() Type { return TypeCredentialRequest }

// ShareResponsePayload carries the signed credentials the holder supplies.
// Credentials are open records; fields beyond the ones the verification
// engine touches pass through untouched.
type ShareResponsePayload struct {
	CallbackURL         string                   `json:"callbackURL"`
	SuppliedCredentials []map[string]interface{} `json:"suppliedCredentials"`
}

// TokenType implements Payload.
func (ShareResponsePayload) TokenType() Type { return TypeCredentialResponse }

// Claims holds the decoded claim set of an interaction token.
type Claims struct {
	Issuer    string // iss: verification method URL of the signer
	Audience  string // aud: optional, restricts the legitimate consumer
	IssuedAt  int64  // iat: unix seconds
	ExpiresAt int64  // exp: unix seconds, hard validity boundary
	Nonce     string // jti: unique per issuance
	Typ       Type
	Payload   Payload
}

// Token is a decoded interaction token. Decoding performs no signature
// verification; that is an explicit separate step so callers can inspect
// claims before deciding how to verify.
type Token struct {
	Header    map[string]interface{}
	Claims    Claims
	Signature []byte

	raw          string
	signingInput string
}

// Raw returns the compact encoded form the token was decoded from.
func (t *Token) Raw() string {
	return t.raw
}

// SigningInput returns the header.payload segment the signature covers.
func (t *Token) SigningInput() string {
	return t.signingInput
}

// ExpiresAt returns the expiry boundary as a time.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.Claims.ExpiresAt, 0)
}

// Expired reports whether the token's validity boundary has passed.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// SignerDID derives the DID of the token's signer from the iss key reference.
func (t *Token) SignerDID() (string, error) {
	return model.KeyIDToDID(t.Claims.Issuer)
}

// CorrelatesTo checks that this response token answers the given request:
// the type pairing must match, the nonce must be the request's nonce, and an
// audience, when present, must name the requester.
func (t *Token) CorrelatesTo(req *Token) error {
	want, ok := responseFor[req.Claims.Typ]
	if !ok || t.Claims.Typ != want {
		return fmt.Errorf("%w: token type %q does not answer a %q request", errs.ErrInvalidToken, t.Claims.Typ, req.Claims.Typ)
	}

	if t.Claims.Nonce != req.Claims.Nonce {
		return fmt.Errorf("%w: response nonce does not match request nonce", errs.ErrInvalidToken)
	}

	if t.Claims.Audience != "" {
		reqDID, err := req.SignerDID()
		if err != nil {
			return fmt.Errorf("%w: request has no valid signer", errs.ErrInvalidToken)
		}
		if model.StripParameters(t.Claims.Audience) != reqDID {
			return fmt.Errorf("%w: response audience does not name the requester", errs.ErrInvalidToken)
		}
	}

	return nil
}

// parsePayload decodes the interactionToken claim into the payload shape
// required by typ, rejecting mismatches.
func parsePayload(typ Type, raw json.RawMessage) (Payload, error) {
	switch typ {
	case TypeCredentialOfferRequest:
		var p OfferRequestPayload
		if err := unmarshalShape(raw, &p, "offeredCredentials"); err != nil {
			return nil, err
		}
		return p, nil
	case TypeCredentialOfferResponse:
		var p OfferResponsePayload
		if err := unmarshalShape(raw, &p, "selectedCredentials"); err != nil {
			return nil, err
		}
		return p, nil
	case TypeCredentialRequest:
		var p ShareRequestPayload
		if err := unmarshalShape(raw, &p, "credentialRequirements"); err != nil {
			return nil, err
		}
		return p, nil
	case TypeCredentialResponse:
		var p ShareResponsePayload
		if err := unmarshalShape(raw, &p, "suppliedCredentials"); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("unknown token type %q", typ))
	}
}

// unmarshalShape decodes raw into dst and checks the discriminating keys of
// the shape are actually present.
func unmarshalShape(raw json.RawMessage, dst Payload, requiredKeys ...string) error {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return errs.NewMalformedTokenError(fmt.Sprintf("interactionToken is not a JSON object: %v", err))
	}

	for _, key := range requiredKeys {
		if _, ok := shape[key]; !ok {
			return errs.NewMalformedTokenError(fmt.Sprintf("interactionToken payload does not match token type %q: missing %q", dst.TokenType(), key))
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return errs.NewMalformedTokenError(fmt.Sprintf("invalid interactionToken payload: %v", err))
	}
	return nil
}
