package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jwt"
)

// defaultExpiry is the validity window stamped on tokens when the caller does
// not supply one.
const defaultExpiry = time.Hour

// Codec encodes typed payloads into signed interaction tokens and decodes
// them back.
type Codec struct {
	clock  clock.Clock
	expiry time.Duration
}

// CodecOpt configures a Codec.
type CodecOpt func(*Codec)

// WithClock injects the clock used to stamp iat/exp.
func WithClock(c clock.Clock) CodecOpt {
	return func(codec *Codec) {
		codec.clock = c
	}
}

// WithDefaultExpiry overrides the default validity window.
func WithDefaultExpiry(d time.Duration) CodecOpt {
	return func(codec *Codec) {
		codec.expiry = d
	}
}

// NewCodec creates a Codec.
func NewCodec(opts ...CodecOpt) *Codec {
	c := &Codec{
		clock:  clock.New(),
		expiry: defaultExpiry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// encodeOptions holds per-token encoding parameters.
type encodeOptions struct {
	audience string
	nonce    string
	expiry   time.Time
}

// EncodeOpt configures a single Encode call.
type EncodeOpt func(*encodeOptions)

// WithAudience restricts who may legitimately consume the token.
func WithAudience(aud string) EncodeOpt {
	return func(o *encodeOptions) {
		o.audience = aud
	}
}

// WithNonce sets the jti instead of generating one. Responses use this to
// echo the request's nonce.
func WithNonce(nonce string) EncodeOpt {
	return func(o *encodeOptions) {
		o.nonce = nonce
	}
}

// WithExpiry sets an explicit validity boundary.
func WithExpiry(exp time.Time) EncodeOpt {
	return func(o *encodeOptions) {
		o.expiry = exp
	}
}

// Encode wraps a payload into a signed interaction token. The claims of two
// Encode calls with the same payload, nonce and expiry are byte-identical.
func (c *Codec) Encode(payload Payload, signer *jwt.Signer, opts ...EncodeOpt) (string, error) {
	if payload == nil {
		return "", errs.NewValidationError(errs.CodeInvalidParams, "token payload is nil")
	}
	if signer == nil {
		return "", errs.NewValidationError(errs.CodeInvalidParams, "token signer is nil")
	}

	options := &encodeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	now := c.clock.Now()
	expiry := options.expiry
	if expiry.IsZero() {
		expiry = now.Add(c.expiry)
	}
	nonce := options.nonce
	if nonce == "" {
		nonce = uuid.NewString()
	}

	claims := map[string]interface{}{
		"iss":              signer.KeyID(),
		"iat":              now.Unix(),
		"exp":              expiry.Unix(),
		"jti":              nonce,
		"typ":              string(payload.TokenType()),
		"interactionToken": payload,
	}
	if options.audience != "" {
		claims["aud"] = options.audience
	}

	signed, err := signer.SignClaims(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode interaction token: %w", err)
	}
	return signed, nil
}

// rawClaims is the wire shape of the claim segment.
type rawClaims struct {
	Issuer    string          `json:"iss"`
	Audience  string          `json:"aud,omitempty"`
	IssuedAt  int64           `json:"iat"`
	ExpiresAt int64           `json:"exp"`
	Nonce     string          `json:"jti"`
	Typ       string          `json:"typ"`
	Payload   json.RawMessage `json:"interactionToken"`
}

// Decode parses a compact interaction token without verifying its signature.
// Malformed segments, invalid base64url, invalid JSON, and a payload that
// does not match the token type all fail with a malformed-token error.
func Decode(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errs.NewMalformedTokenError("token is empty")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("token must have 3 segments, got %d", len(parts)))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("invalid header segment: %v", err))
	}
	var header map[string]interface{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("invalid header JSON: %v", err))
	}

	claimBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("invalid claims segment: %v", err))
	}
	var claims rawClaims
	if err := json.Unmarshal(claimBytes, &claims); err != nil {
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("invalid claims JSON: %v", err))
	}
	if len(claims.Payload) == 0 {
		return nil, errs.NewMalformedTokenError("interactionToken claim is missing")
	}

	payload, err := parsePayload(Type(claims.Typ), claims.Payload)
	if err != nil {
		return nil, err
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errs.NewMalformedTokenError(fmt.Sprintf("invalid signature segment: %v", err))
	}

	return &Token{
		Header: header,
		Claims: Claims{
			Issuer:    claims.Issuer,
			Audience:  claims.Audience,
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
			Nonce:     claims.Nonce,
			Typ:       Type(claims.Typ),
			Payload:   payload,
		},
		Signature:    signature,
		raw:          raw,
		signingInput: parts[0] + "." + parts[1],
	}, nil
}
