package token

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jwt"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
)

// Resolver resolves a DID into a DID document. Satisfied by the resolver
// client and by both cache flavors.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*model.DIDDocument, error)
}

// Verifier checks an interaction token's trust envelope: expiry against the
// wall clock and signature against the signer's resolved DID document.
type Verifier struct {
	resolver Resolver
	clock    clock.Clock
}

// VerifierOpt configures a Verifier.
type VerifierOpt func(*Verifier)

// WithVerifierClock injects the clock used for expiry checks.
func WithVerifierClock(c clock.Clock) VerifierOpt {
	return func(v *Verifier) {
		v.clock = c
	}
}

// NewVerifier creates a Verifier over a resolver.
func NewVerifier(resolver Resolver, opts ...VerifierOpt) *Verifier {
	v := &Verifier{
		resolver: resolver,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks expiry and signature. An expired token fails with the
// token-expired trust error regardless of signature validity; a token whose
// signature cannot be verified fails with signature-invalid; a token whose
// claims cannot support verification at all fails with invalid-token.
// Resolution failures propagate unchanged.
func (v *Verifier) Verify(ctx context.Context, t *Token) error {
	if t.Claims.ExpiresAt == 0 {
		return fmt.Errorf("%w: missing expiry", errs.ErrInvalidToken)
	}
	if t.Expired(v.clock.Now()) {
		return errs.ErrTokenExpired
	}

	did, err := t.SignerDID()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	doc, err := v.resolver.Resolve(ctx, did)
	if err != nil {
		return fmt.Errorf("failed to resolve signer DID %q: %w", did, err)
	}

	publicKeyHex, err := doc.PublicKeyForID(t.Claims.Issuer)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	if err := jwt.VerifySignature(t.SigningInput(), t.Signature, publicKeyHex); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSignatureInvalid, err)
	}

	return nil
}

// VerifyWithRequest verifies the envelope and additionally checks the
// response answers the given request.
func (v *Verifier) VerifyWithRequest(ctx context.Context, resp, req *Token) error {
	if err := v.Verify(ctx, resp); err != nil {
		return err
	}
	return resp.CorrelatesTo(req)
}
