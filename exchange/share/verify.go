package share

import (
	"context"
	"fmt"
	"strings"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/didcache"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jsonmap"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
	"github.com/pilacorp/go-wallet-sdk/exchange/token"
)

// RequestResolver fetches the raw request token matching a response's nonce,
// e.g. from a callback store. Returning an empty token or an error fails the
// verification with the unable-to-locate-request-token error.
type RequestResolver func(ctx context.Context, nonce string) (string, error)

// verifyOptions holds the optional parameters of a verification call.
type verifyOptions struct {
	requestToken    string
	requestResolver RequestResolver
	checkOwnership  bool
}

// VerifyOpt configures a single verification call.
type VerifyOpt func(*verifyOptions)

// WithRequestToken checks the response against the original request token.
func WithRequestToken(raw string) VerifyOpt {
	return func(o *verifyOptions) {
		o.requestToken = raw
	}
}

// WithRequestResolver fetches the matching request lazily, keyed by the
// response's nonce.
func WithRequestResolver(fn RequestResolver) VerifyOpt {
	return func(o *verifyOptions) {
		o.requestResolver = fn
	}
}

// WithoutOwnershipCheck disables the check that each supplied credential is
// owned by the token signer.
func WithoutOwnershipCheck() VerifyOpt {
	return func(o *verifyOptions) {
		o.checkOwnership = false
	}
}

// VerifyShareResponse validates a share response token and every credential
// it supplies.
//
// The envelope is checked first: expiry, signature against the holder's
// resolved DID document, and, when a request token (or resolver) is given,
// correlation with that request. Envelope failures return an error; the
// response cannot be trusted enough to report structured sub-errors.
//
// Supplied credentials are then validated individually without
// short-circuiting, resolving the deduplicated union of issuer DIDs once up
// front, and the outcomes are aggregated into the returned verdict.
func (e *Exchange) VerifyShareResponse(ctx context.Context, responseToken string, opts ...VerifyOpt) (*dto.Verdict, error) {
	options := &verifyOptions{checkOwnership: true}
	for _, opt := range opts {
		opt(options)
	}

	resp, err := token.Decode(responseToken)
	if err != nil {
		return nil, err
	}

	payload, ok := resp.Claims.Payload.(token.ShareResponsePayload)
	if !ok {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("token of type %q carries no supplied credentials", resp.Claims.Typ))
	}

	holderDID, err := resp.SignerDID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	// Resolve the deduplicated union of the holder's DID and every supplied
	// credential's issuer DID in one concurrent batch, so N credentials from
	// one issuer cost one resolution.
	cache := didcache.New(e.resolver)
	dids := []string{holderDID}
	for _, cred := range payload.SuppliedCredentials {
		if issuerDID, err := credentialIssuerDID(cred); err == nil {
			dids = append(dids, issuerDID)
		}
	}
	if err := cache.ResolveAll(ctx, dids); err != nil {
		return nil, err
	}

	verifier := token.NewVerifier(cache, token.WithVerifierClock(e.clock))
	if err := verifier.Verify(ctx, resp); err != nil {
		return nil, err
	}

	req, err := e.locateRequest(ctx, resp.Claims.Nonce, options)
	if err != nil {
		return nil, err
	}
	if req != nil {
		if err := resp.CorrelatesTo(req); err != nil {
			return nil, err
		}
	}

	results := make([]dto.CredentialResult, len(payload.SuppliedCredentials))
	for i, cred := range payload.SuppliedCredentials {
		if err := e.validateCredential(ctx, cache, cred, holderDID, options.checkOwnership); err != nil {
			e.log.WithError(err).WithField("credential", i).Debug("credential validation failed")
			results[i] = dto.CredentialResult{Valid: false, Error: err.Error()}
		} else {
			results[i] = dto.CredentialResult{Valid: true}
		}
	}

	verdict := &dto.Verdict{
		IsValid:             true,
		DID:                 holderDID,
		Nonce:               resp.Claims.Nonce,
		SuppliedCredentials: payload.SuppliedCredentials,
		Errors:              []string{},
	}
	for _, r := range results {
		if !r.Valid {
			verdict.IsValid = false
			verdict.Errors = append(verdict.Errors, r.Error)
		}
	}
	return verdict, nil
}

// locateRequest returns the decoded request token to correlate against, or
// nil when verification proceeds without one.
func (e *Exchange) locateRequest(ctx context.Context, nonce string, options *verifyOptions) (*token.Token, error) {
	raw := options.requestToken

	if raw == "" && options.requestResolver != nil {
		resolved, err := options.requestResolver(ctx, nonce)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrRequestNotFound, err)
		}
		if resolved == "" {
			return nil, errs.ErrRequestNotFound
		}
		req, err := token.Decode(resolved)
		if err != nil {
			return nil, fmt.Errorf("%w: resolved request does not parse: %v", errs.ErrRequestNotFound, err)
		}
		return req, nil
	}

	if raw == "" {
		return nil, nil
	}
	return token.Decode(raw)
}

// validateCredential checks one supplied credential's signature against its
// issuer's resolved DID document and, when requested, its ownership by the
// holder.
func (e *Exchange) validateCredential(ctx context.Context, cache *didcache.Cache, cred map[string]interface{}, holderDID string, checkOwnership bool) error {
	issuerDID, err := credentialIssuerDID(cred)
	if err != nil {
		return err
	}

	doc, err := cache.Resolve(ctx, issuerDID)
	if err != nil {
		return err
	}

	jm := jsonmap.JSONMap(cred)
	if err := jm.VerifyProof(doc); err != nil {
		return err
	}

	if checkOwnership {
		ownerDID, err := credentialOwnerDID(cred)
		if err != nil {
			return err
		}
		if ownerDID != holderDID {
			return fmt.Errorf("credential %v is not owned by the token signer", cred["id"])
		}
	}

	return nil
}

// credentialIssuerDID extracts the issuer DID from a credential. The issuer
// field is either a DID-key-reference string or an object with an id.
func credentialIssuerDID(cred map[string]interface{}) (string, error) {
	var issuer string
	switch v := cred["issuer"].(type) {
	case string:
		issuer = v
	case map[string]interface{}:
		issuer, _ = v["id"].(string)
	}
	if issuer == "" {
		return "", fmt.Errorf("credential %v has no issuer", cred["id"])
	}

	if strings.Contains(issuer, "#") {
		return model.KeyIDToDID(issuer)
	}
	return model.StripParameters(issuer), nil
}

// credentialOwnerDID extracts the owning DID of a credential, preferring
// holder.id over credentialSubject.id.
func credentialOwnerDID(cred map[string]interface{}) (string, error) {
	if holder, ok := cred["holder"].(map[string]interface{}); ok {
		if id, ok := holder["id"].(string); ok && id != "" {
			return model.StripParameters(id), nil
		}
	}
	if subject, ok := cred["credentialSubject"].(map[string]interface{}); ok {
		if id, ok := subject["id"].(string); ok && id != "" {
			return model.StripParameters(id), nil
		}
	}
	return "", fmt.Errorf("credential %v has no holder or subject id", cred["id"])
}
