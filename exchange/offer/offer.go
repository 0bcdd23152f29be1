// Package offer implements the credential offer exchange: an issuer offers a
// set of credentials, the holder answers with the selection it accepts, and
// the issuer verifies that answer.
package offer

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/builder"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jwt"
	"github.com/pilacorp/go-wallet-sdk/exchange/token"
)

// Builder assembles offer request payloads. Satisfied by builder.Client and
// builder.Local.
type Builder interface {
	BuildCredentialOffer(ctx context.Context, params builder.OfferParams) (*token.OfferRequestPayload, error)
}

// Exchange drives the offer flow on behalf of one signing identity.
type Exchange struct {
	signer   *jwt.Signer
	resolver token.Resolver
	builder  Builder
	codec    *token.Codec
	clock    clock.Clock
}

// Opt configures an Exchange.
type Opt func(*Exchange)

// WithBuilder replaces the local payload assembly with a remote builder.
func WithBuilder(b Builder) Opt {
	return func(e *Exchange) {
		e.builder = b
	}
}

// WithClock injects the clock used for token stamping and expiry checks.
func WithClock(c clock.Clock) Opt {
	return func(e *Exchange) {
		e.clock = c
	}
}

// New creates an offer Exchange.
func New(signer *jwt.Signer, resolver token.Resolver, opts ...Opt) *Exchange {
	e := &Exchange{
		signer:   signer,
		resolver: resolver,
		builder:  builder.Local{},
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.codec = token.NewCodec(token.WithClock(e.clock))
	return e
}

// buildOptions holds the optional parameters of a build call.
type buildOptions struct {
	callbackURL string
	encodeOpts  []token.EncodeOpt
}

// BuildOpt configures a single build call.
type BuildOpt func(*buildOptions)

// WithCallbackURL sets the URL the counterparty answers to.
func WithCallbackURL(url string) BuildOpt {
	return func(o *buildOptions) {
		o.callbackURL = url
	}
}

// WithTokenOptions passes audience/nonce/expiry through to the codec.
func WithTokenOptions(opts ...token.EncodeOpt) BuildOpt {
	return func(o *buildOptions) {
		o.encodeOpts = append(o.encodeOpts, opts...)
	}
}

// BuildOfferRequest builds and signs a credential offer request token.
func (e *Exchange) BuildOfferRequest(ctx context.Context, offered []dto.OfferedCredential, opts ...BuildOpt) (string, error) {
	if len(offered) == 0 {
		return "", errs.NewValidationError(errs.CodeInvalidParams, "offered credentials must not be empty")
	}
	for i, oc := range offered {
		if oc.Type == "" {
			return "", errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("offered credential %d has an empty type", i))
		}
	}

	options := &buildOptions{}
	for _, opt := range opts {
		opt(options)
	}

	payload, err := e.builder.BuildCredentialOffer(ctx, builder.OfferParams{
		CallbackURL:        options.callbackURL,
		OfferedCredentials: offered,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build credential offer: %w", err)
	}

	return e.codec.Encode(*payload, e.signer, options.encodeOpts...)
}

// BuildOfferResponse answers an offer request token, accepting the full
// offered set. The response echoes the request's nonce and callback URL and
// is addressed to the requester.
func (e *Exchange) BuildOfferResponse(offerRequestToken string) (string, error) {
	req, err := token.Decode(offerRequestToken)
	if err != nil {
		return "", err
	}

	payload, ok := req.Claims.Payload.(token.OfferRequestPayload)
	if !ok {
		return "", errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("token of type %q is not a credential offer request", req.Claims.Typ))
	}

	requesterDID, err := req.SignerDID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	response := token.OfferResponsePayload{
		CallbackURL:         payload.CallbackURL,
		SelectedCredentials: payload.OfferedCredentials,
	}

	return e.codec.Encode(response, e.signer,
		token.WithNonce(req.Claims.Nonce),
		token.WithAudience(requesterDID),
	)
}

// RemoteVerifier verifies offer responses through the builder API.
// Satisfied by builder.Client.
type RemoteVerifier interface {
	VerifyCredentialOfferResponse(ctx context.Context, responseToken, requestToken string) (*dto.Verdict, error)
}

// verifyOptions holds the optional parameters of a verify call.
type verifyOptions struct {
	requestToken string
	remote       RemoteVerifier
}

// VerifyOpt configures a single verify call.
type VerifyOpt func(*verifyOptions)

// WithRequestToken checks the response against the original request.
func WithRequestToken(raw string) VerifyOpt {
	return func(o *verifyOptions) {
		o.requestToken = raw
	}
}

// WithRemoteVerification delegates the verification call to the builder API
// instead of running the local engine.
func WithRemoteVerification(v RemoteVerifier) VerifyOpt {
	return func(o *verifyOptions) {
		o.remote = v
	}
}

// VerifyOfferResponse validates an offer response token's envelope and
// returns the selection verdict. A response that does not carry selected
// credentials fails with an invalid-parameters error; envelope trust
// failures surface as trust errors.
func (e *Exchange) VerifyOfferResponse(ctx context.Context, responseToken string, opts ...VerifyOpt) (*dto.Verdict, error) {
	options := &verifyOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.remote != nil {
		return options.remote.VerifyCredentialOfferResponse(ctx, responseToken, options.requestToken)
	}

	resp, err := token.Decode(responseToken)
	if err != nil {
		return nil, err
	}

	payload, ok := resp.Claims.Payload.(token.OfferResponsePayload)
	if !ok {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("token of type %q carries no selected credentials", resp.Claims.Typ))
	}

	verifier := token.NewVerifier(e.resolver, token.WithVerifierClock(e.clock))
	if err := verifier.Verify(ctx, resp); err != nil {
		return nil, err
	}

	if options.requestToken != "" {
		req, err := token.Decode(options.requestToken)
		if err != nil {
			return nil, err
		}
		if err := resp.CorrelatesTo(req); err != nil {
			return nil, err
		}
	}

	holderDID, err := resp.SignerDID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	return &dto.Verdict{
		IsValid:             true,
		DID:                 holderDID,
		Nonce:               resp.Claims.Nonce,
		SelectedCredentials: payload.SelectedCredentials,
		Errors:              []string{},
	}, nil
}
