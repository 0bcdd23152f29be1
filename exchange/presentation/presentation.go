// Package presentation implements the W3C-presentation-flavored variant of
// the share exchange: a verifier issues a signed challenge, the holder
// answers with a verifiable presentation bound to that challenge and to the
// relying party's domain, and the verifier checks both the presentation
// proof and the challenge binding.
package presentation

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/builder"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/didcache"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jsonmap"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jwt"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/util"
	"github.com/pilacorp/go-wallet-sdk/exchange/token"
)

const credentialsContext = "https://www.w3.org/2018/credentials/v1"

// Builder assembles share request payloads for challenges.
type Builder interface {
	BuildCredentialRequest(ctx context.Context, params builder.RequestParams) (*token.ShareRequestPayload, error)
}

// Exchange drives the presentation flow on behalf of one signing identity.
type Exchange struct {
	signer   *jwt.Signer
	resolver token.Resolver
	builder  Builder
	codec    *token.Codec
	clock    clock.Clock
	log      *logrus.Entry
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

// New creates a presentation Exchange.
func New(signer *jwt.Signer, resolver token.Resolver, opts ...Opt) *Exchange {
	e := &Exchange{
		signer:   signer,
		resolver: resolver,
		builder:  builder.Local{},
		clock:    clock.New(),
		log:      logrus.WithField("component", "presentation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.codec = token.NewCodec(token.WithClock(e.clock))
	return e
}

// challengeOptions holds the optional parameters of a challenge build.
type challengeOptions struct {
	callbackURL string
	encodeOpts  []token.EncodeOpt
}

// ChallengeOpt configures a single GenerateChallenge call.
type ChallengeOpt func(*challengeOptions)

// WithCallbackURL sets the URL the holder answers to.
func WithCallbackURL(url string) ChallengeOpt {
	return func(o *challengeOptions) {
		o.callbackURL = url
	}
}

// WithTokenOptions passes audience/nonce/expiry through to the codec.
func WithTokenOptions(opts ...token.EncodeOpt) ChallengeOpt {
	return func(o *challengeOptions) {
		o.encodeOpts = append(o.encodeOpts, opts...)
	}
}

// GenerateChallenge builds and signs a challenge token. A challenge has the
// shape of a share request; semantically it is a request the verifier wants
// signed back inside a presentation.
func (e *Exchange) GenerateChallenge(ctx context.Context, requirements []dto.CredentialRequirement, opts ...ChallengeOpt) (string, error) {
	if len(requirements) == 0 {
		return "", errs.NewValidationError(errs.CodeInvalidParams, "credential requirements must not be empty")
	}

	options := &challengeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	payload, err := e.builder.BuildCredentialRequest(ctx, builder.RequestParams{
		CallbackURL:            options.callbackURL,
		CredentialRequirements: requirements,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build challenge: %w", err)
	}

	return e.codec.Encode(*payload, e.signer, options.encodeOpts...)
}

// BuildPresentation wraps the credentials matching a challenge into a signed
// verifiable presentation. The proof binds both the challenge token and the
// relying party's domain, so a presentation cannot be replayed against a
// different challenge or domain without being detectably different.
func (e *Exchange) BuildPresentation(challengeToken string, credentials []map[string]interface{}, domain string) (jsonmap.JSONMap, error) {
	challenge, err := token.Decode(challengeToken)
	if err != nil {
		return nil, err
	}

	payload, ok := challenge.Claims.Payload.(token.ShareRequestPayload)
	if !ok {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("token of type %q is not a challenge", challenge.Claims.Typ))
	}

	requested := requestedTypes(payload.CredentialRequirements)

	var matching []interface{}
	for _, cred := range credentials {
		types, err := util.StringsFromAny(cred["type"])
		if err != nil || len(types) < 2 {
			continue
		}
		if _, ok := requested[types[1]]; ok {
			matching = append(matching, cred)
		}
	}
	if len(matching) == 0 {
		return nil, errs.ErrNoMatchingType
	}

	vp := jsonmap.JSONMap{
		"@context":             []interface{}{credentialsContext},
		"id":                   "urn:uuid:" + uuid.NewString(),
		"type":                 []interface{}{"VerifiablePresentation"},
		"holder":               e.signer.DID(),
		"verifiableCredential": matching,
	}

	if err := vp.AddProof(e.signer.PrivateKeyHex(), e.signer.KeyID(), "authentication", challengeToken, domain); err != nil {
		return nil, fmt.Errorf("failed to sign presentation: %w", err)
	}

	return vp, nil
}

// requestedTypes collects the semantic type tag of each requirement: the
// second tag when present, otherwise the only one.
func requestedTypes(requirements []dto.CredentialRequirement) map[string]struct{} {
	requested := make(map[string]struct{}, len(requirements))
	for _, r := range requirements {
		if len(r.Type) >= 2 {
			requested[r.Type[1]] = struct{}{}
		} else if len(r.Type) == 1 {
			requested[r.Type[0]] = struct{}{}
		}
	}
	return requested
}

// VerifyChallenge checks that a challenge token was issued by the expected
// issuer, carries a valid signature, and has not expired. The issuer
// comparison strips DID-URL parameters from both sides so method-specific
// decorations do not cause false mismatches.
func (e *Exchange) VerifyChallenge(ctx context.Context, challengeToken, expectedIssuer string) error {
	return e.verifyChallenge(ctx, e.resolver, challengeToken, expectedIssuer)
}

func (e *Exchange) verifyChallenge(ctx context.Context, resolver token.Resolver, challengeToken, expectedIssuer string) error {
	challenge, err := token.Decode(challengeToken)
	if err != nil {
		return err
	}

	claimedDID, err := challenge.SignerDID()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	expectedDID, err := model.KeyIDToDID(expectedIssuer)
	if err != nil {
		expectedDID = model.StripParameters(expectedIssuer)
	}
	if claimedDID != expectedDID {
		return errs.ErrIssuerMismatch
	}

	doc, err := resolver.Resolve(ctx, expectedDID)
	if err != nil {
		return fmt.Errorf("failed to resolve issuer DID %q: %w", expectedDID, err)
	}

	publicKeyHex, err := doc.PublicKeyForID(challenge.Claims.Issuer)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	if err := jwt.VerifySignature(challenge.SigningInput(), challenge.Signature, publicKeyHex); err != nil {
		return errs.ErrSignatureInvalid
	}

	if challenge.Expired(e.clock.Now()) {
		return errs.ErrTokenExpired
	}

	return nil
}

// verifyOptions holds the optional parameters of a presentation verification.
type verifyOptions struct {
	expectedChallenge string
	expectedDomain    string
}

// VerifyOpt configures a single VerifyPresentation call.
type VerifyOpt func(*verifyOptions)

// WithExpectedChallenge requires the presentation proof to be bound to
// exactly this challenge token.
func WithExpectedChallenge(challengeToken string) VerifyOpt {
	return func(o *verifyOptions) {
		o.expectedChallenge = challengeToken
	}
}

// WithExpectedDomain requires the presentation proof to be bound to exactly
// this relying-party domain.
func WithExpectedDomain(domain string) VerifyOpt {
	return func(o *verifyOptions) {
		o.expectedDomain = domain
	}
}

// VerifyPresentation validates a verifiable presentation. Two independent
// gates must both pass: the presentation's proof verifies against the
// holder's resolved key, and the challenge bound into that proof passes
// VerifyChallenge. A failed challenge yields an invalid verdict even when
// the proof itself verified.
func (e *Exchange) VerifyPresentation(ctx context.Context, vp jsonmap.JSONMap, opts ...VerifyOpt) (*dto.Verdict, error) {
	options := &verifyOptions{}
	for _, opt := range opts {
		opt(options)
	}

	holder, ok := vp["holder"].(string)
	if !ok || holder == "" {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, "presentation has no holder")
	}
	holderDID := model.StripParameters(holder)

	proof, err := vp.Proof()
	if err != nil {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("presentation has no proof: %v", err))
	}

	verdict := &dto.Verdict{
		IsValid:             true,
		DID:                 holderDID,
		SuppliedCredentials: suppliedFromPresentation(vp),
		Errors:              []string{},
	}

	// One resolution cache serves both gates; the holder's document is
	// resolved exactly once.
	cache := didcache.New(e.resolver)

	doc, err := cache.Resolve(ctx, holderDID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve holder DID %q: %w", holderDID, err)
	}

	if err := vp.VerifyProof(doc); err != nil {
		verdict.IsValid = false
		verdict.Errors = append(verdict.Errors, err.Error())
	}

	if challenge, err := token.Decode(proof.Challenge); err == nil {
		verdict.Nonce = challenge.Claims.Nonce
	}

	if err := e.verifyChallenge(ctx, cache, proof.Challenge, holderDID); err != nil {
		e.log.WithError(err).Debug("challenge verification failed")
		verdict.IsValid = false
		verdict.Errors = append(verdict.Errors, err.Error())
	}

	if options.expectedChallenge != "" && proof.Challenge != options.expectedChallenge {
		verdict.IsValid = false
		verdict.Errors = append(verdict.Errors, "presentation proof is bound to a different challenge")
	}
	if options.expectedDomain != "" && proof.Domain != options.expectedDomain {
		verdict.IsValid = false
		verdict.Errors = append(verdict.Errors, "presentation proof is bound to a different domain")
	}

	return verdict, nil
}

// suppliedFromPresentation extracts the credential objects carried by a
// presentation.
func suppliedFromPresentation(vp jsonmap.JSONMap) []map[string]interface{} {
	raw, ok := vp["verifiableCredential"].([]interface{})
	if !ok {
		return nil
	}
	creds := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if cred, ok := entry.(map[string]interface{}); ok {
			creds = append(creds, cred)
		}
	}
	return creds
}
