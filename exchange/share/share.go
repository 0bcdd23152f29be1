// Package share implements the credential share exchange: a verifier
// requests credentials matching a set of requirements, the holder answers
// with signed credentials, and the verifier runs the response through the
// verification engine.
package share

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/builder"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jwt"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/schema"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/util"
	"github.com/pilacorp/go-wallet-sdk/exchange/token"
)

// Builder assembles share request payloads. Satisfied by builder.Client and
// builder.Local.
type Builder interface {
	BuildCredentialRequest(ctx context.Context, params builder.RequestParams) (*token.ShareRequestPayload, error)
}

// Exchange drives the share flow on behalf of one signing identity.
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

// New creates a share Exchange.
func New(signer *jwt.Signer, resolver token.Resolver, opts ...Opt) *Exchange {
	e := &Exchange{
		signer:   signer,
		resolver: resolver,
		builder:  builder.Local{},
		clock:    clock.New(),
		log:      logrus.WithField("component", "share"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.codec = token.NewCodec(token.WithClock(e.clock))
	return e
}

// buildOptions holds the optional parameters of a build call.
type buildOptions struct {
	callbackURL    string
	issuerDID      string
	expiresAt      time.Time
	validateSchema bool
	encodeOpts     []token.EncodeOpt
}

// BuildOpt configures a single build call.
type BuildOpt func(*buildOptions)

// WithCallbackURL sets the URL the counterparty answers to.
func WithCallbackURL(url string) BuildOpt {
	return func(o *buildOptions) {
		o.callbackURL = url
	}
}

// WithIssuer constrains every requirement to credentials issued by the given
// DID.
func WithIssuer(did string) BuildOpt {
	return func(o *buildOptions) {
		o.issuerDID = did
	}
}

// WithExpiry sets an explicit validity boundary on the built token.
func WithExpiry(t time.Time) BuildOpt {
	return func(o *buildOptions) {
		o.expiresAt = t
	}
}

// WithSchemaValidation additionally validates supplied credentials against
// the JSON schemas they declare.
func WithSchemaValidation() BuildOpt {
	return func(o *buildOptions) {
		o.validateSchema = true
	}
}

// WithTokenOptions passes audience/nonce/expiry through to the codec.
func WithTokenOptions(opts ...token.EncodeOpt) BuildOpt {
	return func(o *buildOptions) {
		o.encodeOpts = append(o.encodeOpts, opts...)
	}
}

// BuildShareRequest builds and signs a credential share request token.
func (e *Exchange) BuildShareRequest(ctx context.Context, requirements []dto.CredentialRequirement, opts ...BuildOpt) (string, error) {
	if len(requirements) == 0 {
		return "", errs.NewValidationError(errs.CodeInvalidParams, "credential requirements must not be empty")
	}
	for i, r := range requirements {
		if len(r.Type) == 0 {
			return "", errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("credential requirement %d has an empty type", i))
		}
	}

	options := &buildOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.issuerDID != "" {
		requirements = util.MapSlice(requirements, func(r dto.CredentialRequirement) dto.CredentialRequirement {
			r.Constraints = append(r.Constraints, dto.Constraint{
				"==": []interface{}{map[string]interface{}{"var": "issuer"}, options.issuerDID},
			})
			return r
		})
	}

	payload, err := e.builder.BuildCredentialRequest(ctx, builder.RequestParams{
		CallbackURL:            options.callbackURL,
		CredentialRequirements: requirements,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build credential share request: %w", err)
	}

	encodeOpts := options.encodeOpts
	if !options.expiresAt.IsZero() {
		encodeOpts = append(encodeOpts, token.WithExpiry(options.expiresAt))
	}

	return e.codec.Encode(*payload, e.signer, encodeOpts...)
}

// BuildShareResponse answers a share request token with signed credentials.
// Every supplied credential must satisfy the minimum shape: either the
// legacy issued date, or both issuanceDate and credentialSubject. Violations
// across the whole batch are collected into one validation error naming
// every missing field.
func (e *Exchange) BuildShareResponse(shareRequestToken string, supplied []map[string]interface{}, opts ...BuildOpt) (string, error) {
	req, err := token.Decode(shareRequestToken)
	if err != nil {
		return "", err
	}

	payload, ok := req.Claims.Payload.(token.ShareRequestPayload)
	if !ok {
		return "", errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("token of type %q is not a credential share request", req.Claims.Typ))
	}

	options := &buildOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if err := checkCredentialShapes(supplied); err != nil {
		return "", err
	}

	if options.validateSchema {
		for i, cred := range supplied {
			if err := schema.ValidateCredential(cred); err != nil {
				return "", fmt.Errorf("supplied credential %d failed schema validation: %w", i, err)
			}
		}
	}

	requesterDID, err := req.SignerDID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	response := token.ShareResponsePayload{
		CallbackURL:         payload.CallbackURL,
		SuppliedCredentials: supplied,
	}

	encodeOpts := []token.EncodeOpt{
		token.WithNonce(req.Claims.Nonce),
		token.WithAudience(requesterDID),
	}
	if !options.expiresAt.IsZero() {
		encodeOpts = append(encodeOpts, token.WithExpiry(options.expiresAt))
	}

	return e.codec.Encode(response, e.signer, encodeOpts...)
}

// checkCredentialShapes runs the legacy/current shape gate over the whole
// batch without short-circuiting.
func checkCredentialShapes(supplied []map[string]interface{}) error {
	var missing []string
	for i, cred := range supplied {
		if _, hasLegacy := cred["issued"]; hasLegacy {
			continue
		}
		if _, ok := cred["issuanceDate"]; !ok {
			missing = append(missing, fmt.Sprintf("suppliedCredentials[%d].issuanceDate", i))
		}
		if _, ok := cred["credentialSubject"]; !ok {
			missing = append(missing, fmt.Sprintf("suppliedCredentials[%d].credentialSubject", i))
		}
	}
	if len(missing) > 0 {
		return &errs.ValidationError{
			Code:    errs.CodeInvalidParams,
			Message: "supplied credentials are missing required fields",
			Fields:  missing,
		}
	}
	return nil
}

// SignCredentials signs every candidate credential whose type tags intersect
// the set of types selected in an offer response. Zero matches fail with the
// no-matching-offered-credential-type error rather than yielding an empty
// list, which guards against type-name typos between issuer and holder.
func (e *Exchange) SignCredentials(offerResponseToken string, candidates []map[string]interface{}) ([]string, error) {
	resp, err := token.Decode(offerResponseToken)
	if err != nil {
		return nil, err
	}

	payload, ok := resp.Claims.Payload.(token.OfferResponsePayload)
	if !ok {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("token of type %q is not a credential offer response", resp.Claims.Typ))
	}

	selected := make(map[string]struct{}, len(payload.SelectedCredentials))
	for _, sc := range payload.SelectedCredentials {
		selected[sc.Type] = struct{}{}
	}

	var signed []string
	for i, candidate := range candidates {
		types, err := util.StringsFromAny(candidate["type"])
		if err != nil {
			return nil, errs.NewValidationError(errs.CodeInvalidParams, fmt.Sprintf("candidate credential %d has an invalid type field: %v", i, err))
		}

		if !typesIntersect(types, selected) {
			continue
		}

		jwtVC, err := e.signCredential(candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to sign candidate credential %d: %w", i, err)
		}
		signed = append(signed, jwtVC)
	}

	if len(signed) == 0 {
		return nil, errs.ErrNoMatchingType
	}
	return signed, nil
}

func typesIntersect(types []string, selected map[string]struct{}) bool {
	for _, t := range types {
		if _, ok := selected[t]; ok {
			return true
		}
	}
	return false
}

// signCredential signs one credential as a JWT with the registered claims
// derived from it.
func (e *Exchange) signCredential(credential map[string]interface{}) (string, error) {
	additional := map[string]interface{}{
		"iss": e.signer.DID(),
	}
	if id, ok := credential["id"].(string); ok && id != "" {
		additional["jti"] = id
	}
	if subject, ok := credential["credentialSubject"].(map[string]interface{}); ok {
		if subjectID, ok := subject["id"].(string); ok && subjectID != "" {
			additional["sub"] = subjectID
		}
	}

	return e.signer.SignDocument(credential, "vc", additional)
}
