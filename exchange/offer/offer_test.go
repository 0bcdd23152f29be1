package offer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/builder"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/crypto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/jwt"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
	"github.com/pilacorp/go-wallet-sdk/exchange/token"
)

const (
	issuerKey = "c6f8cf675b77523c3d3157d322b3c7c4cc14874f290407398361be1a4c1ed7d0"
	issuerDID = "did:nda:testnet:0xb64b2b1168047d1745492c7025c5edba69e4f4f0"
	holderKey = "7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6"
	holderDID = "did:nda:testnet:0x52908400098527886e0f7030069857d2e4169ee7"
)

type mapResolver struct {
	docs map[string]*model.DIDDocument
}

func (r *mapResolver) Resolve(_ context.Context, did string) (*model.DIDDocument, error) {
	doc, ok := r.docs[did]
	if !ok {
		return nil, fmt.Errorf("DID %q not found", did)
	}
	return doc, nil
}

func docFor(t *testing.T, did, privKeyHex string) *model.DIDDocument {
	t.Helper()
	pub, err := crypto.PublicKeyHexFromPrivate(privKeyHex)
	require.NoError(t, err)
	return &model.DIDDocument{
		ID: did,
		VerificationMethod: []model.VerificationMethodEntry{{
			ID:           did + "#key-1",
			Type:         "EcdsaSecp256k1VerificationKey2019",
			Controller:   did,
			PublicKeyHex: pub,
		}},
	}
}

func testResolver(t *testing.T) *mapResolver {
	t.Helper()
	return &mapResolver{docs: map[string]*model.DIDDocument{
		issuerDID: docFor(t, issuerDID, issuerKey),
		holderDID: docFor(t, holderDID, holderKey),
	}}
}

func newExchange(t *testing.T, privKey, did string, resolver token.Resolver) *Exchange {
	t.Helper()
	signer, err := jwt.NewSigner(privKey, did)
	require.NoError(t, err)
	return New(signer, resolver)
}

func TestOfferFlow(t *testing.T) {
	resolver := testResolver(t)
	issuer := newExchange(t, issuerKey, issuerDID, resolver)
	holder := newExchange(t, holderKey, holderDID, resolver)

	offered := []dto.OfferedCredential{
		{Type: "IDCardCredential"},
		{Type: "ProofOfEmployment", RenderAs: "document"},
	}

	request, err := issuer.BuildOfferRequest(context.Background(), offered,
		WithCallbackURL("https://issuer.example.com/receive"))
	require.NoError(t, err)

	req, err := token.Decode(request)
	require.NoError(t, err)
	assert.Equal(t, token.TypeCredentialOfferRequest, req.Claims.Typ)
	payload := req.Claims.Payload.(token.OfferRequestPayload)
	assert.Equal(t, "https://issuer.example.com/receive", payload.CallbackURL)
	assert.Equal(t, offered, payload.OfferedCredentials)

	response, err := holder.BuildOfferResponse(request)
	require.NoError(t, err)

	resp, err := token.Decode(response)
	require.NoError(t, err)
	assert.Equal(t, token.TypeCredentialOfferResponse, resp.Claims.Typ)
	assert.Equal(t, req.Claims.Nonce, resp.Claims.Nonce)
	assert.Equal(t, issuerDID, resp.Claims.Audience)

	verdict, err := issuer.VerifyOfferResponse(context.Background(), response,
		WithRequestToken(request))
	require.NoError(t, err)
	assert.True(t, verdict.IsValid)
	assert.Equal(t, holderDID, verdict.DID)
	assert.Equal(t, req.Claims.Nonce, verdict.Nonce)
	assert.Equal(t, offered, verdict.SelectedCredentials)
	assert.Empty(t, verdict.Errors)
}

func TestBuildOfferRequestValidation(t *testing.T) {
	issuer := newExchange(t, issuerKey, issuerDID, testResolver(t))

	tests := []struct {
		name    string
		offered []dto.OfferedCredential
	}{
		{name: "empty set", offered: nil},
		{name: "empty type", offered: []dto.OfferedCredential{{Type: ""}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := issuer.BuildOfferRequest(context.Background(), tc.offered)
			var verr *errs.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, errs.CodeInvalidParams, verr.Code)
		})
	}
}

func TestBuildOfferResponseRejectsWrongTokenType(t *testing.T) {
	resolver := testResolver(t)
	issuer := newExchange(t, issuerKey, issuerDID, resolver)
	holder := newExchange(t, holderKey, holderDID, resolver)

	request, err := issuer.BuildOfferRequest(context.Background(), []dto.OfferedCredential{{Type: "IDCardCredential"}})
	require.NoError(t, err)
	response, err := holder.BuildOfferResponse(request)
	require.NoError(t, err)

	// An offer response is not itself an offer request.
	_, err = holder.BuildOfferResponse(response)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, errs.CodeInvalidParams, verr.Code)
}

func TestVerifyOfferResponseRejectsWrongTokenType(t *testing.T) {
	issuer := newExchange(t, issuerKey, issuerDID, testResolver(t))

	request, err := issuer.BuildOfferRequest(context.Background(), []dto.OfferedCredential{{Type: "IDCardCredential"}})
	require.NoError(t, err)

	_, err = issuer.VerifyOfferResponse(context.Background(), request)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, errs.CodeInvalidParams, verr.Code)
	assert.Contains(t, verr.Message, "no selected credentials")
}

func TestVerifyOfferResponseRejectsStaleResponse(t *testing.T) {
	resolver := testResolver(t)
	issuer := newExchange(t, issuerKey, issuerDID, resolver)
	holder := newExchange(t, holderKey, holderDID, resolver)

	offered := []dto.OfferedCredential{{Type: "IDCardCredential"}}
	firstRequest, err := issuer.BuildOfferRequest(context.Background(), offered)
	require.NoError(t, err)
	secondRequest, err := issuer.BuildOfferRequest(context.Background(), offered)
	require.NoError(t, err)

	response, err := holder.BuildOfferResponse(firstRequest)
	require.NoError(t, err)

	// Answering the first request does not satisfy the second.
	_, err = issuer.VerifyOfferResponse(context.Background(), response,
		WithRequestToken(secondRequest))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidToken))
}

func TestVerifyOfferResponseUnresolvableSigner(t *testing.T) {
	// The holder's DID is unknown to this resolver.
	resolver := &mapResolver{docs: map[string]*model.DIDDocument{
		issuerDID: docFor(t, issuerDID, issuerKey),
	}}
	issuer := newExchange(t, issuerKey, issuerDID, resolver)
	holder := newExchange(t, holderKey, holderDID, resolver)

	request, err := issuer.BuildOfferRequest(context.Background(), []dto.OfferedCredential{{Type: "IDCardCredential"}})
	require.NoError(t, err)
	response, err := holder.BuildOfferResponse(request)
	require.NoError(t, err)

	_, err = issuer.VerifyOfferResponse(context.Background(), response)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestVerifyOfferResponseRemote(t *testing.T) {
	resolver := testResolver(t)
	issuer := newExchange(t, issuerKey, issuerDID, resolver)
	holder := newExchange(t, holderKey, holderDID, resolver)

	request, err := issuer.BuildOfferRequest(context.Background(), []dto.OfferedCredential{{Type: "IDCardCredential"}})
	require.NoError(t, err)
	response, err := holder.BuildOfferResponse(request)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-credential-offer-response", r.URL.Path)

		var params map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, response, params["responseToken"])
		assert.Equal(t, request, params["requestToken"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(dto.Verdict{
			IsValid: true,
			DID:     holderDID,
			Errors:  []string{},
		}))
	}))
	defer srv.Close()

	verdict, err := issuer.VerifyOfferResponse(context.Background(), response,
		WithRequestToken(request),
		WithRemoteVerification(builder.NewClient(srv.URL)),
	)
	require.NoError(t, err)
	assert.True(t, verdict.IsValid)
	assert.Equal(t, holderDID, verdict.DID)
}
