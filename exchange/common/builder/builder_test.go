package builder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
)

func TestLocalBuildCredentialOffer(t *testing.T) {
	payload, err := Local{}.BuildCredentialOffer(context.Background(), OfferParams{
		CallbackURL:        "https://issuer.example.com/receive",
		OfferedCredentials: []dto.OfferedCredential{{Type: "IDCardCredential"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example.com/receive", payload.CallbackURL)
	assert.Len(t, payload.OfferedCredentials, 1)

	_, err = Local{}.BuildCredentialOffer(context.Background(), OfferParams{})
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, errs.CodeInvalidParams, verr.Code)
}

func TestLocalBuildCredentialRequest(t *testing.T) {
	payload, err := Local{}.BuildCredentialRequest(context.Background(), RequestParams{
		CredentialRequirements: []dto.CredentialRequirement{
			{Type: []string{"VerifiableCredential", "IDCardCredential"}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, payload.CredentialRequirements, 1)

	_, err = Local{}.BuildCredentialRequest(context.Background(), RequestParams{})
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, errs.CodeInvalidParams, verr.Code)
}

func TestClientBuildCredentialOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/credential-offer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var params OfferParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"credentialOffer": map[string]interface{}{
				"callbackURL":        params.CallbackURL,
				"offeredCredentials": params.OfferedCredentials,
			},
		}))
	}))
	defer srv.Close()

	payload, err := NewClient(srv.URL).BuildCredentialOffer(context.Background(), OfferParams{
		CallbackURL:        "https://issuer.example.com/receive",
		OfferedCredentials: []dto.OfferedCredential{{Type: "IDCardCredential"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example.com/receive", payload.CallbackURL)
	require.Len(t, payload.OfferedCredentials, 1)
	assert.Equal(t, "IDCardCredential", payload.OfferedCredentials[0].Type)
}

func TestClientBuildCredentialRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/credential-share-request", r.URL.Path)

		var params RequestParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"credentialShareRequest": map[string]interface{}{
				"credentialRequirements": params.CredentialRequirements,
			},
		}))
	}))
	defer srv.Close()

	payload, err := NewClient(srv.URL).BuildCredentialRequest(context.Background(), RequestParams{
		CredentialRequirements: []dto.CredentialRequirement{
			{Type: []string{"VerifiableCredential", "IDCardCredential"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, payload.CredentialRequirements, 1)
}

func TestClientVerifyCredentialOfferResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-credential-offer-response", r.URL.Path)

		var params map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "resp-token", params["responseToken"])
		assert.Equal(t, "req-token", params["requestToken"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(dto.Verdict{
			IsValid: true,
			DID:     "did:nda:testnet:0x52908400098527886e0f7030069857d2e4169ee7",
			Errors:  []string{},
		}))
	}))
	defer srv.Close()

	verdict, err := NewClient(srv.URL).VerifyCredentialOfferResponse(context.Background(), "resp-token", "req-token")
	require.NoError(t, err)
	assert.True(t, verdict.IsValid)
	assert.Empty(t, verdict.Errors)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "invalid-parameters",
			"message": "offeredCredentials must not be empty",
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).BuildCredentialOffer(context.Background(), OfferParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-parameters")
	assert.Contains(t, err.Error(), "offeredCredentials must not be empty")
}
