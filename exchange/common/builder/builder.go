// Package builder assembles interaction token payloads. The Client delegates
// assembly to the remote builder API; Local assembles payloads in-process for
// deployments without one. Both satisfy the builder interfaces consumed by
// the offer and share packages.
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/dto"
	"github.com/pilacorp/go-wallet-sdk/exchange/common/errs"
	"github.com/pilacorp/go-wallet-sdk/exchange/token"
)

const defaultTimeout = 10 * time.Second

// OfferParams are the inputs to credential offer payload assembly.
type OfferParams struct {
	CallbackURL        string                  `json:"callbackURL"`
	OfferedCredentials []dto.OfferedCredential `json:"offeredCredentials"`
}

// RequestParams are the inputs to credential share request payload assembly.
type RequestParams struct {
	CallbackURL            string                      `json:"callbackURL"`
	CredentialRequirements []dto.CredentialRequirement `json:"credentialRequirements"`
}

// Client calls the remote builder API.
type Client struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

// NewClient creates a builder client for a base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: logrus.WithField("component", "builder"),
	}
}

// BuildCredentialOffer assembles an offer request payload remotely.
func (c *Client) BuildCredentialOffer(ctx context.Context, params OfferParams) (*token.OfferRequestPayload, error) {
	var result struct {
		CredentialOffer token.OfferRequestPayload `json:"credentialOffer"`
	}
	if err := c.post(ctx, "/credential-offer", params, &result); err != nil {
		return nil, err
	}
	return &result.CredentialOffer, nil
}

// BuildCredentialRequest assembles a share request payload remotely.
func (c *Client) BuildCredentialRequest(ctx context.Context, params RequestParams) (*token.ShareRequestPayload, error) {
	var result struct {
		CredentialShareRequest token.ShareRequestPayload `json:"credentialShareRequest"`
	}
	if err := c.post(ctx, "/credential-share-request", params, &result); err != nil {
		return nil, err
	}
	return &result.CredentialShareRequest, nil
}

// VerifyCredentialOfferResponse delegates offer response verification to the
// remote builder API.
func (c *Client) VerifyCredentialOfferResponse(ctx context.Context, responseToken, requestToken string) (*dto.Verdict, error) {
	params := map[string]string{"responseToken": responseToken}
	if requestToken != "" {
		params["requestToken"] = requestToken
	}

	var verdict dto.Verdict
	if err := c.post(ctx, "/verify-credential-offer-response", params, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (c *Client) post(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal builder request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build builder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.WithField("path", path).Debug("calling builder API")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call builder API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read builder API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("builder API error %s: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("builder API returned non-200 status: %s", resp.Status)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal builder API response: %w", err)
	}
	return nil
}

// Local assembles payloads in-process.
type Local struct{}

// BuildCredentialOffer assembles an offer request payload locally.
func (Local) BuildCredentialOffer(_ context.Context, params OfferParams) (*token.OfferRequestPayload, error) {
	if len(params.OfferedCredentials) == 0 {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, "offeredCredentials must not be empty")
	}
	return &token.OfferRequestPayload{
		CallbackURL:        params.CallbackURL,
		OfferedCredentials: params.OfferedCredentials,
	}, nil
}

// BuildCredentialRequest assembles a share request payload locally.
func (Local) BuildCredentialRequest(_ context.Context, params RequestParams) (*token.ShareRequestPayload, error) {
	if len(params.CredentialRequirements) == 0 {
		return nil, errs.NewValidationError(errs.CodeInvalidParams, "credentialRequirements must not be empty")
	}
	return &token.ShareRequestPayload{
		CallbackURL:            params.CallbackURL,
		CredentialRequirements: params.CredentialRequirements,
	}, nil
}
