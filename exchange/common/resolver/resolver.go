// Package resolver implements the HTTP client used to resolve DIDs into DID
// documents.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
)

const defaultTimeout = 10 * time.Second

// Client resolves DIDs from a resolver endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new DID resolver client for a given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Resolve fetches and parses a DID document from the resolver endpoint.
func (c *Client) Resolve(ctx context.Context, did string) (*model.DIDDocument, error) {
	if did == "" {
		return nil, fmt.Errorf("DID is empty")
	}

	apiURL := c.baseURL + "/" + url.PathEscape(did)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build DID resolver request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from DID resolver: %w", err)
	}

	var doc model.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}

	return &doc, nil
}

// GetPublicKey retrieves the hex public key for a verification method URL.
func (c *Client) GetPublicKey(ctx context.Context, keyID string) (string, error) {
	did, err := model.KeyIDToDID(keyID)
	if err != nil {
		return "", err
	}

	doc, err := c.Resolve(ctx, did)
	if err != nil {
		return "", fmt.Errorf("failed to resolve DID %q: %w", did, err)
	}

	return doc.PublicKeyForID(keyID)
}
