package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripParameters(t *testing.T) {
	tests := []struct {
		name     string
		did      string
		expected string
	}{
		{
			name:     "plain DID",
			did:      "did:nda:testnet:0xb64b2b1168047d1745492c7025c5edba69e4f4f0",
			expected: "did:nda:testnet:0xb64b2b1168047d1745492c7025c5edba69e4f4f0",
		},
		{
			name:     "query parameters stripped",
			did:      "did:example:alice?versionId=2",
			expected: "did:example:alice",
		},
		{
			name:     "fragment stripped",
			did:      "did:example:alice#key-1",
			expected: "did:example:alice",
		},
		{
			name:     "cut at first of query and fragment",
			did:      "did:example:alice?service=files#frag",
			expected: "did:example:alice",
		},
		{
			name:     "fragment before query cuts at fragment",
			did:      "did:example:alice#frag?notaquery",
			expected: "did:example:alice",
		},
		{
			name:     "path is kept",
			did:      "did:example:alice/path/segment",
			expected: "did:example:alice/path/segment",
		},
		{
			name:     "path with query",
			did:      "did:example:alice/path?versionId=2",
			expected: "did:example:alice/path",
		},
		{
			name:     "empty string",
			did:      "",
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StripParameters(tc.did))
		})
	}
}

func TestKeyIDToDID(t *testing.T) {
	tests := []struct {
		name        string
		keyID       string
		expected    string
		expectError bool
	}{
		{
			name:     "key reference",
			keyID:    "did:nda:testnet:0xb64b2b1168047d1745492c7025c5edba69e4f4f0#key-1",
			expected: "did:nda:testnet:0xb64b2b1168047d1745492c7025c5edba69e4f4f0",
		},
		{
			name:     "bare DID",
			keyID:    "did:example:alice",
			expected: "did:example:alice",
		},
		{
			name:     "key reference with query parameters",
			keyID:    "did:example:alice?versionId=2#key-1",
			expected: "did:example:alice",
		},
		{
			name:        "not a DID",
			keyID:       "https://example.com/keys/1",
			expectError: true,
		},
		{
			name:        "empty string",
			keyID:       "",
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			did, err := KeyIDToDID(tc.keyID)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, did)
		})
	}
}

func TestPublicKeyForID(t *testing.T) {
	doc := &DIDDocument{
		ID: "did:example:alice",
		VerificationMethod: []VerificationMethodEntry{
			{ID: "did:example:alice#key-1", PublicKeyHex: "aa01"},
			{ID: "did:example:alice#key-2", PublicKeyHex: "0xbb02"},
		},
	}

	key, err := doc.PublicKeyForID("did:example:alice#key-1")
	require.NoError(t, err)
	assert.Equal(t, "aa01", key)

	key, err = doc.PublicKeyForID("did:example:alice#key-2")
	require.NoError(t, err)
	assert.Equal(t, "bb02", key, "0x prefix is stripped")

	_, err = doc.PublicKeyForID("did:example:alice#key-3")
	assert.Error(t, err)
}

func TestDefaultPublicKey(t *testing.T) {
	doc := &DIDDocument{
		ID: "did:example:alice",
		VerificationMethod: []VerificationMethodEntry{
			{ID: "did:example:alice#key-1", PublicKeyHex: "aa01"},
			{ID: "did:example:alice#key-2", PublicKeyHex: "bb02"},
		},
	}

	key, err := doc.DefaultPublicKey()
	require.NoError(t, err)
	assert.Equal(t, "aa01", key)

	empty := &DIDDocument{ID: "did:example:bob"}
	_, err = empty.DefaultPublicKey()
	assert.Error(t, err)
}
