package dto

// OfferedCredential describes a single credential an issuer is willing to
// issue. Rendering metadata is free-form and passed through untouched.
type OfferedCredential struct {
	Type     string                 `json:"type"`
	RenderAs string                 `json:"renderAs,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Constraint is a free-form predicate on an acceptable credential, e.g. an
// equality constraint on the issuer.
type Constraint map[string]interface{}

// CredentialRequirement describes one credential a verifier asks for. Type is
// the ordered list of VC type tags; the second tag carries the semantic type.
type CredentialRequirement struct {
	Type        []string     `json:"type"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

// CredentialResult holds the per-credential outcome of a batch validation.
type CredentialResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Verdict is the outcome of verifying a response token. It is constructed
// fresh per verification call and never mutated after return.
type Verdict struct {
	IsValid bool   `json:"isValid"`
	DID     string `json:"did"`
	Nonce   string `json:"nonce"`

	// Exactly one of the two credential lists is populated, depending on
	// whether an offer response or a share response was verified.
	SelectedCredentials []OfferedCredential      `json:"selectedCredentials,omitempty"`
	SuppliedCredentials []map[string]interface{} `json:"suppliedCredentials,omitempty"`

	// Errors holds the non-empty failure strings of invalid credentials, in
	// credential order.
	Errors []string `json:"errors"`
}
