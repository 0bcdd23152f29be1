// Package processor produces the canonical byte representation of a JSON
// document prior to signing or verification. The default is canonical JSON
// (stable key order); JSON-LD documents can opt into URDNA2015 normalization.
package processor

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"
)

const nquadsFormat = "application/n-quads"

// ProcessorOpt represents an option for document processing.
type ProcessorOpt func(*processorOptions)

type processorOptions struct {
	useJSONLD      bool
	documentLoader ld.DocumentLoader
}

// WithJSONLD enables RDF dataset normalization (URDNA2015) instead of
// canonical JSON. Requires the document's @context entries to be loadable.
func WithJSONLD() ProcessorOpt {
	return func(p *processorOptions) {
		p.useJSONLD = true
	}
}

// WithDocumentLoader sets the loader used to fetch remote JSON-LD contexts.
func WithDocumentLoader(loader ld.DocumentLoader) ProcessorOpt {
	return func(p *processorOptions) {
		p.documentLoader = loader
	}
}

// defaultDocumentLoader caches remote contexts across calls.
var defaultDocumentLoader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))

// CanonicalizeDocument canonicalizes a document into a stable byte form.
func CanonicalizeDocument(doc map[string]interface{}, opts ...ProcessorOpt) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}

	options := &processorOptions{documentLoader: defaultDocumentLoader}
	for _, opt := range opts {
		opt(options)
	}

	if !options.useJSONLD {
		// json.Marshal emits map keys in sorted order, which is a stable
		// canonical form for plain JSON documents.
		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}
		return encoded, nil
	}

	proc := ld.NewJsonLdProcessor()
	ldOptions := ld.NewJsonLdOptions("")
	ldOptions.Format = nquadsFormat
	ldOptions.Algorithm = ld.AlgorithmURDNA2015
	ldOptions.DocumentLoader = options.documentLoader

	normalized, err := proc.Normalize(doc, ldOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize JSON-LD document: %w", err)
	}

	nquads, ok := normalized.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected normalization result type: %T", normalized)
	}

	return []byte(nquads), nil
}

// ComputeDigest returns the SHA-256 digest of the canonical document bytes.
func ComputeDigest(doc []byte) ([]byte, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("failed to compute digest: document is empty")
	}
	digest := sha256.Sum256(doc)
	return digest[:], nil
}
