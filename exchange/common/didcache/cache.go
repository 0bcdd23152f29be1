// Package didcache memoizes DID resolution for the lifetime of one
// verification call, so that many credentials sharing an issuer resolve that
// issuer exactly once.
package didcache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
)

// Resolver resolves a DID into a DID document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*model.DIDDocument, error)
}

type entry struct {
	doc *model.DIDDocument
	err error
}

// Cache is a per-call resolution cache. It is safe for concurrent use; state
// is read-and-insert only, never invalidated mid-call.
type Cache struct {
	resolver Resolver

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a cache over a resolver.
func New(resolver Resolver) *Cache {
	return &Cache{
		resolver: resolver,
		entries:  make(map[string]entry),
	}
}

// Resolve returns the cached document for a DID, resolving and caching it on
// first use. A failed resolution is cached too and surfaces here, at the
// point of use.
func (c *Cache) Resolve(ctx context.Context, did string) (*model.DIDDocument, error) {
	c.mu.Lock()
	e, ok := c.entries[did]
	c.mu.Unlock()
	if ok {
		return e.doc, e.err
	}

	doc, err := c.resolver.Resolve(ctx, did)
	if err != nil {
		err = fmt.Errorf("failed to resolve DID %q: %w", did, err)
	}

	c.mu.Lock()
	c.entries[did] = entry{doc: doc, err: err}
	c.mu.Unlock()

	return doc, err
}

// ResolveAll resolves the deduplicated set of DIDs concurrently and populates
// the cache. Individual resolution failures are recorded per DID and reported
// later by Resolve, not here; the only error returned is a cancelled context.
func (c *Cache) ResolveAll(ctx context.Context, dids []string) error {
	set := make(map[string]struct{}, len(dids))
	for _, did := range dids {
		if did == "" {
			continue
		}
		c.mu.Lock()
		_, cached := c.entries[did]
		c.mu.Unlock()
		if !cached {
			set[did] = struct{}{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, did := range maps.Keys(set) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, _ = c.Resolve(gctx, did)
			return nil
		})
	}

	return g.Wait()
}
