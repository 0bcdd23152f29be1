package didcache

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"github.com/pilacorp/go-wallet-sdk/exchange/common/model"
)

const (
	defaultSharedSize = 256
	defaultSharedTTL  = 5 * time.Minute
)

// Shared is a process-wide, TTL-bounded DID document cache layered over a
// resolver. Unlike Cache it outlives a single verification call, so resolved
// documents may be up to one TTL stale.
type Shared struct {
	inner Resolver
	cache gcache.Cache
}

// SharedOpt configures a Shared cache.
type SharedOpt func(*sharedOptions)

type sharedOptions struct {
	size int
	ttl  time.Duration
}

// WithSize bounds the number of cached documents.
func WithSize(size int) SharedOpt {
	return func(o *sharedOptions) {
		o.size = size
	}
}

// WithTTL bounds how stale a cached document may be served.
func WithTTL(ttl time.Duration) SharedOpt {
	return func(o *sharedOptions) {
		o.ttl = ttl
	}
}

// NewShared creates a shared cache over a resolver.
func NewShared(inner Resolver, opts ...SharedOpt) *Shared {
	options := &sharedOptions{
		size: defaultSharedSize,
		ttl:  defaultSharedTTL,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Shared{
		inner: inner,
		cache: gcache.New(options.size).LRU().Expiration(options.ttl).Build(),
	}
}

// Resolve returns a cached document when fresh, resolving through otherwise.
// Failed resolutions are not cached.
func (s *Shared) Resolve(ctx context.Context, did string) (*model.DIDDocument, error) {
	if v, err := s.cache.Get(did); err == nil {
		return v.(*model.DIDDocument), nil
	}

	doc, err := s.inner.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}

	_ = s.cache.Set(did, doc)
	return doc, nil
}
