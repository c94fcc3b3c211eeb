// Package orders serves the authenticated user's order history through the
// shared async cache. History is keyed by user identity and marked stale
// after a completed checkout so the new order shows up on the next read.
package orders

import (
	"context"

	"github.com/cexll/storefront-go/pkg/cache"
	"github.com/cexll/storefront-go/pkg/transport"
)

// Remote is the slice of the transport client the engine uses.
type Remote interface {
	Orders(ctx context.Context) ([]transport.Order, error)
}

// Identity resolves the current user. *session.Manager satisfies it.
type Identity interface {
	UserEmail() (string, error)
}

// Key returns the cache key for one user's order history.
func Key(email string) string { return "orders:" + email }

// History is the read state exposed to the presentation layer.
type History struct {
	Enabled bool
	Orders  []transport.Order
	Err     error
}

// Engine owns order-history reads.
type Engine struct {
	remote   Remote
	identity Identity
	cache    *cache.Cache[[]transport.Order]
}

// NewEngine builds an order-history engine.
func NewEngine(remote Remote, identity Identity) *Engine {
	return &Engine{
		remote:   remote,
		identity: identity,
		cache:    cache.New[[]transport.Order](),
	}
}

// History returns the user's order history, fetching when the cached entry
// is absent or stale. Without a session it reports a disabled history and
// issues no network call.
func (e *Engine) History(ctx context.Context) History {
	email, err := e.identity.UserEmail()
	if err != nil {
		return History{}
	}
	entry, err := e.cache.Get(ctx, Key(email), func(ctx context.Context) ([]transport.Order, error) {
		return e.remote.Orders(ctx)
	})
	return History{Enabled: true, Orders: entry.Value, Err: err}
}

// Invalidate marks email's history stale so the next read refetches.
func (e *Engine) Invalidate(email string) {
	e.cache.Invalidate(Key(email))
}
