// Package cart reconciles the client's view of the cart with the remote
// cart authority. Reads go through the shared async cache keyed by user;
// every acknowledged mutation invalidates that key so the next read
// re-derives truth from the server instead of patching the snapshot locally.
package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cexll/storefront-go/pkg/cache"
	"github.com/cexll/storefront-go/pkg/transport"
)

// Remote is the slice of the transport client the engine uses.
type Remote interface {
	Cart(ctx context.Context) ([]transport.CartItem, error)
	AddCartItem(ctx context.Context, sku string, quantity int) error
	UpdateCartItem(ctx context.Context, sku string, quantity int) error
	RemoveCartItem(ctx context.Context, sku string) error
	ClearCart(ctx context.Context) error
	Checkout(ctx context.Context) error
}

// Identity resolves the current user. *session.Manager satisfies it.
type Identity interface {
	UserEmail() (string, error)
}

// Key returns the cache key for one user's cart. Keys carry the identity so
// switching accounts never serves a stale cart.
func Key(email string) string { return "cart:" + email }

// KeyPrefix matches every cart key regardless of user.
const KeyPrefix = "cart:"

// Snapshot is the read state exposed to the presentation layer. When no
// session exists the snapshot is disabled, which is not an error.
type Snapshot struct {
	Enabled bool
	Loading bool
	Items   []transport.CartItem
	Err     error
}

// GrandTotal sums the server-computed line totals. It derives nothing else;
// every per-line number stays exactly as the server returned it.
func (s Snapshot) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal)
	}
	return total
}

// CheckoutResult signals a completed checkout so the caller can navigate.
type CheckoutResult struct {
	Completed bool
}

// MutationError carries a user-facing message for a failed cart mutation.
type MutationError struct {
	Op          string
	UserMessage string
	Err         error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("cart: %s failed: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Engine is the single source of truth for "what is in the current user's
// cart".
type Engine struct {
	remote     Remote
	identity   Identity
	cache      *cache.Cache[[]transport.CartItem]
	onCheckout func(email string)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCheckoutHook runs fn after a successful checkout, before the result is
// returned. The client wires order-history invalidation through it.
func WithCheckoutHook(fn func(email string)) Option {
	return func(e *Engine) { e.onCheckout = fn }
}

// NewEngine builds a cart engine over the remote authority.
func NewEngine(remote Remote, identity Identity, opts ...Option) *Engine {
	e := &Engine{
		remote:   remote,
		identity: identity,
		cache:    cache.New[[]transport.CartItem](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the current cart state, fetching from the remote when the
// cached entry is absent or stale. Without a session it reports a disabled
// snapshot and issues no network call.
func (e *Engine) Snapshot(ctx context.Context) Snapshot {
	email, err := e.identity.UserEmail()
	if err != nil {
		return Snapshot{}
	}
	entry, err := e.cache.Get(ctx, Key(email), func(ctx context.Context) ([]transport.CartItem, error) {
		return e.remote.Cart(ctx)
	})
	return Snapshot{
		Enabled: true,
		Loading: entry.Status == cache.StatusLoading,
		Items:   entry.Value,
		Err:     err,
	}
}

// AddItem adds quantity units of sku to the cart.
func (e *Engine) AddItem(ctx context.Context, sku string, quantity int) error {
	return e.mutate(ctx, "add item", "Failed to add item.", func(ctx context.Context) error {
		return e.remote.AddCartItem(ctx, sku, quantity)
	})
}

// UpdateItem sets the quantity of an existing line. Quantity zero is passed
// through untouched; the remote authority owns its meaning. RemoveItem is a
// separate codepath, not a special case of this one.
func (e *Engine) UpdateItem(ctx context.Context, sku string, quantity int) error {
	return e.mutate(ctx, "update item", "Failed to update item.", func(ctx context.Context) error {
		return e.remote.UpdateCartItem(ctx, sku, quantity)
	})
}

// RemoveItem deletes one line from the cart.
func (e *Engine) RemoveItem(ctx context.Context, sku string) error {
	return e.mutate(ctx, "remove item", "Failed to remove item.", func(ctx context.Context) error {
		return e.remote.RemoveCartItem(ctx, sku)
	})
}

// Clear empties the cart.
func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, "clear cart", "Failed to clear cart.", func(ctx context.Context) error {
		return e.remote.ClearCart(ctx)
	})
}

// Checkout converts the cart into an order. On success the cart key is
// invalidated so the next read reflects the emptied cart, and the result
// tells the caller to navigate; the engine never navigates itself.
func (e *Engine) Checkout(ctx context.Context) (CheckoutResult, error) {
	email, err := e.identity.UserEmail()
	if err != nil {
		return CheckoutResult{}, err
	}
	if err := e.remote.Checkout(ctx); err != nil {
		return CheckoutResult{}, &MutationError{
			Op:          "checkout",
			UserMessage: transport.UserMessage(err, "Checkout failed."),
			Err:         err,
		}
	}
	e.cache.Invalidate(Key(email))
	if e.onCheckout != nil {
		e.onCheckout(email)
	}
	return CheckoutResult{Completed: true}, nil
}

// Invalidate marks the current user's cart stale without fetching.
func (e *Engine) Invalidate() {
	if email, err := e.identity.UserEmail(); err == nil {
		e.cache.Invalidate(Key(email))
	}
}

// Stale reports whether the current user's cart key has been invalidated.
func (e *Engine) Stale() bool {
	email, err := e.identity.UserEmail()
	if err != nil {
		return false
	}
	return e.cache.Stale(Key(email))
}

func (e *Engine) mutate(ctx context.Context, op, fallback string, fn func(ctx context.Context) error) error {
	email, err := e.identity.UserEmail()
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		// A failed mutation leaves the prior cache entry authoritative.
		return &MutationError{Op: op, UserMessage: transport.UserMessage(err, fallback), Err: err}
	}
	e.cache.Invalidate(Key(email))
	return nil
}
