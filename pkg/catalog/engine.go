// Package catalog serves the paginated, filterable product listing. Free
// text is debounced before it reaches the network; structured filters fire
// immediately. Responses that no longer match the desired query are
// discarded, and the previous page stays visible while its replacement is in
// flight.
package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cexll/storefront-go/pkg/cache"
	"github.com/cexll/storefront-go/pkg/transport"
)

// DefaultDebounce is how long free text must stay quiescent before a query
// fires.
const DefaultDebounce = 500 * time.Millisecond

// DefaultPageSize is the fixed page size sent with every listing query.
const DefaultPageSize = 20

// Remote is the slice of the transport client the engine uses.
type Remote interface {
	Products(ctx context.Context, q transport.ProductQuery) (transport.ProductPage, error)
	Brands(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) ([]string, error)
}

// View is the read state exposed to the presentation layer. During a
// refetch the previous products stay visible and Fetching reports progress,
// so callers can show an indicator without blanking content.
type View struct {
	Query         Query
	Products      []transport.Product
	CurrentPage   int
	TotalPages    int
	TotalProducts int
	Fetching      bool
	Err           error
}

// PaginationEnabled reports whether page-change controls should be offered.
func (v View) PaginationEnabled() bool { return v.TotalPages > 1 }

// Facets are the filter option lists, sorted.
type Facets struct {
	Brands     []string
	Categories []string
}

// Engine owns the catalog query state machine.
type Engine struct {
	remote   Remote
	pages    *cache.Cache[transport.ProductPage]
	facets   *cache.Cache[[]string]
	pageSize int
	debounce time.Duration
	onChange func(View)

	mu      sync.Mutex
	desired Query
	pending string
	timer   *time.Timer
	view    View
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPageSize overrides the fixed page size.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithDebounce overrides the free-text quiescence interval.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithChangeHook runs fn with a fresh view snapshot after every state
// transition the presentation layer might care about.
func WithChangeHook(fn func(View)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// NewEngine builds a catalog engine over the remote catalog service.
func NewEngine(remote Remote, opts ...Option) *Engine {
	e := &Engine{
		remote:   remote,
		pages:    cache.New[transport.ProductPage](),
		facets:   cache.New[[]string](),
		pageSize: DefaultPageSize,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.desired = Query{Page: 1}
	e.view = View{Query: e.desired}
	return e
}

// Refresh fires the currently desired query immediately. Call it once after
// construction to load the first page.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	target := e.desired
	e.view.Fetching = true
	e.mu.Unlock()
	go e.fetch(ctx, target)
}

// SetFreeText buffers a free-text change. The query fires only after the
// text has been quiet for the debounce interval, and the firing timer always
// issues the latest composed query.
func (e *Engine) SetFreeText(ctx context.Context, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = text
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		e.desired = Query{
			FreeText: e.pending,
			Category: e.desired.Category,
			Brand:    e.desired.Brand,
			Page:     1,
		}.normalized()
		target := e.desired
		e.view.Fetching = true
		e.mu.Unlock()
		e.fetch(ctx, target)
	})
}

// SetCategory applies a category filter immediately, resetting to page one.
// An empty category clears the filter.
func (e *Engine) SetCategory(ctx context.Context, category string) {
	e.applyStructured(ctx, func(q Query) Query {
		q.Category = category
		q.Page = 1
		return q
	})
}

// SetBrand applies a brand filter immediately, resetting to page one. An
// empty brand clears the filter.
func (e *Engine) SetBrand(ctx context.Context, brand string) {
	e.applyStructured(ctx, func(q Query) Query {
		q.Brand = brand
		q.Page = 1
		return q
	})
}

// SetPage navigates to page immediately. Page-change intents are no-ops
// while the server reports a single page, matching disabled pagination
// controls.
func (e *Engine) SetPage(ctx context.Context, page int) {
	e.mu.Lock()
	if page < 1 || e.view.TotalPages <= 1 || page == e.desired.Page {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	// No local clamping beyond that: a page past the server-reported total
	// is sent as-is and whatever the server returns is displayed.
	e.applyStructured(ctx, func(q Query) Query {
		q.Page = page
		return q
	})
}

// View returns a snapshot of the visible catalog state.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Facets returns the sorted brand and category lists, cached after the
// first fetch.
func (e *Engine) Facets(ctx context.Context) (Facets, error) {
	brands, err := e.facets.Get(ctx, "facet:brands", func(ctx context.Context) ([]string, error) {
		return e.remote.Brands(ctx)
	})
	if err != nil {
		return Facets{}, err
	}
	categories, err := e.facets.Get(ctx, "facet:categories", func(ctx context.Context) ([]string, error) {
		return e.remote.Categories(ctx)
	})
	if err != nil {
		return Facets{}, err
	}
	out := Facets{
		Brands:     append([]string(nil), brands.Value...),
		Categories: append([]string(nil), categories.Value...),
	}
	sort.Strings(out.Brands)
	sort.Strings(out.Categories)
	return out, nil
}

// InvalidateFacets marks the facet lists stale.
func (e *Engine) InvalidateFacets() {
	e.facets.InvalidatePrefix("facet:")
}

// Close stops any pending debounce timer. In-flight fetches settle into the
// cache but no further timers fire.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) applyStructured(ctx context.Context, mutate func(Query) Query) {
	e.mu.Lock()
	e.desired = mutate(e.desired).normalized()
	target := e.desired
	e.view.Fetching = true
	e.mu.Unlock()
	// Fires independently of any pending debounce timer; a later timer
	// firing issues whatever query is composed at that moment.
	go e.fetch(ctx, target)
}

// fetch resolves target through the page cache and applies the result only
// if target is still the desired query when it settles. Superseded results
// are dropped silently.
func (e *Engine) fetch(ctx context.Context, target Query) {
	entry, err := e.pages.Get(ctx, target.key(), func(ctx context.Context) (transport.ProductPage, error) {
		return e.remote.Products(ctx, transport.ProductQuery{
			Page:     target.Page,
			Limit:    e.pageSize,
			Search:   target.FreeText,
			Brand:    target.Brand,
			Category: target.Category,
		})
	})

	e.mu.Lock()
	if target.key() != e.desired.key() {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.view = View{Query: target, Err: err}
	} else {
		page := entry.Value
		e.view = View{
			Query:         target,
			Products:      page.Products,
			CurrentPage:   page.CurrentPage,
			TotalPages:    page.TotalPages,
			TotalProducts: page.TotalProducts,
		}
	}
	snapshot := e.snapshotLocked()
	hook := e.onChange
	e.mu.Unlock()
	if hook != nil {
		hook(snapshot)
	}
}

func (e *Engine) snapshotLocked() View {
	v := e.view
	v.Products = append([]transport.Product(nil), e.view.Products...)
	return v
}
