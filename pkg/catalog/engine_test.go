package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/storefront-go/pkg/transport"
)

// scriptedRemote records every listing call and lets tests hold individual
// responses to force out-of-order completion.
type scriptedRemote struct {
	mu      sync.Mutex
	calls   []transport.ProductQuery
	pages   map[string]transport.ProductPage
	holds   map[string]chan struct{}
	brands  []string
	cats    []string
	brandN  int
	catN    int
	listErr error
}

func newScriptedRemote() *scriptedRemote {
	return &scriptedRemote{
		pages: map[string]transport.ProductPage{},
		holds: map[string]chan struct{}{},
	}
}

func (r *scriptedRemote) respond(search string, page transport.ProductPage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[search] = page
}

func (r *scriptedRemote) hold(search string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.holds[search] = ch
	return ch
}

func (r *scriptedRemote) Products(ctx context.Context, q transport.ProductQuery) (transport.ProductPage, error) {
	r.mu.Lock()
	r.calls = append(r.calls, q)
	hold := r.holds[q.Search]
	page, ok := r.pages[q.Search]
	err := r.listErr
	r.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if err != nil {
		return transport.ProductPage{}, err
	}
	if !ok {
		page = transport.ProductPage{CurrentPage: q.Page, TotalPages: 1}
	}
	return page, nil
}

func (r *scriptedRemote) Brands(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brandN++
	return r.brands, nil
}

func (r *scriptedRemote) Categories(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catN++
	return r.cats, nil
}

func (r *scriptedRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *scriptedRemote) lastCall() transport.ProductQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func (r *scriptedRemote) callAt(i int) transport.ProductQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	remote := newScriptedRemote()
	engine := NewEngine(remote, WithDebounce(40*time.Millisecond))
	defer engine.Close()

	ctx := context.Background()
	for _, text := range []string{"n", "ni", "nik", "nikon"} {
		engine.SetFreeText(ctx, text)
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool { return remote.callCount() == 1 })
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 1, remote.callCount(), "four keystrokes within the interval must produce one call")
	assert.Equal(t, "nikon", remote.lastCall().Search)
	assert.Equal(t, DefaultPageSize, remote.lastCall().Limit)
}

func TestDebounceTimerIssuesLatestComposedQuery(t *testing.T) {
	remote := newScriptedRemote()
	engine := NewEngine(remote, WithDebounce(40*time.Millisecond))
	defer engine.Close()

	ctx := context.Background()
	engine.SetFreeText(ctx, "lens")
	// A structured change fires immediately and does not cancel the timer.
	engine.SetBrand(ctx, "Canon")

	waitFor(t, func() bool { return remote.callCount() == 2 })
	first := remote.callAt(0)
	assert.Equal(t, "Canon", first.Brand)
	assert.Empty(t, first.Search, "the immediate fire uses the last applied text, not the pending buffer")

	last := remote.lastCall()
	assert.Equal(t, "lens", last.Search)
	assert.Equal(t, "Canon", last.Brand, "the timer firing composes the latest filters in")
}

func TestStructuredFilterFiresImmediately(t *testing.T) {
	remote := newScriptedRemote()
	engine := NewEngine(remote, WithDebounce(time.Hour))
	defer engine.Close()

	engine.SetCategory(context.Background(), "cameras")
	waitFor(t, func() bool { return remote.callCount() == 1 })
	assert.Equal(t, "cameras", remote.lastCall().Category)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	remote := newScriptedRemote()
	engine := NewEngine(remote, WithDebounce(20*time.Millisecond))
	defer engine.Close()

	slow := remote.hold("")
	remote.respond("", transport.ProductPage{
		Products: []transport.Product{{SKU: "OLD"}}, CurrentPage: 1, TotalPages: 2,
	})
	remote.respond("nikon", transport.ProductPage{
		Products: []transport.Product{{SKU: "NIKON-1"}}, CurrentPage: 1, TotalPages: 1,
	})

	ctx := context.Background()
	engine.Refresh(ctx) // query A, held in flight
	waitFor(t, func() bool { return remote.callCount() == 1 })

	engine.SetFreeText(ctx, "nikon") // query B, completes while A is still held
	waitFor(t, func() bool {
		v := engine.View()
		return len(v.Products) == 1 && v.Products[0].SKU == "NIKON-1"
	})

	close(slow) // A completes after B was applied
	time.Sleep(50 * time.Millisecond)

	v := engine.View()
	require.Len(t, v.Products, 1)
	assert.Equal(t, "NIKON-1", v.Products[0].SKU, "the superseded response must be discarded silently")
	assert.NoError(t, v.Err)
}

func TestStaleWhileRevalidateKeepsPriorPage(t *testing.T) {
	remote := newScriptedRemote()
	engine := NewEngine(remote, WithDebounce(20*time.Millisecond))
	defer engine.Close()

	remote.respond("", transport.ProductPage{
		Products: []transport.Product{{SKU: "PAGE1-ITEM"}}, CurrentPage: 1, TotalPages: 3, TotalProducts: 45,
	})

	ctx := context.Background()
	engine.Refresh(ctx)
	waitFor(t, func() bool { return len(engine.View().Products) == 1 })

	hold := remote.hold("page2")
	engine.SetFreeText(ctx, "page2")
	waitFor(t, func() bool { return engine.View().Fetching })

	v := engine.View()
	assert.True(t, v.Fetching, "a progress flag is exposed during the refetch")
	require.Len(t, v.Products, 1)
	assert.Equal(t, "PAGE1-ITEM", v.Products[0].SKU, "prior content stays visible, no loading blank")

	close(hold)
	waitFor(t, func() bool { return !engine.View().Fetching })
}

func TestPaginationContract(t *testing.T) {
	remote := newScriptedRemote()
	remote.respond("", transport.ProductPage{
		Products: make([]transport.Product, 20), CurrentPage: 1, TotalPages: 3, TotalProducts: 45,
	})
	engine := NewEngine(remote)
	defer engine.Close()

	ctx := context.Background()
	engine.Refresh(ctx)
	waitFor(t, func() bool { return engine.View().TotalPages == 3 })

	v := engine.View()
	assert.Equal(t, 45, v.TotalProducts)
	assert.True(t, v.PaginationEnabled())

	engine.SetPage(ctx, 2)
	waitFor(t, func() bool { return engine.View().CurrentPage >= 1 && remote.callCount() == 2 })
	assert.Equal(t, 2, remote.lastCall().Page)
}

func TestPageChangeIsNoOpWithSinglePage(t *testing.T) {
	remote := newScriptedRemote()
	remote.respond("", transport.ProductPage{CurrentPage: 1, TotalPages: 1, TotalProducts: 7})
	engine := NewEngine(remote)
	defer engine.Close()

	ctx := context.Background()
	engine.Refresh(ctx)
	waitFor(t, func() bool { return remote.callCount() == 1 })

	engine.SetPage(ctx, 2)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, remote.callCount(), "page intents are no-ops when totalPages <= 1")
	assert.False(t, engine.View().PaginationEnabled())
}

func TestNoLocalPageClamping(t *testing.T) {
	remote := newScriptedRemote()
	remote.respond("", transport.ProductPage{CurrentPage: 1, TotalPages: 3, TotalProducts: 45})
	engine := NewEngine(remote)
	defer engine.Close()

	ctx := context.Background()
	engine.Refresh(ctx)
	waitFor(t, func() bool { return engine.View().TotalPages == 3 })

	engine.SetPage(ctx, 99)
	waitFor(t, func() bool { return remote.callCount() == 2 })
	assert.Equal(t, 99, remote.lastCall().Page, "out-of-range pages go to the server as-is")
}

func TestFailedReadRendersErrorState(t *testing.T) {
	remote := newScriptedRemote()
	remote.listErr = &transport.ServerError{Op: "products", Status: 500}
	engine := NewEngine(remote)
	defer engine.Close()

	engine.Refresh(context.Background())
	waitFor(t, func() bool { return engine.View().Err != nil })

	v := engine.View()
	assert.Empty(t, v.Products, "a failed read shows an error state with no fallback content")
}

func TestFacetsAreCachedAndSorted(t *testing.T) {
	remote := newScriptedRemote()
	remote.brands = []string{"Sony", "Canon", "Nikon"}
	remote.cats = []string{"lenses", "cameras"}
	engine := NewEngine(remote)
	defer engine.Close()

	ctx := context.Background()
	facets, err := engine.Facets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Canon", "Nikon", "Sony"}, facets.Brands)
	assert.Equal(t, []string{"cameras", "lenses"}, facets.Categories)

	_, err = engine.Facets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.brandN, "facet lists come from cache after the first fetch")
	assert.Equal(t, 1, remote.catN)
}

func TestIdenticalQueriesShareOneNetworkCall(t *testing.T) {
	remote := newScriptedRemote()
	engine := NewEngine(remote)
	defer engine.Close()

	ctx := context.Background()
	engine.Refresh(ctx)
	waitFor(t, func() bool { return remote.callCount() == 1 })

	engine.Refresh(ctx)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, remote.callCount(), "an identical settled query is served from cache")
}
