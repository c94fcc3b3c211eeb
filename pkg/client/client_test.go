package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/storefront-go/pkg/config"
	"github.com/cexll/storefront-go/pkg/kvstore"
	"github.com/cexll/storefront-go/pkg/session"
	"github.com/cexll/storefront-go/pkg/transport"
)

// fakeStorefront fakes the three remote services behind one mux.
type fakeStorefront struct {
	mu         sync.Mutex
	token      string
	cartCalls  int
	orderCalls int
	items      []transport.CartItem
}

func (f *fakeStorefront) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transport.AuthResponse{Token: f.token})
	})
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transport.ProductPage{CurrentPage: 1, TotalPages: 1})
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cartCalls++
		items := f.items
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(items)
	})
	mux.HandleFunc("POST /cart/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /checkout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.orderCalls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]transport.Order{{ID: "ord-1"}})
	})
	return mux
}

func (f *fakeStorefront) cartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cartCalls
}

func (f *fakeStorefront) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderCalls
}

func signedToken(t *testing.T, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{"email": email, "username": "tester"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func newTestClient(t *testing.T, remote *fakeStorefront, store kvstore.Store) *Client {
	t.Helper()
	server := httptest.NewServer(remote.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Config{
		BaseURL:  server.URL,
		PageSize: 20,
		Debounce: config.Duration(20 * time.Millisecond),
		TokenKey: config.DefaultTokenKey,
	}
	c, err := New(context.Background(), cfg, WithStore(store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestBootstrapRestoresStoredSession(t *testing.T) {
	remote := &fakeStorefront{}
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(config.DefaultTokenKey, signedToken(t, "a@shop.test")))

	c := newTestClient(t, remote, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	assert.Equal(t, session.StateAuthenticated, c.Session.State())
	email, err := c.Session.UserEmail()
	require.NoError(t, err)
	assert.Equal(t, "a@shop.test", email)
}

func TestLoginEnablesCartAndMutationInvalidates(t *testing.T) {
	remote := &fakeStorefront{}
	remote.token = signedToken(t, "a@shop.test")
	c := newTestClient(t, remote, kvstore.NewMemoryStore())
	require.NoError(t, c.Bootstrap(context.Background()))

	ctx := context.Background()
	snap := c.Cart.Snapshot(ctx)
	assert.False(t, snap.Enabled, "cart reads are disabled before login")
	assert.Zero(t, remote.cartCount())

	require.NoError(t, c.Session.LoginWithPassword(ctx, "a@shop.test", "pw"))

	snap = c.Cart.Snapshot(ctx)
	assert.True(t, snap.Enabled)
	assert.Equal(t, 1, remote.cartCount())

	require.NoError(t, c.Cart.AddItem(ctx, "CAM-001", 1))
	assert.Equal(t, 1, remote.cartCount(), "the mutation alone must not refetch")

	_ = c.Cart.Snapshot(ctx)
	assert.Equal(t, 2, remote.cartCount(), "the next read refetches the remote truth")
}

func TestCheckoutInvalidatesOrderHistory(t *testing.T) {
	remote := &fakeStorefront{token: signedToken(t, "a@shop.test")}
	c := newTestClient(t, remote, kvstore.NewMemoryStore())
	require.NoError(t, c.Bootstrap(context.Background()))

	ctx := context.Background()
	require.NoError(t, c.Session.LoginWithPassword(ctx, "a@shop.test", "pw"))

	_ = c.Orders.History(ctx)
	require.Equal(t, 1, remote.orderCount())

	result, err := c.Cart.Checkout(ctx)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 1, remote.orderCount(), "checkout must not eagerly refetch history")

	_ = c.Orders.History(ctx)
	assert.Equal(t, 2, remote.orderCount(), "the completed order shows up on the next read")
}

func TestLogoutDisablesAuthenticatedReads(t *testing.T) {
	remote := &fakeStorefront{token: signedToken(t, "a@shop.test")}
	c := newTestClient(t, remote, kvstore.NewMemoryStore())
	require.NoError(t, c.Bootstrap(context.Background()))

	ctx := context.Background()
	require.NoError(t, c.Session.LoginWithPassword(ctx, "a@shop.test", "pw"))
	_ = c.Cart.Snapshot(ctx)

	c.Session.Logout()
	snap := c.Cart.Snapshot(ctx)
	assert.False(t, snap.Enabled)
	assert.False(t, c.Transport.HasCredential())
}

func TestWatchStorageFollowsExternalTokenChange(t *testing.T) {
	remote := &fakeStorefront{}
	dir := t.TempDir()
	store, err := kvstore.NewFileStore(dir)
	require.NoError(t, err)

	c := newTestClient(t, remote, store)
	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, session.StateUnauthenticated, c.Session.State())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.WatchStorage(ctx))

	// Another "tab" signs in by writing the token file.
	sibling, err := kvstore.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, sibling.Set(config.DefaultTokenKey, signedToken(t, "b@shop.test")))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Session.State() == session.StateAuthenticated {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	email, err := c.Session.UserEmail()
	require.NoError(t, err)
	assert.Equal(t, "b@shop.test", email)
}
