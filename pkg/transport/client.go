// Package transport is the JSON-over-HTTP boundary to the remote storefront
// services. A single Client carries the base URL and the process-wide bearer
// credential; every call is traced and mapped into the shared error taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/storefront-go/pkg/telemetry"
)

const defaultTimeout = 15 * time.Second

// Client issues requests against the storefront services.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("transport: base URL required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}
	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken registers token as the default credential for every subsequent
// authenticated call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken removes the default credential.
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// HasCredential reports whether a bearer token is registered.
func (c *Client) HasCredential() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/users/login",
		body: loginRequest{Email: email, Password: password}}, &out)
	return out, err
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, call{op: "register", method: http.MethodPost, path: "/users/register",
		body: registerRequest{Username: username, Email: email, Password: password}}, &out)
	return out, err
}

// Products fetches one page of the catalog listing.
func (c *Client) Products(ctx context.Context, q ProductQuery) (ProductPage, error) {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Brand != "" {
		values.Set("brand", q.Brand)
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	var out ProductPage
	err := c.do(ctx, call{op: "products", method: http.MethodGet, path: "/products", query: values}, &out)
	return out, err
}

// Brands fetches the brand facet list.
func (c *Client) Brands(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, call{op: "brands", method: http.MethodGet, path: "/products/brands"}, &out)
	return out, err
}

// Categories fetches the category facet list.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, call{op: "categories", method: http.MethodGet, path: "/products/categories"}, &out)
	return out, err
}

// Cart fetches the authenticated user's cart snapshot.
func (c *Client) Cart(ctx context.Context) ([]CartItem, error) {
	var out []CartItem
	err := c.do(ctx, call{op: "cart", method: http.MethodGet, path: "/cart", authed: true}, &out)
	return out, err
}

// AddCartItem adds quantity units of sku to the cart.
func (c *Client) AddCartItem(ctx context.Context, sku string, quantity int) error {
	return c.do(ctx, call{op: "cart.add", method: http.MethodPost, path: "/cart/items", authed: true,
		body: addItemRequest{ProductSKU: sku, Quantity: quantity}}, nil)
}

// UpdateCartItem sets the quantity of an existing cart line.
func (c *Client) UpdateCartItem(ctx context.Context, sku string, quantity int) error {
	return c.do(ctx, call{op: "cart.update", method: http.MethodPut, path: "/cart/items/" + url.PathEscape(sku), authed: true,
		body: updateItemRequest{Quantity: quantity}}, nil)
}

// RemoveCartItem deletes one cart line.
func (c *Client) RemoveCartItem(ctx context.Context, sku string) error {
	return c.do(ctx, call{op: "cart.remove", method: http.MethodDelete, path: "/cart/items/" + url.PathEscape(sku), authed: true}, nil)
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, call{op: "cart.clear", method: http.MethodDelete, path: "/cart", authed: true}, nil)
}

// Checkout converts the cart into an order.
func (c *Client) Checkout(ctx context.Context) error {
	return c.do(ctx, call{op: "checkout", method: http.MethodPost, path: "/checkout", authed: true}, nil)
}

// Orders fetches the authenticated user's order history.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := c.do(ctx, call{op: "orders", method: http.MethodGet, path: "/orders", authed: true}, &out)
	return out, err
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	authed bool
}

func (c *Client) do(ctx context.Context, req call, out any) error {
	token := c.credential()
	if req.authed && token == "" {
		return ErrNoCredential
	}

	ctx, span := telemetry.StartSpan(ctx, "storefront.http."+req.op,
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("url.path", req.path),
		))
	err := c.roundTrip(ctx, req, token, out, span)
	telemetry.EndSpan(span, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, req call, token string, out any, span trace.Span) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("transport: %s: encode body: %w", req.op, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("transport: %s: build request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.authed {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &NetworkError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("transport: %s: decode response: %w", req.op, err)
		}
		return nil
	}

	remote := decodeRemoteError(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Op: req.op, Status: resp.StatusCode, Remote: remote}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ValidationError{Op: req.op, Status: resp.StatusCode, Remote: remote}
	default:
		return &ServerError{Op: req.op, Status: resp.StatusCode, Remote: remote}
	}
}

func decodeRemoteError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload remoteError
	if err := json.Unmarshal(data, &payload); err == nil {
		if text := payload.text(); text != "" {
			return text
		}
	}
	// Plain-text error bodies (http.Error output) still make useful messages.
	return strings.TrimSpace(string(data))
}
