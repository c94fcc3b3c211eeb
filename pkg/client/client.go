// Package client assembles the storefront core into one explicit context
// object. Construct it once at process start and hand it to the
// presentation layer; every engine inside shares the same transport,
// credential, and cache state.
package client

import (
	"context"
	"fmt"

	"github.com/cexll/storefront-go/pkg/cart"
	"github.com/cexll/storefront-go/pkg/catalog"
	"github.com/cexll/storefront-go/pkg/config"
	"github.com/cexll/storefront-go/pkg/kvstore"
	"github.com/cexll/storefront-go/pkg/orders"
	"github.com/cexll/storefront-go/pkg/session"
	"github.com/cexll/storefront-go/pkg/telemetry"
	"github.com/cexll/storefront-go/pkg/transport"
)

// Client is the wired storefront core.
type Client struct {
	cfg config.Config

	Store     kvstore.Store
	Transport *transport.Client
	Session   *session.Manager
	Cart      *cart.Engine
	Catalog   *catalog.Engine
	Orders    *orders.Engine

	tel *telemetry.Manager
}

// Option customizes construction.
type Option func(*options)

type options struct {
	store      kvstore.Store
	httpOption []transport.Option
}

// WithStore overrides the storage backend chosen from the config.
func WithStore(store kvstore.Store) Option {
	return func(o *options) { o.store = store }
}

// WithTransportOptions forwards options to the transport client.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) { o.httpOption = append(o.httpOption, opts...) }
}

// New wires the core from cfg. Nothing is fetched yet; call Bootstrap to
// restore the session and load the first catalog page.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var tel *telemetry.Manager
	if cfg.Telemetry.Enabled {
		mgr, err := telemetry.NewManager(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Environment: cfg.Telemetry.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("client: telemetry: %w", err)
		}
		telemetry.SetDefault(mgr)
		tel = mgr
	}

	store := o.store
	if store == nil {
		if cfg.StorageDir != "" {
			fileStore, err := kvstore.NewFileStore(cfg.StorageDir)
			if err != nil {
				return nil, err
			}
			store = fileStore
		} else {
			store = kvstore.NewMemoryStore()
		}
	}

	tc, err := transport.NewClient(cfg.BaseURL, o.httpOption...)
	if err != nil {
		return nil, err
	}

	sess := session.NewManager(store, tc,
		session.WithIssuer(tc),
		session.WithTokenKey(cfg.TokenKey),
	)
	orderEngine := orders.NewEngine(tc, sess)
	cartEngine := cart.NewEngine(tc, sess,
		cart.WithCheckoutHook(orderEngine.Invalidate),
	)
	catalogEngine := catalog.NewEngine(tc,
		catalog.WithPageSize(cfg.PageSize),
		catalog.WithDebounce(cfg.Debounce.Std()),
	)

	return &Client{
		cfg:       cfg,
		Store:     store,
		Transport: tc,
		Session:   sess,
		Cart:      cartEngine,
		Catalog:   catalogEngine,
		Orders:    orderEngine,
		tel:       tel,
	}, nil
}

// Bootstrap restores the session from storage and loads the first catalog
// page. Cart and order reads stay deferred until the session settles, which
// this call guarantees before returning.
func (c *Client) Bootstrap(ctx context.Context) error {
	if err := c.Session.Bootstrap(); err != nil {
		return err
	}
	c.Catalog.Refresh(ctx)
	return nil
}

// WatchStorage reacts to external changes of the persisted token, the way a
// browser tab follows storage events from its siblings: the session is
// re-bootstrapped and per-user caches are marked stale. It is a no-op for
// storage backends without change notification.
func (c *Client) WatchStorage(ctx context.Context) error {
	watcher, ok := c.Store.(interface {
		Watch(ctx context.Context) (<-chan kvstore.Event, error)
	})
	if !ok {
		return nil
	}
	events, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for ev := range events {
			if ev.Key != c.cfg.TokenKey {
				continue
			}
			// Invalidate while the old identity is still known, then
			// re-derive the session from storage.
			c.Cart.Invalidate()
			_ = c.Session.Bootstrap()
			c.Cart.Invalidate()
		}
	}()
	return nil
}

// Close releases timers and flushes telemetry.
func (c *Client) Close(ctx context.Context) error {
	c.Catalog.Close()
	return c.tel.Shutdown(ctx)
}
