// Package storefront keeps the live per-session state of every visitor.
package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/checkout"
	"github.com/xenking/schoolshop/internal/domain/session"
	"github.com/xenking/schoolshop/internal/domain/settings"
)

// SessionStore is the session storage the registry manages.
type SessionStore interface {
	session.Store
	Touch(ctx context.Context, sessionID string) error
	Sweep(ctx context.Context, idle time.Duration) (int64, error)
}

// Visitor bundles everything one browser session owns.
type Visitor struct {
	Session  *session.Session
	Cart     *cart.Store
	Checkout *checkout.Orchestrator
	Editors  *settings.Editors

	mu        sync.Mutex
	lastSeen  time.Time
	lastTouch time.Time
}

func (v *Visitor) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Config configures a Registry.
type Config struct {
	// IdleTimeout evicts visitors and their stored values after this much
	// inactivity.
	IdleTimeout time.Duration
	// CheckoutOptions are applied to every orchestrator.
	CheckoutOptions []checkout.Option
}

// Registry maps session IDs to live visitors.
type Registry struct {
	store  SessionStore
	orders checkout.Orders
	cfg    Config
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
}

// NewRegistry creates an empty registry.
func NewRegistry(store SessionStore, orders checkout.Orders, cfg Config) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Registry{
		store:    store,
		orders:   orders,
		cfg:      cfg,
		now:      time.Now,
		visitors: make(map[string]*Visitor),
	}
}

// Visitor returns the live visitor for id, restoring it from session storage
// on first access.
func (r *Registry) Visitor(ctx context.Context, id string) (*Visitor, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.visitors[id]; ok {
		v.mu.Lock()
		v.lastSeen = now
		touch := now.Sub(v.lastTouch) > r.cfg.IdleTimeout/4
		if touch {
			v.lastTouch = now
		}
		v.mu.Unlock()
		if touch {
			r.touch(ctx, id)
		}
		return v, nil
	}

	sess, err := session.Open(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	c, err := cart.Open(ctx, sess)
	if err != nil {
		zctx.From(ctx).Warn("Discarding unreadable stored cart",
			zap.String("session_id", id),
			zap.Error(err),
		)
		c = cart.New(sess)
	}
	v := &Visitor{
		Session:   sess,
		Cart:      c,
		Checkout:  checkout.New(c, r.orders, r.cfg.CheckoutOptions...),
		Editors:   settings.NewEditors(),
		lastSeen:  now,
		lastTouch: now,
	}
	r.visitors[id] = v
	r.touch(ctx, id)
	return v, nil
}

// End drops the visitor and everything stored for the session.
func (r *Registry) End(ctx context.Context, id string) error {
	r.mu.Lock()
	v, ok := r.visitors[id]
	delete(r.visitors, id)
	r.mu.Unlock()

	if !ok {
		return r.store.Drop(ctx, id)
	}
	v.Checkout.Detach()
	v.Editors.CancelAll()
	return v.Session.End(ctx)
}

// Len returns the number of live visitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Sweep evicts idle visitors and deletes stale session storage. Evicted
// orchestrators are detached so late checkout responses leave newer state
// alone. Kept visitors with activity since their last touch are touched
// first, so storage of a live session is never swept.
func (r *Registry) Sweep(ctx context.Context) (evicted int, err error) {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	var pending []string
	r.mu.Lock()
	for id, v := range r.visitors {
		if v.idleSince().Before(cutoff) {
			v.Checkout.Detach()
			v.Editors.CancelAll()
			delete(r.visitors, id)
			evicted++
			continue
		}
		v.mu.Lock()
		if v.lastSeen.After(v.lastTouch) {
			v.lastTouch = v.lastSeen
			pending = append(pending, id)
		}
		v.mu.Unlock()
	}
	r.mu.Unlock()

	for _, id := range pending {
		if err := r.store.Touch(ctx, id); err != nil {
			return evicted, err
		}
	}
	if _, err := r.store.Sweep(ctx, r.cfg.IdleTimeout); err != nil {
		return evicted, err
	}
	return evicted, nil
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				lg.Warn("Session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Debug("Evicted idle sessions", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		}
	}
}

func (r *Registry) touch(ctx context.Context, id string) {
	if err := r.store.Touch(ctx, id); err != nil {
		zctx.From(ctx).Warn("Touch session", zap.String("session_id", id), zap.Error(err))
	}
}
