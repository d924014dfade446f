// Package memory provides an in-process Gateway used by tests and by the
// storefront when it runs without a database.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/schoolshop/internal/domain/gateway"
)

// ErrDuplicateID is returned when inserting a record whose id already exists.
var ErrDuplicateID = errors.New("duplicate id")

var _ gateway.Gateway = (*Gateway)(nil)

// Gateway keeps every collection in memory. Records are copied on the way in
// and out so callers never share state with the store.
type Gateway struct {
	mu   sync.RWMutex
	now  func() time.Time
	data map[gateway.Collection][]gateway.Record
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New returns an empty Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		now:  time.Now,
		data: make(map[gateway.Collection][]gateway.Record),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Select returns copies of the matching records.
func (g *Gateway) Select(ctx context.Context, c gateway.Collection, q gateway.Query) ([]gateway.Record, error) {
	if err := check(ctx, c); err != nil {
		return nil, gateway.Wrap("select", c, err)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []gateway.Record
	for _, rec := range g.data[c] {
		if matches(rec, q.Filter) {
			out = append(out, rec.Clone())
		}
	}
	if q.Order != nil {
		field, desc := q.Order.Field, q.Order.Desc
		slices.SortStableFunc(out, func(a, b gateway.Record) int {
			n := gateway.Compare(a[field], b[field])
			if desc {
				return -n
			}
			return n
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert stores a copy of rec. Products and orders get an id and created_at
// when the caller leaves them empty.
func (g *Gateway) Insert(ctx context.Context, c gateway.Collection, rec gateway.Record) (gateway.Record, error) {
	if err := check(ctx, c); err != nil {
		return nil, gateway.Wrap("insert", c, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	stored := rec.Clone()
	if c != gateway.SiteSettings {
		if !stored.Has("id") || stored.String("id") == "" {
			stored["id"] = uuid.New().String()
		}
		if !stored.Has("created_at") {
			stored["created_at"] = g.now().UTC()
		}
	}
	if stored.Has("id") {
		for _, existing := range g.data[c] {
			if gateway.Equal(existing["id"], stored["id"]) {
				return nil, gateway.Wrap("insert", c, ErrDuplicateID)
			}
		}
	}
	g.data[c] = append(g.data[c], stored)
	return stored.Clone(), nil
}

// Update applies patch to every matching record.
func (g *Gateway) Update(ctx context.Context, c gateway.Collection, patch gateway.Record, f gateway.Filter) error {
	if err := check(ctx, c); err != nil {
		return gateway.Wrap("update", c, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, rec := range g.data[c] {
		if !matches(rec, f) {
			continue
		}
		for k, v := range patch {
			rec[k] = v
		}
		n++
	}
	if n == 0 {
		return gateway.Wrap("update", c, gateway.ErrNotFound)
	}
	return nil
}

// Delete removes every matching record.
func (g *Gateway) Delete(ctx context.Context, c gateway.Collection, f gateway.Filter) error {
	if err := check(ctx, c); err != nil {
		return gateway.Wrap("delete", c, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	before := len(g.data[c])
	g.data[c] = slices.DeleteFunc(g.data[c], func(rec gateway.Record) bool {
		return matches(rec, f)
	})
	if len(g.data[c]) == before {
		return gateway.Wrap("delete", c, gateway.ErrNotFound)
	}
	return nil
}

// Len returns the number of records in c.
func (g *Gateway) Len(c gateway.Collection) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.data[c])
}

func check(ctx context.Context, c gateway.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Valid() {
		return errors.Errorf("unknown collection %q", c)
	}
	return nil
}

func matches(rec gateway.Record, f gateway.Filter) bool {
	for _, cond := range f {
		if !gateway.Equal(rec[cond.Field], cond.Value) {
			return false
		}
	}
	return true
}
