// Package checkout turns a session's cart and the delivery form into exactly
// one recorded order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/form"
	"github.com/xenking/schoolshop/internal/domain/order"
)

// HomePath is where the visitor is sent after a successful checkout.
const HomePath = "/"

var (
	// ErrEmptyCart is returned when submitting with nothing in the cart. No
	// order is recorded.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSubmissionInFlight is returned while a previous submission awaits
	// its response.
	ErrSubmissionInFlight = errors.New("checkout submission already in progress")
	// ErrDetached is returned after the orchestrator's session has gone away.
	ErrDetached = errors.New("checkout detached from session")
)

// State is the orchestrator's position in the checkout flow.
type State int

const (
	Idle State = iota
	Validating
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Form is the delivery details entered by the visitor.
type Form struct {
	Name    string
	Mobile  string
	Address string
}

// Validate requires every field to be non-blank. The mobile number format is
// not checked.
func (f Form) Validate() error {
	var c form.Checker
	c.Required("name", f.Name)
	c.Required("mobile", f.Mobile)
	c.Required("address", f.Address)
	return c.Err()
}

func (f Form) customer() order.Customer {
	return order.Customer{
		Name:    strings.TrimSpace(f.Name),
		Mobile:  strings.TrimSpace(f.Mobile),
		Address: strings.TrimSpace(f.Address),
	}
}

// Cart is the part of the cart store checkout uses.
type Cart interface {
	Snapshot() cart.Snapshot
	Clear(ctx context.Context) error
}

// Orders records orders.
type Orders interface {
	Create(ctx context.Context, o *order.Order) error
}

// Result describes a successful checkout.
type Result struct {
	Order    *order.Order
	Redirect string
}

// View is a point-in-time copy of the orchestrator for rendering.
type View struct {
	State State
	Form  Form
	Cart  cart.Snapshot
	// Err is the last validation or submission failure, cleared on the next
	// attempt.
	Err       error
	LastOrder *order.Order
}

// EmptyCart reports whether the checkout page should show the empty-cart
// view instead of the form.
func (v View) EmptyCart() bool {
	return v.Cart.Empty() && v.State != Succeeded
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records checkout outcomes.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTransitionHook calls fn on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// Orchestrator runs the checkout flow for one session. At most one
// submission is in flight at a time.
type Orchestrator struct {
	cart         Cart
	orders       Orders
	metrics      *Metrics
	onTransition func(from, to State)

	mu        sync.Mutex
	state     State
	form      Form
	lastErr   error
	lastOrder *order.Order
	detached  bool
}

// New returns an orchestrator in Idle state.
func New(c Cart, orders Orders, opts ...Option) *Orchestrator {
	o := &Orchestrator{cart: c, orders: orders}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// View returns the current state together with a cart snapshot.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		State:     o.state,
		Form:      o.form,
		Cart:      o.cart.Snapshot(),
		Err:       o.lastErr,
		LastOrder: o.lastOrder,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetForm stores the form as typed so far.
func (o *Orchestrator) SetForm(f Form) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.form = f
}

// Detach marks the orchestrator as no longer owned by a live session. A
// submission already in flight still completes, but its outcome no longer
// touches the cart or form.
func (o *Orchestrator) Detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detached = true
}

// Submit validates f and records one order built from the current cart. On
// success the cart is cleared, the form is reset and the result carries the
// redirect target. On failure the cart and form are kept and the
// orchestrator is ready for another attempt.
func (o *Orchestrator) Submit(ctx context.Context, f Form) (*Result, error) {
	lg := zctx.From(ctx)

	o.mu.Lock()
	switch {
	case o.detached:
		o.mu.Unlock()
		return nil, ErrDetached
	case o.state == Validating || o.state == Submitting:
		o.mu.Unlock()
		o.metrics.rejected(ctx)
		return nil, ErrSubmissionInFlight
	}
	o.form = f
	o.lastErr = nil

	snap := o.cart.Snapshot()
	if snap.Empty() {
		o.transition(Idle)
		o.mu.Unlock()
		return nil, ErrEmptyCart
	}

	o.transition(Validating)
	if err := f.Validate(); err != nil {
		o.lastErr = err
		o.transition(Idle)
		o.mu.Unlock()
		return nil, err
	}

	ord := order.FromSnapshot(f.customer(), snap)
	o.transition(Submitting)
	o.mu.Unlock()

	// The order is not retractable once sent, so the insert outlives the
	// request that triggered it.
	insertCtx := context.WithoutCancel(ctx)
	err := o.orders.Create(insertCtx, ord)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.detached {
		lg.Info("Checkout completed after session ended",
			zap.String("order_id", ord.ID),
			zap.Error(err),
		)
		if err != nil {
			return nil, fmt.Errorf("submit order: %w", err)
		}
		return &Result{Order: ord, Redirect: HomePath}, nil
	}
	if err != nil {
		o.lastErr = err
		o.transition(Failed)
		o.transition(Idle)
		o.metrics.failed(ctx)
		lg.Warn("Checkout failed", zap.Error(err))
		return nil, fmt.Errorf("submit order: %w", err)
	}

	if err := o.cart.Clear(insertCtx); err != nil {
		lg.Error("Clear cart after checkout", zap.String("order_id", ord.ID), zap.Error(err))
	}
	o.form = Form{}
	o.lastOrder = ord
	o.transition(Succeeded)
	o.metrics.succeeded(ctx, ord)
	lg.Info("Order placed",
		zap.String("order_id", ord.ID),
		zap.Int("items", snap.TotalItems),
		zap.String("total", ord.TotalAmount.StringFixed(2)),
	)
	return &Result{Order: ord, Redirect: HomePath}, nil
}

// transition must be called with mu held.
func (o *Orchestrator) transition(to State) {
	from := o.state
	o.state = to
	if o.onTransition != nil && from != to {
		o.onTransition(from, to)
	}
}
