package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/form"
	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/storage/memory"
)

type memStorage struct {
	mu   sync.Mutex
	data []byte
}

func (m *memStorage) LoadCart(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memStorage) SaveCart(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// flakyGateway fails inserts while err is set.
type flakyGateway struct {
	gateway.Gateway
	mu      sync.Mutex
	err     error
	inserts int
}

func (g *flakyGateway) Insert(ctx context.Context, c gateway.Collection, rec gateway.Record) (gateway.Record, error) {
	g.mu.Lock()
	g.inserts++
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return nil, gateway.Wrap("insert", c, err)
	}
	return g.Gateway.Insert(ctx, c, rec)
}

// blockingOrders holds Create until release is closed.
type blockingOrders struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	created []*order.Order
	err     error
}

func newBlockingOrders() *blockingOrders {
	return &blockingOrders{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingOrders) Create(_ context.Context, o *order.Order) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	o.ID = "order-1"
	b.created = append(b.created, o)
	return nil
}

var pencilKit = cart.Product{ID: "p1", Name: "Pencil Kit", Price: decimal.NewFromInt(299)}

var validForm = Form{Name: "A", Mobile: "9876543210", Address: "X, Chinchwad"}

type fixture struct {
	cart   *cart.Store
	gw     *flakyGateway
	repo   *order.GatewayRepository
	orch   *Orchestrator
	states []State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cart: cart.New(&memStorage{}),
		gw:   &flakyGateway{Gateway: memory.New()},
	}
	f.repo = order.NewGatewayRepository(f.gw)
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	f.orch = New(f.cart, f.repo,
		WithMetrics(metrics),
		WithTransitionHook(func(_, to State) { f.states = append(f.states, to) }),
	)
	return f
}

func TestSubmit_PlacesOrderAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.cart.Add(ctx, pencilKit, 2))

	res, err := f.orch.Submit(ctx, validForm)
	require.NoError(t, err)
	assert.Equal(t, HomePath, res.Redirect)
	assert.Equal(t, []State{Validating, Submitting, Succeeded}, f.states)

	orders, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	got := orders[0]
	assert.Equal(t, order.StatusPending, got.Status)
	assert.True(t, decimal.NewFromInt(598).Equal(got.TotalAmount))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Pencil Kit", got.Items[0].Name)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, order.Customer{Name: "A", Mobile: "9876543210", Address: "X, Chinchwad"}, got.Customer)

	assert.True(t, f.cart.Empty())
	view := f.orch.View()
	assert.Equal(t, Succeeded, view.State)
	assert.Equal(t, Form{}, view.Form)
	assert.False(t, view.EmptyCart())
	require.NotNil(t, view.LastOrder)
	assert.Equal(t, res.Order.ID, view.LastOrder.ID)
}

func TestSubmit_EmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orch.Submit(ctx, validForm)
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.gw.inserts)
	assert.Equal(t, Idle, f.orch.State())
	assert.True(t, f.orch.View().EmptyCart())
}

func TestSubmit_ValidationError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.cart.Add(ctx, pencilKit, 1))

	bad := Form{Name: "A", Mobile: "  "}
	_, err := f.orch.Submit(ctx, bad)
	var vErr *form.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "mobile")
	assert.Contains(t, vErr.Fields, "address")
	assert.NotContains(t, vErr.Fields, "name")

	assert.Zero(t, f.gw.inserts)
	assert.Equal(t, []State{Validating, Idle}, f.states)
	view := f.orch.View()
	assert.Equal(t, bad, view.Form, "form keeps what was typed")
	assert.Equal(t, 1, view.Cart.TotalItems)
}

func TestSubmit_GatewayFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.cart.Add(ctx, pencilKit, 2))

	f.gw.err = errors.New("connection reset")
	_, err := f.orch.Submit(ctx, validForm)
	require.Error(t, err)
	assert.True(t, gateway.IsGatewayError(err))
	assert.Equal(t, []State{Validating, Submitting, Failed, Idle}, f.states)

	lines := f.cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	view := f.orch.View()
	assert.Equal(t, validForm, view.Form)
	require.Error(t, view.Err)

	f.gw.err = nil
	_, err = f.orch.Submit(ctx, validForm)
	require.NoError(t, err)
	assert.True(t, f.cart.Empty())
	assert.Equal(t, 2, f.gw.inserts)
}

func TestSubmit_DoubleSubmitProducesOneOrder(t *testing.T) {
	ctx := context.Background()
	c := cart.New(&memStorage{})
	require.NoError(t, c.Add(ctx, pencilKit, 2))
	orders := newBlockingOrders()
	orch := New(c, orders)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(ctx, validForm)
		done <- err
	}()
	<-orders.started
	assert.Equal(t, Submitting, orch.State())

	_, err := orch.Submit(ctx, validForm)
	require.ErrorIs(t, err, ErrSubmissionInFlight)

	close(orders.release)
	require.NoError(t, <-done)
	assert.Len(t, orders.created, 1)
	assert.True(t, c.Empty())
}

func TestSubmit_SurvivesCancelledRequest(t *testing.T) {
	c := cart.New(&memStorage{})
	require.NoError(t, c.Add(context.Background(), pencilKit, 1))
	orders := newBlockingOrders()
	orch := New(c, orders)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(ctx, validForm)
		done <- err
	}()
	<-orders.started
	cancel()
	close(orders.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not complete")
	}
	assert.Len(t, orders.created, 1)
}

func TestSubmit_DetachedCompletionLeavesCart(t *testing.T) {
	ctx := context.Background()
	c := cart.New(&memStorage{})
	require.NoError(t, c.Add(ctx, pencilKit, 2))
	orders := newBlockingOrders()
	orch := New(c, orders)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(ctx, validForm)
		done <- err
	}()
	<-orders.started
	orch.Detach()
	close(orders.release)
	require.NoError(t, <-done)

	assert.Len(t, orders.created, 1, "the order is still recorded")
	assert.False(t, c.Empty())

	_, err := orch.Submit(ctx, validForm)
	require.ErrorIs(t, err, ErrDetached)
}

func TestSubmit_AfterSuccessNeedsNewCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.cart.Add(ctx, pencilKit, 1))
	_, err := f.orch.Submit(ctx, validForm)
	require.NoError(t, err)

	_, err = f.orch.Submit(ctx, validForm)
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 1, f.gw.inserts)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "submitting", Submitting.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(42)", State(42).String())
}
