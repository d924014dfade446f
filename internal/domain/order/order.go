package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/schoolshop/internal/domain/cart"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled}

// ErrInvalidStatus is returned for status values outside Statuses.
var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Customer holds the delivery details entered at checkout.
type Customer struct {
	Name    string
	Mobile  string
	Address string
}

// Item is a snapshot of one cart line at submission time.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal returns price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a recorded checkout. Only Status changes after creation.
type Order struct {
	ID          string
	Customer    Customer
	Items       []Item
	TotalAmount decimal.Decimal
	Status      Status
	CreatedAt   time.Time
}

// FromSnapshot builds a pending order from a cart snapshot. The total is the
// snapshot's own total, so the recorded amount matches what the cart showed.
func FromSnapshot(c Customer, snap cart.Snapshot) *Order {
	items := make([]Item, len(snap.Lines))
	for i, l := range snap.Lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
		}
	}
	return &Order{
		Customer:    c,
		Items:       items,
		TotalAmount: snap.TotalPrice,
		Status:      StatusPending,
	}
}

// ItemsTotal returns the sum of the order's item subtotals.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
