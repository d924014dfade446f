// Package cart implements the session shopping cart: one line per product,
// kept in the order products were first added, persisted after every
// mutation so it survives reloads within the same session.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when an explicit increment is not positive.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrNotInCart is returned when updating a product that has no line.
	ErrNotInCart = errors.New("product not in cart")
	// ErrInvalidProduct is returned for products without an ID or with a negative price.
	ErrInvalidProduct = errors.New("invalid product")
)

// InvalidQuantityError carries the rejected quantity. It matches
// ErrInvalidQuantity with errors.Is.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s, got %d", e.ProductID, e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error {
	return ErrInvalidQuantity
}

// Product is the part of a catalog product the cart needs.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Line is one product's quantity entry.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal returns price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TotalItems returns the sum of line quantities.
func TotalItems(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice returns the sum of line subtotals. Every displayed or recorded
// total is computed here.
func TotalPrice(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Snapshot is an immutable copy of the cart with its aggregates computed
// once from the copied lines.
type Snapshot struct {
	Lines      []Line
	TotalItems int
	TotalPrice decimal.Decimal
}

// NewSnapshot copies lines and computes the aggregates.
func NewSnapshot(lines []Line) Snapshot {
	cp := cloneLines(lines)
	return Snapshot{
		Lines:      cp,
		TotalItems: TotalItems(cp),
		TotalPrice: TotalPrice(cp),
	}
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Storage persists the serialized cart of one session.
type Storage interface {
	// LoadCart returns the stored snapshot, or nil when nothing is stored.
	LoadCart(ctx context.Context) ([]byte, error)
	SaveCart(ctx context.Context, data []byte) error
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

func indexOf(lines []Line, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
