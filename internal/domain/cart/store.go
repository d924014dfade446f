package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Store is the single source of truth for a session's pending purchase.
// Operations apply in call order; each mutation is persisted before it
// becomes visible, so a failed save leaves the previous cart in place.
type Store struct {
	mu      sync.Mutex
	storage Storage
	lines   []Line
}

// New returns an empty store backed by storage.
func New(storage Storage) *Store {
	return &Store{storage: storage}
}

// Open returns a store initialized from storage, or an empty store when
// nothing has been saved yet.
func Open(ctx context.Context, storage Storage) (*Store, error) {
	data, err := storage.LoadCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	s := New(storage)
	if len(data) == 0 {
		return s, nil
	}
	lines, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	s.lines = lines
	return s, nil
}

// Add increments the product's line by qty, appending a new line when the
// product is not in the cart yet.
func (s *Store) Add(ctx context.Context, p Product, qty int) error {
	if qty < 1 {
		return &InvalidQuantityError{ProductID: p.ID, Quantity: qty}
	}
	if p.ID == "" || p.Price.IsNegative() {
		return fmt.Errorf("add %q: %w", p.ID, ErrInvalidProduct)
	}
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		if i := indexOf(lines, p.ID); i >= 0 {
			lines[i].Quantity += qty
			return lines, true
		}
		return append(lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  qty,
		}), true
	})
}

// Remove deletes the product's line. Removing an absent product is a no-op.
func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		i := indexOf(lines, productID)
		if i < 0 {
			return lines, false
		}
		return append(lines[:i], lines[i+1:]...), true
	})
}

// SetQuantity sets the line's quantity in place. A quantity of zero or less
// removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, productID)
	}
	var missing bool
	err := s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		i := indexOf(lines, productID)
		if i < 0 {
			missing = true
			return lines, false
		}
		if lines[i].Quantity == qty {
			return lines, false
		}
		lines[i].Quantity = qty
		return lines, true
	})
	if err != nil {
		return err
	}
	if missing {
		return fmt.Errorf("set quantity of %q: %w", productID, ErrNotInCart)
	}
	return nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		return nil, len(lines) > 0
	})
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// Snapshot returns a copy of the cart with its aggregates.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewSnapshot(s.lines)
}

// TotalItems returns the sum of line quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalItems(s.lines)
}

// TotalPrice returns the sum of line subtotals.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalPrice(s.lines)
}

// Empty reports whether the cart has no lines.
func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *Store) mutate(ctx context.Context, fn func([]Line) ([]Line, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(cloneLines(s.lines))
	if !changed {
		return nil
	}
	if err := s.storage.SaveCart(ctx, Encode(next)); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	s.lines = next
	return nil
}
