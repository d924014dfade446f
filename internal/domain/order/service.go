package order

import (
	"context"
	"fmt"
)

// Service exposes order administration: listing, lookup and status changes.
// Orders are created only by the checkout orchestrator.
type Service struct {
	orders Repository
}

// NewService creates an order Service backed by orders.
func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateStatus moves the order to status. Any valid status may follow any
// other.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	st, err := ParseStatus(status)
	if err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(ctx, id, st); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
