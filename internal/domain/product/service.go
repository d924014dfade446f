package product

import (
	"context"
	"fmt"
)

// Service is the catalog: read access for shoppers and validated writes for
// administrators.
type Service struct {
	products Repository
}

// NewService creates a catalog Service backed by products.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// List returns products ordered by name. An empty or "all" category lists
// every product.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	products, err := s.products.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Featured returns the products shown on the landing page.
func (s *Service) Featured(ctx context.Context) ([]Product, error) {
	return s.List(ctx, Filter{Limit: FeaturedLimit})
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Create validates d and adds the product to the catalog.
func (s *Service) Create(ctx context.Context, d Draft) (*Product, error) {
	p, err := d.Validate()
	if err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, &p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// Update validates d, replaces the product's editable fields and returns the
// stored product.
func (s *Service) Update(ctx context.Context, id string, d Draft) (*Product, error) {
	p, err := d.Validate()
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.products.Update(ctx, &p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	updated, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// Delete removes the product from the catalog. Carts that already hold it
// keep their line.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
