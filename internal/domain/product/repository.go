package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/schoolshop/internal/domain/gateway"
)

var _ Repository = (*GatewayRepository)(nil)

// GatewayRepository implements Repository on top of the products collection.
type GatewayRepository struct {
	gw gateway.Gateway
}

// NewGatewayRepository returns a GatewayRepository that uses gw.
func NewGatewayRepository(gw gateway.Gateway) *GatewayRepository {
	return &GatewayRepository{gw: gw}
}

// List returns products ordered by name.
func (r *GatewayRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	q := gateway.Query{
		Order: &gateway.Sort{Field: "name"},
		Limit: f.Limit,
	}
	if f.Category != "" && f.Category != AllCategories {
		q.Filter = gateway.Eq("category", f.Category)
	}
	recs, err := r.gw.Select(ctx, gateway.Products, q)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	out := make([]Product, 0, len(recs))
	for _, rec := range recs {
		p, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// GetByID returns a single product.
func (r *GatewayRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	recs, err := r.gw.Select(ctx, gateway.Products, gateway.Query{
		Filter: gateway.Eq("id", id),
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	p, err := fromRecord(recs[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p, assigning an ID when it has none, and fills CreatedAt
// from the stored record.
func (r *GatewayRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	rec := toRecord(p)
	rec["id"] = p.ID
	stored, err := r.gw.Insert(ctx, gateway.Products, rec)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	created, err := fromRecord(stored)
	if err != nil {
		return err
	}
	p.ID = created.ID
	p.CreatedAt = created.CreatedAt
	return nil
}

// Update overwrites the editable fields of p.
func (r *GatewayRepository) Update(ctx context.Context, p *Product) error {
	err := r.gw.Update(ctx, gateway.Products, toRecord(p), gateway.Eq("id", p.ID))
	if errors.Is(err, gateway.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes the product.
func (r *GatewayRepository) Delete(ctx context.Context, id string) error {
	err := r.gw.Delete(ctx, gateway.Products, gateway.Eq("id", id))
	if errors.Is(err, gateway.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	return nil
}

func toRecord(p *Product) gateway.Record {
	rec := gateway.Record{
		"name":        p.Name,
		"description": nil,
		"price":       p.Price,
		"category":    p.Category,
		"image":       p.Image,
		"stock":       p.Stock,
	}
	if p.Description != "" {
		rec["description"] = p.Description
	}
	return rec
}

func fromRecord(rec gateway.Record) (Product, error) {
	p := Product{
		ID:          rec.String("id"),
		Name:        rec.String("name"),
		Description: rec.String("description"),
		Category:    rec.String("category"),
		Image:       rec.String("image"),
	}
	var err error
	if p.Price, err = rec.Decimal("price"); err != nil {
		return Product{}, fmt.Errorf("product %q: %w", p.ID, err)
	}
	if p.Stock, err = rec.Int("stock"); err != nil {
		return Product{}, fmt.Errorf("product %q: %w", p.ID, err)
	}
	if p.CreatedAt, err = rec.Time("created_at"); err != nil {
		return Product{}, fmt.Errorf("product %q: %w", p.ID, err)
	}
	return p, nil
}
