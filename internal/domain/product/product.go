// Package product holds the storefront catalog: browsing for shoppers and
// product management for administrators.
package product

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/form"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// AllCategories is the category filter value that disables filtering.
const AllCategories = "all"

// FeaturedLimit is the number of products shown on the landing page.
const FeaturedLimit = 4

// Categories lists the categories offered in the admin form.
var Categories = []string{
	"Writing",
	"Mathematics",
	"Electronics",
	"Stationery",
	"Art Supplies",
	"Books",
	"Other",
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
	Stock       int
	CreatedAt   time.Time
}

// CartProduct returns the subset of p the cart stores.
func (p Product) CartProduct() cart.Product {
	return cart.Product{ID: p.ID, Name: p.Name, Price: p.Price}
}

// Filter narrows a catalog listing.
type Filter struct {
	Category string
	Limit    int
}

// Draft is the raw admin form input for a product.
type Draft struct {
	Name        string
	Description string
	Price       string
	Category    string
	Image       string
	Stock       string
}

// FromProduct fills a draft from an existing product, as the edit form does.
func FromProduct(p Product) Draft {
	return Draft{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Category:    p.Category,
		Image:       p.Image,
		Stock:       strconv.Itoa(p.Stock),
	}
}

// Validate parses the draft. It returns a *form.ValidationError naming every
// offending field.
func (d Draft) Validate() (Product, error) {
	var c form.Checker
	c.Required("name", d.Name)
	c.Required("price", d.Price)
	c.Required("category", d.Category)
	c.Required("image", d.Image)

	p := Product{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Image:       strings.TrimSpace(d.Image),
	}
	if !c.Has("price") {
		price, err := decimal.NewFromString(strings.TrimSpace(d.Price))
		switch {
		case err != nil:
			c.Add("price", "must be a number")
		case price.IsNegative():
			c.Add("price", "must not be negative")
		default:
			p.Price = price
		}
	}
	if s := strings.TrimSpace(d.Stock); s != "" {
		stock, err := strconv.Atoi(s)
		switch {
		case err != nil:
			c.Add("stock", "must be a whole number")
		case stock < 0:
			c.Add("stock", "must not be negative")
		default:
			p.Stock = stock
		}
	}
	if err := c.Err(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
