// Package gateway defines the data access contract shared by every storefront
// component. Catalog, checkout, order administration and site settings all
// talk to the backing store through a single Gateway so they can be tested
// against an in-memory implementation.
package gateway

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Collection names a record collection in the backing store.
type Collection string

const (
	Products     Collection = "products"
	Orders       Collection = "orders"
	SiteSettings Collection = "site_settings"
)

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case Products, Orders, SiteSettings:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned when an update or delete matches no record.
var ErrNotFound = errors.New("record not found")

// Condition is a single equality predicate.
type Condition struct {
	Field string
	Value any
}

// Filter is a conjunction of equality conditions. An empty filter matches
// every record.
type Filter []Condition

// Eq returns a filter matching records whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{{Field: field, Value: value}}
}

// And appends an equality condition to the filter.
func (f Filter) And(field string, value any) Filter {
	out := make(Filter, len(f), len(f)+1)
	copy(out, f)
	return append(out, Condition{Field: field, Value: value})
}

// Sort orders a selection by a single field.
type Sort struct {
	Field string
	Desc  bool
}

// Query describes a selection. Zero Limit means no limit.
type Query struct {
	Filter Filter
	Order  *Sort
	Limit  int
}

// Gateway issues read/insert/update/delete requests against the backing
// store. Implementations must wrap every failure in *Error.
type Gateway interface {
	Select(ctx context.Context, c Collection, q Query) ([]Record, error)
	Insert(ctx context.Context, c Collection, rec Record) (Record, error)
	Update(ctx context.Context, c Collection, patch Record, f Filter) error
	Delete(ctx context.Context, c Collection, f Filter) error
}

// Error is the failure returned by every Gateway operation. It keeps the
// operation and collection for logging; callers match on the cause with
// errors.Is (for example ErrNotFound).
type Error struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in *Error, or nil when err is nil.
func Wrap(op string, c Collection, err error) error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	return &Error{Op: op, Collection: c, Err: err}
}

// IsGatewayError reports whether err originated in a Gateway.
func IsGatewayError(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr)
}
