package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/gateway"
)

var _ Repository = (*GatewayRepository)(nil)

// GatewayRepository implements Repository on top of the orders collection.
type GatewayRepository struct {
	gw gateway.Gateway
}

// NewGatewayRepository returns a GatewayRepository that uses gw.
func NewGatewayRepository(gw gateway.Gateway) *GatewayRepository {
	return &GatewayRepository{gw: gw}
}

// Create inserts the order with a single insert request. ID and CreatedAt are
// filled from the stored record.
func (r *GatewayRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	rec, err := r.gw.Insert(ctx, gateway.Orders, gateway.Record{
		"id":               o.ID,
		"customer_name":    o.Customer.Name,
		"customer_mobile":  o.Customer.Mobile,
		"customer_address": o.Customer.Address,
		"items":            EncodeItems(o.Items),
		"total_amount":     o.TotalAmount,
		"status":           string(o.Status),
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	if created, err := rec.Time("created_at"); err == nil && !created.IsZero() {
		o.CreatedAt = created
	} else {
		o.CreatedAt = time.Now().UTC()
	}
	return nil
}

// List returns all orders, newest first.
func (r *GatewayRepository) List(ctx context.Context) ([]Order, error) {
	recs, err := r.gw.Select(ctx, gateway.Orders, gateway.Query{
		Order: &gateway.Sort{Field: "created_at", Desc: true},
	})
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	out := make([]Order, 0, len(recs))
	for _, rec := range recs {
		o, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Get returns a single order.
func (r *GatewayRepository) Get(ctx context.Context, id string) (*Order, error) {
	recs, err := r.gw.Select(ctx, gateway.Orders, gateway.Query{
		Filter: gateway.Eq("id", id),
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	o, err := fromRecord(recs[0])
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus sets the order's status.
func (r *GatewayRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	err := r.gw.Update(ctx, gateway.Orders, gateway.Record{"status": string(status)}, gateway.Eq("id", id))
	if errors.Is(err, gateway.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	return nil
}

func fromRecord(rec gateway.Record) (Order, error) {
	o := Order{
		ID: rec.String("id"),
		Customer: Customer{
			Name:    rec.String("customer_name"),
			Mobile:  rec.String("customer_mobile"),
			Address: rec.String("customer_address"),
		},
		Status: Status(rec.String("status")),
	}
	var err error
	if o.TotalAmount, err = rec.Decimal("total_amount"); err != nil {
		return Order{}, fmt.Errorf("order %q: %w", o.ID, err)
	}
	if o.CreatedAt, err = rec.Time("created_at"); err != nil {
		return Order{}, fmt.Errorf("order %q: %w", o.ID, err)
	}
	if o.Items, err = DecodeItems(rec.Bytes("items")); err != nil {
		return Order{}, fmt.Errorf("order %q items: %w", o.ID, err)
	}
	return o, nil
}

// EncodeItems serializes items as a JSON array of {id, name, price, quantity}.
func EncodeItems(items []Item) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		e.Str(it.Price.String())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// DecodeItems parses the items document written by EncodeItems. Numeric
// prices are accepted as well.
func DecodeItems(data []byte) ([]Item, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []Item
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var it Item
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				it.ProductID, err = decodeID(d)
			case "name":
				it.Name, err = d.Str()
			case "price":
				it.Price, err = cart.DecodeDecimal(d)
			case "quantity":
				it.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// decodeID accepts string and integer identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return d.Str()
}
