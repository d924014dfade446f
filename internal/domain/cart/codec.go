package cart

import (
	"fmt"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// codecVersion is bumped when the stored layout changes.
const codecVersion = 1

// Encode serializes lines for session storage. Prices are written as
// strings so they round-trip exactly.
func Encode(lines []Line) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("v")
	e.Int(codecVersion)
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.ProductID)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("price")
		e.Str(l.Price.String())
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

// Decode parses a stored cart. It rejects snapshots that break the cart
// invariants (duplicate products, non-positive quantities).
func Decode(data []byte) ([]Line, error) {
	var (
		lines   []Line
		version int
	)
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "v":
			v, err := d.Int()
			if err != nil {
				return err
			}
			version = v
			return nil
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				lines = append(lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	if version != codecVersion {
		return nil, fmt.Errorf("unsupported cart version %d", version)
	}

	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, dup := seen[l.ProductID]; dup {
			return nil, fmt.Errorf("duplicate line for product %q", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		if l.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: l.ProductID, Quantity: l.Quantity}
		}
	}
	return lines, nil
}

func decodeLine(d *jx.Decoder) (Line, error) {
	var l Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "price":
			l.Price, err = DecodeDecimal(d)
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

// DecodeDecimal reads a decimal written either as a JSON string or number.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, fmt.Errorf("decimal: unexpected %s", d.Next())
	}
}
