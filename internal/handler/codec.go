package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/checkout"
	"github.com/xenking/schoolshop/internal/domain/form"
	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/settings"
	"github.com/xenking/schoolshop/internal/storefront"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is required")

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object body field by field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	return jx.DecodeBytes(data).Obj(fn)
}

// decodeText reads a string, number or null as text. Admin forms post prices
// and stock either way.
func decodeText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

func encodeDecimalField(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	e.Float64(v.InexactFloat64())
}

func encodeProduct(e *jx.Encoder, p product.Product, imageURL func(string) string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	if p.Description == "" {
		e.Null()
	} else {
		e.Str(p.Description)
	}
	encodeDecimalField(e, "price", p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("image")
	e.Str(imageURL(p.Image))
	e.FieldStart("stock")
	e.Int(p.Stock)
	if !p.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(formatTime(p.CreatedAt))
	}
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, s cart.Snapshot) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range s.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("name")
		e.Str(l.Name)
		encodeDecimalField(e, "price", l.Price)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		encodeDecimalField(e, "subtotal", l.Subtotal())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_items")
	e.Int(s.TotalItems)
	encodeDecimalField(e, "total_price", s.TotalPrice)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customer_name")
	e.Str(o.Customer.Name)
	e.FieldStart("customer_mobile")
	e.Str(o.Customer.Mobile)
	e.FieldStart("customer_address")
	e.Str(o.Customer.Address)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		encodeDecimalField(e, "price", it.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	encodeDecimalField(e, "total_amount", o.TotalAmount)
	e.FieldStart("status")
	e.Str(string(o.Status))
	if !o.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(formatTime(o.CreatedAt))
	}
	e.ObjEnd()
}

func encodeSettings(e *jx.Encoder, s settings.Settings) {
	e.ObjStart()
	for _, f := range settings.Fields {
		e.FieldStart(string(f))
		e.Str(s.Value(f))
	}
	if !s.UpdatedAt.IsZero() {
		e.FieldStart("updated_at")
		e.Str(formatTime(s.UpdatedAt))
	}
	e.ObjEnd()
}

func encodeSession(e *jx.Encoder, v *storefront.Visitor) {
	e.ObjStart()
	e.FieldStart("admin_authenticated")
	e.Bool(v.Session.AdminAuthenticated())
	e.FieldStart("edit_mode")
	e.Bool(v.Session.EditModeEnabled())
	e.FieldStart("cart_items")
	e.Int(v.Cart.TotalItems())
	e.ObjEnd()
}

func encodeEditor(e *jx.Encoder, v settings.EditorView) {
	e.ObjStart()
	e.FieldStart("field")
	e.Str(string(v.Field))
	e.FieldStart("state")
	e.Str(v.State.String())
	if v.State == settings.Editing {
		e.FieldStart("draft")
		e.Str(v.Draft)
	}
	e.FieldStart("saving")
	e.Bool(v.Saving)
	if v.Err != nil {
		e.FieldStart("error")
		e.Str(v.Err.Error())
	}
	e.ObjEnd()
}

// checkoutView names what the checkout page shows.
func checkoutView(v checkout.View) string {
	switch {
	case v.State == checkout.Succeeded:
		return "success"
	case v.EmptyCart():
		return "empty_cart"
	default:
		return "form"
	}
}

func encodeCheckout(e *jx.Encoder, v checkout.View) {
	e.ObjStart()
	e.FieldStart("state")
	e.Str(v.State.String())
	e.FieldStart("view")
	e.Str(checkoutView(v))
	e.FieldStart("form")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(v.Form.Name)
	e.FieldStart("mobile")
	e.Str(v.Form.Mobile)
	e.FieldStart("address")
	e.Str(v.Form.Address)
	e.ObjEnd()
	e.FieldStart("cart")
	encodeCart(e, v.Cart)
	if v.Err != nil {
		e.FieldStart("error")
		encodeErrorDetail(e, v.Err)
	}
	if v.LastOrder != nil {
		e.FieldStart("last_order")
		encodeOrder(e, *v.LastOrder)
	}
	e.ObjEnd()
}

// encodeErrorDetail writes {"message":...,"fields":{...}} for a retained
// form error.
func encodeErrorDetail(e *jx.Encoder, err error) {
	e.ObjStart()
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		e.FieldStart("message")
		e.Str("please fill in all required fields")
		encodeFields(e, verr.Fields)
	} else {
		e.FieldStart("message")
		e.Str(err.Error())
	}
	e.ObjEnd()
}

func encodeFields(e *jx.Encoder, fields map[string]string) {
	e.FieldStart("fields")
	e.ObjStart()
	for _, name := range sortedKeys(fields) {
		e.FieldStart(name)
		e.Str(fields[name])
	}
	e.ObjEnd()
}
