package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/schoolshop/internal/domain/checkout"
)

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	_, v := visitorFrom(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCheckout(e, v.Checkout.View()) })
}

// submitCheckout places the order. Failures keep the cart and the entered
// form so the visitor can retry.
func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)

	var f checkout.Form
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			f.Name, err = d.Str()
		case "mobile":
			f.Mobile, err = d.Str()
		case "address":
			f.Address, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeBadRequest(w, err)
		return
	}

	res, err := v.Checkout.Submit(ctx, f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, *res.Order)
		e.FieldStart("redirect")
		e.Str(res.Redirect)
		e.ObjEnd()
	})
}
