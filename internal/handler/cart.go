package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request) {
	_, v := visitorFrom(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, v.Cart.Snapshot()) })
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r)
}

// addCartItem adds quantity (default 1) of a catalog product.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)

	var productID string
	qty := 1
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "product_id":
			productID, err = d.Str()
		case "quantity":
			qty, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeBadRequest(w, err)
		return
	}

	p, err := h.catalog.Get(ctx, productID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := v.Cart.Add(ctx, p.CartProduct(), qty); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeCart(w, r)
}

// setCartQuantity sets a line's quantity. Zero or less removes the line.
func (h *Handler) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)

	var qty int
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		if key == "quantity" {
			qty, err = d.Int()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := v.Cart.SetQuantity(ctx, chi.URLParam(r, "productId"), qty); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)
	if err := v.Cart.Remove(ctx, chi.URLParam(r, "productId")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)
	if err := v.Cart.Clear(ctx); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeCart(w, r)
}
