package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/settings"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, o := range orders {
			encodeOrder(e, o)
		}
		e.ArrEnd()
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	var status string
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		if key == "status" {
			status, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.orders.UpdateStatus(ctx, id, status); err != nil {
		h.writeErr(w, r, err)
		return
	}
	o, err := h.orders.Get(ctx, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	zctx.From(ctx).Info("Order status updated", zap.String("order_id", id), zap.String("status", status))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
}

func decodeDraft(r *http.Request) (product.Draft, error) {
	var d product.Draft
	err := decodeBody(r, func(dec *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			d.Name, err = decodeText(dec)
		case "description":
			d.Description, err = decodeText(dec)
		case "price":
			d.Price, err = decodeText(dec)
		case "category":
			d.Category, err = decodeText(dec)
		case "image":
			d.Image, err = decodeText(dec)
		case "stock":
			d.Stock, err = decodeText(dec)
		default:
			err = dec.Skip()
		}
		return err
	})
	return d, err
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDraft(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), d)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDraft(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveSettings replaces every settings field from the admin form. Fields
// missing from the body are validated as blank.
func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		f, err := settings.ParseField(key)
		if err != nil {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		next = next.With(f, v)
		return nil
	}); err != nil {
		writeBadRequest(w, err)
		return
	}
	saved, err := h.settings.Save(r.Context(), next)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSettings(e, saved) })
}
