package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/product"
)

func (h *Handler) writeProducts(w http.ResponseWriter, products []product.Product) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			encodeProduct(e, p, h.imageURL)
		}
		e.ArrEnd()
	})
}

func (h *Handler) writeProduct(w http.ResponseWriter, status int, p *product.Product) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeProduct(e, *p, h.imageURL) })
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := product.Filter{Category: q.Get("category")}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	products, err := h.catalog.List(r.Context(), f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeProducts(w, products)
}

// featuredProducts serves the landing page selection. When the backend is
// unreachable the sample products are shown instead of an error.
func (h *Handler) featuredProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.catalog.Featured(ctx)
	switch {
	case gateway.IsGatewayError(err) && !errors.Is(err, gateway.ErrNotFound):
		zctx.From(ctx).Warn("Serving sample featured products", zap.Error(err))
		products = product.Samples()
	case err != nil:
		h.writeErr(w, r, err)
		return
	}
	h.writeProducts(w, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSettings(e, s) })
}
