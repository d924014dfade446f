// Package handler serves the storefront HTTP API.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/session"
	"github.com/xenking/schoolshop/internal/domain/settings"
	"github.com/xenking/schoolshop/internal/storefront"
	"github.com/xenking/schoolshop/pkg/httpmiddleware"
)

// Catalog is the product service.
type Catalog interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
	Featured(ctx context.Context) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, d product.Draft) (*product.Product, error)
	Update(ctx context.Context, id string, d product.Draft) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// Orders is the admin order service.
type Orders interface {
	List(ctx context.Context) ([]order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// Settings reads and writes the site settings singleton.
type Settings interface {
	settings.FieldSaver
	Get(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, next settings.Settings) (settings.Settings, error)
}

// Visitors resolves session IDs to live visitor state.
type Visitors interface {
	Visitor(ctx context.Context, id string) (*storefront.Visitor, error)
	End(ctx context.Context, id string) error
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// CheckoutLimit and LoginLimit wrap the checkout submission and admin
	// login routes. Nil means unlimited.
	CheckoutLimit httpmiddleware.Middleware
	LoginLimit    httpmiddleware.Middleware
}

// Handler serves the storefront API.
type Handler struct {
	catalog  Catalog
	orders   Orders
	settings Settings
	visitors Visitors
	verifier session.Verifier

	imageBaseURL string
	cookieSecure bool
	checkoutMW   httpmiddleware.Middleware
	loginMW      httpmiddleware.Middleware
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	catalog Catalog,
	orders Orders,
	site Settings,
	visitors Visitors,
	verifier session.Verifier,
) *Handler {
	return &Handler{
		catalog:      catalog,
		orders:       orders,
		settings:     site,
		visitors:     visitors,
		verifier:     verifier,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		cookieSecure: cfg.CookieSecure,
		checkoutMW:   orPassthrough(cfg.CheckoutLimit),
		loginMW:      orPassthrough(cfg.LoginLimit),
	}
}

// Routes mounts the API under /api on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/featured", h.featuredProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/settings", h.getSettings)

		r.Group(func(r chi.Router) {
			r.Use(h.withVisitor)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Delete("/", h.clearCart)
				r.Post("/items", h.addCartItem)
				r.Put("/items/{productId}", h.setCartQuantity)
				r.Delete("/items/{productId}", h.removeCartItem)
			})

			r.Get("/checkout", h.getCheckout)
			r.With(h.checkoutMW).Post("/checkout", h.submitCheckout)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.getSession)
				r.Delete("/", h.endSession)
				r.With(h.loginMW).Post("/login", h.login)
				r.Post("/logout", h.logout)
				r.Put("/edit-mode", h.setEditMode)
			})

			r.Route("/settings/fields/{field}", func(r chi.Router) {
				r.Get("/", h.getFieldEditor)
				r.Post("/edit", h.beginFieldEdit)
				r.Put("/draft", h.setFieldDraft)
				r.Post("/save", h.saveField)
				r.Post("/cancel", h.cancelFieldEdit)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/orders", h.listOrders)
				r.Patch("/orders/{id}", h.updateOrderStatus)
				r.Post("/products", h.createProduct)
				r.Put("/products/{id}", h.updateProduct)
				r.Delete("/products/{id}", h.deleteProduct)
				r.Put("/settings", h.saveSettings)
			})
		})
	})
}

// Router returns a chi router with the API mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

// imageURL resolves a stored image path against ImageBaseURL.
func (h *Handler) imageURL(image string) string {
	if h.imageBaseURL == "" || image == "" || strings.Contains(image, "://") {
		return image
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(image, "/")
}

func orPassthrough(mw httpmiddleware.Middleware) httpmiddleware.Middleware {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
