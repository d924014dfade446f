package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/auth"
	"github.com/xenking/schoolshop/internal/domain/cart"
	"github.com/xenking/schoolshop/internal/domain/checkout"
	"github.com/xenking/schoolshop/internal/domain/form"
	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/session"
	"github.com/xenking/schoolshop/internal/domain/settings"
)

// errorBody is the JSON error response.
type errorBody struct {
	Code      int
	Message   string
	Fields    map[string]string
	View      string
	Retryable bool
}

func (b errorBody) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(b.Code)
	e.FieldStart("message")
	e.Str(b.Message)
	if len(b.Fields) > 0 {
		encodeFields(e, b.Fields)
	}
	if b.View != "" {
		e.FieldStart("view")
		e.Str(b.View)
	}
	if b.Retryable {
		e.FieldStart("retryable")
		e.Bool(true)
	}
	e.ObjEnd()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	b := errorBody{Code: status, Message: msg}
	writeJSON(w, status, b.encode)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

// mapError converts domain errors to HTTP error responses. The second result
// is false for unexpected errors.
func mapError(err error) (errorBody, bool) {
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		return errorBody{Code: http.StatusBadRequest, Message: "validation failed", Fields: verr.Fields}, true
	}

	var qerr *cart.InvalidQuantityError
	if errors.As(err, &qerr) {
		return errorBody{Code: http.StatusUnprocessableEntity, Message: qerr.Error()}, true
	}

	switch {
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidProduct):
		return errorBody{Code: http.StatusUnprocessableEntity, Message: err.Error()}, true
	case errors.Is(err, auth.ErrDenied):
		return errorBody{Code: http.StatusUnauthorized, Message: "incorrect password"}, true
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, settings.ErrEditModeDisabled):
		return errorBody{Code: http.StatusForbidden, Message: err.Error()}, true
	case errors.Is(err, checkout.ErrEmptyCart):
		return errorBody{Code: http.StatusConflict, Message: err.Error(), View: "empty_cart"}, true
	case errors.Is(err, checkout.ErrSubmissionInFlight),
		errors.Is(err, checkout.ErrDetached),
		errors.Is(err, settings.ErrNotEditing),
		errors.Is(err, settings.ErrSaveInFlight):
		return errorBody{Code: http.StatusConflict, Message: err.Error()}, true
	case errors.Is(err, order.ErrInvalidStatus):
		return errorBody{Code: http.StatusBadRequest, Message: err.Error()}, true
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrNotInCart),
		errors.Is(err, settings.ErrUnknownField),
		errors.Is(err, gateway.ErrNotFound):
		return errorBody{Code: http.StatusNotFound, Message: err.Error()}, true
	case gateway.IsGatewayError(err):
		return errorBody{
			Code:      http.StatusBadGateway,
			Message:   "the store backend is unavailable, please try again",
			Retryable: true,
		}, true
	}
	return errorBody{}, false
}

// writeErr logs and writes err. Gateway failures are logged once here, at the
// call site that issued them.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())
	b, ok := mapError(err)
	switch {
	case !ok:
		lg.Error("Request failed", zap.Error(err))
		b = errorBody{Code: http.StatusInternalServerError, Message: "internal server error"}
	case b.Code == http.StatusBadGateway:
		lg.Warn("Gateway failure", zap.Error(err))
	}
	writeJSON(w, b.Code, b.encode)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
