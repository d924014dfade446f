package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/session"
	"github.com/xenking/schoolshop/internal/storefront"
	"github.com/xenking/schoolshop/pkg/httpmiddleware"
)

// SessionCookie names the cookie holding the session ID. It has no expiry,
// so the session ends with the browser session.
const SessionCookie = "shop_session"

type visitorKey struct{}

type visitorCtx struct {
	id string
	v  *storefront.Visitor
}

func visitorFrom(ctx context.Context) (string, *storefront.Visitor) {
	vc, _ := ctx.Value(visitorKey{}).(visitorCtx)
	return vc.id, vc.v
}

// SessionKey keys rate limits by session, falling back to the client IP for
// requests outside a session.
func SessionKey(r *http.Request) string {
	if id, _ := visitorFrom(r.Context()); id != "" {
		return "session:" + id
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

// withVisitor resolves the session cookie to a live visitor, issuing a new
// session when the cookie is missing or malformed.
func (h *Handler) withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = session.NewID()
			http.SetCookie(w, h.sessionCookie(id))
		}

		v, err := h.visitors.Visitor(ctx, id)
		if err != nil {
			zctx.From(ctx).Error("Open session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "session unavailable")
			return
		}
		ctx = context.WithValue(ctx, visitorKey{}, visitorCtx{id: id, v: v})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// requireAdmin rejects requests whose session has not passed the admin
// credential check.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, v := visitorFrom(r.Context()); v == nil || !v.Session.AdminAuthenticated() {
			writeError(w, http.StatusForbidden, session.ErrNotAuthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	_, v := visitorFrom(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, v) })
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)
	var password string
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		if key == "password" {
			password, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := v.Session.Login(ctx, h.verifier, password); err != nil {
		h.writeErr(w, r, err)
		return
	}
	zctx.From(ctx).Info("Admin signed in")
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, v) })
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)
	v.Editors.CancelAll()
	if err := v.Session.Logout(ctx); err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, v) })
}

func (h *Handler) setEditMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, v := visitorFrom(ctx)
	var enabled bool
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		if key == "enabled" {
			enabled, err = d.Bool()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := v.Session.SetEditMode(ctx, enabled); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if !enabled {
		v.Editors.CancelAll()
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, v) })
}

// endSession drops everything stored for the session and expires the cookie.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := visitorFrom(ctx)
	if err := h.visitors.End(ctx, id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	c := h.sessionCookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
	w.WriteHeader(http.StatusNoContent)
}
