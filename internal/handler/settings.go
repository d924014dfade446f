package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/settings"
)

// fieldEditor resolves the {field} URL parameter to the visitor's editor.
func (h *Handler) fieldEditor(w http.ResponseWriter, r *http.Request) (*settings.Editor, bool) {
	f, err := settings.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		h.writeErr(w, r, err)
		return nil, false
	}
	_, v := visitorFrom(r.Context())
	return v.Editors.Get(f), true
}

func writeEditor(w http.ResponseWriter, ed *settings.Editor) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeEditor(e, ed.View()) })
}

func (h *Handler) getFieldEditor(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.fieldEditor(w, r)
	if !ok {
		return
	}
	writeEditor(w, ed)
}

// beginFieldEdit enters Editing with the committed value as the draft.
func (h *Handler) beginFieldEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ed, ok := h.fieldEditor(w, r)
	if !ok {
		return
	}
	_, v := visitorFrom(ctx)
	if !v.Session.EditModeEnabled() {
		h.writeErr(w, r, settings.ErrEditModeDisabled)
		return
	}
	current, err := h.settings.Get(ctx)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := ed.Begin(current.Value(ed.View().Field), v.Session.EditModeEnabled()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeEditor(w, ed)
}

func (h *Handler) setFieldDraft(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.fieldEditor(w, r)
	if !ok {
		return
	}
	var value string
	if err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		if key == "value" {
			value, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := ed.SetDraft(value); err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeEditor(w, ed)
}

// saveField commits the draft. On failure the field stays in Editing with the
// draft kept.
func (h *Handler) saveField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ed, ok := h.fieldEditor(w, r)
	if !ok {
		return
	}
	updated, err := ed.Save(ctx, h.settings)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	view := ed.View()
	zctx.From(ctx).Info("Site setting saved", zap.String("field", string(view.Field)))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("field")
		e.Str(string(view.Field))
		e.FieldStart("value")
		e.Str(view.Committed)
		e.FieldStart("updated_at")
		e.Str(formatTime(updated))
		e.FieldStart("editor")
		encodeEditor(e, view)
		e.ObjEnd()
	})
}

func (h *Handler) cancelFieldEdit(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.fieldEditor(w, r)
	if !ok {
		return
	}
	ed.Cancel()
	writeEditor(w, ed)
}
