package settings

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrEditModeDisabled is returned when editing starts outside edit mode.
	ErrEditModeDisabled = errors.New("edit mode is disabled")
	// ErrNotEditing is returned for draft operations on a field being viewed.
	ErrNotEditing = errors.New("field is not being edited")
	// ErrSaveInFlight is returned while a previous save of the field is pending.
	ErrSaveInFlight = errors.New("save already in progress")
)

// State is the per-field editing state.
type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

// FieldSaver persists a single field.
type FieldSaver interface {
	SaveField(ctx context.Context, f Field, value string) (time.Time, error)
}

// Editor is the inline editing state of one field. Editors of different
// fields are independent.
type Editor struct {
	mu        sync.Mutex
	field     Field
	state     State
	draft     string
	committed string
	saving    bool
	gen       uint64
	lastErr   error
}

// EditorView is a point-in-time copy of an Editor.
type EditorView struct {
	Field     Field
	State     State
	Draft     string
	Committed string
	Saving    bool
	Err       error
}

// NewEditor returns an editor in Viewing state.
func NewEditor(f Field) *Editor {
	return &Editor{field: f}
}

// View returns the editor's current state.
func (e *Editor) View() EditorView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EditorView{
		Field:     e.field,
		State:     e.state,
		Draft:     e.draft,
		Committed: e.committed,
		Saving:    e.saving,
		Err:       e.lastErr,
	}
}

// Begin enters Editing with the draft set to committed. It fails when edit
// mode is off. Beginning an edit already in progress keeps its draft.
func (e *Editor) Begin(committed string, editModeEnabled bool) error {
	if !editModeEnabled {
		return ErrEditModeDisabled
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Editing {
		return nil
	}
	e.state = Editing
	e.committed = committed
	e.draft = committed
	e.lastErr = nil
	e.gen++
	return nil
}

// SetDraft replaces the draft text.
func (e *Editor) SetDraft(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return ErrNotEditing
	}
	e.draft = text
	return nil
}

// Save commits the draft through saver. On success the editor returns to
// Viewing; on failure it stays Editing with the draft retained and the error
// recorded. A save that completes after the edit was cancelled leaves the
// editor alone.
func (e *Editor) Save(ctx context.Context, saver FieldSaver) (time.Time, error) {
	e.mu.Lock()
	if e.state != Editing {
		e.mu.Unlock()
		return time.Time{}, ErrNotEditing
	}
	if e.saving {
		e.mu.Unlock()
		return time.Time{}, ErrSaveInFlight
	}
	e.saving = true
	gen, field, value := e.gen, e.field, e.draft
	e.mu.Unlock()

	updated, err := saver.SaveField(ctx, field, value)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if gen != e.gen {
		return updated, err
	}
	if err != nil {
		e.lastErr = err
		return time.Time{}, err
	}
	e.committed = value
	e.state = Viewing
	e.lastErr = nil
	return updated, nil
}

// Cancel discards the draft and returns to Viewing.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return
	}
	e.state = Viewing
	e.draft = e.committed
	e.lastErr = nil
	e.gen++
}

// Editors holds one Editor per field for a session.
type Editors struct {
	mu sync.Mutex
	m  map[Field]*Editor
}

// NewEditors returns an empty set.
func NewEditors() *Editors {
	return &Editors{m: make(map[Field]*Editor, len(Fields))}
}

// Get returns the editor for f, creating it on first use.
func (es *Editors) Get(f Field) *Editor {
	es.mu.Lock()
	defer es.mu.Unlock()
	e, ok := es.m[f]
	if !ok {
		e = NewEditor(f)
		es.m[f] = e
	}
	return e
}

// CancelAll returns every editor to Viewing, used when edit mode is turned
// off.
func (es *Editors) CancelAll() {
	es.mu.Lock()
	editors := make([]*Editor, 0, len(es.m))
	for _, e := range es.m {
		editors = append(editors, e)
	}
	es.mu.Unlock()
	for _, e := range editors {
		e.Cancel()
	}
}
