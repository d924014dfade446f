// Package session holds per-visitor state that lives as long as the browser
// session: the admin-authentication flag, the edit-mode flag and the stored
// cart.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/schoolshop/internal/domain/cart"
)

// Storage keys.
const (
	keyAdminAuth = "admin_auth"
	keyEditMode  = "edit_mode"
	keyCart      = "cart"
)

// ErrNotAuthenticated is returned when enabling edit mode without admin
// authentication.
var ErrNotAuthenticated = errors.New("admin authentication required")

// Store persists session-scoped values. Load returns nil for absent keys.
type Store interface {
	Load(ctx context.Context, sessionID, key string) ([]byte, error)
	Save(ctx context.Context, sessionID, key string, value []byte) error
	Drop(ctx context.Context, sessionID string) error
}

// Verifier checks an administrator secret.
type Verifier interface {
	Verify(ctx context.Context, secret string) error
}

var _ cart.Storage = (*Session)(nil)

// Session is one visitor's session. Flags are written through to the Store
// before they change in memory.
type Session struct {
	id    string
	store Store

	mu        sync.Mutex
	adminAuth bool
	editMode  bool
}

// NewID returns a fresh random session ID.
func NewID() string {
	return uuid.New().String()
}

// Open loads the session's flags from store. Unknown sessions start with both
// flags off.
func Open(ctx context.Context, store Store, id string) (*Session, error) {
	s := &Session{id: id, store: store}
	var err error
	if s.adminAuth, err = s.loadFlag(ctx, keyAdminAuth); err != nil {
		return nil, err
	}
	if s.editMode, err = s.loadFlag(ctx, keyEditMode); err != nil {
		return nil, err
	}
	// A stored edit flag without authentication is never honoured.
	s.editMode = s.editMode && s.adminAuth
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AdminAuthenticated reports whether the visitor passed the admin check.
func (s *Session) AdminAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminAuth
}

// EditMode reports the raw edit-mode flag.
func (s *Session) EditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode
}

// EditModeEnabled reports whether inline editing is available: edit mode is
// on and the visitor is authenticated.
func (s *Session) EditModeEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode && s.adminAuth
}

// Login verifies secret and marks the session authenticated. On failure the
// flag is left false and the verifier's error is returned.
func (s *Session) Login(ctx context.Context, v Verifier, secret string) error {
	if err := v.Verify(ctx, secret); err != nil {
		return err
	}
	return s.SetAdminAuthenticated(ctx, true)
}

// Logout clears admin authentication, which also turns edit mode off.
func (s *Session) Logout(ctx context.Context) error {
	return s.SetAdminAuthenticated(ctx, false)
}

// SetAdminAuthenticated sets the authentication flag. Clearing it forces
// edit mode off.
func (s *Session) SetAdminAuthenticated(ctx context.Context, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !v && s.editMode {
		if err := s.saveFlag(ctx, keyEditMode, false); err != nil {
			return err
		}
		s.editMode = false
	}
	if err := s.saveFlag(ctx, keyAdminAuth, v); err != nil {
		return err
	}
	s.adminAuth = v
	return nil
}

// SetEditMode toggles edit mode. Turning it on requires authentication.
func (s *Session) SetEditMode(ctx context.Context, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v && !s.adminAuth {
		return ErrNotAuthenticated
	}
	if err := s.saveFlag(ctx, keyEditMode, v); err != nil {
		return err
	}
	s.editMode = v
	return nil
}

// LoadCart returns the stored cart snapshot.
func (s *Session) LoadCart(ctx context.Context) ([]byte, error) {
	data, err := s.store.Load(ctx, s.id, keyCart)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.id, err)
	}
	return data, nil
}

// SaveCart stores the cart snapshot.
func (s *Session) SaveCart(ctx context.Context, data []byte) error {
	if err := s.store.Save(ctx, s.id, keyCart, data); err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	return nil
}

// End drops everything stored for the session.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Drop(ctx, s.id); err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	s.adminAuth = false
	s.editMode = false
	return nil
}

func (s *Session) loadFlag(ctx context.Context, key string) (bool, error) {
	data, err := s.store.Load(ctx, s.id, key)
	if err != nil {
		return false, fmt.Errorf("session %s: loading %s: %w", s.id, key, err)
	}
	return string(data) == "true", nil
}

func (s *Session) saveFlag(ctx context.Context, key string, v bool) error {
	val := "false"
	if v {
		val = "true"
	}
	if err := s.store.Save(ctx, s.id, key, []byte(val)); err != nil {
		return fmt.Errorf("session %s: saving %s: %w", s.id, key, err)
	}
	return nil
}
