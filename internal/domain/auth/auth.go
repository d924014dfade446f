// Package auth verifies administrator secrets against stored HMAC-SHA256
// hashes.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrDenied is returned when the presented secret does not match an
	// active admin key.
	ErrDenied = errors.New("admin authentication denied")
	// ErrKeyNotFound is returned by repositories when no active key has the
	// given hash.
	ErrKeyNotFound = errors.New("admin key not found")
)

// AdminKey is a stored administrator credential.
type AdminKey struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides lookup of admin keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*AdminKey, error)
}

// KeyChecker authenticates administrators by hashing the presented secret
// with a server-side pepper and looking the hash up.
type KeyChecker struct {
	keys   Repository
	pepper []byte
}

// NewKeyChecker creates a KeyChecker with the given repository and pepper.
func NewKeyChecker(keys Repository, pepper []byte) *KeyChecker {
	return &KeyChecker{keys: keys, pepper: pepper}
}

// Hash returns the hex HMAC-SHA256 of secret under pepper, the form stored in
// admin_keys.key_hash.
func Hash(pepper []byte, secret string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns nil when secret matches an active admin key and ErrDenied
// when it does not.
func (c *KeyChecker) Verify(ctx context.Context, secret string) error {
	if secret == "" {
		return ErrDenied
	}
	hash := Hash(c.pepper, secret)
	key, err := c.keys.FindByHash(ctx, hash)
	if errors.Is(err, ErrKeyNotFound) {
		return ErrDenied
	}
	if err != nil {
		return fmt.Errorf("checking admin key: %w", err)
	}

	want, err := hex.DecodeString(hash)
	if err != nil {
		return fmt.Errorf("decoding admin key hash: %w", err)
	}
	stored, err := hex.DecodeString(key.KeyHash)
	if err != nil {
		return ErrDenied
	}
	if subtle.ConstantTimeCompare(want, stored) != 1 {
		return ErrDenied
	}
	return nil
}

var _ Repository = StaticRepository(nil)

// StaticRepository serves a fixed set of keys, used when the storefront runs
// without a database.
type StaticRepository []AdminKey

// FindByHash returns the key with the given hash.
func (r StaticRepository) FindByHash(_ context.Context, hash string) (*AdminKey, error) {
	for i := range r {
		if r[i].KeyHash == hash {
			k := r[i]
			return &k, nil
		}
	}
	return nil, ErrKeyNotFound
}
