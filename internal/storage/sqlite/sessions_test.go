package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/schoolshop/internal/domain/session"
)

func openTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionStore_LoadSave(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v, err := s.Load(ctx, "sid", "cart")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Save(ctx, "sid", "cart", []byte(`{"v":1}`)))
	require.NoError(t, s.Save(ctx, "sid", "cart", []byte(`{"v":1,"lines":[]}`)))
	v, err = s.Load(ctx, "sid", "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1,"lines":[]}`, string(v))

	v, err = s.Load(ctx, "other", "cart")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Drop(ctx, "sid"))
	v, err = s.Load(ctx, "sid", "cart")
	require.NoError(t, err)
	assert.Nil(t, v)
	require.NoError(t, s.Ping(ctx))
}

func TestSessionStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "old", "cart", []byte("a")))
	require.NoError(t, s.Save(ctx, "old", "admin_auth", []byte("true")))
	require.NoError(t, s.Save(ctx, "kept", "cart", []byte("b")))

	now = now.Add(40 * time.Minute)
	require.NoError(t, s.Touch(ctx, "kept"))
	require.NoError(t, s.Save(ctx, "fresh", "cart", []byte("c")))

	now = now.Add(10 * time.Minute)
	n, err := s.Sweep(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	v, err := s.Load(ctx, "old", "cart")
	require.NoError(t, err)
	assert.Nil(t, v)
	for _, id := range []string{"kept", "fresh"} {
		v, err = s.Load(ctx, id, "cart")
		require.NoError(t, err)
		assert.NotNil(t, v, id)
	}
}

func TestSessionStore_BacksSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess, err := session.Open(ctx, s, "sid")
	require.NoError(t, err)
	require.NoError(t, sess.SetAdminAuthenticated(ctx, true))
	require.NoError(t, sess.SetEditMode(ctx, true))

	reopened, err := session.Open(ctx, s, "sid")
	require.NoError(t, err)
	assert.True(t, reopened.EditModeEnabled())
}
