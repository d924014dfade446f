package settings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/schoolshop/internal/storage/memory"
)

type failingSaver struct {
	err error
}

func (f failingSaver) SaveField(context.Context, Field, string) (time.Time, error) {
	return time.Time{}, f.err
}

type blockingSaver struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingSaver) SaveField(context.Context, Field, string) (time.Time, error) {
	close(b.started)
	<-b.release
	return time.Now(), nil
}

func TestEditor_CancelLeavesCommittedValue(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(), WithClock(steppingClock()))
	require.NoError(t, store.EnsureDefaults(ctx))
	before, err := store.Get(ctx)
	require.NoError(t, err)

	e := NewEditor(HeroTitle)
	require.NoError(t, e.Begin(before.HeroTitle, true))
	require.NoError(t, e.SetDraft("Exam Season Sale"))
	assert.Equal(t, Editing, e.View().State)

	e.Cancel()
	view := e.View()
	assert.Equal(t, Viewing, view.State)
	assert.Equal(t, before.HeroTitle, view.Draft)

	after, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.HeroTitle, after.HeroTitle)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestEditor_SaveCommitsAndAdvancesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(), WithClock(steppingClock()))
	require.NoError(t, store.EnsureDefaults(ctx))
	before, err := store.Get(ctx)
	require.NoError(t, err)

	e := NewEditor(HeroTitle)
	require.NoError(t, e.Begin(before.HeroTitle, true))
	require.NoError(t, e.SetDraft("Exam Season Sale"))
	updated, err := e.Save(ctx, store)
	require.NoError(t, err)

	view := e.View()
	assert.Equal(t, Viewing, view.State)
	assert.Equal(t, "Exam Season Sale", view.Committed)

	after, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Exam Season Sale", after.HeroTitle)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.True(t, after.UpdatedAt.Equal(updated))
}

func TestEditor_SaveFailureKeepsDraft(t *testing.T) {
	e := NewEditor(ContactPhone)
	require.NoError(t, e.Begin("9309496280", true))
	require.NoError(t, e.SetDraft("9000000000"))

	boom := errors.New("backend unavailable")
	_, err := e.Save(context.Background(), failingSaver{err: boom})
	require.ErrorIs(t, err, boom)

	view := e.View()
	assert.Equal(t, Editing, view.State)
	assert.Equal(t, "9000000000", view.Draft)
	assert.Equal(t, "9309496280", view.Committed)
	require.ErrorIs(t, view.Err, boom)
}

func TestEditor_RequiresEditMode(t *testing.T) {
	e := NewEditor(ShopName)
	require.ErrorIs(t, e.Begin("SchoolShop", false), ErrEditModeDisabled)
	assert.Equal(t, Viewing, e.View().State)
	require.ErrorIs(t, e.SetDraft("x"), ErrNotEditing)
	_, err := e.Save(context.Background(), failingSaver{})
	require.ErrorIs(t, err, ErrNotEditing)
}

func TestEditor_BeginTwiceKeepsDraft(t *testing.T) {
	e := NewEditor(ShopName)
	require.NoError(t, e.Begin("SchoolShop", true))
	require.NoError(t, e.SetDraft("Draft"))
	require.NoError(t, e.Begin("SchoolShop", true))
	assert.Equal(t, "Draft", e.View().Draft)
}

func TestEditor_LateSaveAfterCancel(t *testing.T) {
	e := NewEditor(HeroSubtitle)
	require.NoError(t, e.Begin("old", true))
	require.NoError(t, e.SetDraft("new"))

	saver := blockingSaver{started: make(chan struct{}), release: make(chan struct{})}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.Save(context.Background(), saver)
	}()
	<-saver.started

	_, err := e.Save(context.Background(), saver)
	require.ErrorIs(t, err, ErrSaveInFlight)

	e.Cancel()
	close(saver.release)
	wg.Wait()

	view := e.View()
	assert.Equal(t, Viewing, view.State)
	assert.Equal(t, "old", view.Committed)
}

func TestEditors_Independent(t *testing.T) {
	es := NewEditors()
	title := es.Get(HeroTitle)
	phone := es.Get(ContactPhone)
	assert.Same(t, title, es.Get(HeroTitle))

	require.NoError(t, title.Begin("a", true))
	require.NoError(t, phone.Begin("b", true))
	require.NoError(t, title.SetDraft("a2"))
	phone.Cancel()

	assert.Equal(t, Editing, title.View().State)
	assert.Equal(t, "a2", title.View().Draft)
	assert.Equal(t, Viewing, phone.View().State)

	es.CancelAll()
	assert.Equal(t, Viewing, title.View().State)
}
