package cart

import (
	"context"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	data    []byte
	saves   int
	loadErr error
	saveErr error
}

func (m *memStorage) LoadCart(_ context.Context) ([]byte, error) {
	return m.data, m.loadErr
}

func (m *memStorage) SaveCart(_ context.Context, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = data
	return nil
}

func pencilKit() Product {
	return Product{ID: "p1", Name: "Pencil Kit", Price: decimal.NewFromInt(299)}
}

func notebook() Product {
	return Product{ID: "p2", Name: "Notebook", Price: decimal.RequireFromString("45.50")}
}

func TestStore_AddNewAndExisting(t *testing.T) {
	ctx := context.Background()
	s := New(&memStorage{})

	require.NoError(t, s.Add(ctx, pencilKit(), 1))
	require.NoError(t, s.Add(ctx, notebook(), 3))
	require.NoError(t, s.Add(ctx, pencilKit(), 1))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "p2", lines[1].ProductID)
	assert.Equal(t, 5, s.TotalItems())
	assert.True(t, decimal.RequireFromString("734.50").Equal(s.TotalPrice()))
}

func TestStore_AddInvalidQuantity(t *testing.T) {
	ctx := context.Background()
	st := &memStorage{}
	s := New(st)

	for _, qty := range []int{0, -3} {
		err := s.Add(ctx, pencilKit(), qty)
		require.ErrorIs(t, err, ErrInvalidQuantity)

		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr)
		assert.Equal(t, qty, iqErr.Quantity)
	}
	assert.True(t, s.Empty())
	assert.Zero(t, st.saves, "rejected adds must not persist")
}

func TestStore_AddInvalidProduct(t *testing.T) {
	s := New(&memStorage{})
	err := s.Add(context.Background(), Product{ID: "x", Price: decimal.NewFromInt(-1)}, 1)
	require.ErrorIs(t, err, ErrInvalidProduct)
	err = s.Add(context.Background(), Product{Price: decimal.NewFromInt(1)}, 1)
	require.ErrorIs(t, err, ErrInvalidProduct)
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := &memStorage{}
	s := New(st)
	require.NoError(t, s.Add(ctx, pencilKit(), 2))
	require.NoError(t, s.Add(ctx, notebook(), 1))

	require.NoError(t, s.Remove(ctx, "p1"))
	after := s.Lines()
	saves := st.saves

	require.NoError(t, s.Remove(ctx, "p1"))
	assert.Equal(t, after, s.Lines())
	assert.Equal(t, saves, st.saves)

	require.NoError(t, s.Remove(ctx, "never-added"))
}

func TestStore_SetQuantity(t *testing.T) {
	ctx := context.Background()
	s := New(&memStorage{})
	require.NoError(t, s.Add(ctx, pencilKit(), 1))
	require.NoError(t, s.Add(ctx, notebook(), 1))

	require.NoError(t, s.SetQuantity(ctx, "p1", 7))
	lines := s.Lines()
	assert.Equal(t, "p1", lines[0].ProductID, "position is preserved")
	assert.Equal(t, 7, lines[0].Quantity)

	require.NoError(t, s.SetQuantity(ctx, "p1", 0))
	lines = s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "p2", lines[0].ProductID)

	require.NoError(t, s.SetQuantity(ctx, "p2", -1))
	assert.True(t, s.Empty())

	err := s.SetQuantity(ctx, "p9", 2)
	require.ErrorIs(t, err, ErrNotInCart)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	st := &memStorage{}
	s := New(st)
	require.NoError(t, s.Add(ctx, pencilKit(), 2))

	require.NoError(t, s.Clear(ctx))
	assert.True(t, s.Empty())
	assert.Zero(t, s.TotalItems())
	assert.True(t, decimal.Zero.Equal(s.TotalPrice()))

	reopened, err := Open(ctx, st)
	require.NoError(t, err)
	assert.True(t, reopened.Empty())
}

func TestStore_SaveFailureKeepsPreviousCart(t *testing.T) {
	ctx := context.Background()
	st := &memStorage{}
	s := New(st)
	require.NoError(t, s.Add(ctx, pencilKit(), 2))

	st.saveErr = errors.New("disk full")
	require.Error(t, s.Add(ctx, notebook(), 1))
	require.Error(t, s.Clear(ctx))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := &memStorage{}
	s := New(st)
	require.NoError(t, s.Add(ctx, notebook(), 3))
	require.NoError(t, s.Add(ctx, pencilKit(), 2))

	reopened, err := Open(ctx, st)
	require.NoError(t, err)

	assertLinesEqual(t, s.Lines(), reopened.Lines())
	assert.Equal(t, s.TotalItems(), reopened.TotalItems())
	assert.True(t, s.TotalPrice().Equal(reopened.TotalPrice()))
}

func TestOpen_Empty(t *testing.T) {
	s, err := Open(context.Background(), &memStorage{})
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestOpen_LoadError(t *testing.T) {
	_, err := Open(context.Background(), &memStorage{loadErr: errors.New("gone")})
	require.Error(t, err)
}

func TestSnapshot_IsACopy(t *testing.T) {
	ctx := context.Background()
	s := New(&memStorage{})
	require.NoError(t, s.Add(ctx, pencilKit(), 2))

	snap := s.Snapshot()
	require.NoError(t, s.Add(ctx, pencilKit(), 5))
	require.NoError(t, s.Add(ctx, notebook(), 1))

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, 2, snap.TotalItems)
	assert.True(t, decimal.NewFromInt(598).Equal(snap.TotalPrice))
}

// Random operation sequences must keep one line per product and totals equal
// to the sum over lines.
func TestStore_RandomSequencesKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))

	for run := range 50 {
		s := New(&memStorage{})
		want := map[string]int{}

		for range 200 {
			id := "p" + strconv.Itoa(rng.IntN(6))
			switch rng.IntN(3) {
			case 0:
				qty := rng.IntN(4) - 1
				err := s.Add(ctx, Product{ID: id, Name: id, Price: decimal.NewFromInt(int64(len(id)))}, qty)
				if qty < 1 {
					require.ErrorIs(t, err, ErrInvalidQuantity)
					continue
				}
				require.NoError(t, err)
				want[id] += qty
			case 1:
				require.NoError(t, s.Remove(ctx, id))
				delete(want, id)
			case 2:
				qty := rng.IntN(5) - 1
				err := s.SetQuantity(ctx, id, qty)
				_, present := want[id]
				switch {
				case qty <= 0:
					require.NoError(t, err)
					delete(want, id)
				case !present:
					require.ErrorIs(t, err, ErrNotInCart)
				default:
					require.NoError(t, err)
					want[id] = qty
				}
			}
		}

		lines := s.Lines()
		seen := map[string]bool{}
		sum := 0
		for _, l := range lines {
			assert.False(t, seen[l.ProductID], "run %d: duplicate line %s", run, l.ProductID)
			seen[l.ProductID] = true
			assert.Positive(t, l.Quantity)
			assert.Equal(t, want[l.ProductID], l.Quantity)
			sum += l.Quantity
		}
		assert.Len(t, lines, len(want))
		assert.Equal(t, sum, s.TotalItems())
	}
}

func assertLinesEqual(t *testing.T, want, got []Line) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price), "line %d price: want %s, got %s", i, want[i].Price, got[i].Price)
	}
}
