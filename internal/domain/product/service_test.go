package product_test

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/schoolshop/internal/domain/form"
	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/storage/memory"
)

func newCatalog(t *testing.T, drafts ...product.Draft) (*product.Service, *memory.Gateway) {
	t.Helper()
	gw := memory.New()
	svc := product.NewService(product.NewGatewayRepository(gw))
	for _, d := range drafts {
		_, err := svc.Create(context.Background(), d)
		require.NoError(t, err)
	}
	return svc, gw
}

func draft(name, category, price string) product.Draft {
	return product.Draft{Name: name, Category: category, Price: price, Image: "https://img/" + name + ".png"}
}

func names(products []product.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func TestService_ListOrderedByName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t,
		draft("Ruler", "Mathematics", "20"),
		draft("Atlas", "Books", "150"),
		draft("Compass", "Mathematics", "90"),
		draft("Crayons", "Art Supplies", "60"),
		draft("Eraser", "Stationery", "5"),
	)

	all, err := svc.List(ctx, product.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlas", "Compass", "Crayons", "Eraser", "Ruler"}, names(all))

	all, err = svc.List(ctx, product.Filter{Category: product.AllCategories})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	maths, err := svc.List(ctx, product.Filter{Category: "Mathematics"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Compass", "Ruler"}, names(maths))

	featured, err := svc.Featured(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlas", "Compass", "Crayons", "Eraser"}, names(featured))
}

func TestService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t)

	d := draft("Pencil Kit", "Writing", " 299.00 ")
	d.Stock = "12"
	created, err := svc.Create(ctx, d)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pencil Kit", got.Name)
	assert.True(t, decimal.NewFromInt(299).Equal(got.Price))
	assert.Equal(t, 12, got.Stock)
	assert.Empty(t, got.Description)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestService_EmptyDescriptionStoredAsNull(t *testing.T) {
	ctx := context.Background()
	svc, gw := newCatalog(t)

	created, err := svc.Create(ctx, draft("Ruler", "Mathematics", "20"))
	require.NoError(t, err)

	recs, err := gw.Select(ctx, gateway.Products, gateway.Query{Filter: gateway.Eq("id", created.ID)})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Has("description"))
	stock, err := recs[0].Int("stock")
	require.NoError(t, err)
	assert.Zero(t, stock)
}

func TestService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t)
	created, err := svc.Create(ctx, draft("Ruler", "Mathematics", "20"))
	require.NoError(t, err)

	d := product.FromProduct(*created)
	d.Price = "25.50"
	d.Description = "30 cm steel ruler"
	updated, err := svc.Update(ctx, created.ID, d)
	require.NoError(t, err)
	assert.False(t, updated.CreatedAt.IsZero())
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, "30 cm steel ruler", updated.Description)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.5").Equal(got.Price))
	assert.Equal(t, "30 cm steel ruler", got.Description)

	_, err = svc.Update(ctx, "missing", d)
	require.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.ErrorIs(t, svc.Delete(ctx, created.ID), product.ErrNotFound)
}

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name   string
		draft  product.Draft
		fields []string
	}{
		{
			name:   "all required missing",
			draft:  product.Draft{},
			fields: []string{"name", "price", "category", "image"},
		},
		{
			name:   "price not a number",
			draft:  product.Draft{Name: "x", Category: "Books", Image: "i", Price: "abc"},
			fields: []string{"price"},
		},
		{
			name:   "negative price",
			draft:  product.Draft{Name: "x", Category: "Books", Image: "i", Price: "-1"},
			fields: []string{"price"},
		},
		{
			name:   "bad stock",
			draft:  product.Draft{Name: "x", Category: "Books", Image: "i", Price: "1", Stock: "2.5"},
			fields: []string{"stock"},
		},
		{
			name:   "negative stock",
			draft:  product.Draft{Name: "x", Category: "Books", Image: "i", Price: "1", Stock: "-2"},
			fields: []string{"stock"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.draft.Validate()
			var vErr *form.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Len(t, vErr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, vErr.Fields, f)
			}
		})
	}
}

func TestService_CreateRejectsInvalidDraft(t *testing.T) {
	ctx := context.Background()
	svc, gw := newCatalog(t)

	_, err := svc.Create(ctx, product.Draft{Name: "x"})
	var vErr *form.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, gw.Len(gateway.Products))
}
