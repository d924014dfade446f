//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/schoolshop/internal/domain/auth"
	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/settings"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestGateway_Postgres(t *testing.T) {
	pool := startPostgres(t)
	gw := NewGateway(pool)
	ctx := context.Background()

	t.Run("Catalog", func(t *testing.T) {
		catalog := product.NewService(product.NewGatewayRepository(gw))
		for _, d := range []product.Draft{
			{Name: "Ruler", Category: "Mathematics", Price: "20", Image: "r.png"},
			{Name: "Atlas", Category: "Books", Price: "150.50", Image: "a.png", Stock: "3"},
		} {
			_, err := catalog.Create(ctx, d)
			require.NoError(t, err)
		}
		all, err := catalog.List(ctx, product.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Atlas", all[0].Name)
		assert.True(t, decimal.RequireFromString("150.5").Equal(all[0].Price))
		assert.Equal(t, 3, all[0].Stock)
		assert.Empty(t, all[1].Description)

		require.NoError(t, catalog.Delete(ctx, all[1].ID))
		require.ErrorIs(t, catalog.Delete(ctx, all[1].ID), product.ErrNotFound)
	})

	t.Run("Orders", func(t *testing.T) {
		repo := order.NewGatewayRepository(gw)
		o := &order.Order{
			Customer:    order.Customer{Name: "A", Mobile: "9876543210", Address: "X, Chinchwad"},
			Items:       []order.Item{{ProductID: "p1", Name: "Pencil Kit", Price: decimal.NewFromInt(299), Quantity: 2}},
			TotalAmount: decimal.NewFromInt(598),
			Status:      order.StatusPending,
		}
		require.NoError(t, repo.Create(ctx, o))
		assert.False(t, o.CreatedAt.IsZero())

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(598).Equal(got.TotalAmount))
		require.Len(t, got.Items, 1)
		assert.Equal(t, 2, got.Items[0].Quantity)

		require.NoError(t, repo.UpdateStatus(ctx, o.ID, order.StatusDelivered))
		require.ErrorIs(t, repo.UpdateStatus(ctx, "missing", order.StatusDelivered), order.ErrNotFound)
	})

	t.Run("Settings", func(t *testing.T) {
		store := settings.NewStore(gw)
		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, settings.Defaults().ShopName, got.ShopName)

		updated, err := store.SaveField(ctx, settings.HeroTitle, "Back to School")
		require.NoError(t, err)
		got, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Back to School", got.HeroTitle)
		assert.WithinDuration(t, updated, got.UpdatedAt, time.Millisecond)
	})

	t.Run("AdminKeys", func(t *testing.T) {
		keys := NewAdminKeyRepository(pool)
		pepper := []byte("pepper")
		require.NoError(t, keys.Upsert(ctx, auth.AdminKey{ID: "k1", Name: "owner", KeyHash: auth.Hash(pepper, "s3cret")}))

		checker := auth.NewKeyChecker(keys, pepper)
		require.NoError(t, checker.Verify(ctx, "s3cret"))
		require.ErrorIs(t, checker.Verify(ctx, "wrong"), auth.ErrDenied)
	})

	t.Run("Errors", func(t *testing.T) {
		err := gw.Update(ctx, gateway.Orders, gateway.Record{"status": "shipped"}, gateway.Eq("id", "missing"))
		require.ErrorIs(t, err, gateway.ErrNotFound)
		_, err = gw.Insert(ctx, gateway.Products, gateway.Record{"id": "x"})
		require.Error(t, err)
		assert.True(t, gateway.IsGatewayError(err))
	})
}
