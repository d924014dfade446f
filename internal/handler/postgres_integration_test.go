//go:build integration

package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/schoolshop/internal/domain/auth"
	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/settings"
	"github.com/xenking/schoolshop/internal/storage/postgres"
	"github.com/xenking/schoolshop/internal/storage/sqlite"
	"github.com/xenking/schoolshop/internal/storefront"
)

// newPostgresEnv serves the API over a throwaway PostgreSQL container.
func newPostgresEnv(t *testing.T) *testEnv {
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

	pool, err := postgres.NewPool(ctx, fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.RunMigrations(ctx, pool))

	pepper := []byte("pepper")
	keys := postgres.NewAdminKeyRepository(pool)
	require.NoError(t, keys.Upsert(ctx, auth.AdminKey{ID: "default", KeyHash: auth.Hash(pepper, adminPassword), Name: "admin"}))

	gw := postgres.NewGateway(pool)
	catalog := product.NewService(product.NewGatewayRepository(gw))
	pencil, err := catalog.Create(ctx, product.Draft{Name: "Pencil Kit", Price: "299", Category: "Writing", Image: "p.png"})
	require.NoError(t, err)

	site := settings.NewStore(gw)
	require.NoError(t, site.EnsureDefaults(ctx))

	sessions, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	orderRepo := order.NewGatewayRepository(gw)
	h := NewHandler(HandlerConfig{}, catalog, order.NewService(orderRepo), site,
		storefront.NewRegistry(sessions, orderRepo, storefront.Config{}),
		auth.NewKeyChecker(keys, pepper),
	)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, pencil: pencil, handler: h}
}

func TestPostgres_Storefront(t *testing.T) {
	env := newPostgresEnv(t)
	shopper := env.browser()

	products := shopper.list("/api/products")
	require.Len(t, products, 1)

	shopper.addPencils("2")
	status, body := shopper.do(http.MethodPost, "/api/checkout", validCheckout)
	require.Equal(t, http.StatusCreated, status)
	placed := body["order"].(map[string]any)
	assert.Equal(t, 598.0, placed["total_amount"])
	id := placed["id"].(string)

	_, body = shopper.do(http.MethodGet, "/api/cart", "")
	assert.EqualValues(t, 0, body["total_items"])

	admin := env.browser()
	admin.login()
	orders := admin.list("/api/admin/orders")
	require.Len(t, orders, 1)
	stored := orders[0].(map[string]any)
	assert.Equal(t, "pending", stored["status"])
	items := stored["items"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].(map[string]any)["quantity"])

	status, body = admin.do(http.MethodPatch, "/api/admin/orders/"+id, `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed", body["status"])

	admin.do(http.MethodPut, "/api/session/edit-mode", `{"enabled":true}`)
	admin.do(http.MethodPost, "/api/settings/fields/shop_name/edit", "")
	admin.do(http.MethodPut, "/api/settings/fields/shop_name/draft", `{"value":"School Shop Pune"}`)
	status, _ = admin.do(http.MethodPost, "/api/settings/fields/shop_name/save", "")
	require.Equal(t, http.StatusOK, status)

	_, body = shopper.do(http.MethodGet, "/api/settings", "")
	assert.Equal(t, "School Shop Pune", body["shop_name"])
}
