package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/schoolshop/internal/domain/auth"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/settings"
	"github.com/xenking/schoolshop/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		adminSecret  string
		keyPepper    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminSecret, "admin-secret", "", "admin password to seed (or SHOP_SEED_ADMIN_SECRET env)")
	flag.StringVar(&keyPepper, "admin-key-pepper", "", "HMAC pepper for admin key hashing (or SHOP_ADMIN_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminSecret == "" {
		adminSecret = os.Getenv("SHOP_SEED_ADMIN_SECRET")
	}
	if adminSecret == "" {
		slog.Error("admin secret is required: set --admin-secret or SHOP_SEED_ADMIN_SECRET")
		os.Exit(1)
	}
	if keyPepper == "" {
		keyPepper = os.Getenv("SHOP_ADMIN_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminSecret, keyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminSecret, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	gw := postgres.NewGateway(pool)

	slog.Info("writing default site settings")

	if err := settings.NewStore(gw).EnsureDefaults(ctx); err != nil {
		return errors.Wrap(err, "seed site settings")
	}

	if err := seedProducts(ctx, product.NewGatewayRepository(gw), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAdminKey(ctx, postgres.NewAdminKeyRepository(pool), adminSecret, pepper); err != nil {
		return errors.Wrap(err, "seed admin key")
	}

	return nil
}

// seedProduct is one entry of the products file: a product draft plus a
// fixed ID so reseeding updates instead of duplicating.
type seedProduct struct {
	ID    string
	Draft product.Draft
}

func readProducts(data []byte) ([]seedProduct, error) {
	var out []seedProduct
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var sp seedProduct
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				sp.ID, err = d.Str()
			case "name":
				sp.Draft.Name, err = d.Str()
			case "description":
				sp.Draft.Description, err = d.Str()
			case "price":
				sp.Draft.Price, err = text(d)
			case "category":
				sp.Draft.Category, err = d.Str()
			case "image":
				sp.Draft.Image, err = d.Str()
			case "stock":
				sp.Draft.Stock, err = text(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		out = append(out, sp)
		return nil
	})
	return out, err
}

// text reads a JSON number or string as text.
func text(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return d.Str()
}

func seedProducts(ctx context.Context, repo *product.GatewayRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	entries, err := readProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(entries)))

	for _, e := range entries {
		p, err := e.Draft.Validate()
		if err != nil {
			return errors.Wrapf(err, "product %s", e.ID)
		}
		p.ID = e.ID

		_, err = repo.GetByID(ctx, p.ID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			err = repo.Create(ctx, &p)
		case err == nil:
			err = repo.Update(ctx, &p)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAdminKey(ctx context.Context, keys *postgres.AdminKeyRepository, secret, pepper string) error {
	slog.Info("seeding admin key")

	key := auth.AdminKey{
		ID:      "default",
		KeyHash: auth.Hash([]byte(pepper), secret),
		Name:    "Default admin",
	}
	if err := keys.Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "upsert admin key")
	}

	slog.Info("upserted admin key", slog.String("id", key.ID), slog.String("name", key.Name))

	return nil
}
