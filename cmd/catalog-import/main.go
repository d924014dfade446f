package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/storage/memory"
	"github.com/xenking/schoolshop/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineBytes  = 1 << 20
)

func main() {
	var (
		dataDir     string
		databaseURL string
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson.gz product feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 100_000, "expected number of distinct products, sizes the dedupe filter")
	flag.BoolVar(&dryRun, "dry-run", false, "decode and validate feeds without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, expected, dryRun); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, expected uint, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.ndjson.gz feeds in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("decoding feeds", slog.Int("files", len(files)))

	feeds, err := decodeFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "decode feeds")
	}

	gw, closeGateway, err := openGateway(ctx, databaseURL, dryRun)
	if err != nil {
		return err
	}
	defer closeGateway()

	catalog := product.NewService(product.NewGatewayRepository(gw))
	existing, err := catalog.List(ctx, product.Filter{})
	if err != nil {
		return errors.Wrap(err, "list existing products")
	}
	dedup := newDeduper(expected+uint(len(existing)), gw)
	dedup.load(existing)
	slog.Info("existing catalog loaded", slog.Int("products", len(existing)))

	st := importProducts(ctx, catalog, feeds, dedup)
	slog.Info("import finished", append(st.attrs(), slog.Int("filter_false_positives", dedup.falsePositives), slog.Bool("dry_run", dryRun))...)
	if st.failed > 0 {
		return errors.Errorf("%d products failed to import", st.failed)
	}
	return ctx.Err()
}

// openGateway connects to PostgreSQL. A dry run imports into an in-memory
// gateway instead, so nothing is written.
func openGateway(ctx context.Context, databaseURL string, dryRun bool) (gateway.Gateway, func(), error) {
	if dryRun {
		return memory.New(), func() {}, nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to database")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return postgres.NewGateway(pool), pool.Close, nil
}

// feedLine is one decoded product line.
type feedLine struct {
	file  string
	line  int
	draft product.Draft
	err   error
}

// decodeFeeds decodes every file concurrently. Results keep file order.
func decodeFeeds(ctx context.Context, files []string) ([][]feedLine, error) {
	feeds := make([][]feedLine, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			lines, err := decodeFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "decode %s", path)
			}
			slog.Info("feed decoded", slog.String("file", path), slog.Int("lines", len(lines)))
			feeds[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

func decodeFile(ctx context.Context, path string) ([]feedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var out []feedLine
	err = decodeFeed(ctx, gz, func(line int, d product.Draft, err error) {
		out = append(out, feedLine{file: filepath.Base(path), line: line, draft: d, err: err})
	})
	return out, err
}

// decodeFeed calls fn for every non-blank NDJSON line of r. Malformed lines
// are reported through fn, not returned.
func decodeFeed(ctx context.Context, r io.Reader, fn func(line int, d product.Draft, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		d, err := decodeDraft(raw)
		fn(n, d, err)
	}
	return scanner.Err()
}

func decodeDraft(raw []byte) (product.Draft, error) {
	var d product.Draft
	err := jx.DecodeBytes(raw).Obj(func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			d.Name, err = text(dec)
		case "description":
			d.Description, err = text(dec)
		case "price":
			d.Price, err = text(dec)
		case "category":
			d.Category, err = text(dec)
		case "image":
			d.Image, err = text(dec)
		case "stock":
			d.Stock, err = text(dec)
		default:
			err = dec.Skip()
		}
		return err
	})
	return d, err
}

// text reads a string, number or null as text.
func text(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

// deduper tracks (category, name) pairs already in the catalog. Only the
// bloom filter is kept in memory; a positive is confirmed against the
// gateway, so false positives never drop a product.
type deduper struct {
	filter         *bloom.BloomFilter
	gw             gateway.Gateway
	falsePositives int
}

func newDeduper(expected uint, gw gateway.Gateway) *deduper {
	return &deduper{
		filter: bloom.NewWithEstimates(max(expected, 1), bloomFPR),
		gw:     gw,
	}
}

func dedupKey(name, category string) string {
	return strings.ToLower(strings.TrimSpace(category)) + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

func (d *deduper) load(products []product.Product) {
	for _, p := range products {
		d.add(p)
	}
}

func (d *deduper) add(p product.Product) {
	d.filter.AddString(dedupKey(p.Name, p.Category))
}

// exists reports whether the catalog already has a product with p's name in
// p's category. Names compare case-insensitively.
func (d *deduper) exists(ctx context.Context, p product.Product) (bool, error) {
	if !d.filter.TestString(dedupKey(p.Name, p.Category)) {
		return false, nil
	}
	recs, err := d.gw.Select(ctx, gateway.Products, gateway.Query{
		Filter: gateway.Eq("category", p.Category),
	})
	if err != nil {
		return false, errors.Wrap(err, "confirm duplicate")
	}
	for _, rec := range recs {
		if strings.EqualFold(strings.TrimSpace(rec.String("name")), p.Name) {
			return true, nil
		}
	}
	d.falsePositives++
	return false, nil
}

// creator is the catalog write used by the import.
type creator interface {
	Create(ctx context.Context, d product.Draft) (*product.Product, error)
}

type stats struct {
	imported, duplicates, invalid, failed int
}

func (s stats) attrs() []any {
	return []any{
		slog.Int("imported", s.imported),
		slog.Int("duplicates", s.duplicates),
		slog.Int("invalid", s.invalid),
		slog.Int("failed", s.failed),
	}
}

// importProducts validates and creates every product not already in the
// catalog.
func importProducts(ctx context.Context, catalog creator, feeds [][]feedLine, dedup *deduper) stats {
	var st stats
	for _, lines := range feeds {
		for _, l := range lines {
			if ctx.Err() != nil {
				return st
			}
			if l.err != nil {
				st.invalid++
				slog.Warn("malformed line", slog.String("file", l.file), slog.Int("line", l.line), slog.String("error", l.err.Error()))
				continue
			}
			p, err := l.draft.Validate()
			if err != nil {
				st.invalid++
				slog.Warn("invalid product", slog.String("file", l.file), slog.Int("line", l.line), slog.String("error", err.Error()))
				continue
			}
			dup, err := dedup.exists(ctx, p)
			if err != nil {
				st.failed++
				slog.Error("check duplicate", slog.String("file", l.file), slog.Int("line", l.line), slog.String("error", err.Error()))
				continue
			}
			if dup {
				st.duplicates++
				continue
			}
			if _, err := catalog.Create(ctx, l.draft); err != nil {
				st.failed++
				slog.Error("create product", slog.String("file", l.file), slog.Int("line", l.line), slog.String("error", err.Error()))
				continue
			}
			dedup.add(p)
			st.imported++
			if st.imported%progressEvery == 0 {
				slog.Info("import progress", slog.Int("imported", st.imported))
			}
		}
	}
	return st
}
