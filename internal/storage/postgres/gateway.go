package postgres

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/schoolshop/internal/domain/gateway"
)

// table describes the columns a collection exposes. Only listed columns may
// appear in filters, sorts and writes.
type table struct {
	columns []string
	// json columns are read back as text.
	json []string
}

var tables = map[gateway.Collection]table{
	gateway.Products: {
		columns: []string{"id", "name", "description", "price", "category", "image", "stock", "created_at"},
	},
	gateway.Orders: {
		columns: []string{"id", "customer_name", "customer_mobile", "customer_address", "items", "total_amount", "status", "created_at"},
		json:    []string{"items"},
	},
	gateway.SiteSettings: {
		columns: []string{"id", "hero_title", "hero_subtitle", "shop_name", "contact_phone", "contact_address", "updated_at"},
	},
}

func (t table) has(col string) bool {
	return slices.Contains(t.columns, col)
}

func (t table) selectList() string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if slices.Contains(t.json, c) {
			cols[i] = c + "::text AS " + c
		} else {
			cols[i] = c
		}
	}
	return strings.Join(cols, ", ")
}

var _ gateway.Gateway = (*Gateway)(nil)

// Gateway implements gateway.Gateway with parameterized SQL.
type Gateway struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTracerProvider enables a span per gateway operation.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		g.tracer = tp.Tracer("github.com/xenking/schoolshop/internal/storage/postgres")
	}
}

// NewGateway returns a Gateway that uses the given pool.
func NewGateway(pool *pgxpool.Pool, opts ...Option) *Gateway {
	g := &Gateway{
		pool:   pool,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Select runs a SELECT built from q.
func (g *Gateway) Select(ctx context.Context, c gateway.Collection, q gateway.Query) (_ []gateway.Record, rerr error) {
	ctx, span := g.start(ctx, "select", c)
	defer func() { end(span, rerr) }()

	sql, args, err := buildSelect(c, q)
	if err != nil {
		return nil, gateway.Wrap("select", c, err)
	}
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, gateway.Wrap("select", c, err)
	}
	recs, err := pgx.CollectRows(rows, collectRecord)
	if err != nil {
		return nil, gateway.Wrap("select", c, err)
	}
	return recs, nil
}

// Insert runs an INSERT and returns the stored row.
func (g *Gateway) Insert(ctx context.Context, c gateway.Collection, rec gateway.Record) (_ gateway.Record, rerr error) {
	ctx, span := g.start(ctx, "insert", c)
	defer func() { end(span, rerr) }()

	sql, args, err := buildInsert(c, rec)
	if err != nil {
		return nil, gateway.Wrap("insert", c, err)
	}
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, gateway.Wrap("insert", c, err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, collectRecord)
	if err != nil {
		return nil, gateway.Wrap("insert", c, err)
	}
	return stored, nil
}

// Update runs an UPDATE. Matching no rows yields gateway.ErrNotFound.
func (g *Gateway) Update(ctx context.Context, c gateway.Collection, patch gateway.Record, f gateway.Filter) (rerr error) {
	ctx, span := g.start(ctx, "update", c)
	defer func() { end(span, rerr) }()

	sql, args, err := buildUpdate(c, patch, f)
	if err != nil {
		return gateway.Wrap("update", c, err)
	}
	tag, err := g.pool.Exec(ctx, sql, args...)
	if err != nil {
		return gateway.Wrap("update", c, err)
	}
	if tag.RowsAffected() == 0 {
		return gateway.Wrap("update", c, gateway.ErrNotFound)
	}
	return nil
}

// Delete runs a DELETE. Matching no rows yields gateway.ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, c gateway.Collection, f gateway.Filter) (rerr error) {
	ctx, span := g.start(ctx, "delete", c)
	defer func() { end(span, rerr) }()

	t, ok := tables[c]
	if !ok {
		return gateway.Wrap("delete", c, errors.Errorf("unknown collection %q", c))
	}
	where, args, err := buildWhere(t, f, nil)
	if err != nil {
		return gateway.Wrap("delete", c, err)
	}
	tag, err := g.pool.Exec(ctx, "DELETE FROM "+string(c)+where, args...)
	if err != nil {
		return gateway.Wrap("delete", c, err)
	}
	if tag.RowsAffected() == 0 {
		return gateway.Wrap("delete", c, gateway.ErrNotFound)
	}
	return nil
}

func (g *Gateway) start(ctx context.Context, op string, c gateway.Collection) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.collection.name", string(c)),
		),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func collectRecord(row pgx.CollectableRow) (gateway.Record, error) {
	vals, err := row.Values()
	if err != nil {
		return nil, err
	}
	fields := row.FieldDescriptions()
	rec := make(gateway.Record, len(fields))
	for i, fd := range fields {
		rec[fd.Name] = vals[i]
	}
	return rec, nil
}

func buildSelect(c gateway.Collection, q gateway.Query) (string, []any, error) {
	t, ok := tables[c]
	if !ok {
		return "", nil, errors.Errorf("unknown collection %q", c)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(t.selectList())
	b.WriteString(" FROM ")
	b.WriteString(string(c))

	where, args, err := buildWhere(t, q.Filter, nil)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(where)

	if q.Order != nil {
		if !t.has(q.Order.Field) {
			return "", nil, errors.Errorf("unknown sort field %q", q.Order.Field)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(q.Order.Field)
		if q.Order.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	return b.String(), args, nil
}

func buildInsert(c gateway.Collection, rec gateway.Record) (string, []any, error) {
	t, ok := tables[c]
	if !ok {
		return "", nil, errors.Errorf("unknown collection %q", c)
	}
	cols, args, err := writeColumns(t, rec)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, errors.New("empty record")
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		c, strings.Join(cols, ", "), strings.Join(placeholders, ", "), t.selectList())
	return sql, args, nil
}

func buildUpdate(c gateway.Collection, patch gateway.Record, f gateway.Filter) (string, []any, error) {
	t, ok := tables[c]
	if !ok {
		return "", nil, errors.Errorf("unknown collection %q", c)
	}
	cols, args, err := writeColumns(t, patch)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, errors.New("empty patch")
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = $" + strconv.Itoa(i+1)
	}
	where, args, err := buildWhere(t, f, args)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + string(c) + " SET " + strings.Join(sets, ", ") + where, args, nil
}

// buildWhere appends the filter's values to args and returns the clause.
func buildWhere(t table, f gateway.Filter, args []any) (string, []any, error) {
	if len(f) == 0 {
		return "", args, nil
	}
	conds := make([]string, len(f))
	for i, cond := range f {
		if !t.has(cond.Field) {
			return "", nil, errors.Errorf("unknown filter field %q", cond.Field)
		}
		if cond.Value == nil {
			conds[i] = cond.Field + " IS NULL"
			continue
		}
		args = append(args, cond.Value)
		conds[i] = cond.Field + " = $" + strconv.Itoa(len(args))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// writeColumns returns the record's columns in table order with their values.
func writeColumns(t table, rec gateway.Record) ([]string, []any, error) {
	for k := range rec {
		if !t.has(k) {
			return nil, nil, errors.Errorf("unknown field %q", k)
		}
	}
	var (
		cols []string
		args []any
	)
	for _, col := range t.columns {
		v, ok := rec[col]
		if !ok {
			continue
		}
		if b, isBytes := v.([]byte); isBytes && slices.Contains(t.json, col) {
			v = string(b)
		}
		cols = append(cols, col)
		args = append(args, v)
	}
	return cols, args, nil
}
