package checkout

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/schoolshop/internal/domain/order"
)

// Metrics counts checkout outcomes. A nil *Metrics records nothing.
type Metrics struct {
	submissions metric.Int64Counter
	revenue     metric.Float64Counter
}

// NewMetrics registers the checkout instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	submissions, err := meter.Int64Counter("checkout.submissions",
		metric.WithDescription("Checkout submissions by outcome"),
	)
	if err != nil {
		return nil, err
	}
	revenue, err := meter.Float64Counter("checkout.revenue",
		metric.WithDescription("Total amount of placed orders"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{submissions: submissions, revenue: revenue}, nil
}

func (m *Metrics) succeeded(ctx context.Context, o *order.Order) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "succeeded")))
	m.revenue.Add(ctx, o.TotalAmount.InexactFloat64())
}

func (m *Metrics) failed(ctx context.Context) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
}

func (m *Metrics) rejected(ctx context.Context) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "in_flight")))
}
