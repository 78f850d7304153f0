package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records session-level measurements through an otel meter
// exported on the prometheus registry. A zero value records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	sessionCounter otelmetric.Int64Counter
	actionDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	sessionCounter, _ := meter.Int64Counter(
		"wizard.sessions",
		otelmetric.WithDescription("Wizard sessions by lifecycle event"),
	)

	actionDuration, _ := meter.Float64Histogram(
		"wizard.action.duration",
		otelmetric.WithDescription("Wizard action duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		sessionCounter: sessionCounter,
		actionDuration: actionDuration,
	}
}

// RecordSession counts a lifecycle event such as "created", "closed" or "expired".
func (o *Observability) RecordSession(ctx context.Context, event string) {
	if o == nil || o.sessionCounter == nil {
		return
	}
	o.sessionCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("event", event),
	))
}

func (o *Observability) RecordAction(ctx context.Context, action string, duration time.Duration, status string) {
	if o == nil || o.actionDuration == nil {
		return
	}
	o.actionDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
