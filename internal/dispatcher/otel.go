package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trackside/envstate/internal/dispatcher"

// instruments are the dispatcher's OTel metrics. They come from the global
// meter provider and are no-ops until one is installed.
type instruments struct {
	observers metric.Int64ObservableGauge
	delivered metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram
}

func newInstruments(observerCount func() int) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	in := &instruments{}

	var err error
	if in.observers, err = m.Int64ObservableGauge("dispatcher.observers",
		metric.WithDescription("Number of registered observers"),
	); err != nil {
		return nil, fmt.Errorf("creating observers gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(in.observers, int64(observerCount()))
		return nil
	}, in.observers); err != nil {
		return nil, fmt.Errorf("registering observers callback: %w", err)
	}

	if in.delivered, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Total events delivered to observers"),
	); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.failed, err = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Total events an observer returned an error for"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if in.latency, err = m.Float64Histogram("dispatcher.event.duration",
		metric.WithDescription("Time an observer spent on one event"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return in, nil
}

// record counts one delivery to the named observer.
func (in *instruments) record(name string, kind Kind, ms float64, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("observer", name),
		attribute.String("event", kind.String()),
	)
	in.latency.Record(ctx, ms, attrs)
	if err != nil {
		in.failed.Add(ctx, 1, attrs)
		return
	}
	in.delivered.Add(ctx, 1, attrs)
}
