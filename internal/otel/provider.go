// Package otel sets up the OpenTelemetry log and metric pipelines of an
// envstate run.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var errNoExporter = errors.New("OTel enabled but no log writer or endpoint configured")

// Config holds OTel configuration. LogWriter is required unless Endpoint is set.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	BatchTimeout   time.Duration
	LogWriter      io.Writer
	Endpoint       string
	Insecure       bool

	// MetricInterval is how often dispatcher and recorder metrics are
	// written to LogWriter. Zero disables metric export.
	MetricInterval time.Duration
}

// Provider owns the log and meter providers. The zero value of a disabled
// Provider is usable and does nothing.
type Provider struct {
	cfg    Config
	logs   *sdklog.LoggerProvider
	meters *sdkmetric.MeterProvider
}

// New builds the providers described by cfg. When metric export is on, the
// meter provider is also installed globally so otel.Meter callers report
// through it.
func New(cfg Config) (*Provider, error) {
	p := &Provider{cfg: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("envstate.session", time.Now().UTC().Format(time.RFC3339)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	processors, err := logProcessors(cfg)
	if err != nil {
		return nil, err
	}
	if len(processors) == 0 {
		return nil, errNoExporter
	}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, proc := range processors {
		logOpts = append(logOpts, sdklog.WithProcessor(proc))
	}
	p.logs = sdklog.NewLoggerProvider(logOpts...)

	if cfg.MetricInterval > 0 && cfg.LogWriter != nil {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.LogWriter))
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		p.meters = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.MetricInterval))),
		)
		otel.SetMeterProvider(p.meters)
	}

	return p, nil
}

// logProcessors batches records to the log file and, when an endpoint is
// set, to an OTLP collector.
func logProcessors(cfg Config) ([]sdklog.Processor, error) {
	var out []sdklog.Processor
	batch := func(exp sdklog.Exporter) sdklog.Processor {
		return sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))
	}

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		out = append(out, batch(exp))
	}

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		out = append(out, batch(exp))
	}
	return out, nil
}

// LoggerProvider returns the log provider for the otelslog bridge, or nil
// when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a meter from this provider when metrics are exported, and
// from the global provider otherwise.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meters != nil {
		return p.meters.Meter(name)
	}
	return otel.Meter(name)
}

// Flush exports everything pending, e.g. when an episode ends.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	if p.logs != nil {
		if err := p.logs.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush failed: %w", err))
		}
	}
	if p.meters != nil {
		if err := p.meters.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric flush failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meters != nil {
		if err := p.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown failed: %w", err))
		}
	}
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled.
func (p *Provider) Enabled() bool {
	return p.cfg.Enabled
}

// MetricsEnabled returns whether metrics are being exported.
func (p *Provider) MetricsEnabled() bool {
	return p.meters != nil
}
