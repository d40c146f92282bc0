package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/chainkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// Enabled turns metric export on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `mapstructure:"environment" yaml:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,hostname_port"`
	// Insecure allows insecure connections (for development).
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments of the chain engine and the stream pump.
// All Record methods are safe on a nil receiver.
type Metrics struct {
	items           metric.Int64Counter
	emitted         metric.Int64Counter
	processDuration metric.Float64Histogram
	flushes         metric.Int64Counter
	stops           metric.Int64Counter
	stageErrors     metric.Int64Counter
	pauses          metric.Int64Counter
	delivered       metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	items, err := meter.Int64Counter("chain.items",
		metric.WithDescription("Items submitted to a pipeline"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.items counter: %w", err)
	}

	emitted, err := meter.Int64Counter("chain.emitted",
		metric.WithDescription("Terminal emissions handed to a collector"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.emitted counter: %w", err)
	}

	processDuration, err := meter.Float64Histogram("chain.process.duration",
		metric.WithDescription("Duration of one item dispatch in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.process.duration histogram: %w", err)
	}

	flushes, err := meter.Int64Counter("chain.flushes",
		metric.WithDescription("Pipeline flushes triggered by end-of-input or stop"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.flushes counter: %w", err)
	}

	stops, err := meter.Int64Counter("chain.stops",
		metric.WithDescription("Stop signals raised by stages"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.stops counter: %w", err)
	}

	stageErrors, err := meter.Int64Counter("chain.stage_errors",
		metric.WithDescription("Errors raised by stages or rejected deferred values"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.stage_errors counter: %w", err)
	}

	pauses, err := meter.Int64Counter("stream.pauses",
		metric.WithDescription("Times a stream paused on a saturated consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.pauses counter: %w", err)
	}

	delivered, err := meter.Int64Counter("stream.delivered",
		metric.WithDescription("Values delivered to a stream consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.delivered counter: %w", err)
	}

	return &Metrics{
		items:           items,
		emitted:         emitted,
		processDuration: processDuration,
		flushes:         flushes,
		stops:           stops,
		stageErrors:     stageErrors,
		pauses:          pauses,
		delivered:       delivered,
	}, nil
}

// RecordItem records one processed item and the number of values it emitted.
func (m *Metrics) RecordItem(ctx context.Context, pipe, status string, emitted int, duration time.Duration) {
	if m == nil {
		return
	}
	m.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe", pipe),
		attribute.String("status", status),
	))
	attrs := metric.WithAttributes(attribute.String("pipe", pipe))
	if emitted > 0 {
		m.emitted.Add(ctx, int64(emitted), attrs)
	}
	m.processDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFlush records a flush and the number of values it emitted.
func (m *Metrics) RecordFlush(ctx context.Context, pipe string, emitted int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("pipe", pipe))
	m.flushes.Add(ctx, 1, attrs)
	if emitted > 0 {
		m.emitted.Add(ctx, int64(emitted), attrs)
	}
}

// RecordStop records a Stop signal.
func (m *Metrics) RecordStop(ctx context.Context, pipe string) {
	if m == nil {
		return
	}
	m.stops.Add(ctx, 1, metric.WithAttributes(attribute.String("pipe", pipe)))
}

// RecordStageError records a failed stage.
func (m *Metrics) RecordStageError(ctx context.Context, pipe string, stage int) {
	if m == nil {
		return
	}
	m.stageErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipe", pipe),
		attribute.Int("stage", stage),
	))
}

// RecordPause records a stream pausing on a saturated consumer.
func (m *Metrics) RecordPause(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.pauses.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", stream)))
}

// RecordDelivered records one value handed to a stream consumer.
func (m *Metrics) RecordDelivered(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", stream)))
}
