package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/config"
)

// InstrumentationName names the tracer used across the host.
const InstrumentationName = "github.com/BaSui01/mtplugins"

// Providers holds the SDK providers. Both are nil when telemetry is off.
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Init installs global OTLP gRPC providers when cfg.Enabled; otherwise it
// returns noop Providers and leaves the globals alone.
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(Version()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Providers{tp: tp, mp: mp}, nil
}

// Shutdown flushes pending spans and metrics. Safe on nil or noop Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns the host tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Meter returns the host meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Instruments 通过 OTLP 导出的翻译指标
type Instruments struct {
	translations metric.Int64Counter
	duration     metric.Float64Histogram
	cacheHits    metric.Int64Counter
}

// NewInstruments creates the translation instruments on Meter(). Instruments
// created before Init delegate to the provider installed later.
func NewInstruments() (*Instruments, error) {
	meter := Meter()
	in := &Instruments{}

	var err error
	in.translations, err = meter.Int64Counter("mtplugins.translation.total",
		metric.WithDescription("Total number of translations"),
		metric.WithUnit("{translation}"))
	if err != nil {
		return nil, err
	}

	in.duration, err = meter.Float64Histogram("mtplugins.translation.duration",
		metric.WithDescription("Translation duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	in.cacheHits, err = meter.Int64Counter("mtplugins.cache.hit.total",
		metric.WithDescription("Translations served from the result cache"),
		metric.WithUnit("{hit}"))
	if err != nil {
		return nil, err
	}
	return in, nil
}

// RecordTranslation records one finished translation. A nil receiver is a no-op.
func (in *Instruments) RecordTranslation(ctx context.Context, pluginID, status string, d time.Duration) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("plugin.id", pluginID),
		attribute.String("status", status),
	)
	in.translations.Add(ctx, 1, attrs)
	in.duration.Record(ctx, d.Seconds(), attrs)
	if status == "cached" {
		in.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin.id", pluginID)))
	}
}

// Version extracts the module version from build info, "dev" if unknown.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
