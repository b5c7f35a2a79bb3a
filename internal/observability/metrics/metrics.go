package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	resolutions        metric.Int64Counter
	resolutionDegraded metric.Int64Counter
	overrideWrites     metric.Int64Counter
	overrideConflicts  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "faretable"
	}
	meter := provider.Meter(name)

	resolutions, err := meter.Int64Counter("faretable_resolutions_total")
	if err != nil {
		return nil, err
	}
	resolutionDegraded, err := meter.Int64Counter("faretable_resolution_degraded_total")
	if err != nil {
		return nil, err
	}
	overrideWrites, err := meter.Int64Counter("faretable_override_writes_total")
	if err != nil {
		return nil, err
	}
	overrideConflicts, err := meter.Int64Counter("faretable_override_conflicts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		resolutions:        resolutions,
		resolutionDegraded: resolutionDegraded,
		overrideWrites:     overrideWrites,
		overrideConflicts:  overrideConflicts,
	}, nil
}

// RecordResolution counts a completed price resolution.
func (m *Metrics) RecordResolution(ctx context.Context, strategy string, withClient bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("strategy", strings.TrimSpace(strategy)),
		attribute.Bool("with_client", withClient),
	)
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordResolutionDegraded counts a resolution that swallowed a store failure.
func (m *Metrics) RecordResolutionDegraded(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("stage", strings.TrimSpace(stage)))
	m.resolutionDegraded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOverrideWrite counts applied override batches.
func (m *Metrics) RecordOverrideWrite(ctx context.Context, applied, closed int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.Int("applied", applied),
		attribute.Int("closed", closed),
	)
	m.overrideWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOverrideConflict counts write batches rejected by the exclusivity index.
func (m *Metrics) RecordOverrideConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.overrideConflicts.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"strategy":    {},
	"stage":       {},
	"with_client": {},
	"endpoint":    {},
	"status_code": {},
	"applied":     {},
	"closed":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
