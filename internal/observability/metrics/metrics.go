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

// Metrics holds the OTLP-exported instruments for account lifecycle events.
type Metrics struct {
	registrations metric.Int64Counter
	teamChanges   metric.Int64Counter
	notifications metric.Int64Counter
	queueDepth    metric.Int64UpDownCounter
}

// NewProvider configures and registers the meter provider. When export is
// disabled a noop provider is installed so instruments stay usable.
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "complytics"
	}
	meter := provider.Meter(name)

	registrations, err := meter.Int64Counter("complytics_registrations_total",
		metric.WithDescription("Registration workflow transitions by stage"))
	if err != nil {
		return nil, err
	}
	teamChanges, err := meter.Int64Counter("complytics_team_changes_total",
		metric.WithDescription("Team roster mutations by operation"))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("complytics_notifications_total",
		metric.WithDescription("Notification deliveries by template and outcome"))
	if err != nil {
		return nil, err
	}
	queueDepth, err := meter.Int64UpDownCounter("complytics_notification_queue_depth")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registrations: registrations,
		teamChanges:   teamChanges,
		notifications: notifications,
		queueDepth:    queueDepth,
	}, nil
}

func (m *Metrics) RecordRegistration(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("stage", strings.TrimSpace(stage)),
	)...))
}

func (m *Metrics) RecordTeamChange(ctx context.Context, operation string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.teamChanges.Add(ctx, count, metric.WithAttributes(FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
	)...))
}

func (m *Metrics) RecordNotification(ctx context.Context, template, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("template", strings.TrimSpace(template)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

// AdjustQueueDepth tracks messages waiting for a delivery worker.
func (m *Metrics) AdjustQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
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

// Labels are bounded enums only. Emails, user ids and org ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"stage":       {},
	"operation":   {},
	"template":    {},
	"outcome":     {},
	"role":        {},
	"status_code": {},
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
