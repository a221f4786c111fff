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
	transitions   metric.Int64Counter
	ledgerEntries metric.Int64Counter
	quotaAllowed  metric.Int64Counter
	quotaDenied   metric.Int64Counter
	paymentEvents metric.Int64Counter
	matchingRuns  metric.Int64Counter
	schedulerJobs metric.Int64Counter
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

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "counselhub"
	}
	meter := provider.Meter(name)

	transitions, err := meter.Int64Counter("counselhub_consultation_transitions_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("counselhub_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	quotaAllowed, err := meter.Int64Counter("counselhub_quota_allowed_total")
	if err != nil {
		return nil, err
	}
	quotaDenied, err := meter.Int64Counter("counselhub_quota_denied_total")
	if err != nil {
		return nil, err
	}
	paymentEvents, err := meter.Int64Counter("counselhub_payment_events_total")
	if err != nil {
		return nil, err
	}
	matchingRuns, err := meter.Int64Counter("counselhub_matching_runs_total")
	if err != nil {
		return nil, err
	}
	schedulerJobs, err := meter.Int64Counter("counselhub_scheduler_jobs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitions:   transitions,
		ledgerEntries: ledgerEntries,
		quotaAllowed:  quotaAllowed,
		quotaDenied:   quotaDenied,
		paymentEvents: paymentEvents,
		matchingRuns:  matchingRuns,
		schedulerJobs: schedulerJobs,
	}, nil
}

// RecordTransition increments consultation status transition counts.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_status", from),
		attribute.String("to_status", to),
	))
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, serviceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service_type", strings.TrimSpace(serviceType)),
	))
}

// RecordQuotaDecision increments quota allow/deny counts per action.
func (m *Metrics) RecordQuotaDecision(ctx context.Context, action string, allowed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("action", strings.TrimSpace(action)))
	if allowed {
		m.quotaAllowed.Add(ctx, 1, attrs)
		return
	}
	m.quotaDenied.Add(ctx, 1, attrs)
}

// RecordPaymentEvent increments gateway webhook event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	))
}

// RecordMatchingRun increments matching run counts.
func (m *Metrics) RecordMatchingRun(ctx context.Context, candidates int) {
	if m == nil {
		return
	}
	m.matchingRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("candidates", candidates),
	))
}

// RecordSchedulerJob increments background job run counts.
func (m *Metrics) RecordSchedulerJob(ctx context.Context, job string, success bool) {
	if m == nil {
		return
	}
	m.schedulerJobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.Bool("success", success),
	))
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
