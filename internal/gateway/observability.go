package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"gatescan/internal/scan"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider *sdktrace.TracerProvider
	ScanCounter   metric.Int64Counter
	RiskCounter   metric.Int64Counter
	BlockedTotal  metric.Int64Counter
	EarlyStops    metric.Int64Counter
	ScanBytes     metric.Int64Histogram
	ScanDuration  metric.Int64Histogram
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gatescan"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	scanCounter, _ := meter.Int64Counter("gatescan_scan_total")
	riskCounter, _ := meter.Int64Counter("gatescan_risk_level_total")
	blockedTotal, _ := meter.Int64Counter("gatescan_blocked_total")
	earlyStops, _ := meter.Int64Counter("gatescan_early_stop_total")
	scanBytes, _ := meter.Int64Histogram("gatescan_scan_bytes")
	scanDuration, _ := meter.Int64Histogram("gatescan_scan_duration_ms")
	return &Observability{
		Tracer:        tracer,
		Meter:         meter,
		traceProvider: tp,
		ScanCounter:   scanCounter,
		RiskCounter:   riskCounter,
		BlockedTotal:  blockedTotal,
		EarlyStops:    earlyStops,
		ScanBytes:     scanBytes,
		ScanDuration:  scanDuration,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

func (o *Observability) MarkScan(ctx context.Context, status string) {
	if o == nil {
		return
	}
	o.ScanCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) MarkResult(ctx context.Context, result scan.Result) {
	if o == nil {
		return
	}
	o.RiskCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", result.RiskLevel.String()),
	))
	if result.Blocked {
		o.BlockedTotal.Add(ctx, 1)
	}
	if result.TerminatedEarly {
		o.EarlyStops.Add(ctx, 1)
	}
	o.ScanBytes.Record(ctx, result.BytesScanned)
	o.ScanDuration.Record(ctx, result.ScanTimeMS, metric.WithAttributes(
		attribute.String("source_type", result.SourceType),
	))
}
