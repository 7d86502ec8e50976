package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures Tracer, grounded on the teacher's
// internal/observability.TraceConfig, trimmed to the fields this kernel
// needs (no per-field Attributes map, since every span here already
// carries its own tool/session attributes explicitly).
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP/gRPC collector address. Empty disables
	// export; spans are still created (so span-scoped code paths never
	// need a nil check) but dropped rather than shipped anywhere.
	Endpoint       string
	SamplingRate   float64
	EnableInsecure bool
}

// Tracer wraps an otel.Tracer with the kernel-iteration/tool-call span
// helpers spec.md's DOMAIN STACK calls for, grounded on the teacher's
// internal/observability.Tracer, trimmed to RecordError/
// KernelIteration/ToolCall (the teacher's generic StartSpan/AddEvent/
// SetAttributes helpers are absorbed into those two call sites since
// this kernel has exactly two span kinds, not an open-ended set).
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer returns a Tracer and a shutdown func to call on process
// exit. An empty Endpoint (or an exporter that fails to start) yields a
// tracer from the global OpenTelemetry provider, which is a no-op unless
// a provider was installed: spans are neither recorded nor exported, but
// span-handling code still runs without nil checks, matching the
// teacher's no-op fallback for unconfigured deployments.
func NewTracer(cfg TraceConfig) (*Tracer, func(context.Context) error) {
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(serviceNameOrDefault(cfg.ServiceName))}, func(context.Context) error { return nil }
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 1.0
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.EnableInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return &Tracer{tracer: otel.Tracer(serviceNameOrDefault(cfg.ServiceName))}, func(context.Context) error { return nil }
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceNameOrDefault(cfg.ServiceName)),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(serviceNameOrDefault(cfg.ServiceName))}, provider.Shutdown
}

func serviceNameOrDefault(name string) string {
	if name == "" {
		return "agentkernel"
	}
	return name
}

// KernelIteration starts a span covering one PLAN/EVALUATE/EXECUTE
// iteration of the kernel's state machine (spec.md §4.9).
func (t *Tracer) KernelIteration(ctx context.Context, sessionID string, iteration int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "kernel.iteration", trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Int("iteration", iteration),
		))
}

// ToolCall starts a span covering one Executor invocation of a single
// tool (spec.md §4.8).
func (t *Tracer) ToolCall(ctx context.Context, toolName, userID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tool.call", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tool_name", toolName),
			attribute.String("user_id", userID),
		))
}

// RecordError records err on span and marks the span as failed, unless
// err is nil (in which case the span is marked successful).
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
