package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/siteprobe/siteprobe/pkg/defaults"
	"github.com/siteprobe/siteprobe/pkg/duration"
	"github.com/siteprobe/siteprobe/pkg/output/dispatcher"
	"github.com/siteprobe/siteprobe/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports one root span per scan to an OpenTelemetry
// collector, with phase transitions and probe outcomes as span events.
// Scans run concurrently, so active spans are tracked per scan ID.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu     sync.Mutex
	spans  map[string]trace.Span
	closed bool
}

// OTelOptions configures the OpenTelemetry hook.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "siteprobe").
	ServiceName string

	// Insecure uses a plaintext connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter connection setup (default: 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates the hook and connects the OTLP exporter.
// Exporter hiccups after setup are handled by the batch processor and
// never block scans.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.ServerShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.DialTimeout
	}

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "scanner"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("siteprobe/scanner"),
		spans:          make(map[string]trace.Span),
	}, nil
}

// OnEvent maps lifecycle events onto the scan's span.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartedEvent:
		h.handleStarted(ctx, e)
	case *events.PhaseEvent:
		h.addEvent(e.Scan, "phase", attribute.String("phase", e.Phase), attribute.Int("progress_percent", e.Progress))
	case *events.ProbeEvent:
		attrs := []attribute.KeyValue{
			attribute.String("probe", e.Probe),
			attribute.Int("findings", e.Findings),
		}
		if e.Error != "" {
			attrs = append(attrs, attribute.String("error", e.Error))
		}
		h.addEvent(e.Scan, "probe_settled", attrs...)
	case *events.CompletedEvent:
		h.handleCompleted(e)
	case *events.FailedEvent:
		h.endSpan(e.Scan, codes.Error, e.Error)
	case *events.RejectedEvent:
		h.endSpan(e.Scan, codes.Error, "target rejected: "+e.Reason)
	}
	return nil
}

// handleStarted opens the root span for a scan.
func (h *OTelHook) handleStarted(ctx context.Context, e *events.StartedEvent) {
	_, span := h.tracer.Start(ctx, "siteprobe.scan",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scan_id", e.Scan),
			attribute.String("target", e.Target),
		),
	)
	h.spans[e.Scan] = span
}

// handleCompleted stamps the report headline on the span and ends it.
func (h *OTelHook) handleCompleted(e *events.CompletedEvent) {
	span, ok := h.spans[e.Scan]
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.Int("report.score", e.Score),
		attribute.String("report.grade", e.Grade),
		attribute.Int("report.total_issues", e.TotalIssues),
		attribute.Int("report.probe_errors", e.ProbeErrors),
		attribute.Float64("scan.duration_sec", e.DurationSec),
	)
	span.SetStatus(codes.Ok, "scan completed")
	span.End()
	delete(h.spans, e.Scan)
}

// addEvent attaches a span event to the scan's root span, if tracked.
func (h *OTelHook) addEvent(scanID, name string, attrs ...attribute.KeyValue) {
	if span, ok := h.spans[scanID]; ok {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// endSpan finalizes a span with the given status.
func (h *OTelHook) endSpan(scanID string, code codes.Code, description string) {
	span, ok := h.spans[scanID]
	if !ok {
		return
	}
	span.SetStatus(code, description)
	span.End()
	delete(h.spans, scanID)
}

// EventTypes returns nil: the hook inspects every lifecycle event.
func (h *OTelHook) EventTypes() []events.EventType { return nil }

// Close ends any still-open spans and flushes the tracer provider.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for id, span := range h.spans {
		span.SetStatus(codes.Error, "shutdown before scan finished")
		span.End()
		delete(h.spans, id)
	}

	if h.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()
		if err := h.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("otel: shutdown tracer provider: %w", err)
		}
	}
	return nil
}

// Endpoint returns the configured OTLP endpoint.
func (h *OTelHook) Endpoint() string { return h.opts.Endpoint }
