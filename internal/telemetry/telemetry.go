// Package telemetry installs the OpenTelemetry tracer provider used by the
// place server.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "place"

const exportTimeout = 10 * time.Second

// Target is a resolved OTLP collector address.
type Target struct {
	Protocol string // "grpc" or "http"
	Endpoint string // host:port
	Path     string
	Insecure bool
}

// ParseEndpoint resolves a collector address. A bare host or host:port means
// plaintext gRPC on port 4317 by default. grpc:// and grpcs:// select gRPC,
// http:// and https:// select OTLP over HTTP on port 4318 by default.
func ParseEndpoint(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("telemetry: empty endpoint")
	}
	if !strings.Contains(raw, "://") {
		endpoint := raw
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			endpoint = net.JoinHostPort(endpoint, "4317")
		}
		return Target{Protocol: "grpc", Endpoint: endpoint, Insecure: true}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("telemetry: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("telemetry: endpoint %q has no host", raw)
	}
	t := Target{
		Endpoint: u.Host,
		Path:     strings.TrimSuffix(u.Path, "/"),
	}
	switch strings.ToLower(u.Scheme) {
	case "grpc":
		t.Protocol, t.Insecure = "grpc", true
	case "grpcs":
		t.Protocol = "grpc"
	case "http":
		t.Protocol, t.Insecure = "http", true
	case "https":
		t.Protocol = "http"
	default:
		return Target{}, fmt.Errorf("telemetry: unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" {
		port := "4317"
		if t.Protocol == "http" {
			port = "4318"
		}
		t.Endpoint = net.JoinHostPort(u.Hostname(), port)
	}
	return t, nil
}

// Provider owns the installed tracer provider.
type Provider struct {
	tp     *sdktrace.TracerProvider
	target Target
	logger *slog.Logger
}

// Setup exports spans to the collector at endpoint and installs the provider
// globally. An empty endpoint leaves the global no-op provider in place and
// returns a Provider whose Shutdown does nothing.
func Setup(ctx context.Context, endpoint, version string, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telemetry")
	if strings.TrimSpace(endpoint) == "" {
		return &Provider{logger: logger}, nil
	}

	target, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch target.Protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(target.Endpoint),
			otlptracegrpc.WithTimeout(exportTimeout),
		}
		if target.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(target.Endpoint),
			otlptracehttp.WithTimeout(exportTimeout),
		}
		if target.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if target.Path != "" {
			opts = append(opts, otlptracehttp.WithURLPath(target.Path))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: start %s exporter: %w", target.Protocol, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("exporter error", "error", err)
	}))

	logger.Info("tracing enabled",
		"protocol", target.Protocol,
		"endpoint", target.Endpoint,
		"insecure", target.Insecure)
	return &Provider{tp: tp, target: target, logger: logger}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Target returns the collector the provider exports to.
func (p *Provider) Target() Target {
	return p.target
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	p.logger.Debug("tracing stopped")
	return nil
}
