package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ExporterNone     = "none"
	ExporterOTLPGRPC = "grpc"
	ExporterOTLPHTTP = "http"
)

// ProviderConfig selects how spans leave the process.
type ProviderConfig struct {
	ServiceName string
	// Exporter is one of "none", "grpc" or "http"
	Exporter string
	Endpoint string
	Insecure bool
	Timeout  time.Duration
}

// NewProvider builds an SDK tracer provider, installs it globally and sets
// the package tracer. Callers must Shutdown the returned provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	var opts []sdktrace.TracerProviderOption

	switch cfg.Exporter {
	case "", ExporterNone:
	case ExporterOTLPGRPC:
		exp, err := otlptracegrpc.New(ctx, grpcOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp grpc exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	case ExporterOTLPHTTP:
		exp, err := otlptracehttp.New(ctx, httpOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp http exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s (use 'none', 'grpc' or 'http')", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Use(tp.Tracer(cfg.ServiceName))
	return tp, nil
}

func grpcOptions(cfg ProviderConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlptracegrpc.WithInsecure(),
		)
	}
	return opts
}

func httpOptions(cfg ProviderConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}
