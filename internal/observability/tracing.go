// Package observability wires OTLP trace export into genkit's tracer
// provider. Spans from chat flows, generation calls, and embedder
// requests are batched and shipped over OTLP HTTP to a local collector
// or agent, which handles authentication and forwarding.
//
// Export is config-gated and degrades gracefully: when tracing is
// disabled or the exporter cannot be constructed, Setup returns a no-op
// shutdown and the application runs untraced.
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// Config for OTLP trace export.
type Config struct {
	// Enabled turns trace export on. When false, Setup is a no-op.
	Enabled bool
	// Endpoint is the OTLP HTTP endpoint, host:port (default: localhost:4318).
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
}

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// noopShutdown is returned when tracing is disabled or unavailable.
func noopShutdown(context.Context) error { return nil }

// Setup registers an OTLP HTTP span exporter with genkit's
// TracerProvider. Must run before genkit.Init so the provider is ready
// when the first flow registers.
//
// Returns a shutdown function that flushes pending spans; callers
// should invoke it with a bounded context during teardown. Exporter
// construction failure disables tracing rather than failing startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return noopShutdown, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Genkit's TracerProvider reads service identity from OTEL env vars.
	// SAFETY: os.Setenv is not concurrent-safe, but Setup runs exactly
	// once during startup before any goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	// The collector endpoint is local; the agent handles TLS and auth
	// toward whatever backend it forwards to.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return noopShutdown, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
