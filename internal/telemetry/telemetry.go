// Package telemetry wires OpenTelemetry tracing for devserver operations.
//
// Span completions are always logged at debug level so --debug shows the
// operation trace without any collector. When an OTLP endpoint is configured
// and enabled, spans are additionally batched and exported over OTLP/HTTP.
package telemetry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/appforge/devserver/internal/config"
)

// shutdownTimeout bounds the final flush on process exit.
const shutdownTimeout = 5 * time.Second

// Setup installs the global tracer provider.
//
// Parameters:
//   - cfg: Telemetry configuration (endpoint, enabled flag, service name)
//   - version: Build version, reported as service.version
//
// Returns:
//   - func(context.Context) error: Shutdown hook flushing pending spans
func Setup(cfg *config.Config, version string) func(context.Context) error {
	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.GetServiceName()),
		attribute.String("service.version", version),
	)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(logProcessor{}),
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint != "" {
		opts = append(opts, sdktrace.WithBatcher(NewExporter(cfg.Telemetry.Endpoint)))
		log.Debug("Telemetry export enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}
}

// logProcessor mirrors span completions into the structured log.
type logProcessor struct{}

func (logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	log.Debug("Span completed",
		"name", s.Name(),
		"duration", s.EndTime().Sub(s.StartTime()).String(),
		"status", s.Status().Code.String(),
	)
}

func (logProcessor) Shutdown(context.Context) error { return nil }

func (logProcessor) ForceFlush(context.Context) error { return nil }
