package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("tracing",
	fx.Provide(NewTracerProvider),
	fx.Invoke(func(tp *sdktrace.TracerProvider) {
		otel.SetTracerProvider(tp)
	}),
)

// NewTracerProvider builds the tracer provider and registers shutdown.
// Exporters are attached by deployment-specific wiring; the default provider
// only propagates span context so log correlation works everywhere.
func NewTracerProvider(lc fx.Lifecycle) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}
