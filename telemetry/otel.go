package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/satishbabariya/sqlmapper-go/runtime"
)

const instrumentationName = "github.com/satishbabariya/sqlmapper-go/telemetry"

// TracingBuilder builds a middleware opening one span per statement
// execution.
type TracingBuilder struct {
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// Build returns the middleware. Span names follow KIND-statement, the
// SQL text and parameter values are never recorded.
func (b TracingBuilder) Build() runtime.Middleware {
	if b.Tracer == nil {
		b.Tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return func(next runtime.Handler) runtime.Handler {
		return func(ctx context.Context, info *runtime.ExecInfo) *runtime.ExecResult {
			spanCtx, span := b.Tracer.Start(ctx, fmt.Sprintf("%s-%s", info.Kind, info.Statement))
			defer span.End()

			span.SetAttributes(attribute.String("statement", info.Statement))
			span.SetAttributes(attribute.String("kind", info.Kind.String()))
			span.SetAttributes(attribute.String("component", "sqlmapper"))

			res := next(spanCtx, info)
			if res.Err != nil {
				span.RecordError(res.Err)
			}
			return res
		}
	}
}
