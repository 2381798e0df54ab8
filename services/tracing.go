package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/yeremiapane/restaurant-booking/services")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on the span. Domain rejections are tagged with their
// kind so conflicts can be told apart from failures in traces.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if kind := KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("error.kind", string(kind)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
