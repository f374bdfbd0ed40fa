package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceCarrier is the W3C trace context of a span in a form that can be
// stored in a database row and restored later.
type TraceCarrier struct {
	Traceparent string
	Tracestate  string
}

func CarrierFrom(ctx context.Context) TraceCarrier {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceCarrier{Traceparent: carrier["traceparent"], Tracestate: carrier["tracestate"]}
}

// Context returns ctx carrying c as its remote parent. An empty carrier
// leaves ctx untouched.
func (c TraceCarrier) Context(ctx context.Context) context.Context {
	if c.Traceparent == "" && c.Tracestate == "" {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": c.Traceparent,
		"tracestate":  c.Tracestate,
	})
}
