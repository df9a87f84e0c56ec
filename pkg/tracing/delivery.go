package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanWebhookDeliver = "webhook.deliver"

const (
	AttrTenantID       = attribute.Key("tenant.id")
	AttrEventType      = attribute.Key("webhook.event_type")
	AttrAttempt        = attribute.Key("webhook.attempt")
	AttrHTTPStatusCode = attribute.Key("http.response.status_code")
)

// StartDeliverySpan opens the client span around one delivery attempt.
func StartDeliverySpan(ctx context.Context, tracer trace.Tracer, tenantID, eventType string, attempt int) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanWebhookDeliver,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrTenantID.String(tenantID),
			AttrEventType.String(eventType),
			AttrAttempt.Int(attempt),
		),
	)
}

// EndDeliverySpan records the outcome of an attempt and ends the span.
// statusCode is 0 when no response arrived.
func EndDeliverySpan(span trace.Span, statusCode int, err error) {
	defer span.End()

	if statusCode != 0 {
		span.SetAttributes(AttrHTTPStatusCode.Int(statusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
