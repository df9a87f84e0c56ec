package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/constants"
)

func recordingTracer(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp.Tracer("test")
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestDeliverySpanSuccess(t *testing.T) {
	recorder, tracer := recordingTracer(t)

	_, span := StartDeliverySpan(context.Background(), tracer, "t1", "order.created", 2)
	EndDeliverySpan(span, 204, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, SpanWebhookDeliver, got.Name())
	assert.Equal(t, trace.SpanKindClient, got.SpanKind())
	assert.Equal(t, codes.Ok, got.Status().Code)

	a := attrs(got)
	assert.Equal(t, "t1", a[AttrTenantID].AsString())
	assert.Equal(t, "order.created", a[AttrEventType].AsString())
	assert.Equal(t, int64(2), a[AttrAttempt].AsInt64())
	assert.Equal(t, int64(204), a[AttrHTTPStatusCode].AsInt64())
}

func TestDeliverySpanTransportError(t *testing.T) {
	recorder, tracer := recordingTracer(t)

	_, span := StartDeliverySpan(context.Background(), tracer, "t1", "order.created", 0)
	EndDeliverySpan(span, 0, errors.New("connection refused"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "connection refused", ended[0].Status().Description)
	_, hasStatus := attrs(ended[0])[AttrHTTPStatusCode]
	assert.False(t, hasStatus)
	assert.Len(t, ended[0].Events(), 1)
}

func TestNewResourceAttributes(t *testing.T) {
	res, err := newResource(config.TracingConfig{}, "")
	require.NoError(t, err)

	values := make(map[attribute.Key]string)
	for _, kv := range res.Attributes() {
		values[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, constants.ServiceName, values[semconv.ServiceNameKey])
	assert.Equal(t, constants.ServiceNamespace, values[semconv.ServiceNamespaceKey])
	assert.Equal(t, constants.ServiceVersion, values[semconv.ServiceVersionKey])

	res, err = newResource(config.TracingConfig{ServiceName: "webhooks-eu"}, "ignored")
	require.NoError(t, err)
	for _, kv := range res.Attributes() {
		if kv.Key == semconv.ServiceNameKey {
			assert.Equal(t, "webhooks-eu", kv.Value.AsString())
		}
	}
}
