package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	TenantIDKey    = "tenant_id"
	EventIDKey     = "event_id"
	JobIDKey       = "job_id"
	ServiceNameKey = "service_name"
)

type ctxKey string

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey(TraceIDKey), traceID)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey(TenantIDKey), tenantID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, ctxKey(EventIDKey), eventID)
}

func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKey(JobIDKey), jobID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ctxKey(ServiceNameKey), serviceName)
}

func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

func GetTenantID(ctx context.Context) string {
	return getString(ctx, TenantIDKey)
}

func GetEventID(ctx context.Context) string {
	return getString(ctx, EventIDKey)
}

func GetJobID(ctx context.Context) string {
	return getString(ctx, JobIDKey)
}

func GetServiceName(ctx context.Context) string {
	return getString(ctx, ServiceNameKey)
}

func getString(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey(key)).(string); ok {
		return v
	}
	return ""
}

// GetLogFields returns the key/value pairs stored in ctx, in a stable order.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	for _, key := range []string{TraceIDKey, TenantIDKey, EventIDKey, JobIDKey, ServiceNameKey} {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
