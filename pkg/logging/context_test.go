package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithTenantID(ctx, "t1")
	ctx = WithEventID(ctx, "evt-1")
	ctx = WithJobID(ctx, "job-1")

	assert.Equal(t, []interface{}{
		TenantIDKey, "t1",
		EventIDKey, "evt-1",
		JobIDKey, "job-1",
	}, GetLogFields(ctx))
	assert.Equal(t, "t1", GetTenantID(ctx))
	assert.Equal(t, "", GetTraceID(ctx))
}
