package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogFields(t *testing.T) {
	assert.Empty(t, LogFields(context.Background()))

	ctx := SetRequestID(context.Background(), "req-1")
	ctx = SetJob(ctx, "sync_ibjjf")
	assert.Equal(t, map[string]any{"request_id": "req-1", "job": "sync_ibjjf"}, LogFields(ctx))

	ctx = SetUserID(ctx, "")
	assert.NotContains(t, LogFields(ctx), "user_id")
	assert.Equal(t, "sync_ibjjf", GetJob(ctx))
}
