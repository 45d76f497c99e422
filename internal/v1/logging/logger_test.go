package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetLoggerBeforeInitialize(t *testing.T) {
	assert.NotNil(t, GetLogger())
}

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.NotNil(t, GetLogger())

	// sync.Once makes repeated initialization a no-op.
	require.NoError(t, Initialize(false))
}

func TestContextFieldHelpers(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	ctx = WithUserID(ctx, 7)
	ctx = WithRoomID(ctx, 3)

	fields := appendContextFields(ctx, nil)

	assert.Contains(t, fields, zap.String("correlation_id", "abc-123"))
	assert.Contains(t, fields, zap.Uint32("user_id", 7))
	assert.Contains(t, fields, zap.Uint32("room_id", 3))
	assert.Contains(t, fields, zap.String("service", "incognita-socket-server"))
}

func TestNilContextIsSafe(t *testing.T) {
	assert.Empty(t, appendContextFields(nil, nil))

	// Must not panic.
	Debug(nil, "debug")
	Info(nil, "info")
	Warn(nil, "warn")
	Error(nil, "error")
}
