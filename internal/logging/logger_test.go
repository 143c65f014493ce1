package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestContextFieldsAttached(t *testing.T) {
	logger := NewTestLogger()
	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user_1")

	logger.Info(ctx, "idea created", zap.String("idea.id", "idea_1"))

	entries := logger.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request.id"])
	assert.Equal(t, "user_1", fields["user.id"])
	assert.Equal(t, "idea_1", fields["idea.id"])
	logger.AssertLogged(t, zapcore.InfoLevel, "idea created")
}

func TestContextFieldsEmpty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("loud", "json")
	require.Error(t, err)

	logger, err := New("debug", "console")
	require.NoError(t, err)
	require.NotNil(t, logger)
}
