package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{
		ServiceName: "aurabattle-test",
		Enabled:     false,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Shutdown is a no-op when tracing is disabled.
	assert.NoError(t, shutdown(context.Background()))

	// Spans from the no-op tracer are safe to use and end.
	ctx, span := StartStoreSpan(context.Background(), "users", "create")
	assert.NotNil(t, ctx)
	EndSpan(span, nil)
	assert.False(t, span.SpanContext().IsValid())
}

func TestInitTracingEnabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:    "aurabattle-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		Enabled:        true,
		SamplerRatio:   1.0,
	})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, shutdown(context.Background()))
	}()

	ctx, span := StartStoreSpan(context.Background(), "groups", "award")
	assert.True(t, span.SpanContext().TraceID().IsValid())
	assert.True(t, span.SpanContext().SpanID().IsValid())

	// Child spans share the parent's trace.
	_, child := StartStoreSpan(ctx, "users", "update")
	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())

	EndSpan(child, errors.New("write failed"))
	EndSpan(span, nil)
}
