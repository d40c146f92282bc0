package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/chainkit/chain"
	"github.com/kbukum/chainkit/observability"
)

func emittedOf(t *testing.T, span tracetest.SpanStub) int64 {
	t.Helper()
	for _, kv := range span.Attributes {
		if kv.Key == observability.AttrEmitted {
			return kv.Value.AsInt64()
		}
	}
	t.Fatalf("span %s has no %s attribute", span.Name, observability.AttrEmitted)
	return 0
}

func TestSpansCountDeliveries(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	s, err := New(chain.Flushable(func(x any) any {
		if chain.IsNone(x) {
			return chain.Many("a", "b")
		}
		return chain.Many(x, x, x)
	}), NewBuffer(100), WithTracer(tp.Tracer("stream-test")), quiet())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, 1))
	require.NoError(t, s.Write(ctx, 2))
	require.NoError(t, s.Close(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, observability.SpanStreamWrite, spans[0].Name)
	assert.Equal(t, int64(3), emittedOf(t, spans[0]))
	assert.Equal(t, int64(3), emittedOf(t, spans[1]))
	assert.Equal(t, observability.SpanStreamClose, spans[2].Name)
	assert.Equal(t, int64(2), emittedOf(t, spans[2]))
}
