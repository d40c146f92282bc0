package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation tracks one traced unit of pipeline work: a submitted item, a
// flush, or a stream write.
type Operation struct {
	Name      string
	PipeID    string
	PipeName  string
	StartTime time.Time

	span trace.Span
}

// operationKey is the context key for Operation.
type operationKey struct{}

// StartOperation starts a span named name on tracer (the default tracer when
// nil) and stores the Operation in the returned context.
func StartOperation(ctx context.Context, tracer trace.Tracer, name, pipeID, pipeName string) (context.Context, *Operation) {
	if tracer == nil {
		tracer = Tracer(defaultTracerName)
	}
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String(AttrPipeID, pipeID),
		attribute.String(AttrPipeName, pipeName),
	))
	op := &Operation{
		Name:      name,
		PipeID:    pipeID,
		PipeName:  pipeName,
		StartTime: time.Now(),
		span:      span,
	}
	return context.WithValue(ctx, operationKey{}, op), op
}

// OperationFromContext retrieves the Operation from context, or nil.
func OperationFromContext(ctx context.Context) *Operation {
	if op, ok := ctx.Value(operationKey{}).(*Operation); ok {
		return op
	}
	return nil
}

// End records the outcome and ends the span.
func (op *Operation) End(status string, emitted int, err error) {
	if err != nil {
		op.span.RecordError(err)
		op.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	op.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int(AttrEmitted, emitted),
		attribute.Int64(AttrDurationMs, op.Duration().Milliseconds()),
	)
	op.span.End()
}

// Span returns the span backing the operation.
func (op *Operation) Span() trace.Span { return op.span }

// Duration returns the elapsed time since the operation started.
func (op *Operation) Duration() time.Duration {
	return time.Since(op.StartTime)
}
