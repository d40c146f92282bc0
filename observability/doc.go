// Package observability provides OpenTelemetry tracing and metrics for the
// chain engine and the stream pump.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("chainrun")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, op := observability.StartOperation(ctx, nil, observability.SpanChainProcess, id, "ingest")
//	defer op.End(observability.StatusOK, n, nil)
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("chainrun"))
//	metrics.RecordItem(ctx, "ingest", observability.StatusOK, 3, elapsed)
package observability
