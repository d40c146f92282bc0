package chain

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chainkit/logger"
	"github.com/kbukum/chainkit/observability"
)

// Option configures a Pipe. Options may be mixed into the descriptors passed
// to New, AsArray and Fun; they never become stages.
type Option func(*options)

type options struct {
	name    string
	log     *logger.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
}

// WithName sets the pipe name used in logs, spans and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. Defaults to the registered "chain" logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTracer sets the tracer used for process and flush spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// splitOptions separates options from stage descriptors.
func splitOptions(args []any) (options, []any) {
	var o options
	descs := make([]any, 0, len(args))
	for _, a := range args {
		if opt, ok := a.(Option); ok {
			opt(&o)
			continue
		}
		descs = append(descs, a)
	}
	if o.name == "" {
		o.name = "pipe"
	}
	if o.log == nil {
		o.log = logger.Get("chain")
	}
	return o, descs
}
