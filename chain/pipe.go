package chain

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/chainkit/errors"
	"github.com/kbukum/chainkit/logger"
	"github.com/kbukum/chainkit/observability"
	"github.com/kbukum/chainkit/pipeline"
)

// Pipe is a built pipeline bound to a collector. Items are processed one at
// a time; end-of-input flushes it exactly once.
type Pipe struct {
	id        string
	opts      options
	log       *logger.Logger
	stages    []Stage
	collect   Collector
	flushable bool

	mu      sync.Mutex
	flushed bool
}

// New builds a pipe that hands every terminal emission to collect.
func New(collect Collector, descs ...any) (*Pipe, error) {
	if collect == nil {
		return nil, errors.Usage("collector is required")
	}
	opts, descs := splitOptions(descs)
	stages, err := Normalize(descs...)
	if err != nil {
		opts.log.Warn("invalid pipeline", logger.ErrorFields("build", err))
		return nil, err
	}
	id := uuid.NewString()
	return &Pipe{
		id:   id,
		opts: opts,
		log: opts.log.WithFields(logger.Fields(
			logger.FieldPipeID, id,
			logger.FieldPipeName, opts.name,
		)),
		stages:    stages,
		collect:   collect,
		flushable: slices.ContainsFunc(stages, Stage.IsFlushable),
	}, nil
}

// ID returns the unique identity of the pipe.
func (p *Pipe) ID() string { return p.id }

// Name returns the pipe name.
func (p *Pipe) Name() string { return p.opts.name }

// Stages returns a copy of the normalized stages.
func (p *Pipe) Stages() []Stage { return slices.Clone(p.stages) }

// IsFlushable reports whether any stage is flush-eligible.
func (p *Pipe) IsFlushable() bool { return p.flushable }

// Flushed reports whether end-of-input was signaled or a stage raised Stop.
func (p *Pipe) Flushed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushed
}

// Process submits one item. Passing None signals end-of-input, like Flush.
// It returns ErrStop when a stage raised Stop; the pipe is then flushed and
// accepts no further input.
func (p *Pipe) Process(ctx context.Context, v any) error {
	if IsNone(v) {
		return p.Flush(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flushed {
		return p.usage("process called on a flushed pipe")
	}

	ctx = logger.ContextWithPipeID(ctx, p.id)
	ctx, op := observability.StartOperation(ctx, p.opts.tracer, observability.SpanChainProcess, p.id, p.opts.name)
	collect, emitted := p.counting()
	err := dispatch(ctx, p.stages, v, 0, collect)
	status := p.outcome(ctx, err)
	op.End(status, *emitted, err)
	p.opts.metrics.RecordItem(ctx, p.opts.name, status, *emitted, op.Duration())
	return err
}

// Flush signals end-of-input: every flushable stage is invoked once with
// None. A second call is a usage error.
func (p *Pipe) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flushed {
		return p.usage("pipe already flushed")
	}
	p.flushed = true

	ctx = logger.ContextWithPipeID(ctx, p.id)
	ctx, op := observability.StartOperation(ctx, p.opts.tracer, observability.SpanChainFlush, p.id, p.opts.name)
	collect, emitted := p.counting()
	err := flush(ctx, p.stages, 0, collect)
	status := p.outcome(ctx, err)
	op.End(status, *emitted, err)
	p.opts.metrics.RecordFlush(ctx, p.opts.name, *emitted)
	p.log.Debug("pipe flushed", logger.Fields(logger.FieldEmitted, *emitted, "status", status))
	return err
}

func (p *Pipe) counting() (Collector, *int) {
	n := new(int)
	return func(ctx context.Context, v any) error {
		*n++
		return p.collect(ctx, v)
	}, n
}

// outcome classifies err, latching the pipe on Stop. Callers hold p.mu.
func (p *Pipe) outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return observability.StatusOK
	case IsStopped(err):
		p.flushed = true
		p.opts.metrics.RecordStop(ctx, p.opts.name)
		p.log.Debug("pipe stopped")
		return observability.StatusStopped
	}
	if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeStageFailed {
		stage, _ := appErr.Details["stage"].(int)
		p.opts.metrics.RecordStageError(ctx, p.opts.name, stage)
		p.log.WithError(err).Debug("stage failed", logger.Fields(logger.FieldStage, stage))
	}
	return observability.StatusError
}

func (p *Pipe) usage(msg string) error {
	err := errors.Usage("%s", msg).WithDetail("pipe_id", p.id)
	p.log.Warn(msg)
	return err
}

// ArrayPipe gathers all terminal emissions of one input into a slice.
type ArrayPipe struct {
	pipe    *Pipe
	mu      sync.Mutex
	results []any
}

// AsArray builds an array-collecting pipeline.
func AsArray(descs ...any) (*ArrayPipe, error) {
	a := &ArrayPipe{}
	p, err := New(func(_ context.Context, v any) error {
		a.results = append(a.results, v)
		return nil
	}, descs...)
	if err != nil {
		return nil, err
	}
	a.pipe = p
	return a, nil
}

// Run processes v and returns its emissions in order. Run(ctx, None) flushes
// and returns the flushed emissions. Emissions gathered before an error are
// returned with it.
func (a *ArrayPipe) Run(ctx context.Context, v any) ([]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = nil
	err := a.pipe.Process(ctx, v)
	results := a.results
	a.results = nil
	return results, err
}

// Pipe returns the underlying pipe.
func (a *ArrayPipe) Pipe() *Pipe { return a.pipe }

// IsFlushable reports whether any stage is flush-eligible.
func (a *ArrayPipe) IsFlushable() bool { return a.pipe.flushable }

// Fun builds a pipeline and wraps it as a single stage. The stage returns
// None when there are no emissions, the emission itself when there is one,
// and Many otherwise. Nested in another pipeline its stages are spliced in
// place.
func Fun(descs ...any) (Stage, error) {
	a, err := AsArray(descs...)
	if err != nil {
		return Stage{}, err
	}
	return Stage{
		name:      a.pipe.opts.name,
		flushable: a.pipe.flushable,
		inner:     a.pipe.stages,
		fn: func(ctx context.Context, v any) (any, error) {
			results, err := a.Run(ctx, v)
			if err != nil {
				if IsStopped(err) && len(results) > 0 {
					return Many(append(results, Stop)...), nil
				}
				return nil, err
			}
			switch len(results) {
			case 0:
				return None, nil
			case 1:
				return results[0], nil
			}
			return Many(results...), nil
		},
	}, nil
}

// Run feeds every value of src to p, then signals end-of-input. Stop ends
// the run early and is not reported as an error.
func Run(ctx context.Context, src *pipeline.Pipeline[any], p *Pipe) error {
	err := pipeline.ForEach(ctx, src, func(ctx context.Context, v any) error {
		return p.Process(ctx, v)
	})
	switch {
	case IsStopped(err):
		return nil
	case err != nil:
		return err
	}
	if err := p.Flush(ctx); err != nil && !IsStopped(err) {
		return err
	}
	return nil
}
