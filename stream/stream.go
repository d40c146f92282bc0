package stream

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chainkit/chain"
	"github.com/kbukum/chainkit/errors"
	"github.com/kbukum/chainkit/logger"
	"github.com/kbukum/chainkit/observability"
	"github.com/kbukum/chainkit/pipeline"
)

// Option configures a Stream.
type Option func(*Stream)

// WithName sets the stream name used in logs, spans and metrics.
func WithName(name string) Option {
	return func(s *Stream) { s.name = name }
}

// WithLogger sets the logger. Defaults to the registered "stream" logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Stream) { s.log = l }
}

// WithTracer sets the tracer used for write and close spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Stream) { s.tracer = t }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Stream) { s.metrics = m }
}

// Stream pumps the results of one stage into a Consumer, pausing while the
// consumer is saturated. Writes are processed one at a time: a chunk is
// fully drained, or paused awaiting resume, before the next one starts.
type Stream struct {
	id       string
	name     string
	stage    chain.Stage
	consumer Consumer
	log      *logger.Logger
	tracer   trace.Tracer
	metrics  *observability.Metrics

	mu        sync.Mutex
	queue     []pipeline.Iterator[any]
	closed    bool
	delivered int

	pauseMu sync.Mutex
	paused  chan struct{}
	resumes uint64
}

// New creates a Stream over a stage descriptor (anything chain.Normalize
// accepts). A chain.Stage is used as-is; any other descriptor resolving to
// several stages is wrapped with chain.Fun.
func New(stage any, consumer Consumer, opts ...Option) (*Stream, error) {
	if consumer == nil {
		return nil, errors.Usage("consumer is required")
	}
	st, err := single(stage)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		id:       uuid.NewString(),
		name:     "stream",
		stage:    st,
		consumer: consumer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get("stream")
	}
	s.log = s.log.WithFields(logger.Fields(logger.FieldPipeID, s.id, logger.FieldPipeName, s.name))
	consumer.OnResume(s.Resume)
	return s, nil
}

func single(desc any) (chain.Stage, error) {
	if st, ok := desc.(chain.Stage); ok {
		return st, nil
	}
	stages, err := chain.Normalize(desc)
	if err != nil {
		return chain.Stage{}, err
	}
	if len(stages) == 1 {
		return stages[0], nil
	}
	return chain.Fun(desc)
}

// ID returns the unique identity of the stream.
func (s *Stream) ID() string { return s.id }

// Write runs chunk through the stage and pumps the results into the
// consumer. It blocks while the consumer is saturated and a produced value
// is waiting; it returns once the chunk's sequences are exhausted, even if
// the last delivery saturated the consumer. ErrStop is returned
// when the stage raised Stop or produced Final; the consumer has then been
// ended and the stream accepts no further input.
func (s *Stream) Write(ctx context.Context, chunk any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("write on a closed stream")
		return errors.Usage("write on a closed stream")
	}

	ctx, op := observability.StartOperation(ctx, s.tracer, observability.SpanStreamWrite, s.id, s.name)
	start := s.delivered
	err := s.pump(ctx)
	if err == nil {
		err = s.run(ctx, chunk)
	}
	err = s.finish(ctx, err)
	op.End(status(err), s.delivered-start, err)
	return err
}

// Close signals end-of-input. Values still queued are delivered, a flushable
// stage is invoked once with chain.None and its results are pumped, then the
// consumer is ended. A second Close is a usage error.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("stream already closed")
		return errors.Usage("stream already closed")
	}

	ctx, op := observability.StartOperation(ctx, s.tracer, observability.SpanStreamClose, s.id, s.name)
	start := s.delivered
	err := s.pump(ctx)
	if err == nil && s.stage.IsFlushable() {
		err = s.run(ctx, chain.None)
	}
	if err == nil {
		s.closed = true
		err = s.consumer.End(ctx)
		s.log.Debug("stream closed", logger.DurationFields("close", op.Duration()))
	} else if err = s.finish(ctx, err); chain.IsStopped(err) {
		err = nil
	}
	op.End(status(err), s.delivered-start, err)
	return err
}

// Resume releases a paused stream. It is a no-op while draining.
func (s *Stream) Resume() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	s.resumes++
	if s.paused != nil {
		close(s.paused)
		s.paused = nil
		s.log.Debug("stream resumed")
	}
}

// Paused reports whether the stream is waiting for the consumer.
func (s *Stream) Paused() bool {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	return s.paused != nil
}

func (s *Stream) run(ctx context.Context, chunk any) error {
	v, err := s.stage.Call(ctx, chunk)
	if err != nil {
		if !chain.IsStopped(err) {
			return s.stageError(ctx, err)
		}
		v = chain.Stop
	}
	if err := s.handle(ctx, v); err != nil {
		return err
	}
	return s.pump(ctx)
}

// pump drains the queue, always pulling from the most recently pushed
// sequence so fan-out is delivered depth-first. A pull may run while
// paused; the pulled value then waits in deliver, so exhausted sequences are
// popped without needing a resume.
func (s *Stream) pump(ctx context.Context) error {
	for len(s.queue) > 0 {
		top := s.queue[len(s.queue)-1]
		item, ok, err := top.Next(ctx)
		if err != nil {
			return s.stageError(ctx, err)
		}
		if !ok {
			_ = top.Close()
			s.queue = s.queue[:len(s.queue)-1]
			continue
		}
		if err := s.handle(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// handle classifies one produced value: sequences and Many are queued,
// plain values are delivered.
func (s *Stream) handle(ctx context.Context, v any) error {
	v, err := chain.Resolve(ctx, v)
	if err != nil {
		return s.stageError(ctx, err)
	}
	if v == nil {
		return nil
	}
	if seq, ok := chain.AsSequence(ctx, v); ok {
		s.queue = append(s.queue, seq)
		return nil
	}
	switch chain.Classify(v) {
	case chain.KindNone:
		return nil
	case chain.KindStop:
		return errors.Stopped()
	case chain.KindMany:
		vs, _ := chain.ManyValues(v)
		s.queue = append(s.queue, pipeline.SliceIterator(vs))
		return nil
	case chain.KindFinal:
		// Final ends the whole stream: pending fan-out is discarded and
		// only the final value is delivered.
		fv, _ := chain.FinalValue(v)
		s.release()
		if err := s.handle(ctx, fv); err != nil {
			return err
		}
		if err := s.pump(ctx); err != nil {
			return err
		}
		return errors.Stopped()
	}
	return s.deliver(ctx, v)
}

func (s *Stream) deliver(ctx context.Context, v any) error {
	if err := s.waitResumed(ctx); err != nil {
		// Keep the value for the next write or close.
		s.queue = append(s.queue, pipeline.SliceIterator([]any{v}))
		return err
	}
	s.pauseMu.Lock()
	epoch := s.resumes
	s.pauseMu.Unlock()

	ready, err := s.consumer.Write(ctx, v)
	if err != nil {
		return err
	}
	s.delivered++
	s.metrics.RecordDelivered(ctx, s.name)
	if !ready {
		s.pause(ctx, epoch)
	}
	return nil
}

// pause enters the paused state unless a resume arrived after epoch was
// read, which means the consumer already drained below its mark.
func (s *Stream) pause(ctx context.Context, epoch uint64) {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.paused != nil || s.resumes != epoch {
		return
	}
	s.paused = make(chan struct{})
	s.metrics.RecordPause(ctx, s.name)
	s.log.Debug("stream paused")
}

func (s *Stream) waitResumed(ctx context.Context) error {
	s.pauseMu.Lock()
	ch := s.paused
	s.pauseMu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish applies the outcome of a write. Stop ends the consumer; a
// cancelled context leaves queued values in place; any other error is fatal.
func (s *Stream) finish(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	}
	s.closed = true
	s.release()
	if chain.IsStopped(err) {
		s.log.Debug("stream stopped")
		if endErr := s.consumer.End(ctx); endErr != nil {
			return endErr
		}
		return errors.Stopped()
	}
	s.log.WithError(err).Error("stream failed")
	return err
}

// release closes and drops every queued sequence.
func (s *Stream) release() {
	for i := len(s.queue) - 1; i >= 0; i-- {
		_ = s.queue[i].Close()
	}
	s.queue = nil
}

func (s *Stream) stageError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
		return err
	}
	if errors.IsCode(err, errors.ErrCodeStageFailed) {
		return err
	}
	return errors.StageFailed(0, s.stage.Name(), err)
}

func status(err error) string {
	switch {
	case err == nil:
		return observability.StatusOK
	case chain.IsStopped(err):
		return observability.StatusStopped
	}
	return observability.StatusError
}

// Feed writes every value of src to s, then closes it. Stop ends the feed
// early and is not reported as an error.
func Feed(ctx context.Context, src *pipeline.Pipeline[any], s *Stream) error {
	err := pipeline.ForEach(ctx, src, func(ctx context.Context, v any) error {
		return s.Write(ctx, v)
	})
	switch {
	case chain.IsStopped(err):
		return nil
	case err != nil:
		return err
	}
	return s.Close(ctx)
}
