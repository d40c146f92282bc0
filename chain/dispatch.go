package chain

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/chainkit/errors"
	"github.com/kbukum/chainkit/pipeline"
)

// Collector receives terminal emissions, once per value, in emission order.
// A collector error aborts dispatch and is returned unchanged.
type Collector func(ctx context.Context, v any) error

// frame is an open lazy sequence whose items feed stages[next]. many marks
// the element sequence of a Many signal.
type frame struct {
	seq  pipeline.Iterator[any]
	next int
	many bool
}

// dispatcher threads one value through the stages. Fan-out is kept on an
// explicit stack of open sequences: the top frame is always drained first,
// which yields depth-first, left-to-right emission order.
type dispatcher struct {
	stages  []Stage
	collect Collector
	stack   []frame
}

// dispatch runs value as the input of stages[from]. It returns ErrStop after
// flushing when a stage raised Stop. On any other error every open sequence
// is closed and nothing is flushed.
func dispatch(ctx context.Context, stages []Stage, value any, from int, collect Collector) error {
	d := &dispatcher{stages: stages, collect: collect}
	defer d.closeAll()

	if err := d.walk(ctx, value, from); err != nil {
		return err
	}
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		item, ok, err := top.seq.Next(ctx)
		if err != nil {
			return d.fail(ctx, top.next-1, err)
		}
		if !ok {
			_ = top.seq.Close()
			d.stack = d.stack[:len(d.stack)-1]
			continue
		}
		if top.next == len(d.stages) {
			if err := d.emit(ctx, top, item); err != nil {
				return err
			}
			continue
		}
		if err := d.walk(ctx, item, top.next); err != nil {
			return err
		}
	}
	return nil
}

// walk advances v from stages[at] until it is emitted, suppressed, or turns
// into a sequence, which is pushed for the main loop to drain.
func (d *dispatcher) walk(ctx context.Context, v any, at int) error {
	for {
		resolved, err := Resolve(ctx, v)
		if err != nil {
			return d.fail(ctx, at-1, err)
		}
		v = resolved

		switch s := v.(type) {
		case noneSignal:
			return nil
		case stopSignal:
			return d.stop(ctx, at)
		case finalSignal:
			return d.collect(ctx, s.value)
		case manySignal:
			d.stack = append(d.stack, frame{seq: pipeline.SliceIterator(s.values), next: at, many: true})
			return nil
		}
		if seq, ok := AsSequence(ctx, v); ok {
			d.stack = append(d.stack, frame{seq: seq, next: at})
			return nil
		}
		if at >= len(d.stages) {
			return d.collect(ctx, v)
		}

		out, err := d.stages[at].Call(ctx, v)
		if err != nil {
			if !IsStopped(err) {
				return d.fail(ctx, at, err)
			}
			out = Stop
		}
		v = out
		at++
	}
}

// emit hands an item of a sequence that fanned out past the last stage
// straight to the collector, without reading it as a signal. Many skips nil
// elements; sequence items are awaited first.
func (d *dispatcher) emit(ctx context.Context, top frame, item any) error {
	if top.many {
		if item == nil {
			return nil
		}
		return d.collect(ctx, item)
	}
	v, err := Resolve(ctx, item)
	if err != nil {
		return d.fail(ctx, top.next-1, err)
	}
	return d.collect(ctx, v)
}

// stop flushes the stages after the one that raised Stop.
func (d *dispatcher) stop(ctx context.Context, from int) error {
	if err := flush(ctx, d.stages, from, d.collect); err != nil && !IsStopped(err) {
		return err
	}
	return errors.Stopped()
}

// fail attributes err to the stage at index. Cancellation is returned as-is.
func (d *dispatcher) fail(ctx context.Context, index int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
		return err
	}
	if index < 0 {
		return errors.New(errors.ErrCodeStageFailed, "input value rejected").WithCause(err)
	}
	return errors.StageFailed(index, d.stages[index].name, err)
}

func (d *dispatcher) closeAll() {
	for i := len(d.stack) - 1; i >= 0; i-- {
		_ = d.stack[i].seq.Close()
	}
	d.stack = nil
}

// flush invokes every flushable stage from index from with None and runs the
// result through the stages after it.
func flush(ctx context.Context, stages []Stage, from int, collect Collector) error {
	for i := from; i < len(stages); i++ {
		if !stages[i].flushable {
			continue
		}
		out, err := stages[i].Call(ctx, None)
		if err != nil {
			if !IsStopped(err) {
				return errors.StageFailed(i, stages[i].name, err)
			}
			out = Stop
		}
		if err := dispatch(ctx, stages, out, i+1, collect); err != nil {
			return err
		}
	}
	return nil
}
