package chain

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/kbukum/chainkit/errors"
	"github.com/kbukum/chainkit/pipeline"
)

// Func is the uniform stage signature. The result may be a plain value, a
// Signal, a Deferred or a lazy sequence (pipeline.Iterator[any],
// iter.Seq[any] or *pipeline.Pipeline[any]).
type Func func(ctx context.Context, v any) (any, error)

// StageKind is the shape a stage descriptor resolved to at build time.
type StageKind int

const (
	// KindFunc is a single transform.
	KindFunc StageKind = iota
	// KindList is an ordered list of transforms applied eagerly to one item.
	KindList
)

func (k StageKind) String() string {
	if k == KindList {
		return "list"
	}
	return "func"
}

// Stage is one normalized step of a pipeline.
type Stage struct {
	name      string
	kind      StageKind
	flushable bool
	fn        Func
	elems     []Stage
	// inner holds the stages of the pipeline a Fun stage was built from.
	// They are spliced in place when the stage is nested in another pipeline.
	inner []Stage
}

// Name returns the stage label, empty if none was attached.
func (s Stage) Name() string { return s.name }

// Kind returns the resolved shape of the stage.
func (s Stage) Kind() StageKind { return s.kind }

// IsFlushable reports whether the stage is invoked with None at end-of-input.
func (s Stage) IsFlushable() bool { return s.flushable }

// Call invokes the stage on v.
func (s Stage) Call(ctx context.Context, v any) (any, error) {
	if s.kind == KindList {
		return runList(ctx, s.elems, v)
	}
	return s.fn(ctx, v)
}

type flushableDesc struct{ desc any }

type namedDesc struct {
	name string
	desc any
}

// Flushable marks a stage descriptor as flush-eligible: at end-of-input it
// is invoked once with None and its result runs through the rest of the
// pipeline.
func Flushable(desc any) any { return flushableDesc{desc: desc} }

// Named attaches a label used in logs, spans and errors.
func Named(name string, desc any) any { return namedDesc{name: name, desc: desc} }

// List groups descriptors into one eager list stage.
func List(descs ...any) []any { return descs }

func identity(_ context.Context, v any) (any, error) { return v, nil }

// Normalize resolves stage descriptors into a flat, non-empty stage list.
// Accepted descriptors are functions (Func, func(context.Context, any) (any, error),
// func(any) (any, error), func(any) any), lists ([]any, []Func), pipelines
// (*Pipe, *ArrayPipe, stages built by Fun) and the Flushable and Named
// wrappers. nil descriptors are skipped.
func Normalize(descs ...any) ([]Stage, error) {
	var stages []Stage
	for i, d := range descs {
		st, err := normalize(d, fmt.Sprintf("#%d", i))
		if err != nil {
			return nil, err
		}
		stages = append(stages, st...)
	}
	if len(stages) == 0 {
		stages = []Stage{{name: "identity", fn: identity}}
	}
	return stages, nil
}

func normalize(desc any, at string) ([]Stage, error) {
	switch d := desc.(type) {
	case nil:
		return nil, nil
	case Stage:
		if d.inner != nil {
			return slices.Clone(d.inner), nil
		}
		return []Stage{d}, nil
	case *Pipe:
		if d == nil {
			return nil, nil
		}
		return slices.Clone(d.stages), nil
	case *ArrayPipe:
		if d == nil {
			return nil, nil
		}
		return slices.Clone(d.pipe.stages), nil
	case flushableDesc:
		st, err := single(d.desc, at)
		if err != nil {
			return nil, err
		}
		return []Stage{markFlushable(st)}, nil
	case namedDesc:
		st, err := single(d.desc, at)
		if err != nil {
			return nil, err
		}
		st.name = d.name
		return []Stage{st}, nil
	case Func:
		return []Stage{{fn: d}}, nil
	case func(context.Context, any) (any, error):
		return []Stage{{fn: d}}, nil
	case func(any) (any, error):
		return []Stage{{fn: func(_ context.Context, v any) (any, error) { return d(v) }}}, nil
	case func(any) any:
		return []Stage{{fn: func(_ context.Context, v any) (any, error) { return d(v), nil }}}, nil
	case []any:
		return list(d, at)
	case []Func:
		descs := make([]any, len(d))
		for i, f := range d {
			descs[i] = f
		}
		return list(descs, at)
	}
	return nil, errors.Usage("stage argument %s: unsupported type %T", at, desc)
}

// single normalizes a wrapped descriptor into one stage. A Fun stage is kept
// opaque rather than spliced, and a descriptor resolving to several stages
// is wrapped with Fun.
func single(desc any, at string) (Stage, error) {
	if st, ok := desc.(Stage); ok {
		st.inner = nil
		return st, nil
	}
	st, err := normalize(desc, at)
	if err != nil {
		return Stage{}, err
	}
	switch len(st) {
	case 0:
		return Stage{name: "identity", fn: identity}, nil
	case 1:
		return st[0], nil
	}
	f, err := Fun(desc)
	if err != nil {
		return Stage{}, err
	}
	f.inner = nil
	return f, nil
}

// markFlushable makes st receive the flush trigger. For a list the trigger
// enters at its first element.
func markFlushable(st Stage) Stage {
	st.flushable = true
	if st.kind == KindList {
		st.elems = slices.Clone(st.elems)
		st.elems[0] = markFlushable(st.elems[0])
	}
	return st
}

func list(descs []any, at string) ([]Stage, error) {
	var elems []Stage
	for i, d := range descs {
		st, err := normalize(d, fmt.Sprintf("%s.%d", at, i))
		if err != nil {
			return nil, err
		}
		elems = append(elems, st...)
	}
	switch len(elems) {
	case 0:
		return nil, nil
	case 1:
		return elems, nil
	}
	return []Stage{{
		kind:      KindList,
		elems:     elems,
		flushable: slices.ContainsFunc(elems, Stage.IsFlushable),
	}}, nil
}

// runList applies elems left to right to one item. Final stops the list and
// its value continues to the next pipeline stage. None and Stop end the
// list. When an element fans out with Many, the remaining elements are
// applied to every value. Only the last element may return a lazy sequence.
// A None input is the flush trigger: it passes over elements that are not
// flushable.
func runList(ctx context.Context, elems []Stage, v any) (any, error) {
	flushing := IsNone(v)
	for i, e := range elems {
		if IsNone(v) && !e.flushable {
			continue
		}
		out, err := e.Call(ctx, v)
		if err != nil {
			return nil, err
		}
		if out, err = Resolve(ctx, out); err != nil {
			return nil, err
		}
		last := i == len(elems)-1
		switch Classify(out) {
		case KindFinal:
			fv, _ := FinalValue(out)
			return fv, nil
		case KindNone:
			if !flushing {
				return None, nil
			}
		case KindStop:
			return out, nil
		case KindMany:
			if last {
				return out, nil
			}
			vs, _ := ManyValues(out)
			return fanList(ctx, elems[i+1:], vs)
		default:
			if isSequence(out) {
				if last {
					return out, nil
				}
				return nil, errors.Usage("list element %d returned a lazy sequence, only the last element may", i)
			}
		}
		v = out
	}
	return v, nil
}

// fanList applies rest to each of vs and gathers the results into one Many.
// Suppressed values are dropped and nested fan-out is flattened in order.
func fanList(ctx context.Context, rest []Stage, vs []any) (any, error) {
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		v, err := Resolve(ctx, v)
		if err != nil {
			return nil, err
		}
		var r any
		switch Classify(v) {
		case KindNone:
			continue
		case KindStop:
			return Stop, nil
		case KindFinal:
			r, _ = FinalValue(v)
		case KindMany:
			nested, _ := ManyValues(v)
			if r, err = fanList(ctx, rest, nested); err != nil {
				return nil, err
			}
		default:
			if isSequence(v) {
				return nil, errors.Usage("list fan-out value is a lazy sequence")
			}
			if r, err = runList(ctx, rest, v); err != nil {
				return nil, err
			}
		}
		switch Classify(r) {
		case KindNone:
		case KindStop:
			return Stop, nil
		case KindMany:
			rs, _ := ManyValues(r)
			out = append(out, rs...)
		default:
			out = append(out, r)
		}
	}
	return Many(out...), nil
}

func isSequence(v any) bool {
	switch v.(type) {
	case pipeline.Iterator[any], iter.Seq[any], func(func(any) bool), *pipeline.Pipeline[any]:
		return true
	}
	return false
}

// AsSequence opens v as an iterator if it is a lazy sequence:
// a pipeline.Iterator[any], an iter.Seq[any] or a *pipeline.Pipeline[any].
func AsSequence(ctx context.Context, v any) (pipeline.Iterator[any], bool) {
	switch s := v.(type) {
	case pipeline.Iterator[any]:
		return s, true
	case iter.Seq[any]:
		return pipeline.SeqIterator(s), true
	case func(func(any) bool):
		return pipeline.SeqIterator(iter.Seq[any](s)), true
	case *pipeline.Pipeline[any]:
		return s.Iter(ctx), true
	}
	return nil, false
}
