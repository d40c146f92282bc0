// Package chain composes heterogeneous stages into one logical pipeline
// stage.
//
// A stage is a function from one value to a plain value, a control Signal,
// a Deferred, or a lazy sequence. Signals steer the flow of the current item:
//
//   - None drops the item
//   - Stop ends the pipeline after flushing the stages that follow
//   - Final(v) emits v and skips the remaining stages
//   - Many(vs...) fans out, each value continuing at the next stage
//
// Fan-out from Many and from sequences is processed strictly one value at a
// time, depth-first, so emission order is deterministic. Fan-out produced by
// the last stage is emitted as-is; its values are not read as signals.
//
// # Building pipelines
//
//	p, err := chain.New(collect,
//	    func(x any) any { return x.(int) * x.(int) },
//	    func(x any) any {
//	        if x.(int)%2 == 0 {
//	            return chain.None
//	        }
//	        return x
//	    },
//	    chain.Flushable(summer),
//	    chain.WithName("squares"),
//	)
//	err = p.Process(ctx, 3)
//	err = p.Flush(ctx)
//
// AsArray returns emissions as a slice per input, and Fun wraps a whole
// pipeline as a single Stage that nests transparently in other pipelines.
//
// # Flushing
//
// Stages wrapped with Flushable are invoked once with None at end-of-input
// and their result runs through the rest of the pipeline. A pipe flushes
// exactly once; any later submission is a USAGE_ERROR.
package chain
